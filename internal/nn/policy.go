package nn

import (
	"nnevald/pkg/types"
)

// ConvPolicyPlanes is the number of move-geometry planes a convolutional
// policy head emits: 56 sliding planes (8 directions x 7 distances), 8 knight
// planes, and 9 underpromotion planes (3 directions x 3 pieces).
const ConvPolicyPlanes = 73

var (
	queenDirs = [8][2]int{
		{0, 1}, {1, 1}, {1, 0}, {1, -1}, {0, -1}, {-1, -1}, {-1, 0}, {-1, 1},
	}
	knightJumps = [8][2]int{
		{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2},
	}
)

// convPolicyMap maps (plane*64 + square) to a vocabulary index, or -1 where
// the plane/square pair leaves the board. Built once; the same table defines
// both the move-identifier numbering callers use and the policy-map remap.
var convPolicyMap = buildPolicyMap()

// PolicyMapTable exposes the shared remap table. Callers must not mutate it.
func PolicyMapTable() []int16 { return convPolicyMap }

// buildPolicyMap enumerates every legal move geometry from every square, in
// square-major plane order, assigning vocabulary indices in encounter order.
// The enumeration is exhaustive and deterministic: 1792 slider/knight
// from-to pairs plus 66 underpromotions, 1858 in total.
func buildPolicyMap() []int16 {
	table := make([]int16, ConvPolicyPlanes*64)
	for i := range table {
		table[i] = -1
	}
	next := int16(0)
	for sq := 0; sq < 64; sq++ {
		file, rank := sq%8, sq/8
		for plane := 0; plane < ConvPolicyPlanes; plane++ {
			if !planeStaysOnBoard(plane, file, rank) {
				continue
			}
			table[plane*64+sq] = next
			next++
		}
	}
	if int(next) != types.PolicyVocabulary {
		// The table is a compile-time-fixed artifact of the move geometry;
		// a mismatch means the geometry tables above were edited wrongly.
		panic("nn: policy vocabulary size mismatch")
	}
	return table
}

func planeStaysOnBoard(plane, file, rank int) bool {
	switch {
	case plane < 56:
		dir := queenDirs[plane/7]
		dist := plane%7 + 1
		f, r := file+dir[0]*dist, rank+dir[1]*dist
		return f >= 0 && f < 8 && r >= 0 && r < 8
	case plane < 64:
		j := knightJumps[plane-56]
		f, r := file+j[0], rank+j[1]
		return f >= 0 && f < 8 && r >= 0 && r < 8
	default:
		// Underpromotions: push or capture onto the last rank. Plane layout
		// is direction-major (left capture, push, right capture), piece
		// minor (knight, bishop, rook).
		if rank != 6 {
			return false
		}
		dFile := (plane-64)/3 - 1
		f := file + dFile
		return f >= 0 && f < 8
	}
}
