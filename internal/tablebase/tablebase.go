// Package tablebase defines the endgame-table boundary of the evaluation
// daemon. Probing happens outside the neural path: callers consult the
// prober before submitting a position for network evaluation, and a result
// short-circuits the batch entry entirely.
package tablebase

import (
	"math/bits"

	"nnevald/pkg/types"
)

// WDL represents a Win/Draw/Loss result from the side to move.
type WDL int

const (
	WDLLoss        WDL = -2
	WDLBlessedLoss WDL = -1
	WDLDraw        WDL = 0
	WDLCursedWin   WDL = 1
	WDLWin         WDL = 2
)

// ProbeResult contains the result of a tablebase probe.
type ProbeResult struct {
	Found bool
	WDL   WDL
	// DTZ is the distance to the next zeroing move.
	DTZ int
}

// Prober is the interface for tablebase probing.
type Prober interface {
	// Probe looks up a position. Found is false when the position has too
	// many pieces or the table lacks it.
	Probe(pos *types.Position) ProbeResult

	// MaxPieces returns the maximum number of pieces supported.
	MaxPieces() int

	// Available returns true if tablebases are loaded and usable.
	Available() bool
}

// Score converts a WDL result to a network-comparable value in [-1, 1].
func Score(wdl WDL) float32 {
	switch wdl {
	case WDLWin, WDLCursedWin:
		return 1
	case WDLLoss, WDLBlessedLoss:
		return -1
	}
	return 0
}

// piecePlanes is the number of leading occupancy planes in the position
// encoding that carry piece masks for the current board.
const piecePlanes = 12

// CountPieces returns the number of pieces on the board described by the
// position's leading occupancy planes.
func CountPieces(pos *types.Position) int {
	var occupied uint64
	for i := 0; i < piecePlanes; i++ {
		occupied |= pos.Planes[i].Mask
	}
	return bits.OnesCount64(occupied)
}

// NoopProber always reports "not found". It stands in when no tablebase is
// configured.
type NoopProber struct{}

func (NoopProber) Probe(*types.Position) ProbeResult { return ProbeResult{} }
func (NoopProber) MaxPieces() int                    { return 0 }
func (NoopProber) Available() bool                   { return false }
