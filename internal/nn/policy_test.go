package nn

import (
	"testing"

	"nnevald/pkg/types"
)

func TestPolicyMapTableShape(t *testing.T) {
	table := PolicyMapTable()
	if len(table) != ConvPolicyPlanes*64 {
		t.Fatalf("table length %d, want %d", len(table), ConvPolicyPlanes*64)
	}
}

func TestPolicyMapCoversVocabularyOnce(t *testing.T) {
	seen := make([]bool, types.PolicyVocabulary)
	for i, id := range PolicyMapTable() {
		if id < 0 {
			continue
		}
		if int(id) >= types.PolicyVocabulary {
			t.Fatalf("entry %d maps past vocabulary: %d", i, id)
		}
		if seen[id] {
			t.Fatalf("vocabulary index %d assigned twice", id)
		}
		seen[id] = true
	}
	for id, ok := range seen {
		if !ok {
			t.Fatalf("vocabulary index %d never assigned", id)
		}
	}
}

func TestPolicyMapPlaneCounts(t *testing.T) {
	table := PolicyMapTable()
	count := func(lo, hi int) int {
		n := 0
		for plane := lo; plane < hi; plane++ {
			for sq := 0; sq < 64; sq++ {
				if table[plane*64+sq] >= 0 {
					n++
				}
			}
		}
		return n
	}
	if got := count(0, 56); got != 1456 {
		t.Errorf("slider moves: %d, want 1456", got)
	}
	if got := count(56, 64); got != 336 {
		t.Errorf("knight moves: %d, want 336", got)
	}
	if got := count(64, 73); got != 66 {
		t.Errorf("underpromotions: %d, want 66", got)
	}
}

func TestPolicyMapUnderpromotionGeometry(t *testing.T) {
	table := PolicyMapTable()
	for plane := 64; plane < 73; plane++ {
		for sq := 0; sq < 64; sq++ {
			id := table[plane*64+sq]
			rank, file := sq/8, sq%8
			if rank != 6 && id >= 0 {
				t.Fatalf("promotion plane %d assigned off the seventh rank (sq %d)", plane, sq)
			}
			dFile := (plane-64)/3 - 1
			if rank == 6 && file+dFile >= 0 && file+dFile < 8 && id < 0 {
				t.Fatalf("promotion plane %d square %d should be legal", plane, sq)
			}
		}
	}
}
