package tablebase

import (
	"testing"

	"nnevald/pkg/types"
)

func TestScore(t *testing.T) {
	cases := []struct {
		wdl  WDL
		want float32
	}{
		{WDLWin, 1},
		{WDLCursedWin, 1},
		{WDLDraw, 0},
		{WDLBlessedLoss, -1},
		{WDLLoss, -1},
	}
	for _, tc := range cases {
		if got := Score(tc.wdl); got != tc.want {
			t.Errorf("Score(%d) = %v, want %v", tc.wdl, got, tc.want)
		}
	}
}

func TestCountPieces(t *testing.T) {
	var pos types.Position
	if got := CountPieces(&pos); got != 0 {
		t.Fatalf("empty board counts %d pieces", got)
	}
	pos.Planes[0].Mask = 1<<4 | 1<<60 // two kings
	pos.Planes[3].Mask = 1 << 4      // overlaps plane 0
	pos.Planes[11].Mask = 0xFF00
	if got := CountPieces(&pos); got != 10 {
		t.Fatalf("counted %d pieces, want 10", got)
	}
	// Planes past the occupancy block never count.
	pos.Planes[12].Mask = ^uint64(0)
	if got := CountPieces(&pos); got != 10 {
		t.Fatalf("auxiliary plane leaked into count: %d", got)
	}
}

func TestNoopProber(t *testing.T) {
	var p NoopProber
	if p.Available() || p.MaxPieces() != 0 {
		t.Fatal("noop prober must report nothing available")
	}
	if r := p.Probe(&types.Position{}); r.Found {
		t.Fatal("noop prober found a position")
	}
}

// countingProber counts probes so the cache's short-circuit is observable.
type countingProber struct {
	calls int
	res   ProbeResult
}

func (p *countingProber) Probe(*types.Position) ProbeResult { p.calls++; return p.res }
func (p *countingProber) MaxPieces() int                    { return 7 }
func (p *countingProber) Available() bool                   { return true }

func TestCachedProber(t *testing.T) {
	inner := &countingProber{res: ProbeResult{Found: true, WDL: WDLWin, DTZ: 12}}
	cp := NewCachedProber(inner, 4)

	pos := &types.Position{Hash: 42}
	first := cp.Probe(pos)
	second := cp.Probe(pos)
	if first != second {
		t.Fatalf("cache changed the result: %+v vs %+v", first, second)
	}
	if inner.calls != 1 {
		t.Fatalf("inner probed %d times, want 1", inner.calls)
	}
	if hits, misses := cp.Stats(); hits != 1 || misses != 1 {
		t.Fatalf("stats hits=%d misses=%d", hits, misses)
	}
	if cp.MaxPieces() != 7 || !cp.Available() {
		t.Fatal("delegation lost")
	}
}

func TestCachedProberEviction(t *testing.T) {
	inner := &countingProber{}
	cp := NewCachedProber(inner, 2)
	for h := uint64(0); h < 3; h++ {
		cp.Probe(&types.Position{Hash: h})
	}
	// Hash 0 was evicted by the reset when hash 2 arrived.
	cp.Probe(&types.Position{Hash: 0})
	if inner.calls != 4 {
		t.Fatalf("inner probed %d times, want 4", inner.calls)
	}
}
