package session

import (
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"nnevald/internal/nn"
	"nnevald/internal/tablebase"
	"nnevald/internal/weights"
	"nnevald/pkg/types"
)

func writeNetwork(t *testing.T, dir, name string, topo weights.Topology) types.Network {
	t.Helper()
	if topo.Filters == 0 {
		topo.Filters = 8
	}
	if topo.Blocks == 0 {
		topo.Blocks = 1
	}
	path := filepath.Join(dir, name)
	if err := weights.Random(topo, 3).WriteFile(path); err != nil {
		t.Fatalf("write network: %v", err)
	}
	return types.Network{ID: name, Name: name, Path: path}
}

func newTestTable(t *testing.T, cfg Config) (*Table, types.Network) {
	t.Helper()
	dir := t.TempDir()
	net := writeNetwork(t, dir, "tiny.nnwb", weights.Topology{Value: weights.ValueWDL, MovesLeft: true})
	cfg.Registry = append(cfg.Registry, net)
	tbl := NewTable(cfg)
	t.Cleanup(tbl.Close)
	return tbl, net
}

func somePositions(n int) []types.Position {
	rng := rand.New(rand.NewSource(21))
	out := make([]types.Position, n)
	for i := range out {
		for p := range out[i].Planes {
			out[i].Planes[p] = types.Plane{Mask: rng.Uint64(), Value: rng.Float32()}
		}
		out[i].Moves = []uint16{0, 77}
	}
	return out
}

func TestTableLifecycle(t *testing.T) {
	tbl, net := newTestTable(t, Config{})
	if err := tbl.Load(3, LoadSpec{Network: net.ID, MaxBatch: 4, MovesLeft: true}); err != nil {
		t.Fatalf("load: %v", err)
	}

	res, err := tbl.Evaluate(3, somePositions(2))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("got %d results", len(res))
	}

	st := tbl.Status()
	if len(st.Sessions) != 1 {
		t.Fatalf("status lists %d sessions", len(st.Sessions))
	}
	s := st.Sessions[0]
	if s.Slot != 3 || s.Network != net.ID || s.MaxBatch != 4 {
		t.Fatalf("unexpected slot status: %+v", s)
	}
	if !s.WDL || !s.MovesLeft {
		t.Fatalf("head flags lost: %+v", s)
	}
	if s.Evaluations != 1 {
		t.Fatalf("evaluations counter %d", s.Evaluations)
	}
	if st.LoadsTotal != 1 || st.EvaluationsTotal != 1 || st.Slots != Slots {
		t.Fatalf("unexpected totals: %+v", st)
	}

	if err := tbl.Unload(3); err != nil {
		t.Fatalf("unload: %v", err)
	}
	if _, err := tbl.Evaluate(3, somePositions(1)); !IsSlotEmpty(err) {
		t.Fatalf("expected slot-empty after unload, got %v", err)
	}
	if tbl.Status().UnloadsTotal != 1 {
		t.Fatal("unload not counted")
	}
}

func TestLoadErrors(t *testing.T) {
	tbl, net := newTestTable(t, Config{})

	if err := tbl.Load(-1, LoadSpec{Network: net.ID}); !IsInvalidSlot(err) {
		t.Errorf("negative slot: %v", err)
	}
	if err := tbl.Load(Slots, LoadSpec{Network: net.ID}); !IsInvalidSlot(err) {
		t.Errorf("slot past table: %v", err)
	}
	if err := tbl.Load(0, LoadSpec{Network: "missing.nnwb"}); !IsNetworkNotFound(err) {
		t.Errorf("unknown network: %v", err)
	}
	if err := tbl.Load(0, LoadSpec{Network: net.ID, Device: 99}); !IsInvalidDevice(err) {
		t.Errorf("bad device: %v", err)
	}

	if err := tbl.Load(0, LoadSpec{Network: net.ID}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := tbl.Load(0, LoadSpec{Network: net.ID}); !IsSlotOccupied(err) {
		t.Errorf("double load: %v", err)
	}
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	tbl, _ := newTestTable(t, Config{})
	path := filepath.Join(t.TempDir(), "bad.nnwb")
	if err := os.WriteFile(path, []byte("not a network"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := tbl.Load(1, LoadSpec{Network: path})
	if !IsBadNetwork(err) {
		t.Fatalf("expected bad-network, got %v", err)
	}
	// A failed load must leave the slot reusable.
	if _, err := tbl.Evaluate(1, somePositions(1)); !IsSlotEmpty(err) {
		t.Fatalf("slot not released: %v", err)
	}
}

func TestLoadByAbsolutePath(t *testing.T) {
	tbl, _ := newTestTable(t, Config{})
	net := writeNetwork(t, t.TempDir(), "side.nnwb", weights.Topology{})
	if err := tbl.Load(5, LoadSpec{Network: net.Path}); err != nil {
		t.Fatalf("load by path: %v", err)
	}
	st := tbl.Status()
	if len(st.Sessions) != 1 || st.Sessions[0].Network != "side.nnwb" {
		t.Fatalf("unexpected status: %+v", st.Sessions)
	}
}

func TestUnloadEmptySlot(t *testing.T) {
	tbl, _ := newTestTable(t, Config{})
	if err := tbl.Unload(0); !IsSlotEmpty(err) {
		t.Errorf("empty slot: %v", err)
	}
	if err := tbl.Unload(Slots + 1); !IsInvalidSlot(err) {
		t.Errorf("invalid slot: %v", err)
	}
}

func TestConcurrentLoadsOneWinner(t *testing.T) {
	tbl, net := newTestTable(t, Config{})
	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = tbl.Load(2, LoadSpec{Network: net.ID, MaxBatch: 2})
		}(i)
	}
	wg.Wait()
	won := 0
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case IsSlotOccupied(err):
		default:
			t.Fatalf("unexpected load error: %v", err)
		}
	}
	if won != 1 {
		t.Fatalf("%d loads succeeded, want exactly 1", won)
	}
}

func TestDefaultMaxBatch(t *testing.T) {
	tbl, net := newTestTable(t, Config{DefaultMaxBatch: 16})
	if err := tbl.Load(0, LoadSpec{Network: net.ID}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := tbl.Status().Sessions[0].MaxBatch; got != 16 {
		t.Fatalf("max batch %d, want 16", got)
	}
}

func TestDefaultPrecisionAndFusion(t *testing.T) {
	tbl, net := newTestTable(t, Config{
		DefaultPrecision: nn.PrecisionReduced,
		DefaultFusion:    nn.FusionOn,
	})
	if err := tbl.Load(0, LoadSpec{Network: net.ID}); err != nil {
		t.Fatalf("load: %v", err)
	}
	s := tbl.Status().Sessions[0]
	if s.Precision != "reduced" || !s.Fused {
		t.Fatalf("server defaults not applied: %+v", s)
	}

	// An explicit request beats the server default.
	if err := tbl.Load(1, LoadSpec{Network: net.ID, Precision: nn.PrecisionFull, Fusion: nn.FusionOff}); err != nil {
		t.Fatalf("load: %v", err)
	}
	s = tbl.Status().Sessions[1]
	if s.Precision != "full" || s.Fused {
		t.Fatalf("explicit choice overridden: %+v", s)
	}
}

func TestEventsPublished(t *testing.T) {
	pub := NewMemoryPublisher()
	tbl, net := newTestTable(t, Config{Events: pub})
	if err := tbl.Load(0, LoadSpec{Network: net.ID}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := tbl.Unload(0); err != nil {
		t.Fatalf("unload: %v", err)
	}
	events := pub.Events()
	if len(events) != 2 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].Name != "session_loaded" || events[1].Name != "session_unloaded" {
		t.Fatalf("unexpected event names: %v %v", events[0].Name, events[1].Name)
	}
	if events[0].Network != net.ID || events[0].Slot != 0 {
		t.Fatalf("load event payload: %+v", events[0])
	}
}

func TestStatusReportsTablebase(t *testing.T) {
	tbl, _ := newTestTable(t, Config{Tablebase: tablebase.NoopProber{}})
	if tbl.Status().TablebaseAvailable {
		t.Fatal("noop prober must report unavailable")
	}
	if !tbl.Ready() {
		t.Fatal("table should be ready from construction")
	}
}

func TestParseSpec(t *testing.T) {
	movesOff := false
	cases := []struct {
		name    string
		req     types.LoadRequest
		want    LoadSpec
		wantErr bool
	}{
		{
			name: "defaults",
			req:  types.LoadRequest{Network: "n.nnwb"},
			want: LoadSpec{Network: "n.nnwb", MovesLeft: true},
		},
		{
			name: "explicit",
			req: types.LoadRequest{
				Network: "n.nnwb", Device: 0, MaxBatch: 32,
				Precision: "reduced", Fusion: "on", MovesLeft: &movesOff,
			},
			want: LoadSpec{
				Network: "n.nnwb", MaxBatch: 32,
				Precision: nn.PrecisionReduced, Fusion: nn.FusionOn,
			},
		},
		{name: "bad precision", req: types.LoadRequest{Network: "n", Precision: "double"}, wantErr: true},
		{name: "bad fusion", req: types.LoadRequest{Network: "n", Fusion: "sometimes"}, wantErr: true},
		{name: "bad max batch", req: types.LoadRequest{Network: "n", MaxBatch: nn.MaxBatchLimit + 1}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseSpec(tc.req)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got != tc.want {
				t.Fatalf("spec %+v, want %+v", got, tc.want)
			}
		})
	}
}
