// Package session maintains the fixed table of evaluation sessions the
// daemon exposes. Each slot independently holds at most one compiled network
// instance; slot occupancy is managed lock-free so evaluations on different
// slots never contend.
package session

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/LynnColeArt/guda"

	"nnevald/internal/common/fsutil"
	"nnevald/internal/nn"
	"nnevald/internal/tablebase"
	"nnevald/internal/weights"
	"nnevald/pkg/types"
)

// Slots is the fixed size of the session table.
const Slots = 32

// DefaultMaxBatch is used when a load request leaves the batch size unset.
const DefaultMaxBatch = 256

// LoadSpec carries the resolved parameters of one session load.
type LoadSpec struct {
	// Network is a registry id or an absolute weight-file path.
	Network   string
	Device    int
	MaxBatch  int
	Precision nn.Precision
	Fusion    nn.FusionMode
	MovesLeft bool
}

// entry is the immutable payload of an occupied slot. Counters are the only
// mutable state and are updated atomically.
type entry struct {
	inst     *nn.Instance
	network  types.Network
	device   int
	loadedAt time.Time

	lastUsed atomic.Int64
	evals    atomic.Uint64
	failures atomic.Uint64
}

// reserved marks a slot claimed by an in-flight load. Loads are the only
// writers of a reserved slot, so every other operation treats it as empty.
var reserved = new(entry)

// Config carries the table's construction parameters.
type Config struct {
	Registry []types.Network
	// DefaultMaxBatch applies when a LoadSpec leaves MaxBatch at zero.
	// Zero means DefaultMaxBatch.
	DefaultMaxBatch int
	// DefaultPrecision and DefaultFusion apply when a LoadSpec leaves the
	// corresponding choice at auto.
	DefaultPrecision nn.Precision
	DefaultFusion    nn.FusionMode
	// Events receives lifecycle events; nil installs a no-op publisher.
	Events EventPublisher
	// Tablebase is reported through Status; nil installs a NoopProber.
	Tablebase tablebase.Prober
}

// Table is the session table. All methods are safe for concurrent use.
type Table struct {
	slots [Slots]atomic.Pointer[entry]

	registry  []types.Network
	defBatch  int
	defPrec   nn.Precision
	defFusion nn.FusionMode
	pub       EventPublisher
	tb        tablebase.Prober
	startedAt time.Time

	loads   atomic.Uint64
	unloads atomic.Uint64
	evals   atomic.Uint64
}

// NewTable builds an empty table over the given registry.
func NewTable(cfg Config) *Table {
	t := &Table{
		registry:  cfg.Registry,
		defBatch:  cfg.DefaultMaxBatch,
		defPrec:   cfg.DefaultPrecision,
		defFusion: cfg.DefaultFusion,
		pub:       cfg.Events,
		tb:        cfg.Tablebase,
		startedAt: time.Now(),
	}
	if t.defBatch <= 0 {
		t.defBatch = DefaultMaxBatch
	}
	if t.pub == nil {
		t.pub = noopPublisher{}
	}
	if t.tb == nil {
		t.tb = tablebase.NoopProber{}
	}
	return t
}

// resolve maps a network id or absolute path onto a registry record.
func (t *Table) resolve(network string) (types.Network, error) {
	for _, n := range t.registry {
		if n.ID == network {
			return n, nil
		}
	}
	if filepath.IsAbs(network) && fsutil.PathExists(network) {
		return types.Network{ID: filepath.Base(network), Name: filepath.Base(network), Path: network}, nil
	}
	return types.Network{}, networkNotFoundError{id: network}
}

// Load reads the weight file named by the spec, compiles it, and installs
// the session into the slot. The slot is reserved for the duration of the
// load so concurrent loads of the same slot fail fast with an occupancy
// error instead of racing.
func (t *Table) Load(slot int, spec LoadSpec) error {
	if slot < 0 || slot >= Slots {
		return invalidSlotError{slot: slot}
	}
	net, err := t.resolve(spec.Network)
	if err != nil {
		return err
	}
	if spec.Device < 0 || spec.Device >= guda.GetDeviceCount() {
		return invalidDeviceError{device: spec.Device}
	}
	if err := guda.SetDevice(spec.Device); err != nil {
		return invalidDeviceError{device: spec.Device}
	}
	maxBatch := spec.MaxBatch
	if maxBatch <= 0 {
		maxBatch = t.defBatch
	}
	prec := spec.Precision
	if prec == nn.PrecisionAuto {
		prec = t.defPrec
	}
	fusion := spec.Fusion
	if fusion == nn.FusionAuto {
		fusion = t.defFusion
	}

	if !t.slots[slot].CompareAndSwap(nil, reserved) {
		return slotOccupiedError{slot: slot}
	}

	set, err := weights.ReadFile(net.Path)
	if err != nil {
		t.slots[slot].CompareAndSwap(reserved, nil)
		return badNetworkError{id: net.ID, err: err}
	}
	opts := nn.Options{
		MaxBatch:  maxBatch,
		Precision: prec,
		Fusion:    fusion,
		MovesLeft: spec.MovesLeft && set.MovesLeft,
	}
	inst, err := nn.NewInstance(set, opts)
	if err != nil {
		t.slots[slot].CompareAndSwap(reserved, nil)
		return badNetworkError{id: net.ID, err: err}
	}

	e := &entry{inst: inst, network: net, device: spec.Device, loadedAt: time.Now()}
	e.lastUsed.Store(e.loadedAt.Unix())
	t.slots[slot].Store(e)

	t.loads.Add(1)
	loadsTotal.Inc()
	occupiedSlots.Inc()
	t.pub.Publish(Event{Name: "session_loaded", Slot: slot, Network: net.ID, Fields: map[string]any{
		"device":    spec.Device,
		"max_batch": maxBatch,
		"precision": precisionLabel(inst),
		"fused":     inst.Fused(),
	}})
	return nil
}

// Unload removes the session from the slot and releases its device memory.
// In-flight evaluations on the old entry finish against it; the slot is
// immediately reusable.
func (t *Table) Unload(slot int) error {
	if slot < 0 || slot >= Slots {
		return invalidSlotError{slot: slot}
	}
	for {
		e := t.slots[slot].Load()
		if e == nil || e == reserved {
			return slotEmptyError{slot: slot}
		}
		if t.slots[slot].CompareAndSwap(e, nil) {
			e.inst.Close()
			t.unloads.Add(1)
			unloadsTotal.Inc()
			occupiedSlots.Dec()
			t.pub.Publish(Event{Name: "session_unloaded", Slot: slot, Network: e.network.ID})
			return nil
		}
	}
}

// Evaluate scores a batch of positions on the slot's session.
func (t *Table) Evaluate(slot int, positions []types.Position) ([]types.Evaluation, error) {
	if slot < 0 || slot >= Slots {
		return nil, invalidSlotError{slot: slot}
	}
	e := t.slots[slot].Load()
	if e == nil || e == reserved {
		return nil, slotEmptyError{slot: slot}
	}
	start := time.Now()
	results, err := e.inst.Evaluate(positions)
	e.lastUsed.Store(time.Now().Unix())
	if err != nil {
		e.failures.Add(1)
		evaluationFailures.Inc()
		return nil, err
	}
	e.evals.Add(1)
	t.evals.Add(1)
	evaluationsTotal.Inc()
	positionsTotal.Add(float64(len(positions)))
	batchSize.Observe(float64(len(positions)))
	evaluationDuration.Observe(time.Since(start).Seconds())
	return results, nil
}

// Networks returns a copy of the registry catalog.
func (t *Table) Networks() []types.Network {
	out := make([]types.Network, len(t.registry))
	copy(out, t.registry)
	return out
}

// Tablebase returns the attached prober.
func (t *Table) Tablebase() tablebase.Prober { return t.tb }

// Ready reports whether the table can serve requests. The table is usable
// from construction; readiness exists for the probe endpoint's contract.
func (t *Table) Ready() bool { return true }

// Status builds the detailed status report for /status.
func (t *Table) Status() types.StatusResponse {
	now := time.Now()
	resp := types.StatusResponse{
		Sessions:           make([]types.SlotStatus, 0, Slots),
		Slots:              Slots,
		Devices:            guda.GetDeviceCount(),
		TablebaseAvailable: t.tb.Available(),
		LoadsTotal:         t.loads.Load(),
		UnloadsTotal:       t.unloads.Load(),
		EvaluationsTotal:   t.evals.Load(),
		UptimeSeconds:      int64(now.Sub(t.startedAt).Seconds()),
		ServerTimeUnix:     now.Unix(),
	}
	for i := 0; i < Slots; i++ {
		e := t.slots[i].Load()
		if e == nil || e == reserved {
			continue
		}
		resp.Sessions = append(resp.Sessions, types.SlotStatus{
			Slot:        i,
			Network:     e.network.ID,
			Device:      e.device,
			MaxBatch:    e.inst.MaxBatch(),
			Precision:   precisionLabel(e.inst),
			Fused:       e.inst.Fused(),
			WDL:         e.inst.WDL(),
			MovesLeft:   e.inst.HasMovesLeft(),
			LastUsed:    e.lastUsed.Load(),
			Evaluations: e.evals.Load(),
			Failed:      e.inst.Failed(),
		})
	}
	return resp
}

// Close unloads every session. The table must not be used afterward.
func (t *Table) Close() {
	for i := 0; i < Slots; i++ {
		e := t.slots[i].Swap(nil)
		if e == nil || e == reserved {
			continue
		}
		e.inst.Close()
		occupiedSlots.Dec()
	}
}

func precisionLabel(in *nn.Instance) string {
	if in.Reduced() {
		return "reduced"
	}
	return "full"
}

// ParseSpec converts an API load request into a LoadSpec.
func ParseSpec(req types.LoadRequest) (LoadSpec, error) {
	prec, err := nn.ParsePrecision(req.Precision)
	if err != nil {
		return LoadSpec{}, err
	}
	fusion, err := nn.ParseFusion(req.Fusion)
	if err != nil {
		return LoadSpec{}, err
	}
	if req.MaxBatch < 0 || req.MaxBatch > nn.MaxBatchLimit {
		return LoadSpec{}, fmt.Errorf("max batch %d outside [0, %d]", req.MaxBatch, nn.MaxBatchLimit)
	}
	movesLeft := true
	if req.MovesLeft != nil {
		movesLeft = *req.MovesLeft
	}
	return LoadSpec{
		Network:   req.Network,
		Device:    req.Device,
		MaxBatch:  req.MaxBatch,
		Precision: prec,
		Fusion:    fusion,
		MovesLeft: movesLeft,
	}, nil
}
