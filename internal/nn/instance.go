// Package nn compiles weight sets into device-resident evaluation graphs and
// runs batched position evaluations against them. An Instance is the unit a
// session slot holds: one graph, one staging pool, one evaluation at a time
// on the device.
package nn

import (
	"sync"
	"sync/atomic"

	"github.com/LynnColeArt/guda"

	"nnevald/internal/weights"
	"nnevald/pkg/types"
)

// Instance owns one compiled graph and the staging buffers evaluations run
// through. Evaluate is safe for concurrent use; batches are packed and
// results unpacked in parallel while graph execution itself is serialized.
// After a device failure the instance is poisoned and every further
// evaluation fails fast until the instance is replaced.
type Instance struct {
	graph *Graph
	pool  *ioPool

	mu     sync.Mutex // serializes Forward
	failed atomic.Bool

	closeOnce sync.Once
}

// NewInstance compiles the weight set and allocates all device memory needed
// to evaluate up to opts.MaxBatch positions.
func NewInstance(set *weights.Set, opts Options) (*Instance, error) {
	g, err := NewGraph(set, opts)
	if err != nil {
		return nil, err
	}
	return &Instance{
		graph: g,
		pool:  newIOPool(g.maxBatch, g.valueOutputs(), g.movesLeft),
	}, nil
}

// MaxBatch reports the largest accepted batch.
func (in *Instance) MaxBatch() int { return in.graph.maxBatch }

// Fused reports whether residual blocks run fused.
func (in *Instance) Fused() bool { return in.graph.fused }

// Reduced reports whether tensors are stored in half precision.
func (in *Instance) Reduced() bool { return in.graph.Reduced() }

// WDL reports whether results carry a meaningful draw probability.
func (in *Instance) WDL() bool { return in.graph.wdl }

// HasMovesLeft reports whether results carry a moves-left estimate.
func (in *Instance) HasMovesLeft() bool { return in.graph.movesLeft }

// Failed reports whether a past device failure poisoned the instance.
func (in *Instance) Failed() bool { return in.failed.Load() }

// Evaluate scores every position in the batch, returning one result per
// position in submission order. Inputs are validated before any device work:
// the batch must fit the arena and every move identifier must fall inside
// the policy vocabulary.
func (in *Instance) Evaluate(positions []types.Position) ([]types.Evaluation, error) {
	if in.failed.Load() {
		return nil, failedInstanceError{}
	}
	batch := len(positions)
	if batch == 0 {
		return []types.Evaluation{}, nil
	}
	if batch > in.graph.maxBatch {
		return nil, batchTooLargeError{n: batch, max: in.graph.maxBatch}
	}
	for i := range positions {
		if len(positions[i].Moves) > types.MaxMoves {
			return nil, tooManyMovesError{n: len(positions[i].Moves), max: types.MaxMoves}
		}
		for _, m := range positions[i].Moves {
			if int(m) >= policyVocab {
				return nil, invalidMoveError{id: m}
			}
		}
	}

	io, err := in.pool.acquire()
	if err != nil {
		return nil, err
	}
	defer in.pool.release(io)
	io.pack(positions)

	in.mu.Lock()
	err = in.graph.Forward(io, batch)
	in.mu.Unlock()
	if err != nil {
		if IsDeviceFailure(err) {
			in.failed.Store(true)
		}
		return nil, err
	}

	results := make([]types.Evaluation, batch)
	for i := range results {
		r := &results[i]
		if in.graph.wdl {
			w, d, l := wdlFromLogits(io.Value[i*3 : i*3+3])
			r.Q = w - l
			r.D = d
		} else {
			r.Q = io.Value[i]
		}
		if in.graph.movesLeft {
			r.M = io.MovesLeft[i]
		}
		if n := len(positions[i].Moves); n > 0 {
			r.P = make([]float32, n)
			row := io.Policy[i*policyVocab : (i+1)*policyVocab]
			for j, m := range positions[i].Moves {
				r.P[j] = row[m]
			}
		}
	}
	return results, nil
}

// wdlFromLogits normalizes three raw value-head outputs into win, draw, and
// loss probabilities, subtracting the row maximum before exponentiating.
func wdlFromLogits(logits []float32) (w, d, l float32) {
	m := logits[0]
	for _, v := range logits[1:] {
		if v > m {
			m = v
		}
	}
	var e [3]float32
	var sum float32
	for i, v := range logits {
		e[i] = guda.ExpFloat32(v - m)
		sum += e[i]
	}
	return e[0] / sum, e[1] / sum, e[2] / sum
}

// Close releases the instance's device memory. Idempotent; callers must
// ensure no evaluation is in flight.
func (in *Instance) Close() {
	in.closeOnce.Do(func() {
		in.pool.close()
		in.graph.Close()
	})
}
