package nn

import (
	"fmt"
	"sync"

	"github.com/LynnColeArt/guda"

	"nnevald/pkg/types"
)

// IOBuffer is one reusable set of staging areas for a single evaluation:
// host-side packed input planes and the device-side float32 output regions
// every head writes into, mirrored by host slices the results are copied to.
// Buffers are sized for the graph's maximum batch and never shrink.
type IOBuffer struct {
	masks  []uint64
	values []float32

	devPolicy guda.DevicePtr
	devValue  guda.DevicePtr
	devMLH    guda.DevicePtr

	// Policy holds batch * PolicyVocabulary logits after Forward.
	Policy []float32
	// Value holds batch * 1 or batch * 3 raw head outputs.
	Value []float32
	// MovesLeft holds batch estimates when the head is active.
	MovesLeft []float32
}

// pack flattens the positions' plane pairs into the staging slices.
func (b *IOBuffer) pack(positions []types.Position) {
	for i := range positions {
		base := i * types.InputPlanes
		for p := range positions[i].Planes {
			b.masks[base+p] = positions[i].Planes[p].Mask
			b.values[base+p] = positions[i].Planes[p].Value
		}
	}
}

func (b *IOBuffer) free() {
	guda.Free(b.devPolicy)
	guda.Free(b.devValue)
	guda.Free(b.devMLH)
}

// ioPool hands out IOBuffers so concurrent evaluations never share staging
// memory. Buffers are created on demand, kept on a free list, and only
// released when the pool closes.
type ioPool struct {
	mu        sync.Mutex
	free      []*IOBuffer
	closed    bool
	maxBatch  int
	valueOut  int
	movesLeft bool
}

func newIOPool(maxBatch, valueOut int, movesLeft bool) *ioPool {
	return &ioPool{maxBatch: maxBatch, valueOut: valueOut, movesLeft: movesLeft}
}

func (p *ioPool) acquire() (*IOBuffer, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("io pool closed")
	}
	if n := len(p.free); n > 0 {
		b := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return b, nil
	}
	p.mu.Unlock()
	return p.newBuffer()
}

func (p *ioPool) newBuffer() (*IOBuffer, error) {
	b := &IOBuffer{
		masks:  make([]uint64, p.maxBatch*types.InputPlanes),
		values: make([]float32, p.maxBatch*types.InputPlanes),
		Policy: make([]float32, p.maxBatch*types.PolicyVocabulary),
		Value:  make([]float32, p.maxBatch*p.valueOut),
	}
	var err error
	if b.devPolicy, err = guda.Malloc(p.maxBatch * types.PolicyVocabulary * 4); err != nil {
		return nil, fmt.Errorf("policy staging: %w", err)
	}
	if b.devValue, err = guda.Malloc(p.maxBatch * p.valueOut * 4); err != nil {
		b.free()
		return nil, fmt.Errorf("value staging: %w", err)
	}
	if p.movesLeft {
		b.MovesLeft = make([]float32, p.maxBatch)
		if b.devMLH, err = guda.Malloc(p.maxBatch * 4); err != nil {
			b.free()
			return nil, fmt.Errorf("moves-left staging: %w", err)
		}
	}
	return b, nil
}

// release returns a buffer to the free list. Buffers given to a closed pool
// are freed immediately.
func (p *ioPool) release(b *IOBuffer) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		b.free()
		return
	}
	p.free = append(p.free, b)
	p.mu.Unlock()
}

// close frees every pooled buffer. Buffers still checked out are freed when
// released.
func (p *ioPool) close() {
	p.mu.Lock()
	bufs := p.free
	p.free = nil
	p.closed = true
	p.mu.Unlock()
	for _, b := range bufs {
		b.free()
	}
}
