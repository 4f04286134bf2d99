package kernels

import (
	"github.com/LynnColeArt/guda"
)

// Scratch is a bump allocator over one pre-sized device region. Operators
// carve transient buffers from it and release them with Mark/Release; nothing
// carved from it survives across operator invocations.
type Scratch struct {
	buf  guda.DevicePtr
	size int
	off  int
}

// NewScratch wraps a device region of the given byte size.
func NewScratch(buf guda.DevicePtr, size int) *Scratch {
	return &Scratch{buf: buf, size: size}
}

// Size returns the total byte capacity.
func (s *Scratch) Size() int { return s.size }

// Base returns the underlying device region.
func (s *Scratch) Base() guda.DevicePtr { return s.buf }

// Mark records the current allocation point.
func (s *Scratch) Mark() int { return s.off }

// Release rewinds to a previous Mark.
func (s *Scratch) Release(mark int) { s.off = mark }

// Alloc carves n bytes, 64-byte aligned. Exhaustion is a sizing bug upstream
// and surfaces as a memory error.
func (s *Scratch) Alloc(n int) (guda.DevicePtr, error) {
	const align = 64
	n = (n + align - 1) &^ (align - 1)
	if s.off+n > s.size {
		return guda.DevicePtr{}, guda.NewMemoryError("Scratch.Alloc",
			"scratch region exhausted", nil)
	}
	p := s.buf.Offset(s.off)
	s.off += n
	return p, nil
}

// Floats carves n float32 elements and returns both the device pointer and
// its host-visible view.
func (s *Scratch) Floats(n int) (guda.DevicePtr, []float32, error) {
	p, err := s.Alloc(n * 4)
	if err != nil {
		return guda.DevicePtr{}, nil, err
	}
	return p, p.Float32()[:n], nil
}

// widen returns a float32 device view of n elements at p. For Float32 the
// view aliases p directly; for Float16 the elements are expanded into a
// scratch carve.
func (s *Scratch) widen(p guda.DevicePtr, n int, dt DataType) (guda.DevicePtr, error) {
	if dt == Float32 {
		return p, nil
	}
	dst, host, err := s.Floats(n)
	if err != nil {
		return guda.DevicePtr{}, err
	}
	src := p.Float16()
	for i := 0; i < n; i++ {
		host[i] = src.GetFloat32(i)
	}
	return dst, nil
}
