// Package kernels wraps the guda compute runtime with the primitive numeric
// operators the evaluation graph is built from: plane expansion, convolution
// (with optional fused skip-add and squeeze-excite), fully-connected layers,
// the policy-map remap, and precision conversion. Everything here is
// stateless; callers own all device memory and pass a Scratch region for the
// operators' transient needs.
package kernels

import (
	"fmt"

	"github.com/LynnColeArt/guda"
)

// BoardSquares is the spatial extent every tensor in the graph shares.
const BoardSquares = 64

// DataType tags the element type tensors are stored as on the device.
type DataType uint8

const (
	// Float32 is the full-precision storage and compute type.
	Float32 DataType = iota
	// Float16 halves tensor storage; compute still happens in float32,
	// widening through scratch and narrowing back (the same scheme guda's
	// own half-precision GEMM uses).
	Float16
)

// Size returns the element size in bytes.
func (d DataType) Size() int {
	if d == Float16 {
		return 2
	}
	return 4
}

func (d DataType) String() string {
	if d == Float16 {
		return "reduced"
	}
	return "full"
}

// Zero clears n bytes at p.
func Zero(p guda.DevicePtr, n int) {
	b := p.Byte()[:n]
	for i := range b {
		b[i] = 0
	}
}

// ConvertToFloat32 casts n half-precision elements at src into float32 at
// dst. Used to produce the fixed-width host-visible outputs when the graph
// runs in reduced precision.
func ConvertToFloat32(dst, src guda.DevicePtr, n int) error {
	s := src.Float16()
	if s.Len() < n {
		return fmt.Errorf("kernels: convert source holds %d elements, need %d", s.Len(), n)
	}
	d := dst.Float32()[:n]
	for i := 0; i < n; i++ {
		d[i] = s.GetFloat32(i)
	}
	return nil
}

// Store writes host float32 values into device memory at the given data
// type, narrowing to half precision when dt is Float16. The destination must
// hold at least len(src) elements.
func Store(dst guda.DevicePtr, src []float32, dt DataType) {
	narrow(dst, src, dt)
}

// narrow writes float32 values into p at the given data type.
func narrow(p guda.DevicePtr, src []float32, dt DataType) {
	if dt == Float16 {
		d := p.Float16()
		for i, v := range src {
			d.SetFloat32(i, v)
		}
		return
	}
	copy(p.Float32()[:len(src)], src)
}

// ptrSet reports whether p refers to allocated memory.
func ptrSet(p guda.DevicePtr) bool { return p != (guda.DevicePtr{}) }
