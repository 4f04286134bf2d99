package kernels

import (
	"fmt"

	"github.com/LynnColeArt/guda"
)

// ExpandPlanes unpacks (mask, value) plane pairs into a dense NCHW tensor:
// each plane becomes 64 elements, value where the mask bit is set and zero
// elsewhere. len(masks) plane pairs are expanded; masks and values must be
// index-aligned.
func ExpandPlanes(dst guda.DevicePtr, masks []uint64, values []float32, dt DataType) error {
	if len(masks) != len(values) {
		return fmt.Errorf("kernels: %d masks vs %d values", len(masks), len(values))
	}
	if dt == Float16 {
		out := dst.Float16()
		for i, mask := range masks {
			base := i * BoardSquares
			for sq := 0; sq < BoardSquares; sq++ {
				var v float32
				if mask&(1<<uint(sq)) != 0 {
					v = values[i]
				}
				out.SetFloat32(base+sq, v)
			}
		}
		return nil
	}
	out := dst.Float32()[:len(masks)*BoardSquares]
	for i, mask := range masks {
		base := i * BoardSquares
		for sq := 0; sq < BoardSquares; sq++ {
			var v float32
			if mask&(1<<uint(sq)) != 0 {
				v = values[i]
			}
			out[base+sq] = v
		}
	}
	return nil
}
