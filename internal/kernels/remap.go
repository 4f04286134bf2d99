package kernels

import (
	"fmt"

	"github.com/LynnColeArt/guda"
)

// PolicyMap scatters convolutional policy planes onto the move vocabulary:
// for every table entry t = table[p*64+sq] >= 0, dst[b][t] = src[b][p][sq].
// Entries of -1 are plane/square combinations with no legal move geometry.
// Vocabulary slots are covered exactly once by construction of the table.
func PolicyMap(dst, src guda.DevicePtr, table []int16, batch, planes, vocab int, dt DataType) error {
	if len(table) != planes*BoardSquares {
		return fmt.Errorf("kernels: policy map table has %d entries, want %d", len(table), planes*BoardSquares)
	}
	srcStride := planes * BoardSquares
	if dt == Float16 {
		s := src.Float16()
		d := dst.Float16()
		for b := 0; b < batch; b++ {
			for i, t := range table {
				if t < 0 {
					continue
				}
				d.SetFloat32(b*vocab+int(t), s.GetFloat32(b*srcStride+i))
			}
		}
		return nil
	}
	s := src.Float32()[:batch*srcStride]
	d := dst.Float32()[:batch*vocab]
	for b := 0; b < batch; b++ {
		for i, t := range table {
			if t < 0 {
				continue
			}
			d[b*vocab+int(t)] = s[b*srcStride+i]
		}
	}
	return nil
}
