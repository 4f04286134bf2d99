package nn

import (
	"github.com/LynnColeArt/guda"

	"nnevald/internal/kernels"
	"nnevald/pkg/types"
)

// Forward runs the full graph for batch positions already packed into io,
// leaving float32 results in io's host slices. The three tensor buffers
// rotate so no layer ever reads the buffer it writes; fused residual blocks
// write whichever buffer does not hold their input, while split blocks pin
// the block boundary to one buffer so its contents can serve as the skip
// tensor of the second convolution.
//
// Policy logits are copied back as soon as the policy head finishes; the
// remaining heads' outputs are copied after the final synchronize.
func (g *Graph) Forward(io *IOBuffer, batch int) error {
	if batch <= 0 || batch > g.maxBatch {
		return batchTooLargeError{n: batch, max: g.maxBatch}
	}

	n := batch * types.InputPlanes
	if err := kernels.ExpandPlanes(g.buffers[0], io.masks[:n], io.values[:n], g.dt); err != nil {
		return deviceError{op: "input expansion", err: err}
	}

	var cur int
	if g.fused {
		if err := g.tower[0].eval(g, batch, g.buffers[1], g.buffers[0], guda.DevicePtr{}); err != nil {
			return deviceError{op: "input convolution", err: err}
		}
		cur = 1
		for _, l := range g.tower[1:] {
			next := 3 - cur
			if err := l.eval(g, batch, g.buffers[next], g.buffers[cur], guda.DevicePtr{}); err != nil {
				return deviceError{op: "residual tower", err: err}
			}
			cur = next
		}
	} else {
		if err := g.tower[0].eval(g, batch, g.buffers[2], g.buffers[0], guda.DevicePtr{}); err != nil {
			return deviceError{op: "input convolution", err: err}
		}
		cur = 2
		for i := 1; i < len(g.tower); i += 2 {
			if err := g.tower[i].eval(g, batch, g.buffers[0], g.buffers[2], guda.DevicePtr{}); err != nil {
				return deviceError{op: "residual tower", err: err}
			}
			if err := g.tower[i+1].eval(g, batch, g.buffers[2], g.buffers[0], g.buffers[2]); err != nil {
				return deviceError{op: "residual tower", err: err}
			}
		}
	}

	towerBuf := g.buffers[cur]
	var inter [2]guda.DevicePtr
	k := 0
	for i := range g.buffers {
		if i != cur {
			inter[k] = g.buffers[i]
			k++
		}
	}

	if err := g.runHead(g.policy, batch, towerBuf, inter, io.devPolicy); err != nil {
		return deviceError{op: "policy head", err: err}
	}
	pn := batch * policyVocab
	if err := guda.Memcpy(io.Policy[:pn], io.devPolicy, pn*4, guda.MemcpyDeviceToHost); err != nil {
		return deviceError{op: "policy readback", err: err}
	}

	if err := g.runHead(g.value, batch, towerBuf, inter, io.devValue); err != nil {
		return deviceError{op: "value head", err: err}
	}
	if g.movesLeft {
		if err := g.runHead(g.mlh, batch, towerBuf, inter, io.devMLH); err != nil {
			return deviceError{op: "moves-left head", err: err}
		}
	}

	if err := guda.Synchronize(); err != nil {
		return deviceError{op: "synchronize", err: err}
	}

	vn := batch * g.valueOutputs()
	if err := guda.Memcpy(io.Value[:vn], io.devValue, vn*4, guda.MemcpyDeviceToHost); err != nil {
		return deviceError{op: "value readback", err: err}
	}
	if g.movesLeft {
		if err := guda.Memcpy(io.MovesLeft[:batch], io.devMLH, batch*4, guda.MemcpyDeviceToHost); err != nil {
			return deviceError{op: "moves-left readback", err: err}
		}
	}
	return nil
}

// runHead walks a head chain, alternating its intermediates between the two
// tensor buffers not holding the tower output. The final layer writes the
// float32 staging region directly when the graph runs full precision; in
// reduced precision it writes a tensor buffer and the result is widened into
// staging.
func (g *Graph) runHead(chain []layer, batch int, in guda.DevicePtr, inter [2]guda.DevicePtr, dst guda.DevicePtr) error {
	pick := 0
	for i, l := range chain {
		last := i == len(chain)-1
		out := inter[pick]
		if last && g.dt == kernels.Float32 {
			out = dst
		}
		if err := l.eval(g, batch, out, in, guda.DevicePtr{}); err != nil {
			return err
		}
		if last && g.dt == kernels.Float16 {
			return kernels.ConvertToFloat32(dst, out, batch*l.outputElems())
		}
		in = out
		pick ^= 1
	}
	return nil
}
