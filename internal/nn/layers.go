package nn

import (
	"github.com/LynnColeArt/guda"

	"nnevald/internal/kernels"
)

// layer is one node of the execution graph: it consumes up to two tensors
// (input, saved skip) and produces one, reports its per-position output width
// so the arena can be sized, and owns its device-resident weights.
type layer interface {
	// outputElems is the number of elements produced per position.
	outputElems() int
	// eval runs the layer for batch positions.
	eval(g *Graph, batch int, out, in, skip guda.DevicePtr) error
	// free releases the layer's device weights.
	free()
}

// outputBytes is the arena-sizing helper shared by all variants.
func outputBytes(l layer, batch int, dt kernels.DataType) int {
	return batch * l.outputElems() * dt.Size()
}

// convLayer covers the input stem, the split residual-path convolutions, and
// every 1x1 head convolution. skipAdd and se are construction-time flags: the
// second convolution of a non-fused residual block carries both.
type convLayer struct {
	w, b    guda.DevicePtr
	inC     int
	outC    int
	kernel  int
	relu    bool
	skipAdd bool
	se      *kernels.SEWeights
}

func (l *convLayer) outputElems() int { return l.outC * kernels.BoardSquares }

func (l *convLayer) eval(g *Graph, batch int, out, in, skip guda.DevicePtr) error {
	a := kernels.ConvArgs{
		Batch:       batch,
		InChannels:  l.inC,
		OutChannels: l.outC,
		Kernel:      l.kernel,
		Input:       in,
		Weights:     l.w,
		Bias:        l.b,
		Output:      out,
		SE:          l.se,
		Activate:    l.relu,
		DT:          g.dt,
		Scratch:     g.scratch,
	}
	if l.skipAdd {
		a.Skip = skip
	}
	return kernels.Convolve(a)
}

func (l *convLayer) free() {
	freeSE(l.se)
	guda.Free(l.w)
	guda.Free(l.b)
}

// fusedResidual performs conv -> conv -> squeeze-excite -> skip-add -> relu
// in one graph node, staging the mid activation in scratch so the rotating
// buffers only see the block boundary.
type fusedResidual struct {
	w1, b1  guda.DevicePtr
	w2, b2  guda.DevicePtr
	se      *kernels.SEWeights
	filters int
}

func (l *fusedResidual) outputElems() int { return l.filters * kernels.BoardSquares }

func (l *fusedResidual) eval(g *Graph, batch int, out, in, _ guda.DevicePtr) error {
	mark := g.scratch.Mark()
	defer g.scratch.Release(mark)

	mid, err := g.scratch.Alloc(batch * l.filters * kernels.BoardSquares * g.dt.Size())
	if err != nil {
		return err
	}
	if err := kernels.Convolve(kernels.ConvArgs{
		Batch: batch, InChannels: l.filters, OutChannels: l.filters, Kernel: 3,
		Input: in, Weights: l.w1, Bias: l.b1, Output: mid,
		Activate: true, DT: g.dt, Scratch: g.scratch,
	}); err != nil {
		return err
	}
	return kernels.Convolve(kernels.ConvArgs{
		Batch: batch, InChannels: l.filters, OutChannels: l.filters, Kernel: 3,
		Input: mid, Weights: l.w2, Bias: l.b2, Output: out,
		Skip: in, SE: l.se, Activate: true, DT: g.dt, Scratch: g.scratch,
	})
}

func (l *fusedResidual) free() {
	freeSE(l.se)
	guda.Free(l.w1)
	guda.Free(l.b1)
	guda.Free(l.w2)
	guda.Free(l.b2)
}

// fcLayer is a fully-connected projection over flattened inputs; value and
// moves-left chains end in one with a head-specific final activation.
type fcLayer struct {
	w, b guda.DevicePtr
	in   int
	out  int
	act  kernels.Activation
}

func (l *fcLayer) outputElems() int { return l.out }

func (l *fcLayer) eval(g *Graph, batch int, out, in, _ guda.DevicePtr) error {
	return kernels.FullyConnected(kernels.FCArgs{
		Batch: batch, Inputs: l.in, Outputs: l.out,
		Input: in, Weights: l.w, Bias: l.b, Output: out,
		Activation: l.act, DT: g.dt, Scratch: g.scratch,
	})
}

func (l *fcLayer) free() {
	guda.Free(l.w)
	guda.Free(l.b)
}

// policyMapLayer scatters convolutional policy planes onto the vocabulary.
// It carries no weights; the remap table is shared process-wide.
type policyMapLayer struct {
	planes int
}

func (l *policyMapLayer) outputElems() int { return policyVocab }

func (l *policyMapLayer) eval(g *Graph, batch int, out, in, _ guda.DevicePtr) error {
	return kernels.PolicyMap(out, in, convPolicyMap, batch, l.planes, policyVocab, g.dt)
}

func (l *policyMapLayer) free() {}

func freeSE(se *kernels.SEWeights) {
	if se == nil {
		return
	}
	guda.Free(se.W1)
	guda.Free(se.B1)
	guda.Free(se.W2)
	guda.Free(se.B2)
}
