package nn

import (
	"fmt"

	"github.com/LynnColeArt/guda"

	"nnevald/internal/kernels"
	"nnevald/internal/weights"
	"nnevald/pkg/types"
)

const policyVocab = types.PolicyVocabulary

// MaxBatchLimit caps the configurable batch size. Larger arenas would be
// possible but nothing upstream ever submits more positions at once.
const MaxBatchLimit = 1024

// scratchFloor is the minimum scratch region size regardless of topology.
const scratchFloor = 1 << 20

// Precision selects the on-device element type of the tensor buffers and
// resident weights.
type Precision uint8

const (
	// PrecisionAuto picks full precision; the compute runtime widens to
	// float32 internally either way, so auto optimizes for accuracy over
	// memory.
	PrecisionAuto Precision = iota
	PrecisionFull
	PrecisionReduced
)

// ParsePrecision maps the configuration strings onto a Precision. The empty
// string means auto.
func ParsePrecision(s string) (Precision, error) {
	switch s {
	case "", "auto":
		return PrecisionAuto, nil
	case "full", "fp32":
		return PrecisionFull, nil
	case "reduced", "fp16":
		return PrecisionReduced, nil
	}
	return 0, fmt.Errorf("unknown precision %q", s)
}

func (p Precision) String() string {
	switch p {
	case PrecisionFull:
		return "full"
	case PrecisionReduced:
		return "reduced"
	}
	return "auto"
}

// FusionMode controls whether residual blocks execute as one graph node or
// as separate convolutions.
type FusionMode uint8

const (
	// FusionAuto fuses when the network is narrow enough for the block's
	// transient activations to live in scratch and the graph runs reduced
	// precision, matching where fusion actually pays off.
	FusionAuto FusionMode = iota
	FusionOn
	FusionOff
)

// ParseFusion maps the configuration strings onto a FusionMode. The empty
// string means auto.
func ParseFusion(s string) (FusionMode, error) {
	switch s {
	case "", "auto":
		return FusionAuto, nil
	case "on", "true":
		return FusionOn, nil
	case "off", "false":
		return FusionOff, nil
	}
	return 0, fmt.Errorf("unknown fusion mode %q", s)
}

func (m FusionMode) String() string {
	switch m {
	case FusionOn:
		return "on"
	case FusionOff:
		return "off"
	}
	return "auto"
}

// fusionFilterLimit is the widest network FusionAuto will fuse.
const fusionFilterLimit = 384

// Options configure graph construction.
type Options struct {
	// MaxBatch sizes the tensor arena; evaluations above it are rejected.
	MaxBatch int
	Precision Precision
	Fusion    FusionMode
	// MovesLeft enables the moves-left head when the weight set carries
	// one. Off by default.
	MovesLeft bool
}

// Graph is the compiled execution graph for one weight set: device-resident
// weights, the layer chains of the tower and heads, three rotating tensor
// buffers, and a shared scratch region. A Graph is not safe for concurrent
// Forward calls; the owning instance serializes access.
type Graph struct {
	dt         kernels.DataType
	fused      bool
	convPolicy bool
	wdl        bool
	movesLeft  bool

	filters      int
	blocks       int
	maxBatch     int
	policyPlanes int

	tower  []layer
	policy []layer
	value  []layer
	mlh    []layer

	buffers  [3]guda.DevicePtr
	bufBytes int

	scratchBuf guda.DevicePtr
	scratch    *kernels.Scratch
}

// NewGraph validates the weight set, resolves the precision and fusion
// choices, uploads every tensor to the device, and sizes the arena and
// scratch for MaxBatch positions.
func NewGraph(set *weights.Set, opts Options) (*Graph, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxBatch <= 0 || opts.MaxBatch > MaxBatchLimit {
		return nil, fmt.Errorf("max batch %d outside [1, %d]", opts.MaxBatch, MaxBatchLimit)
	}

	g := &Graph{
		filters:    set.Filters,
		blocks:     set.Blocks,
		maxBatch:   opts.MaxBatch,
		convPolicy: set.Policy == weights.PolicyConvolution,
		wdl:        set.Value == weights.ValueWDL,
		movesLeft:  opts.MovesLeft && set.MovesLeft,
	}
	if opts.MovesLeft && !set.MovesLeft {
		return nil, fmt.Errorf("network carries no moves-left head")
	}
	if g.convPolicy && set.PolicyConv.OutChannels() != ConvPolicyPlanes {
		return nil, fmt.Errorf("convolutional policy head emits %d planes, want %d",
			set.PolicyConv.OutChannels(), ConvPolicyPlanes)
	}

	switch opts.Precision {
	case PrecisionReduced:
		g.dt = kernels.Float16
	default:
		g.dt = kernels.Float32
	}
	switch opts.Fusion {
	case FusionOn:
		g.fused = true
	case FusionOff:
		g.fused = false
	default:
		g.fused = g.dt == kernels.Float16 && set.Filters <= fusionFilterLimit
	}

	ok := false
	defer func() {
		if !ok {
			g.Close()
		}
	}()

	if err := g.buildLayers(set); err != nil {
		return nil, err
	}

	g.bufBytes = g.arenaBufferBytes()
	for i := range g.buffers {
		p, err := guda.Malloc(g.bufBytes)
		if err != nil {
			return nil, fmt.Errorf("tensor buffer: %w", err)
		}
		g.buffers[i] = p
		kernels.Zero(p, g.bufBytes)
	}

	sb := g.scratchBytes(set)
	p, err := guda.Malloc(sb)
	if err != nil {
		return nil, fmt.Errorf("scratch region: %w", err)
	}
	g.scratchBuf = p
	g.scratch = kernels.NewScratch(p, sb)

	ok = true
	return g, nil
}

// buildLayers uploads every weight tensor and assembles the layer chains.
func (g *Graph) buildLayers(set *weights.Set) error {
	var err error
	upload := func(src []float32) guda.DevicePtr {
		if err != nil {
			return guda.DevicePtr{}
		}
		var p guda.DevicePtr
		if p, err = guda.Malloc(len(src) * g.dt.Size()); err != nil {
			err = fmt.Errorf("weight upload: %w", err)
			return guda.DevicePtr{}
		}
		kernels.Store(p, src, g.dt)
		return p
	}
	uploadSE := func(se weights.SE) *kernels.SEWeights {
		if !set.HasSE() {
			return nil
		}
		return &kernels.SEWeights{
			W1:       upload(se.W1),
			B1:       upload(se.B1),
			W2:       upload(se.W2),
			B2:       upload(se.B2),
			Channels: set.SEChannels,
		}
	}

	g.tower = append(g.tower, &convLayer{
		w: upload(set.Input.W), b: upload(set.Input.B),
		inC: types.InputPlanes, outC: set.Filters, kernel: 3, relu: true,
	})
	for _, r := range set.Residual {
		if g.fused {
			g.tower = append(g.tower, &fusedResidual{
				w1: upload(r.Conv1.W), b1: upload(r.Conv1.B),
				w2: upload(r.Conv2.W), b2: upload(r.Conv2.B),
				se: uploadSE(r.SE), filters: set.Filters,
			})
			continue
		}
		g.tower = append(g.tower,
			&convLayer{
				w: upload(r.Conv1.W), b: upload(r.Conv1.B),
				inC: set.Filters, outC: set.Filters, kernel: 3, relu: true,
			},
			&convLayer{
				w: upload(r.Conv2.W), b: upload(r.Conv2.B),
				inC: set.Filters, outC: set.Filters, kernel: 3,
				relu: true, skipAdd: true, se: uploadSE(r.SE),
			},
		)
	}

	if g.convPolicy {
		g.policyPlanes = ConvPolicyPlanes
		g.policy = append(g.policy,
			&convLayer{
				w: upload(set.Policy1.W), b: upload(set.Policy1.B),
				inC: set.Filters, outC: set.Filters, kernel: 3, relu: true,
			},
			&convLayer{
				w: upload(set.PolicyConv.W), b: upload(set.PolicyConv.B),
				inC: set.Filters, outC: ConvPolicyPlanes, kernel: 3,
			},
			&policyMapLayer{planes: ConvPolicyPlanes},
		)
	} else {
		g.policyPlanes = set.PolicyConv.OutChannels()
		g.policy = append(g.policy,
			&convLayer{
				w: upload(set.PolicyConv.W), b: upload(set.PolicyConv.B),
				inC: set.Filters, outC: g.policyPlanes, kernel: 1, relu: true,
			},
			&fcLayer{
				w: upload(set.PolicyFC.W), b: upload(set.PolicyFC.B),
				in: g.policyPlanes * kernels.BoardSquares, out: policyVocab,
			},
		)
	}

	valueAct := kernels.ActTanh
	if g.wdl {
		valueAct = kernels.ActNone
	}
	g.value = append(g.value,
		&convLayer{
			w: upload(set.ValueConv.W), b: upload(set.ValueConv.B),
			inC: set.Filters, outC: set.ValueConv.OutChannels(), kernel: 1, relu: true,
		},
		&fcLayer{
			w: upload(set.ValueFC1.W), b: upload(set.ValueFC1.B),
			in: set.ValueFC1.Inputs(), out: set.ValueFC1.Outputs(), act: kernels.ActReLU,
		},
		&fcLayer{
			w: upload(set.ValueFC2.W), b: upload(set.ValueFC2.B),
			in: set.ValueFC2.Inputs(), out: set.ValueFC2.Outputs(), act: valueAct,
		},
	)

	if g.movesLeft {
		g.mlh = append(g.mlh,
			&convLayer{
				w: upload(set.MLHConv.W), b: upload(set.MLHConv.B),
				inC: set.Filters, outC: set.MLHConv.OutChannels(), kernel: 1, relu: true,
			},
			&fcLayer{
				w: upload(set.MLHFC1.W), b: upload(set.MLHFC1.B),
				in: set.MLHFC1.Inputs(), out: set.MLHFC1.Outputs(), act: kernels.ActReLU,
			},
			&fcLayer{
				w: upload(set.MLHFC2.W), b: upload(set.MLHFC2.B),
				in: set.MLHFC2.Inputs(), out: set.MLHFC2.Outputs(), act: kernels.ActReLU,
			},
		)
	}
	return err
}

// arenaBufferBytes sizes one rotating buffer: the largest tensor any layer
// reads or writes, including the expanded input planes.
func (g *Graph) arenaBufferBytes() int {
	max := g.maxBatch * types.InputPlanes * kernels.BoardSquares * g.dt.Size()
	for _, chain := range [][]layer{g.tower, g.policy, g.value, g.mlh} {
		for _, l := range chain {
			if b := outputBytes(l, g.maxBatch, g.dt); b > max {
				max = b
			}
		}
	}
	return max
}

// scratchBytes sizes the shared scratch region for the most demanding single
// operator invocation: the fused residual block's transient activation plus
// the precision-widening carve of a 3x3 tower convolution, with the
// transformed-tensor and weight-footprint lower bounds applied on top.
func (g *Graph) scratchBytes(set *weights.Set) int {
	actElems := g.maxBatch * g.filters * kernels.BoardSquares

	maxWeight := 0
	walk := func(w []float32) {
		if len(w) > maxWeight {
			maxWeight = len(w)
		}
	}
	walk(set.Input.W)
	for _, r := range set.Residual {
		walk(r.Conv1.W)
		walk(r.Conv2.W)
	}
	walk(set.Policy1.W)
	walk(set.PolicyConv.W)
	walk(set.PolicyFC.W)
	walk(set.ValueConv.W)
	walk(set.ValueFC1.W)
	walk(set.ValueFC2.W)
	walk(set.MLHConv.W)
	walk(set.MLHFC1.W)
	walk(set.MLHFC2.W)

	const align = 64
	pad := func(n int) int { return (n+align-1)&^(align-1) + align }

	need := 0
	if g.fused {
		// Mid activation of the fused block, live across the second conv.
		need += pad(actElems * g.dt.Size())
	}
	// Conv-into-scratch staging when the skip tensor aliases the output.
	need += pad(actElems * 4)
	if g.dt == kernels.Float16 {
		// Widened input, skip, and float32 result of the widest conv.
		need += 3 * pad(actElems*4)
		// Widened weights and biases.
		need += pad(maxWeight*4) + pad(4*g.filters*4)
	}
	// Squeeze-excite pool, hidden, and gate rows.
	need += pad(g.maxBatch * (3*g.filters + set.SEChannels) * 4)

	// Transformed-space tensors of a fused 3x3 convolution pair.
	transformed := actElems * g.dt.Size() * 36 / 16
	if g.fused && 2*transformed > need {
		need = 2 * transformed
	}
	if w := 3 * maxWeight * g.dt.Size(); w > need {
		need = w
	}
	if need < scratchFloor {
		need = scratchFloor
	}
	return need
}

// MaxBatch reports the largest batch Forward accepts.
func (g *Graph) MaxBatch() int { return g.maxBatch }

// Fused reports whether residual blocks run as single graph nodes.
func (g *Graph) Fused() bool { return g.fused }

// Reduced reports whether tensors are stored in half precision.
func (g *Graph) Reduced() bool { return g.dt == kernels.Float16 }

// WDL reports whether the value head emits win/draw/loss logits.
func (g *Graph) WDL() bool { return g.wdl }

// HasMovesLeft reports whether the moves-left head is active.
func (g *Graph) HasMovesLeft() bool { return g.movesLeft }

// valueOutputs is 3 for WDL heads and 1 for classical ones.
func (g *Graph) valueOutputs() int {
	if g.wdl {
		return 3
	}
	return 1
}

// Close releases all device memory held by the graph. Safe to call on a
// partially constructed graph and idempotent.
func (g *Graph) Close() {
	for _, chain := range [][]layer{g.tower, g.policy, g.value, g.mlh} {
		for _, l := range chain {
			l.free()
		}
	}
	g.tower, g.policy, g.value, g.mlh = nil, nil, nil, nil
	for i, p := range g.buffers {
		if p != (guda.DevicePtr{}) {
			guda.Free(p)
			g.buffers[i] = guda.DevicePtr{}
		}
	}
	if g.scratchBuf != (guda.DevicePtr{}) {
		guda.Free(g.scratchBuf)
		g.scratchBuf = guda.DevicePtr{}
		g.scratch = nil
	}
}
