package weights

import (
	"math"
	"math/rand"

	"nnevald/pkg/types"
)

// Topology describes the shape of a generated weight set. Zero-valued widths
// get the conventional defaults used by published nets of this family.
type Topology struct {
	Filters        int
	Blocks         int
	SEChannels     int // 0 disables squeeze-excite
	Policy         PolicyKind
	Value          ValueKind
	MovesLeft      bool
	PolicyChannels int
	ValueChannels  int
	ValueHidden    int
	MLHChannels    int
	MLHHidden      int
}

func (t Topology) withDefaults() Topology {
	if t.Filters == 0 {
		t.Filters = 64
	}
	if t.Blocks == 0 {
		t.Blocks = 6
	}
	if t.PolicyChannels == 0 {
		if t.Policy == PolicyConvolution {
			t.PolicyChannels = 73
		} else {
			t.PolicyChannels = 32
		}
	}
	if t.ValueChannels == 0 {
		t.ValueChannels = 32
	}
	if t.ValueHidden == 0 {
		t.ValueHidden = 128
	}
	if t.MLHChannels == 0 {
		t.MLHChannels = 8
	}
	if t.MLHHidden == 0 {
		t.MLHHidden = 64
	}
	return t
}

// Random builds a deterministic pseudo-random weight set for the topology.
// Weights are scaled by fan-in so forward passes stay in a sane numeric
// range; the same seed always yields the same set. Used by the gen-network
// tooling and by tests.
func Random(t Topology, seed int64) *Set {
	t = t.withDefaults()
	rng := rand.New(rand.NewSource(seed))

	s := &Set{
		Filters:    t.Filters,
		Blocks:     t.Blocks,
		SEChannels: t.SEChannels,
		Policy:     t.Policy,
		Value:      t.Value,
		MovesLeft:  t.MovesLeft,
	}
	s.Input = randConv(rng, types.InputPlanes, t.Filters, 3)
	s.Residual = make([]Residual, t.Blocks)
	for i := range s.Residual {
		s.Residual[i].Conv1 = randConv(rng, t.Filters, t.Filters, 3)
		s.Residual[i].Conv2 = randConv(rng, t.Filters, t.Filters, 3)
		if t.SEChannels > 0 {
			s.Residual[i].SE = SE{
				W1: randTensor(rng, t.SEChannels*t.Filters, t.Filters),
				B1: randTensor(rng, t.SEChannels, t.Filters),
				W2: randTensor(rng, 2*t.Filters*t.SEChannels, t.SEChannels),
				B2: randTensor(rng, 2*t.Filters, t.SEChannels),
			}
		}
	}
	if t.Policy == PolicyConvolution {
		s.Policy1 = randConv(rng, t.Filters, t.Filters, 3)
		s.PolicyConv = randConv(rng, t.Filters, t.PolicyChannels, 3)
	} else {
		s.PolicyConv = randConv(rng, t.Filters, t.PolicyChannels, 1)
		s.PolicyFC = randFC(rng, t.PolicyChannels*64, types.PolicyVocabulary)
	}
	s.ValueConv = randConv(rng, t.Filters, t.ValueChannels, 1)
	s.ValueFC1 = randFC(rng, t.ValueChannels*64, t.ValueHidden)
	valueOut := 1
	if t.Value == ValueWDL {
		valueOut = 3
	}
	s.ValueFC2 = randFC(rng, t.ValueHidden, valueOut)
	if t.MovesLeft {
		s.MLHConv = randConv(rng, t.Filters, t.MLHChannels, 1)
		s.MLHFC1 = randFC(rng, t.MLHChannels*64, t.MLHHidden)
		s.MLHFC2 = randFC(rng, t.MLHHidden, 1)
	}
	return s
}

func randTensor(rng *rand.Rand, n, fanIn int) []float32 {
	scale := float32(1.0 / math.Sqrt(float64(fanIn)))
	v := make([]float32, n)
	for i := range v {
		v[i] = (rng.Float32()*2 - 1) * scale
	}
	return v
}

func randConv(rng *rand.Rand, in, out, k int) Conv {
	return Conv{
		W: randTensor(rng, out*in*k*k, in*k*k),
		B: randTensor(rng, out, in*k*k),
	}
}

func randFC(rng *rand.Rand, in, out int) FC {
	return FC{
		W: randTensor(rng, out*in, in),
		B: randTensor(rng, out, in),
	}
}
