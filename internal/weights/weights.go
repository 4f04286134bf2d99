// Package weights holds the immutable weight-set container for a network and
// its binary file codec. A Set fully determines the head configuration of the
// graph built from it; nothing here touches device memory.
package weights

import (
	"fmt"

	"nnevald/pkg/types"
)

// PolicyKind selects the policy-head variant carried by a weight set.
type PolicyKind uint8

const (
	// PolicyClassical is a 1x1 convolution followed by a fully-connected
	// projection onto the move vocabulary.
	PolicyClassical PolicyKind = iota
	// PolicyConvolution is two 3x3 convolutions followed by a policy-map
	// remap onto the move vocabulary.
	PolicyConvolution
)

// ValueKind selects the value-head variant carried by a weight set.
type ValueKind uint8

const (
	// ValueClassical produces a single tanh-bounded scalar.
	ValueClassical ValueKind = iota
	// ValueWDL produces win/draw/loss logits, normalized host-side.
	ValueWDL
)

// Conv holds one convolution's weights, flattened [out][in][k][k], plus
// per-output-channel biases.
type Conv struct {
	W []float32
	B []float32
}

// OutChannels reports the number of output channels.
func (c Conv) OutChannels() int { return len(c.B) }

// FC holds one fully-connected layer's weights, flattened [out][in], plus
// per-output biases.
type FC struct {
	W []float32
	B []float32
}

// Outputs reports the number of output units.
func (f FC) Outputs() int { return len(f.B) }

// Inputs reports the number of input units.
func (f FC) Inputs() int {
	if len(f.B) == 0 {
		return 0
	}
	return len(f.W) / len(f.B)
}

// SE holds squeeze-excite weights for one residual block.
type SE struct {
	W1 []float32 // [se][channels]
	B1 []float32 // [se]
	W2 []float32 // [2*channels][se]
	B2 []float32 // [2*channels]
}

// Residual holds one residual block: two 3x3 convolutions and optional SE.
type Residual struct {
	Conv1 Conv
	Conv2 Conv
	SE    SE
}

// Set is a complete, immutable weight set. Head configuration is determined
// by the metadata fields and never changes after construction.
type Set struct {
	Filters    int
	Blocks     int
	SEChannels int // 0 means no squeeze-excite
	Policy     PolicyKind
	Value      ValueKind
	MovesLeft  bool

	Input    Conv // 3x3, input planes -> Filters
	Residual []Residual

	// Policy head. Convolutional variant uses Policy1 (3x3 Filters->Filters)
	// then PolicyConv (3x3 Filters->plane channels); classical uses
	// PolicyConv (1x1) then PolicyFC.
	Policy1    Conv
	PolicyConv Conv
	PolicyFC   FC

	// Value head: 1x1 conv, then two fully-connected layers. ValueFC2 has
	// one output (classical) or three (WDL).
	ValueConv Conv
	ValueFC1  FC
	ValueFC2  FC

	// Moves-left head, present when MovesLeft is set.
	MLHConv Conv
	MLHFC1  FC
	MLHFC2  FC
}

// HasSE reports whether the residual blocks carry squeeze-excite weights.
func (s *Set) HasSE() bool { return s.SEChannels > 0 }

// Validate checks structural consistency of the set. It is called by the
// codec on read and should be called on hand-built sets before use.
func (s *Set) Validate() error {
	if s.Filters <= 0 {
		return fmt.Errorf("weights: filters must be positive, got %d", s.Filters)
	}
	if s.Blocks <= 0 {
		return fmt.Errorf("weights: blocks must be positive, got %d", s.Blocks)
	}
	if len(s.Residual) != s.Blocks {
		return fmt.Errorf("weights: %d residual blocks declared, %d present", s.Blocks, len(s.Residual))
	}
	if s.Policy != PolicyClassical && s.Policy != PolicyConvolution {
		return fmt.Errorf("weights: unknown policy head kind %d", s.Policy)
	}
	if s.Value != ValueClassical && s.Value != ValueWDL {
		return fmt.Errorf("weights: unknown value head kind %d", s.Value)
	}
	if s.Input.OutChannels() != s.Filters {
		return fmt.Errorf("weights: input conv has %d channels, want %d", s.Input.OutChannels(), s.Filters)
	}
	if err := checkConv("input", s.Input, types.InputPlanes, s.Filters, 3); err != nil {
		return err
	}
	for i, r := range s.Residual {
		if err := checkConv(fmt.Sprintf("block %d conv1", i), r.Conv1, s.Filters, s.Filters, 3); err != nil {
			return err
		}
		if err := checkConv(fmt.Sprintf("block %d conv2", i), r.Conv2, s.Filters, s.Filters, 3); err != nil {
			return err
		}
		if s.HasSE() {
			if len(r.SE.W1) != s.SEChannels*s.Filters || len(r.SE.B1) != s.SEChannels {
				return fmt.Errorf("weights: block %d SE first layer shape mismatch", i)
			}
			if len(r.SE.W2) != 2*s.Filters*s.SEChannels || len(r.SE.B2) != 2*s.Filters {
				return fmt.Errorf("weights: block %d SE second layer shape mismatch", i)
			}
		}
	}
	switch s.Policy {
	case PolicyConvolution:
		if err := checkConv("policy1", s.Policy1, s.Filters, s.Filters, 3); err != nil {
			return err
		}
		if err := checkConv("policy", s.PolicyConv, s.Filters, s.PolicyConv.OutChannels(), 3); err != nil {
			return err
		}
	case PolicyClassical:
		if err := checkConv("policy", s.PolicyConv, s.Filters, s.PolicyConv.OutChannels(), 1); err != nil {
			return err
		}
		if s.PolicyFC.Inputs() != s.PolicyConv.OutChannels()*64 {
			return fmt.Errorf("weights: policy FC inputs %d, want %d", s.PolicyFC.Inputs(), s.PolicyConv.OutChannels()*64)
		}
	}
	if err := checkConv("value", s.ValueConv, s.Filters, s.ValueConv.OutChannels(), 1); err != nil {
		return err
	}
	if s.ValueFC1.Inputs() != s.ValueConv.OutChannels()*64 {
		return fmt.Errorf("weights: value FC1 inputs %d, want %d", s.ValueFC1.Inputs(), s.ValueConv.OutChannels()*64)
	}
	wantOut := 1
	if s.Value == ValueWDL {
		wantOut = 3
	}
	if s.ValueFC2.Outputs() != wantOut {
		return fmt.Errorf("weights: value FC2 outputs %d, want %d", s.ValueFC2.Outputs(), wantOut)
	}
	if s.ValueFC2.Inputs() != s.ValueFC1.Outputs() {
		return fmt.Errorf("weights: value FC2 inputs %d, want %d", s.ValueFC2.Inputs(), s.ValueFC1.Outputs())
	}
	if s.MovesLeft {
		if err := checkConv("moves-left", s.MLHConv, s.Filters, s.MLHConv.OutChannels(), 1); err != nil {
			return err
		}
		if s.MLHFC1.Inputs() != s.MLHConv.OutChannels()*64 {
			return fmt.Errorf("weights: moves-left FC1 inputs %d, want %d", s.MLHFC1.Inputs(), s.MLHConv.OutChannels()*64)
		}
		if s.MLHFC2.Outputs() != 1 {
			return fmt.Errorf("weights: moves-left FC2 outputs %d, want 1", s.MLHFC2.Outputs())
		}
	}
	return nil
}

func checkConv(name string, c Conv, in, out, k int) error {
	if c.OutChannels() != out {
		return fmt.Errorf("weights: %s conv has %d output channels, want %d", name, c.OutChannels(), out)
	}
	if in > 0 && len(c.W) != out*in*k*k {
		return fmt.Errorf("weights: %s conv has %d weights, want %d", name, len(c.W), out*in*k*k)
	}
	return nil
}
