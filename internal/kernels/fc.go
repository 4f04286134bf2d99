package kernels

import (
	"fmt"

	"github.com/LynnColeArt/guda"
)

// Activation selects the epilogue of a fully-connected layer.
type Activation uint8

const (
	ActNone Activation = iota
	ActReLU
	ActTanh
)

// FCArgs describes one fully-connected layer over flattened inputs.
type FCArgs struct {
	Batch   int
	Inputs  int
	Outputs int

	Input   guda.DevicePtr
	Weights guda.DevicePtr // [outputs][inputs]
	Bias    guda.DevicePtr
	Output  guda.DevicePtr

	Activation Activation
	DT         DataType
	Scratch    *Scratch
}

// FullyConnected computes output = act(input x weights^T + bias).
func FullyConnected(a FCArgs) error {
	if a.DT == Float32 {
		return fullyConnectedF32(a, a.Input, a.Weights, a.Bias, a.Output)
	}

	mark := a.Scratch.Mark()
	defer a.Scratch.Release(mark)

	in, err := a.Scratch.widen(a.Input, a.Batch*a.Inputs, a.DT)
	if err != nil {
		return err
	}
	w, err := a.Scratch.widen(a.Weights, a.Outputs*a.Inputs, a.DT)
	if err != nil {
		return err
	}
	bias, err := a.Scratch.widen(a.Bias, a.Outputs, a.DT)
	if err != nil {
		return err
	}
	out, host, err := a.Scratch.Floats(a.Batch * a.Outputs)
	if err != nil {
		return err
	}
	if err := fullyConnectedF32(a, in, w, bias, out); err != nil {
		return err
	}
	narrow(a.Output, host, a.DT)
	return nil
}

func fullyConnectedF32(a FCArgs, in, w, bias, out guda.DevicePtr) error {
	if err := guda.GEMM(false, true, a.Batch, a.Outputs, a.Inputs,
		1.0, in, a.Inputs, w, a.Inputs, 0.0, out, a.Outputs); err != nil {
		return fmt.Errorf("kernels: fc gemm: %w", err)
	}
	o := out.Float32()[:a.Batch*a.Outputs]
	b := bias.Float32()[:a.Outputs]
	for r := 0; r < a.Batch; r++ {
		row := o[r*a.Outputs : (r+1)*a.Outputs]
		for i := range row {
			v := row[i] + b[i]
			switch a.Activation {
			case ActReLU:
				if v < 0 {
					v = 0
				}
			case ActTanh:
				v = guda.TanhFloat32(v)
			}
			row[i] = v
		}
	}
	return nil
}
