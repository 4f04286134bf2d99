package kernels

import (
	"fmt"

	"github.com/LynnColeArt/guda"
)

// SEWeights are the squeeze-excite parameters of one residual block, resident
// on device at the graph's data type.
type SEWeights struct {
	W1, B1 guda.DevicePtr // channels -> SE channels
	W2, B2 guda.DevicePtr // SE channels -> 2*channels (scale, shift)
	// Channels is the SE bottleneck width.
	Channels int
}

// ConvArgs describes one convolution over 8x8 feature maps. Kernel must be 1
// or 3; 3x3 convolutions are padded to preserve the spatial extent. When Skip
// is set the skip tensor is added after the convolution; when SE is set the
// squeeze-excite gate is applied fused with the skip-add, reading the
// convolution output for its global pooling.
type ConvArgs struct {
	Batch       int
	InChannels  int
	OutChannels int
	Kernel      int

	Input   guda.DevicePtr
	Weights guda.DevicePtr
	Bias    guda.DevicePtr
	Output  guda.DevicePtr
	Skip    guda.DevicePtr
	SE      *SEWeights

	Activate bool
	DT       DataType
	Scratch  *Scratch
}

// Convolve runs one convolution with its fused epilogue. Output must not
// alias Input; the buffer rotation upstream guarantees that.
func Convolve(a ConvArgs) error {
	if a.Kernel != 1 && a.Kernel != 3 {
		return fmt.Errorf("kernels: unsupported kernel size %d", a.Kernel)
	}
	if a.DT == Float32 {
		return convolveF32(a, a.Input, a.Weights, a.Bias, a.Skip, a.Output, a.SE)
	}

	mark := a.Scratch.Mark()
	defer a.Scratch.Release(mark)

	in, err := a.Scratch.widen(a.Input, a.Batch*a.InChannels*BoardSquares, a.DT)
	if err != nil {
		return err
	}
	w, err := a.Scratch.widen(a.Weights, a.OutChannels*a.InChannels*a.Kernel*a.Kernel, a.DT)
	if err != nil {
		return err
	}
	bias, err := a.Scratch.widen(a.Bias, a.OutChannels, a.DT)
	if err != nil {
		return err
	}
	var skip guda.DevicePtr
	if ptrSet(a.Skip) {
		if skip, err = a.Scratch.widen(a.Skip, a.Batch*a.OutChannels*BoardSquares, a.DT); err != nil {
			return err
		}
	}
	se := a.SE
	if se != nil {
		wide := *se
		if wide.W1, err = a.Scratch.widen(se.W1, se.Channels*a.OutChannels, a.DT); err != nil {
			return err
		}
		if wide.B1, err = a.Scratch.widen(se.B1, se.Channels, a.DT); err != nil {
			return err
		}
		if wide.W2, err = a.Scratch.widen(se.W2, 2*a.OutChannels*se.Channels, a.DT); err != nil {
			return err
		}
		if wide.B2, err = a.Scratch.widen(se.B2, 2*a.OutChannels, a.DT); err != nil {
			return err
		}
		se = &wide
	}
	n := a.Batch * a.OutChannels * BoardSquares
	out, host, err := a.Scratch.Floats(n)
	if err != nil {
		return err
	}
	if err := convolveF32(a, in, w, bias, skip, out, se); err != nil {
		return err
	}
	narrow(a.Output, host, a.DT)
	return nil
}

// convolveF32 is the float32 core: guda conv plus the fused epilogue. When
// the skip tensor aliases the output buffer (the non-fused residual rotation
// does this on purpose), the convolution lands in scratch first so the skip
// contents survive until the epilogue reads them.
func convolveF32(a ConvArgs, in, w, bias, skip, out guda.DevicePtr, se *SEWeights) error {
	n := a.Batch * a.OutChannels * BoardSquares
	if ptrSet(skip) && skip == out {
		mark := a.Scratch.Mark()
		defer a.Scratch.Release(mark)
		tmp, err := a.Scratch.Alloc(n * 4)
		if err != nil {
			return err
		}
		if err := convolveCore(a, in, w, bias, tmp); err != nil {
			return err
		}
		if se != nil {
			if err := squeezeExcite(tmp, skip, se, a.Batch, a.OutChannels, a.Scratch); err != nil {
				return err
			}
			return guda.Memcpy(out, tmp, n*4, guda.MemcpyDeviceToDevice)
		}
		if err := guda.AXPY(1.0, tmp, out, n); err != nil {
			return fmt.Errorf("kernels: skip add: %w", err)
		}
		if a.Activate {
			if err := guda.ReLU(out, n); err != nil {
				return fmt.Errorf("kernels: relu: %w", err)
			}
		}
		return nil
	}

	if err := convolveCore(a, in, w, bias, out); err != nil {
		return err
	}
	if se != nil {
		return squeezeExcite(out, skip, se, a.Batch, a.OutChannels, a.Scratch)
	}
	if ptrSet(skip) {
		if err := guda.AXPY(1.0, skip, out, n); err != nil {
			return fmt.Errorf("kernels: skip add: %w", err)
		}
	}
	if a.Activate {
		if err := guda.ReLU(out, n); err != nil {
			return fmt.Errorf("kernels: relu: %w", err)
		}
	}
	return nil
}

func convolveCore(a ConvArgs, in, w, bias, out guda.DevicePtr) error {
	params := &guda.ConvParams{
		BatchSize:    a.Batch,
		InChannels:   a.InChannels,
		InHeight:     8,
		InWidth:      8,
		OutChannels:  a.OutChannels,
		KernelHeight: a.Kernel,
		KernelWidth:  a.Kernel,
		StrideH:      1,
		StrideW:      1,
		PadH:         a.Kernel / 2,
		PadW:         a.Kernel / 2,
		DilationH:    1,
		DilationW:    1,
		UseBias:      true,
	}
	if err := guda.Conv2D(in, w, bias, out, params); err != nil {
		return fmt.Errorf("kernels: conv2d: %w", err)
	}
	return nil
}

// squeezeExcite applies the SE gate in place on out: global average pool per
// channel, two fully-connected layers, then out = relu(out*sigmoid(scale) +
// shift + skip). All pointers are float32.
func squeezeExcite(out, skip guda.DevicePtr, se *SEWeights, batch, channels int, scratch *Scratch) error {
	mark := scratch.Mark()
	defer scratch.Release(mark)

	pooledPtr, pooled, err := scratch.Floats(batch * channels)
	if err != nil {
		return err
	}
	hiddenPtr, hidden, err := scratch.Floats(batch * se.Channels)
	if err != nil {
		return err
	}
	gatesPtr, gates, err := scratch.Floats(batch * 2 * channels)
	if err != nil {
		return err
	}

	o := out.Float32()[:batch*channels*BoardSquares]
	for b := 0; b < batch; b++ {
		for c := 0; c < channels; c++ {
			base := (b*channels + c) * BoardSquares
			var sum float32
			for sq := 0; sq < BoardSquares; sq++ {
				sum += o[base+sq]
			}
			pooled[b*channels+c] = sum / BoardSquares
		}
	}

	// pooled [batch][channels] x W1 [se][channels]^T -> hidden [batch][se]
	if err := guda.GEMM(false, true, batch, se.Channels, channels,
		1.0, pooledPtr, channels, se.W1, channels, 0.0, hiddenPtr, se.Channels); err != nil {
		return fmt.Errorf("kernels: se fc1: %w", err)
	}
	b1 := se.B1.Float32()[:se.Channels]
	for b := 0; b < batch; b++ {
		for i := 0; i < se.Channels; i++ {
			v := hidden[b*se.Channels+i] + b1[i]
			if v < 0 {
				v = 0
			}
			hidden[b*se.Channels+i] = v
		}
	}

	// hidden [batch][se] x W2 [2*channels][se]^T -> gates [batch][2*channels]
	if err := guda.GEMM(false, true, batch, 2*channels, se.Channels,
		1.0, hiddenPtr, se.Channels, se.W2, se.Channels, 0.0, gatesPtr, 2*channels); err != nil {
		return fmt.Errorf("kernels: se fc2: %w", err)
	}
	b2 := se.B2.Float32()[:2*channels]

	var sk []float32
	if ptrSet(skip) {
		sk = skip.Float32()[:batch*channels*BoardSquares]
	}
	for b := 0; b < batch; b++ {
		for c := 0; c < channels; c++ {
			scale := guda.SigmoidFloat32(gates[b*2*channels+c] + b2[c])
			shift := gates[b*2*channels+channels+c] + b2[channels+c]
			base := (b*channels + c) * BoardSquares
			for sq := 0; sq < BoardSquares; sq++ {
				v := o[base+sq]*scale + shift
				if sk != nil {
					v += sk[base+sq]
				}
				if v < 0 {
					v = 0
				}
				o[base+sq] = v
			}
		}
	}
	return nil
}
