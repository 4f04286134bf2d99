package weights

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"nnevald/pkg/types"
)

// Binary container constants. All fields are little-endian; tensors are raw
// float32 in the order the graph consumes them.
const (
	Magic   = 0x4257_4E4E // "NNWB"
	Version = 1
)

// fileHeader is the fixed-size header of a weight file.
type fileHeader struct {
	Magic      uint32
	Version    uint32
	Filters    uint32
	Blocks     uint32
	SEChannels uint32
	Policy     uint8
	Value      uint8
	MovesLeft  uint8
	Reserved   uint8
	// Head widths, needed to derive every tensor size below.
	PolicyChannels uint32
	ValueChannels  uint32
	ValueHidden    uint32
	MLHChannels    uint32
	MLHHidden      uint32
}

// ReadFile loads and validates a weight set from a file.
func ReadFile(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open weights: %w", err)
	}
	defer f.Close()
	s, err := Read(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Read deserializes a weight set, validating the header before any tensor is
// read and the full set before returning.
func Read(r io.Reader) (*Set, error) {
	var h fileHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("weights: read header: %w", err)
	}
	if h.Magic != Magic {
		return nil, fmt.Errorf("weights: bad magic %#x, want %#x", h.Magic, Magic)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("weights: unsupported version %d, want %d", h.Version, Version)
	}
	if h.Filters == 0 || h.Blocks == 0 {
		return nil, fmt.Errorf("weights: degenerate topology %dx%d", h.Filters, h.Blocks)
	}

	s := &Set{
		Filters:    int(h.Filters),
		Blocks:     int(h.Blocks),
		SEChannels: int(h.SEChannels),
		Policy:     PolicyKind(h.Policy),
		Value:      ValueKind(h.Value),
		MovesLeft:  h.MovesLeft != 0,
	}
	filters := s.Filters

	rd := tensorReader{r: r}
	s.Input = rd.conv(types.InputPlanes, filters, 3)
	s.Residual = make([]Residual, s.Blocks)
	for i := range s.Residual {
		s.Residual[i].Conv1 = rd.conv(filters, filters, 3)
		s.Residual[i].Conv2 = rd.conv(filters, filters, 3)
		if s.HasSE() {
			s.Residual[i].SE = SE{
				W1: rd.tensor(s.SEChannels * filters),
				B1: rd.tensor(s.SEChannels),
				W2: rd.tensor(2 * filters * s.SEChannels),
				B2: rd.tensor(2 * filters),
			}
		}
	}
	switch s.Policy {
	case PolicyConvolution:
		s.Policy1 = rd.conv(filters, filters, 3)
		s.PolicyConv = rd.conv(filters, int(h.PolicyChannels), 3)
	default:
		s.PolicyConv = rd.conv(filters, int(h.PolicyChannels), 1)
		s.PolicyFC = rd.fc(int(h.PolicyChannels)*64, types.PolicyVocabulary)
	}
	s.ValueConv = rd.conv(filters, int(h.ValueChannels), 1)
	s.ValueFC1 = rd.fc(int(h.ValueChannels)*64, int(h.ValueHidden))
	valueOut := 1
	if s.Value == ValueWDL {
		valueOut = 3
	}
	s.ValueFC2 = rd.fc(int(h.ValueHidden), valueOut)
	if s.MovesLeft {
		s.MLHConv = rd.conv(filters, int(h.MLHChannels), 1)
		s.MLHFC1 = rd.fc(int(h.MLHChannels)*64, int(h.MLHHidden))
		s.MLHFC2 = rd.fc(int(h.MLHHidden), 1)
	}
	if rd.err != nil {
		return nil, fmt.Errorf("weights: read tensors: %w", rd.err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// WriteFile serializes a weight set to a file.
func (s *Set) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create weights: %w", err)
	}
	bw := bufio.NewWriter(f)
	if err := s.Write(bw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write serializes a validated weight set.
func (s *Set) Write(w io.Writer) error {
	if err := s.Validate(); err != nil {
		return err
	}
	h := fileHeader{
		Magic:          Magic,
		Version:        Version,
		Filters:        uint32(s.Filters),
		Blocks:         uint32(s.Blocks),
		SEChannels:     uint32(s.SEChannels),
		Policy:         uint8(s.Policy),
		Value:          uint8(s.Value),
		PolicyChannels: uint32(s.PolicyConv.OutChannels()),
		ValueChannels:  uint32(s.ValueConv.OutChannels()),
		ValueHidden:    uint32(s.ValueFC1.Outputs()),
	}
	if s.MovesLeft {
		h.MovesLeft = 1
		h.MLHChannels = uint32(s.MLHConv.OutChannels())
		h.MLHHidden = uint32(s.MLHFC1.Outputs())
	}
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("weights: write header: %w", err)
	}

	wr := tensorWriter{w: w}
	wr.conv(s.Input)
	for _, r := range s.Residual {
		wr.conv(r.Conv1)
		wr.conv(r.Conv2)
		if s.HasSE() {
			wr.tensor(r.SE.W1)
			wr.tensor(r.SE.B1)
			wr.tensor(r.SE.W2)
			wr.tensor(r.SE.B2)
		}
	}
	if s.Policy == PolicyConvolution {
		wr.conv(s.Policy1)
		wr.conv(s.PolicyConv)
	} else {
		wr.conv(s.PolicyConv)
		wr.fc(s.PolicyFC)
	}
	wr.conv(s.ValueConv)
	wr.fc(s.ValueFC1)
	wr.fc(s.ValueFC2)
	if s.MovesLeft {
		wr.conv(s.MLHConv)
		wr.fc(s.MLHFC1)
		wr.fc(s.MLHFC2)
	}
	if wr.err != nil {
		return fmt.Errorf("weights: write tensors: %w", wr.err)
	}
	return nil
}

// tensorReader reads sized float32 tensors, latching the first error so call
// sites stay linear.
type tensorReader struct {
	r   io.Reader
	err error
}

func (t *tensorReader) tensor(n int) []float32 {
	if t.err != nil {
		return nil
	}
	buf := make([]float32, n)
	if err := binary.Read(t.r, binary.LittleEndian, buf); err != nil {
		t.err = err
		return nil
	}
	return buf
}

func (t *tensorReader) conv(in, out, k int) Conv {
	return Conv{W: t.tensor(out * in * k * k), B: t.tensor(out)}
}

func (t *tensorReader) fc(in, out int) FC {
	return FC{W: t.tensor(out * in), B: t.tensor(out)}
}

type tensorWriter struct {
	w   io.Writer
	err error
}

func (t *tensorWriter) tensor(v []float32) {
	if t.err != nil {
		return
	}
	t.err = binary.Write(t.w, binary.LittleEndian, v)
}

func (t *tensorWriter) conv(c Conv) { t.tensor(c.W); t.tensor(c.B) }
func (t *tensorWriter) fc(f FC)     { t.tensor(f.W); t.tensor(f.B) }
