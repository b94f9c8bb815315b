package groth16

import (
	"encoding/binary"
	"errors"
	"fmt"

	"zkledger.dev/node/witness"
)

// Shape fixes the structure of a leaf circuit: which outputs are visible and
// the length of every component the circuit hashes. Witnesses of equal shape
// share keys.
type Shape struct {
	Visible    []int
	OutputLens []int
	InputLens  []int
	RefLens    []int
}

var ErrShapeMalformed = errors.New("groth16: malformed shape")

func ShapeOf(w *witness.Witness) Shape {
	var s Shape
	for _, f := range w.Outputs {
		s.Visible = append(s.Visible, f.Label.Index)
		s.OutputLens = append(s.OutputLens, len(f.Bytes))
	}
	for _, f := range w.InputUtxos {
		s.InputLens = append(s.InputLens, len(f.Bytes))
	}
	for _, f := range w.ReferenceUtxos {
		s.RefLens = append(s.RefLens, len(f.Bytes))
	}
	return s
}

func (s Shape) lists() [][]int {
	return [][]int{s.Visible, s.OutputLens, s.InputLens, s.RefLens}
}

// MarshalBinary: four lists of u32 count | count x u32.
func (s Shape) MarshalBinary() ([]byte, error) {
	var out []byte
	for _, l := range s.lists() {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(l)))
		for _, v := range l {
			if v < 0 {
				return nil, fmt.Errorf("%w: negative value %d", ErrShapeMalformed, v)
			}
			// #nosec G115 -- checked non-negative above.
			out = binary.LittleEndian.AppendUint32(out, uint32(v))
		}
	}
	return out, nil
}

// parseShape decodes a shape from the front of b and returns the rest.
func parseShape(b []byte) (Shape, []byte, error) {
	var s Shape
	dsts := []*[]int{&s.Visible, &s.OutputLens, &s.InputLens, &s.RefLens}
	for _, dst := range dsts {
		if len(b) < 4 {
			return s, nil, fmt.Errorf("%w: unexpected EOF", ErrShapeMalformed)
		}
		n := binary.LittleEndian.Uint32(b)
		b = b[4:]
		if uint64(n)*4 > uint64(len(b)) {
			return s, nil, fmt.Errorf("%w: count %d overflows input", ErrShapeMalformed, n)
		}
		for i := uint32(0); i < n; i++ {
			*dst = append(*dst, int(binary.LittleEndian.Uint32(b)))
			b = b[4:]
		}
	}
	if err := s.validate(); err != nil {
		return s, nil, err
	}
	return s, b, nil
}

func (s Shape) validate() error {
	if len(s.Visible) != len(s.OutputLens) {
		return fmt.Errorf("%w: %d visible outputs, %d lengths", ErrShapeMalformed, len(s.Visible), len(s.OutputLens))
	}
	for k := 1; k < len(s.Visible); k++ {
		if s.Visible[k] <= s.Visible[k-1] {
			return fmt.Errorf("%w: visible indices not ascending", ErrShapeMalformed)
		}
	}
	return nil
}

func (s Shape) key() string {
	b, err := s.MarshalBinary()
	if err != nil {
		return ""
	}
	return string(b)
}
