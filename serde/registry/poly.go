package registry

import (
	"encoding/binary"
	"fmt"
	"reflect"

	"zkledger.dev/node/serde"
)

type polyCodec[T any] struct {
	reg   *Registry
	width int
}

// Poly encodes values of the interface type T as an i32 registry id followed
// by the concrete codec's payload, zero padded to width bytes.
//
// A nil value encodes as id 0 with an all-zero payload, which is what fills
// unused list slots. A variant whose codec is wider than width cannot be
// encoded.
func Poly[T any](r *Registry, width int) serde.Codec[T] {
	return polyCodec[T]{reg: r, width: width}
}

func (c polyCodec[T]) Size() int { return 4 + c.width }

func (c polyCodec[T]) Append(dst []byte, v T) ([]byte, error) {
	var buf [4]byte
	if isNil(v) {
		dst = append(dst, buf[:]...)
		return append(dst, make([]byte, c.width)...), nil
	}
	reg, err := c.reg.lookupType(reflect.TypeOf(any(v)))
	if err != nil {
		return nil, err
	}
	if reg.Codec.Size() > c.width {
		return nil, &serde.CapacityError{What: "variant " + reg.Name, Len: reg.Codec.Size(), Capacity: c.width}
	}
	// #nosec G115 -- reinterpretation of the signed id.
	binary.LittleEndian.PutUint32(buf[:], uint32(reg.ID))
	dst = append(dst, buf[:]...)
	if dst, err = reg.Codec.AppendAny(dst, any(v)); err != nil {
		return nil, fmt.Errorf("%s: %w", reg.Name, err)
	}
	return append(dst, make([]byte, c.width-reg.Codec.Size())...), nil
}

func (c polyCodec[T]) Decode(b []byte) (T, error) {
	var zero T
	if len(b) != c.Size() {
		return zero, fmt.Errorf("%w: got %d, want %d", serde.ErrSize, len(b), c.Size())
	}
	// #nosec G115 -- reinterpretation of the signed id.
	id := ID(int32(binary.LittleEndian.Uint32(b[0:4])))
	if id == 0 {
		for _, x := range b[4:] {
			if x != 0 {
				return zero, &serde.DecodeError{Msg: "nil variant carries a payload"}
			}
		}
		return zero, nil
	}
	reg, err := c.reg.RegistrationByID(id)
	if err != nil {
		return zero, err
	}
	size := reg.Codec.Size()
	if size > c.width {
		return zero, &serde.DecodeError{Msg: fmt.Sprintf("variant %s wider than %d", reg.Name, c.width)}
	}
	for _, x := range b[4+size:] {
		if x != 0 {
			return zero, &serde.DecodeError{Msg: "variant " + reg.Name + ": non-zero padding"}
		}
	}
	v, err := reg.Codec.DecodeAny(b[4 : 4+size])
	if err != nil {
		return zero, fmt.Errorf("%s: %w", reg.Name, err)
	}
	tv, ok := v.(T)
	if !ok {
		return zero, &serde.DecodeError{Msg: fmt.Sprintf("variant %s is not a %s", reg.Name, reflect.TypeFor[T]())}
	}
	return tv, nil
}

func (polyCodec[T]) Default() T {
	var zero T
	return zero
}

func isNil[T any](v T) bool {
	a := any(v)
	if a == nil {
		return true
	}
	rv := reflect.ValueOf(a)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func:
		return rv.IsNil()
	}
	return false
}
