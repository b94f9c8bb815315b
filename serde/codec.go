// Package serde implements fixed-length codecs: the encoded length of a value
// depends only on its type and declared capacities, never on the value.
package serde

import (
	"errors"
	"fmt"
	"reflect"
)

// Codec encodes values of T into exactly Size() bytes.
//
// Decode requires an input of exactly Size() bytes. Default is the value used
// to fill unused collection slots and absent nullable payloads.
type Codec[T any] interface {
	Size() int
	Append(dst []byte, v T) ([]byte, error)
	Decode(b []byte) (T, error)
	Default() T
}

// AnyCodec is the type-erased view of a Codec stored by the type registry.
type AnyCodec interface {
	Type() reflect.Type
	Size() int
	AppendAny(dst []byte, v any) ([]byte, error)
	DecodeAny(b []byte) (any, error)
	DefaultAny() any
}

var (
	ErrSize = errors.New("serde: input length does not match codec size")
)

// CapacityError reports a value that does not fit the declared capacity of
// its codec. It is fatal to the encode call; values are never truncated.
type CapacityError struct {
	What     string
	Len      int
	Capacity int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("serde: %s length %d exceeds capacity %d", e.What, e.Len, e.Capacity)
}

type DecodeError struct {
	Msg string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return "serde: decode: " + e.Msg
}

func decodeErr(format string, args ...any) error {
	return &DecodeError{Msg: fmt.Sprintf(format, args...)}
}

// Encode returns the Size()-byte encoding of v.
func Encode[T any](c Codec[T], v T) ([]byte, error) {
	out, err := c.Append(make([]byte, 0, c.Size()), v)
	if err != nil {
		return nil, err
	}
	if len(out) != c.Size() {
		return nil, fmt.Errorf("serde: encoded %d bytes, codec size %d", len(out), c.Size())
	}
	return out, nil
}

// MustEncode is Encode for values known to fit, such as codec defaults.
func MustEncode[T any](c Codec[T], v T) []byte {
	out, err := Encode(c, v)
	if err != nil {
		panic(err)
	}
	return out
}

func checkSize(b []byte, size int) error {
	if len(b) != size {
		return fmt.Errorf("%w: got %d, want %d", ErrSize, len(b), size)
	}
	return nil
}

type erased[T any] struct {
	c Codec[T]
}

// Erase wraps c so it can be stored next to codecs of other types.
func Erase[T any](c Codec[T]) AnyCodec {
	return erased[T]{c: c}
}

func (e erased[T]) Type() reflect.Type { return reflect.TypeFor[T]() }

func (e erased[T]) Size() int { return e.c.Size() }

func (e erased[T]) AppendAny(dst []byte, v any) ([]byte, error) {
	tv, ok := v.(T)
	if !ok {
		return nil, fmt.Errorf("serde: value of type %T is not %s", v, e.Type())
	}
	return e.c.Append(dst, tv)
}

func (e erased[T]) DecodeAny(b []byte) (any, error) {
	return e.c.Decode(b)
}

func (e erased[T]) DefaultAny() any { return e.c.Default() }
