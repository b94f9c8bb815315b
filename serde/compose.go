package serde

import (
	"bytes"
	"fmt"
)

type nullableCodec[T any] struct {
	inner Codec[T]
	pad   []byte
}

// Nullable encodes *T as a presence byte followed by the inner encoding.
// Absent values carry the inner default so the length is unchanged.
func Nullable[T any](inner Codec[T]) Codec[*T] {
	return nullableCodec[T]{inner: inner, pad: MustEncode(inner, inner.Default())}
}

func (c nullableCodec[T]) Size() int { return 1 + c.inner.Size() }

func (c nullableCodec[T]) Append(dst []byte, v *T) ([]byte, error) {
	if v == nil {
		dst = append(dst, 0)
		return append(dst, c.pad...), nil
	}
	return c.inner.Append(append(dst, 1), *v)
}

func (c nullableCodec[T]) Decode(b []byte) (*T, error) {
	if err := checkSize(b, c.Size()); err != nil {
		return nil, err
	}
	switch b[0] {
	case 0:
		if !bytes.Equal(b[1:], c.pad) {
			return nil, decodeErr("absent nullable carries a payload")
		}
		return nil, nil
	case 1:
		v, err := c.inner.Decode(b[1:])
		if err != nil {
			return nil, err
		}
		return &v, nil
	default:
		return nil, decodeErr("nullable flag 0x%02x", b[0])
	}
}

func (nullableCodec[T]) Default() *T { return nil }

type convertCodec[A, B any] struct {
	inner Codec[A]
	dec   func(A) (B, error)
	enc   func(B) (A, error)
}

// Convert adapts a codec of A into a codec of B.
//
// enc maps a B to its A representation before encoding; dec maps a decoded A
// back to B and may reject it.
func Convert[A, B any](inner Codec[A], dec func(A) (B, error), enc func(B) (A, error)) Codec[B] {
	return convertCodec[A, B]{inner: inner, dec: dec, enc: enc}
}

func (c convertCodec[A, B]) Size() int { return c.inner.Size() }

func (c convertCodec[A, B]) Append(dst []byte, v B) ([]byte, error) {
	a, err := c.enc(v)
	if err != nil {
		return nil, err
	}
	return c.inner.Append(dst, a)
}

func (c convertCodec[A, B]) Decode(b []byte) (B, error) {
	a, err := c.inner.Decode(b)
	if err != nil {
		var zero B
		return zero, err
	}
	return c.dec(a)
}

func (c convertCodec[A, B]) Default() B {
	v, err := c.dec(c.inner.Default())
	if err != nil {
		var zero B
		return zero
	}
	return v
}

// Field is one member of a Record codec.
type Field[T any] struct {
	name   string
	size   int
	append func(dst []byte, v *T) ([]byte, error)
	decode func(b []byte, v *T) error
	zero   func(v *T)
}

// NewField describes a struct member encoded with c. get reads the member
// and set stores a decoded value.
func NewField[T, F any](name string, c Codec[F], get func(*T) F, set func(*T, F)) Field[T] {
	return Field[T]{
		name: name,
		size: c.Size(),
		append: func(dst []byte, v *T) ([]byte, error) {
			return c.Append(dst, get(v))
		},
		decode: func(b []byte, v *T) error {
			f, err := c.Decode(b)
			if err != nil {
				return err
			}
			set(v, f)
			return nil
		},
		zero: func(v *T) { set(v, c.Default()) },
	}
}

type recordCodec[T any] struct {
	fields []Field[T]
	size   int
}

// Record encodes the fields of T back to back in declaration order.
func Record[T any](fields ...Field[T]) Codec[T] {
	size := 0
	for _, f := range fields {
		size += f.size
	}
	return recordCodec[T]{fields: fields, size: size}
}

func (c recordCodec[T]) Size() int { return c.size }

func (c recordCodec[T]) Append(dst []byte, v T) ([]byte, error) {
	var err error
	for _, f := range c.fields {
		if dst, err = f.append(dst, &v); err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
	}
	return dst, nil
}

func (c recordCodec[T]) Decode(b []byte) (T, error) {
	var out T
	if err := checkSize(b, c.size); err != nil {
		return out, err
	}
	off := 0
	for _, f := range c.fields {
		if err := f.decode(b[off:off+f.size], &out); err != nil {
			return out, fmt.Errorf("%s: %w", f.name, err)
		}
		off += f.size
	}
	return out, nil
}

func (c recordCodec[T]) Default() T {
	var out T
	for _, f := range c.fields {
		f.zero(&out)
	}
	return out
}
