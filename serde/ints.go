package serde

import "encoding/binary"

type intCodec[T any] struct {
	size int
	put  func(b []byte, v T)
	get  func(b []byte) T
}

func (c intCodec[T]) Size() int { return c.size }

func (c intCodec[T]) Append(dst []byte, v T) ([]byte, error) {
	var buf [8]byte
	c.put(buf[:c.size], v)
	return append(dst, buf[:c.size]...), nil
}

func (c intCodec[T]) Decode(b []byte) (T, error) {
	if err := checkSize(b, c.size); err != nil {
		var zero T
		return zero, err
	}
	return c.get(b), nil
}

func (c intCodec[T]) Default() T {
	var zero T
	return zero
}

var (
	Int8 Codec[int8] = intCodec[int8]{1,
		func(b []byte, v int8) { b[0] = byte(v) },
		func(b []byte) int8 { return int8(b[0]) }}
	Int16 Codec[int16] = intCodec[int16]{2,
		func(b []byte, v int16) { binary.LittleEndian.PutUint16(b, uint16(v)) },
		func(b []byte) int16 { return int16(binary.LittleEndian.Uint16(b)) }}
	Int32 Codec[int32] = intCodec[int32]{4,
		func(b []byte, v int32) { binary.LittleEndian.PutUint32(b, uint32(v)) },
		func(b []byte) int32 { return int32(binary.LittleEndian.Uint32(b)) }}
	Int64 Codec[int64] = intCodec[int64]{8,
		func(b []byte, v int64) { binary.LittleEndian.PutUint64(b, uint64(v)) },
		func(b []byte) int64 { return int64(binary.LittleEndian.Uint64(b)) }}

	Uint8 Codec[uint8] = intCodec[uint8]{1,
		func(b []byte, v uint8) { b[0] = v },
		func(b []byte) uint8 { return b[0] }}
	Uint16 Codec[uint16] = intCodec[uint16]{2,
		func(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) },
		binary.LittleEndian.Uint16}
	Uint32 Codec[uint32] = intCodec[uint32]{4,
		func(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) },
		binary.LittleEndian.Uint32}
	Uint64 Codec[uint64] = intCodec[uint64]{8,
		func(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) },
		binary.LittleEndian.Uint64}
)

type boolCodec struct{}

// Bool encodes false as 0x00 and true as 0x01; any other byte fails to decode.
var Bool Codec[bool] = boolCodec{}

func (boolCodec) Size() int { return 1 }

func (boolCodec) Append(dst []byte, v bool) ([]byte, error) {
	if v {
		return append(dst, 1), nil
	}
	return append(dst, 0), nil
}

func (boolCodec) Decode(b []byte) (bool, error) {
	if err := checkSize(b, 1); err != nil {
		return false, err
	}
	switch b[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, decodeErr("bool byte 0x%02x", b[0])
	}
}

func (boolCodec) Default() bool { return false }
