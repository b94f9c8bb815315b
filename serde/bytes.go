package serde

import (
	"encoding/binary"
	"time"
)

type bytesCodec struct {
	max int
}

// Bytes encodes byte strings of up to max bytes as a u32 length followed by
// max bytes, zero padded. A zero-length value decodes as nil.
func Bytes(max int) Codec[[]byte] {
	return bytesCodec{max: max}
}

func (c bytesCodec) Size() int { return 4 + c.max }

func (c bytesCodec) Append(dst []byte, v []byte) ([]byte, error) {
	if len(v) > c.max {
		return nil, &CapacityError{What: "bytes", Len: len(v), Capacity: c.max}
	}
	dst = appendU32le(dst, uint32(len(v)))
	dst = append(dst, v...)
	return appendZeros(dst, c.max-len(v)), nil
}

func (c bytesCodec) Decode(b []byte) ([]byte, error) {
	if err := checkSize(b, c.Size()); err != nil {
		return nil, err
	}
	n, err := readCount(b, c.max, "bytes")
	if err != nil {
		return nil, err
	}
	if !allZero(b[4+n:]) {
		return nil, decodeErr("bytes: non-zero padding")
	}
	if n == 0 {
		return nil, nil
	}
	return append([]byte(nil), b[4:4+n]...), nil
}

func (bytesCodec) Default() []byte { return nil }

type fixed32Codec struct{}

// Fixed32 encodes a 32-byte array verbatim.
var Fixed32 Codec[[32]byte] = fixed32Codec{}

func (fixed32Codec) Size() int { return 32 }

func (fixed32Codec) Append(dst []byte, v [32]byte) ([]byte, error) {
	return append(dst, v[:]...), nil
}

func (fixed32Codec) Decode(b []byte) ([32]byte, error) {
	var out [32]byte
	if err := checkSize(b, 32); err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

func (fixed32Codec) Default() [32]byte { return [32]byte{} }

type instantCodec struct{}

// Instant encodes a point in time as i64 seconds since the Unix epoch
// followed by u32 nanoseconds. Decoded values are in UTC.
var Instant Codec[time.Time] = instantCodec{}

func (instantCodec) Size() int { return 12 }

func (instantCodec) Append(dst []byte, v time.Time) ([]byte, error) {
	dst = appendU64le(dst, uint64(v.Unix()))
	return appendU32le(dst, uint32(v.Nanosecond())), nil
}

func (instantCodec) Decode(b []byte) (time.Time, error) {
	if err := checkSize(b, 12); err != nil {
		return time.Time{}, err
	}
	sec := int64(binary.LittleEndian.Uint64(b[0:8]))
	nanos := binary.LittleEndian.Uint32(b[8:12])
	if nanos >= 1_000_000_000 {
		return time.Time{}, decodeErr("instant nanos %d out of range", nanos)
	}
	return time.Unix(sec, int64(nanos)).UTC(), nil
}

func (instantCodec) Default() time.Time { return time.Unix(0, 0).UTC() }
