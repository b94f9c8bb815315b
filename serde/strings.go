package serde

import (
	"encoding/binary"
	"unicode/utf8"
)

type textCodec struct {
	max  int
	name string
	ok   func(string) bool
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// ASCII encodes strings of up to max ASCII bytes as a u32 length followed by
// max bytes, zero padded.
func ASCII(max int) Codec[string] {
	return textCodec{max: max, name: "ascii", ok: isASCII}
}

// UTF8 is ASCII for arbitrary UTF-8 with the capacity counted in bytes.
func UTF8(maxBytes int) Codec[string] {
	return textCodec{max: maxBytes, name: "utf8", ok: utf8.ValidString}
}

func (c textCodec) Size() int { return 4 + c.max }

func (c textCodec) Append(dst []byte, v string) ([]byte, error) {
	if len(v) > c.max {
		return nil, &CapacityError{What: c.name + " string", Len: len(v), Capacity: c.max}
	}
	if !c.ok(v) {
		return nil, decodeErr("%s string contains invalid characters", c.name)
	}
	dst = appendU32le(dst, uint32(len(v)))
	dst = append(dst, v...)
	return appendZeros(dst, c.max-len(v)), nil
}

func (c textCodec) Decode(b []byte) (string, error) {
	if err := checkSize(b, c.Size()); err != nil {
		return "", err
	}
	n, err := readCount(b, c.max, c.name+" string")
	if err != nil {
		return "", err
	}
	body := b[4:]
	if !allZero(body[n:]) {
		return "", decodeErr("%s string: non-zero padding", c.name)
	}
	s := string(body[:n])
	if !c.ok(s) {
		return "", decodeErr("%s string contains invalid characters", c.name)
	}
	return s, nil
}

func (textCodec) Default() string { return "" }

type wideCodec struct {
	max int
}

// Wide encodes strings of up to maxChars code points as a u32 count followed
// by maxChars 32-bit code points.
func Wide(maxChars int) Codec[string] {
	return wideCodec{max: maxChars}
}

func (c wideCodec) Size() int { return 4 + 4*c.max }

func (c wideCodec) Append(dst []byte, v string) ([]byte, error) {
	if !utf8.ValidString(v) {
		return nil, decodeErr("wide string is not valid UTF-8")
	}
	n := utf8.RuneCountInString(v)
	if n > c.max {
		return nil, &CapacityError{What: "wide string", Len: n, Capacity: c.max}
	}
	dst = appendU32le(dst, uint32(n))
	for _, r := range v {
		dst = appendU32le(dst, uint32(r))
	}
	return appendZeros(dst, 4*(c.max-n)), nil
}

func (c wideCodec) Decode(b []byte) (string, error) {
	if err := checkSize(b, c.Size()); err != nil {
		return "", err
	}
	n, err := readCount(b, c.max, "wide string")
	if err != nil {
		return "", err
	}
	body := b[4:]
	if !allZero(body[4*n:]) {
		return "", decodeErr("wide string: non-zero padding")
	}
	runes := make([]rune, n)
	for i := range runes {
		cp := binary.LittleEndian.Uint32(body[4*i:])
		r := rune(cp)
		if cp > utf8.MaxRune || !utf8.ValidRune(r) {
			return "", decodeErr("wide string: invalid code point 0x%x", cp)
		}
		runes[i] = r
	}
	return string(runes), nil
}

func (wideCodec) Default() string { return "" }
