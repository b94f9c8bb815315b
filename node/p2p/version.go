package p2p

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

const (
	ProtocolVersionV1 = 1
	MaxUserAgentBytes = 256
	maxDigestBytes    = 64
)

// VersionPayload layout:
//
//	protocol_version u32le | digest (compactsize len | ascii) | nonce u64le |
//	user_agent (compactsize len | utf-8)
type VersionPayload struct {
	ProtocolVersion uint32
	Digest          string
	Nonce           uint64
	UserAgent       string
}

func EncodeVersionPayload(v VersionPayload) ([]byte, error) {
	if v.ProtocolVersion != ProtocolVersionV1 {
		return nil, fmt.Errorf("p2p: version: unsupported protocol_version")
	}
	if v.Digest == "" || len(v.Digest) > maxDigestBytes {
		return nil, fmt.Errorf("p2p: version: bad digest name")
	}
	if len(v.UserAgent) > MaxUserAgentBytes {
		return nil, fmt.Errorf("p2p: version: user_agent too long")
	}
	if !utf8.ValidString(v.UserAgent) {
		return nil, fmt.Errorf("p2p: version: user_agent must be UTF-8")
	}
	out := binary.LittleEndian.AppendUint32(nil, v.ProtocolVersion)
	out = append(out, encodeCompactSize(uint64(len(v.Digest)))...)
	out = append(out, v.Digest...)
	out = binary.LittleEndian.AppendUint64(out, v.Nonce)
	out = append(out, encodeCompactSize(uint64(len(v.UserAgent)))...)
	out = append(out, v.UserAgent...)
	return out, nil
}

func DecodeVersionPayload(b []byte) (*VersionPayload, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("p2p: version: truncated")
	}
	v := &VersionPayload{ProtocolVersion: binary.LittleEndian.Uint32(b)}
	off := 4
	str := func(limit uint64, what string) (string, error) {
		n, used, err := readCompactSize(b[off:])
		if err != nil {
			return "", err
		}
		if n > limit {
			return "", fmt.Errorf("p2p: version: %s too long", what)
		}
		off += used
		if len(b)-off < int(n) {
			return "", fmt.Errorf("p2p: version: truncated %s", what)
		}
		s := string(b[off : off+int(n)])
		off += int(n)
		return s, nil
	}
	var err error
	if v.Digest, err = str(maxDigestBytes, "digest"); err != nil {
		return nil, err
	}
	if len(b)-off < 8 {
		return nil, fmt.Errorf("p2p: version: truncated nonce")
	}
	v.Nonce = binary.LittleEndian.Uint64(b[off:])
	off += 8
	if v.UserAgent, err = str(MaxUserAgentBytes, "user_agent"); err != nil {
		return nil, err
	}
	if !utf8.ValidString(v.UserAgent) {
		return nil, fmt.Errorf("p2p: version: user_agent must be UTF-8")
	}
	if off != len(b) {
		return nil, fmt.Errorf("p2p: version: trailing bytes")
	}
	return v, nil
}
