package p2p

import (
	"encoding/binary"
	"fmt"
)

// Bitcoin-style variable length integer.
func encodeCompactSize(n uint64) []byte {
	switch {
	case n < 0xfd:
		return []byte{byte(n)}
	case n <= 0xffff:
		return binary.LittleEndian.AppendUint16([]byte{0xfd}, uint16(n))
	case n <= 0xffffffff:
		return binary.LittleEndian.AppendUint32([]byte{0xfe}, uint32(n))
	default:
		return binary.LittleEndian.AppendUint64([]byte{0xff}, n)
	}
}

// readCompactSize rejects non-minimal encodings.
func readCompactSize(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, fmt.Errorf("p2p: compactsize: unexpected EOF")
	}
	var n uint64
	var used int
	var min uint64
	switch b[0] {
	case 0xfd:
		used, min = 3, 0xfd
	case 0xfe:
		used, min = 5, 0x10000
	case 0xff:
		used, min = 9, 0x100000000
	default:
		return uint64(b[0]), 1, nil
	}
	if len(b) < used {
		return 0, 0, fmt.Errorf("p2p: compactsize: unexpected EOF")
	}
	switch used {
	case 3:
		n = uint64(binary.LittleEndian.Uint16(b[1:3]))
	case 5:
		n = uint64(binary.LittleEndian.Uint32(b[1:5]))
	default:
		n = binary.LittleEndian.Uint64(b[1:9])
	}
	if n < min {
		return 0, 0, fmt.Errorf("p2p: compactsize: non-minimal encoding")
	}
	return n, used, nil
}
