package serde

import "encoding/binary"

func appendU32le(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

func appendU64le(dst []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(dst, buf[:]...)
}

func appendZeros(dst []byte, n int) []byte {
	for i := 0; i < n; i++ {
		dst = append(dst, 0)
	}
	return dst
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// readCount reads the u32 count/length prefix and bounds it by capacity.
func readCount(b []byte, capacity int, what string) (int, error) {
	n := binary.LittleEndian.Uint32(b[0:4])
	if uint64(n) > uint64(capacity) {
		return 0, decodeErr("%s count %d exceeds capacity %d", what, n, capacity)
	}
	// #nosec G115 -- n is bounded by capacity above.
	return int(n), nil
}
