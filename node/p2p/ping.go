package p2p

import (
	"encoding/binary"
	"fmt"
)

func EncodePing(nonce uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, nonce)
}

func DecodePing(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("p2p: ping: invalid payload length")
	}
	return binary.LittleEndian.Uint64(b), nil
}
