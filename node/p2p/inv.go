package p2p

import (
	"encoding/binary"
	"fmt"

	"zkledger.dev/node/ledger"
)

const MaxInvEntries = 50_000

const InvTypeTx = 1

type InvVector struct {
	Type uint32
	Hash ledger.SecureHash
}

// TxInventory wraps transaction ids as inventory vectors.
func TxInventory(ids []ledger.SecureHash) []InvVector {
	out := make([]InvVector, len(ids))
	for i, id := range ids {
		out[i] = InvVector{Type: InvTypeTx, Hash: id}
	}
	return out
}

func EncodeInvPayload(vecs []InvVector) ([]byte, error) {
	if len(vecs) > MaxInvEntries {
		return nil, fmt.Errorf("p2p: inv: too many entries")
	}
	out := make([]byte, 0, 9+len(vecs)*(4+32))
	out = append(out, encodeCompactSize(uint64(len(vecs)))...)
	for _, v := range vecs {
		out = binary.LittleEndian.AppendUint32(out, v.Type)
		out = append(out, v.Hash[:]...)
	}
	return out, nil
}

func DecodeInvPayload(b []byte) ([]InvVector, error) {
	countU64, used, err := readCompactSize(b)
	if err != nil {
		return nil, err
	}
	if countU64 > MaxInvEntries {
		return nil, fmt.Errorf("p2p: inv: count exceeds MaxInvEntries")
	}
	count := int(countU64)
	if len(b) != used+count*(4+32) {
		return nil, fmt.Errorf("p2p: inv: length mismatch")
	}
	off := used
	out := make([]InvVector, 0, count)
	for i := 0; i < count; i++ {
		v := InvVector{Type: binary.LittleEndian.Uint32(b[off : off+4])}
		copy(v.Hash[:], b[off+4:off+36])
		off += 36
		out = append(out, v)
	}
	return out, nil
}
