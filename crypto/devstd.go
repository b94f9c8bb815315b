package crypto

import (
	"encoding/binary"

	sha256simd "github.com/minio/sha256-simd"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

const nodePrefix = 0x01

// ByteDigest implements DigestService over a plain 32-byte hash function.
//
// Preimages:
//
//	nonce = H(salt || u32_le(group) || u32_le(index))
//	leaf  = H(nonce || component)
//	node  = H(0x01 || left || right)
type ByteDigest struct {
	name string
	sum  func([]byte) [32]byte
}

func NewSHA256() ByteDigest {
	return ByteDigest{name: SHA256, sum: sha256simd.Sum256}
}

func NewSHA3() ByteDigest {
	return ByteDigest{name: SHA3_256, sum: func(b []byte) [32]byte {
		h := sha3.New256()
		_, _ = h.Write(b)
		var out [32]byte
		copy(out[:], h.Sum(nil))
		return out
	}}
}

func NewBLAKE2b() ByteDigest {
	return ByteDigest{name: BLAKE2b256, sum: blake2b.Sum256}
}

func (d ByteDigest) Name() string { return d.name }

func (d ByteDigest) Hash(data []byte) [32]byte { return d.sum(data) }

func (d ByteDigest) Nonce(salt [32]byte, group uint32, index uint32) [32]byte {
	var preimage [32 + 4 + 4]byte
	copy(preimage[:32], salt[:])
	binary.LittleEndian.PutUint32(preimage[32:36], group)
	binary.LittleEndian.PutUint32(preimage[36:40], index)
	return d.sum(preimage[:])
}

func (d ByteDigest) Leaf(nonce [32]byte, component []byte) [32]byte {
	preimage := make([]byte, 0, 32+len(component))
	preimage = append(preimage, nonce[:]...)
	preimage = append(preimage, component...)
	return d.sum(preimage)
}

func (d ByteDigest) Node(left, right [32]byte) [32]byte {
	var preimage [1 + 32 + 32]byte
	preimage[0] = nodePrefix
	copy(preimage[1:33], left[:])
	copy(preimage[33:], right[:])
	return d.sum(preimage[:])
}
