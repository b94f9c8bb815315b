package crypto

import (
	"encoding/binary"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	bn254mimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// ChunkBytes is the number of payload bytes packed into one BN254 field
// element. 31 bytes always fit below the scalar field modulus.
const ChunkBytes = 31

// MiMC implements DigestService with the BN254 MiMC sponge so that every
// leaf can be recomputed inside a gnark circuit.
//
// Field-element layout:
//
//	32-byte values -> (lo, hi) 128-bit limbs
//	byte strings   -> len, then ceil(len/31) chunks of 31 bytes (last chunk zero padded on the right)
//	nonce = MiMC(salt_lo, salt_hi, group, index)
//	leaf  = MiMC(nonce_lo, nonce_hi, len, chunks...)
//	node  = MiMC(left_lo, left_hi, right_lo, right_hi)
//	hash  = MiMC(len, chunks...)
type MiMC struct{}

func (MiMC) Name() string { return MiMCBN254 }

func (MiMC) Hash(data []byte) [32]byte {
	elems := make([][fr.Bytes]byte, 0, 1+ChunkCount(len(data)))
	elems = append(elems, U64Element(uint64(len(data))))
	elems = append(elems, Chunks(data)...)
	return mimcSum(elems)
}

func (MiMC) Nonce(salt [32]byte, group uint32, index uint32) [32]byte {
	lo, hi := Limbs(salt)
	return mimcSum([][fr.Bytes]byte{lo, hi, U64Element(uint64(group)), U64Element(uint64(index))})
}

func (MiMC) Leaf(nonce [32]byte, component []byte) [32]byte {
	lo, hi := Limbs(nonce)
	elems := make([][fr.Bytes]byte, 0, 3+ChunkCount(len(component)))
	elems = append(elems, lo, hi, U64Element(uint64(len(component))))
	elems = append(elems, Chunks(component)...)
	return mimcSum(elems)
}

func (MiMC) Node(left, right [32]byte) [32]byte {
	llo, lhi := Limbs(left)
	rlo, rhi := Limbs(right)
	return mimcSum([][fr.Bytes]byte{llo, lhi, rlo, rhi})
}

// Limbs splits a big-endian 32-byte value into two field elements (lo, hi),
// each holding 16 bytes right-aligned.
func Limbs(b [32]byte) (lo, hi [fr.Bytes]byte) {
	copy(hi[16:], b[0:16])
	copy(lo[16:], b[16:32])
	return lo, hi
}

// U64Element encodes v as a big-endian field element.
func U64Element(v uint64) [fr.Bytes]byte {
	var out [fr.Bytes]byte
	binary.BigEndian.PutUint64(out[24:], v)
	return out
}

func ChunkCount(n int) int {
	return (n + ChunkBytes - 1) / ChunkBytes
}

// Chunks packs b into field elements of ChunkBytes payload bytes each. The
// payload occupies bytes [1:32] of every element so the leading byte is zero.
func Chunks(b []byte) [][fr.Bytes]byte {
	out := make([][fr.Bytes]byte, ChunkCount(len(b)))
	for i := range out {
		start := i * ChunkBytes
		end := start + ChunkBytes
		if end > len(b) {
			end = len(b)
		}
		copy(out[i][1:], b[start:end])
	}
	return out
}

func mimcSum(elems [][fr.Bytes]byte) [32]byte {
	h := bn254mimc.NewMiMC()
	for i := range elems {
		// Every element is canonical by construction (leading byte zero).
		if _, err := h.Write(elems[i][:]); err != nil {
			panic("crypto: non-canonical mimc input: " + err.Error())
		}
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
