package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteDigest_KnownVectors(t *testing.T) {
	vectors := map[string]string{
		SHA256:     "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		SHA3_256:   "3a985da74fe225b2045c172d6bd390bd855f086e3e9d525b46bfe24511431532",
		BLAKE2b256: "bddd813c634239723171ef3fee98579b94964e3bb1cb3e427262c8c068d52319",
	}
	for name, want := range vectors {
		ds, err := New(name)
		require.NoError(t, err)
		sum := ds.Hash([]byte("abc"))
		assert.Equal(t, want, hex.EncodeToString(sum[:]), name)
		assert.Equal(t, name, ds.Name())
	}
}

func TestNew_UnknownAlgorithm(t *testing.T) {
	_, err := New("md5")
	require.Error(t, err)
	assert.Equal(t, []string{BLAKE2b256, MiMCBN254, SHA256, SHA3_256}, Names())
}

func TestNonce_BindsPosition(t *testing.T) {
	var salt [32]byte
	salt[0] = 0x42
	for _, name := range Names() {
		ds, err := New(name)
		require.NoError(t, err)

		a := ds.Nonce(salt, 1, 0)
		b := ds.Nonce(salt, 1, 1)
		c := ds.Nonce(salt, 2, 0)
		assert.NotEqual(t, a, b, name)
		assert.NotEqual(t, a, c, name)
		assert.Equal(t, a, ds.Nonce(salt, 1, 0), name)

		component := []byte("same bytes")
		assert.NotEqual(t, ds.Leaf(a, component), ds.Leaf(b, component), name)
		assert.NotEqual(t, ds.Node(a, b), ds.Node(b, a), name)
	}
}

func TestMiMC_LengthIsBound(t *testing.T) {
	ds := MiMC{}
	var nonce [32]byte
	nonce[31] = 7
	assert.NotEqual(t, ds.Leaf(nonce, []byte{0x01}), ds.Leaf(nonce, []byte{0x01, 0x00}))
	assert.NotEqual(t, ds.Hash(nil), ds.Hash([]byte{0x00}))
}

func TestChunks(t *testing.T) {
	b := make([]byte, ChunkBytes+2)
	for i := range b {
		b[i] = byte(i + 1)
	}
	chunks := Chunks(b)
	require.Len(t, chunks, 2)
	assert.Equal(t, byte(0), chunks[0][0])
	assert.Equal(t, byte(1), chunks[0][1])
	assert.Equal(t, byte(ChunkBytes), chunks[0][31])
	assert.Equal(t, byte(ChunkBytes+1), chunks[1][1])
	assert.Equal(t, byte(ChunkBytes+2), chunks[1][2])
	assert.Equal(t, byte(0), chunks[1][3])
	assert.Empty(t, Chunks(nil))
}

func TestLimbs(t *testing.T) {
	var b [32]byte
	for i := range b {
		b[i] = byte(i)
	}
	lo, hi := Limbs(b)
	assert.Equal(t, b[0:16], hi[16:])
	assert.Equal(t, b[16:32], lo[16:])
	assert.Equal(t, make([]byte, 16), lo[:16])
}
