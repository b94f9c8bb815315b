package groth16

import (
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
	"github.com/consensys/gnark/std/math/bits"

	"zkledger.dev/node/crypto"
	"zkledger.dev/node/ledger"
	"zkledger.dev/node/witness"
	"zkledger.dev/node/zkp"
)

const fieldBits = 254

// leafCircuit recomputes the MiMC leaf of every visible output and of every
// consumed or referenced UTXO, and equates each with a public hash.
type leafCircuit struct {
	OutputHashes        []frontend.Variable `gnark:",public"`
	InputUtxoHashes     []frontend.Variable `gnark:",public"`
	ReferenceUtxoHashes []frontend.Variable `gnark:",public"`

	Salt        [2]frontend.Variable
	Outputs     [][]frontend.Variable
	InputNonces [][2]frontend.Variable
	InputUtxos  [][]frontend.Variable
	RefNonces   [][2]frontend.Variable
	RefUtxos    [][]frontend.Variable

	shape Shape `gnark:"-"`
}

func newCircuit(s Shape) *leafCircuit {
	c := &leafCircuit{
		OutputHashes:        make([]frontend.Variable, len(s.Visible)),
		InputUtxoHashes:     make([]frontend.Variable, len(s.InputLens)),
		ReferenceUtxoHashes: make([]frontend.Variable, len(s.RefLens)),
		Outputs:             chunkSlots(s.OutputLens),
		InputNonces:         make([][2]frontend.Variable, len(s.InputLens)),
		InputUtxos:          chunkSlots(s.InputLens),
		RefNonces:           make([][2]frontend.Variable, len(s.RefLens)),
		RefUtxos:            chunkSlots(s.RefLens),
		shape:               s,
	}
	return c
}

func chunkSlots(lens []int) [][]frontend.Variable {
	out := make([][]frontend.Variable, len(lens))
	for i, n := range lens {
		out[i] = make([]frontend.Variable, crypto.ChunkCount(n))
	}
	return out
}

func (c *leafCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	hash := func(vs ...frontend.Variable) frontend.Variable {
		h.Reset()
		h.Write(vs...)
		return h.Sum()
	}
	leaf := func(lo, hi frontend.Variable, length int, chunks []frontend.Variable) frontend.Variable {
		for _, ch := range chunks {
			bits.ToBinary(api, ch, bits.WithNbDigits(8*crypto.ChunkBytes))
		}
		vs := append([]frontend.Variable{lo, hi, length}, chunks...)
		return hash(vs...)
	}

	for k, idx := range c.shape.Visible {
		nonce := hash(c.Salt[0], c.Salt[1], uint64(ledger.OutputsGroup), idx)
		nb := bits.ToBinary(api, nonce, bits.WithNbDigits(fieldBits))
		lo := api.FromBinary(nb[:128]...)
		hi := api.FromBinary(nb[128:]...)
		api.AssertIsEqual(leaf(lo, hi, c.shape.OutputLens[k], c.Outputs[k]), c.OutputHashes[k])
	}
	for j, n := range c.shape.InputLens {
		api.AssertIsEqual(leaf(c.InputNonces[j][0], c.InputNonces[j][1], n, c.InputUtxos[j]), c.InputUtxoHashes[j])
	}
	for j, n := range c.shape.RefLens {
		api.AssertIsEqual(leaf(c.RefNonces[j][0], c.RefNonces[j][1], n, c.RefUtxos[j]), c.ReferenceUtxoHashes[j])
	}
	return nil
}

func element(b [32]byte) *big.Int { return new(big.Int).SetBytes(b[:]) }

func limbs(b [32]byte) [2]frontend.Variable {
	lo, hi := crypto.Limbs(b)
	return [2]frontend.Variable{element(lo), element(hi)}
}

func fillChunks(dst []frontend.Variable, b []byte) {
	for i, ch := range crypto.Chunks(b) {
		dst[i] = element(ch)
	}
}

// assignWitness is the full assignment of w; public hashes are recomputed
// from the witness itself.
func assignWitness(ds crypto.DigestService, s Shape, w *witness.Witness) *leafCircuit {
	c := newCircuit(s)
	c.Salt = limbs(w.PrivacySalt)
	for k, f := range w.Outputs {
		fillChunks(c.Outputs[k], f.Bytes)
		// #nosec G115 -- label indexes are non-negative.
		nonce := ds.Nonce(w.PrivacySalt, uint32(ledger.OutputsGroup), uint32(f.Label.Index))
		c.OutputHashes[k] = element(ds.Leaf(nonce, f.Bytes))
	}
	for j, f := range w.InputUtxos {
		fillChunks(c.InputUtxos[j], f.Bytes)
		c.InputNonces[j] = limbs(w.InputNonces[j])
		c.InputUtxoHashes[j] = element(ds.Leaf(w.InputNonces[j], f.Bytes))
	}
	for j, f := range w.ReferenceUtxos {
		fillChunks(c.RefUtxos[j], f.Bytes)
		c.RefNonces[j] = limbs(w.ReferenceNonces[j])
		c.ReferenceUtxoHashes[j] = element(ds.Leaf(w.ReferenceNonces[j], f.Bytes))
	}
	return c
}

// assignPublic fills the public part from pub; private slots are zero.
func assignPublic(s Shape, pub zkp.PublicInput) *leafCircuit {
	c := newCircuit(s)
	zero := func(vs []frontend.Variable) {
		for i := range vs {
			vs[i] = 0
		}
	}
	c.Salt = [2]frontend.Variable{0, 0}
	for k, idx := range s.Visible {
		c.OutputHashes[k] = element(pub.OutputHashes[idx])
		zero(c.Outputs[k])
	}
	for j := range s.InputLens {
		c.InputUtxoHashes[j] = element(pub.InputUtxoHashes[j])
		c.InputNonces[j] = [2]frontend.Variable{0, 0}
		zero(c.InputUtxos[j])
	}
	for j := range s.RefLens {
		c.ReferenceUtxoHashes[j] = element(pub.ReferenceUtxoHashes[j])
		c.RefNonces[j] = [2]frontend.Variable{0, 0}
		zero(c.RefUtxos[j])
	}
	return c
}
