// Package zkp checks witnesses against the public commitments of a
// transaction and defines the proving backend boundary.
package zkp

import (
	"encoding/binary"
	"errors"
	"fmt"

	"zkledger.dev/node/crypto"
	"zkledger.dev/node/ledger"
	"zkledger.dev/node/witness"
)

// PublicInput is what a verifier trusts independently of the witness.
// OutputHashes holds the leaf hash of every output, visible or not.
type PublicInput struct {
	TxID                ledger.SecureHash
	OutputHashes        []ledger.SecureHash
	InputUtxoHashes     []ledger.SecureHash
	ReferenceUtxoHashes []ledger.SecureHash
}

// UtxoHash is the commitment to a UTXO made by its producing transaction.
func UtxoHash(ds crypto.DigestService, u witness.UtxoInfo) ledger.SecureHash {
	return ds.Leaf(u.Nonce, u.Serialized)
}

// NewPublicInput derives the public input of wtx. The UTXO hashes are the
// producer commitments, in the order of wtx's inputs and references.
func NewPublicInput(wtx *ledger.WireTransaction, inputUtxoHashes, refUtxoHashes []ledger.SecureHash) PublicInput {
	return PublicInput{
		TxID:                wtx.ID(),
		OutputHashes:        wtx.LeafHashes(ledger.OutputsGroup),
		InputUtxoHashes:     append([]ledger.SecureHash(nil), inputUtxoHashes...),
		ReferenceUtxoHashes: append([]ledger.SecureHash(nil), refUtxoHashes...),
	}
}

var ErrPublicInputMalformed = errors.New("zkp: malformed public input")

// MarshalBinary layout: txid[32], then three lists of u32 count | count x [32]
// for outputs, input UTXOs and reference UTXOs.
func (p PublicInput) MarshalBinary() ([]byte, error) {
	n := 32 + 12 + 32*(len(p.OutputHashes)+len(p.InputUtxoHashes)+len(p.ReferenceUtxoHashes))
	out := make([]byte, 0, n)
	out = append(out, p.TxID[:]...)
	for _, hs := range [][]ledger.SecureHash{p.OutputHashes, p.InputUtxoHashes, p.ReferenceUtxoHashes} {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(hs)))
		for _, h := range hs {
			out = append(out, h[:]...)
		}
	}
	return out, nil
}

func (p *PublicInput) UnmarshalBinary(b []byte) error {
	if len(b) < 32 {
		return fmt.Errorf("%w: %d bytes", ErrPublicInputMalformed, len(b))
	}
	var out PublicInput
	copy(out.TxID[:], b[:32])
	off := 32
	for _, dst := range []*[]ledger.SecureHash{&out.OutputHashes, &out.InputUtxoHashes, &out.ReferenceUtxoHashes} {
		if off+4 > len(b) {
			return fmt.Errorf("%w: unexpected EOF", ErrPublicInputMalformed)
		}
		n := binary.LittleEndian.Uint32(b[off:])
		off += 4
		if uint64(n)*32 > uint64(len(b)-off) {
			return fmt.Errorf("%w: count %d overflows input", ErrPublicInputMalformed, n)
		}
		if n == 0 {
			continue
		}
		hs := make([]ledger.SecureHash, n)
		for i := range hs {
			copy(hs[i][:], b[off:off+32])
			off += 32
		}
		*dst = hs
	}
	if off != len(b) {
		return fmt.Errorf("%w: %d trailing bytes", ErrPublicInputMalformed, len(b)-off)
	}
	*p = out
	return nil
}
