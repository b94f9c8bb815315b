package zkp

import (
	"fmt"

	"zkledger.dev/node/crypto"
	"zkledger.dev/node/ledger"
	"zkledger.dev/node/witness"
)

type MismatchKind string

const (
	OutputMismatch    MismatchKind = "output"
	InputUtxoMismatch MismatchKind = "input-utxo"
	RefUtxoMismatch   MismatchKind = "reference-utxo"
)

// MismatchError reports a recomputed leaf that differs from its commitment.
// Index is the original output index for outputs and the position in the
// input or reference list for UTXOs.
type MismatchError struct {
	Kind     MismatchKind
	Index    int
	Expected ledger.SecureHash
	Actual   ledger.SecureHash
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("zkp: %s %d leaf mismatch: expected %s, recomputed %s", e.Kind, e.Index, e.Expected, e.Actual)
}

// ShapeError reports a witness whose element counts cannot be matched with
// the public input.
type ShapeError struct {
	Msg string
}

func (e *ShapeError) Error() string { return "zkp: witness shape: " + e.Msg }

// VerifyWitness recomputes every leaf the witness claims and compares it to
// pub. Outputs are bound to the salt through their nonces; UTXOs are bound
// through the nonces carried in the witness.
func VerifyWitness(ds crypto.DigestService, w *witness.Witness, pub PublicInput) error {
	if err := w.PrivacySalt.Validate(); err != nil {
		return err
	}
	last := -1
	for _, f := range w.Outputs {
		i := f.Label.Index
		if i <= last {
			return &ShapeError{Msg: fmt.Sprintf("output index %d out of order", i)}
		}
		if i >= len(pub.OutputHashes) {
			return &ShapeError{Msg: fmt.Sprintf("output index %d of %d committed outputs", i, len(pub.OutputHashes))}
		}
		last = i
		// #nosec G115 -- i is a non-negative bounded index.
		nonce := ds.Nonce(w.PrivacySalt, uint32(ledger.OutputsGroup), uint32(i))
		leaf := ledger.SecureHash(ds.Leaf(nonce, f.Bytes))
		if leaf != pub.OutputHashes[i] {
			return &MismatchError{Kind: OutputMismatch, Index: i, Expected: pub.OutputHashes[i], Actual: leaf}
		}
	}
	if err := verifyUtxos(ds, InputUtxoMismatch, w.InputUtxos, w.InputNonces, pub.InputUtxoHashes); err != nil {
		return err
	}
	return verifyUtxos(ds, RefUtxoMismatch, w.ReferenceUtxos, w.ReferenceNonces, pub.ReferenceUtxoHashes)
}

func verifyUtxos(ds crypto.DigestService, kind MismatchKind, utxos []witness.Field, nonces, committed []ledger.SecureHash) error {
	if len(utxos) != len(nonces) || len(utxos) != len(committed) {
		return &ShapeError{Msg: fmt.Sprintf("%s: %d contents, %d nonces, %d commitments", kind, len(utxos), len(nonces), len(committed))}
	}
	for j, u := range utxos {
		leaf := ledger.SecureHash(ds.Leaf(nonces[j], u.Bytes))
		if leaf != committed[j] {
			return &MismatchError{Kind: kind, Index: j, Expected: committed[j], Actual: leaf}
		}
	}
	return nil
}
