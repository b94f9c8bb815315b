package node

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"zkledger.dev/node/crypto"
	"zkledger.dev/node/ledger"
	"zkledger.dev/node/witness"
	"zkledger.dev/node/zkp"
)

// ProducerSource returns verified transactions whose outputs are consumed
// or referenced.
type ProducerSource interface {
	GetVerified(id ledger.SecureHash) (*ledger.WireTransaction, bool, error)
}

// TransactionVerifier checks one backchain transaction: it builds the
// witness from the transaction and the UTXOs committed by its verified
// producers, proves it and verifies the proof against the producers' leaf
// hashes.
type TransactionVerifier struct {
	Serializer *ledger.Serializer
	Digest     crypto.DigestService
	Backend    zkp.Backend
	Producers  ProducerSource
	// Policy defaults to witness.AllVisible.
	Policy witness.VisibilityPolicy
	Logger *zap.Logger
}

func (v *TransactionVerifier) VerifyTransaction(ctx context.Context, wtx *ledger.WireTransaction) error {
	if err := wtx.Validate(); err != nil {
		return err
	}
	if wtx.Digest == nil || wtx.Digest.Name() != v.Digest.Name() {
		return fmt.Errorf("transaction digest does not match node digest %s", v.Digest.Name())
	}
	inputs, err := wtx.Inputs()
	if err != nil {
		return err
	}
	refs, err := wtx.References()
	if err != nil {
		return err
	}
	inUtxos, inHashes, err := v.utxos(inputs)
	if err != nil {
		return err
	}
	refUtxos, refHashes, err := v.utxos(refs)
	if err != nil {
		return err
	}

	policy := v.Policy
	if policy == nil {
		policy = witness.AllVisible
	}
	w, err := witness.Build(wtx, v.Serializer, policy, inUtxos, refUtxos)
	if err != nil {
		return err
	}
	pub := zkp.NewPublicInput(wtx, inHashes, refHashes)
	proof, err := v.Backend.Prove(ctx, w)
	if err != nil {
		return fmt.Errorf("prove: %w", err)
	}
	if err := v.Backend.Verify(ctx, proof, pub); err != nil {
		return err
	}
	if v.Logger != nil {
		v.Logger.Debug("transaction verified",
			zap.Stringer("tx", pub.TxID),
			zap.String("backend", v.Backend.Name()),
			zap.Int("proof_bytes", len(proof)))
	}
	return nil
}

func (v *TransactionVerifier) utxos(refs []ledger.StateRef) ([]witness.UtxoInfo, []ledger.SecureHash, error) {
	infos := make([]witness.UtxoInfo, 0, len(refs))
	hashes := make([]ledger.SecureHash, 0, len(refs))
	for _, ref := range refs {
		producer, ok, err := v.Producers.GetVerified(ref.TxID)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, fmt.Errorf("producer of %s is not verified", ref)
		}
		u, err := witness.UtxoOf(producer, int(ref.Index))
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", ref, err)
		}
		h, err := producer.ComponentHash(ledger.OutputsGroup, int(ref.Index))
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", ref, err)
		}
		infos = append(infos, u)
		hashes = append(hashes, h)
	}
	return infos, hashes, nil
}
