// Package groth16 is the BN254 Groth16 proving backend. Its circuit
// recomputes the MiMC leaf hashes of a witness, so it only accepts the
// mimc-bn254 digest.
package groth16

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	g16 "github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"zkledger.dev/node/crypto"
	"zkledger.dev/node/witness"
	"zkledger.dev/node/zkp"
)

const (
	Name = "groth16"

	proofVersion     uint16 = 1
	DefaultCacheSize        = 16
)

var (
	ErrDigest       = errors.New("groth16: backend requires the " + crypto.MiMCBN254 + " digest")
	ErrUnknownShape = errors.New("groth16: no keys for proof shape")
	ErrProofInvalid = errors.New("groth16: proof rejected")
	ErrMalformed    = errors.New("groth16: malformed proof")
)

type circuitKeys struct {
	ccs constraint.ConstraintSystem
	pk  g16.ProvingKey
	vk  g16.VerifyingKey
}

// Backend compiles one circuit per witness shape and keeps the most recently
// used keys. A proof can only be verified by the instance that set up its
// keys.
type Backend struct {
	digest crypto.DigestService
	logger *zap.Logger

	setupMu sync.Mutex
	keys    *lru.Cache[string, *circuitKeys]
}

func New(ds crypto.DigestService, cacheSize int, logger *zap.Logger) (*Backend, error) {
	if ds == nil || ds.Name() != crypto.MiMCBN254 {
		return nil, ErrDigest
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := lru.New[string, *circuitKeys](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Backend{digest: ds, logger: logger, keys: cache}, nil
}

func (b *Backend) Name() string { return Name }

func (b *Backend) setup(s Shape) (*circuitKeys, error) {
	b.setupMu.Lock()
	defer b.setupMu.Unlock()
	if k, ok := b.keys.Get(s.key()); ok {
		return k, nil
	}
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, newCircuit(s))
	if err != nil {
		return nil, fmt.Errorf("groth16: compile: %w", err)
	}
	pk, vk, err := g16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("groth16: setup: %w", err)
	}
	k := &circuitKeys{ccs: ccs, pk: pk, vk: vk}
	b.keys.Add(s.key(), k)
	b.logger.Info("circuit keys generated",
		zap.Int("constraints", ccs.GetNbConstraints()),
		zap.Int("visible_outputs", len(s.Visible)),
		zap.Int("input_utxos", len(s.InputLens)),
		zap.Int("reference_utxos", len(s.RefLens)))
	return k, nil
}

// Prove layout: u16 version | shape | gnark proof.
func (b *Backend) Prove(ctx context.Context, w *witness.Witness) (proof zkp.Proof, err error) {
	defer func() { zkp.ObserveProve(Name, err) }()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(w.InputNonces) != len(w.InputUtxos) || len(w.ReferenceNonces) != len(w.ReferenceUtxos) {
		return nil, &zkp.ShapeError{Msg: "utxo and nonce counts differ"}
	}
	s := ShapeOf(w)
	if err := s.validate(); err != nil {
		return nil, err
	}
	keys, err := b.setup(s)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := frontend.NewWitness(assignWitness(b.digest, s, w), ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("groth16: witness: %w", err)
	}
	p, err := g16.Prove(keys.ccs, keys.pk, full)
	if err != nil {
		return nil, fmt.Errorf("groth16: prove: %w", err)
	}

	shape, err := s.MarshalBinary()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Write(binary.LittleEndian.AppendUint16(nil, proofVersion))
	buf.Write(shape)
	if _, err := p.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("groth16: encode proof: %w", err)
	}
	return buf.Bytes(), nil
}

func (b *Backend) Verify(ctx context.Context, proof zkp.Proof, pub zkp.PublicInput) (err error) {
	defer func() { zkp.ObserveVerify(Name, err) }()
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(proof) < 2 || binary.LittleEndian.Uint16(proof) != proofVersion {
		return fmt.Errorf("%w: version", ErrMalformed)
	}
	s, rest, err := parseShape(proof[2:])
	if err != nil {
		return err
	}
	if len(s.InputLens) != len(pub.InputUtxoHashes) || len(s.RefLens) != len(pub.ReferenceUtxoHashes) {
		return &zkp.ShapeError{Msg: fmt.Sprintf("proof covers %d inputs and %d references, public input has %d and %d",
			len(s.InputLens), len(s.RefLens), len(pub.InputUtxoHashes), len(pub.ReferenceUtxoHashes))}
	}
	for _, idx := range s.Visible {
		if idx >= len(pub.OutputHashes) {
			return &zkp.ShapeError{Msg: fmt.Sprintf("output index %d of %d committed outputs", idx, len(pub.OutputHashes))}
		}
	}
	keys, ok := b.keys.Get(s.key())
	if !ok {
		return ErrUnknownShape
	}

	p := g16.NewProof(ecc.BN254)
	if _, err := p.ReadFrom(bytes.NewReader(rest)); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	public, err := frontend.NewWitness(assignPublic(s, pub), ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("groth16: public witness: %w", err)
	}
	if err := g16.Verify(p, keys.vk, public); err != nil {
		b.logger.Warn("proof rejected", zap.Stringer("tx", pub.TxID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrProofInvalid, err)
	}
	b.logger.Debug("proof verified", zap.Stringer("tx", pub.TxID))
	return nil
}
