package zkp

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"zkledger.dev/node/crypto"
	"zkledger.dev/node/witness"
)

type Proof []byte

// Backend proves a witness and verifies a proof against public commitments.
// Every implementation rejects the same witnesses.
type Backend interface {
	Name() string
	Prove(ctx context.Context, w *witness.Witness) (Proof, error)
	Verify(ctx context.Context, proof Proof, pub PublicInput) error
}

const MockName = "mock"

var (
	Verifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkledger_zkp_verifications_total",
			Help: "Proof verifications by backend and result.",
		},
		[]string{"backend", "result"},
	)
	Proofs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkledger_zkp_proofs_total",
			Help: "Proofs produced by backend and result.",
		},
		[]string{"backend", "result"},
	)
)

func init() {
	prometheus.MustRegister(Verifications)
	prometheus.MustRegister(Proofs)
}

// ObserveVerify records the outcome of a verification.
func ObserveVerify(backend string, err error) {
	Verifications.WithLabelValues(backend, resultLabel(err)).Inc()
}

func ObserveProve(backend string, err error) {
	Proofs.WithLabelValues(backend, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	var me *MismatchError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &me):
		return "mismatch"
	default:
		return "error"
	}
}

// Mock is the same-process backend: the proof is the witness itself and
// verification recomputes the leaves.
type Mock struct {
	Digest crypto.DigestService
	Logger *zap.Logger
}

func NewMock(ds crypto.DigestService, logger *zap.Logger) *Mock {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mock{Digest: ds, Logger: logger}
}

func (m *Mock) Name() string { return MockName }

func (m *Mock) Prove(ctx context.Context, w *witness.Witness) (proof Proof, err error) {
	defer func() { ObserveProve(MockName, err) }()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := w.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("zkp: encode witness: %w", err)
	}
	return b, nil
}

func (m *Mock) Verify(ctx context.Context, proof Proof, pub PublicInput) (err error) {
	defer func() { ObserveVerify(MockName, err) }()
	if err := ctx.Err(); err != nil {
		return err
	}
	var w witness.Witness
	if err := w.UnmarshalBinary(proof); err != nil {
		return err
	}
	if err := VerifyWitness(m.Digest, &w, pub); err != nil {
		m.Logger.Warn("witness rejected", zap.Stringer("tx", pub.TxID), zap.Error(err))
		return err
	}
	m.Logger.Debug("witness verified", zap.Stringer("tx", pub.TxID))
	return nil
}
