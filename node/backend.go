package node

import (
	"fmt"

	"go.uber.org/zap"

	"zkledger.dev/node/crypto"
	"zkledger.dev/node/zkp"
	"zkledger.dev/node/zkp/groth16"
)

// NewBackend returns the proving backend named by cfg.Backend.
func NewBackend(cfg Config, ds crypto.DigestService, logger *zap.Logger) (zkp.Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Backend {
	case zkp.MockName:
		return zkp.NewMock(ds, logger.Named("mock")), nil
	case groth16.Name:
		return groth16.New(ds, cfg.KeyCacheSize, logger.Named("groth16"))
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
