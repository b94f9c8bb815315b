package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"zkledger.dev/node/crypto"
	"zkledger.dev/node/ledger"
	"zkledger.dev/node/node/p2p"
	"zkledger.dev/node/node/store"
	"zkledger.dev/node/resolver"
	"zkledger.dev/node/serde/registry"
	"zkledger.dev/node/zkp"
)

const userAgent = "zkledger-node/1"

// Service wires the store, proving backend, resolver and peer transport of
// one node.
type Service struct {
	Config     Config
	Logger     *zap.Logger
	Digest     crypto.DigestService
	Serializer *ledger.Serializer
	Store      *store.DB
	Backend    zkp.Backend
	Verifier   *TransactionVerifier
	Resolver   *resolver.Resolver
}

// NewService opens the store under cfg.DataDir. reg holds every contract
// type the node can decode.
func NewService(cfg Config, reg *registry.Registry, logger *zap.Logger) (*Service, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ds, err := crypto.New(cfg.Digest)
	if err != nil {
		return nil, err
	}
	backend, err := NewBackend(cfg, ds, logger)
	if err != nil {
		return nil, err
	}
	db, err := store.Open(cfg.DataDir, ds.Name())
	if err != nil {
		return nil, err
	}
	ser := ledger.NewSerializer(reg, cfg.Limits)
	v := &TransactionVerifier{
		Serializer: ser,
		Digest:     ds,
		Backend:    backend,
		Producers:  db,
		Logger:     logger.Named("verifier"),
	}
	fetchers := make(p2p.MultiFetcher, 0, len(cfg.Peers))
	for _, addr := range cfg.Peers {
		fetchers = append(fetchers, &p2p.PeerFetcher{
			Addr:      addr,
			Magic:     cfg.Magic,
			Digest:    ds,
			UserAgent: userAgent,
			Timeout:   cfg.RequestTimeout,
			Logger:    logger.Named("fetch"),
		})
	}
	res, err := resolver.New(fetchers, db, v, cfg.Resolver, logger.Named("resolver"))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Service{
		Config:     cfg,
		Logger:     logger,
		Digest:     ds,
		Serializer: ser,
		Store:      db,
		Backend:    backend,
		Verifier:   v,
		Resolver:   res,
	}, nil
}

func (s *Service) Close() error { return s.Store.Close() }

// Accept resolves the backchain of wtx, verifies wtx itself and records it
// as verified.
func (s *Service) Accept(ctx context.Context, wtx *ledger.WireTransaction) error {
	order, err := s.Resolver.Resolve(ctx, wtx)
	if err != nil {
		return err
	}
	if err := s.Verifier.VerifyTransaction(ctx, wtx); err != nil {
		return fmt.Errorf("verify %s: %w", wtx.ID(), err)
	}
	if err := s.Store.PutVerified(wtx); err != nil {
		return err
	}
	s.Logger.Info("transaction accepted", zap.Stringer("tx", wtx.ID()), zap.Int("backchain", len(order)))
	return nil
}

// Serve answers peer requests for verified transactions on cfg.BindAddr
// until ctx ends.
func (s *Service) Serve(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.Config.BindAddr)
	if err != nil {
		return err
	}
	s.Logger.Info("serving transactions", zap.Stringer("addr", ln.Addr()))
	if s.Config.MetricsAddr != "" {
		stop, err := s.serveMetrics(ctx)
		if err != nil {
			_ = ln.Close()
			return err
		}
		defer stop()
	}
	srv := &p2p.Server{
		Magic:       s.Config.Magic,
		Digest:      s.Digest,
		Source:      s.Store,
		UserAgent:   userAgent,
		IdleTimeout: s.Config.RequestTimeout,
		Logger:      s.Logger.Named("p2p"),
	}
	return srv.Serve(ctx, ln)
}

// serveMetrics exposes the prometheus default registry on /metrics at
// cfg.MetricsAddr. The returned func shuts the listener down.
func (s *Service) serveMetrics(ctx context.Context) (func(), error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.Config.MetricsAddr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error("metrics server", zap.Error(err))
		}
	}()
	s.Logger.Info("serving metrics", zap.Stringer("addr", ln.Addr()))
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}, nil
}
