// Package resolver downloads and verifies the backchain of a transaction:
// every ancestor is fetched, stored as unverified, ordered so dependencies
// come first and then verified and recorded one by one.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"zkledger.dev/node/ledger"
)

// Fetcher downloads transactions by id. It may return them in any order.
type Fetcher interface {
	Fetch(ctx context.Context, ids []ledger.SecureHash) ([]*ledger.WireTransaction, error)
}

// Store is the durable transaction store. MarkVerified must be persisted
// before it returns.
type Store interface {
	PutUnverified(tx *ledger.WireTransaction) error
	GetUnverified(id ledger.SecureHash) (*ledger.WireTransaction, bool, error)
	IsVerified(id ledger.SecureHash) (bool, error)
	MarkVerified(id ledger.SecureHash) error
}

// TxVerifier checks one transaction whose dependencies are all verified.
type TxVerifier interface {
	VerifyTransaction(ctx context.Context, tx *ledger.WireTransaction) error
}

var ErrBackchainTooLarge = errors.New("resolver: backchain too large")

// MissingTransactionError reports ids the peer did not deliver. Fetching
// again may succeed.
type MissingTransactionError struct {
	IDs []ledger.SecureHash
}

func (e *MissingTransactionError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = id.String()
	}
	return "resolver: missing transactions: " + strings.Join(ids, ", ")
}

func (e *MissingTransactionError) Temporary() bool { return true }

// UnexpectedTransactionError reports a delivered transaction whose id was
// not requested in that batch.
type UnexpectedTransactionError struct {
	ID ledger.SecureHash
}

func (e *UnexpectedTransactionError) Error() string {
	return fmt.Sprintf("resolver: unexpected transaction %s", e.ID)
}

type Config struct {
	BatchSize       int `yaml:"batch_size"`
	MaxTransactions int `yaml:"max_transactions"`
}

func DefaultConfig() Config {
	return Config{BatchSize: 64, MaxTransactions: 5000}
}

var (
	fetchedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zkledger_resolver_fetched_transactions_total",
		Help: "Backchain transactions downloaded from peers.",
	})
	verifiedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkledger_resolver_verified_transactions_total",
			Help: "Backchain transactions verified, by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(fetchedTotal)
	prometheus.MustRegister(verifiedTotal)
}

type Resolver struct {
	fetcher  Fetcher
	store    Store
	verifier TxVerifier
	cfg      Config
	logger   *zap.Logger
}

func New(f Fetcher, s Store, v TxVerifier, cfg Config, logger *zap.Logger) (*Resolver, error) {
	if f == nil || s == nil || v == nil {
		return nil, errors.New("resolver: nil fetcher, store or verifier")
	}
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxTransactions <= 0 {
		cfg.MaxTransactions = def.MaxTransactions
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{fetcher: f, store: s, verifier: v, cfg: cfg, logger: logger}, nil
}

// Resolve makes every ancestor of root verified and returns the ids it
// verified, in verification order. root itself is neither stored nor
// verified. A resolution interrupted by an error or cancellation can be
// restarted: stored unverified transactions are not fetched again and
// verified ones are skipped.
func (r *Resolver) Resolve(ctx context.Context, root *ledger.WireTransaction) ([]ledger.SecureHash, error) {
	deps, err := root.Dependencies()
	if err != nil {
		return nil, errors.Wrap(err, "resolver: root dependencies")
	}
	sorter := NewTopologicalSort()
	txs := make(map[ledger.SecureHash]*ledger.WireTransaction)
	queued := make(map[ledger.SecureHash]struct{})
	var pending []ledger.SecureHash

	enqueue := func(ids []ledger.SecureHash) error {
		for _, id := range ids {
			if _, ok := queued[id]; ok {
				continue
			}
			queued[id] = struct{}{}
			ok, err := r.store.IsVerified(id)
			if err != nil {
				return errors.Wrapf(err, "resolver: lookup %s", id)
			}
			if !ok {
				pending = append(pending, id)
			}
		}
		return nil
	}
	accept := func(tx *ledger.WireTransaction) error {
		id := tx.ID()
		if sorter.Len() >= r.cfg.MaxTransactions {
			return errors.Wrapf(ErrBackchainTooLarge, "more than %d transactions", r.cfg.MaxTransactions)
		}
		txDeps, err := tx.Dependencies()
		if err != nil {
			return errors.Wrapf(err, "resolver: dependencies of %s", id)
		}
		if err := sorter.Add(id, txDeps); err != nil {
			return err
		}
		txs[id] = tx
		return enqueue(txDeps)
	}
	if err := enqueue(deps); err != nil {
		return nil, err
	}

	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var batch []ledger.SecureHash
		for len(pending) > 0 && len(batch) < r.cfg.BatchSize {
			id := pending[0]
			pending = pending[1:]
			tx, ok, err := r.store.GetUnverified(id)
			if err != nil {
				return nil, errors.Wrapf(err, "resolver: load %s", id)
			}
			if ok {
				if err := accept(tx); err != nil {
					return nil, err
				}
				continue
			}
			batch = append(batch, id)
		}
		if len(batch) == 0 {
			continue
		}
		if err := r.fetch(ctx, batch, accept); err != nil {
			return nil, err
		}
	}

	order, err := sorter.Complete()
	if err != nil {
		return nil, err
	}
	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.verifier.VerifyTransaction(ctx, txs[id]); err != nil {
			verifiedTotal.WithLabelValues("rejected").Inc()
			r.logger.Warn("backchain transaction rejected", zap.Stringer("tx", id), zap.Error(err))
			return nil, errors.Wrapf(err, "resolver: verify %s", id)
		}
		if err := r.store.MarkVerified(id); err != nil {
			return nil, errors.Wrapf(err, "resolver: record %s", id)
		}
		verifiedTotal.WithLabelValues("ok").Inc()
	}
	r.logger.Info("backchain resolved",
		zap.Stringer("root", root.ID()),
		zap.Int("verified", len(order)))
	return order, nil
}

// fetch downloads one batch and persists it before anything else happens.
func (r *Resolver) fetch(ctx context.Context, batch []ledger.SecureHash, accept func(*ledger.WireTransaction) error) error {
	r.logger.Debug("fetching backchain batch", zap.Int("count", len(batch)))
	got, err := r.fetcher.Fetch(ctx, batch)
	if err != nil {
		return errors.Wrap(err, "resolver: fetch")
	}
	byID := make(map[ledger.SecureHash]*ledger.WireTransaction, len(batch))
	for _, id := range batch {
		byID[id] = nil
	}
	for _, tx := range got {
		if tx == nil {
			continue
		}
		id := tx.ID()
		if prev, ok := byID[id]; !ok || prev != nil {
			return &UnexpectedTransactionError{ID: id}
		}
		if err := r.store.PutUnverified(tx); err != nil {
			return errors.Wrapf(err, "resolver: store %s", id)
		}
		byID[id] = tx
		fetchedTotal.Inc()
	}
	var missing []ledger.SecureHash
	for _, id := range batch {
		if byID[id] == nil {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return &MissingTransactionError{IDs: missing}
	}
	// Accept in request order so the final order does not depend on the peer.
	for _, id := range batch {
		if err := accept(byID[id]); err != nil {
			return err
		}
	}
	return nil
}
