package node

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zkledger.dev/node/contracts/cash"
	"zkledger.dev/node/crypto"
	"zkledger.dev/node/ledger"
	"zkledger.dev/node/node/p2p"
	"zkledger.dev/node/serde/registry"
	"zkledger.dev/node/zkp"
	"zkledger.dev/node/zkp/groth16"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New(cash.Registrations()...)
	require.NoError(t, err)
	return reg
}

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.BindAddr = "127.0.0.1:0"
	cfg.RequestTimeout = 5 * time.Second
	return cfg
}

// history: issue gives two states, split spends issue:0, merge spends
// issue:1 and references split:0, and tip spends merge:0.
type history struct {
	issue, split, merge, tip *ledger.WireTransaction
}

func newHistory(t *testing.T, ser *ledger.Serializer, ds crypto.DigestService) *history {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	owner, err := ledger.ParsePublicKey(pub)
	require.NoError(t, err)
	notary := ledger.Party{Name: "Notary", Key: owner}
	state := func(n int64) cash.State { return cash.State{Amount: n, Currency: "CHF", Owner: owner, Issuer: notary} }
	build := func(b *ledger.TransactionBuilder, cmd ledger.CommandData) *ledger.WireTransaction {
		wtx, err := b.SetNotary(notary).AddCommand(cmd, owner).Build(ds)
		require.NoError(t, err)
		return wtx
	}
	h := &history{}
	h.issue = build(ledger.NewTransactionBuilder(ser).
		AddOutputState(state(10), cash.ContractName).
		AddOutputState(state(20), cash.ContractName), cash.Issue{Nonce: 1})
	h.split = build(ledger.NewTransactionBuilder(ser).
		AddInput(ledger.StateRef{TxID: h.issue.ID(), Index: 0}).
		AddOutputState(state(4), cash.ContractName).
		AddOutputState(state(6), cash.ContractName), cash.Move{})
	h.merge = build(ledger.NewTransactionBuilder(ser).
		AddInput(ledger.StateRef{TxID: h.issue.ID(), Index: 1}).
		AddReference(ledger.StateRef{TxID: h.split.ID(), Index: 0}).
		AddOutputState(state(20), cash.ContractName), cash.Move{})
	h.tip = build(ledger.NewTransactionBuilder(ser).
		AddInput(ledger.StateRef{TxID: h.merge.ID(), Index: 0}).
		AddOutputState(state(20), cash.ContractName), cash.Move{})
	return h
}

func newService(t *testing.T, cfg Config) *Service {
	t.Helper()
	s, err := NewService(cfg, testRegistry(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func serve(t *testing.T, s *Service) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	srv := &p2p.Server{Magic: s.Config.Magic, Digest: s.Digest, Source: s.Store}
	go func() { errc <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-errc
	})
	return ln.Addr().String()
}

func TestService_AcceptResolvesBackchainFromPeer(t *testing.T) {
	origin := newService(t, testConfig(t))
	h := newHistory(t, origin.Serializer, origin.Digest)
	for _, tx := range []*ledger.WireTransaction{h.issue, h.split, h.merge} {
		require.NoError(t, origin.Store.PutVerified(tx))
	}

	cfg := testConfig(t)
	cfg.Peers = []string{serve(t, origin)}
	cfg.Resolver.BatchSize = 1
	node := newService(t, cfg)

	require.NoError(t, node.Accept(context.Background(), h.tip))
	for _, tx := range []*ledger.WireTransaction{h.issue, h.split, h.merge, h.tip} {
		ok, err := node.Store.IsVerified(tx.ID())
		require.NoError(t, err)
		assert.True(t, ok)
	}
	pending, err := node.Store.ListUnverified()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestService_AcceptWithoutPeers(t *testing.T) {
	s := newService(t, testConfig(t))
	h := newHistory(t, s.Serializer, s.Digest)
	require.NoError(t, s.Accept(context.Background(), h.issue))
	require.Error(t, s.Accept(context.Background(), h.merge))
}

func TestTransactionVerifier(t *testing.T) {
	s := newService(t, testConfig(t))
	h := newHistory(t, s.Serializer, s.Digest)
	ctx := context.Background()

	require.Error(t, s.Verifier.VerifyTransaction(ctx, h.split), "producer not verified")
	require.NoError(t, s.Store.PutVerified(h.issue))
	require.NoError(t, s.Verifier.VerifyTransaction(ctx, h.split))

	other, err := crypto.New(crypto.SHA3_256)
	require.NoError(t, err)
	foreign := newHistory(t, s.Serializer, other)
	require.Error(t, s.Verifier.VerifyTransaction(ctx, foreign.issue))

	beyond, err := ledger.NewTransactionBuilder(s.Serializer).
		SetNotary(ledger.Party{Name: "N", Key: ledger.PublicKey{}}).
		AddInput(ledger.StateRef{TxID: h.issue.ID(), Index: 7}).
		AddCommand(cash.Move{}).
		Build(s.Digest)
	require.NoError(t, err)
	require.Error(t, s.Verifier.VerifyTransaction(ctx, beyond))
}

func TestNewBackend(t *testing.T) {
	cfg := DefaultConfig()
	sha, err := crypto.New(crypto.SHA256)
	require.NoError(t, err)
	b, err := NewBackend(cfg, sha, nil)
	require.NoError(t, err)
	assert.Equal(t, zkp.MockName, b.Name())

	cfg.Backend = groth16.Name
	_, err = NewBackend(cfg, sha, nil)
	require.ErrorIs(t, err, groth16.ErrDigest)

	mimc, err := crypto.New(crypto.MiMCBN254)
	require.NoError(t, err)
	b, err = NewBackend(cfg, mimc, nil)
	require.NoError(t, err)
	assert.Equal(t, groth16.Name, b.Name())

	cfg.Backend = "plonk"
	_, err = NewBackend(cfg, sha, nil)
	require.Error(t, err)
}

func TestService_ServeStopsOnCancel(t *testing.T) {
	s := newService(t, testConfig(t))
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestNewService_DigestMismatchWithStore(t *testing.T) {
	cfg := testConfig(t)
	s, err := NewService(cfg, testRegistry(t), nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	cfg.Digest = crypto.BLAKE2b256
	_, err = NewService(cfg, testRegistry(t), nil)
	require.Error(t, err)
}

func TestService_ServeMetrics(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := testConfig(t)
	cfg.MetricsAddr = addr
	s := newService(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ctx) }()

	var body []byte
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, err = io.ReadAll(resp.Body)
		return err == nil && resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
	assert.Contains(t, string(body), "go_goroutines")

	cancel()
	require.NoError(t, <-errc)
}
