package p2p

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zkledger.dev/node/contracts/cash"
	"zkledger.dev/node/crypto"
	"zkledger.dev/node/ledger"
	"zkledger.dev/node/serde/registry"
)

type mapSource map[ledger.SecureHash]*ledger.WireTransaction

func (m mapSource) GetVerified(id ledger.SecureHash) (*ledger.WireTransaction, bool, error) {
	tx, ok := m[id]
	return tx, ok, nil
}

func sampleTxs(t *testing.T, ds crypto.DigestService, n int) []*ledger.WireTransaction {
	t.Helper()
	reg, err := registry.New(cash.Registrations()...)
	require.NoError(t, err)
	ser := ledger.NewSerializer(reg, ledger.DefaultLimits())
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	owner, err := ledger.ParsePublicKey(pub)
	require.NoError(t, err)
	var out []*ledger.WireTransaction
	for i := 0; i < n; i++ {
		wtx, err := ledger.NewTransactionBuilder(ser).
			SetNotary(ledger.Party{Name: "Notary", Key: owner}).
			AddOutputState(cash.State{Amount: int64(i), Currency: "JPY", Owner: owner}, cash.ContractName).
			AddCommand(cash.Issue{Nonce: uint64(i)}, owner).
			Build(ds)
		require.NoError(t, err)
		out = append(out, wtx)
	}
	return out
}

func startServer(t *testing.T, ds crypto.DigestService, src TxSource) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	srv := &Server{Magic: testMagic, Digest: ds, Source: src, IdleTimeout: 5 * time.Second}
	go func() { errc <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-errc)
	})
	return ln.Addr().String()
}

func TestPeerFetcher_FetchesAndReportsMissing(t *testing.T) {
	ds := sha(t)
	txs := sampleTxs(t, ds, 2)
	addr := startServer(t, ds, mapSource{txs[0].ID(): txs[0], txs[1].ID(): txs[1]})

	f := &PeerFetcher{Addr: addr, Magic: testMagic, Digest: ds, Timeout: 5 * time.Second}
	unknown := ledger.SecureHash{0xee}
	got, err := f.Fetch(context.Background(), []ledger.SecureHash{txs[1].ID(), unknown, txs[0].ID()})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, txs[1].ID(), got[0].ID())
	assert.Equal(t, txs[0].ID(), got[1].ID())
}

func TestPeerFetcher_DigestMismatch(t *testing.T) {
	ds := sha(t)
	addr := startServer(t, ds, mapSource{})
	other, err := crypto.New(crypto.SHA3_256)
	require.NoError(t, err)

	f := &PeerFetcher{Addr: addr, Magic: testMagic, Digest: other, Timeout: 2 * time.Second}
	_, err = f.Fetch(context.Background(), []ledger.SecureHash{{1}})
	require.Error(t, err)
}

func TestMultiFetcher_FallsBack(t *testing.T) {
	ds := sha(t)
	txs := sampleTxs(t, ds, 1)
	addr := startServer(t, ds, mapSource{txs[0].ID(): txs[0]})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	dead := ln.Addr().String()
	require.NoError(t, ln.Close())

	m := MultiFetcher{
		{Addr: dead, Magic: testMagic, Digest: ds, Timeout: time.Second},
		{Addr: addr, Magic: testMagic, Digest: ds, Timeout: 5 * time.Second},
	}
	got, err := m.Fetch(context.Background(), []ledger.SecureHash{txs[0].ID()})
	require.NoError(t, err)
	require.Len(t, got, 1)

	_, err = MultiFetcher{}.Fetch(context.Background(), nil)
	require.Error(t, err)
}

func TestMultiFetcher_AsksNextPeerForMissing(t *testing.T) {
	ds := sha(t)
	txs := sampleTxs(t, ds, 2)
	partial := startServer(t, ds, mapSource{txs[0].ID(): txs[0]})
	full := startServer(t, ds, mapSource{txs[0].ID(): txs[0], txs[1].ID(): txs[1]})
	empty := startServer(t, ds, mapSource{})

	m := MultiFetcher{
		{Addr: empty, Magic: testMagic, Digest: ds, Timeout: 5 * time.Second},
		{Addr: partial, Magic: testMagic, Digest: ds, Timeout: 5 * time.Second},
		{Addr: full, Magic: testMagic, Digest: ds, Timeout: 5 * time.Second},
	}
	got, err := m.Fetch(context.Background(), []ledger.SecureHash{txs[0].ID(), txs[1].ID()})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, txs[0].ID(), got[0].ID())
	assert.Equal(t, txs[1].ID(), got[1].ID())

	got, err = MultiFetcher{m[0]}.Fetch(context.Background(), []ledger.SecureHash{txs[0].ID()})
	require.NoError(t, err)
	assert.Empty(t, got)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	dead := ln.Addr().String()
	require.NoError(t, ln.Close())
	_, err = MultiFetcher{{Addr: dead, Magic: testMagic, Digest: ds, Timeout: time.Second}}.
		Fetch(context.Background(), []ledger.SecureHash{txs[0].ID()})
	require.Error(t, err)
}
