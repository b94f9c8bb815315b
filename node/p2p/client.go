package p2p

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"zkledger.dev/node/crypto"
	"zkledger.dev/node/ledger"
)

const DefaultRequestTimeout = 30 * time.Second

// PeerFetcher downloads transactions from one peer. Every Fetch dials a new
// connection, sends one getdata and waits until each requested id has been
// answered by tx or notfound.
type PeerFetcher struct {
	Addr      string
	Magic     uint32
	Digest    crypto.DigestService
	UserAgent string
	Timeout   time.Duration
	Logger    *zap.Logger
}

func (f *PeerFetcher) logger() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger
}

func (f *PeerFetcher) Fetch(ctx context.Context, ids []ledger.SecureHash) ([]*ledger.WireTransaction, error) {
	if f.Digest == nil {
		return nil, fmt.Errorf("p2p: fetcher: nil digest service")
	}
	logger := f.logger()
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", f.Addr)
	if err != nil {
		return nil, fmt.Errorf("p2p: dial %s: %w", f.Addr, err)
	}
	defer func() { _ = conn.Close() }()

	// Closing the conn unblocks reads when ctx ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	if _, err := Handshake(conn, f.Digest, f.Magic, VersionPayload{UserAgent: f.UserAgent}); err != nil {
		return nil, ctxOr(ctx, err)
	}
	req, err := EncodeInvPayload(TxInventory(ids))
	if err != nil {
		return nil, err
	}
	if err := WriteMessage(conn, f.Digest, f.Magic, CmdGetData, req); err != nil {
		return nil, ctxOr(ctx, err)
	}

	var out []*ledger.WireTransaction
	answered := 0
	for answered < len(ids) {
		msg, rerr := ReadMessage(conn, f.Digest, f.Magic)
		if rerr != nil {
			if rerr.Disconnect {
				return nil, ctxOr(ctx, rerr)
			}
			logger.Debug("dropped malformed message", zap.String("peer", f.Addr), zap.Error(rerr))
			continue
		}
		switch msg.Command {
		case CmdTx:
			wtx, err := ledger.UnmarshalWireTransaction(msg.Payload)
			if err != nil {
				return nil, fmt.Errorf("p2p: peer %s sent malformed tx: %w", f.Addr, err)
			}
			out = append(out, wtx)
			answered++
		case CmdNotFound:
			vecs, err := DecodeInvPayload(msg.Payload)
			if err != nil {
				return nil, fmt.Errorf("p2p: peer %s sent malformed notfound: %w", f.Addr, err)
			}
			answered += len(vecs)
			logger.Debug("peer is missing transactions", zap.String("peer", f.Addr), zap.Int("count", len(vecs)))
		case CmdPing:
			nonce, err := DecodePing(msg.Payload)
			if err != nil {
				continue
			}
			if err := WriteMessage(conn, f.Digest, f.Magic, CmdPong, EncodePing(nonce)); err != nil {
				return nil, ctxOr(ctx, err)
			}
		}
	}
	return out, nil
}

func ctxOr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// MultiFetcher asks each peer in turn for the ids no earlier peer
// delivered. An error is returned only when every peer failed.
type MultiFetcher []*PeerFetcher

func (m MultiFetcher) Fetch(ctx context.Context, ids []ledger.SecureHash) ([]*ledger.WireTransaction, error) {
	if len(m) == 0 {
		return nil, fmt.Errorf("p2p: no peers configured")
	}
	var (
		out      []*ledger.WireTransaction
		lastErr  error
		answered bool
	)
	delivered := make(map[ledger.SecureHash]bool, len(ids))
	outstanding := ids
	for _, f := range m {
		if len(outstanding) == 0 {
			break
		}
		txs, err := f.Fetch(ctx, outstanding)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			f.logger().Debug("peer fetch failed", zap.String("peer", f.Addr), zap.Error(err))
			lastErr = err
			continue
		}
		answered = true
		for _, tx := range txs {
			if id := tx.ID(); !delivered[id] {
				delivered[id] = true
				out = append(out, tx)
			}
		}
		var rest []ledger.SecureHash
		for _, id := range outstanding {
			if !delivered[id] {
				rest = append(rest, id)
			}
		}
		outstanding = rest
	}
	if !answered {
		return nil, lastErr
	}
	return out, nil
}
