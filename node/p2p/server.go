package p2p

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"zkledger.dev/node/crypto"
	"zkledger.dev/node/ledger"
)

// TxSource looks up transactions that may be served to peers.
type TxSource interface {
	GetVerified(id ledger.SecureHash) (*ledger.WireTransaction, bool, error)
}

// Server answers getdata for verified transactions.
type Server struct {
	Magic       uint32
	Digest      crypto.DigestService
	Source      TxSource
	UserAgent   string
	IdleTimeout time.Duration
	Logger      *zap.Logger
}

// Serve accepts connections until ctx ends or ln fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	logger := s.logger()
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.handle(ctx, conn); err != nil && !errors.Is(err, context.Canceled) {
				logger.Debug("peer session ended", zap.Stringer("remote", conn.RemoteAddr()), zap.Error(err))
			}
		}()
	}
}

func (s *Server) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Server) handle(ctx context.Context, conn net.Conn) error {
	defer func() { _ = conn.Close() }()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	if _, err := Handshake(conn, s.Digest, s.Magic, VersionPayload{UserAgent: s.UserAgent}); err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.IdleTimeout))
		}
		msg, rerr := ReadMessage(conn, s.Digest, s.Magic)
		if rerr != nil {
			if rerr.Disconnect {
				return rerr
			}
			continue
		}
		switch msg.Command {
		case CmdGetData:
			vecs, err := DecodeInvPayload(msg.Payload)
			if err != nil {
				continue
			}
			if err := s.getData(conn, vecs); err != nil {
				return err
			}
		case CmdPing:
			nonce, err := DecodePing(msg.Payload)
			if err != nil {
				continue
			}
			if err := WriteMessage(conn, s.Digest, s.Magic, CmdPong, EncodePing(nonce)); err != nil {
				return err
			}
		}
	}
}

func (s *Server) getData(conn net.Conn, vecs []InvVector) error {
	var missing []InvVector
	for _, v := range vecs {
		if v.Type != InvTypeTx {
			missing = append(missing, v)
			continue
		}
		wtx, ok, err := s.Source.GetVerified(v.Hash)
		if err != nil {
			s.logger().Warn("transaction lookup failed", zap.Stringer("tx", v.Hash), zap.Error(err))
		}
		if err != nil || !ok {
			missing = append(missing, v)
			continue
		}
		b, err := wtx.MarshalBinary()
		if err != nil {
			missing = append(missing, v)
			continue
		}
		if err := WriteMessage(conn, s.Digest, s.Magic, CmdTx, b); err != nil {
			return err
		}
	}
	if len(missing) == 0 {
		return nil
	}
	payload, err := EncodeInvPayload(missing)
	if err != nil {
		return err
	}
	return WriteMessage(conn, s.Digest, s.Magic, CmdNotFound, payload)
}
