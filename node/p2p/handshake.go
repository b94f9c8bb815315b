package p2p

import (
	"fmt"
	"net"
	"time"

	"zkledger.dev/node/crypto"
)

const HandshakeTimeout = 10 * time.Second

// Handshake sends our version, requires a peer version with the same
// protocol and digest, then exchanges verack. The caller closes conn.
func Handshake(conn net.Conn, ds crypto.DigestService, magic uint32, ours VersionPayload) (*VersionPayload, error) {
	if conn == nil {
		return nil, fmt.Errorf("p2p: handshake: nil conn")
	}
	ours.ProtocolVersion = ProtocolVersionV1
	ours.Digest = ds.Name()
	payload, err := EncodeVersionPayload(ours)
	if err != nil {
		return nil, err
	}
	if err := WriteMessage(conn, ds, magic, CmdVersion, payload); err != nil {
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Now().Add(HandshakeTimeout))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	var peer *VersionPayload
	for peer == nil {
		msg, rerr := ReadMessage(conn, ds, magic)
		if rerr != nil {
			if !rerr.Disconnect {
				continue
			}
			return nil, rerr
		}
		if msg.Command != CmdVersion {
			continue
		}
		v, err := DecodeVersionPayload(msg.Payload)
		if err != nil {
			return nil, err
		}
		if v.ProtocolVersion != ProtocolVersionV1 {
			return nil, fmt.Errorf("p2p: handshake: unsupported protocol_version %d", v.ProtocolVersion)
		}
		if v.Digest != ds.Name() {
			return nil, fmt.Errorf("p2p: handshake: peer digest %q, ours %q", v.Digest, ds.Name())
		}
		peer = v
	}

	if err := WriteMessage(conn, ds, magic, CmdVerack, nil); err != nil {
		return nil, err
	}
	for {
		msg, rerr := ReadMessage(conn, ds, magic)
		if rerr != nil {
			if !rerr.Disconnect {
				continue
			}
			return nil, rerr
		}
		switch msg.Command {
		case CmdVerack:
			if len(msg.Payload) != 0 {
				return nil, fmt.Errorf("p2p: handshake: verack payload must be empty")
			}
			return peer, nil
		case CmdVersion:
			return nil, fmt.Errorf("p2p: handshake: duplicate version")
		}
	}
}
