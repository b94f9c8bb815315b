package p2p

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unicode"

	"zkledger.dev/node/crypto"
)

const (
	// TransportPrefixBytes is the fixed header length for every message:
	// magic u32be | command [12] | payload length u32le | checksum [4].
	TransportPrefixBytes = 24
	CommandBytes         = 12

	MaxRelayMsgBytes = 8_388_608
)

type Message struct {
	Magic   uint32
	Command string
	Payload []byte
}

// ReadError tells the caller whether the connection is still usable after a
// malformed message.
type ReadError struct {
	Err        error
	Disconnect bool
}

func (e *ReadError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ReadError) Unwrap() error { return e.Err }

// checksum4 is the first four bytes of the node digest of payload.
func checksum4(ds crypto.DigestService, payload []byte) [4]byte {
	d := ds.Hash(payload)
	var out [4]byte
	copy(out[:], d[:4])
	return out
}

func validCommandByte(c byte) bool {
	return c < 0x80 && c != 0x00 && unicode.IsPrint(rune(c))
}

func encodeCommand(cmd string) ([CommandBytes]byte, error) {
	var out [CommandBytes]byte
	if cmd == "" {
		return out, fmt.Errorf("p2p: empty command")
	}
	if len(cmd) > CommandBytes {
		return out, fmt.Errorf("p2p: command too long")
	}
	for i := 0; i < len(cmd); i++ {
		if !validCommandByte(cmd[i]) {
			return out, fmt.Errorf("p2p: command contains non-printable ASCII")
		}
		out[i] = cmd[i]
	}
	return out, nil
}

// decodeCommand accepts printable ASCII right-padded with NUL.
func decodeCommand(b [CommandBytes]byte) (string, error) {
	n := bytes.IndexByte(b[:], 0x00)
	if n < 0 {
		n = CommandBytes
	}
	for i := n; i < CommandBytes; i++ {
		if b[i] != 0x00 {
			return "", fmt.Errorf("p2p: command not NUL-right-padded")
		}
	}
	if n == 0 {
		return "", fmt.Errorf("p2p: empty command")
	}
	for i := 0; i < n; i++ {
		if !validCommandByte(b[i]) {
			return "", fmt.Errorf("p2p: command contains non-printable ASCII")
		}
	}
	return string(b[:n]), nil
}

func WriteMessage(w io.Writer, ds crypto.DigestService, magic uint32, command string, payload []byte) error {
	if ds == nil {
		return fmt.Errorf("p2p: nil digest service")
	}
	cmd12, err := encodeCommand(command)
	if err != nil {
		return err
	}
	if uint64(len(payload)) > MaxRelayMsgBytes {
		return fmt.Errorf("p2p: payload too large")
	}
	c4 := checksum4(ds, payload)

	var hdr [TransportPrefixBytes]byte
	binary.BigEndian.PutUint32(hdr[0:4], magic)
	copy(hdr[4:16], cmd12[:])
	binary.LittleEndian.PutUint32(hdr[16:20], uint32(len(payload))) // #nosec G115 -- bounded by MaxRelayMsgBytes.
	copy(hdr[20:24], c4[:])

	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err = w.Write(payload)
	return err
}

// ReadMessage reads exactly one message from r.
//
//   - magic mismatch, oversize length or truncation: disconnect
//   - bad command or checksum: drop the message, keep the connection
func ReadMessage(r io.Reader, ds crypto.DigestService, expectedMagic uint32) (*Message, *ReadError) {
	if ds == nil {
		return nil, &ReadError{Err: fmt.Errorf("p2p: nil digest service"), Disconnect: true}
	}

	var hdr [TransportPrefixBytes]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, &ReadError{Err: err, Disconnect: true}
	}
	magic := binary.BigEndian.Uint32(hdr[0:4])
	if magic != expectedMagic {
		return nil, &ReadError{Err: fmt.Errorf("p2p: magic mismatch"), Disconnect: true}
	}
	payloadLen := binary.LittleEndian.Uint32(hdr[16:20])
	if payloadLen > MaxRelayMsgBytes {
		return nil, &ReadError{Err: fmt.Errorf("p2p: payload length exceeds %d", MaxRelayMsgBytes), Disconnect: true}
	}
	payload := make([]byte, int(payloadLen))
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, &ReadError{Err: err, Disconnect: true}
		}
	}

	var cmdBytes [CommandBytes]byte
	copy(cmdBytes[:], hdr[4:16])
	cmd, err := decodeCommand(cmdBytes)
	if err != nil {
		return nil, &ReadError{Err: err}
	}
	c4 := checksum4(ds, payload)
	if !bytes.Equal(hdr[20:24], c4[:]) {
		return nil, &ReadError{Err: fmt.Errorf("p2p: checksum mismatch")}
	}
	return &Message{Magic: magic, Command: cmd, Payload: payload}, nil
}
