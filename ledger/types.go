package ledger

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

type SecureHash [32]byte

func (h SecureHash) String() string { return hex.EncodeToString(h[:]) }

func (h SecureHash) IsZero() bool { return h == SecureHash{} }

func ParseSecureHash(s string) (SecureHash, error) {
	var h SecureHash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, txwrap(TX_ERR_HASH_INVALID, "hex", err)
	}
	if len(b) != len(h) {
		return h, txerr(TX_ERR_HASH_INVALID, fmt.Sprintf("length %d", len(b)))
	}
	copy(h[:], b)
	return h, nil
}

// PrivacySalt is the per-transaction secret from which component nonces are
// derived. The all-zero salt is invalid.
type PrivacySalt [32]byte

func NewPrivacySalt() (PrivacySalt, error) {
	var s PrivacySalt
	for s.IsZero() {
		if _, err := rand.Read(s[:]); err != nil {
			return s, err
		}
	}
	return s, nil
}

func (s PrivacySalt) IsZero() bool { return s == PrivacySalt{} }

func (s PrivacySalt) Validate() error {
	if s.IsZero() {
		return txerr(TX_ERR_SALT_ZERO, "privacy salt is all zero")
	}
	return nil
}

// StateRef points at output Index of transaction TxID.
type StateRef struct {
	TxID  SecureHash
	Index uint32
}

func (r StateRef) String() string { return fmt.Sprintf("%s(%d)", r.TxID, r.Index) }

// PublicKey is a compressed Ed25519 point.
type PublicKey [32]byte

func ParsePublicKey(b []byte) (PublicKey, error) {
	var k PublicKey
	if len(b) != len(k) {
		return k, txerr(TX_ERR_KEY_INVALID, fmt.Sprintf("length %d", len(b)))
	}
	if _, err := new(edwards25519.Point).SetBytes(b); err != nil {
		return k, txwrap(TX_ERR_KEY_INVALID, "not a curve point", err)
	}
	copy(k[:], b)
	return k, nil
}

func PublicKeyFromBase58(s string) (PublicKey, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return PublicKey{}, txwrap(TX_ERR_KEY_INVALID, "base58", err)
	}
	return ParsePublicKey(b)
}

func (k PublicKey) String() string { return base58.Encode(k[:]) }

type Party struct {
	Name string
	Key  PublicKey
}

func (p Party) String() string { return p.Name + "@" + p.Key.String() }

// TimeWindow bounds when a transaction may be notarised. Either bound may be
// open but not both.
type TimeWindow struct {
	From  *time.Time
	Until *time.Time
}

func (w TimeWindow) Validate() error {
	if w.From == nil && w.Until == nil {
		return txerr(TX_ERR_TIME_WINDOW, "both bounds open")
	}
	if w.From != nil && w.Until != nil && !w.From.Before(*w.Until) {
		return txerr(TX_ERR_TIME_WINDOW, "from is not before until")
	}
	return nil
}

// ContractState is the data of a ledger output.
type ContractState interface {
	Participants() []PublicKey
}

// CommandData is the payload of a command; ContractName names the contract
// the command addresses.
type CommandData interface {
	ContractName() string
}

type TransactionState struct {
	Data        ContractState
	Contract    string
	Notary      Party
	Encumbrance *uint32
}

type Command struct {
	Value   CommandData
	Signers []PublicKey
}

// ComponentGroup is the ordinal of a group of transaction components.
type ComponentGroup uint32

const (
	InputsGroup ComponentGroup = iota
	OutputsGroup
	CommandsGroup
	AttachmentsGroup
	NotaryGroup
	TimeWindowGroup
	SignersGroup
	ReferencesGroup
	ParametersGroup

	NumGroups = 9
)

var groupNames = [NumGroups]string{
	"inputs", "outputs", "commands", "attachments", "notary",
	"timewindow", "signers", "references", "parameters",
}

func (g ComponentGroup) String() string {
	if int(g) < len(groupNames) {
		return groupNames[g]
	}
	return fmt.Sprintf("group(%d)", uint32(g))
}
