// Package cash is a minimal fungible-asset contract: its states, its
// commands, and the codec registrations a node needs to serialize them.
package cash

import (
	"zkledger.dev/node/ledger"
	"zkledger.dev/node/serde"
	"zkledger.dev/node/serde/registry"
)

const (
	ContractName = "zkledger.contracts.cash.Cash"

	MaxCurrencyChars = 3
	MaxMemoChars     = 16
)

type State struct {
	Amount   int64
	Currency string
	Owner    ledger.PublicKey
	Issuer   ledger.Party
	Memo     string
}

func (s State) Participants() []ledger.PublicKey { return []ledger.PublicKey{s.Owner} }

type Issue struct {
	Nonce uint64
}

func (Issue) ContractName() string { return ContractName }

type Move struct{}

func (Move) ContractName() string { return ContractName }

var (
	StateCodec = serde.Record(
		serde.NewField("amount", serde.Int64,
			func(s *State) int64 { return s.Amount }, func(s *State, v int64) { s.Amount = v }),
		serde.NewField("currency", serde.ASCII(MaxCurrencyChars),
			func(s *State) string { return s.Currency }, func(s *State, v string) { s.Currency = v }),
		serde.NewField("owner", ledger.PublicKeyCodec,
			func(s *State) ledger.PublicKey { return s.Owner }, func(s *State, v ledger.PublicKey) { s.Owner = v }),
		serde.NewField("issuer", ledger.PartyCodec,
			func(s *State) ledger.Party { return s.Issuer }, func(s *State, v ledger.Party) { s.Issuer = v }),
		serde.NewField("memo", serde.Wide(MaxMemoChars),
			func(s *State) string { return s.Memo }, func(s *State, v string) { s.Memo = v }),
	)

	IssueCodec = serde.Record(
		serde.NewField("nonce", serde.Uint64,
			func(c *Issue) uint64 { return c.Nonce }, func(c *Issue, v uint64) { c.Nonce = v }),
	)

	MoveCodec = serde.Record[Move]()
)

// Registrations lists the cash types in a fixed order.
func Registrations() []registry.Registration {
	return []registry.Registration{
		registry.For("zkledger.contracts.cash.State", StateCodec),
		registry.For("zkledger.contracts.cash.Issue", IssueCodec),
		registry.For("zkledger.contracts.cash.Move", MoveCodec),
	}
}
