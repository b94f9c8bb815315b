package ledger

import (
	"time"

	"zkledger.dev/node/serde"
	"zkledger.dev/node/serde/registry"
)

const (
	MaxPartyNameBytes    = 128
	MaxContractNameBytes = 128
)

var (
	SecureHashCodec = serde.Convert(serde.Fixed32,
		func(b [32]byte) (SecureHash, error) { return SecureHash(b), nil },
		func(h SecureHash) ([32]byte, error) { return [32]byte(h), nil })

	PublicKeyCodec = serde.Convert(serde.Fixed32,
		func(b [32]byte) (PublicKey, error) { return ParsePublicKey(b[:]) },
		func(k PublicKey) ([32]byte, error) { return [32]byte(k), nil })

	StateRefCodec = serde.Record(
		serde.NewField("txid", SecureHashCodec,
			func(r *StateRef) SecureHash { return r.TxID }, func(r *StateRef, v SecureHash) { r.TxID = v }),
		serde.NewField("index", serde.Uint32,
			func(r *StateRef) uint32 { return r.Index }, func(r *StateRef, v uint32) { r.Index = v }),
	)

	PartyCodec = serde.Record(
		serde.NewField("name", serde.UTF8(MaxPartyNameBytes),
			func(p *Party) string { return p.Name }, func(p *Party, v string) { p.Name = v }),
		serde.NewField("key", PublicKeyCodec,
			func(p *Party) PublicKey { return p.Key }, func(p *Party, v PublicKey) { p.Key = v }),
	)

	timeWindowRecord = serde.Record(
		serde.NewField("from", serde.Nullable(serde.Instant),
			func(w *TimeWindow) *time.Time { return w.From }, func(w *TimeWindow, v *time.Time) { w.From = v }),
		serde.NewField("until", serde.Nullable(serde.Instant),
			func(w *TimeWindow) *time.Time { return w.Until }, func(w *TimeWindow, v *time.Time) { w.Until = v }),
	)

	TimeWindowCodec = serde.Convert(timeWindowRecord, validWindow, validWindow)
)

func validWindow(w TimeWindow) (TimeWindow, error) {
	if err := w.Validate(); err != nil {
		return TimeWindow{}, err
	}
	return w, nil
}

// Limits are the declared capacities of polymorphic and variable members.
// Every party to a transaction must agree on them.
type Limits struct {
	StateWidth   int `yaml:"state_width"`
	CommandWidth int `yaml:"command_width"`
	MaxSigners   int `yaml:"max_signers"`
}

func DefaultLimits() Limits {
	return Limits{
		StateWidth:   512,
		CommandWidth: 128,
		MaxSigners:   8,
	}
}

// Serializer encodes transaction components with fixed-length codecs.
// Contract states and command data are polymorphic and resolved through the
// registry.
type Serializer struct {
	reg    *registry.Registry
	limits Limits

	output  serde.Codec[TransactionState]
	command serde.Codec[CommandData]
	signers serde.Codec[[]PublicKey]
}

func NewSerializer(reg *registry.Registry, limits Limits) *Serializer {
	state := registry.Poly[ContractState](reg, limits.StateWidth)
	output := serde.Record(
		serde.NewField("data", state,
			func(s *TransactionState) ContractState { return s.Data }, func(s *TransactionState, v ContractState) { s.Data = v }),
		serde.NewField("contract", serde.ASCII(MaxContractNameBytes),
			func(s *TransactionState) string { return s.Contract }, func(s *TransactionState, v string) { s.Contract = v }),
		serde.NewField("notary", PartyCodec,
			func(s *TransactionState) Party { return s.Notary }, func(s *TransactionState, v Party) { s.Notary = v }),
		serde.NewField("encumbrance", serde.Nullable(serde.Uint32),
			func(s *TransactionState) *uint32 { return s.Encumbrance }, func(s *TransactionState, v *uint32) { s.Encumbrance = v }),
	)
	return &Serializer{
		reg:     reg,
		limits:  limits,
		output:  output,
		command: registry.Poly[CommandData](reg, limits.CommandWidth),
		signers: serde.List(PublicKeyCodec, limits.MaxSigners),
	}
}

func (s *Serializer) Registry() *registry.Registry { return s.reg }

func (s *Serializer) Limits() Limits { return s.limits }

// ComponentSize is the encoded length of every component of group g.
func (s *Serializer) ComponentSize(g ComponentGroup) int {
	switch g {
	case InputsGroup, ReferencesGroup:
		return StateRefCodec.Size()
	case OutputsGroup:
		return s.output.Size()
	case CommandsGroup:
		return s.command.Size()
	case AttachmentsGroup, ParametersGroup:
		return SecureHashCodec.Size()
	case NotaryGroup:
		return PartyCodec.Size()
	case TimeWindowGroup:
		return TimeWindowCodec.Size()
	case SignersGroup:
		return s.signers.Size()
	default:
		return 0
	}
}

func encode[T any](c serde.Codec[T], v T, what string) ([]byte, error) {
	b, err := serde.Encode(c, v)
	if err != nil {
		return nil, txwrap(TX_ERR_ENCODE, what, err)
	}
	return b, nil
}

func decode[T any](c serde.Codec[T], b []byte, what string) (T, error) {
	v, err := c.Decode(b)
	if err != nil {
		var zero T
		return zero, txwrap(TX_ERR_PARSE, what, err)
	}
	return v, nil
}

func (s *Serializer) EncodeOutput(ts TransactionState) ([]byte, error) {
	return encode(s.output, ts, "output")
}

func (s *Serializer) DecodeOutput(b []byte) (TransactionState, error) {
	return decode(s.output, b, "output")
}

func (s *Serializer) EncodeCommand(c CommandData) ([]byte, error) {
	return encode(s.command, c, "command")
}

func (s *Serializer) DecodeCommand(b []byte) (CommandData, error) {
	return decode(s.command, b, "command")
}

func (s *Serializer) EncodeSigners(keys []PublicKey) ([]byte, error) {
	return encode(s.signers, keys, "signers")
}

func (s *Serializer) DecodeSigners(b []byte) ([]PublicKey, error) {
	return decode(s.signers, b, "signers")
}

func EncodeStateRef(r StateRef) ([]byte, error) { return encode(StateRefCodec, r, "state ref") }

func DecodeStateRef(b []byte) (StateRef, error) { return decode(StateRefCodec, b, "state ref") }

func EncodeSecureHash(h SecureHash) ([]byte, error) { return encode(SecureHashCodec, h, "hash") }

func DecodeSecureHash(b []byte) (SecureHash, error) { return decode(SecureHashCodec, b, "hash") }

func EncodeParty(p Party) ([]byte, error) { return encode(PartyCodec, p, "party") }

func DecodeParty(b []byte) (Party, error) { return decode(PartyCodec, b, "party") }

func EncodeTimeWindow(w TimeWindow) ([]byte, error) { return encode(TimeWindowCodec, w, "time window") }

func DecodeTimeWindow(b []byte) (TimeWindow, error) { return decode(TimeWindowCodec, b, "time window") }
