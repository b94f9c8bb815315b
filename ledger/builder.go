package ledger

import (
	"fmt"

	"zkledger.dev/node/crypto"
)

// TransactionBuilder assembles typed components into a WireTransaction.
// Components keep the order in which they were added.
type TransactionBuilder struct {
	ser *Serializer

	inputs      []StateRef
	references  []StateRef
	outputs     []TransactionState
	commands    []Command
	attachments []SecureHash
	notary      *Party
	window      *TimeWindow
	parameters  *SecureHash
	salt        PrivacySalt
}

func NewTransactionBuilder(ser *Serializer) *TransactionBuilder {
	return &TransactionBuilder{ser: ser}
}

func (b *TransactionBuilder) AddInput(ref StateRef) *TransactionBuilder {
	b.inputs = append(b.inputs, ref)
	return b
}

func (b *TransactionBuilder) AddReference(ref StateRef) *TransactionBuilder {
	b.references = append(b.references, ref)
	return b
}

func (b *TransactionBuilder) AddOutput(ts TransactionState) *TransactionBuilder {
	b.outputs = append(b.outputs, ts)
	return b
}

// AddOutputState adds data as an output governed by contract and the
// builder's notary. SetNotary must be called first.
func (b *TransactionBuilder) AddOutputState(data ContractState, contract string) *TransactionBuilder {
	ts := TransactionState{Data: data, Contract: contract}
	if b.notary != nil {
		ts.Notary = *b.notary
	}
	return b.AddOutput(ts)
}

func (b *TransactionBuilder) AddCommand(value CommandData, signers ...PublicKey) *TransactionBuilder {
	b.commands = append(b.commands, Command{Value: value, Signers: signers})
	return b
}

func (b *TransactionBuilder) AddAttachment(id SecureHash) *TransactionBuilder {
	b.attachments = append(b.attachments, id)
	return b
}

func (b *TransactionBuilder) SetNotary(p Party) *TransactionBuilder {
	b.notary = &p
	return b
}

func (b *TransactionBuilder) SetTimeWindow(w TimeWindow) *TransactionBuilder {
	b.window = &w
	return b
}

func (b *TransactionBuilder) SetParameters(h SecureHash) *TransactionBuilder {
	b.parameters = &h
	return b
}

// SetPrivacySalt fixes the salt; otherwise Build draws a random one.
func (b *TransactionBuilder) SetPrivacySalt(s PrivacySalt) *TransactionBuilder {
	b.salt = s
	return b
}

func (b *TransactionBuilder) Build(ds crypto.DigestService) (*WireTransaction, error) {
	wtx := &WireTransaction{Digest: ds, PrivacySalt: b.salt}
	if wtx.PrivacySalt.IsZero() {
		salt, err := NewPrivacySalt()
		if err != nil {
			return nil, txwrap(TX_ERR_SALT_ZERO, "random salt", err)
		}
		wtx.PrivacySalt = salt
	}

	add := func(g ComponentGroup, c []byte, err error) error {
		if err != nil {
			return fmt.Errorf("%s[%d]: %w", g, len(wtx.Groups[g]), err)
		}
		wtx.Groups[g] = append(wtx.Groups[g], c)
		return nil
	}

	for _, r := range b.inputs {
		c, encErr := EncodeStateRef(r)
		if err := add(InputsGroup, c, encErr); err != nil {
			return nil, err
		}
	}
	for _, ts := range b.outputs {
		c, encErr := b.ser.EncodeOutput(ts)
		if err := add(OutputsGroup, c, encErr); err != nil {
			return nil, err
		}
	}
	for _, cmd := range b.commands {
		c, encErr := b.ser.EncodeCommand(cmd.Value)
		if err := add(CommandsGroup, c, encErr); err != nil {
			return nil, err
		}
		c, encErr = b.ser.EncodeSigners(cmd.Signers)
		if err := add(SignersGroup, c, encErr); err != nil {
			return nil, err
		}
	}
	for _, h := range b.attachments {
		c, encErr := EncodeSecureHash(h)
		if err := add(AttachmentsGroup, c, encErr); err != nil {
			return nil, err
		}
	}
	if b.notary != nil {
		c, encErr := EncodeParty(*b.notary)
		if err := add(NotaryGroup, c, encErr); err != nil {
			return nil, err
		}
	}
	if b.window != nil {
		c, encErr := EncodeTimeWindow(*b.window)
		if err := add(TimeWindowGroup, c, encErr); err != nil {
			return nil, err
		}
	}
	for _, r := range b.references {
		c, encErr := EncodeStateRef(r)
		if err := add(ReferencesGroup, c, encErr); err != nil {
			return nil, err
		}
	}
	if b.parameters != nil {
		c, encErr := EncodeSecureHash(*b.parameters)
		if err := add(ParametersGroup, c, encErr); err != nil {
			return nil, err
		}
	}

	if err := wtx.Validate(); err != nil {
		return nil, err
	}
	return wtx, nil
}
