// Package witness assembles the fixed-structure bundle a proving circuit
// consumes: visible transaction components grouped by kind, the privacy
// salt, and the contents and nonces of the UTXOs the transaction consumes
// and references.
package witness

import (
	"fmt"
	"reflect"

	"zkledger.dev/node/ledger"
)

// Label names the concrete type of a field and its position in the
// transaction, so a circuit can dispatch per element.
type Label struct {
	TypeName string
	Index    int
}

type Field struct {
	Label Label
	Bytes []byte
}

// UtxoInfo is a consumed or referenced output as committed by the
// transaction that produced it.
type UtxoInfo struct {
	Ref        ledger.StateRef
	Serialized []byte
	Nonce      ledger.SecureHash
}

// UtxoOf extracts output index of producer.
func UtxoOf(producer *ledger.WireTransaction, index int) (UtxoInfo, error) {
	c, err := producer.Component(ledger.OutputsGroup, index)
	if err != nil {
		return UtxoInfo{}, err
	}
	return UtxoInfo{
		// #nosec G115 -- index was bounds checked by Component.
		Ref:        ledger.StateRef{TxID: producer.ID(), Index: uint32(index)},
		Serialized: append([]byte(nil), c...),
		Nonce:      producer.Nonce(ledger.OutputsGroup, index),
	}, nil
}

type Witness struct {
	Outputs     []Field
	Commands    [][]byte
	Attachments [][]byte
	Notary      [][]byte
	TimeWindow  [][]byte
	Signers     [][]byte
	Parameters  [][]byte
	PrivacySalt ledger.PrivacySalt
	Inputs      [][]byte

	InputUtxos      []Field
	ReferenceUtxos  []Field
	InputNonces     []ledger.SecureHash
	ReferenceNonces []ledger.SecureHash
}

type MissingUtxoError struct {
	Group ledger.ComponentGroup
	Index int
	Ref   ledger.StateRef
}

func (e *MissingUtxoError) Error() string {
	return fmt.Sprintf("witness: no utxo supplied for %s[%d] %s", e.Group, e.Index, e.Ref)
}

type UnexpectedUtxoError struct {
	Group ledger.ComponentGroup
	Ref   ledger.StateRef
}

func (e *UnexpectedUtxoError) Error() string {
	return fmt.Sprintf("witness: utxo %s is not among the transaction's %s", e.Ref, e.Group)
}

// Build assembles the witness of wtx. Components not selected by policy are
// omitted; UTXOs are reordered to the transaction's StateRef order and every
// supplied UTXO must be used.
func Build(wtx *ledger.WireTransaction, ser *ledger.Serializer, policy VisibilityPolicy, inputUtxos, refUtxos []UtxoInfo) (*Witness, error) {
	if err := wtx.Validate(); err != nil {
		return nil, err
	}
	if policy == nil {
		policy = AllVisible
	}

	w := &Witness{PrivacySalt: wtx.PrivacySalt}
	for i, c := range wtx.Groups[ledger.OutputsGroup] {
		if !policy.IsVisible(ledger.OutputsGroup, i) {
			continue
		}
		name, err := typeName(ser, c)
		if err != nil {
			return nil, fmt.Errorf("outputs[%d]: %w", i, err)
		}
		w.Outputs = append(w.Outputs, Field{Label: Label{TypeName: name, Index: i}, Bytes: clone(c)})
	}

	w.Commands = visible(wtx, ledger.CommandsGroup, policy)
	w.Attachments = visible(wtx, ledger.AttachmentsGroup, policy)
	w.Notary = visible(wtx, ledger.NotaryGroup, policy)
	w.TimeWindow = visible(wtx, ledger.TimeWindowGroup, policy)
	w.Signers = visible(wtx, ledger.SignersGroup, policy)
	w.Parameters = visible(wtx, ledger.ParametersGroup, policy)
	w.Inputs = visible(wtx, ledger.InputsGroup, policy)

	inputs, err := wtx.Inputs()
	if err != nil {
		return nil, err
	}
	if w.InputUtxos, w.InputNonces, err = orderUtxos(ser, ledger.InputsGroup, inputs, inputUtxos); err != nil {
		return nil, err
	}
	refs, err := wtx.References()
	if err != nil {
		return nil, err
	}
	if w.ReferenceUtxos, w.ReferenceNonces, err = orderUtxos(ser, ledger.ReferencesGroup, refs, refUtxos); err != nil {
		return nil, err
	}
	return w, nil
}

func visible(wtx *ledger.WireTransaction, g ledger.ComponentGroup, policy VisibilityPolicy) [][]byte {
	var out [][]byte
	for i, c := range wtx.Groups[g] {
		if policy.IsVisible(g, i) {
			out = append(out, clone(c))
		}
	}
	return out
}

func orderUtxos(ser *ledger.Serializer, g ledger.ComponentGroup, refs []ledger.StateRef, supplied []UtxoInfo) ([]Field, []ledger.SecureHash, error) {
	byRef := make(map[ledger.StateRef]UtxoInfo, len(supplied))
	for _, u := range supplied {
		if _, dup := byRef[u.Ref]; dup {
			return nil, nil, &UnexpectedUtxoError{Group: g, Ref: u.Ref}
		}
		byRef[u.Ref] = u
	}

	used := make(map[ledger.StateRef]bool, len(refs))
	var fields []Field
	var nonces []ledger.SecureHash
	for j, ref := range refs {
		u, ok := byRef[ref]
		if !ok {
			return nil, nil, &MissingUtxoError{Group: g, Index: j, Ref: ref}
		}
		used[ref] = true
		name, err := typeName(ser, u.Serialized)
		if err != nil {
			return nil, nil, fmt.Errorf("%s utxo %s: %w", g, ref, err)
		}
		fields = append(fields, Field{Label: Label{TypeName: name, Index: j}, Bytes: clone(u.Serialized)})
		nonces = append(nonces, u.Nonce)
	}
	for _, u := range supplied {
		if !used[u.Ref] {
			return nil, nil, &UnexpectedUtxoError{Group: g, Ref: u.Ref}
		}
	}
	return fields, nonces, nil
}

func typeName(ser *ledger.Serializer, component []byte) (string, error) {
	ts, err := ser.DecodeOutput(component)
	if err != nil {
		return "", err
	}
	return ser.Registry().NameOf(reflect.TypeOf(ts.Data))
}

func clone(b []byte) []byte { return append([]byte(nil), b...) }

// Size sums the byte lengths of every group, the salt and the nonces. With a
// non-nil filter only bytes for which filter returns true are counted.
func (w *Witness) Size(filter func(byte) bool) int {
	n := 0
	count := func(b []byte) {
		if filter == nil {
			n += len(b)
			return
		}
		for _, x := range b {
			if filter(x) {
				n++
			}
		}
	}
	for _, f := range w.Outputs {
		count(f.Bytes)
	}
	for _, g := range [][][]byte{w.Commands, w.Attachments, w.Notary, w.TimeWindow, w.Signers, w.Parameters, w.Inputs} {
		for _, c := range g {
			count(c)
		}
	}
	count(w.PrivacySalt[:])
	for _, fs := range [][]Field{w.InputUtxos, w.ReferenceUtxos} {
		for _, f := range fs {
			count(f.Bytes)
		}
	}
	for _, ns := range [][]ledger.SecureHash{w.InputNonces, w.ReferenceNonces} {
		for _, h := range ns {
			count(h[:])
		}
	}
	return n
}
