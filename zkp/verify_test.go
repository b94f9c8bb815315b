package zkp

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zkledger.dev/node/contracts/cash"
	"zkledger.dev/node/crypto"
	"zkledger.dev/node/ledger"
	"zkledger.dev/node/serde/registry"
	"zkledger.dev/node/witness"
)

type scenario struct {
	ds   crypto.DigestService
	wtx  *ledger.WireTransaction
	w    *witness.Witness
	pub  PublicInput
	meta witness.Metadata
}

func key(t *testing.T) ledger.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	k, err := ledger.ParsePublicKey(pub)
	require.NoError(t, err)
	return k
}

// newScenario builds a producer with three outputs and a transaction that
// consumes outputs 0 and 1, references output 2, and creates four outputs of
// which only index 2 is public.
func newScenario(t *testing.T, digest string) *scenario {
	t.Helper()
	reg, err := registry.New(cash.Registrations()...)
	require.NoError(t, err)
	ser := ledger.NewSerializer(reg, ledger.DefaultLimits())
	ds, err := crypto.New(digest)
	require.NoError(t, err)

	notary := ledger.Party{Name: "Notary", Key: key(t)}
	owner := key(t)
	pb := ledger.NewTransactionBuilder(ser).SetNotary(notary)
	for i := 0; i < 3; i++ {
		pb.AddOutputState(cash.State{Amount: int64(10 * (i + 1)), Currency: "CHF", Owner: owner}, cash.ContractName)
	}
	producer, err := pb.AddCommand(cash.Issue{Nonce: 7}, owner).Build(ds)
	require.NoError(t, err)
	pid := producer.ID()

	b := ledger.NewTransactionBuilder(ser).
		SetNotary(notary).
		AddInput(ledger.StateRef{TxID: pid, Index: 0}).
		AddInput(ledger.StateRef{TxID: pid, Index: 1}).
		AddReference(ledger.StateRef{TxID: pid, Index: 2})
	for i := 0; i < 4; i++ {
		b.AddOutputState(cash.State{Amount: int64(i + 1), Currency: "CHF", Owner: owner}, cash.ContractName)
	}
	wtx, err := b.AddCommand(cash.Move{}, owner).Build(ds)
	require.NoError(t, err)

	var utxos []witness.UtxoInfo
	var hashes []ledger.SecureHash
	for i := 0; i < 3; i++ {
		u, err := witness.UtxoOf(producer, i)
		require.NoError(t, err)
		utxos = append(utxos, u)
		h, err := producer.ComponentHash(ledger.OutputsGroup, i)
		require.NoError(t, err)
		hashes = append(hashes, h)
	}

	meta := witness.Metadata{
		Command: "move",
		Outputs: []witness.Visibility{witness.Private, witness.Private, witness.Public, witness.Private},
	}
	w, err := witness.Build(wtx, ser, meta.Policy(), utxos[:2], utxos[2:])
	require.NoError(t, err)

	return &scenario{
		ds:   ds,
		wtx:  wtx,
		w:    w,
		pub:  NewPublicInput(wtx, hashes[:2], hashes[2:]),
		meta: meta,
	}
}

func TestVerifyWitness_Accepts(t *testing.T) {
	for _, name := range crypto.Names() {
		s := newScenario(t, name)
		require.Len(t, s.w.Outputs, 1, name)
		assert.Equal(t, 2, s.w.Outputs[0].Label.Index, name)
		assert.Equal(t, s.wtx.Groups[ledger.OutputsGroup][2], s.w.Outputs[0].Bytes, name)
		require.NoError(t, VerifyWitness(s.ds, s.w, s.pub), name)
	}
}

func TestVerifyWitness_LeafRecomputation(t *testing.T) {
	s := newScenario(t, crypto.SHA256)
	nonce := s.ds.Nonce(s.wtx.PrivacySalt, uint32(ledger.OutputsGroup), 2)
	leaf := ledger.SecureHash(s.ds.Leaf(nonce, s.w.Outputs[0].Bytes))
	assert.Equal(t, s.pub.OutputHashes[2], leaf)
}

func TestVerifyWitness_OutputByteFlip(t *testing.T) {
	s := newScenario(t, crypto.SHA256)
	for _, pos := range []int{0, len(s.w.Outputs[0].Bytes) / 2, len(s.w.Outputs[0].Bytes) - 1} {
		w := *s.w
		w.Outputs = []witness.Field{{Label: s.w.Outputs[0].Label, Bytes: append([]byte(nil), s.w.Outputs[0].Bytes...)}}
		w.Outputs[0].Bytes[pos] ^= 0x01

		err := VerifyWitness(s.ds, &w, s.pub)
		var me *MismatchError
		require.ErrorAs(t, err, &me)
		assert.Equal(t, OutputMismatch, me.Kind)
		assert.Equal(t, 2, me.Index)
		assert.Equal(t, s.pub.OutputHashes[2], me.Expected)
		assert.NotEqual(t, me.Expected, me.Actual)
	}
}

func TestVerifyWitness_WrongIndexLabel(t *testing.T) {
	s := newScenario(t, crypto.SHA256)
	w := *s.w
	w.Outputs = []witness.Field{{Label: witness.Label{TypeName: s.w.Outputs[0].Label.TypeName, Index: 1}, Bytes: s.w.Outputs[0].Bytes}}

	err := VerifyWitness(s.ds, &w, s.pub)
	var me *MismatchError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, 1, me.Index)
}

func TestVerifyWitness_IdenticalOutputsBoundToPosition(t *testing.T) {
	reg, err := registry.New(cash.Registrations()...)
	require.NoError(t, err)
	ser := ledger.NewSerializer(reg, ledger.DefaultLimits())
	ds, err := crypto.New(crypto.SHA256)
	require.NoError(t, err)
	owner := key(t)
	same := cash.State{Amount: 5, Currency: "CHF", Owner: owner}
	wtx, err := ledger.NewTransactionBuilder(ser).
		SetNotary(ledger.Party{Name: "Notary", Key: owner}).
		AddOutputState(same, cash.ContractName).
		AddOutputState(same, cash.ContractName).
		AddCommand(cash.Issue{}, owner).
		Build(ds)
	require.NoError(t, err)
	require.Equal(t, wtx.Groups[ledger.OutputsGroup][0], wtx.Groups[ledger.OutputsGroup][1])

	h0, err := wtx.ComponentHash(ledger.OutputsGroup, 0)
	require.NoError(t, err)
	h1, err := wtx.ComponentHash(ledger.OutputsGroup, 1)
	require.NoError(t, err)
	assert.NotEqual(t, h0, h1)

	meta := witness.Metadata{Outputs: []witness.Visibility{witness.Public}}
	w, err := witness.Build(wtx, ser, meta.Policy(), nil, nil)
	require.NoError(t, err)
	pub := NewPublicInput(wtx, nil, nil)
	require.NoError(t, VerifyWitness(ds, w, pub))

	swapped := pub
	swapped.OutputHashes = []ledger.SecureHash{h1, h0}
	var me *MismatchError
	require.ErrorAs(t, VerifyWitness(ds, w, swapped), &me)
	assert.Equal(t, OutputMismatch, me.Kind)
	assert.Equal(t, 0, me.Index)
	assert.Equal(t, h1, me.Expected)
	assert.Equal(t, h0, me.Actual)
}

func TestVerifyWitness_SubstitutedUtxo(t *testing.T) {
	s := newScenario(t, crypto.SHA256)
	w := *s.w
	w.InputUtxos = append([]witness.Field(nil), s.w.InputUtxos...)
	w.InputUtxos[1] = s.w.InputUtxos[0]

	err := VerifyWitness(s.ds, &w, s.pub)
	var me *MismatchError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, InputUtxoMismatch, me.Kind)
	assert.Equal(t, 1, me.Index)
	assert.Equal(t, s.pub.InputUtxoHashes[1], me.Expected)
}

func TestVerifyWitness_WrongReferenceNonce(t *testing.T) {
	s := newScenario(t, crypto.SHA256)
	w := *s.w
	w.ReferenceNonces = []ledger.SecureHash{s.w.InputNonces[0]}

	err := VerifyWitness(s.ds, &w, s.pub)
	var me *MismatchError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, RefUtxoMismatch, me.Kind)
	assert.Equal(t, 0, me.Index)
}

func TestVerifyWitness_Shape(t *testing.T) {
	s := newScenario(t, crypto.SHA256)
	pub := s.pub
	pub.InputUtxoHashes = pub.InputUtxoHashes[:1]
	var se *ShapeError
	require.ErrorAs(t, VerifyWitness(s.ds, s.w, pub), &se)

	pub = s.pub
	pub.OutputHashes = pub.OutputHashes[:2]
	require.ErrorAs(t, VerifyWitness(s.ds, s.w, pub), &se)
}

func TestPublicInput_Wire(t *testing.T) {
	s := newScenario(t, crypto.BLAKE2b256)
	b, err := s.pub.MarshalBinary()
	require.NoError(t, err)
	var back PublicInput
	require.NoError(t, back.UnmarshalBinary(b))
	assert.Equal(t, s.pub, back)

	require.ErrorIs(t, back.UnmarshalBinary(b[:40]), ErrPublicInputMalformed)
	require.ErrorIs(t, back.UnmarshalBinary(append(b, 1)), ErrPublicInputMalformed)
}

func TestMock_ProveVerify(t *testing.T) {
	s := newScenario(t, crypto.SHA3_256)
	m := NewMock(s.ds, nil)
	ctx := context.Background()

	proof, err := m.Prove(ctx, s.w)
	require.NoError(t, err)
	require.NoError(t, m.Verify(ctx, proof, s.pub))

	pub := s.pub
	pub.ReferenceUtxoHashes = []ledger.SecureHash{{0xff}}
	var me *MismatchError
	require.ErrorAs(t, m.Verify(ctx, proof, pub), &me)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.ErrorIs(t, m.Verify(cancelled, proof, s.pub), context.Canceled)
}
