package ledger

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zkledger.dev/node/crypto"
	"zkledger.dev/node/serde"
	"zkledger.dev/node/serde/registry"
)

type token struct {
	Owner  PublicKey
	Amount int64
}

func (t token) Participants() []PublicKey { return []PublicKey{t.Owner} }

type note struct {
	Text string
}

func (note) Participants() []PublicKey { return nil }

type transfer struct{}

func (transfer) ContractName() string { return "test.Token" }

var (
	tokenCodec = serde.Record(
		serde.NewField("owner", PublicKeyCodec, func(t *token) PublicKey { return t.Owner }, func(t *token, v PublicKey) { t.Owner = v }),
		serde.NewField("amount", serde.Int64, func(t *token) int64 { return t.Amount }, func(t *token, v int64) { t.Amount = v }),
	)
	noteCodec = serde.Record(
		serde.NewField("text", serde.UTF8(40), func(n *note) string { return n.Text }, func(n *note, v string) { n.Text = v }),
	)
)

func testSerializer(t *testing.T) *Serializer {
	t.Helper()
	reg, err := registry.New(
		registry.For("test.token", tokenCodec),
		registry.For("test.note", noteCodec),
		registry.For("test.transfer", serde.Record[transfer]()),
	)
	require.NoError(t, err)
	return NewSerializer(reg, DefaultLimits())
}

func testKey(t *testing.T) PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	k, err := ParsePublicKey(pub)
	require.NoError(t, err)
	return k
}

func testSalt(b byte) PrivacySalt {
	var s PrivacySalt
	for i := range s {
		s[i] = b + byte(i)
	}
	return s
}

func sampleTx(t *testing.T, ser *Serializer, ds crypto.DigestService) *WireTransaction {
	t.Helper()
	owner := testKey(t)
	notary := Party{Name: "Notary", Key: testKey(t)}
	from := time.Unix(1_700_000_000, 0).UTC()
	wtx, err := NewTransactionBuilder(ser).
		SetNotary(notary).
		AddInput(StateRef{TxID: SecureHash{1}, Index: 0}).
		AddInput(StateRef{TxID: SecureHash{2}, Index: 3}).
		AddReference(StateRef{TxID: SecureHash{1}, Index: 2}).
		AddOutputState(token{Owner: owner, Amount: 10}, "test.Token").
		AddOutputState(note{Text: "memo"}, "test.Token").
		AddCommand(transfer{}, owner).
		AddAttachment(SecureHash{9}).
		SetTimeWindow(TimeWindow{From: &from}).
		SetParameters(SecureHash{7}).
		SetPrivacySalt(testSalt(1)).
		Build(ds)
	require.NoError(t, err)
	return wtx
}

func TestParsePublicKey(t *testing.T) {
	k := testKey(t)
	back, err := PublicKeyFromBase58(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, back)

	var bad [32]byte
	bad[0] = 2
	_, err = ParsePublicKey(bad[:])
	var te *TxError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, TX_ERR_KEY_INVALID, te.Code)

	_, err = ParsePublicKey(make([]byte, 31))
	require.Error(t, err)
}

func TestParseSecureHash(t *testing.T) {
	h := SecureHash{0xab, 0x01}
	back, err := ParseSecureHash(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, back)

	_, err = ParseSecureHash("abcd")
	require.Error(t, err)
}

func TestTimeWindow(t *testing.T) {
	a := time.Unix(100, 0).UTC()
	b := time.Unix(200, 0).UTC()

	require.Error(t, TimeWindow{}.Validate())
	require.Error(t, TimeWindow{From: &b, Until: &a}.Validate())
	w := TimeWindow{From: &a, Until: &b}
	require.NoError(t, w.Validate())
	assert.True(t, w.Contains(time.Unix(150, 0)))
	assert.False(t, w.Contains(b))

	enc, err := EncodeTimeWindow(w)
	require.NoError(t, err)
	got, err := DecodeTimeWindow(enc)
	require.NoError(t, err)
	assert.True(t, got.From.Equal(a))
	assert.True(t, got.Until.Equal(b))

	_, err = EncodeTimeWindow(TimeWindow{})
	require.Error(t, err)
}

func TestPrivacySalt(t *testing.T) {
	s, err := NewPrivacySalt()
	require.NoError(t, err)
	require.NoError(t, s.Validate())

	err = PrivacySalt{}.Validate()
	var te *TxError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, TX_ERR_SALT_ZERO, te.Code)
}

func TestSerializer_OutputSizeIsStable(t *testing.T) {
	ser := testSerializer(t)
	a, err := ser.EncodeOutput(TransactionState{Data: token{Owner: testKey(t), Amount: 1}, Contract: "c"})
	require.NoError(t, err)
	enc := uint32(4)
	b, err := ser.EncodeOutput(TransactionState{Data: note{Text: "a much longer note"}, Contract: "another", Encumbrance: &enc})
	require.NoError(t, err)
	assert.Len(t, a, ser.ComponentSize(OutputsGroup))
	assert.Len(t, b, ser.ComponentSize(OutputsGroup))

	ts, err := ser.DecodeOutput(b)
	require.NoError(t, err)
	assert.Equal(t, note{Text: "a much longer note"}, ts.Data)
	require.NotNil(t, ts.Encumbrance)
	assert.Equal(t, uint32(4), *ts.Encumbrance)
}

func TestSerializer_UnregisteredState(t *testing.T) {
	type stray struct{ token }
	ser := testSerializer(t)
	_, err := ser.EncodeOutput(TransactionState{Data: stray{}})
	require.ErrorIs(t, err, registry.ErrClassNotRegistered)
}

func TestSerializer_TooManySigners(t *testing.T) {
	ser := testSerializer(t)
	keys := make([]PublicKey, ser.Limits().MaxSigners+1)
	_, err := ser.EncodeSigners(keys)
	var ce *serde.CapacityError
	require.ErrorAs(t, err, &ce)
}

func TestWireTransaction_GroupsAndID(t *testing.T) {
	ser := testSerializer(t)
	ds, err := crypto.New(crypto.SHA256)
	require.NoError(t, err)
	wtx := sampleTx(t, ser, ds)

	assert.Len(t, wtx.Groups[InputsGroup], 2)
	assert.Len(t, wtx.Groups[OutputsGroup], 2)
	assert.Len(t, wtx.Groups[CommandsGroup], 1)
	assert.Len(t, wtx.Groups[SignersGroup], 1)
	assert.Len(t, wtx.Groups[NotaryGroup], 1)

	leaf, err := wtx.ComponentHash(OutputsGroup, 1)
	require.NoError(t, err)
	nonce := ds.Nonce(wtx.PrivacySalt, uint32(OutputsGroup), 1)
	assert.Equal(t, SecureHash(ds.Leaf(nonce, wtx.Groups[OutputsGroup][1])), leaf)

	_, err = wtx.ComponentHash(OutputsGroup, 2)
	require.Error(t, err)

	assert.Equal(t, MerkleRoot(ds, wtx.LeafHashes(InputsGroup)), wtx.GroupRoot(InputsGroup))
	id := wtx.ID()
	assert.Equal(t, id, wtx.ID())

	other := *wtx
	other.PrivacySalt = testSalt(2)
	assert.NotEqual(t, id, other.ID())
}

func TestWireTransaction_Dependencies(t *testing.T) {
	ser := testSerializer(t)
	ds, err := crypto.New(crypto.BLAKE2b256)
	require.NoError(t, err)
	wtx := sampleTx(t, ser, ds)

	deps, err := wtx.Dependencies()
	require.NoError(t, err)
	assert.Equal(t, []SecureHash{{1}, {2}}, deps)

	refs, err := wtx.References()
	require.NoError(t, err)
	assert.Equal(t, []StateRef{{TxID: SecureHash{1}, Index: 2}}, refs)
}

func TestWireTransaction_MarshalRoundTrip(t *testing.T) {
	ser := testSerializer(t)
	ds, err := crypto.New(crypto.SHA3_256)
	require.NoError(t, err)
	wtx := sampleTx(t, ser, ds)

	b, err := wtx.MarshalBinary()
	require.NoError(t, err)
	back, err := UnmarshalWireTransaction(b)
	require.NoError(t, err)
	assert.Equal(t, wtx.ID(), back.ID())
	assert.Equal(t, crypto.SHA3_256, back.Digest.Name())

	outs, err := back.Outputs(ser)
	require.NoError(t, err)
	require.Len(t, outs, 2)
	assert.Equal(t, "Notary", outs[0].Notary.Name)

	_, err = UnmarshalWireTransaction(append(b, 0))
	var te *TxError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, TX_ERR_TRAILING_DATA, te.Code)

	_, err = UnmarshalWireTransaction(b[:len(b)-1])
	require.Error(t, err)
}

func TestWireTransaction_Validate(t *testing.T) {
	ser := testSerializer(t)
	ds, err := crypto.New(crypto.SHA256)
	require.NoError(t, err)
	wtx := sampleTx(t, ser, ds)

	bad := *wtx
	bad.Groups[SignersGroup] = nil
	var te *TxError
	require.ErrorAs(t, bad.Validate(), &te)
	assert.Equal(t, TX_ERR_GROUP_SHAPE, te.Code)

	bad = *wtx
	bad.PrivacySalt = PrivacySalt{}
	require.Error(t, bad.Validate())
}

func TestWireTransaction_RepeatedStateRef(t *testing.T) {
	ser := testSerializer(t)
	ds, err := crypto.New(crypto.SHA256)
	require.NoError(t, err)
	ref := StateRef{TxID: SecureHash{1}, Index: 0}

	_, err = NewTransactionBuilder(ser).
		SetNotary(Party{Name: "Notary", Key: testKey(t)}).
		AddInput(ref).
		AddInput(ref).
		Build(ds)
	var te *TxError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, TX_ERR_DUPLICATE_REF, te.Code)
	assert.Contains(t, te.Msg, "inputs[1]")

	wtx := sampleTx(t, ser, ds)
	bad := *wtx
	r := wtx.Groups[ReferencesGroup][0]
	bad.Groups[ReferencesGroup] = [][]byte{r, r}
	require.ErrorAs(t, bad.Validate(), &te)
	assert.Equal(t, TX_ERR_DUPLICATE_REF, te.Code)

	// The same state may be spent in one group and referenced in the other.
	_, err = NewTransactionBuilder(ser).
		SetNotary(Party{Name: "Notary", Key: testKey(t)}).
		AddInput(ref).
		AddReference(ref).
		Build(ds)
	require.NoError(t, err)
}

func TestUnmarshalWireTransaction_NamesField(t *testing.T) {
	ser := testSerializer(t)
	ds, err := crypto.New(crypto.SHA256)
	require.NoError(t, err)
	b, err := sampleTx(t, ser, ds).MarshalBinary()
	require.NoError(t, err)

	saltAt := 2 + 1 + len(crypto.SHA256)
	cases := map[string][]byte{
		"version":       b[:1],
		"digest name":   b[:saltAt-1],
		"privacy salt":  b[:saltAt+10],
		"inputs count":  b[:saltAt+32+2],
		"parameters[0]": b[:len(b)-1],
	}
	for field, in := range cases {
		_, err := UnmarshalWireTransaction(in)
		var te *TxError
		require.ErrorAs(t, err, &te, field)
		assert.Equal(t, TX_ERR_PARSE, te.Code, field)
		assert.Contains(t, te.Msg, field)
	}
}

func TestMerkleRoot_OddPromotion(t *testing.T) {
	ds, err := crypto.New(crypto.SHA256)
	require.NoError(t, err)
	a, b, c := SecureHash{1}, SecureHash{2}, SecureHash{3}

	assert.Equal(t, SecureHash{}, MerkleRoot(ds, nil))
	assert.Equal(t, a, MerkleRoot(ds, []SecureHash{a}))
	ab := SecureHash(ds.Node(a, b))
	assert.Equal(t, ab, MerkleRoot(ds, []SecureHash{a, b}))
	assert.Equal(t, SecureHash(ds.Node(ab, c)), MerkleRoot(ds, []SecureHash{a, b, c}))
}
