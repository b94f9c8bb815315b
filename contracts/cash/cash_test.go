package cash

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zkledger.dev/node/ledger"
	"zkledger.dev/node/serde/registry"
)

func key(t *testing.T) ledger.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	k, err := ledger.ParsePublicKey(pub)
	require.NoError(t, err)
	return k
}

func TestRegistrations(t *testing.T) {
	reg, err := registry.New(Registrations()...)
	require.NoError(t, err)

	id, err := registry.IDOf[State](reg)
	require.NoError(t, err)
	assert.Equal(t, registry.StableID("zkledger.contracts.cash.State"), id)

	c, err := reg.CodecByID(id)
	require.NoError(t, err)
	assert.LessOrEqual(t, c.Size(), ledger.DefaultLimits().StateWidth)
}

func TestRegisteredCodecs_SizeStableAndRoundTrip(t *testing.T) {
	reg, err := registry.New(Registrations()...)
	require.NoError(t, err)
	issuer := ledger.Party{Name: "Central Bank", Key: key(t)}

	values := map[string][]any{
		"zkledger.contracts.cash.State": {
			State{},
			State{Amount: -5, Currency: "EUR", Owner: key(t), Issuer: issuer, Memo: "rent"},
			State{Amount: 1 << 40, Currency: "GBP", Owner: key(t), Issuer: issuer, Memo: "épargne 日本"},
		},
		"zkledger.contracts.cash.Issue": {Issue{}, Issue{Nonce: 99}},
		"zkledger.contracts.cash.Move":  {Move{}},
	}
	for _, r := range reg.Registrations() {
		vs, ok := values[r.Name]
		require.True(t, ok, r.Name)
		for _, v := range vs {
			b, err := r.Codec.AppendAny(nil, v)
			require.NoError(t, err, r.Name)
			assert.Len(t, b, r.Codec.Size(), r.Name)
			got, err := r.Codec.DecodeAny(b)
			require.NoError(t, err, r.Name)
			assert.Equal(t, v, got, r.Name)
		}
	}
}

func TestState_CurrencyCapacity(t *testing.T) {
	_, err := StateCodec.Append(nil, State{Currency: "EURO"})
	require.Error(t, err)
}

func TestCommands_AddressCashContract(t *testing.T) {
	var cmds []ledger.CommandData = []ledger.CommandData{Issue{}, Move{}}
	for _, c := range cmds {
		assert.Equal(t, ContractName, c.ContractName())
	}
}
