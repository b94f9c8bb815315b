package ledger

import (
	"encoding/binary"
	"fmt"

	"zkledger.dev/node/crypto"
)

const wireTxVersion uint16 = 1

// WireTransaction is a transaction as its grouped, already serialized
// components. Its id is the merkle root over the roots of all nine groups,
// whose leaves are nonce-bound component hashes.
type WireTransaction struct {
	Groups      [NumGroups][][]byte
	PrivacySalt PrivacySalt
	Digest      crypto.DigestService
}

func (wtx *WireTransaction) Validate() error {
	if wtx.Digest == nil {
		return txerr(TX_ERR_DIGEST, "no digest service")
	}
	if err := wtx.PrivacySalt.Validate(); err != nil {
		return err
	}
	if n := len(wtx.Groups[NotaryGroup]); n > 1 {
		return txerr(TX_ERR_GROUP_SHAPE, fmt.Sprintf("%d notaries", n))
	}
	if n := len(wtx.Groups[TimeWindowGroup]); n > 1 {
		return txerr(TX_ERR_GROUP_SHAPE, fmt.Sprintf("%d time windows", n))
	}
	if n := len(wtx.Groups[ParametersGroup]); n > 1 {
		return txerr(TX_ERR_GROUP_SHAPE, fmt.Sprintf("%d parameter hashes", n))
	}
	if c, s := len(wtx.Groups[CommandsGroup]), len(wtx.Groups[SignersGroup]); c != s {
		return txerr(TX_ERR_GROUP_SHAPE, fmt.Sprintf("%d commands, %d signer lists", c, s))
	}
	for _, g := range []ComponentGroup{InputsGroup, ReferencesGroup} {
		if err := wtx.distinctRefs(g); err != nil {
			return err
		}
	}
	return nil
}

// distinctRefs rejects a state listed twice in group g.
func (wtx *WireTransaction) distinctRefs(g ComponentGroup) error {
	refs, err := wtx.refs(g)
	if err != nil {
		return err
	}
	seen := make(map[StateRef]int, len(refs))
	for i, r := range refs {
		if j, dup := seen[r]; dup {
			return txerr(TX_ERR_DUPLICATE_REF, fmt.Sprintf("%s[%d] repeats %s[%d] %s", g, i, g, j, r))
		}
		seen[r] = i
	}
	return nil
}

func (wtx *WireTransaction) Component(g ComponentGroup, i int) ([]byte, error) {
	if g >= NumGroups {
		return nil, txerr(TX_ERR_INDEX_RANGE, g.String())
	}
	group := wtx.Groups[g]
	if i < 0 || i >= len(group) {
		return nil, txerr(TX_ERR_INDEX_RANGE, fmt.Sprintf("%s[%d] of %d", g, i, len(group)))
	}
	return group[i], nil
}

// Nonce binds component i of group g to this transaction's salt.
func (wtx *WireTransaction) Nonce(g ComponentGroup, i int) SecureHash {
	// #nosec G115 -- component indexes are bounded by group sizes.
	return wtx.Digest.Nonce(wtx.PrivacySalt, uint32(g), uint32(i))
}

// ComponentHash is the leaf hash of component i of group g.
func (wtx *WireTransaction) ComponentHash(g ComponentGroup, i int) (SecureHash, error) {
	c, err := wtx.Component(g, i)
	if err != nil {
		return SecureHash{}, err
	}
	return wtx.Digest.Leaf(wtx.Nonce(g, i), c), nil
}

func (wtx *WireTransaction) LeafHashes(g ComponentGroup) []SecureHash {
	group := wtx.Groups[g]
	out := make([]SecureHash, len(group))
	for i := range group {
		out[i] = wtx.Digest.Leaf(wtx.Nonce(g, i), group[i])
	}
	return out
}

func (wtx *WireTransaction) GroupRoot(g ComponentGroup) SecureHash {
	return MerkleRoot(wtx.Digest, wtx.LeafHashes(g))
}

func (wtx *WireTransaction) ID() SecureHash {
	roots := make([]SecureHash, NumGroups)
	for g := range roots {
		roots[g] = wtx.GroupRoot(ComponentGroup(g))
	}
	return MerkleRoot(wtx.Digest, roots)
}

func (wtx *WireTransaction) refs(g ComponentGroup) ([]StateRef, error) {
	group := wtx.Groups[g]
	out := make([]StateRef, 0, len(group))
	for i, b := range group {
		r, err := DecodeStateRef(b)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", g, i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (wtx *WireTransaction) Inputs() ([]StateRef, error) { return wtx.refs(InputsGroup) }

func (wtx *WireTransaction) References() ([]StateRef, error) { return wtx.refs(ReferencesGroup) }

// Dependencies returns the distinct ids of the transactions that produced
// this transaction's inputs and references, in first-seen order.
func (wtx *WireTransaction) Dependencies() ([]SecureHash, error) {
	ins, err := wtx.Inputs()
	if err != nil {
		return nil, err
	}
	refs, err := wtx.References()
	if err != nil {
		return nil, err
	}
	seen := make(map[SecureHash]struct{})
	var out []SecureHash
	for _, r := range append(ins, refs...) {
		if _, ok := seen[r.TxID]; ok {
			continue
		}
		seen[r.TxID] = struct{}{}
		out = append(out, r.TxID)
	}
	return out, nil
}

// Outputs decodes the outputs group.
func (wtx *WireTransaction) Outputs(s *Serializer) ([]TransactionState, error) {
	group := wtx.Groups[OutputsGroup]
	out := make([]TransactionState, 0, len(group))
	for i, b := range group {
		ts, err := s.DecodeOutput(b)
		if err != nil {
			return nil, fmt.Errorf("outputs[%d]: %w", i, err)
		}
		out = append(out, ts)
	}
	return out, nil
}

// MarshalBinary layout:
//
//	u16 version | u8 digest name len | digest name | salt[32]
//	9 x (u32 count | count x (u32 len | bytes))
func (wtx *WireTransaction) MarshalBinary() ([]byte, error) {
	if err := wtx.Validate(); err != nil {
		return nil, err
	}
	name := wtx.Digest.Name()
	if len(name) > 255 {
		return nil, txerr(TX_ERR_DIGEST, "digest name too long")
	}
	out := binary.LittleEndian.AppendUint16(nil, wireTxVersion)
	out = append(out, byte(len(name)))
	out = append(out, name...)
	out = append(out, wtx.PrivacySalt[:]...)
	for _, group := range wtx.Groups {
		// #nosec G115 -- group and component sizes are bounded by Limits.
		out = binary.LittleEndian.AppendUint32(out, uint32(len(group)))
		for _, c := range group {
			out = binary.LittleEndian.AppendUint32(out, uint32(len(c)))
			out = append(out, c...)
		}
	}
	return out, nil
}

func UnmarshalWireTransaction(b []byte) (*WireTransaction, error) {
	r := &txReader{b: b}
	ver, err := r.version()
	if err != nil {
		return nil, err
	}
	if ver != wireTxVersion {
		return nil, txerr(TX_ERR_VERSION, fmt.Sprintf("version %d", ver))
	}
	name, err := r.digestName()
	if err != nil {
		return nil, err
	}
	ds, err := crypto.New(name)
	if err != nil {
		return nil, txwrap(TX_ERR_DIGEST, "", err)
	}
	wtx := &WireTransaction{Digest: ds}
	if wtx.PrivacySalt, err = r.salt(); err != nil {
		return nil, err
	}
	for g := range wtx.Groups {
		if wtx.Groups[g], err = r.group(ComponentGroup(g)); err != nil {
			return nil, err
		}
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	if err := wtx.Validate(); err != nil {
		return nil, err
	}
	return wtx, nil
}
