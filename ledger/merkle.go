package ledger

import "zkledger.dev/node/crypto"

// MerkleRoot folds leaves pairwise with ds.Node. An odd node at the end of a
// level is carried forward unchanged. The root of no leaves is the zero hash.
func MerkleRoot(ds crypto.DigestService, leaves []SecureHash) SecureHash {
	if len(leaves) == 0 {
		return SecureHash{}
	}
	level := append([]SecureHash(nil), leaves...)
	for len(level) > 1 {
		next := make([]SecureHash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); {
			if i == len(level)-1 {
				next = append(next, level[i])
				i++
				continue
			}
			next = append(next, ds.Node(level[i], level[i+1]))
			i += 2
		}
		level = next
	}
	return level[0]
}
