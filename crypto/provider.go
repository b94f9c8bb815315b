package crypto

import (
	"fmt"
	"sort"
)

const (
	SHA256     = "sha256"
	SHA3_256   = "sha3-256"
	BLAKE2b256 = "blake2b-256"
	MiMCBN254  = "mimc-bn254"
)

// DigestService is the narrow hashing interface used by ledger and witness code.
//
// Nonce binds a leaf to (privacy salt, group ordinal, component index); Leaf
// binds a serialized component to its nonce; Node combines two merkle children.
type DigestService interface {
	Name() string
	Hash(data []byte) [32]byte
	Nonce(salt [32]byte, group uint32, index uint32) [32]byte
	Leaf(nonce [32]byte, component []byte) [32]byte
	Node(left, right [32]byte) [32]byte
}

var services = map[string]func() DigestService{
	SHA256:     func() DigestService { return NewSHA256() },
	SHA3_256:   func() DigestService { return NewSHA3() },
	BLAKE2b256: func() DigestService { return NewBLAKE2b() },
	MiMCBN254:  func() DigestService { return MiMC{} },
}

// New returns the digest service registered under name.
func New(name string) (DigestService, error) {
	ctor, ok := services[name]
	if !ok {
		return nil, fmt.Errorf("crypto: unknown digest algorithm %q", name)
	}
	return ctor(), nil
}

// Names lists the supported digest algorithms in sorted order.
func Names() []string {
	out := make([]string, 0, len(services))
	for name := range services {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
