package resolver

import (
	"github.com/pkg/errors"

	"zkledger.dev/node/ledger"
)

var (
	ErrDuplicateTransaction = errors.New("resolver: transaction added twice")
	ErrCycle                = errors.New("resolver: dependency cycle")
)

// TopologicalSort orders transactions so that each one follows every
// dependency that was also added. Dependencies that were never added are
// treated as already resolved.
type TopologicalSort struct {
	ids  []ledger.SecureHash
	deps map[ledger.SecureHash][]ledger.SecureHash
}

func NewTopologicalSort() *TopologicalSort {
	return &TopologicalSort{deps: make(map[ledger.SecureHash][]ledger.SecureHash)}
}

func (s *TopologicalSort) Add(id ledger.SecureHash, deps []ledger.SecureHash) error {
	if _, ok := s.deps[id]; ok {
		return errors.Wrap(ErrDuplicateTransaction, id.String())
	}
	seen := make(map[ledger.SecureHash]struct{}, len(deps))
	uniq := make([]ledger.SecureHash, 0, len(deps))
	for _, d := range deps {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		uniq = append(uniq, d)
	}
	s.ids = append(s.ids, id)
	s.deps[id] = uniq
	return nil
}

func (s *TopologicalSort) Len() int { return len(s.ids) }

func (s *TopologicalSort) Contains(id ledger.SecureHash) bool {
	_, ok := s.deps[id]
	return ok
}

// Complete returns the added ids, dependencies first. Ties are broken by
// insertion order, so equal inputs always give the same order.
func (s *TopologicalSort) Complete() ([]ledger.SecureHash, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[ledger.SecureHash]int, len(s.ids))
	out := make([]ledger.SecureHash, 0, len(s.ids))

	var visit func(id ledger.SecureHash) error
	visit = func(id ledger.SecureHash) error {
		switch state[id] {
		case done:
			return nil
		case visiting:
			return errors.Wrap(ErrCycle, id.String())
		}
		state[id] = visiting
		for _, d := range s.deps[id] {
			if _, ok := s.deps[d]; !ok {
				continue
			}
			if err := visit(d); err != nil {
				return err
			}
		}
		state[id] = done
		out = append(out, id)
		return nil
	}
	for _, id := range s.ids {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return out, nil
}
