package witness

import "zkledger.dev/node/ledger"

// VisibilityPolicy selects the components that enter the witness.
type VisibilityPolicy interface {
	IsVisible(g ledger.ComponentGroup, index int) bool
}

type PolicyFunc func(g ledger.ComponentGroup, index int) bool

func (f PolicyFunc) IsVisible(g ledger.ComponentGroup, index int) bool { return f(g, index) }

// AllVisible keeps every component.
var AllVisible VisibilityPolicy = PolicyFunc(func(ledger.ComponentGroup, int) bool { return true })

type Visibility uint8

const (
	Private Visibility = iota
	Public
)

// Metadata is the visibility declared by a command for the transactions it
// appears in. Outputs[i] governs output i; outputs past the end of the slice
// are private. Groups listed in Hidden are dropped entirely; every other
// group is visible.
type Metadata struct {
	Command string
	Outputs []Visibility
	Hidden  []ledger.ComponentGroup
}

func (m Metadata) Policy() VisibilityPolicy {
	hidden := make(map[ledger.ComponentGroup]bool, len(m.Hidden))
	for _, g := range m.Hidden {
		hidden[g] = true
	}
	outputs := append([]Visibility(nil), m.Outputs...)
	return PolicyFunc(func(g ledger.ComponentGroup, index int) bool {
		if hidden[g] {
			return false
		}
		if g != ledger.OutputsGroup {
			return true
		}
		return index >= 0 && index < len(outputs) && outputs[index] == Public
	})
}
