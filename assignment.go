package gdbscan

import (
	"fmt"
	"slices"
)

// State is the variant tag of an Assignment.
type State uint8

const (
	// StateUnassigned: not yet known to be core or border. Noise unless
	// upgraded later.
	StateUnassigned State = iota
	// StateCore: a density-core point owning a forest record.
	StateCore
	// StateBorder: adjacent to one known core.
	StateBorder
	// StateMultiBorder: adjacent to cores that belonged to different
	// clusters when the point was labeled.
	StateMultiBorder
)

func (s State) String() string {
	switch s {
	case StateUnassigned:
		return "unassigned"
	case StateCore:
		return "core"
	case StateBorder:
		return "border"
	case StateMultiBorder:
		return "multiborder"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Assignment is the labeling state of one point. The zero value is
// StateUnassigned.
//
// Assignment values are immutable once published to the assignment store:
// a MultiBorder update builds a new owner slice, so readers outside the
// engine lock never observe a slice being written.
type Assignment struct {
	State State
	// Index is the forest record of a Core or Border point. A Border index
	// may be stale after merges; it is resolved by find at finalization.
	Index int32
	// Owners lists forest records of a MultiBorder point, one per cluster
	// that was distinct when the owner was added.
	Owners []int32
}

func coreAssignment(idx int32) Assignment   { return Assignment{State: StateCore, Index: idx} }
func borderAssignment(idx int32) Assignment { return Assignment{State: StateBorder, Index: idx} }

func multiBorderAssignment(a, b int32) Assignment {
	return Assignment{State: StateMultiBorder, Owners: []int32{a, b}}
}

// withOwner returns a MultiBorder with idx added, unless an owner already
// resolves to the same cluster. The second result reports whether a new
// value was built.
func (a Assignment) withOwner(idx int32, f *forest) (Assignment, bool) {
	r := f.find(idx)
	for _, o := range a.Owners {
		if f.find(o) == r {
			return a, false
		}
	}
	owners := make([]int32, len(a.Owners), len(a.Owners)+1)
	copy(owners, a.Owners)
	return Assignment{State: StateMultiBorder, Owners: append(owners, idx)}, true
}

// Equal reports whether two assignments carry the same state.
func (a Assignment) Equal(b Assignment) bool {
	return a.State == b.State && a.Index == b.Index && slices.Equal(a.Owners, b.Owners)
}

func (a Assignment) String() string {
	switch a.State {
	case StateCore, StateBorder:
		return fmt.Sprintf("%s(%d)", a.State, a.Index)
	case StateMultiBorder:
		return fmt.Sprintf("%s%v", a.State, a.Owners)
	default:
		return a.State.String()
	}
}
