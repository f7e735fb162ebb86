// Package access resolves which branches a caller may see.
//
// A Scope is one of three cases and every consumer must handle all of
// them: Unrestricted (no branch filter), NoAccess (nothing is visible,
// which is not an error) and Branches (an explicit allow-list).
package access

import (
	"fmt"
	"slices"
)

type Kind int

const (
	KindNoAccess Kind = iota
	KindUnrestricted
	KindBranches
)

func (k Kind) String() string {
	switch k {
	case KindUnrestricted:
		return "unrestricted"
	case KindBranches:
		return "branches"
	default:
		return "none"
	}
}

// Scope is a value type; the zero value is NoAccess.
type Scope struct {
	kind Kind
	ids  []uint
}

func Unrestricted() Scope {
	return Scope{kind: KindUnrestricted}
}

func NoAccess() Scope {
	return Scope{kind: KindNoAccess}
}

// Branches builds an allow-list scope. Duplicates and zero ids are dropped;
// an empty list collapses to NoAccess.
func Branches(ids ...uint) Scope {
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id != 0 && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return NoAccess()
	}
	slices.Sort(out)
	return Scope{kind: KindBranches, ids: out}
}

func (s Scope) Kind() Kind {
	return s.kind
}

// BranchIDs returns a copy of the allow-list; nil for the other kinds.
func (s Scope) BranchIDs() []uint {
	if s.kind != KindBranches {
		return nil
	}
	return slices.Clone(s.ids)
}

// Allows reports whether a single entity in branchID is visible.
func (s Scope) Allows(branchID uint) bool {
	switch s.kind {
	case KindUnrestricted:
		return true
	case KindBranches:
		return slices.Contains(s.ids, branchID)
	default:
		return false
	}
}

func (s Scope) String() string {
	if s.kind == KindBranches {
		return fmt.Sprintf("branches%v", s.ids)
	}
	return s.kind.String()
}
