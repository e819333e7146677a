package graph

import "strings"

// Role is a bit set of node capabilities.
type Role uint8

const (
	// RoleSource nodes have no inputs and generate audio.
	RoleSource Role = 1 << iota
	// RoleEffect nodes have one input and transform it in place.
	RoleEffect
	// RoleMixer nodes have any number of inputs, summed before processing.
	RoleMixer
	// RoleTap nodes have one input, pass it through and publish a side
	// channel such as a spectrum.
	RoleTap
	// RoleOutput is the context root.
	RoleOutput
)

// Has reports whether r includes all bits of other.
func (r Role) Has(other Role) bool { return r&other == other }

func (r Role) String() string {
	var parts []string
	for _, x := range []struct {
		bit  Role
		name string
	}{
		{RoleSource, "source"},
		{RoleEffect, "effect"},
		{RoleMixer, "mixer"},
		{RoleTap, "tap"},
		{RoleOutput, "output"},
	} {
		if r.Has(x.bit) {
			parts = append(parts, x.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// maxInputs returns the fixed input bus count, or -1 for growable mixers.
func (r Role) maxInputs() int {
	switch {
	case r.Has(RoleMixer):
		return -1
	case r.Has(RoleSource):
		return 0
	default:
		return 1
	}
}
