package tensor

import (
	"fmt"
	"strings"
)

// AxisRole identifies what a tensor axis means to the beamformers.
type AxisRole int

// Axis roles carried alongside channel-data tensors.
const (
	// Time is the fast axis: uniformly spaced samples at 1/fs.
	Time AxisRole = iota
	// Receive indexes the receive elements of the aperture.
	Receive
	// Transmit indexes the transmit events of the sequence.
	Transmit
	// Free is any extra axis (frames, ensembles) the core carries through
	// untouched.
	Free
)

// String returns the single-letter name conventionally used for the role.
func (r AxisRole) String() string {
	switch r {
	case Time:
		return "T"
	case Receive:
		return "N"
	case Transmit:
		return "M"
	case Free:
		return "F"
	default:
		return "?"
	}
}

// Axes maps tensor axis index to role. It is a value type: every operation
// returns a new slice, nothing mutates in place.
type Axes []AxisRole

// NewAxes builds an Axes value and validates it.
func NewAxes(roles ...AxisRole) (Axes, error) {
	a := Axes(roles).Clone()
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate enforces the channel-data invariant: exactly one Time, one
// Receive and one Transmit axis. Any number of Free axes may follow.
func (a Axes) Validate() error {
	counts := map[AxisRole]int{}
	for _, r := range a {
		counts[r]++
	}
	for _, r := range []AxisRole{Time, Receive, Transmit} {
		if counts[r] != 1 {
			return fmt.Errorf("axes %v: role %s appears %d times, want exactly 1", a, r, counts[r])
		}
	}
	return nil
}

// Clone returns a copy of the axes.
func (a Axes) Clone() Axes {
	out := make(Axes, len(a))
	copy(out, a)
	return out
}

// Equal checks if two axis maps are identical.
func (a Axes) Equal(other Axes) bool {
	if len(a) != len(other) {
		return false
	}
	for i := range a {
		if a[i] != other[i] {
			return false
		}
	}
	return true
}

// IndexOf returns the axis carrying the given role, or -1 if absent.
// For Free, the first free axis is returned.
func (a Axes) IndexOf(role AxisRole) int {
	for i, r := range a {
		if r == role {
			return i
		}
	}
	return -1
}

// TimeAxis returns the index of the Time axis.
func (a Axes) TimeAxis() int { return a.IndexOf(Time) }

// ReceiveAxis returns the index of the Receive axis.
func (a Axes) ReceiveAxis() int { return a.IndexOf(Receive) }

// TransmitAxis returns the index of the Transmit axis.
func (a Axes) TransmitAxis() int { return a.IndexOf(Transmit) }

// Permute returns a new Axes with roles reordered by perm, where perm[i] is
// the source axis for destination axis i (same convention as Transpose).
func (a Axes) Permute(perm []int) (Axes, error) {
	if len(perm) != len(a) {
		return nil, fmt.Errorf("permutation length %d != axes length %d", len(perm), len(a))
	}
	seen := make([]bool, len(a))
	out := make(Axes, len(a))
	for i, src := range perm {
		if src < 0 || src >= len(a) {
			return nil, fmt.Errorf("permutation entry %d out of range for %d axes", src, len(a))
		}
		if seen[src] {
			return nil, fmt.Errorf("permutation entry %d repeated", src)
		}
		seen[src] = true
		out[i] = a[src]
	}
	return out, nil
}

// Insert returns a new Axes with role added at the given position.
func (a Axes) Insert(pos int, role AxisRole) (Axes, error) {
	if pos < 0 || pos > len(a) {
		return nil, fmt.Errorf("insert position %d out of range for %d axes", pos, len(a))
	}
	out := make(Axes, 0, len(a)+1)
	out = append(out, a[:pos]...)
	out = append(out, role)
	out = append(out, a[pos:]...)
	return out, nil
}

// Remove returns a new Axes with the axis at pos dropped.
func (a Axes) Remove(pos int) (Axes, error) {
	if pos < 0 || pos >= len(a) {
		return nil, fmt.Errorf("remove position %d out of range for %d axes", pos, len(a))
	}
	out := make(Axes, 0, len(a)-1)
	out = append(out, a[:pos]...)
	out = append(out, a[pos+1:]...)
	return out, nil
}

// String renders the axes as the conventional letter string, e.g. "TNM".
func (a Axes) String() string {
	var sb strings.Builder
	for _, r := range a {
		sb.WriteString(r.String())
	}
	return sb.String()
}
