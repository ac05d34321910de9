package tensor

import "fmt"

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Rank returns the number of dimensions.
func (s Shape) Rank() int {
	return len(s)
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
// Strides define memory layout: stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// BroadcastShapes implements NumPy-style broadcasting rules.
//
// Rules:
// 1. Compare shapes element-wise from right to left
// 2. Dimensions are compatible if:
//   - They are equal, OR
//   - One of them is 1
//
// 3. Missing dimensions are treated as 1
//
// Returns the broadcasted shape, a flag indicating if broadcasting is needed, and an error if incompatible.
//
// Examples:
//
//	(3, 1) + (3, 5) → (3, 5), true, nil
//	(1, 5) + (3, 5) → (3, 5), true, nil
//	(3, 5) + (3, 5) → (3, 5), false, nil
//	(3, 4) + (3, 5) → nil, false, Error
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	maxLen := maxInt(len(a), len(b))
	result := make(Shape, maxLen)
	needsBroadcast := false

	for i := 0; i < maxLen; i++ {
		aIdx := len(a) - 1 - i
		bIdx := len(b) - 1 - i

		aDim := 1
		if aIdx >= 0 {
			aDim = a[aIdx]
		}

		bDim := 1
		if bIdx >= 0 {
			bDim = b[bIdx]
		}

		switch {
		case aDim == bDim:
			result[maxLen-1-i] = aDim
		case aDim == 1:
			result[maxLen-1-i] = bDim
			needsBroadcast = true
		case bDim == 1:
			result[maxLen-1-i] = aDim
			needsBroadcast = true
		default:
			return nil, false, fmt.Errorf("shapes not compatible for broadcasting: %v vs %v (dimension %d: %d vs %d)",
				a, b, maxLen-1-i, aDim, bDim)
		}
	}

	return result, needsBroadcast, nil
}

// BroadcastAll folds BroadcastShapes over a list of shapes.
// Data, delay and weight shapes all meet here before a sampling pass.
func BroadcastAll(shapes ...Shape) (Shape, error) {
	if len(shapes) == 0 {
		return Shape{}, nil
	}
	out := shapes[0].Clone()
	for _, s := range shapes[1:] {
		merged, _, err := BroadcastShapes(out, s)
		if err != nil {
			return nil, err
		}
		out = merged
	}
	return out, nil
}

// BroadcastableExcept reports whether shape b can broadcast against shape a
// in every axis except the listed ones, which are ignored. Axes are counted
// on the longer of the two shapes. When it cannot, the offending axis and
// the two sizes are returned for error reporting.
func BroadcastableExcept(a, b Shape, except ...int) (ok bool, axis, aDim, bDim int) {
	skip := make(map[int]bool, len(except))
	for _, ax := range except {
		skip[ax] = true
	}
	maxLen := maxInt(len(a), len(b))
	for i := 0; i < maxLen; i++ {
		axis = maxLen - 1 - i
		if skip[axis] {
			continue
		}
		aDim, bDim = 1, 1
		if idx := len(a) - 1 - i; idx >= 0 {
			aDim = a[idx]
		}
		if idx := len(b) - 1 - i; idx >= 0 {
			bDim = b[idx]
		}
		if aDim != bDim && aDim != 1 && bDim != 1 {
			return false, axis, aDim, bDim
		}
	}
	return true, 0, 0, 0
}

// AlignBroadcastStrides right-aligns shape in against shape out and returns
// per-output-axis strides into in, zeroed wherever in is singleton or
// missing. Backends and the sampling kernel share this to map an output
// element back to its broadcast source.
func AlignBroadcastStrides(in, out Shape) []int {
	strides := in.ComputeStrides()
	aligned := make([]int, len(out))
	offset := len(out) - len(in)
	for i := range out {
		j := i - offset
		if j < 0 || in[j] == 1 {
			aligned[i] = 0
		} else {
			aligned[i] = strides[j]
		}
	}
	return aligned
}

// maxInt returns the maximum of two integers.
func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
