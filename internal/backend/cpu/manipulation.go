package cpu

import (
	"fmt"

	"github.com/beamform-go/beamform/internal/tensor"
)

// Cat concatenates tensors along a dimension.
// All tensors must share dtype and every dimension except dim.
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: no tensors to concatenate")
	}
	first := tensors[0]
	ndim := len(first.Shape())
	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("cat: dimension %d out of range for %dD tensor", dim, ndim))
	}

	outShape := first.Shape().Clone()
	for _, t := range tensors[1:] {
		if t.DType() != first.DType() {
			panic(fmt.Sprintf("cat: dtype mismatch: %s vs %s", first.DType(), t.DType()))
		}
		if len(t.Shape()) != ndim {
			panic(fmt.Sprintf("cat: rank mismatch: %d vs %d", ndim, len(t.Shape())))
		}
		for d := 0; d < ndim; d++ {
			if d != dim && t.Shape()[d] != outShape[d] {
				panic(fmt.Sprintf("cat: shape mismatch at dimension %d: %d vs %d", d, outShape[d], t.Shape()[d]))
			}
		}
		outShape[dim] += t.Shape()[dim]
	}

	result, err := tensor.NewRaw(outShape, first.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("cat: %v", err))
	}

	// Copy per (outer, tensor) run: each source contributes a contiguous
	// axis*inner block per outer slice.
	elemSize := first.DType().Size()
	outer, _, inner := axisSpans(outShape, dim)
	dst := result.Data()
	dstAxis := outShape[dim]
	for o := 0; o < outer; o++ {
		axisOffset := 0
		for _, t := range tensors {
			srcAxis := t.Shape()[dim]
			run := srcAxis * inner * elemSize
			srcStart := o * run
			dstStart := (o*dstAxis*inner + axisOffset*inner) * elemSize
			copy(dst[dstStart:dstStart+run], t.Data()[srcStart:srcStart+run])
			axisOffset += srcAxis
		}
	}
	return result
}

// Narrow returns a copy of a contiguous slice [start, start+length) along
// one dimension. Beamformer drivers cut transmit and frequency blocks with
// it.
func (cpu *CPUBackend) Narrow(x *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)
	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("narrow: dimension %d out of range for %dD tensor", dim, ndim))
	}
	if start < 0 || length <= 0 || start+length > shape[dim] {
		panic(fmt.Sprintf("narrow: range [%d, %d) out of bounds for dimension %d (size %d)",
			start, start+length, dim, shape[dim]))
	}

	outShape := shape.Clone()
	outShape[dim] = length
	result, err := tensor.NewRaw(outShape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("narrow: %v", err))
	}

	elemSize := x.DType().Size()
	outer, axis, inner := axisSpans(shape, dim)
	src, dst := x.Data(), result.Data()
	run := length * inner * elemSize
	for o := 0; o < outer; o++ {
		srcStart := (o*axis*inner + start*inner) * elemSize
		dstStart := o * run
		copy(dst[dstStart:dstStart+run], src[srcStart:srcStart+run])
	}
	return result
}

// Transpose transposes the tensor by permuting its dimensions.
// axes[i] names the source axis for destination axis i; empty axes reverses.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: axes length %d != ndim %d", len(axes), ndim))
	}
	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			panic(fmt.Sprintf("transpose: invalid axis %d for %dD tensor", ax, ndim))
		}
		if seen[ax] {
			panic(fmt.Sprintf("transpose: duplicate axis %d", ax))
		}
		seen[ax] = true
	}

	newShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		newShape[i] = shape[ax]
	}

	result, err := tensor.NewRaw(newShape, t.DType(), t.Device())
	if err != nil {
		panic(fmt.Sprintf("transpose: %v", err))
	}

	srcStrides := shape.ComputeStrides()
	dstStrides := newShape.ComputeStrides()
	elemSize := t.DType().Size()
	src, dst := t.Data(), result.Data()

	n := newShape.NumElements()
	for i := 0; i < n; i++ {
		srcIdx := 0
		rem := i
		for d := 0; d < ndim; d++ {
			coord := rem / dstStrides[d]
			rem %= dstStrides[d]
			srcIdx += coord * srcStrides[axes[d]]
		}
		copy(dst[i*elemSize:(i+1)*elemSize], src[srcIdx*elemSize:(srcIdx+1)*elemSize])
	}
	return result
}

// Reshape returns a tensor with the same data but a different shape.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if err := newShape.Validate(); err != nil {
		panic(fmt.Sprintf("reshape: invalid shape: %v", err))
	}
	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("reshape: incompatible shapes: %v -> %v (different number of elements)",
			t.Shape(), newShape))
	}

	result, err := tensor.NewRaw(newShape, t.DType(), t.Device())
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	copy(result.Data(), t.Data())
	return result
}

// Expand broadcasts the tensor to the target shape by materializing
// singleton axes.
func (cpu *CPUBackend) Expand(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	out, _, err := tensor.BroadcastShapes(x.Shape(), shape)
	if err != nil || !out.Equal(shape) {
		panic(fmt.Sprintf("expand: cannot broadcast %v to %v", x.Shape(), shape))
	}

	result, err := tensor.NewRaw(shape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("expand: %v", err))
	}

	srcIndex := tensor.AlignBroadcastStrides(x.Shape(), shape)
	dstStrides := shape.ComputeStrides()
	elemSize := x.DType().Size()
	src, dst := x.Data(), result.Data()

	n := shape.NumElements()
	for i := 0; i < n; i++ {
		srcIdx := 0
		rem := i
		for d := range dstStrides {
			var coord int
			if dstStrides[d] > 0 {
				coord = rem / dstStrides[d]
				rem %= dstStrides[d]
			}
			srcIdx += coord * srcIndex[d]
		}
		copy(dst[i*elemSize:(i+1)*elemSize], src[srcIdx*elemSize:(srcIdx+1)*elemSize])
	}
	return result
}

// Unsqueeze adds a dimension of size 1 at the given position.
func (cpu *CPUBackend) Unsqueeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	if dim < 0 {
		dim = len(shape) + 1 + dim
	}
	if dim < 0 || dim > len(shape) {
		panic(fmt.Sprintf("unsqueeze: dimension %d out of range for %dD tensor", dim, len(shape)))
	}
	newShape := make(tensor.Shape, 0, len(shape)+1)
	newShape = append(newShape, shape[:dim]...)
	newShape = append(newShape, 1)
	newShape = append(newShape, shape[dim:]...)
	return cpu.Reshape(x, newShape)
}

// Squeeze removes a dimension of size 1 at the given position.
func (cpu *CPUBackend) Squeeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	if dim < 0 {
		dim = len(shape) + dim
	}
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("squeeze: dimension %d out of range for %dD tensor", dim, len(shape)))
	}
	if shape[dim] != 1 {
		panic(fmt.Sprintf("squeeze: dimension %d has size %d, not 1", dim, shape[dim]))
	}
	newShape := make(tensor.Shape, 0, len(shape)-1)
	newShape = append(newShape, shape[:dim]...)
	newShape = append(newShape, shape[dim+1:]...)
	return cpu.Reshape(x, newShape)
}

// Cast converts the tensor to a different data type.
// Real to complex embeds the value on the real axis; complex to real is not
// allowed (use Real, Imag or Abs explicitly).
func (cpu *CPUBackend) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	if x.DType() == dtype {
		return x.Clone()
	}
	result, err := tensor.NewRaw(x.Shape(), dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("cast: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		castFromReal(floats32(x.AsFloat32()), result)
	case tensor.Float64:
		castFromReal(x.AsFloat64(), result)
	case tensor.Complex64:
		castFromComplex(complexWiden(x.AsComplex64()), result)
	case tensor.Complex128:
		castFromComplex(x.AsComplex128(), result)
	default:
		panic(fmt.Sprintf("cast: unsupported source dtype %s", x.DType()))
	}
	return result
}

func floats32(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func complexWiden(in []complex64) []complex128 {
	out := make([]complex128, len(in))
	for i, v := range in {
		out[i] = complex128(v)
	}
	return out
}

func castFromReal(in []float64, out *tensor.RawTensor) {
	switch out.DType() {
	case tensor.Float32:
		dst := out.AsFloat32()
		for i, v := range in {
			dst[i] = float32(v)
		}
	case tensor.Float64:
		copy(out.AsFloat64(), in)
	case tensor.Complex64:
		dst := out.AsComplex64()
		for i, v := range in {
			dst[i] = complex(float32(v), 0)
		}
	case tensor.Complex128:
		dst := out.AsComplex128()
		for i, v := range in {
			dst[i] = complex(v, 0)
		}
	default:
		panic(fmt.Sprintf("cast: unsupported target dtype %s", out.DType()))
	}
}

func castFromComplex(in []complex128, out *tensor.RawTensor) {
	switch out.DType() {
	case tensor.Complex64:
		dst := out.AsComplex64()
		for i, v := range in {
			dst[i] = complex64(v)
		}
	case tensor.Complex128:
		copy(out.AsComplex128(), in)
	default:
		panic(fmt.Sprintf("cast: cannot cast complex to %s (use Real, Imag or Abs)", out.DType()))
	}
}
