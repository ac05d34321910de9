package cpu

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/beamform-go/beamform/internal/tensor"
)

// SumDim sums tensor elements along the specified dimension.
//
// Parameters:
//   - dim: dimension to reduce (supports negative indexing: -1 = last dim)
//   - keepDim: if true, keep the reduced dimension with size 1; if false, remove it
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("sumdim: dimension %d out of range for %dD tensor", dim, ndim))
	}

	var outShape tensor.Shape
	if keepDim {
		outShape = shape.Clone()
		outShape[dim] = 1
	} else {
		outShape = make(tensor.Shape, 0, ndim-1)
		for i := 0; i < ndim; i++ {
			if i != dim {
				outShape = append(outShape, shape[i])
			}
		}
	}

	result, err := tensor.NewRaw(outShape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sumdim: %v", err))
	}

	// outer × axis × inner decomposition: the reduced axis sits between a
	// contiguous inner run and an outer batch.
	outer, axis, inner := axisSpans(shape, dim)

	switch x.DType() {
	case tensor.Float32:
		sumAxis(x.AsFloat32(), result.AsFloat32(), outer, axis, inner)
	case tensor.Float64:
		sumAxis(x.AsFloat64(), result.AsFloat64(), outer, axis, inner)
	case tensor.Complex64:
		sumAxis(x.AsComplex64(), result.AsComplex64(), outer, axis, inner)
	case tensor.Complex128:
		sumAxis(x.AsComplex128(), result.AsComplex128(), outer, axis, inner)
	default:
		panic(fmt.Sprintf("sumdim: unsupported dtype %s", x.DType()))
	}

	return result
}

// axisSpans splits a shape around one axis into outer, axis and inner sizes.
func axisSpans(shape tensor.Shape, dim int) (outer, axis, inner int) {
	outer, inner = 1, 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	axis = shape[dim]
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	return outer, axis, inner
}

func sumAxis[T numeric](in, out []T, outer, axis, inner int) {
	for o := 0; o < outer; o++ {
		for in0 := 0; in0 < inner; in0++ {
			var sum T
			for a := 0; a < axis; a++ {
				sum += in[o*axis*inner+a*inner+in0]
			}
			out[o*inner+in0] = sum
		}
	}
}

// MaxAbs returns the largest element magnitude in the tensor.
// The adjoint beamformer uses it to pick its frequency-bin threshold.
func (cpu *CPUBackend) MaxAbs(x *tensor.RawTensor) float64 {
	maxVal := 0.0
	switch x.DType() {
	case tensor.Float32:
		for _, v := range x.AsFloat32() {
			if a := math.Abs(float64(v)); a > maxVal {
				maxVal = a
			}
		}
	case tensor.Float64:
		for _, v := range x.AsFloat64() {
			if a := math.Abs(v); a > maxVal {
				maxVal = a
			}
		}
	case tensor.Complex64:
		for _, v := range x.AsComplex64() {
			if a := cmplx.Abs(complex128(v)); a > maxVal {
				maxVal = a
			}
		}
	case tensor.Complex128:
		for _, v := range x.AsComplex128() {
			if a := cmplx.Abs(v); a > maxVal {
				maxVal = a
			}
		}
	default:
		panic(fmt.Sprintf("maxabs: unsupported dtype %s", x.DType()))
	}
	return maxVal
}
