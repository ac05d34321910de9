package cpu

import (
	"fmt"

	"github.com/beamform-go/beamform/internal/tensor"
)

// MulScalar multiplies every element by a scalar.
// The scalar is converted to the tensor's dtype; a real scalar applied to a
// complex tensor scales both parts.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("mulscalar: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		s := float32(toFloat64("mulscalar", scalar))
		in, out := x.AsFloat32(), result.AsFloat32()
		for i := range in {
			out[i] = in[i] * s
		}
	case tensor.Float64:
		s := toFloat64("mulscalar", scalar)
		in, out := x.AsFloat64(), result.AsFloat64()
		for i := range in {
			out[i] = in[i] * s
		}
	case tensor.Complex64:
		s := complex64(toComplex128("mulscalar", scalar))
		in, out := x.AsComplex64(), result.AsComplex64()
		for i := range in {
			out[i] = in[i] * s
		}
	case tensor.Complex128:
		s := toComplex128("mulscalar", scalar)
		in, out := x.AsComplex128(), result.AsComplex128()
		for i := range in {
			out[i] = in[i] * s
		}
	default:
		panic(fmt.Sprintf("mulscalar: unsupported dtype %s", x.DType()))
	}
	return result
}

// AddScalar adds a scalar to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("addscalar: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		s := float32(toFloat64("addscalar", scalar))
		in, out := x.AsFloat32(), result.AsFloat32()
		for i := range in {
			out[i] = in[i] + s
		}
	case tensor.Float64:
		s := toFloat64("addscalar", scalar)
		in, out := x.AsFloat64(), result.AsFloat64()
		for i := range in {
			out[i] = in[i] + s
		}
	case tensor.Complex64:
		s := complex64(toComplex128("addscalar", scalar))
		in, out := x.AsComplex64(), result.AsComplex64()
		for i := range in {
			out[i] = in[i] + s
		}
	case tensor.Complex128:
		s := toComplex128("addscalar", scalar)
		in, out := x.AsComplex128(), result.AsComplex128()
		for i := range in {
			out[i] = in[i] + s
		}
	default:
		panic(fmt.Sprintf("addscalar: unsupported dtype %s", x.DType()))
	}
	return result
}

// toFloat64 converts a scalar argument to float64.
func toFloat64(op string, scalar any) float64 {
	switch s := scalar.(type) {
	case float32:
		return float64(s)
	case float64:
		return s
	case int:
		return float64(s)
	default:
		panic(fmt.Sprintf("%s: unsupported scalar type %T for real tensor", op, scalar))
	}
}

// toComplex128 converts a scalar argument to complex128.
func toComplex128(op string, scalar any) complex128 {
	switch s := scalar.(type) {
	case float32:
		return complex(float64(s), 0)
	case float64:
		return complex(s, 0)
	case int:
		return complex(float64(s), 0)
	case complex64:
		return complex128(s)
	case complex128:
		return s
	default:
		panic(fmt.Sprintf("%s: unsupported scalar type %T for complex tensor", op, scalar))
	}
}
