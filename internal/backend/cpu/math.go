package cpu

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/beamform-go/beamform/internal/tensor"
)

// Conj returns the element-wise complex conjugate.
// Real tensors pass through as a copy.
func (cpu *CPUBackend) Conj(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("conj: %v", err))
	}

	switch x.DType() {
	case tensor.Float32, tensor.Float64:
		copy(result.Data(), x.Data())
	case tensor.Complex64:
		in, out := x.AsComplex64(), result.AsComplex64()
		for i := range in {
			out[i] = complex(real(in[i]), -imag(in[i]))
		}
	case tensor.Complex128:
		in, out := x.AsComplex128(), result.AsComplex128()
		for i := range in {
			out[i] = cmplx.Conj(in[i])
		}
	default:
		panic(fmt.Sprintf("conj: unsupported dtype %s", x.DType()))
	}
	return result
}

// Abs returns the element-wise magnitude. Complex input yields a real
// tensor of the matching width.
func (cpu *CPUBackend) Abs(x *tensor.RawTensor) *tensor.RawTensor {
	outType := x.DType()
	switch x.DType() {
	case tensor.Complex64:
		outType = tensor.Float32
	case tensor.Complex128:
		outType = tensor.Float64
	}

	result, err := tensor.NewRaw(x.Shape(), outType, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("abs: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		in, out := x.AsFloat32(), result.AsFloat32()
		for i := range in {
			out[i] = float32(math.Abs(float64(in[i])))
		}
	case tensor.Float64:
		in, out := x.AsFloat64(), result.AsFloat64()
		for i := range in {
			out[i] = math.Abs(in[i])
		}
	case tensor.Complex64:
		in, out := x.AsComplex64(), result.AsFloat32()
		for i := range in {
			out[i] = float32(cmplx.Abs(complex128(in[i])))
		}
	case tensor.Complex128:
		in, out := x.AsComplex128(), result.AsFloat64()
		for i := range in {
			out[i] = cmplx.Abs(in[i])
		}
	default:
		panic(fmt.Sprintf("abs: unsupported dtype %s", x.DType()))
	}
	return result
}

// Phasor computes exp(i*x) of a real tensor, yielding a unit-magnitude
// complex tensor. This is the primitive behind every steering and
// focusing phase term.
func (cpu *CPUBackend) Phasor(x *tensor.RawTensor) *tensor.RawTensor {
	var outType tensor.DataType
	switch x.DType() {
	case tensor.Float32:
		outType = tensor.Complex64
	case tensor.Float64:
		outType = tensor.Complex128
	default:
		panic(fmt.Sprintf("phasor: input must be real, got %s", x.DType()))
	}

	result, err := tensor.NewRaw(x.Shape(), outType, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("phasor: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		in, out := x.AsFloat32(), result.AsComplex64()
		for i := range in {
			s, c := math.Sincos(float64(in[i]))
			out[i] = complex(float32(c), float32(s))
		}
	case tensor.Float64:
		in, out := x.AsFloat64(), result.AsComplex128()
		for i := range in {
			s, c := math.Sincos(in[i])
			out[i] = complex(c, s)
		}
	}
	return result
}

// Real extracts the real part of a complex tensor.
func (cpu *CPUBackend) Real(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.complexPart("real", x,
		func(c complex128) float64 { return real(c) },
		func(c complex64) float32 { return real(c) })
}

// Imag extracts the imaginary part of a complex tensor.
func (cpu *CPUBackend) Imag(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.complexPart("imag", x,
		func(c complex128) float64 { return imag(c) },
		func(c complex64) float32 { return imag(c) })
}

func (cpu *CPUBackend) complexPart(op string, x *tensor.RawTensor,
	f128 func(complex128) float64, f64 func(complex64) float32) *tensor.RawTensor {
	switch x.DType() {
	case tensor.Complex64:
		result, err := tensor.NewRaw(x.Shape(), tensor.Float32, cpu.device)
		if err != nil {
			panic(fmt.Sprintf("%s: %v", op, err))
		}
		in, out := x.AsComplex64(), result.AsFloat32()
		for i := range in {
			out[i] = f64(in[i])
		}
		return result
	case tensor.Complex128:
		result, err := tensor.NewRaw(x.Shape(), tensor.Float64, cpu.device)
		if err != nil {
			panic(fmt.Sprintf("%s: %v", op, err))
		}
		in, out := x.AsComplex128(), result.AsFloat64()
		for i := range in {
			out[i] = f128(in[i])
		}
		return result
	default:
		panic(fmt.Sprintf("%s: input must be complex, got %s", op, x.DType()))
	}
}
