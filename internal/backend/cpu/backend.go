// Package cpu implements the CPU execution backend for the sampling kernel
// and the beamformers.
package cpu

import (
	"fmt"

	"github.com/beamform-go/beamform/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	device tensor.Device
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, addKernel)
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b, subKernel)
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, mulKernel)
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("div", a, b, divKernel)
}

// binary runs one of the arithmetic kernels with broadcasting. Operands of
// different numeric dtypes are promoted before dispatch.
func (cpu *CPUBackend) binary(op string, a, b *tensor.RawTensor, k binaryKernel) *tensor.RawTensor {
	a, b = promotePair(cpu, a, b)

	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	result, err := tensor.NewRaw(outShape, a.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}

	if !needsBroadcast && a.Shape().Equal(b.Shape()) {
		binaryVectorized(op, result, a, b, k)
	} else {
		binaryWithBroadcast(op, result, a, b, outShape, k)
	}

	return result
}

// promotePair casts mixed-dtype operands to a common dtype following the
// usual widening order (float32 < float64 < complex64 < complex128).
func promotePair(cpu *CPUBackend, a, b *tensor.RawTensor) (*tensor.RawTensor, *tensor.RawTensor) {
	if a.DType() == b.DType() {
		return a, b
	}
	target := promoteDType(a.DType(), b.DType())
	if a.DType() != target {
		a = cpu.Cast(a, target)
	}
	if b.DType() != target {
		b = cpu.Cast(b, target)
	}
	return a, b
}

func promoteDType(a, b tensor.DataType) tensor.DataType {
	rank := func(dt tensor.DataType) int {
		switch dt {
		case tensor.Float32:
			return 0
		case tensor.Float64:
			return 1
		case tensor.Complex64:
			return 2
		case tensor.Complex128:
			return 3
		default:
			panic(fmt.Sprintf("promote: unsupported dtype %s", dt))
		}
	}
	// complex64 + float64 loses precision either way; widen to complex128.
	if (a == tensor.Complex64 && b == tensor.Float64) || (a == tensor.Float64 && b == tensor.Complex64) {
		return tensor.Complex128
	}
	if rank(a) >= rank(b) {
		return a
	}
	return b
}
