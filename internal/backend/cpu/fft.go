package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/beamform-go/beamform/internal/tensor"
)

// FFT computes the forward DFT along one axis. The lane is zero padded or
// truncated to length n (n <= 0 keeps the axis length). Output dtype is
// complex128.
func (cpu *CPUBackend) FFT(x *tensor.RawTensor, dim, n int) *tensor.RawTensor {
	return cpu.fft(x, dim, n, false)
}

// IFFT computes the normalized inverse DFT along one axis.
func (cpu *CPUBackend) IFFT(x *tensor.RawTensor, dim, n int) *tensor.RawTensor {
	return cpu.fft(x, dim, n, true)
}

func (cpu *CPUBackend) fft(x *tensor.RawTensor, dim, n int, inverse bool) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)
	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("fft: dimension %d out of range for %dD tensor", dim, ndim))
	}
	if n <= 0 {
		n = shape[dim]
	}

	in := cpu.Cast(x, tensor.Complex128)

	outShape := shape.Clone()
	outShape[dim] = n
	result, err := tensor.NewRaw(outShape, tensor.Complex128, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("fft: %v", err))
	}

	outer, axis, inner := axisSpans(shape, dim)
	src := in.AsComplex128()
	dst := result.AsComplex128()

	fft := fourier.NewCmplxFFT(n)
	lane := make([]complex128, n)
	spec := make([]complex128, n)
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			// Gather one lane, zero padded or truncated to n.
			for k := range lane {
				lane[k] = 0
			}
			m := axis
			if m > n {
				m = n
			}
			for a := 0; a < m; a++ {
				lane[a] = src[o*axis*inner+a*inner+i]
			}

			if inverse {
				fft.Sequence(spec, lane)
				scale := complex(1/float64(n), 0)
				for k := range spec {
					spec[k] *= scale
				}
			} else {
				fft.Coefficients(spec, lane)
			}

			for a := 0; a < n; a++ {
				dst[o*n*inner+a*inner+i] = spec[a]
			}
		}
	}
	return result
}
