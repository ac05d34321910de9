package cpu

import (
	"fmt"

	"github.com/beamform-go/beamform/internal/tensor"
)

// binaryKernel selects the per-dtype inner loops for one arithmetic op.
type binaryKernel struct {
	f32  func(dst, a, b []float32, bi *broadcastIter)
	f64  func(dst, a, b []float64, bi *broadcastIter)
	c64  func(dst, a, b []complex64, bi *broadcastIter)
	c128 func(dst, a, b []complex128, bi *broadcastIter)
}

// broadcastIter maps a flat output index to flat indices into the two
// operands, with singleton axes pinned at zero. A nil iterator means the
// shapes already match.
type broadcastIter struct {
	outStrides []int
	aIndex     []int // per-axis stride contribution for operand a (0 where broadcast)
	bIndex     []int
}

func newBroadcastIter(a, b tensor.Shape, out tensor.Shape) *broadcastIter {
	bi := &broadcastIter{
		outStrides: out.ComputeStrides(),
		aIndex:     tensor.AlignBroadcastStrides(a, out),
		bIndex:     tensor.AlignBroadcastStrides(b, out),
	}
	return bi
}

// source computes the flat operand indices for output element i.
func (bi *broadcastIter) source(i int) (ai, biIdx int) {
	rem := i
	for d, s := range bi.outStrides {
		var coord int
		if s > 0 {
			coord = rem / s
			rem %= s
		}
		ai += coord * bi.aIndex[d]
		biIdx += coord * bi.bIndex[d]
	}
	return ai, biIdx
}

func binaryVectorized(op string, result, a, b *tensor.RawTensor, k binaryKernel) {
	switch a.DType() {
	case tensor.Float32:
		k.f32(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), nil)
	case tensor.Float64:
		k.f64(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), nil)
	case tensor.Complex64:
		k.c64(result.AsComplex64(), a.AsComplex64(), b.AsComplex64(), nil)
	case tensor.Complex128:
		k.c128(result.AsComplex128(), a.AsComplex128(), b.AsComplex128(), nil)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, a.DType()))
	}
}

func binaryWithBroadcast(op string, result, a, b *tensor.RawTensor, outShape tensor.Shape, k binaryKernel) {
	bi := newBroadcastIter(a.Shape(), b.Shape(), outShape)
	switch a.DType() {
	case tensor.Float32:
		k.f32(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), bi)
	case tensor.Float64:
		k.f64(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), bi)
	case tensor.Complex64:
		k.c64(result.AsComplex64(), a.AsComplex64(), b.AsComplex64(), bi)
	case tensor.Complex128:
		k.c128(result.AsComplex128(), a.AsComplex128(), b.AsComplex128(), bi)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, a.DType()))
	}
}

// numeric covers the element types the arithmetic kernels run on.
type numeric interface {
	~float32 | ~float64 | ~complex64 | ~complex128
}

func addLoop[T numeric](dst, a, b []T, bi *broadcastIter) {
	if bi == nil {
		for i := range dst {
			dst[i] = a[i] + b[i]
		}
		return
	}
	for i := range dst {
		ai, biIdx := bi.source(i)
		dst[i] = a[ai] + b[biIdx]
	}
}

func subLoop[T numeric](dst, a, b []T, bi *broadcastIter) {
	if bi == nil {
		for i := range dst {
			dst[i] = a[i] - b[i]
		}
		return
	}
	for i := range dst {
		ai, biIdx := bi.source(i)
		dst[i] = a[ai] - b[biIdx]
	}
}

func mulLoop[T numeric](dst, a, b []T, bi *broadcastIter) {
	if bi == nil {
		for i := range dst {
			dst[i] = a[i] * b[i]
		}
		return
	}
	for i := range dst {
		ai, biIdx := bi.source(i)
		dst[i] = a[ai] * b[biIdx]
	}
}

func divLoop[T numeric](dst, a, b []T, bi *broadcastIter) {
	if bi == nil {
		for i := range dst {
			dst[i] = a[i] / b[i]
		}
		return
	}
	for i := range dst {
		ai, biIdx := bi.source(i)
		dst[i] = a[ai] / b[biIdx]
	}
}

var addKernel = binaryKernel{
	f32:  addLoop[float32],
	f64:  addLoop[float64],
	c64:  addLoop[complex64],
	c128: addLoop[complex128],
}

var subKernel = binaryKernel{
	f32:  subLoop[float32],
	f64:  subLoop[float64],
	c64:  subLoop[complex64],
	c128: subLoop[complex128],
}

var mulKernel = binaryKernel{
	f32:  mulLoop[float32],
	f64:  mulLoop[float64],
	c64:  mulLoop[complex64],
	c128: mulLoop[complex128],
}

var divKernel = binaryKernel{
	f32:  divLoop[float32],
	f64:  divLoop[float64],
	c64:  divLoop[complex64],
	c128: divLoop[complex128],
}
