package sample

import (
	"fmt"
	"log/slog"
	"math"
	"math/cmplx"

	"github.com/beamform-go/beamform/internal/tensor"
)

// Opts configures one sampling pass. Every field is explicit; there are no
// keyword-style defaults hiding inside the kernel.
type Opts struct {
	// Delay holds, per output element, a continuous (possibly fractional)
	// time-sample index into the data. It must have the same rank as the
	// data and be broadcastable against it in every axis except Time; its
	// own Time-axis length sets the output sample count.
	Delay *tensor.RawTensor

	// Weight, if non-nil, is multiplied elementwise after interpolation.
	// It must be broadcastable against the pre-reduction output shape.
	Weight *tensor.RawTensor

	// Method selects the interpolation kernel.
	Method Method

	// ReduceAxes is an ordered list of axes summed after weighting. The
	// reduced axes are kept with size 1.
	ReduceAxes []int

	// ModFreq applies a demodulation-undo phasor exp(+2πi·ModFreq·τ/Fs)
	// through the interpolation, where τ is the sampled delay. Zero
	// disables it.
	ModFreq float64

	// Fs is the sample rate used to scale ModFreq. Zero means 1 (ModFreq
	// already normalized to cycles per sample).
	Fs float64
}

// Sample interpolates data along timeAxis at the fractional indices in
// opts.Delay, applies the weight, and sums over opts.ReduceAxes.
//
// The backend parameter fixes where the pass executes; it is never inferred
// from the input tensors. Only the CPU device carries a kernel today, but
// the seam is where a device implementation would slot in.
//
// Delay values outside [0, T-1] produce 0, not an error.
func Sample(b tensor.Backend, data *tensor.RawTensor, timeAxis int, opts Opts) (*tensor.RawTensor, error) {
	if b.Device() != tensor.CPU {
		return nil, fmt.Errorf("sample: no kernel for backend %s", b.Name())
	}
	if data == nil || opts.Delay == nil {
		return nil, fmt.Errorf("sample: data and delay must be non-nil")
	}

	shape := data.Shape()
	ndim := len(shape)
	if timeAxis < 0 {
		timeAxis = ndim + timeAxis
	}
	if timeAxis < 0 || timeAxis >= ndim {
		return nil, fmt.Errorf("sample: time axis %d out of range for %dD data", timeAxis, ndim)
	}

	delay := opts.Delay
	if len(delay.Shape()) != ndim {
		return nil, fmt.Errorf("sample: delay rank %d != data rank %d", len(delay.Shape()), ndim)
	}
	if delay.DType() != tensor.Float32 && delay.DType() != tensor.Float64 {
		return nil, fmt.Errorf("sample: delay dtype %s is not real", delay.DType())
	}
	if ok, ax, dDim, lDim := tensor.BroadcastableExcept(shape, delay.Shape(), timeAxis); !ok {
		return nil, fmt.Errorf("sample: delay not broadcastable against data at axis %d: %d vs %d", ax, dDim, lDim)
	}

	// Pre-reduction output shape: per-axis broadcast of data and delay,
	// except Time, which the delay dictates.
	preShape := make(tensor.Shape, ndim)
	for i := 0; i < ndim; i++ {
		if i == timeAxis {
			preShape[i] = delay.Shape()[i]
		} else {
			preShape[i] = maxDim(shape[i], delay.Shape()[i])
		}
	}

	weight := opts.Weight
	if weight != nil {
		if len(weight.Shape()) != ndim {
			return nil, fmt.Errorf("sample: weight rank %d != data rank %d", len(weight.Shape()), ndim)
		}
		for i := 0; i < ndim; i++ {
			if weight.Shape()[i] != 1 && weight.Shape()[i] != preShape[i] {
				return nil, fmt.Errorf("sample: weight not broadcastable against output at axis %d: %d vs %d",
					i, preShape[i], weight.Shape()[i])
			}
		}
	}

	outShape := preShape.Clone()
	for _, ax := range opts.ReduceAxes {
		if ax < 0 || ax >= ndim {
			return nil, fmt.Errorf("sample: reduce axis %d out of range for %dD output", ax, ndim)
		}
		outShape[ax] = 1
	}

	outType := tensor.Float64
	complexOut := data.DType().IsComplex() || opts.ModFreq != 0 ||
		(weight != nil && weight.DType().IsComplex())
	if complexOut {
		outType = tensor.Complex128
	}

	result, err := tensor.NewRaw(outShape, outType, b.Device())
	if err != nil {
		return nil, fmt.Errorf("sample: %w", err)
	}

	narrow := data.DType() == tensor.Float32 || data.DType() == tensor.Complex64
	if opts.Method == Freq && narrow {
		slog.Warn("freq interpolation on narrow-precision data may be insufficiently precise",
			"dtype", data.DType().String())
	}

	p, err := newPass(data, delay, weight, preShape, outShape, timeAxis, opts)
	if err != nil {
		return nil, err
	}
	p.run(result)
	return result, nil
}

// pass carries the resolved state of one sampling loop.
type pass struct {
	dataAt   func(int) complex128
	delayAt  func(int) float64
	weightAt func(int) complex128 // nil means weight of 1

	preStrides  []int // strides over the pre-reduction shape
	dataIndex   []int // aligned strides, zeroed on the time axis
	delayIndex  []int
	weightIndex []int
	outIndex    []int // aligned strides with reduced axes zeroed

	timeAxis   int
	timeStride int // data stride along the time axis
	nTime      int // data length along the time axis
	numOut     int

	kern    kernelFunc
	freq    *freqSampler
	modStep float64 // 2π·ModFreq/Fs; 0 disables modulation
}

func newPass(data, delay, weight *tensor.RawTensor, preShape, outShape tensor.Shape,
	timeAxis int, opts Opts) (*pass, error) {
	p := &pass{
		dataAt:     complexReader(data),
		delayAt:    realReader(delay),
		preStrides: preShape.ComputeStrides(),
		dataIndex:  tensor.AlignBroadcastStrides(data.Shape(), preShape),
		delayIndex: tensor.AlignBroadcastStrides(delay.Shape(), preShape),
		outIndex:   tensor.AlignBroadcastStrides(outShape, preShape),
		timeAxis:   timeAxis,
		timeStride: data.Shape().ComputeStrides()[timeAxis],
		nTime:      data.Shape()[timeAxis],
		numOut:     preShape.NumElements(),
	}
	// The time axis of the data is walked by the kernel, not the index map.
	p.dataIndex[timeAxis] = 0

	if weight != nil {
		p.weightAt = complexReader(weight)
		p.weightIndex = tensor.AlignBroadcastStrides(weight.Shape(), preShape)
	}

	fs := opts.Fs
	if fs == 0 {
		fs = 1
	}
	if opts.ModFreq != 0 {
		p.modStep = 2 * math.Pi * opts.ModFreq / fs
	}

	if opts.Method == Freq {
		fr, err := newFreqSampler(p, delay)
		if err != nil {
			return nil, err
		}
		p.freq = fr
	} else {
		p.kern = kernelFor(opts.Method)
		if p.kern == nil {
			return nil, fmt.Errorf("sample: unsupported method %s", opts.Method)
		}
	}
	return p, nil
}

func (p *pass) run(result *tensor.RawTensor) {
	var outC []complex128
	var outF []float64
	if result.DType() == tensor.Complex128 {
		outC = result.AsComplex128()
	} else {
		outF = result.AsFloat64()
	}

	for i := 0; i < p.numOut; i++ {
		dataBase, delayIdx, weightIdx, outIdx := p.indices(i)
		tau := p.delayAt(delayIdx)

		var v complex128
		if p.freq != nil {
			v = p.freq.eval(dataBase, tau)
		} else {
			lane := func(k int) complex128 {
				if k < 0 || k >= p.nTime {
					return 0
				}
				return p.dataAt(dataBase + k*p.timeStride)
			}
			v = p.kern(lane, p.nTime, tau)
		}

		if p.modStep != 0 {
			v *= cmplx.Exp(complex(0, p.modStep*tau))
		}
		if p.weightAt != nil {
			v *= p.weightAt(weightIdx)
		}

		if outC != nil {
			outC[outIdx] += v
		} else {
			outF[outIdx] += real(v)
		}
	}
}

// indices maps a flat pre-reduction index to the four flat source indices.
func (p *pass) indices(i int) (dataBase, delayIdx, weightIdx, outIdx int) {
	rem := i
	for d, s := range p.preStrides {
		var coord int
		if s > 0 {
			coord = rem / s
			rem %= s
		}
		dataBase += coord * p.dataIndex[d]
		delayIdx += coord * p.delayIndex[d]
		outIdx += coord * p.outIndex[d]
		if p.weightIndex != nil {
			weightIdx += coord * p.weightIndex[d]
		}
	}
	return dataBase, delayIdx, weightIdx, outIdx
}

// complexReader returns a flat-index reader yielding complex128 for any
// supported dtype.
func complexReader(t *tensor.RawTensor) func(int) complex128 {
	switch t.DType() {
	case tensor.Float32:
		d := t.AsFloat32()
		return func(i int) complex128 { return complex(float64(d[i]), 0) }
	case tensor.Float64:
		d := t.AsFloat64()
		return func(i int) complex128 { return complex(d[i], 0) }
	case tensor.Complex64:
		d := t.AsComplex64()
		return func(i int) complex128 { return complex128(d[i]) }
	case tensor.Complex128:
		d := t.AsComplex128()
		return func(i int) complex128 { return d[i] }
	case tensor.Bool:
		d := t.AsBool()
		return func(i int) complex128 {
			if d[i] {
				return 1
			}
			return 0
		}
	default:
		panic(fmt.Sprintf("sample: unsupported dtype %s", t.DType()))
	}
}

// realReader returns a flat-index reader yielding float64 for real dtypes.
func realReader(t *tensor.RawTensor) func(int) float64 {
	switch t.DType() {
	case tensor.Float32:
		d := t.AsFloat32()
		return func(i int) float64 { return float64(d[i]) }
	case tensor.Float64:
		d := t.AsFloat64()
		return func(i int) float64 { return d[i] }
	default:
		panic(fmt.Sprintf("sample: dtype %s is not real", t.DType()))
	}
}

func maxDim(a, b int) int {
	if a > b {
		return a
	}
	return b
}
