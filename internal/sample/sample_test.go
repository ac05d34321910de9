package sample

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beamform-go/beamform/internal/backend/cpu"
	"github.com/beamform-go/beamform/internal/tensor"
)

func rawF64(t *testing.T, shape tensor.Shape, data []float64) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsFloat64(), data)
	return r
}

func rampDelay(t *testing.T, shape tensor.Shape, timeAxis int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	strides := shape.ComputeStrides()
	d := r.AsFloat64()
	for i := range d {
		d[i] = float64(i / strides[timeAxis] % shape[timeAxis])
	}
	return r
}

func TestSample_IdentityAtIntegerDelays(t *testing.T) {
	b := cpu.New()
	data := rawF64(t, tensor.Shape{8}, []float64{0.3, -1.2, 2.5, 0.7, -0.4, 1.1, -2.2, 0.9})
	delay := rampDelay(t, tensor.Shape{8}, 0)

	for _, m := range []Method{Nearest, Linear, Cubic, Lanczos3, Freq} {
		t.Run(m.String(), func(t *testing.T) {
			out, err := Sample(b, data, 0, Opts{Delay: delay, Method: m})
			require.NoError(t, err)
			require.Equal(t, tensor.Shape{8}, out.Shape())
			want := data.AsFloat64()
			var got []float64
			if out.DType() == tensor.Complex128 {
				for _, v := range out.AsComplex128() {
					got = append(got, real(v))
				}
			} else {
				got = out.AsFloat64()
			}
			for i := range want {
				assert.InDelta(t, want[i], got[i], 1e-9, "sample %d", i)
			}
		})
	}
}

func TestSample_LinearMidpoint(t *testing.T) {
	b := cpu.New()
	data := rawF64(t, tensor.Shape{4}, []float64{0, 2, 6, 10})
	delay := rawF64(t, tensor.Shape{3}, []float64{0.5, 1.5, 2.5})

	out, err := Sample(b, data, 0, Opts{Delay: delay, Method: Linear})
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{3}, out.Shape())
	got := out.AsFloat64()
	assert.InDelta(t, 1.0, got[0], 1e-12)
	assert.InDelta(t, 4.0, got[1], 1e-12)
	assert.InDelta(t, 8.0, got[2], 1e-12)
}

func TestSample_OutOfRangeYieldsZero(t *testing.T) {
	b := cpu.New()
	data := rawF64(t, tensor.Shape{4}, []float64{5, 5, 5, 5})
	delay := rawF64(t, tensor.Shape{2}, []float64{-1.5, 6})

	for _, m := range []Method{Nearest, Linear, Cubic, Lanczos3, Freq} {
		t.Run(m.String(), func(t *testing.T) {
			out, err := Sample(b, data, 0, Opts{Delay: delay, Method: m})
			require.NoError(t, err)
			var got []float64
			if out.DType() == tensor.Complex128 {
				for _, v := range out.AsComplex128() {
					got = append(got, cmplx.Abs(v))
				}
			} else {
				got = out.AsFloat64()
			}
			assert.InDelta(t, 0, got[0], 1e-12)
			assert.InDelta(t, 0, got[1], 1e-12)
		})
	}
}

func TestSample_NearestRounds(t *testing.T) {
	b := cpu.New()
	data := rawF64(t, tensor.Shape{4}, []float64{10, 20, 30, 40})
	delay := rawF64(t, tensor.Shape{3}, []float64{0.4, 1.6, 2.5})

	out, err := Sample(b, data, 0, Opts{Delay: delay, Method: Nearest})
	require.NoError(t, err)
	got := out.AsFloat64()
	assert.Equal(t, 10.0, got[0])
	assert.Equal(t, 30.0, got[1])
	// Round half away from zero.
	assert.Equal(t, 40.0, got[2])
}

func TestSample_ModFreqPhasor(t *testing.T) {
	b := cpu.New()
	data := rawF64(t, tensor.Shape{4}, []float64{0, 0, 3, 0})
	delay := rawF64(t, tensor.Shape{1}, []float64{2})

	const fc, fs = 5e6, 20e6
	out, err := Sample(b, data, 0, Opts{Delay: delay, Method: Nearest, ModFreq: fc, Fs: fs})
	require.NoError(t, err)
	require.Equal(t, tensor.Complex128, out.DType())

	want := 3 * cmplx.Exp(complex(0, 2*math.Pi*fc*2/fs))
	got := out.AsComplex128()[0]
	assert.InDelta(t, real(want), real(got), 1e-12)
	assert.InDelta(t, imag(want), imag(got), 1e-12)
}

func TestSample_WeightedReduction(t *testing.T) {
	b := cpu.New()
	// Two channels, three samples each.
	data := rawF64(t, tensor.Shape{3, 2}, []float64{
		1, 10,
		2, 20,
		3, 30,
	})
	delay := rampDelay(t, tensor.Shape{3, 1}, 0)
	weight := rawF64(t, tensor.Shape{1, 2}, []float64{1, 0.5})

	out, err := Sample(b, data, 0, Opts{
		Delay:      delay,
		Weight:     weight,
		Method:     Linear,
		ReduceAxes: []int{1},
	})
	require.NoError(t, err)
	// Reduced axes stay with size 1.
	require.Equal(t, tensor.Shape{3, 1}, out.Shape())
	got := out.AsFloat64()
	assert.InDelta(t, 1+5.0, got[0], 1e-12)
	assert.InDelta(t, 2+10.0, got[1], 1e-12)
	assert.InDelta(t, 3+15.0, got[2], 1e-12)
}

func TestSample_ReduceSingletonIsNoop(t *testing.T) {
	b := cpu.New()
	data := rawF64(t, tensor.Shape{3, 1}, []float64{7, 8, 9})
	delay := rampDelay(t, tensor.Shape{3, 1}, 0)

	out, err := Sample(b, data, 0, Opts{Delay: delay, Method: Linear, ReduceAxes: []int{1}})
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{3, 1}, out.Shape())
	assert.Equal(t, []float64{7, 8, 9}, out.AsFloat64())
}

func TestSample_DelayDictatesOutputLength(t *testing.T) {
	b := cpu.New()
	data := rawF64(t, tensor.Shape{8}, []float64{0, 1, 2, 3, 4, 5, 6, 7})
	delay := rawF64(t, tensor.Shape{3}, []float64{0, 3.5, 7})

	out, err := Sample(b, data, 0, Opts{Delay: delay, Method: Linear})
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{3}, out.Shape())
	got := out.AsFloat64()
	assert.InDelta(t, 0.0, got[0], 1e-12)
	assert.InDelta(t, 3.5, got[1], 1e-12)
	assert.InDelta(t, 7.0, got[2], 1e-12)
}

func TestSample_Errors(t *testing.T) {
	b := cpu.New()
	data := rawF64(t, tensor.Shape{4}, []float64{1, 2, 3, 4})

	t.Run("nil delay", func(t *testing.T) {
		_, err := Sample(b, data, 0, Opts{Method: Linear})
		assert.Error(t, err)
	})

	t.Run("rank mismatch", func(t *testing.T) {
		delay := rampDelay(t, tensor.Shape{4, 1}, 0)
		_, err := Sample(b, data, 0, Opts{Delay: delay, Method: Linear})
		assert.Error(t, err)
	})

	t.Run("time axis out of range", func(t *testing.T) {
		delay := rampDelay(t, tensor.Shape{4}, 0)
		_, err := Sample(b, data, 3, Opts{Delay: delay, Method: Linear})
		assert.Error(t, err)
	})

	t.Run("unknown method", func(t *testing.T) {
		delay := rampDelay(t, tensor.Shape{4}, 0)
		_, err := Sample(b, data, 0, Opts{Delay: delay, Method: Method(99)})
		assert.Error(t, err)
	})
}

func TestSampleSeparable_MatchesCombinedDelay(t *testing.T) {
	b := cpu.New()
	// Two lanes with distinct content and a per-lane integer shift.
	data := rawF64(t, tensor.Shape{6, 2}, []float64{
		0, 100,
		1, 101,
		2, 102,
		3, 103,
		4, 104,
		5, 105,
	})
	delayA := rawF64(t, tensor.Shape{1, 2}, []float64{1, 2})
	delayB := rampDelay(t, tensor.Shape{4, 1}, 0)

	sep, err := SampleSeparable(b, data, 0, delayA, delayB, Opts{Method: Linear})
	require.NoError(t, err)

	// Materialized sum of the two components for the reference pass.
	combined := b.Add(delayA, delayB)
	ref, err := Sample(b, data, 0, Opts{Delay: combined, Method: Linear})
	require.NoError(t, err)

	require.Equal(t, ref.Shape(), sep.Shape())
	want := ref.AsFloat64()
	got := sep.AsFloat64()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9, "element %d", i)
	}
}

func TestSampleSeparable_RequiresSingletonTimeOnFirstComponent(t *testing.T) {
	b := cpu.New()
	data := rawF64(t, tensor.Shape{4, 1}, []float64{1, 2, 3, 4})
	delayA := rampDelay(t, tensor.Shape{4, 1}, 0)
	delayB := rampDelay(t, tensor.Shape{4, 1}, 0)

	_, err := SampleSeparable(b, data, 0, delayA, delayB, Opts{Method: Linear})
	assert.Error(t, err)
}

func TestParseMethod(t *testing.T) {
	for _, tt := range []struct {
		name string
		want Method
	}{
		{"nearest", Nearest},
		{"linear", Linear},
		{"cubic", Cubic},
		{"lanczos3", Lanczos3},
		{"freq", Freq},
	} {
		got, err := ParseMethod(tt.name)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
	_, err := ParseMethod("spline")
	assert.Error(t, err)
}
