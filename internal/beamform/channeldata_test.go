package beamform

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

func zerosF64(t *testing.T, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	return r
}

func tnmAxes(t *testing.T) tensor.Axes {
	t.Helper()
	axes, err := tensor.NewAxes(tensor.Time, tensor.Receive, tensor.Transmit)
	require.NoError(t, err)
	return axes
}

func TestNewChannelData_Validation(t *testing.T) {
	axes := tnmAxes(t)
	data := zerosF64(t, tensor.Shape{8, 2, 3})

	t.Run("valid", func(t *testing.T) {
		chd, err := NewChannelData(data, axes, 20e6, nil)
		require.NoError(t, err)
		assert.Equal(t, 8, chd.T())
		assert.Equal(t, 2, chd.N())
		assert.Equal(t, 3, chd.M())
	})

	t.Run("nil data", func(t *testing.T) {
		_, err := NewChannelData(nil, axes, 20e6, nil)
		assert.Error(t, err)
	})

	t.Run("bad sample rate", func(t *testing.T) {
		_, err := NewChannelData(data, axes, 0, nil)
		assert.Error(t, err)
	})

	t.Run("axes rank mismatch", func(t *testing.T) {
		_, err := NewChannelData(zerosF64(t, tensor.Shape{8, 2}), axes, 20e6, nil)
		assert.Error(t, err)
	})

	t.Run("t0 per transmit", func(t *testing.T) {
		t0 := rawF64(t, tensor.Shape{1, 1, 3}, []float64{0, 1e-6, 2e-6})
		_, err := NewChannelData(data, axes, 20e6, t0)
		assert.NoError(t, err)
	})

	t.Run("t0 varying along time", func(t *testing.T) {
		t0 := zerosF64(t, tensor.Shape{8, 1, 1})
		_, err := NewChannelData(data, axes, 20e6, t0)
		assert.Error(t, err)
	})

	t.Run("t0 varying along receive", func(t *testing.T) {
		t0 := zerosF64(t, tensor.Shape{1, 2, 1})
		_, err := NewChannelData(data, axes, 20e6, t0)
		assert.Error(t, err)
	})
}

func TestChannelData_Canonical(t *testing.T) {
	b := cpu.New()
	axes, err := tensor.NewAxes(tensor.Receive, tensor.Transmit, tensor.Time)
	require.NoError(t, err)

	data := zerosF64(t, tensor.Shape{2, 3, 8})
	data.AsFloat64()[0*3*8+1*8+5] = 42 // receive 0, transmit 1, sample 5

	chd, err := NewChannelData(data, axes, 20e6, nil)
	require.NoError(t, err)

	canon, err := chd.Canonical(b)
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{8, 2, 3}, canon.Data.Shape())
	assert.Equal(t, "TNM", canon.Axes.String())
	assert.Equal(t, 42.0, canon.Data.AsFloat64()[5*2*3+0*3+1])

	// Already canonical data passes through unchanged.
	again, err := canon.Canonical(b)
	require.NoError(t, err)
	assert.Equal(t, canon.Data, again.Data)
}

func TestChannelData_ZeroPad(t *testing.T) {
	b := cpu.New()
	data := rawF64(t, tensor.Shape{3, 1, 1}, []float64{1, 2, 3})
	chd, err := NewChannelData(data, tnmAxes(t), 10e6, nil)
	require.NoError(t, err)

	padded, err := chd.ZeroPad(b, 2, 1)
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{6, 1, 1}, padded.Data.Shape())
	assert.Equal(t, []float64{0, 0, 1, 2, 3, 0}, padded.Data.AsFloat64())

	// t0 moves back by pre/fs.
	require.NotNil(t, padded.T0)
	assert.InDelta(t, -2.0/10e6, padded.T0.AsFloat64()[0], 1e-18)
}

func TestChannelData_Hilbert(t *testing.T) {
	b := cpu.New()
	const n = 64
	data := zerosF64(t, tensor.Shape{n, 1, 1})
	d := data.AsFloat64()
	for k := range d {
		d[k] = math.Cos(2 * math.Pi * 4 * float64(k) / n)
	}
	chd, err := NewChannelData(data, tnmAxes(t), 20e6, nil)
	require.NoError(t, err)

	an, err := chd.Hilbert(b)
	require.NoError(t, err)
	require.Equal(t, tensor.Complex128, an.Data.DType())

	// The analytic signal of a pure tone has unit envelope and preserves
	// the real part.
	ad := an.Data.AsComplex128()
	for k := 0; k < n; k++ {
		assert.InDelta(t, d[k], real(ad[k]), 1e-9, "real part at %d", k)
		assert.InDelta(t, 1.0, cmplx.Abs(ad[k]), 1e-9, "envelope at %d", k)
	}
}

func TestChannelData_DownMixRoundTrip(t *testing.T) {
	b := cpu.New()
	const n, fs, fc = 32, 20e6, 5e6
	data := zerosF64(t, tensor.Shape{n, 1, 1})
	d := data.AsFloat64()
	for k := range d {
		d[k] = math.Sin(2 * math.Pi * fc * float64(k) / fs)
	}
	chd, err := NewChannelData(data, tnmAxes(t), fs, nil)
	require.NoError(t, err)

	base, err := chd.DownMix(b, fc)
	require.NoError(t, err)
	back, err := base.DownMix(b, -fc)
	require.NoError(t, err)

	bd := back.Data.AsComplex128()
	for k := 0; k < n; k++ {
		assert.InDelta(t, d[k], real(bd[k]), 1e-12, "sample %d", k)
		assert.InDelta(t, 0, imag(bd[k]), 1e-12, "sample %d", k)
	}
}
