package beamform

import (
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beamform-go/beamform/internal/backend/cpu"
	"github.com/beamform-go/beamform/internal/tensor"
)

func TestAdjoint_PointTargetPeak(t *testing.T) {
	b := cpu.New()
	const c0, fs = 1540.0, 20e6
	ap := linearArray(5, 0.5e-3)
	target := Vec3{0, 0, 10e-3}

	data := pointTargetData(t, ap, target, c0, fs, 400)
	chd, err := NewChannelData(data, tnmAxes(t), fs, nil)
	require.NoError(t, err)

	grid := Grid{
		X: []float64{-1e-3, -0.5e-3, 0, 0.5e-3, 1e-3},
		Z: []float64{8e-3, 9e-3, 10e-3, 11e-3, 12e-3},
	}
	seq := Sequence{Kind: FSA, C0: c0}

	img, err := Adjoint(b, chd, grid, ap, ap, seq, AdjointOpts{})
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{5, 5, 1}, img.Shape())
	require.Equal(t, tensor.Complex128, img.DType())

	id := img.AsComplex128()
	peak := 0
	for i := range id {
		if cmplx.Abs(id[i]) > cmplx.Abs(id[peak]) {
			peak = i
		}
	}
	iz, ix := peak/5, peak%5
	assert.Equal(t, 10e-3, grid.Z[iz], "peak depth")
	assert.Equal(t, 0.0, grid.X[ix], "peak lateral")
}

func TestAdjoint_StartTimeRealignment(t *testing.T) {
	b := cpu.New()
	const c0, fs = 1540.0, 20e6
	ap := linearArray(3, 0.5e-3)
	target := Vec3{0, 0, 6e-3}

	grid := Grid{X: []float64{-0.5e-3, 0, 0.5e-3}, Z: []float64{5e-3, 6e-3, 7e-3}}
	seq := Sequence{Kind: FSA, C0: c0}

	// Reference acquisition starting at t = 0.
	data := pointTargetData(t, ap, target, c0, fs, 256)
	chd, err := NewChannelData(data, tnmAxes(t), fs, nil)
	require.NoError(t, err)
	ref, err := Adjoint(b, chd, grid, ap, ap, seq, AdjointOpts{})
	require.NoError(t, err)

	// The same echoes recorded 16 samples late, with t0 declaring it.
	const lag = 16
	n := ap.N()
	shifted, err := tensor.NewRaw(tensor.Shape{256, n, n}, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	sd := shifted.AsFloat64()
	dd := data.AsFloat64()
	copy(sd[:(256-lag)*n*n], dd[lag*n*n:])
	t0 := rawF64(t, tensor.Shape{1, 1, 1}, []float64{lag / fs})
	chd2, err := NewChannelData(shifted, tnmAxes(t), fs, t0)
	require.NoError(t, err)
	got, err := Adjoint(b, chd2, grid, ap, ap, seq, AdjointOpts{})
	require.NoError(t, err)

	// Realignment restores the image up to spectral edge effects.
	rd := ref.AsComplex128()
	gd := got.AsComplex128()
	var refPeak float64
	for _, v := range rd {
		if a := cmplx.Abs(v); a > refPeak {
			refPeak = a
		}
	}
	for i := range rd {
		assert.InDelta(t, cmplx.Abs(rd[i]), cmplx.Abs(gd[i]), refPeak*0.02, "pixel %d", i)
	}
}

func TestAdjoint_KeepAxesShapes(t *testing.T) {
	b := cpu.New()
	ap := linearArray(3, 0.5e-3)
	data, err := tensor.NewRaw(tensor.Shape{64, 3, 3}, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	data.AsFloat64()[0] = 1
	chd, err := NewChannelData(data, tnmAxes(t), 20e6, nil)
	require.NoError(t, err)

	grid := Grid{X: []float64{0, 0.5e-3}, Z: []float64{5e-3}}
	seq := Sequence{Kind: FSA, C0: 1540}

	for _, tt := range []struct {
		name  string
		opts  AdjointOpts
		shape tensor.Shape
	}{
		{"sum both", AdjointOpts{}, tensor.Shape{1, 2, 1}},
		{"keep rx", AdjointOpts{KeepRx: true}, tensor.Shape{1, 2, 1, 3}},
		{"keep both", AdjointOpts{KeepRx: true, KeepTx: true}, tensor.Shape{1, 2, 1, 3, 3}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Adjoint(b, chd, grid, ap, ap, seq, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.shape, img.Shape())
		})
	}
}

func TestAdjointApod(t *testing.T) {
	mk := func(shape tensor.Shape) *tensor.RawTensor {
		r, err := tensor.NewRaw(shape, tensor.Float64, tensor.CPU)
		if err != nil {
			t.Fatal(err)
		}
		return r
	}
	const p, n, m = 6, 4, 3

	t.Run("nil passes", func(t *testing.T) {
		mask, err := adjointApod(nil, p, n, m)
		require.NoError(t, err)
		assert.Equal(t, 1.0, mask.at(0, 0, 0))
	})

	t.Run("varying along one group", func(t *testing.T) {
		for _, shape := range []tensor.Shape{{p, 1, 1}, {1, n, 1}, {1, 1, m}, {1, 1, 1}} {
			_, err := adjointApod(mk(shape), p, n, m)
			assert.NoError(t, err, "shape %v", shape)
		}
	})

	t.Run("varying along two groups fails", func(t *testing.T) {
		for _, shape := range []tensor.Shape{{p, n, 1}, {1, n, m}, {p, n, m}} {
			_, err := adjointApod(mk(shape), p, n, m)
			assert.Error(t, err, "shape %v", shape)
		}
	})

	t.Run("size mismatch fails", func(t *testing.T) {
		_, err := adjointApod(mk(tensor.Shape{p + 1, 1, 1}), p, n, m)
		assert.Error(t, err)
	})

	t.Run("indexing respects singleton strides", func(t *testing.T) {
		raw := mk(tensor.Shape{1, n, 1})
		for i := range raw.AsFloat64() {
			raw.AsFloat64()[i] = float64(i + 1)
		}
		mask, err := adjointApod(raw, p, n, m)
		require.NoError(t, err)
		assert.Equal(t, 3.0, mask.at(5, 2, 1))
	})
}

func TestRetainedBins(t *testing.T) {
	// Four bins of one value each; peak magnitudes 1, 0.5, 0.05, 0.
	xd := []complex128{1, 0.5i, 0.05, 0}

	t.Run("threshold keeps strong bins", func(t *testing.T) {
		keep := retainedBins(xd, 4, 1, 20)
		assert.Equal(t, []bool{true, true, false, false}, keep)
	})

	t.Run("zero threshold keeps all", func(t *testing.T) {
		keep := retainedBins(xd, 4, 1, 0)
		assert.Equal(t, []bool{true, true, true, true}, keep)
	})
}

func TestSignedFreq(t *testing.T) {
	assert.Equal(t, 0.0, signedFreq(0, 8))
	assert.Equal(t, 3.0/8, signedFreq(3, 8))
	assert.Equal(t, -0.5, signedFreq(4, 8))
	assert.Equal(t, -1.0/8, signedFreq(7, 8))

	// Odd length: bin (n-1)/2 is the last positive frequency.
	assert.Equal(t, 2.0/5, signedFreq(2, 5))
	assert.Equal(t, -2.0/5, signedFreq(3, 5))
}

func TestFreqBlocks(t *testing.T) {
	for _, nfft := range []int{1, 5, 8, 17, 64} {
		blocks := freqBlocks(nfft, 3)
		split := (nfft-1)/2 + 1

		covered := 0
		for _, blk := range blocks {
			require.Less(t, blk[0], blk[1], "nfft %d", nfft)
			// No block straddles the sign boundary.
			assert.False(t, blk[0] < split && blk[1] > split, "nfft %d block %v", nfft, blk)
			covered += blk[1] - blk[0]
		}
		assert.Equal(t, nfft, covered, "nfft %d", nfft)
		assert.Equal(t, 0, blocks[0][0], "nfft %d", nfft)
	}
}
