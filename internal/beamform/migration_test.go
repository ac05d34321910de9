package beamform

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beamform-go/beamform/internal/backend/cpu"
	"github.com/beamform-go/beamform/internal/sample"
	"github.com/beamform-go/beamform/internal/tensor"
)

// planeReflectorData simulates plane-wave echoes from a flat reflector at
// depth z0 under the exploding-reflector model: element x sees a pulse at
// t = (z0·(1+cosθ) + x·sinθ) / c.
func planeReflectorData(t *testing.T, ap Aperture, z0, theta, c0, fs float64, nt int) *tensor.RawTensor {
	t.Helper()
	n := ap.N()
	data, err := tensor.NewRaw(tensor.Shape{nt, n, 1}, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	d := data.AsFloat64()
	const sigma = 2.0
	for ni := 0; ni < n; ni++ {
		tau := (z0*(1+math.Cos(theta)) + ap.Pos[ni][0]*math.Sin(theta)) / c0
		idx := tau * fs
		for k := 0; k < nt; k++ {
			x := (float64(k) - idx) / sigma
			d[k*n+ni] = math.Exp(-x * x)
		}
	}
	return data
}

// peakDepthAt returns the depth index of the strongest sample in lateral
// column ix of a (Z, X, 1) image.
func peakDepthAt(img *tensor.RawTensor, ix int) int {
	s := img.Shape()
	kT, kX := s[0], s[1]
	inner := img.NumElements() / (kT * kX)
	id := img.AsComplex128()
	best, bestAbs := 0, 0.0
	for j := 0; j < kT; j++ {
		if a := cmplx.Abs(id[(j*kX+ix)*inner]); a > bestAbs {
			best, bestAbs = j, a
		}
	}
	return best
}

func TestMigrate_NormalIncidenceReflector(t *testing.T) {
	b := cpu.New()
	const c0, fs = 1540.0, 20e6
	const kT = 256
	ap := linearArray(8, 0.3e-3)
	dz := c0 / (2 * fs)
	z0 := 80 * dz

	data := planeReflectorData(t, ap, z0, 0, c0, fs, kT)
	chd, err := NewChannelData(data, tnmAxes(t), fs, nil)
	require.NoError(t, err)
	seq := Sequence{Kind: PW, Dirs: []Vec3{{0, 0, 1}}, C0: c0}

	img, grid, err := Migrate(b, chd, ap, seq, MigrateOpts{Method: sample.Linear})
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{kT, 8, 1}, img.Shape())

	// The native lattice is dictated by the sampling: c/(2·fs) in depth,
	// the element pitch laterally.
	require.Len(t, grid.Z, kT)
	assert.InDelta(t, dz, grid.Z[1]-grid.Z[0], 1e-15)
	assert.InDelta(t, 0.3e-3, grid.X[1]-grid.X[0], 1e-12)
	assert.Equal(t, ap.Pos[0][0], grid.X[0])

	// The reflector images at its true depth in every lateral column.
	for ix := 0; ix < 8; ix++ {
		jz := peakDepthAt(img, ix)
		assert.InDelta(t, z0, grid.Z[jz], dz+1e-12, "column %d", ix)
	}
}

func TestMigrate_PeakInvariantToJacobian(t *testing.T) {
	b := cpu.New()
	const c0, fs = 1540.0, 20e6
	ap := linearArray(8, 0.3e-3)
	z0 := 80 * c0 / (2 * fs)

	data := planeReflectorData(t, ap, z0, 0, c0, fs, 256)
	chd, err := NewChannelData(data, tnmAxes(t), fs, nil)
	require.NoError(t, err)
	seq := Sequence{Kind: PW, Dirs: []Vec3{{0, 0, 1}}, C0: c0}

	with, _, err := Migrate(b, chd, ap, seq, MigrateOpts{Method: sample.Linear})
	require.NoError(t, err)
	without, _, err := Migrate(b, chd, ap, seq, MigrateOpts{Method: sample.Linear, NoJacobian: true})
	require.NoError(t, err)

	// The amplitude correction must not move the reflector.
	for ix := 0; ix < 8; ix++ {
		assert.Equal(t, peakDepthAt(with, ix), peakDepthAt(without, ix), "column %d", ix)
	}
}

func TestMigrate_SteeredReflectorDepth(t *testing.T) {
	b := cpu.New()
	const c0, fs = 1540.0, 20e6
	const kT = 256
	ap := linearArray(32, 0.3e-3)
	dz := c0 / (2 * fs)
	z0 := 100 * dz
	theta := 10 * math.Pi / 180

	data := planeReflectorData(t, ap, z0, theta, c0, fs, kT)
	chd, err := NewChannelData(data, tnmAxes(t), fs, nil)
	require.NoError(t, err)
	seq := Sequence{Kind: PW, Dirs: []Vec3{{math.Sin(theta), 0, math.Cos(theta)}}, C0: c0}

	img, grid, err := Migrate(b, chd, ap, seq, MigrateOpts{Method: sample.Linear})
	require.NoError(t, err)

	// Away from the aperture edges the steered reflector lands on its
	// true depth, not the apparent half-round-trip one.
	jz := peakDepthAt(img, 16)
	assert.InDelta(t, z0, grid.Z[jz], 2*dz+1e-12)
}

func TestMigrate_TargetGridResample(t *testing.T) {
	b := cpu.New()
	const c0, fs = 1540.0, 20e6
	ap := linearArray(8, 0.3e-3)
	z0 := 60 * c0 / (2 * fs)

	data := planeReflectorData(t, ap, z0, 0, c0, fs, 128)
	chd, err := NewChannelData(data, tnmAxes(t), fs, nil)
	require.NoError(t, err)
	seq := Sequence{Kind: PW, Dirs: []Vec3{{0, 0, 1}}, C0: c0}

	target := Grid{X: []float64{0}, Z: []float64{z0, z0 + 1e-3}}
	img, grid, err := Migrate(b, chd, ap, seq, MigrateOpts{Method: sample.Linear, TargetGrid: &target})
	require.NoError(t, err)

	require.Equal(t, tensor.Shape{2, 1, 1}, img.Shape())
	assert.Equal(t, target.Z, grid.Z)

	// The on-reflector pixel dominates the off-reflector one.
	id := img.AsComplex128()
	assert.Greater(t, cmplx.Abs(id[0]), 4*cmplx.Abs(id[1]))
}

func TestMigrate_InputValidation(t *testing.T) {
	b := cpu.New()
	ap := linearArray(4, 0.3e-3)
	data, err := tensor.NewRaw(tensor.Shape{64, 4, 1}, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	chd, err := NewChannelData(data, tnmAxes(t), 20e6, nil)
	require.NoError(t, err)

	t.Run("rejects non plane wave sequences", func(t *testing.T) {
		_, _, err := Migrate(b, chd, ap, Sequence{Kind: FSA, C0: 1540}, MigrateOpts{})
		assert.Error(t, err)
	})

	t.Run("rejects non uniform arrays", func(t *testing.T) {
		bent := Aperture{Pos: []Vec3{{0, 0, 0}, {0.3e-3, 0, 0}, {0.7e-3, 0, 0}, {0.9e-3, 0, 0}}}
		seq := Sequence{Kind: PW, Dirs: []Vec3{{0, 0, 1}}, C0: 1540}
		_, _, err := Migrate(b, chd, bent, seq, MigrateOpts{})
		assert.Error(t, err)
	})
}

func TestLinearPitch(t *testing.T) {
	pitch, err := linearPitch(linearArray(4, 0.25e-3))
	require.NoError(t, err)
	assert.InDelta(t, 0.25e-3, pitch, 1e-15)

	_, err = linearPitch(Aperture{Pos: []Vec3{{0, 0, 0}}})
	assert.Error(t, err)
}

func TestHalfSpeed(t *testing.T) {
	assert.InDelta(t, 1540/math.Sqrt2, halfSpeed(1540, 0), 1e-9)
	assert.InDelta(t, 1540, halfSpeed(1540, math.Pi/2), 1e-9)
}
