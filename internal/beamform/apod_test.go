package beamform

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beamform-go/beamform/internal/backend/cpu"
	"github.com/beamform-go/beamform/internal/tensor"
)

// linearArray builds a centered uniform array of n elements along x.
func linearArray(n int, pitch float64) Aperture {
	ap := Aperture{Pos: make([]Vec3, n)}
	for i := range ap.Pos {
		ap.Pos[i] = Vec3{(float64(i) - float64(n-1)/2) * pitch, 0, 0}
	}
	return ap
}

func TestScanline(t *testing.T) {
	b := cpu.New()
	ap := linearArray(3, 1e-3)
	seq := Sequence{Kind: FSA, C0: 1540}
	grid := Grid{X: []float64{-1e-3, 0, 1e-3}, Z: []float64{10e-3}}

	mask, err := Scanline(b, grid, seq, ap, 1e-6)
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{3, 1, 3}, mask.Shape())

	// Each pixel column accepts exactly the event fired at its x.
	md := mask.AsFloat64()
	for pi := 0; pi < 3; pi++ {
		for mi := 0; mi < 3; mi++ {
			want := 0.0
			if pi == mi {
				want = 1.0
			}
			assert.Equal(t, want, md[pi*3+mi], "pixel %d event %d", pi, mi)
		}
	}
}

func TestMultiline(t *testing.T) {
	b := cpu.New()
	ap := linearArray(3, 1e-3)
	seq := Sequence{Kind: FSA, C0: 1540}
	// A pixel a quarter of the way between events 0 and 1, and one outside
	// the span.
	grid := Grid{X: []float64{-0.75e-3, 5e-3}, Z: []float64{10e-3}}

	mask, err := Multiline(b, grid, seq, ap)
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{2, 1, 3}, mask.Shape())

	md := mask.AsFloat64()
	assert.InDelta(t, 0.75, md[0], 1e-12)
	assert.InDelta(t, 0.25, md[1], 1e-12)
	assert.InDelta(t, 0.0, md[2], 1e-12)

	// Outside the span: fully on the nearest edge event.
	assert.Equal(t, []float64{0, 0, 1}, md[3:6])

	// Weights sum to one everywhere.
	for pi := 0; pi < 2; pi++ {
		sum := md[pi*3] + md[pi*3+1] + md[pi*3+2]
		assert.InDelta(t, 1.0, sum, 1e-12, "pixel %d", pi)
	}
}

func TestTranslatingAperture(t *testing.T) {
	b := cpu.New()
	ap := linearArray(5, 1e-3)
	seq := Sequence{Kind: VS, Foci: []Vec3{{0, 0, 20e-3}}, C0: 1540}

	mask, err := TranslatingAperture(b, ap, seq, ap, 1.5e-3)
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{1, 5, 1}, mask.Shape())

	// Only the three central elements sit within 1.5 mm of the focus x.
	assert.Equal(t, []float64{0, 1, 1, 1, 0}, mask.AsFloat64())
}

func TestApertureGrowth(t *testing.T) {
	b := cpu.New()
	ap := linearArray(5, 1e-3)
	grid := Grid{X: []float64{0}, Z: []float64{1e-3, 10e-3}}

	mask, err := ApertureGrowth(b, grid, ap, 1, 0)
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{2, 5, 1}, mask.Shape())

	md := mask.AsFloat64()
	// Shallow pixel: only elements within half a depth of the axis.
	assert.Equal(t, []float64{0, 0, 1, 0, 0}, md[:5])
	// Deep pixel: full aperture accepted.
	assert.Equal(t, []float64{1, 1, 1, 1, 1}, md[5:])

	t.Run("max width caps the aperture", func(t *testing.T) {
		capped, err := ApertureGrowth(b, grid, ap, 1, 2.5e-3)
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 1, 1, 1, 0}, capped.AsFloat64()[5:])
	})

	t.Run("rejects non-positive f-number", func(t *testing.T) {
		_, err := ApertureGrowth(b, grid, ap, 0, 0)
		assert.Error(t, err)
	})
}

func TestAcceptanceAngle(t *testing.T) {
	b := cpu.New()
	ap := linearArray(3, 2e-3)
	grid := Grid{X: []float64{0}, Z: []float64{2e-3}}

	// The on-axis element sees the pixel head on; the outer elements view
	// it at 45 degrees. A 30-degree acceptance keeps only the center.
	mask, err := AcceptanceAngle(b, grid, ap, 30*math.Pi/180)
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{1, 3, 1}, mask.Shape())
	assert.Equal(t, []float64{0, 1, 0}, mask.AsFloat64())

	// Opening to 60 degrees admits all three.
	wide, err := AcceptanceAngle(b, grid, ap, 60*math.Pi/180)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1}, wide.AsFloat64())

	_, err = AcceptanceAngle(b, grid, ap, 0)
	assert.Error(t, err)
}

func TestApodIdempotence(t *testing.T) {
	// Binary masks applied twice equal themselves applied once.
	b := cpu.New()
	ap := linearArray(5, 1e-3)
	grid := Grid{X: []float64{-1e-3, 0, 1e-3}, Z: []float64{5e-3, 10e-3}}

	mask, err := ApertureGrowth(b, grid, ap, 1.5, 0)
	require.NoError(t, err)

	squared := b.Mul(mask, mask)
	assert.Equal(t, mask.AsFloat64(), squared.AsFloat64())
}
