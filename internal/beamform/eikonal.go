package beamform

import (
	"fmt"
	"math"

	"github.com/beamform-go/beamform/internal/parallel"
	"github.com/beamform-go/beamform/internal/sample"
	"github.com/beamform-go/beamform/internal/tensor"
)

// TravelTimeSolver computes first-arrival travel times from a point source
// through a sampled sound-speed field. Implementations typically wrap a
// fast-marching or fast-sweeping eikonal solver. The speed map is laid out
// x-major, then y, then z; the returned field uses the same layout and
// unit seconds.
type TravelTimeSolver interface {
	Solve(speed []float64, dims [3]int, origin, spacing [3]float64, src [3]float64) ([]float64, error)
}

// Medium is a sampled sound-speed field over a uniform Cartesian grid.
type Medium struct {
	// C holds speeds in m/s, x-major then y then z.
	C []float64
	// Dims are the sample counts along (x, y, z).
	Dims [3]int
	// Origin is the position of sample (0, 0, 0).
	Origin [3]float64
	// Spacing is the step per axis in meters. Axes with more than one
	// sample must share one step size.
	Spacing [3]float64
}

// Validate rejects malformed or anisotropic media before any solve runs.
func (md Medium) Validate() error {
	want := 1
	for _, d := range md.Dims {
		if d < 1 {
			return fmt.Errorf("medium: dimension %d must be >= 1", d)
		}
		want *= d
	}
	if len(md.C) != want {
		return fmt.Errorf("medium: %d speed samples for dims %v (want %d)", len(md.C), md.Dims, want)
	}
	step := 0.0
	for a, d := range md.Dims {
		if d == 1 {
			continue
		}
		if md.Spacing[a] <= 0 {
			return fmt.Errorf("medium: spacing %v along axis %d must be > 0", md.Spacing[a], a)
		}
		if step == 0 {
			step = md.Spacing[a]
		} else if md.Spacing[a] != step {
			return fmt.Errorf("medium: anisotropic grid spacing %v vs %v; travel-time solves need one step size", md.Spacing[a], step)
		}
	}
	for _, c := range md.C {
		if c <= 0 {
			return fmt.Errorf("medium: sound speed %v must be > 0", c)
		}
	}
	return nil
}

// index flattens medium sample coordinates, x fastest.
func (md Medium) index(i, j, k int) int {
	return (k*md.Dims[1]+j)*md.Dims[0] + i
}

// EikonalOpts configures the heterogeneous-medium beamformer. The sampling
// options mirror DASOpts.
type EikonalOpts struct {
	Method    sample.Method
	ModFreq   float64
	Apod      *tensor.RawTensor
	KeepRx    bool
	KeepTx    bool
	BlockSize int
}

// Eikonal beamforms full-synthetic-aperture data through a heterogeneous
// sound-speed field. One travel-time solve runs per distinct element
// position; solves are independent and run concurrently, and when the
// transmit and receive apertures coincide each solve is shared between the
// two sides. The solved fields are interpolated onto the image grid and
// the summation then proceeds exactly as in DAS.
func Eikonal(b tensor.Backend, chd ChannelData, grid Grid, rxAp, txAp Aperture, seq Sequence, md Medium, solver TravelTimeSolver, opts EikonalOpts) (*tensor.RawTensor, error) {
	if solver == nil {
		return nil, fmt.Errorf("eikonal: nil travel-time solver")
	}
	if seq.Kind != FSA {
		return nil, fmt.Errorf("eikonal: sequence kind %s not supported; travel-time solves need per-element transmits", seq.Kind)
	}
	if err := grid.Validate(); err != nil {
		return nil, fmt.Errorf("eikonal: %w", err)
	}
	if err := rxAp.Validate(); err != nil {
		return nil, fmt.Errorf("eikonal: receive aperture: %w", err)
	}
	if err := txAp.Validate(); err != nil {
		return nil, fmt.Errorf("eikonal: transmit aperture: %w", err)
	}
	if err := md.Validate(); err != nil {
		return nil, fmt.Errorf("eikonal: %w", err)
	}
	chd, err := chd.Canonical(b)
	if err != nil {
		return nil, fmt.Errorf("eikonal: %w", err)
	}
	n, m := chd.N(), chd.M()
	if n != rxAp.N() {
		return nil, fmt.Errorf("eikonal: %d receive channels but aperture has %d elements", n, rxAp.N())
	}
	if m != txAp.N() {
		return nil, fmt.Errorf("eikonal: %d transmit events but aperture has %d elements", m, txAp.N())
	}

	shared := sameAperture(rxAp, txAp)
	srcs := make([]Vec3, 0, n+m)
	srcs = append(srcs, rxAp.Pos...)
	if !shared {
		srcs = append(srcs, txAp.Pos...)
	}

	fields := make([][]float64, len(srcs))
	err = parallel.ForErr(len(srcs), func(i int) error {
		var err error
		fields[i], err = solver.Solve(md.C, md.Dims, md.Origin, md.Spacing, [3]float64(srcs[i]))
		if err == nil && len(fields[i]) != len(md.C) {
			err = fmt.Errorf("solver returned %d samples, want %d", len(fields[i]), len(md.C))
		}
		return err
	}, parallel.PerItem())
	if err != nil {
		return nil, fmt.Errorf("eikonal: travel-time solve: %w", err)
	}

	p := grid.NumPixels()
	taurx := make([]float64, p*n)
	parallel.For(n, func(ni int) {
		interpolateTimes(md, fields[ni], grid, taurx, ni, n)
	}, parallel.PerItem())
	tautx := make([]float64, p*m)
	parallel.For(m, func(mi int) {
		field := fields[mi]
		if !shared {
			field = fields[n+mi]
		}
		interpolateTimes(md, field, grid, tautx, mi, m)
	}, parallel.PerItem())

	img, err := sumDelays(b, chd, grid, DASOpts{
		Method:    opts.Method,
		ModFreq:   opts.ModFreq,
		Apod:      opts.Apod,
		KeepRx:    opts.KeepRx,
		KeepTx:    opts.KeepTx,
		BlockSize: opts.BlockSize,
	}, taurx, tautx)
	if err != nil {
		return nil, fmt.Errorf("eikonal: %w", err)
	}
	return img, nil
}

// sameAperture reports whether both apertures hold identical element
// positions, in which case travel-time solves can be shared.
func sameAperture(a, b Aperture) bool {
	if a.N() != b.N() {
		return false
	}
	for i := range a.Pos {
		if a.Pos[i] != b.Pos[i] {
			return false
		}
	}
	return true
}

// interpolateTimes evaluates a travel-time field at every grid pixel by
// trilinear interpolation and stores the result at dst[pixel*stride+lane].
// Pixels outside the medium clamp to its boundary.
func interpolateTimes(md Medium, field []float64, grid Grid, dst []float64, lane, stride int) {
	p := grid.NumPixels()
	for pi := 0; pi < p; pi++ {
		pix := grid.At(pi)
		dst[pi*stride+lane] = trilinear(md, field, pix)
	}
}

func trilinear(md Medium, field []float64, pos Vec3) float64 {
	var idx [3]int
	var frac [3]float64
	for a := 0; a < 3; a++ {
		if md.Dims[a] == 1 {
			continue
		}
		u := (pos[a] - md.Origin[a]) / md.Spacing[a]
		u = math.Max(0, math.Min(u, float64(md.Dims[a]-1)))
		i := int(math.Floor(u))
		if i > md.Dims[a]-2 {
			i = md.Dims[a] - 2
		}
		idx[a], frac[a] = i, u-float64(i)
	}
	var v float64
	for corner := 0; corner < 8; corner++ {
		w := 1.0
		var c [3]int
		for a := 0; a < 3; a++ {
			c[a] = idx[a]
			bit := corner >> a & 1
			if md.Dims[a] == 1 {
				if bit == 1 {
					w = 0
				}
				continue
			}
			if bit == 1 {
				c[a]++
				w *= frac[a]
			} else {
				w *= 1 - frac[a]
			}
		}
		if w != 0 {
			v += w * field[md.index(c[0], c[1], c[2])]
		}
	}
	return v
}
