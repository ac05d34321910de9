package beamform

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/beamform-go/beamform/internal/sample"
	"github.com/beamform-go/beamform/internal/tensor"
)

// MigrateOpts configures the plane-wave f-k migration.
type MigrateOpts struct {
	// ModFreq is the demodulation carrier in Hz. Baseband data is
	// remodulated before the spectral remap.
	ModFreq float64
	// Method selects the interpolator used for the frequency remap.
	// Zero value is Nearest; most callers want sample.Linear or Cubic.
	Method sample.Method
	// NoJacobian disables the energy-preserving amplitude correction
	// applied during the nonlinear frequency remap.
	NoJacobian bool
	// KeepTx retains the per-plane-wave images instead of summing them.
	KeepTx bool
	// C0 overrides the sequence sound speed when positive.
	C0 float64
	// FFTLenT and FFTLenX set the transform lengths along time and
	// receive. Zero uses the data lengths.
	FFTLenT int
	FFTLenX int
	// TargetGrid, when non-nil, resamples the migrated image onto the
	// requested pixel grid. The native grid of the migration is dictated
	// by the FFT lengths and the array pitch; resampling a complex image
	// off that grid can introduce artifacts, so a warning is logged.
	TargetGrid *Grid
}

// Migrate reconstructs plane-wave data from a uniform linear array by
// Stolt's frequency-wavenumber remapping under the exploding-reflector
// model. The returned grid describes the image's native pixel lattice;
// it is self-dictated unless TargetGrid forces a resample.
func Migrate(b tensor.Backend, chd ChannelData, rxAp Aperture, seq Sequence, opts MigrateOpts) (*tensor.RawTensor, Grid, error) {
	if seq.Kind != PW {
		return nil, Grid{}, fmt.Errorf("migration: sequence kind %s; the f-k remap is defined for plane waves", seq.Kind)
	}
	if err := seq.Validate(rxAp); err != nil {
		return nil, Grid{}, fmt.Errorf("migration: %w", err)
	}
	if err := rxAp.Validate(); err != nil {
		return nil, Grid{}, fmt.Errorf("migration: receive aperture: %w", err)
	}
	pitch, err := linearPitch(rxAp)
	if err != nil {
		return nil, Grid{}, fmt.Errorf("migration: %w", err)
	}
	chd, err = chd.Canonical(b)
	if err != nil {
		return nil, Grid{}, fmt.Errorf("migration: %w", err)
	}
	n, m := chd.N(), chd.M()
	if n != rxAp.N() {
		return nil, Grid{}, fmt.Errorf("migration: %d receive channels but aperture has %d elements", n, rxAp.N())
	}
	if len(seq.Dirs) != m {
		return nil, Grid{}, fmt.Errorf("migration: %d transmit events but %d steering directions", m, len(seq.Dirs))
	}
	c := seq.C0
	if opts.C0 > 0 {
		c = opts.C0
	}
	if c <= 0 {
		return nil, Grid{}, fmt.Errorf("migration: sound speed %v must be > 0", c)
	}
	if opts.ModFreq != 0 {
		if chd, err = chd.DownMix(b, -opts.ModFreq); err != nil {
			return nil, Grid{}, fmt.Errorf("migration: %w", err)
		}
	}

	kT := opts.FFTLenT
	if kT <= 0 {
		kT = chd.T()
	}
	kX := opts.FFTLenX
	if kX <= 0 {
		kX = n
	}
	fs := chd.Fs

	// Temporal then lateral spectrum, with each event's start time
	// rotated out so t = 0 is the wavefront reference.
	xf := b.FFT(chd.Data, 0, kT)
	alignStartTimes(xf, chd, fs, kT)
	xf = b.FFT(xf, 1, kX)
	xf = fftshiftTime(b, xf, kT)

	angles := make([]float64, m)
	for mi, d := range seq.Dirs {
		angles[mi] = math.Atan2(d[0], d[2])
	}

	img, err := stoltRemap(b, xf, opts, angles, pitch, c, fs, kT, kX)
	if err != nil {
		return nil, Grid{}, fmt.Errorf("migration: %w", err)
	}
	img = b.IFFT(img, 0, kT)
	applyShear(img, angles, pitch, c, fs, kT, kX)
	img = b.IFFT(img, 1, kX)
	img, err = alignDepthGrids(b, img, angles, c, fs, kT)
	if err != nil {
		return nil, Grid{}, fmt.Errorf("migration: %w", err)
	}
	if !opts.KeepTx {
		img = b.SumDim(img, 2, true)
	}

	// Insert the singleton elevation axis and drop the summed transmit
	// axis: (z, x, tx, free...) becomes (z, x, y=1[, tx], free...).
	s := img.Shape()
	out := tensor.Shape{kT, kX, 1}
	if opts.KeepTx {
		out = append(out, s[2])
	}
	out = append(out, s[3:]...)
	img = b.Reshape(img, out)

	grid := nativeGrid(rxAp, pitch, c, fs, kT, kX)
	if opts.TargetGrid != nil {
		slog.Warn("migration: resampling complex image onto requested grid; off-lattice interpolation can introduce artifacts")
		img, err = resampleToGrid(b, img, grid, *opts.TargetGrid)
		if err != nil {
			return nil, Grid{}, fmt.Errorf("migration: %w", err)
		}
		grid = *opts.TargetGrid
	}
	return img, grid, nil
}

// halfSpeed is the exploding-reflector speed for steering angle theta:
// c0/√(1+cosθ), which reduces to c0/√2 at normal incidence.
func halfSpeed(c0, theta float64) float64 {
	return c0 / math.Sqrt(1+math.Cos(theta))
}

// linearPitch verifies the aperture is a uniform lateral lattice and
// returns its pitch.
func linearPitch(ap Aperture) (float64, error) {
	if ap.N() < 2 {
		return 0, fmt.Errorf("aperture needs at least 2 elements for a lateral spectrum")
	}
	pitch := ap.Pos[1][0] - ap.Pos[0][0]
	if pitch <= 0 {
		return 0, fmt.Errorf("aperture pitch %v must be > 0", pitch)
	}
	const tol = 1e-9
	for i := 1; i < ap.N(); i++ {
		if math.Abs(ap.Pos[i][0]-ap.Pos[0][0]-float64(i)*pitch) > tol {
			return 0, fmt.Errorf("aperture is not a uniform lateral lattice at element %d", i)
		}
		if ap.Pos[i][1] != ap.Pos[0][1] || ap.Pos[i][2] != ap.Pos[0][2] {
			return 0, fmt.Errorf("aperture element %d is off the lateral line", i)
		}
	}
	return pitch, nil
}

// alignStartTimes multiplies the temporal spectrum by exp(-2πi·f·t0) per
// transmit event, in place.
func alignStartTimes(xf *tensor.RawTensor, chd ChannelData, fs float64, kT int) {
	s := xf.Shape()
	n, m := s[1], s[2]
	nFree := s.NumElements() / (kT * n * m)
	xd := xf.AsComplex128()
	for mi := 0; mi < m; mi++ {
		t0 := chd.t0At(mi)
		if t0 == 0 {
			continue
		}
		for k := 0; k < kT; k++ {
			f := signedFreq(k, kT) * fs
			ph := phasorOf(-2 * math.Pi * f * t0)
			for ni := 0; ni < n; ni++ {
				base := ((k*n+ni)*m + mi) * nFree
				for fi := 0; fi < nFree; fi++ {
					xd[base+fi] *= ph
				}
			}
		}
	}
}

// fftshiftTime rotates the temporal-frequency axis so it ascends
// monotonically from -fs/2; after the rotation index i holds frequency
// (i - kT/2)·fs/kT. The fractional-index remap needs the monotonic order
// so neighboring taps never straddle the spectrum's wrap point.
func fftshiftTime(b tensor.Backend, xf *tensor.RawTensor, kT int) *tensor.RawTensor {
	negStart := kT - kT/2
	upper := b.Narrow(xf, 0, negStart, kT-negStart)
	lower := b.Narrow(xf, 0, 0, negStart)
	return b.Cat([]*tensor.RawTensor{upper, lower}, 0)
}

// stoltRemap resamples the temporal-frequency axis of the shifted
// spectrum onto f(kz, kx) = sign(kz)·cs·√(kx² + kz²), the
// exploding-reflector dispersion curve, producing a spectrum indexed by
// depth wavenumber in DFT order. The Jacobian weight (f/cs)/kz
// compensates the density change of the nonlinear remap.
func stoltRemap(b tensor.Backend, xf *tensor.RawTensor, opts MigrateOpts, angles []float64, pitch, c, fs float64, kT, kX int) (*tensor.RawTensor, error) {
	rank := xf.Shape().Rank()
	m := len(angles)
	shape := make(tensor.Shape, rank)
	shape[0], shape[1], shape[2] = kT, kX, m
	for d := 3; d < rank; d++ {
		shape[d] = 1
	}
	delay, err := tensor.NewRaw(shape, tensor.Float64, b.Device())
	if err != nil {
		return nil, err
	}
	dd := delay.AsFloat64()
	var jac *tensor.RawTensor
	var jd []float64
	if !opts.NoJacobian {
		if jac, err = tensor.NewRaw(shape, tensor.Float64, b.Device()); err != nil {
			return nil, err
		}
		jd = jac.AsFloat64()
	}

	df := fs / float64(kT)
	zero := float64(kT / 2) // shifted index of f = 0
	for mi, theta := range angles {
		cs := halfSpeed(c, theta)
		for j := 0; j < kT; j++ {
			kz := signedFreq(j, kT) * fs / cs // cycles per meter
			for i := 0; i < kX; i++ {
				kx := signedFreq(i, kX) / pitch
				idx := j*kX*m + i*m + mi
				if kz == 0 {
					dd[idx] = zero
					continue
				}
				f := cs * math.Sqrt(kx*kx+kz*kz)
				if kz < 0 {
					f = -f
				}
				dd[idx] = f/df + zero
				if jd != nil {
					jd[idx] = f / cs / kz
				}
			}
		}
	}
	return sample.Sample(b, xf, 0, sample.Opts{
		Delay:  delay,
		Weight: jac,
		Method: opts.Method,
	})
}

// applyShear applies the lateral phase correction for steered plane
// waves in the (depth, lateral-wavenumber) domain, in place.
func applyShear(img *tensor.RawTensor, angles []float64, pitch, c, fs float64, kT, kX int) {
	s := img.Shape()
	m := len(angles)
	nFree := s.NumElements() / (kT * kX * m)
	xd := img.AsComplex128()
	for mi, theta := range angles {
		if theta == 0 {
			continue
		}
		gamma := math.Sin(theta) / (1 + math.Cos(theta))
		dz := c / ((1 + math.Cos(theta)) * fs) // true depth per sample
		for j := 0; j < kT; j++ {
			z := float64(j) * dz
			for i := 0; i < kX; i++ {
				kx := signedFreq(i, kX) / pitch
				ph := phasorOf(2 * math.Pi * kx * z * gamma)
				base := ((j*kX+i)*m + mi) * nFree
				for fi := 0; fi < nFree; fi++ {
					xd[base+fi] *= ph
				}
			}
		}
	}
}

// alignDepthGrids resamples each steered event's depth axis onto the
// unsteered lattice dz = c/(2·fs), so differently steered images share
// one grid before summation.
func alignDepthGrids(b tensor.Backend, img *tensor.RawTensor, angles []float64, c, fs float64, kT int) (*tensor.RawTensor, error) {
	uniform := true
	for _, theta := range angles {
		if theta != 0 {
			uniform = false
			break
		}
	}
	if uniform {
		return img, nil
	}
	rank := img.Shape().Rank()
	m := len(angles)
	shape := make(tensor.Shape, rank)
	shape[0], shape[1], shape[2] = kT, 1, m
	for d := 3; d < rank; d++ {
		shape[d] = 1
	}
	delay, err := tensor.NewRaw(shape, tensor.Float64, b.Device())
	if err != nil {
		return nil, err
	}
	dd := delay.AsFloat64()
	for mi, theta := range angles {
		// True depth per sample is c/((1+cosθ)·fs); express the common
		// θ=0 lattice in each event's own samples.
		ratio := (1 + math.Cos(theta)) / 2
		for j := 0; j < kT; j++ {
			dd[j*m+mi] = float64(j) * ratio
		}
	}
	return sample.Sample(b, img, 0, sample.Opts{Delay: delay, Method: sample.Linear})
}

// nativeGrid is the pixel lattice the migration dictates: pulse-echo
// depth steps of c/(2·fs) from zero and lateral steps of the array pitch
// from the first element.
func nativeGrid(ap Aperture, pitch, c, fs float64, kT, kX int) Grid {
	dz := c / (2 * fs)
	zs := make([]float64, kT)
	for j := range zs {
		zs[j] = float64(j) * dz
	}
	xs := make([]float64, kX)
	for i := range xs {
		xs[i] = ap.Pos[0][0] + float64(i)*pitch
	}
	return Grid{X: xs, Y: []float64{ap.Pos[0][1]}, Z: zs}
}

// resampleToGrid bilinearly interpolates the complex image from its
// native single-plane (Z, X) lattice onto the requested grid, clamping
// off-lattice targets to the native extent. Values are constant along
// the target's elevation axis.
func resampleToGrid(b tensor.Backend, img *tensor.RawTensor, native, target Grid) (*tensor.RawTensor, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	s := img.Shape()
	zN, xN := len(native.Z), len(native.X)
	inner := s.NumElements() / (zN * xN) // per (z, x) cell, elevation folded in
	xd := img.AsComplex128()

	out := make(tensor.Shape, 0, s.Rank())
	out = append(out, len(target.Z), len(target.X), target.ny())
	out = append(out, s[3:]...)
	res, err := tensor.NewRaw(out, tensor.Complex128, b.Device())
	if err != nil {
		return nil, err
	}
	rd := res.AsComplex128()

	oi := 0
	for _, z := range target.Z {
		jz, fz := fracIndex(native.Z, z)
		jz1 := minInt(jz+1, zN-1)
		for _, x := range target.X {
			jx, fx := fracIndex(native.X, x)
			jx1 := minInt(jx+1, xN-1)
			for iy := 0; iy < target.ny(); iy++ {
				for fi := 0; fi < inner; fi++ {
					c00 := xd[(jz*xN+jx)*inner+fi]
					c01 := xd[(jz*xN+jx1)*inner+fi]
					c10 := xd[(jz1*xN+jx)*inner+fi]
					c11 := xd[(jz1*xN+jx1)*inner+fi]
					rd[oi] = complex((1-fz)*(1-fx), 0)*c00 +
						complex((1-fz)*fx, 0)*c01 +
						complex(fz*(1-fx), 0)*c10 +
						complex(fz*fx, 0)*c11
					oi++
				}
			}
		}
	}
	return res, nil
}

// fracIndex locates x in the ascending lattice xs, returning the lower
// index and the fractional offset, clamped to the lattice.
func fracIndex(xs []float64, x float64) (int, float64) {
	if len(xs) == 1 || x <= xs[0] {
		return 0, 0
	}
	last := len(xs) - 1
	if x >= xs[last] {
		return last, 0
	}
	for i := 0; i < last; i++ {
		if x >= xs[i] && x <= xs[i+1] {
			return i, (x - xs[i]) / (xs[i+1] - xs[i])
		}
	}
	return last, 0
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func phasorOf(phase float64) complex128 {
	s, c := math.Sincos(phase)
	return complex(c, s)
}
