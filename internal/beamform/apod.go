package beamform

import (
	"fmt"
	"math"

	"github.com/beamform-go/beamform/internal/tensor"
)

// Apodization masks are rank-3 tensors over (pixels, receive, transmit)
// with singleton axes wherever the weight is independent of that axis. The
// pixel axis is the flattened (Z, X, Y) grid in row-major order, matching
// Grid.At.

// newMask allocates a float64 mask of the given (pixel, rx, tx) extents.
func newMask(b tensor.Backend, p, n, m int) *tensor.RawTensor {
	mask, err := tensor.NewRaw(tensor.Shape{p, n, m}, tensor.Float64, b.Device())
	if err != nil {
		panic(fmt.Sprintf("apodization: %v", err))
	}
	return mask
}

// Scanline accepts only the transmit whose lateral focus position matches
// the pixel's lateral position within tol. Events laterally separated from
// the pixel contribute nothing, which reproduces classic line-by-line
// imaging from a focused sequence.
//
// The mask is (pixels, 1, M).
func Scanline(b tensor.Backend, grid Grid, seq Sequence, txAp Aperture, tol float64) (*tensor.RawTensor, error) {
	xs, err := txLateral(seq, txAp)
	if err != nil {
		return nil, fmt.Errorf("scanline apodization: %w", err)
	}
	p := grid.NumPixels()
	mask := newMask(b, p, 1, len(xs))
	md := mask.AsFloat64()
	for pi := 0; pi < p; pi++ {
		px := grid.At(pi)[0]
		for mi, x := range xs {
			if math.Abs(px-x) <= tol {
				md[pi*len(xs)+mi] = 1
			}
		}
	}
	return mask, nil
}

// Multiline spreads each pixel across the two transmit events bracketing
// it laterally, with linear interpolation weights. Pixels outside the
// lateral span of the sequence attach fully to the nearest edge event.
//
// The mask is (pixels, 1, M).
func Multiline(b tensor.Backend, grid Grid, seq Sequence, txAp Aperture) (*tensor.RawTensor, error) {
	xs, err := txLateral(seq, txAp)
	if err != nil {
		return nil, fmt.Errorf("multiline apodization: %w", err)
	}
	m := len(xs)
	p := grid.NumPixels()
	mask := newMask(b, p, 1, m)
	md := mask.AsFloat64()
	for pi := 0; pi < p; pi++ {
		px := grid.At(pi)[0]
		lo, hi := bracket(xs, px)
		if lo == hi || xs[hi] == xs[lo] {
			md[pi*m+lo] = 1
			continue
		}
		w := (px - xs[lo]) / (xs[hi] - xs[lo])
		md[pi*m+lo] = 1 - w
		md[pi*m+hi] = w
	}
	return mask, nil
}

// TranslatingAperture accepts, per transmit, only the receive elements
// within a lateral tolerance of that event's focus, sliding the active
// receive aperture with the transmit.
//
// The mask is (1, N, M).
func TranslatingAperture(b tensor.Backend, rxAp Aperture, seq Sequence, txAp Aperture, tol float64) (*tensor.RawTensor, error) {
	xs, err := txLateral(seq, txAp)
	if err != nil {
		return nil, fmt.Errorf("translating-aperture apodization: %w", err)
	}
	n := rxAp.N()
	mask := newMask(b, 1, n, len(xs))
	md := mask.AsFloat64()
	for ni := 0; ni < n; ni++ {
		for mi, x := range xs {
			if math.Abs(rxAp.Pos[ni][0]-x) <= tol {
				md[ni*len(xs)+mi] = 1
			}
		}
	}
	return mask, nil
}

// ApertureGrowth accepts a receive element for a pixel only once the pixel
// is deep enough: depth > fnum · 2·|lateral offset|. This enforces a
// minimum f-number so the active aperture grows linearly with depth.
// maxWidth, when positive, additionally caps the half aperture.
//
// The mask is (pixels, N, 1).
func ApertureGrowth(b tensor.Backend, grid Grid, rxAp Aperture, fnum, maxWidth float64) (*tensor.RawTensor, error) {
	if fnum <= 0 {
		return nil, fmt.Errorf("aperture-growth apodization: f-number %v must be > 0", fnum)
	}
	p := grid.NumPixels()
	n := rxAp.N()
	mask := newMask(b, p, n, 1)
	md := mask.AsFloat64()
	for pi := 0; pi < p; pi++ {
		pix := grid.At(pi)
		for ni := 0; ni < n; ni++ {
			lat := math.Abs(pix[0] - rxAp.Pos[ni][0])
			if maxWidth > 0 && lat > maxWidth/2 {
				continue
			}
			if pix[2] > fnum*2*lat {
				md[pi*n+ni] = 1
			}
		}
	}
	return mask, nil
}

// AcceptanceAngle accepts a receive element for a pixel when the cosine of
// the pixel-to-element view angle, measured against the element normal,
// is at least cos(maxAngle). maxAngle is in radians.
//
// The mask is (pixels, N, 1).
func AcceptanceAngle(b tensor.Backend, grid Grid, rxAp Aperture, maxAngle float64) (*tensor.RawTensor, error) {
	if maxAngle <= 0 || maxAngle > math.Pi {
		return nil, fmt.Errorf("acceptance-angle apodization: angle %v out of (0, π]", maxAngle)
	}
	cosMax := math.Cos(maxAngle)
	p := grid.NumPixels()
	n := rxAp.N()
	mask := newMask(b, p, n, 1)
	md := mask.AsFloat64()
	for pi := 0; pi < p; pi++ {
		pix := grid.At(pi)
		for ni := 0; ni < n; ni++ {
			r := pix.Sub(rxAp.Pos[ni])
			d := r.Norm()
			if d == 0 {
				md[pi*n+ni] = 1
				continue
			}
			if r.Dot(rxAp.NormalAt(ni))/d >= cosMax {
				md[pi*n+ni] = 1
			}
		}
	}
	return mask, nil
}

// txLateral returns the lateral (x) position of each transmit event.
func txLateral(seq Sequence, txAp Aperture) ([]float64, error) {
	switch seq.Kind {
	case FSA:
		xs := make([]float64, txAp.N())
		for i, p := range txAp.Pos {
			xs[i] = p[0]
		}
		return xs, nil
	case VS:
		xs := make([]float64, len(seq.Foci))
		for i, f := range seq.Foci {
			xs[i] = f[0]
		}
		return xs, nil
	default:
		return nil, fmt.Errorf("sequence kind %s has no per-event lateral position", seq.Kind)
	}
}

// bracket finds the indices of the two ascending positions bracketing x,
// clamping at the edges.
func bracket(xs []float64, x float64) (lo, hi int) {
	if x <= xs[0] {
		return 0, 0
	}
	last := len(xs) - 1
	if x >= xs[last] {
		return last, last
	}
	for i := 0; i < last; i++ {
		if x >= xs[i] && x <= xs[i+1] {
			return i, i + 1
		}
	}
	return last, last
}
