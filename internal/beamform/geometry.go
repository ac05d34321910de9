// Package beamform implements the image-reconstruction algorithms built on
// the sampling kernel: time-domain delay-and-sum, the frequency-domain
// adjoint, eikonal-delay beamforming for heterogeneous media, plane-wave
// f-k migration, and retrospective transmit re-encoding.
package beamform

import (
	"fmt"
	"math"

	"github.com/beamform-go/beamform/internal/tensor"
)

// Vec3 is a Cartesian position or direction in meters.
type Vec3 [3]float64

// Sub returns v - w.
func (v Vec3) Sub(w Vec3) Vec3 {
	return Vec3{v[0] - w[0], v[1] - w[1], v[2] - w[2]}
}

// Dot returns the inner product.
func (v Vec3) Dot(w Vec3) float64 {
	return v[0]*w[0] + v[1]*w[1] + v[2]*w[2]
}

// Norm returns the Euclidean length.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Aperture describes the element geometry of a transducer array: positions
// and, where apodization needs them, outward unit normals.
type Aperture struct {
	Pos    []Vec3 // element positions
	Normal []Vec3 // unit normals; empty means all (0,0,1)
}

// N returns the element count.
func (a Aperture) N() int { return len(a.Pos) }

// NormalAt returns the element normal, defaulting to +z.
func (a Aperture) NormalAt(i int) Vec3 {
	if len(a.Normal) == 0 {
		return Vec3{0, 0, 1}
	}
	return a.Normal[i]
}

// Validate checks the aperture is non-empty and consistent.
func (a Aperture) Validate() error {
	if len(a.Pos) == 0 {
		return fmt.Errorf("aperture: no elements")
	}
	if len(a.Normal) != 0 && len(a.Normal) != len(a.Pos) {
		return fmt.Errorf("aperture: %d normals for %d elements", len(a.Normal), len(a.Pos))
	}
	return nil
}

// Pitch returns the spacing between the first two elements, the lattice
// constant of a uniform linear array.
func (a Aperture) Pitch() float64 {
	if len(a.Pos) < 2 {
		return 0
	}
	return a.Pos[1].Sub(a.Pos[0]).Norm()
}

// Grid is the image pixel domain: the outer product of three coordinate
// vectors. The pixel axes are ordered (Z, X, Y), depth-major, so the range
// axis is the leading image axis.
type Grid struct {
	X []float64 // lateral
	Y []float64 // elevation; empty means the single plane y = 0
	Z []float64 // depth
}

// Shape returns the pixel-axes tensor shape (Z, X, Y).
func (g Grid) Shape() tensor.Shape {
	return tensor.Shape{len(g.Z), len(g.X), g.ny()}
}

// NumPixels returns the total pixel count.
func (g Grid) NumPixels() int {
	return len(g.Z) * len(g.X) * g.ny()
}

func (g Grid) ny() int {
	if len(g.Y) == 0 {
		return 1
	}
	return len(g.Y)
}

// At returns the position of flat pixel index p in (Z, X, Y) row-major
// order.
func (g Grid) At(p int) Vec3 {
	ny := g.ny()
	iy := p % ny
	p /= ny
	ix := p % len(g.X)
	iz := p / len(g.X)
	y := 0.0
	if len(g.Y) > 0 {
		y = g.Y[iy]
	}
	return Vec3{g.X[ix], y, g.Z[iz]}
}

// Validate checks the grid is non-empty.
func (g Grid) Validate() error {
	if len(g.X) == 0 || len(g.Z) == 0 {
		return fmt.Errorf("grid: X and Z must be non-empty")
	}
	return nil
}

// SequenceKind names the transmit model.
type SequenceKind int

// Supported transmit sequence kinds.
const (
	// FSA is full synthetic aperture: one transmit per physical element.
	FSA SequenceKind = iota
	// VS is a virtual source: focused or diverging transmit modeled as a
	// point source.
	VS
	// PW is a plane wave transmit, modeled by direction only.
	PW
)

// String returns the conventional abbreviation.
func (k SequenceKind) String() string {
	switch k {
	case FSA:
		return "FSA"
	case VS:
		return "VS"
	case PW:
		return "PW"
	default:
		return "unknown"
	}
}

// Sequence is the transmit model of an acquisition: the kind plus the
// per-event geometry the delay providers need. Delays and Apod are the
// per-(element, event) firing matrices consumed by transmit synthesis and
// re-encoding; beamformers that only need event geometry ignore them.
type Sequence struct {
	Kind SequenceKind

	// Foci holds the virtual source per event (VS only).
	Foci []Vec3
	// Dirs holds the unit propagation direction per event (PW, and the
	// beam axis used for the VS sign convention).
	Dirs []Vec3

	// Delays is the per-(element, event) firing delay matrix in seconds,
	// row-major (element outer). Used by FocusTx and Refocus.
	Delays [][]float64
	// Apod is the matching per-(element, event) firing weight matrix.
	Apod [][]float64

	// C0 is the propagation sound speed in m/s.
	C0 float64
}

// NumTx returns the transmit event count for the given transmit aperture.
func (s Sequence) NumTx(txAp Aperture) int {
	switch s.Kind {
	case FSA:
		return txAp.N()
	case VS:
		return len(s.Foci)
	case PW:
		return len(s.Dirs)
	default:
		return 0
	}
}

// Validate checks the sequence against a transmit aperture.
func (s Sequence) Validate(txAp Aperture) error {
	if s.C0 <= 0 {
		return fmt.Errorf("sequence: sound speed %v must be > 0", s.C0)
	}
	switch s.Kind {
	case FSA:
		if txAp.N() == 0 {
			return fmt.Errorf("sequence: FSA requires a transmit aperture")
		}
	case VS:
		if len(s.Foci) == 0 {
			return fmt.Errorf("sequence: VS requires foci")
		}
	case PW:
		if len(s.Dirs) == 0 {
			return fmt.Errorf("sequence: PW requires directions")
		}
		for i, d := range s.Dirs {
			if n := d.Norm(); math.Abs(n-1) > 1e-6 {
				return fmt.Errorf("sequence: PW direction %d has norm %v, want 1", i, n)
			}
		}
	default:
		return fmt.Errorf("sequence: unknown kind %d", s.Kind)
	}
	return nil
}
