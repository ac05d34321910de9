// Package sample implements the generalized delay-sampling-and-reduction
// kernel shared by all beamformers: interpolate channel data at fractional
// time-sample indices, weight, and optionally collapse aperture axes.
package sample

import "fmt"

// Method selects the interpolation family. It is resolved to a kernel
// function once per call; no string comparison happens inside the loops.
type Method int

// Supported interpolation methods.
const (
	// Nearest rounds to the closest sample.
	Nearest Method = iota
	// Linear interpolates between the two bracketing samples.
	Linear
	// Cubic is a 4-tap cubic convolution for uniformly spaced samples.
	Cubic
	// Lanczos3 is a 6-tap windowed-sinc (a = 3).
	Lanczos3
	// Freq is exact band-limited fractional delay evaluated through the
	// frequency domain.
	Freq
)

// String returns the method name.
func (m Method) String() string {
	switch m {
	case Nearest:
		return "nearest"
	case Linear:
		return "linear"
	case Cubic:
		return "cubic"
	case Lanczos3:
		return "lanczos3"
	case Freq:
		return "freq"
	default:
		return "unknown"
	}
}

// ParseMethod maps a method name to its Method value.
func ParseMethod(name string) (Method, error) {
	switch name {
	case "nearest":
		return Nearest, nil
	case "linear":
		return Linear, nil
	case "cubic":
		return Cubic, nil
	case "lanczos3":
		return Lanczos3, nil
	case "freq":
		return Freq, nil
	default:
		return 0, fmt.Errorf("unknown interpolation method %q", name)
	}
}
