package sample

import "math"

// laneFunc reads sample k of the current time lane, returning 0 outside
// [0, T-1]. The zero fill is deliberate: partial apertures and windowed
// evaluation rely on it.
type laneFunc func(k int) complex128

// kernelFunc interpolates one fractional index tau on a lane of length n.
type kernelFunc func(lane laneFunc, n int, tau float64) complex128

// kernelFor resolves the time-domain kernel for a method. Freq is handled
// separately because it needs the whole lane spectrum.
func kernelFor(m Method) kernelFunc {
	switch m {
	case Nearest:
		return nearestKernel
	case Linear:
		return linearKernel
	case Cubic:
		return cubicKernel
	case Lanczos3:
		return lanczos3Kernel
	default:
		return nil
	}
}

func nearestKernel(lane laneFunc, n int, tau float64) complex128 {
	k := int(math.Round(tau))
	if k < 0 || k >= n {
		return 0
	}
	return lane(k)
}

func linearKernel(lane laneFunc, n int, tau float64) complex128 {
	if tau < 0 || tau > float64(n-1) {
		return 0
	}
	k := int(math.Floor(tau))
	if k == n-1 {
		return lane(k)
	}
	frac := complex(tau-float64(k), 0)
	return lane(k)*(1-frac) + lane(k+1)*frac
}

// cubicKernel is a 4-point, 3rd-order convolution in the SOXR form:
//
//	b = 0.5*(s1+s_1) - s0
//	a = (1/6)*(s2 - s1 + s_1 - s0 - 4b)
//	c = s1 - s0 - a - b
//	y = ((a*x + b)*x + c)*x + s0
//
// where x is the fractional position past s0.
func cubicKernel(lane laneFunc, n int, tau float64) complex128 {
	if tau < 0 || tau > float64(n-1) {
		return 0
	}
	k := int(math.Floor(tau))
	x := complex(tau-float64(k), 0)

	sm1 := lane(k - 1)
	s0 := lane(k)
	s1 := lane(k + 1)
	s2 := lane(k + 2)

	b := 0.5*(s1+sm1) - s0
	a := (1.0 / 6.0) * (s2 - s1 + sm1 - s0 - 4*b)
	c := s1 - s0 - a - b
	return ((a*x+b)*x+c)*x + s0
}

// lanczos3Kernel is a 6-tap windowed sinc with a = 3.
func lanczos3Kernel(lane laneFunc, n int, tau float64) complex128 {
	if tau < 0 || tau > float64(n-1) {
		return 0
	}
	k := int(math.Floor(tau))
	var acc complex128
	for j := k - 2; j <= k+3; j++ {
		w := lanczosWeight(tau-float64(j), 3)
		if w != 0 {
			acc += lane(j) * complex(w, 0)
		}
	}
	return acc
}

func lanczosWeight(x float64, a float64) float64 {
	if x == 0 {
		return 1
	}
	if x <= -a || x >= a {
		return 0
	}
	px := math.Pi * x
	return a * math.Sin(px) * math.Sin(px/a) / (px * px)
}
