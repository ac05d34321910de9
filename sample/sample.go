// Copyright 2025 The Beamform Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package sample provides the public API for the generalized
// delay-sample-and-reduce kernel: fractional-delay interpolation of a
// data tensor along its time axis, optional weighting, and reduction over
// chosen axes. Every beamformer in this module defers its inner loop to
// this kernel.
//
// Example:
//
//	backend := cpu.New()
//	out, err := sample.Sample(backend, data, 0, sample.Opts{
//	    Delay:  delays,
//	    Method: sample.Cubic,
//	})
package sample

import (
	"github.com/beamform-go/beamform/internal/sample"
	"github.com/beamform-go/beamform/tensor"
)

// Method selects the per-sample interpolation strategy. The choice is a
// closed enum resolved once per call, never inside the hot loop.
type Method = sample.Method

// Interpolation methods.
const (
	// Nearest rounds to the closest sample.
	Nearest Method = sample.Nearest
	// Linear blends the two bracketing samples.
	Linear Method = sample.Linear
	// Cubic fits a 4-point third-order polynomial.
	Cubic Method = sample.Cubic
	// Lanczos3 applies a 6-tap windowed-sinc.
	Lanczos3 Method = sample.Lanczos3
	// Freq evaluates the lane's Fourier series at the fractional delay.
	Freq Method = sample.Freq
)

// ParseMethod maps a method name ("nearest", "linear", "cubic",
// "lanczos3", "freq") to its enum value.
func ParseMethod(name string) (Method, error) {
	return sample.ParseMethod(name)
}

// Opts configures one sampling call.
type Opts = sample.Opts

// Sample delays data along timeAxis at the fractional sample indices in
// opts.Delay, weights the result, and reduces over opts.ReduceAxes.
// Out-of-range delays contribute zero. See the internal package for the
// full shape contract.
func Sample(b tensor.Backend, data *tensor.RawTensor, timeAxis int, opts Opts) (*tensor.RawTensor, error) {
	return sample.Sample(b, data, timeAxis, opts)
}

// SampleSeparable applies a two-delay variant: the data is first shifted
// by delayA (singleton along time), then sampled at delayB with the full
// options. Splitting a delay this way lets a common bulk shift reuse one
// interpolation pass.
func SampleSeparable(b tensor.Backend, data *tensor.RawTensor, timeAxis int, delayA, delayB *tensor.RawTensor, opts Opts) (*tensor.RawTensor, error) {
	return sample.SampleSeparable(b, data, timeAxis, delayA, delayB, opts)
}
