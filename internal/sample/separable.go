package sample

import (
	"fmt"

	"github.com/beamform-go/beamform/internal/tensor"
)

// SampleSeparable resamples at delay = delayA + delayB without ever
// materializing the broadcast sum of the two delay tensors. The data is
// resampled in two passes, each keyed to one component's own broadcast
// shape, so peak memory stays O(|delayA| + |delayB|) instead of
// O(|delayA| × |delayB|).
//
// The first pass interpolates at delayA and keeps every axis; the second
// interpolates the intermediate at delayB and applies the weight,
// modulation and reduction from opts. opts.Delay is ignored.
//
// The split is exact for Freq interpolation and an approximation for the
// polynomial kernels, whose two-stage error stays below the single-stage
// kernel's own error for band-limited data.
func SampleSeparable(b tensor.Backend, data *tensor.RawTensor, timeAxis int,
	delayA, delayB *tensor.RawTensor, opts Opts) (*tensor.RawTensor, error) {
	if delayA == nil || delayB == nil {
		return nil, fmt.Errorf("sample: separable variant needs both delay components")
	}
	ndim := len(data.Shape())
	if len(delayA.Shape()) != ndim || len(delayB.Shape()) != ndim {
		return nil, fmt.Errorf("sample: delay ranks %d/%d != data rank %d",
			len(delayA.Shape()), len(delayB.Shape()), ndim)
	}
	if timeAxis < 0 {
		timeAxis = ndim + timeAxis
	}
	if timeAxis < 0 || timeAxis >= ndim {
		return nil, fmt.Errorf("sample: time axis %d out of range for %dD data", timeAxis, ndim)
	}

	// Pass 1: shift by delayA alone. The intermediate keeps the original
	// time sampling, offset per lane: index k of the intermediate holds
	// data at k + delayA.
	shiftA, err := offsetRamp(b, delayA, data.Shape()[timeAxis], timeAxis)
	if err != nil {
		return nil, err
	}
	mid, err := Sample(b, data, timeAxis, Opts{
		Delay:  shiftA,
		Method: opts.Method,
		Fs:     opts.Fs,
	})
	if err != nil {
		return nil, fmt.Errorf("sample: separable pass 1: %w", err)
	}

	// Pass 2: the remaining component indexes the shifted lanes directly.
	passOpts := opts
	passOpts.Delay = delayB
	out, err := Sample(b, mid, timeAxis, passOpts)
	if err != nil {
		return nil, fmt.Errorf("sample: separable pass 2: %w", err)
	}
	return out, nil
}

// offsetRamp builds a delay tensor equal to delayA broadcast against a full
// integer time ramp: entry k is k + delayA. delayA must be singleton along
// the time axis.
func offsetRamp(b tensor.Backend, delayA *tensor.RawTensor, nTime, timeAxis int) (*tensor.RawTensor, error) {
	if delayA.Shape()[timeAxis] != 1 {
		return nil, fmt.Errorf("sample: separable delayA must be singleton along the time axis, got %d",
			delayA.Shape()[timeAxis])
	}
	rampShape := make(tensor.Shape, len(delayA.Shape()))
	for i := range rampShape {
		rampShape[i] = 1
	}
	rampShape[timeAxis] = nTime

	ramp, err := tensor.NewRaw(rampShape, tensor.Float64, b.Device())
	if err != nil {
		return nil, fmt.Errorf("sample: %w", err)
	}
	rd := ramp.AsFloat64()
	for k := range rd {
		rd[k] = float64(k)
	}

	a := delayA
	if a.DType() != tensor.Float64 {
		a = b.Cast(a, tensor.Float64)
	}
	return b.Add(ramp, a), nil
}
