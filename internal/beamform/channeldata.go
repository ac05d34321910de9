package beamform

import (
	"fmt"
	"math"

	"github.com/beamform-go/beamform/internal/tensor"
)

// ChannelData is an acquired (or simulated) pulse-echo data cube: a tensor
// over {Time, Receive, Transmit} plus any Free axes, with its sample rate
// and a broadcastable start time.
//
// ChannelData is immutable: every transformation returns a new value whose
// Data shares buffers copy-on-write with the source.
type ChannelData struct {
	// Data holds the samples. Real or complex.
	Data *tensor.RawTensor
	// Axes maps each Data axis to its role.
	Axes tensor.Axes
	// Fs is the sample rate in Hz.
	Fs float64
	// T0 is the start time in seconds, broadcastable against Data: it
	// must be singleton along the Time and Receive axes and may vary
	// along Transmit and Free axes. A nil T0 means zero.
	T0 *tensor.RawTensor
}

// NewChannelData validates and assembles a ChannelData value.
func NewChannelData(data *tensor.RawTensor, axes tensor.Axes, fs float64, t0 *tensor.RawTensor) (ChannelData, error) {
	if data == nil {
		return ChannelData{}, fmt.Errorf("channel data: nil data")
	}
	if err := axes.Validate(); err != nil {
		return ChannelData{}, fmt.Errorf("channel data: %w", err)
	}
	if len(axes) != len(data.Shape()) {
		return ChannelData{}, fmt.Errorf("channel data: %d axis roles for %dD data", len(axes), len(data.Shape()))
	}
	if fs <= 0 {
		return ChannelData{}, fmt.Errorf("channel data: sample rate %v must be > 0", fs)
	}
	if t0 != nil {
		if len(t0.Shape()) != len(data.Shape()) {
			return ChannelData{}, fmt.Errorf("channel data: t0 rank %d != data rank %d", len(t0.Shape()), len(data.Shape()))
		}
		for _, ax := range []int{axes.TimeAxis(), axes.ReceiveAxis()} {
			if t0.Shape()[ax] != 1 {
				return ChannelData{}, fmt.Errorf("channel data: t0 must be singleton along axis %d (%s), got %d",
					ax, axes[ax], t0.Shape()[ax])
			}
		}
		for ax, n := range t0.Shape() {
			if n != 1 && n != data.Shape()[ax] {
				return ChannelData{}, fmt.Errorf("channel data: t0 size %d at axis %d does not broadcast against data size %d",
					n, ax, data.Shape()[ax])
			}
		}
	}
	return ChannelData{Data: data, Axes: axes.Clone(), Fs: fs, T0: t0}, nil
}

// T returns the time-sample count.
func (c ChannelData) T() int { return c.Data.Shape()[c.Axes.TimeAxis()] }

// N returns the receive-element count.
func (c ChannelData) N() int { return c.Data.Shape()[c.Axes.ReceiveAxis()] }

// M returns the transmit-event count.
func (c ChannelData) M() int { return c.Data.Shape()[c.Axes.TransmitAxis()] }

// WithData returns a copy with the data (and optionally t0) replaced.
// Shape and axes must still agree.
func (c ChannelData) WithData(data *tensor.RawTensor, t0 *tensor.RawTensor) (ChannelData, error) {
	return NewChannelData(data, c.Axes, c.Fs, t0)
}

// Permute returns a copy with data axes reordered; perm[i] names the
// source axis for destination axis i. The axis-role map moves with the
// data.
func (c ChannelData) Permute(b tensor.Backend, perm []int) (ChannelData, error) {
	axes, err := c.Axes.Permute(perm)
	if err != nil {
		return ChannelData{}, fmt.Errorf("channel data: %w", err)
	}
	data := b.Transpose(c.Data, perm...)
	var t0 *tensor.RawTensor
	if c.T0 != nil {
		t0 = b.Transpose(c.T0, perm...)
	}
	return NewChannelData(data, axes, c.Fs, t0)
}

// Canonical returns a copy permuted to (Time, Receive, Transmit, Free...)
// axis order, the layout every beamformer driver works in.
func (c ChannelData) Canonical(b tensor.Backend) (ChannelData, error) {
	want := []int{c.Axes.TimeAxis(), c.Axes.ReceiveAxis(), c.Axes.TransmitAxis()}
	for i, r := range c.Axes {
		if r == tensor.Free {
			want = append(want, i)
		}
	}
	identity := true
	for i, src := range want {
		if i != src {
			identity = false
			break
		}
	}
	if identity {
		return c, nil
	}
	return c.Permute(b, want)
}

// ZeroPad returns a copy with the time axis extended by pre samples before
// and post samples after; t0 moves back by pre/fs.
func (c ChannelData) ZeroPad(b tensor.Backend, pre, post int) (ChannelData, error) {
	if pre < 0 || post < 0 {
		return ChannelData{}, fmt.Errorf("channel data: negative padding (%d, %d)", pre, post)
	}
	if pre == 0 && post == 0 {
		return c, nil
	}
	timeAxis := c.Axes.TimeAxis()
	parts := make([]*tensor.RawTensor, 0, 3)
	if pre > 0 {
		shape := c.Data.Shape().Clone()
		shape[timeAxis] = pre
		pad, err := tensor.NewRaw(shape, c.Data.DType(), b.Device())
		if err != nil {
			return ChannelData{}, fmt.Errorf("channel data: %w", err)
		}
		parts = append(parts, pad)
	}
	parts = append(parts, c.Data)
	if post > 0 {
		shape := c.Data.Shape().Clone()
		shape[timeAxis] = post
		pad, err := tensor.NewRaw(shape, c.Data.DType(), b.Device())
		if err != nil {
			return ChannelData{}, fmt.Errorf("channel data: %w", err)
		}
		parts = append(parts, pad)
	}
	data := b.Cat(parts, timeAxis)

	t0 := c.T0
	if pre > 0 {
		shift := -float64(pre) / c.Fs
		if t0 == nil {
			t0 = c.zeroT0(b)
		}
		t0 = b.AddScalar(t0, shift)
	}
	return NewChannelData(data, c.Axes, c.Fs, t0)
}

// zeroT0 builds an all-singleton zero start time matching the data rank.
func (c ChannelData) zeroT0(b tensor.Backend) *tensor.RawTensor {
	shape := make(tensor.Shape, len(c.Data.Shape()))
	for i := range shape {
		shape[i] = 1
	}
	t0, err := tensor.NewRaw(shape, tensor.Float64, b.Device())
	if err != nil {
		panic(fmt.Sprintf("channel data: %v", err))
	}
	return t0
}

// t0At reads the start time for transmit event m (free axes at zero).
func (c ChannelData) t0At(m int) float64 {
	if c.T0 == nil {
		return 0
	}
	txAxis := c.Axes.TransmitAxis()
	if c.T0.Shape()[txAxis] == 1 {
		m = 0
	}
	idx := m * c.T0.Shape().ComputeStrides()[txAxis]
	switch c.T0.DType() {
	case tensor.Float32:
		return float64(c.T0.AsFloat32()[idx])
	case tensor.Float64:
		return c.T0.AsFloat64()[idx]
	default:
		panic(fmt.Sprintf("channel data: t0 dtype %s is not real", c.T0.DType()))
	}
}

// Hilbert returns a copy with real data converted to its analytic signal
// via the frequency domain: positive frequencies doubled, negative zeroed.
// Complex data passes through unchanged.
func (c ChannelData) Hilbert(b tensor.Backend) (ChannelData, error) {
	if c.Data.DType().IsComplex() {
		return c, nil
	}
	timeAxis := c.Axes.TimeAxis()
	n := c.T()
	spec := b.FFT(c.Data, timeAxis, n)

	// Zero the negative-frequency half and double the positive half.
	sd := spec.AsComplex128()
	_, _, inner := spanAround(spec.Shape(), timeAxis)
	outer := spec.NumElements() / (n * inner)
	for o := 0; o < outer; o++ {
		for k := 1; k < n; k++ {
			scale := complex128(0)
			switch {
			case k < (n+1)/2:
				scale = 2
			case n%2 == 0 && k == n/2:
				scale = 1
			}
			for i := 0; i < inner; i++ {
				sd[o*n*inner+k*inner+i] *= scale
			}
		}
	}
	data := b.IFFT(spec, timeAxis, n)
	return NewChannelData(data, c.Axes, c.Fs, c.T0)
}

// DownMix returns a copy demodulated by fc: each sample is multiplied by
// exp(-2πi·fc·t). Beamformers undo it by passing fc as the modulation
// frequency.
func (c ChannelData) DownMix(b tensor.Backend, fc float64) (ChannelData, error) {
	if fc == 0 {
		return c, nil
	}
	timeAxis := c.Axes.TimeAxis()
	n := c.T()

	phaseShape := make(tensor.Shape, len(c.Data.Shape()))
	for i := range phaseShape {
		phaseShape[i] = 1
	}
	phaseShape[timeAxis] = n
	phase, err := tensor.NewRaw(phaseShape, tensor.Float64, b.Device())
	if err != nil {
		return ChannelData{}, fmt.Errorf("channel data: %w", err)
	}
	pd := phase.AsFloat64()
	for k := range pd {
		pd[k] = -2 * math.Pi * fc * float64(k) / c.Fs
	}
	data := b.Mul(b.Cast(c.Data, tensor.Complex128), b.Phasor(phase))
	return NewChannelData(data, c.Axes, c.Fs, c.T0)
}

// spanAround splits a shape around one axis into outer, axis and inner
// extents.
func spanAround(shape tensor.Shape, dim int) (outer, axis, inner int) {
	outer, inner = 1, 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	axis = shape[dim]
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	return outer, axis, inner
}
