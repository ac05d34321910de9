package beamform

import (
	"fmt"

	"github.com/beamform-go/beamform/internal/parallel"
	"github.com/beamform-go/beamform/internal/sample"
	"github.com/beamform-go/beamform/internal/tensor"
)

// defaultBlockBytes bounds the delay tensor built per transmit block.
const defaultBlockBytes = 1 << 30

// DASOpts configures the delay-and-sum beamformer.
type DASOpts struct {
	// Method selects the per-sample interpolator. Zero value is Nearest;
	// most callers want sample.Cubic.
	Method sample.Method
	// ModFreq is the demodulation carrier in Hz for baseband data. The
	// sampled values are remodulated by exp(+2πi·ModFreq·τ) so delayed
	// baseband channels sum in phase.
	ModFreq float64
	// Apod is an optional (pixels, N, M) weight mask with singleton axes
	// where the weight is constant, as produced by the apodization
	// constructors. Nil means uniform weighting.
	Apod *tensor.RawTensor
	// KeepRx and KeepTx skip the reduction over the receive and transmit
	// axes, retaining per-channel or per-event images.
	KeepRx bool
	KeepTx bool
	// C0 overrides the sequence sound speed when positive.
	C0 float64
	// BlockSize fixes the number of transmits delayed per block. Zero
	// picks a size that keeps the per-block delay tensor near 1 GiB.
	BlockSize int
}

// DAS forms an image from channel data by delaying every
// (pixel, receive, transmit) triple to its round-trip time and summing.
//
// The output shape is the grid's (Z, X, Y) followed by the receive axis if
// KeepRx, the transmit axis if KeepTx, then any free axes of the input.
func DAS(b tensor.Backend, chd ChannelData, grid Grid, rxAp, txAp Aperture, seq Sequence, opts DASOpts) (*tensor.RawTensor, error) {
	if err := grid.Validate(); err != nil {
		return nil, fmt.Errorf("das: %w", err)
	}
	if err := rxAp.Validate(); err != nil {
		return nil, fmt.Errorf("das: receive aperture: %w", err)
	}
	if err := seq.Validate(txAp); err != nil {
		return nil, fmt.Errorf("das: %w", err)
	}
	chd, err := chd.Canonical(b)
	if err != nil {
		return nil, fmt.Errorf("das: %w", err)
	}
	n, m := chd.N(), chd.M()
	if n != rxAp.N() {
		return nil, fmt.Errorf("das: %d receive channels but aperture has %d elements", n, rxAp.N())
	}
	if want := seq.NumTx(txAp); m != want {
		return nil, fmt.Errorf("das: %d transmit events but sequence describes %d", m, want)
	}
	c := seq.C0
	if opts.C0 > 0 {
		c = opts.C0
	}
	if c <= 0 {
		return nil, fmt.Errorf("das: sound speed %v must be > 0", c)
	}

	p := grid.NumPixels()
	taurx := rxDistances(grid, rxAp)
	for i := range taurx {
		taurx[i] /= c
	}
	tautx := make([]float64, p*m)
	for pi := 0; pi < p; pi++ {
		pix := grid.At(pi)
		for mi := 0; mi < m; mi++ {
			d, err := txDistance(pix, seq, txAp, mi)
			if err != nil {
				return nil, fmt.Errorf("das: %w", err)
			}
			tautx[pi*m+mi] = d / c
		}
	}
	img, err := sumDelays(b, chd, grid, opts, taurx, tautx)
	if err != nil {
		return nil, fmt.Errorf("das: %w", err)
	}
	return img, nil
}

// mergeParts folds per-block partial images, concatenating along the
// transmit axis when it is retained and summing otherwise.
func mergeParts(b tensor.Backend, parts []*tensor.RawTensor, keepTx bool) *tensor.RawTensor {
	if keepTx {
		return b.Cat(parts, 2)
	}
	out := parts[0]
	for _, part := range parts[1:] {
		out = b.Add(out, part)
	}
	return out
}

// sumDelays runs the blocked delay-and-sum given one-way travel-time
// tables in seconds: taurx is (pixels, N) and tautx is (pixels, M), both
// flattened pixel-major. Transmit blocks are delayed concurrently and
// merged by concatenation or summation.
func sumDelays(b tensor.Backend, chd ChannelData, grid Grid, opts DASOpts, taurx, tautx []float64) (*tensor.RawTensor, error) {
	p := grid.NumPixels()
	n, m := chd.N(), chd.M()

	blk := opts.BlockSize
	if blk <= 0 {
		blk = defaultBlockBytes / (8 * p * n)
		if blk < 1 {
			blk = 1
		}
	}
	if blk > m {
		blk = m
	}
	nBlocks := (m + blk - 1) / blk

	rank := chd.Data.Shape().Rank()
	parts := make([]*tensor.RawTensor, nBlocks)
	err := parallel.ForErr(nBlocks, func(bi int) error {
		m0 := bi * blk
		mb := blk
		if m0+mb > m {
			mb = m - m0
		}
		var err error
		parts[bi], err = delayBlock(b, chd, opts, taurx, tautx, p, rank, m0, mb)
		return err
	}, parallel.PerItem())
	if err != nil {
		return nil, err
	}

	out := mergeParts(b, parts, opts.KeepTx)
	return reshapeImage(b, out, grid, opts.KeepRx, opts.KeepTx), nil
}

// delayBlock delays and reduces the transmits in [m0, m0+mb).
func delayBlock(b tensor.Backend, chd ChannelData, opts DASOpts, taurx, tautx []float64, p, rank, m0, mb int) (*tensor.RawTensor, error) {
	n, m := chd.N(), chd.M()

	delayShape := make(tensor.Shape, rank)
	delayShape[0], delayShape[1], delayShape[2] = p, n, mb
	for d := 3; d < rank; d++ {
		delayShape[d] = 1
	}
	delay, err := tensor.NewRaw(delayShape, tensor.Float64, b.Device())
	if err != nil {
		return nil, err
	}
	dd := delay.AsFloat64()
	fs := chd.Fs
	for mi := 0; mi < mb; mi++ {
		t0 := chd.t0At(m0 + mi)
		for pi := 0; pi < p; pi++ {
			tx := tautx[pi*m+m0+mi]
			base := pi*n*mb + mi
			for ni := 0; ni < n; ni++ {
				dd[base+ni*mb] = (tx + taurx[pi*n+ni] - t0) * fs
			}
		}
	}

	data := chd.Data
	if mb < m {
		data = b.Narrow(data, 2, m0, mb)
	}
	weight, err := apodBlock(b, opts.Apod, rank, m0, mb)
	if err != nil {
		return nil, err
	}
	var reduce []int
	if !opts.KeepRx {
		reduce = append(reduce, 1)
	}
	if !opts.KeepTx {
		reduce = append(reduce, 2)
	}
	return sample.Sample(b, data, 0, sample.Opts{
		Delay:      delay,
		Weight:     weight,
		Method:     opts.Method,
		ReduceAxes: reduce,
		ModFreq:    opts.ModFreq,
		Fs:         fs,
	})
}

// apodBlock slices the apodization mask to a transmit block and pads its
// rank to match the data.
func apodBlock(b tensor.Backend, apod *tensor.RawTensor, rank, m0, mb int) (*tensor.RawTensor, error) {
	if apod == nil {
		return nil, nil
	}
	if apod.Shape().Rank() != 3 {
		return nil, fmt.Errorf("apodization mask has rank %d, want 3", apod.Shape().Rank())
	}
	w := apod
	if apod.Shape()[2] != 1 {
		w = b.Narrow(w, 2, m0, mb)
	}
	if rank > 3 {
		padded := make(tensor.Shape, rank)
		copy(padded, w.Shape())
		for d := 3; d < rank; d++ {
			padded[d] = 1
		}
		w = b.Reshape(w, padded)
	}
	return w, nil
}

// rxDistances returns |pixel - element| for every (pixel, element) pair,
// flattened pixel-major.
func rxDistances(grid Grid, rxAp Aperture) []float64 {
	p := grid.NumPixels()
	n := rxAp.N()
	d := make([]float64, p*n)
	for pi := 0; pi < p; pi++ {
		pix := grid.At(pi)
		for ni := 0; ni < n; ni++ {
			d[pi*n+ni] = pix.Sub(rxAp.Pos[ni]).Norm()
		}
	}
	return d
}

// txDistance is the transmit path length from the wavefront time reference
// to the pixel for event m. For virtual sources the distance is signed so
// pixels shallower than the focus see a negative delay, and for plane
// waves it is the projection of the pixel onto the steering direction.
func txDistance(pix Vec3, seq Sequence, txAp Aperture, m int) (float64, error) {
	switch seq.Kind {
	case FSA:
		return pix.Sub(txAp.Pos[m]).Norm(), nil
	case VS:
		r := pix.Sub(seq.Foci[m])
		d := r.Norm()
		dir := Vec3{0, 0, 1}
		if len(seq.Dirs) == len(seq.Foci) {
			dir = seq.Dirs[m]
		}
		if r.Dot(dir) < 0 {
			d = -d
		}
		return d, nil
	case PW:
		return pix.Dot(seq.Dirs[m]), nil
	default:
		return 0, fmt.Errorf("unsupported sequence kind %d", seq.Kind)
	}
}

// reshapeImage unflattens the pixel axis to (Z, X, Y) and drops the
// reduced singleton receive/transmit axes.
func reshapeImage(b tensor.Backend, img *tensor.RawTensor, grid Grid, keepRx, keepTx bool) *tensor.RawTensor {
	gs := grid.Shape()
	in := img.Shape()
	out := make(tensor.Shape, 0, in.Rank()+2)
	out = append(out, gs...)
	if keepRx {
		out = append(out, in[1])
	}
	if keepTx {
		out = append(out, in[2])
	}
	out = append(out, in[3:]...)
	return b.Reshape(img, out)
}
