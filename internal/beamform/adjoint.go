package beamform

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/beamform-go/beamform/internal/parallel"
	"github.com/beamform-go/beamform/internal/tensor"
)

// steerEps floors the steering-vector power normalization so degenerate
// sequences (all-zero apodization at a frequency) decode to zero instead
// of blowing up.
const steerEps = 1e-12

// AdjointOpts configures the frequency-domain beamformer.
type AdjointOpts struct {
	// ModFreq is the demodulation carrier in Hz. Frequency bins are
	// shifted by it so baseband data is phased at its true frequency.
	ModFreq float64
	// ThresholdDB retains only frequency bins whose peak magnitude is
	// within this many dB of the strongest bin. Zero or negative keeps
	// every bin.
	ThresholdDB float64
	// Apod is an optional (pixels, N, M) weight mask. It may vary along
	// at most one of the pixel, receive, or transmit groups; the other
	// two must be size 1.
	Apod *tensor.RawTensor
	// KeepRx and KeepTx retain the receive and transmit axes.
	KeepRx bool
	KeepTx bool
	// C0 overrides the sequence sound speed when positive.
	C0 float64
	// FFTLen is the transform length along time. Zero uses the data
	// length.
	FFTLen int
	// BlockSize is the number of frequency bins per parallel block.
	// Zero picks a size splitting the spectrum across max 16 blocks.
	BlockSize int
}

// Adjoint forms an image by applying the conjugate-transposed forward
// operator in the temporal-frequency domain. Per retained frequency bin it
// multiplies the data spectrum by conjugated transmit and receive
// propagation phasors and a decoded per-event transmit weighting, then
// sums across frequency. Phasors advance across adjacent bins by a single
// complex multiply per (pixel, element) pair.
func Adjoint(b tensor.Backend, chd ChannelData, grid Grid, rxAp, txAp Aperture, seq Sequence, opts AdjointOpts) (*tensor.RawTensor, error) {
	if err := grid.Validate(); err != nil {
		return nil, fmt.Errorf("adjoint: %w", err)
	}
	if err := rxAp.Validate(); err != nil {
		return nil, fmt.Errorf("adjoint: receive aperture: %w", err)
	}
	if err := seq.Validate(txAp); err != nil {
		return nil, fmt.Errorf("adjoint: %w", err)
	}
	chd, err := chd.Canonical(b)
	if err != nil {
		return nil, fmt.Errorf("adjoint: %w", err)
	}
	n, m := chd.N(), chd.M()
	if n != rxAp.N() {
		return nil, fmt.Errorf("adjoint: %d receive channels but aperture has %d elements", n, rxAp.N())
	}
	if want := seq.NumTx(txAp); m != want {
		return nil, fmt.Errorf("adjoint: %d transmit events but sequence describes %d", m, want)
	}
	c := seq.C0
	if opts.C0 > 0 {
		c = opts.C0
	}
	if c <= 0 {
		return nil, fmt.Errorf("adjoint: sound speed %v must be > 0", c)
	}
	p := grid.NumPixels()
	apod, err := adjointApod(opts.Apod, p, n, m)
	if err != nil {
		return nil, fmt.Errorf("adjoint: %w", err)
	}

	nfft := opts.FFTLen
	if nfft <= 0 {
		nfft = chd.T()
	}
	xf := b.FFT(chd.Data, 0, nfft)
	xd := xf.AsComplex128()
	nFree := xf.Shape().NumElements() / (nfft * n * m)

	keep := retainedBins(xd, nfft, n*m*nFree, opts.ThresholdDB)

	// One-way travel times in seconds, pixel-major.
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
				return nil, fmt.Errorf("adjoint: %w", err)
			}
			tautx[pi*m+mi] = d / c
		}
	}
	t0s := make([]float64, m)
	for mi := range t0s {
		t0s[mi] = chd.t0At(mi)
	}

	outN, outM := 1, 1
	if opts.KeepRx {
		outN = n
	}
	if opts.KeepTx {
		outM = m
	}
	outLen := p * outN * outM * nFree

	st := &adjointState{
		xd: xd, keep: keep, apod: apod,
		taurx: taurx, tautx: tautx, t0s: t0s,
		seq: seq, fs: chd.Fs, modFreq: opts.ModFreq,
		nfft: nfft, p: p, n: n, m: m, nFree: nFree,
		outN: outN, outM: outM,
		keepRx: opts.KeepRx, keepTx: opts.KeepTx,
	}
	blocks := freqBlocks(nfft, opts.BlockSize)
	parts := make([][]complex128, len(blocks))
	parallel.For(len(blocks), func(bi int) {
		parts[bi] = st.accumulate(blocks[bi][0], blocks[bi][1], outLen)
	}, parallel.PerItem())

	out, err := tensor.NewRaw(tensor.Shape{p, outN, outM, nFree}, tensor.Complex128, b.Device())
	if err != nil {
		return nil, fmt.Errorf("adjoint: %w", err)
	}
	od := out.AsComplex128()
	for _, part := range parts {
		for i, v := range part {
			od[i] += v
		}
	}
	full := make(tensor.Shape, 0, xf.Shape().Rank())
	full = append(full, p, outN, outM)
	full = append(full, xf.Shape()[3:]...)
	out = b.Reshape(out, full)
	return reshapeImage(b, out, grid, opts.KeepRx, opts.KeepTx), nil
}

// adjointState is the shared immutable input of the per-block workers.
type adjointState struct {
	xd           []complex128
	keep         []bool
	apod         *adjointMask
	taurx, tautx []float64
	t0s          []float64
	seq          Sequence
	fs, modFreq  float64
	nfft         int
	p, n, m      int
	nFree        int
	outN, outM   int
	keepRx       bool
	keepTx       bool
}

// accumulate sums the contributions of bins [k0, k1) into a fresh partial
// image. Bins inside the range share one frequency sign, so the phasors
// advance by a constant step.
func (st *adjointState) accumulate(k0, k1 int, outLen int) []complex128 {
	out := make([]complex128, outLen)
	df := st.fs / float64(st.nfft)
	f0 := st.modFreq + signedFreq(k0, st.nfft)*st.fs

	crx := make([]complex128, st.p*st.n)
	srx := make([]complex128, st.p*st.n)
	for i, tau := range st.taurx {
		crx[i] = cmplx.Exp(complex(0, 2*math.Pi*f0*tau))
		srx[i] = cmplx.Exp(complex(0, 2*math.Pi*df*tau))
	}
	ctx := make([]complex128, st.p*st.m)
	stx := make([]complex128, st.p*st.m)
	for i, tau := range st.tautx {
		ctx[i] = cmplx.Exp(complex(0, 2*math.Pi*f0*tau))
		stx[i] = cmplx.Exp(complex(0, 2*math.Pi*df*tau))
	}

	w := make([]complex128, st.m)
	for k := k0; k < k1; k++ {
		if st.keep[k] {
			f := st.modFreq + signedFreq(k, st.nfft)*st.fs
			st.decodeTx(f, w)
			st.binContribution(k, f, crx, ctx, w, out)
		}
		if k+1 < k1 {
			for i := range crx {
				crx[i] *= srx[i]
			}
			for i := range ctx {
				ctx[i] *= stx[i]
			}
		}
	}
	return out
}

// binContribution adds bin k's image term: conj(rx phasor) · conj(tx
// phasor) · decoded weight · apodization · realigned spectrum.
func (st *adjointState) binContribution(k int, f float64, crx, ctx, w []complex128, out []complex128) {
	t0ph := make([]complex128, st.m)
	for mi, t0 := range st.t0s {
		t0ph[mi] = cmplx.Exp(complex(0, -2*math.Pi*f*t0))
	}
	base := k * st.n * st.m * st.nFree
	for pi := 0; pi < st.p; pi++ {
		for ni := 0; ni < st.n; ni++ {
			grx := crx[pi*st.n+ni]
			for mi := 0; mi < st.m; mi++ {
				g := grx * ctx[pi*st.m+mi] * w[mi] * t0ph[mi]
				a := st.apod.at(pi, ni, mi)
				if a == 0 {
					continue
				}
				g *= complex(a, 0)
				on, om := 0, 0
				if st.keepRx {
					on = ni
				}
				if st.keepTx {
					om = mi
				}
				oBase := ((pi*st.outN+on)*st.outM + om) * st.nFree
				xBase := base + (ni*st.m+mi)*st.nFree
				for fi := 0; fi < st.nFree; fi++ {
					out[oBase+fi] += g * st.xd[xBase+fi]
				}
			}
		}
	}
}

// decodeTx fills w with the power-normalized conjugate steering weight per
// transmit event at frequency f. Sequences without per-element focusing
// laws decode to unit weights.
func (st *adjointState) decodeTx(f float64, w []complex128) {
	if len(st.seq.Delays) == 0 {
		for i := range w {
			w[i] = 1
		}
		return
	}
	var power float64
	for mi := range w {
		var s complex128
		for e := range st.seq.Delays {
			a := 1.0
			if len(st.seq.Apod) == len(st.seq.Delays) {
				a = st.seq.Apod[e][mi]
			}
			s += complex(a, 0) * cmplx.Exp(complex(0, 2*math.Pi*f*st.seq.Delays[e][mi]))
		}
		w[mi] = s
		power += real(s)*real(s) + imag(s)*imag(s)
	}
	if power < steerEps {
		power = steerEps
	}
	inv := complex(1/power, 0)
	for mi := range w {
		w[mi] = cmplx.Conj(w[mi]) * inv
	}
}

// adjointMask wraps the apodization tensor with zeroed singleton strides.
type adjointMask struct {
	data       []float64
	sp, sn, sm int
}

func (a *adjointMask) at(p, n, m int) float64 {
	if a == nil {
		return 1
	}
	return a.data[p*a.sp+n*a.sn+m*a.sm]
}

// adjointApod validates the singularity pattern: the mask may vary along
// at most one of {pixels, receive, transmit}.
func adjointApod(apod *tensor.RawTensor, p, n, m int) (*adjointMask, error) {
	if apod == nil {
		return nil, nil
	}
	s := apod.Shape()
	if s.Rank() != 3 {
		return nil, fmt.Errorf("apodization mask has rank %d, want 3", s.Rank())
	}
	varying := 0
	for d, want := range []int{p, n, m} {
		if s[d] == 1 {
			continue
		}
		if s[d] != want {
			return nil, fmt.Errorf("apodization axis %d has size %d, want %d or 1", d, s[d], want)
		}
		varying++
	}
	if varying > 1 {
		return nil, fmt.Errorf("apodization varies along %d of pixels/receive/transmit; the frequency-domain path supports at most one", varying)
	}
	if apod.DType() != tensor.Float64 {
		return nil, fmt.Errorf("apodization mask dtype %s, want float64", apod.DType())
	}
	mask := &adjointMask{data: apod.AsFloat64()}
	if s[0] != 1 {
		mask.sp = s[1] * s[2]
	}
	if s[1] != 1 {
		mask.sn = s[2]
	}
	if s[2] != 1 {
		mask.sm = 1
	}
	return mask, nil
}

// retainedBins marks the frequency bins whose peak magnitude is within
// thresholdDB of the global peak. laneLen is the number of spectra values
// per bin.
func retainedBins(xd []complex128, nfft, laneLen int, thresholdDB float64) []bool {
	keep := make([]bool, nfft)
	if thresholdDB <= 0 {
		for k := range keep {
			keep[k] = true
		}
		return keep
	}
	peaks := make([]float64, nfft)
	var max float64
	for k := 0; k < nfft; k++ {
		for i := k * laneLen; i < (k+1)*laneLen; i++ {
			if a := cmplx.Abs(xd[i]); a > peaks[k] {
				peaks[k] = a
			}
		}
		if peaks[k] > max {
			max = peaks[k]
		}
	}
	floor := max * math.Pow(10, -thresholdDB/20)
	for k := range keep {
		keep[k] = peaks[k] >= floor
	}
	return keep
}

// signedFreq returns bin k's frequency in cycles per sample, negative in
// the upper half of the spectrum.
func signedFreq(k, nfft int) float64 {
	if k <= (nfft-1)/2 {
		return float64(k) / float64(nfft)
	}
	return float64(k-nfft) / float64(nfft)
}

// freqBlocks splits [0, nfft) into parallel ranges that never straddle
// the positive/negative frequency boundary, so each block's phasor
// recurrence uses one continuous frequency ramp.
func freqBlocks(nfft, blockSize int) [][2]int {
	split := (nfft-1)/2 + 1
	if blockSize <= 0 {
		blockSize = (nfft + 15) / 16
		if blockSize < 1 {
			blockSize = 1
		}
	}
	var blocks [][2]int
	for _, seg := range [][2]int{{0, split}, {split, nfft}} {
		for k := seg[0]; k < seg[1]; k += blockSize {
			end := k + blockSize
			if end > seg[1] {
				end = seg[1]
			}
			blocks = append(blocks, [2]int{k, end})
		}
	}
	return blocks
}
