package beamform

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/beamform-go/beamform/internal/parallel"
	"github.com/beamform-go/beamform/internal/sample"
	"github.com/beamform-go/beamform/internal/tensor"
)

// FocusOpts configures retrospective transmit synthesis.
type FocusOpts struct {
	// Method selects the per-sample interpolator. Zero value is Nearest;
	// most callers want sample.Cubic.
	Method sample.Method
	// ModFreq is the demodulation carrier in Hz for baseband data.
	ModFreq float64
}

// FocusTx synthesizes the transmit events of a target sequence from
// full-synthetic-aperture data: each new event is the per-element focusing
// law applied retrospectively, advancing element e by its delay and
// weighting it by its apodization, then summing over elements.
//
// seq.Delays and seq.Apod are element-by-event matrices; the element count
// must match the data's transmit axis. The start time must not vary across
// transmits.
func FocusTx(b tensor.Backend, chd ChannelData, seq Sequence, opts FocusOpts) (ChannelData, error) {
	chd, err := chd.Canonical(b)
	if err != nil {
		return ChannelData{}, fmt.Errorf("focus: %w", err)
	}
	e := chd.M()
	if len(seq.Delays) != e {
		return ChannelData{}, fmt.Errorf("focus: delay matrix has %d element rows, data has %d transmits", len(seq.Delays), e)
	}
	if chd.T0 != nil && chd.T0.Shape()[2] != 1 {
		return ChannelData{}, fmt.Errorf("focus: start time varies across transmits; align the acquisition first")
	}
	v := len(seq.Delays[0])
	if len(seq.Apod) != 0 && len(seq.Apod) != e {
		return ChannelData{}, fmt.Errorf("focus: apodization matrix has %d element rows, want %d", len(seq.Apod), e)
	}

	rank := chd.Data.Shape().Rank()
	t := chd.T()
	fs := chd.Fs

	parts := make([]*tensor.RawTensor, v)
	err = parallel.ForErr(v, func(vi int) error {
		var err error
		parts[vi], err = focusEvent(b, chd, seq, opts, rank, t, e, fs, vi)
		return err
	}, parallel.PerItem())
	if err != nil {
		return ChannelData{}, fmt.Errorf("focus: %w", err)
	}
	data := b.Cat(parts, 2)
	return NewChannelData(data, chd.Axes, fs, chd.T0)
}

// focusEvent synthesizes one target event by sampling every source
// element at its advanced time and reducing over the transmit axis.
func focusEvent(b tensor.Backend, chd ChannelData, seq Sequence, opts FocusOpts, rank, t, e int, fs float64, vi int) (*tensor.RawTensor, error) {
	delayShape := make(tensor.Shape, rank)
	delayShape[0], delayShape[1], delayShape[2] = t, 1, e
	for d := 3; d < rank; d++ {
		delayShape[d] = 1
	}
	delay, err := tensor.NewRaw(delayShape, tensor.Float64, b.Device())
	if err != nil {
		return nil, err
	}
	dd := delay.AsFloat64()
	for ti := 0; ti < t; ti++ {
		for ei := 0; ei < e; ei++ {
			dd[ti*e+ei] = float64(ti) + seq.Delays[ei][vi]*fs
		}
	}

	var weight *tensor.RawTensor
	if len(seq.Apod) != 0 {
		wShape := delayShape.Clone()
		wShape[0] = 1
		if weight, err = tensor.NewRaw(wShape, tensor.Float64, b.Device()); err != nil {
			return nil, err
		}
		wd := weight.AsFloat64()
		for ei := 0; ei < e; ei++ {
			wd[ei] = seq.Apod[ei][vi]
		}
	}
	return sample.Sample(b, chd.Data, 0, sample.Opts{
		Delay:      delay,
		Weight:     weight,
		Method:     opts.Method,
		ReduceAxes: []int{2},
		ModFreq:    opts.ModFreq,
		Fs:         fs,
	})
}

// RefocusOpts configures the encoded-transmit inversion.
type RefocusOpts struct {
	// Gamma is the Tikhonov regularization weight. Zero uses the
	// (events/10)² heuristic; a negative value requests the
	// unregularized pseudo-inverse (γ = 0).
	Gamma float64
	// ModFreq is the demodulation carrier in Hz for baseband data.
	ModFreq float64
	// FFTLen is the transform length along time. Zero uses the data
	// length.
	FFTLen int
	// BlockSize is the number of frequency bins per parallel block.
	// Zero picks a size splitting the spectrum across max 16 blocks.
	BlockSize int
}

// Refocus decodes encoded-transmit data back toward elemental responses.
// Per frequency bin it builds the encoding matrix H(f) with
// H[e,v] = apod·exp(2πi·f·delay), forms the regularized left inverse
// (HᴴH + γI)⁻¹Hᴴ of its transpose, and applies it along the transmit
// axis, then transforms back to time. The inversion is approximate: the
// regularization biases the round trip with FocusTx, less so as γ shrinks.
func Refocus(b tensor.Backend, chd ChannelData, seq Sequence, opts RefocusOpts) (ChannelData, error) {
	chd, err := chd.Canonical(b)
	if err != nil {
		return ChannelData{}, fmt.Errorf("refocus: %w", err)
	}
	v := chd.M()
	e := len(seq.Delays)
	if e == 0 {
		return ChannelData{}, fmt.Errorf("refocus: sequence has no per-element delays")
	}
	if len(seq.Delays[0]) != v {
		return ChannelData{}, fmt.Errorf("refocus: delay matrix describes %d events, data has %d transmits", len(seq.Delays[0]), v)
	}
	if chd.T0 != nil && chd.T0.Shape()[2] != 1 {
		return ChannelData{}, fmt.Errorf("refocus: start time varies across transmits; align the acquisition first")
	}
	gamma := opts.Gamma
	if gamma == 0 {
		g := float64(v) / 10
		gamma = g * g
	} else if gamma < 0 {
		gamma = 0
	}
	nfft := opts.FFTLen
	if nfft <= 0 {
		nfft = chd.T()
	}

	xf := b.FFT(chd.Data, 0, nfft)
	s := xf.Shape()
	n := s[1]
	nFree := s.NumElements() / (nfft * n * v)
	xd := xf.AsComplex128()

	outShape := s.Clone()
	outShape[2] = e
	out, err := tensor.NewRaw(outShape, tensor.Complex128, b.Device())
	if err != nil {
		return ChannelData{}, fmt.Errorf("refocus: %w", err)
	}
	od := out.AsComplex128()

	blk := opts.BlockSize
	if blk <= 0 {
		blk = (nfft + 15) / 16
		if blk < 1 {
			blk = 1
		}
	}
	fs := chd.Fs
	nBlocks := (nfft + blk - 1) / blk
	err = parallel.ForErr(nBlocks, func(bi int) error {
		k0 := bi * blk
		k1 := k0 + blk
		if k1 > nfft {
			k1 = nfft
		}
		for k := k0; k < k1; k++ {
			f := opts.ModFreq + signedFreq(k, nfft)*fs
			hi, err := decodeMatrix(seq, f, e, v, gamma)
			if err != nil {
				return err
			}
			applyDecode(xd, od, hi, k, n, v, e, nFree)
		}
		return nil
	}, parallel.PerItem())
	if err != nil {
		return ChannelData{}, fmt.Errorf("refocus: %w", err)
	}

	data := b.IFFT(out, 0, nfft)
	if nfft > chd.T() {
		data = b.Narrow(data, 0, 0, chd.T())
	}
	return NewChannelData(data, chd.Axes, fs, chd.T0)
}

// decodeMatrix builds the regularized decoder Hi = (HᴴH + γI)⁻¹Hᴴ of the
// event-by-element encoding map at frequency f, as an e×v complex matrix
// applied to the event axis. The complex system is solved through its
// real 2e×2e block embedding.
func decodeMatrix(seq Sequence, f float64, e, v int, gamma float64) ([]complex128, error) {
	// A[v,e] encodes element responses into events: A = Hᵀ.
	h := make([]complex128, e*v)
	for ei := 0; ei < e; ei++ {
		for vi := 0; vi < v; vi++ {
			a := 1.0
			if len(seq.Apod) == len(seq.Delays) {
				a = seq.Apod[ei][vi]
			}
			h[ei*v+vi] = complex(a, 0) * cmplx.Exp(complex(0, 2*math.Pi*f*seq.Delays[ei][vi]))
		}
	}

	// B = AᴴA + γI = conj(H)·Hᵀ + γI, Hermitian e×e.
	bmat := make([]complex128, e*e)
	for i := 0; i < e; i++ {
		for j := 0; j < e; j++ {
			var s complex128
			for vi := 0; vi < v; vi++ {
				s += cmplx.Conj(h[i*v+vi]) * h[j*v+vi]
			}
			if i == j {
				s += complex(gamma, 0)
			}
			bmat[i*e+j] = s
		}
	}

	// Real block embedding [[Re,-Im],[Im,Re]] turns the complex solve
	// into one real solve with a doubled right-hand side.
	lhs := mat.NewDense(2*e, 2*e, nil)
	for i := 0; i < e; i++ {
		for j := 0; j < e; j++ {
			re, im := real(bmat[i*e+j]), imag(bmat[i*e+j])
			lhs.Set(i, j, re)
			lhs.Set(i, j+e, -im)
			lhs.Set(i+e, j, im)
			lhs.Set(i+e, j+e, re)
		}
	}
	rhs := mat.NewDense(2*e, v, nil)
	for i := 0; i < e; i++ {
		for vi := 0; vi < v; vi++ {
			// Aᴴ[e,v] = conj(H)[e,v].
			c := cmplx.Conj(h[i*v+vi])
			rhs.Set(i, vi, real(c))
			rhs.Set(i+e, vi, imag(c))
		}
	}
	var sol mat.Dense
	if err := sol.Solve(lhs, rhs); err != nil {
		return nil, fmt.Errorf("decoding solve at %v Hz: %w", f, err)
	}
	hi := make([]complex128, e*v)
	for i := 0; i < e; i++ {
		for vi := 0; vi < v; vi++ {
			hi[i*v+vi] = complex(sol.At(i, vi), sol.At(i+e, vi))
		}
	}
	return hi, nil
}

// applyDecode multiplies bin k's spectrum by the decoder along the
// transmit axis: out[k,n,e,·] = Σ_v hi[e,v]·in[k,n,v,·].
func applyDecode(xd, od []complex128, hi []complex128, k, n, v, e, nFree int) {
	inBase := k * n * v * nFree
	outBase := k * n * e * nFree
	for ni := 0; ni < n; ni++ {
		for ei := 0; ei < e; ei++ {
			ob := outBase + (ni*e+ei)*nFree
			for vi := 0; vi < v; vi++ {
				w := hi[ei*v+vi]
				if w == 0 {
					continue
				}
				ib := inBase + (ni*v+vi)*nFree
				for fi := 0; fi < nFree; fi++ {
					od[ob+fi] += w * xd[ib+fi]
				}
			}
		}
	}
}
