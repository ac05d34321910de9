package sample

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/beamform-go/beamform/internal/tensor"
)

// freqSampler evaluates exact band-limited fractional delays: each time
// lane is zero padded, transformed once, and then evaluated at arbitrary
// fractional indices through a linear-phase sum. The padding is chosen from
// the observed min/max delay so the circular shift cannot wrap the data
// back into the observation window.
//
// Known limitation: the padding only accounts for the observed delay range.
// A pathological delay distribution with contributions far outside that
// range would still alias.
type freqSampler struct {
	p       *pass
	nfft    int
	phase   []float64 // 2π·f_k for each bin, signed frequencies
	spectra map[int][]complex128
	fft     *fourier.CmplxFFT
	lane    []complex128
}

func newFreqSampler(p *pass, delay *tensor.RawTensor) (*freqSampler, error) {
	minTau, maxTau := delayRange(delay)
	if math.IsNaN(minTau) || math.IsInf(minTau, 0) || math.IsInf(maxTau, 0) {
		return nil, fmt.Errorf("sample: freq method requires finite delays, got range [%v, %v]", minTau, maxTau)
	}

	// Pad below for negative delays and above for delays past the end,
	// plus one guard sample on each side.
	padLow := int(math.Ceil(math.Max(0, -minTau))) + 1
	padHigh := int(math.Ceil(math.Max(0, maxTau-float64(p.nTime-1)))) + 1
	nfft := p.nTime + padLow + padHigh

	fs := &freqSampler{
		p:       p,
		nfft:    nfft,
		phase:   make([]float64, nfft),
		spectra: make(map[int][]complex128),
		fft:     fourier.NewCmplxFFT(nfft),
		lane:    make([]complex128, nfft),
	}
	for k := range fs.phase {
		fs.phase[k] = 2 * math.Pi * fs.fft.Freq(k)
	}
	return fs, nil
}

// delayRange scans the whole delay tensor once for its extrema.
func delayRange(delay *tensor.RawTensor) (minTau, maxTau float64) {
	minTau = math.Inf(1)
	maxTau = math.Inf(-1)
	at := realReader(delay)
	n := delay.NumElements()
	for i := 0; i < n; i++ {
		v := at(i)
		if v < minTau {
			minTau = v
		}
		if v > maxTau {
			maxTau = v
		}
	}
	return minTau, maxTau
}

// eval returns the band-limited sample at fractional index tau of the lane
// rooted at dataBase. Indices outside [0, T-1] fill 0 like every other
// kernel.
func (fs *freqSampler) eval(dataBase int, tau float64) complex128 {
	if tau < 0 || tau > float64(fs.p.nTime-1) {
		return 0
	}

	spec, ok := fs.spectra[dataBase]
	if !ok {
		for k := range fs.lane {
			fs.lane[k] = 0
		}
		for k := 0; k < fs.p.nTime; k++ {
			fs.lane[k] = fs.p.dataAt(dataBase + k*fs.p.timeStride)
		}
		spec = fs.fft.Coefficients(nil, fs.lane)
		fs.spectra[dataBase] = spec
	}

	// Inverse transform evaluated at the fractional index: the per-bin
	// linear-phase ramp exp(+2πi·f_k·τ) realizes the delay exactly.
	var acc complex128
	for k, x := range spec {
		acc += x * cmplx.Exp(complex(0, fs.phase[k]*tau))
	}
	return acc / complex(float64(fs.nfft), 0)
}
