package cpu

import (
	"math"
	"testing"

	"github.com/beamform-go/beamform/internal/tensor"
)

func TestFFT_Impulse(t *testing.T) {
	b := New()
	x := rawF64(t, tensor.Shape{4}, []float64{1, 0, 0, 0})

	got := b.FFT(x, 0, 0)
	if got.DType() != tensor.Complex128 {
		t.Fatalf("FFT dtype = %s, want Complex128", got.DType())
	}
	want := []complex128{1, 1, 1, 1}
	if !complex128SliceClose(got.AsComplex128(), want, 1e-12) {
		t.Errorf("FFT(impulse) = %v, want %v", got.AsComplex128(), want)
	}
}

func TestFFT_SingleTone(t *testing.T) {
	b := New()
	const n = 8
	data := make([]float64, n)
	for i := range data {
		data[i] = math.Cos(2 * math.Pi * float64(i) / n)
	}
	x := rawF64(t, tensor.Shape{n}, data)

	got := b.FFT(x, 0, 0).AsComplex128()
	// A unit cosine at one cycle per record puts n/2 in bins 1 and n-1.
	for k := 0; k < n; k++ {
		want := complex128(0)
		if k == 1 || k == n-1 {
			want = complex(n/2, 0)
		}
		if math.Abs(real(got[k])-real(want)) > 1e-12 || math.Abs(imag(got[k])) > 1e-12 {
			t.Errorf("bin %d = %v, want %v", k, got[k], want)
		}
	}
}

func TestFFT_Roundtrip(t *testing.T) {
	b := New()
	data := []complex128{1 + 2i, -0.5, 3i, 2 - 1i, 0.25 + 0.75i}
	x := rawC128(t, tensor.Shape{5}, data)

	back := b.IFFT(b.FFT(x, 0, 0), 0, 0)
	if !complex128SliceClose(back.AsComplex128(), data, 1e-12) {
		t.Errorf("IFFT(FFT(x)) = %v, want %v", back.AsComplex128(), data)
	}
}

func TestFFT_ZeroPadding(t *testing.T) {
	b := New()
	x := rawF64(t, tensor.Shape{3}, []float64{1, 1, 1})

	got := b.FFT(x, 0, 8)
	if !got.Shape().Equal(tensor.Shape{8}) {
		t.Fatalf("FFT shape = %v, want [8]", got.Shape())
	}
	// Bin 0 is the plain sum regardless of padding.
	if math.Abs(real(got.AsComplex128()[0])-3) > 1e-12 {
		t.Errorf("FFT DC bin = %v, want 3", got.AsComplex128()[0])
	}
}

func TestFFT_AlongInnerAxis(t *testing.T) {
	b := New()
	// Two rows, transform each independently along axis 1.
	x := rawF64(t, tensor.Shape{2, 4}, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
	})

	got := b.FFT(x, 1, 0).AsComplex128()
	// Row 0 is an impulse at 0: flat spectrum.
	for k := 0; k < 4; k++ {
		if math.Abs(real(got[k])-1) > 1e-12 || math.Abs(imag(got[k])) > 1e-12 {
			t.Errorf("row 0 bin %d = %v, want 1", k, got[k])
		}
	}
	// Row 1 is a delayed impulse: bins carry exp(-2*pi*i*k/4).
	for k := 0; k < 4; k++ {
		s, c := math.Sincos(-2 * math.Pi * float64(k) / 4)
		want := complex(c, s)
		if math.Abs(real(got[4+k])-real(want)) > 1e-12 || math.Abs(imag(got[4+k])-imag(want)) > 1e-12 {
			t.Errorf("row 1 bin %d = %v, want %v", k, got[4+k], want)
		}
	}
}
