package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// The backend is an explicit parameter everywhere: the sampling kernel and
// the beamformers never infer the execution target from the input arrays.
//
// Implementations:
//   - CPU: Pure Go (internal/backend/cpu)
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Scalar operations (element-wise with scalar)
	MulScalar(x *RawTensor, scalar any) *RawTensor // multiply by scalar
	AddScalar(x *RawTensor, scalar any) *RawTensor // add scalar

	// Complex-valued math (element-wise)
	Conj(x *RawTensor) *RawTensor   // complex conjugate
	Abs(x *RawTensor) *RawTensor    // magnitude, complex -> real
	Phasor(x *RawTensor) *RawTensor // exp(i*x) of a real tensor -> complex
	Real(x *RawTensor) *RawTensor   // real part, complex -> real
	Imag(x *RawTensor) *RawTensor   // imaginary part, complex -> real

	// Reduction operations
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor // sum along dimension
	MaxAbs(x *RawTensor) float64                           // global magnitude maximum

	// Manipulation operations
	Cat(tensors []*RawTensor, dim int) *RawTensor          // concatenate along dimension
	Narrow(x *RawTensor, dim, start, length int) *RawTensor // contiguous slice along dimension
	Transpose(t *RawTensor, axes ...int) *RawTensor
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Expand(x *RawTensor, shape Shape) *RawTensor // broadcast to shape
	Unsqueeze(x *RawTensor, dim int) *RawTensor  // add dimension of size 1
	Squeeze(x *RawTensor, dim int) *RawTensor    // remove dimension of size 1

	// Type conversion
	Cast(x *RawTensor, dtype DataType) *RawTensor

	// Spectral operations along one axis. n is the transform length; the
	// lane is zero padded or truncated to it. n <= 0 means the axis length.
	FFT(x *RawTensor, dim, n int) *RawTensor
	IFFT(x *RawTensor, dim, n int) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
