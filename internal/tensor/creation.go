package tensor

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[complex128](Shape{3, 4}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var dummy T
	dtype := inferDataType(dummy)

	raw, err := NewRaw(shape, dtype, b.Device())
	if err != nil {
		panic(err) // Shape validation should prevent this
	}

	// Data is already zero-initialized by make()
	return New[T, B](raw, b)
}

// Ones creates a tensor filled with ones.
//
// Example:
//
//	t := tensor.Ones[float64](Shape{2, 3}, backend)
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var dummy T
	var one any
	switch any(dummy).(type) {
	case float32:
		one = float32(1)
	case float64:
		one = float64(1)
	case complex64:
		one = complex64(1)
	case complex128:
		one = complex128(1)
	case bool:
		one = true
	}
	return Full[T, B](Shape(shape), one.(T), b)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	t := tensor.Full[float64](Shape{3, 3}, 1540.0, backend)
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Arange creates a 1D tensor with values start, start+step, ... below end.
// Only works with real float types.
//
// Example:
//
//	t := tensor.Arange[float64](0, 10, 1, backend) // [0, 1, 2, ..., 9]
func Arange[T DType, B Backend](start, end, step float64, b B) *Tensor[T, B] {
	if step <= 0 {
		panic("Arange: step must be > 0")
	}
	n := 0
	for v := start; v < end; v += step {
		n++
	}
	if n == 0 {
		panic("Arange: empty range")
	}

	t := Zeros[T, B](Shape{n}, b)
	data := t.Data()
	switch any(data).(type) {
	case []float32:
		dataF32 := any(data).([]float32)
		for i := range dataF32 {
			dataF32[i] = float32(start + float64(i)*step)
		}
	case []float64:
		dataF64 := any(data).([]float64)
		for i := range dataF64 {
			dataF64[i] = start + float64(i)*step
		}
	default:
		panic("Arange only supports float32 and float64 types")
	}
	return t
}

// Scalar wraps a single value into a 0-D tensor. Broadcastable start times
// and modulation frequencies enter the kernel this way.
func Scalar[T DType, B Backend](value T, b B) *Tensor[T, B] {
	return Full[T, B](Shape{}, value, b)
}
