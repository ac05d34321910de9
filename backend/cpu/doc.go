// Copyright 2025 The Beamform Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for tensor operations.
//
// # Overview
//
// This package implements a CPU backend with:
//   - Pure Go implementation (no CGO)
//   - Float32, Float64, Complex64, Complex128 and Bool support
//   - NumPy-compatible broadcasting
//   - FFT/IFFT along any axis
//
// # Basic Usage
//
//	import (
//	    "github.com/beamform-go/beamform/backend/cpu"
//	    "github.com/beamform-go/beamform/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    x := tensor.Zeros[float64](tensor.Shape{2048, 128}, backend)
//	    y := tensor.Ones[float64](tensor.Shape{2048, 128}, backend)
//	    z := backend.Add(x.Raw(), y.Raw())
//	    _ = z
//	}
package cpu
