// Copyright 2025 The Beamform Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor API of the beamform module.
//
// The package defines the core types shared by every reconstruction
// component:
//   - Tensor[T, B]: high-level generic tensor with type safety
//   - RawTensor: low-level dtype-erased tensor for advanced use cases
//   - Backend: interface for device-specific compute implementations
//   - Axes: explicit axis-role bookkeeping for channel-data cubes
//   - Shape, DataType, Device: core type definitions
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float64](tensor.Shape{2048, 128}, backend)
//	y := tensor.Ones[float64](tensor.Shape{2048, 128}, backend)
//	z := backend.Add(x.Raw(), y.Raw())
package tensor
