// Copyright 2025 The Beamform Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/beamform-go/beamform/internal/tensor"

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// The backend is an explicit parameter everywhere: the sampling kernel
// and the beamformers never infer the execution target from the input
// arrays.
//
// Implementations:
//   - backend/cpu: pure Go
//
// Example:
//
//	import (
//	    "github.com/beamform-go/beamform/backend/cpu"
//	    "github.com/beamform-go/beamform/tensor"
//	)
//
//	backend := cpu.New()
//	x := tensor.Zeros[float64](tensor.Shape{2, 3}, backend)
//	y := tensor.Ones[float64](tensor.Shape{2, 3}, backend)
//	z := backend.Add(x.Raw(), y.Raw())
type Backend = tensor.Backend
