// Copyright 2025 The Beamform Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/beamform-go/beamform/internal/backend/cpu"
	"github.com/beamform-go/beamform/tensor"
)

// Backend represents the CPU backend implementation.
//
// The CPU backend provides pure Go implementations of every tensor
// operation the reconstruction pipeline needs, including the spectral
// transforms.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
//
// Example:
//
//	import (
//	    "github.com/beamform-go/beamform/backend/cpu"
//	    "github.com/beamform-go/beamform/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    x := tensor.Zeros[float64](tensor.Shape{2, 3}, backend)
//	}
func New() *Backend {
	return internalcpu.New()
}
