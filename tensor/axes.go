// Copyright 2025 The Beamform Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/beamform-go/beamform/internal/tensor"
)

// AxisRole labels the role a data axis plays in a channel-data cube.
type AxisRole = tensor.AxisRole

// Axis role constants. Channel data carries exactly one Time, Receive and
// Transmit axis; any further axes are Free.
const (
	Time     AxisRole = tensor.Time
	Receive  AxisRole = tensor.Receive
	Transmit AxisRole = tensor.Transmit
	Free     AxisRole = tensor.Free
)

// Axes is an immutable axis-role map carried alongside a tensor. Permute
// and reshape operations return new maps rather than mutating in place.
type Axes = tensor.Axes

// NewAxes validates and builds an axis-role map.
//
// Example:
//
//	axes, err := tensor.NewAxes(tensor.Time, tensor.Receive, tensor.Transmit)
func NewAxes(roles ...AxisRole) (Axes, error) {
	return tensor.NewAxes(roles...)
}
