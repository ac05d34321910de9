// Copyright 2025 The Beamform Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package beamform provides the public API for pulse-echo image
// reconstruction: delay-and-sum, frequency-domain adjoint, eikonal-delay
// and Stolt f-k migration beamformers, plus retrospective transmit
// synthesis and the geometric apodization functions.
//
// Example:
//
//	backend := cpu.New()
//	chd, _ := beamform.NewChannelData(data, axes, fs, nil)
//	img, err := beamform.DAS(backend, chd, grid, rx, tx, seq, beamform.DASOpts{
//	    Method: sample.Cubic,
//	})
package beamform

import (
	"github.com/beamform-go/beamform/internal/beamform"
	"github.com/beamform-go/beamform/tensor"
)

// Geometry types.

// Vec3 is a 3D position or direction in meters.
type Vec3 = beamform.Vec3

// Aperture is an array of transducer elements with optional normals.
type Aperture = beamform.Aperture

// Grid is the image pixel domain, three coordinate arrays over (Z, X, Y).
type Grid = beamform.Grid

// SequenceKind distinguishes the transmit wavefront models.
type SequenceKind = beamform.SequenceKind

// Transmit wavefront models.
const (
	// FSA is full synthetic aperture: one transmit per physical element.
	FSA SequenceKind = beamform.FSA
	// VS is a virtual source: focused or diverging transmit modeled as a
	// point source.
	VS SequenceKind = beamform.VS
	// PW is a plane wave, modeled by direction only.
	PW SequenceKind = beamform.PW
)

// Sequence describes the transmit events of an acquisition.
type Sequence = beamform.Sequence

// ChannelData is an immutable acquired data cube with axis roles, sample
// rate and start times.
type ChannelData = beamform.ChannelData

// NewChannelData validates and assembles a ChannelData value.
func NewChannelData(data *tensor.RawTensor, axes tensor.Axes, fs float64, t0 *tensor.RawTensor) (ChannelData, error) {
	return beamform.NewChannelData(data, axes, fs, t0)
}

// Beamformers.

// DASOpts configures the delay-and-sum beamformer.
type DASOpts = beamform.DASOpts

// DAS forms an image by per-pixel round-trip delays and aperture
// summation. See internal/beamform for the delay model per sequence kind.
func DAS(b tensor.Backend, chd ChannelData, grid Grid, rxAp, txAp Aperture, seq Sequence, opts DASOpts) (*tensor.RawTensor, error) {
	return beamform.DAS(b, chd, grid, rxAp, txAp, seq, opts)
}

// AdjointOpts configures the frequency-domain beamformer.
type AdjointOpts = beamform.AdjointOpts

// Adjoint forms an image by applying the conjugate-transposed forward
// operator per temporal-frequency bin.
func Adjoint(b tensor.Backend, chd ChannelData, grid Grid, rxAp, txAp Aperture, seq Sequence, opts AdjointOpts) (*tensor.RawTensor, error) {
	return beamform.Adjoint(b, chd, grid, rxAp, txAp, seq, opts)
}

// Medium is a sampled sound-speed field over a uniform Cartesian grid.
type Medium = beamform.Medium

// TravelTimeSolver computes first-arrival travel times from a point
// source through a speed field, typically by fast marching.
type TravelTimeSolver = beamform.TravelTimeSolver

// EikonalOpts configures the heterogeneous-medium beamformer.
type EikonalOpts = beamform.EikonalOpts

// Eikonal beamforms full-synthetic-aperture data through a heterogeneous
// sound-speed field using externally solved travel-time maps.
func Eikonal(b tensor.Backend, chd ChannelData, grid Grid, rxAp, txAp Aperture, seq Sequence, md Medium, solver TravelTimeSolver, opts EikonalOpts) (*tensor.RawTensor, error) {
	return beamform.Eikonal(b, chd, grid, rxAp, txAp, seq, md, solver, opts)
}

// MigrateOpts configures the plane-wave f-k migration.
type MigrateOpts = beamform.MigrateOpts

// Migrate reconstructs plane-wave data by Stolt's frequency-wavenumber
// remapping. The returned grid is the image's native pixel lattice.
func Migrate(b tensor.Backend, chd ChannelData, rxAp Aperture, seq Sequence, opts MigrateOpts) (*tensor.RawTensor, Grid, error) {
	return beamform.Migrate(b, chd, rxAp, seq, opts)
}

// Transmit synthesis.

// FocusOpts configures retrospective transmit synthesis.
type FocusOpts = beamform.FocusOpts

// FocusTx synthesizes the transmit events of a target sequence from
// full-synthetic-aperture data.
func FocusTx(b tensor.Backend, chd ChannelData, seq Sequence, opts FocusOpts) (ChannelData, error) {
	return beamform.FocusTx(b, chd, seq, opts)
}

// RefocusOpts configures the encoded-transmit inversion.
type RefocusOpts = beamform.RefocusOpts

// Refocus decodes encoded-transmit data back toward elemental responses
// by regularized per-frequency inversion of the encoding matrix.
func Refocus(b tensor.Backend, chd ChannelData, seq Sequence, opts RefocusOpts) (ChannelData, error) {
	return beamform.Refocus(b, chd, seq, opts)
}

// Apodization functions. Each returns a (pixels, receive, transmit) mask
// with singleton axes wherever the weight is shared, ready for the
// beamformer option records.

// Scanline accepts transmits whose lateral focus matches the pixel.
func Scanline(b tensor.Backend, grid Grid, seq Sequence, txAp Aperture, tol float64) (*tensor.RawTensor, error) {
	return beamform.Scanline(b, grid, seq, txAp, tol)
}

// Multiline interpolates each pixel between its bracketing transmits.
func Multiline(b tensor.Backend, grid Grid, seq Sequence, txAp Aperture) (*tensor.RawTensor, error) {
	return beamform.Multiline(b, grid, seq, txAp)
}

// TranslatingAperture slides the active receive aperture with the
// transmit focus.
func TranslatingAperture(b tensor.Backend, rxAp Aperture, seq Sequence, txAp Aperture, tol float64) (*tensor.RawTensor, error) {
	return beamform.TranslatingAperture(b, rxAp, seq, txAp, tol)
}

// ApertureGrowth enforces a minimum f-number by accepting elements only
// below depth-proportional lateral offsets.
func ApertureGrowth(b tensor.Backend, grid Grid, rxAp Aperture, fnum, maxWidth float64) (*tensor.RawTensor, error) {
	return beamform.ApertureGrowth(b, grid, rxAp, fnum, maxWidth)
}

// AcceptanceAngle accepts elements within a view-angle cone of the
// element normal.
func AcceptanceAngle(b tensor.Backend, grid Grid, rxAp Aperture, maxAngle float64) (*tensor.RawTensor, error) {
	return beamform.AcceptanceAngle(b, grid, rxAp, maxAngle)
}
