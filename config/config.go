// Copyright 2025 The Beamform Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package config provides imaging-preset loading for the beamform module.
// A preset bundles the acquisition geometry, transmit sequence and
// reconstruction parameters into one YAML document, so pipelines can be
// described declaratively and reproduced.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/beamform-go/beamform/beamform"
)

// Config represents an imaging preset loaded from YAML.
type Config struct {
	// Probe describes the transducer array.
	Probe struct {
		// Elements is the element count of the linear array.
		Elements int `yaml:"elements"`

		// Pitch is the element spacing in meters.
		Pitch float64 `yaml:"pitch"`
	} `yaml:"probe"`

	// Sequence describes the transmit events.
	Sequence struct {
		// Kind is "fsa", "vs" or "pw".
		Kind string `yaml:"kind"`

		// AnglesDeg lists plane-wave steering angles in degrees.
		AnglesDeg []float64 `yaml:"anglesDeg"`

		// FocalDepth is the virtual-source depth in meters for "vs".
		FocalDepth float64 `yaml:"focalDepth"`

		// SoundSpeed is the beamforming sound speed in m/s.
		SoundSpeed float64 `yaml:"soundSpeed"`
	} `yaml:"sequence"`

	// Grid describes the image domain.
	Grid struct {
		// DepthMin and DepthMax bound the axial extent in meters.
		DepthMin float64 `yaml:"depthMin"`
		DepthMax float64 `yaml:"depthMax"`

		// PixelsZ and PixelsX are the sample counts per axis.
		PixelsZ int `yaml:"pixelsZ"`
		PixelsX int `yaml:"pixelsX"`
	} `yaml:"grid"`

	// Beamform holds reconstruction parameters.
	Beamform struct {
		// Method is the interpolation method name.
		Method string `yaml:"method"`

		// FNumber bounds the receive aperture growth.
		FNumber float64 `yaml:"fNumber"`

		// ModFreq is the demodulation carrier in Hz.
		ModFreq float64 `yaml:"modFreq"`

		// KeepRx and KeepTx retain the aperture axes.
		KeepRx bool `yaml:"keepRx"`
		KeepTx bool `yaml:"keepTx"`

		// ThresholdDB bounds the adjoint beamformer's bin selection.
		ThresholdDB float64 `yaml:"thresholdDB"`
	} `yaml:"beamform"`
}

// DefaultConfig returns a preset for a generic 128-element linear probe.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Probe.Elements = 128
	cfg.Probe.Pitch = 0.3e-3

	cfg.Sequence.Kind = "fsa"
	cfg.Sequence.SoundSpeed = 1540.0

	cfg.Grid.DepthMin = 0
	cfg.Grid.DepthMax = 40e-3
	cfg.Grid.PixelsZ = 512
	cfg.Grid.PixelsX = 128

	cfg.Beamform.Method = "cubic"
	cfg.Beamform.FNumber = 1.0

	return cfg
}

// LoadConfig loads a preset from a YAML file. If the file doesn't exist
// it returns the default preset.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig saves the preset to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// Validate rejects presets that cannot describe a usable acquisition.
func (cfg *Config) Validate() error {
	if cfg.Probe.Elements < 1 {
		return fmt.Errorf("config: probe needs at least one element, got %d", cfg.Probe.Elements)
	}
	if cfg.Probe.Pitch <= 0 {
		return fmt.Errorf("config: probe pitch %v must be > 0", cfg.Probe.Pitch)
	}
	if cfg.Sequence.SoundSpeed <= 0 {
		return fmt.Errorf("config: sound speed %v must be > 0", cfg.Sequence.SoundSpeed)
	}
	switch cfg.Sequence.Kind {
	case "fsa":
	case "vs":
		if cfg.Sequence.FocalDepth == 0 {
			return fmt.Errorf("config: virtual-source sequence needs a focal depth")
		}
	case "pw":
		if len(cfg.Sequence.AnglesDeg) == 0 {
			return fmt.Errorf("config: plane-wave sequence needs steering angles")
		}
	default:
		return fmt.Errorf("config: unknown sequence kind %q", cfg.Sequence.Kind)
	}
	if cfg.Grid.PixelsZ < 1 || cfg.Grid.PixelsX < 1 {
		return fmt.Errorf("config: grid needs at least one pixel per axis")
	}
	if cfg.Grid.DepthMax <= cfg.Grid.DepthMin {
		return fmt.Errorf("config: depth range [%v, %v] is empty", cfg.Grid.DepthMin, cfg.Grid.DepthMax)
	}
	return nil
}

// BuildAperture constructs the centered linear array the preset describes.
func (cfg *Config) BuildAperture() beamform.Aperture {
	n := cfg.Probe.Elements
	pos := make([]beamform.Vec3, n)
	x0 := -float64(n-1) / 2 * cfg.Probe.Pitch
	for i := range pos {
		pos[i] = beamform.Vec3{x0 + float64(i)*cfg.Probe.Pitch, 0, 0}
	}
	return beamform.Aperture{Pos: pos}
}

// BuildGrid constructs the image pixel grid spanning the aperture
// laterally and the configured depth range axially.
func (cfg *Config) BuildGrid() beamform.Grid {
	ap := cfg.BuildAperture()
	zs := make([]float64, cfg.Grid.PixelsZ)
	dz := (cfg.Grid.DepthMax - cfg.Grid.DepthMin) / float64(maxInt(cfg.Grid.PixelsZ-1, 1))
	for i := range zs {
		zs[i] = cfg.Grid.DepthMin + float64(i)*dz
	}
	xs := make([]float64, cfg.Grid.PixelsX)
	span := ap.Pos[len(ap.Pos)-1][0] - ap.Pos[0][0]
	dx := span / float64(maxInt(cfg.Grid.PixelsX-1, 1))
	for i := range xs {
		xs[i] = ap.Pos[0][0] + float64(i)*dx
	}
	return beamform.Grid{X: xs, Y: []float64{0}, Z: zs}
}

// BuildSequence constructs the transmit sequence the preset describes.
func (cfg *Config) BuildSequence() (beamform.Sequence, error) {
	seq := beamform.Sequence{C0: cfg.Sequence.SoundSpeed}
	switch cfg.Sequence.Kind {
	case "fsa":
		seq.Kind = beamform.FSA
	case "vs":
		seq.Kind = beamform.VS
		ap := cfg.BuildAperture()
		seq.Foci = make([]beamform.Vec3, len(ap.Pos))
		seq.Dirs = make([]beamform.Vec3, len(ap.Pos))
		for i, p := range ap.Pos {
			seq.Foci[i] = beamform.Vec3{p[0], p[1], cfg.Sequence.FocalDepth}
			seq.Dirs[i] = beamform.Vec3{0, 0, 1}
		}
	case "pw":
		seq.Kind = beamform.PW
		seq.Dirs = make([]beamform.Vec3, len(cfg.Sequence.AnglesDeg))
		for i, deg := range cfg.Sequence.AnglesDeg {
			rad := deg * math.Pi / 180
			seq.Dirs[i] = beamform.Vec3{math.Sin(rad), 0, math.Cos(rad)}
		}
	default:
		return beamform.Sequence{}, fmt.Errorf("config: unknown sequence kind %q", cfg.Sequence.Kind)
	}
	return seq, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
