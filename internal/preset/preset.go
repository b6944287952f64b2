// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具
//
// Package preset resolves named quality presets and merges explicit overrides.

package preset

import (
	"fmt"
	"strings"
)

// Default is used for an empty preset name and as the fallback for unknown ones
const Default = "balanced"

// Preset 质量预设
type Preset struct {
	Name       string  `json:"name" yaml:"name"`
	Resolution int     `json:"resolution" yaml:"resolution"`
	Steps      int     `json:"steps" yaml:"steps"`
	LipWeight  float64 `json:"lip_weight" yaml:"lip_weight"`
	CFGScale   float64 `json:"cfg_scale" yaml:"cfg_scale"`
}

// 768 is safer than 1024 for stability, so ultra only raises steps and cfg.
var table = []Preset{
	{Name: "balanced", Resolution: 512, Steps: 40, LipWeight: 1.0, CFGScale: 3.5},
	{Name: "high", Resolution: 768, Steps: 50, LipWeight: 1.1, CFGScale: 3.8},
	{Name: "ultra", Resolution: 768, Steps: 60, LipWeight: 1.0, CFGScale: 4.5},
}

// SupportedResolutions are the square pixel sizes the model accepts
var SupportedResolutions = []int{512, 768, 1024}

// Lookup returns the preset for name. An unknown name yields the default
// preset together with ErrUnknownPreset; callers choose whether to fail.
func Lookup(name string) (Preset, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = Default
	}
	for _, p := range table {
		if p.Name == key {
			return p, nil
		}
	}
	return byName(Default), fmt.Errorf("%w: %q (known: %s)", ErrUnknownPreset, name, strings.Join(Names(), ", "))
}

// All returns a copy of the preset table in order
func All() []Preset {
	out := make([]Preset, len(table))
	copy(out, table)
	return out
}

// Names returns the supported preset names in table order
func Names() []string {
	names := make([]string, 0, len(table))
	for _, p := range table {
		names = append(names, p.Name)
	}
	return names
}

func byName(name string) Preset {
	for _, p := range table {
		if p.Name == name {
			return p
		}
	}
	panic("preset: missing built-in preset " + name)
}
