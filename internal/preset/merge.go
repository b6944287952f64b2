// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package preset

import "fmt"

// Overrides holds explicitly supplied values. A nil field means "use the preset".
type Overrides struct {
	Resolution *int     `json:"resolution,omitempty"`
	Steps      *int     `json:"steps,omitempty"`
	LipWeight  *float64 `json:"lip_weight,omitempty"`
	CFGScale   *float64 `json:"cfg_scale,omitempty"`
}

// Params are the resolved generation parameters
type Params struct {
	Resolution int     `json:"resolution"`
	Steps      int     `json:"steps"`
	LipWeight  float64 `json:"lip_weight"`
	CFGScale   float64 `json:"cfg_scale"`
}

// Merge applies o on top of p
func Merge(p Preset, o Overrides) Params {
	out := Params{
		Resolution: p.Resolution,
		Steps:      p.Steps,
		LipWeight:  p.LipWeight,
		CFGScale:   p.CFGScale,
	}
	if o.Resolution != nil {
		out.Resolution = *o.Resolution
	}
	if o.Steps != nil {
		out.Steps = *o.Steps
	}
	if o.LipWeight != nil {
		out.LipWeight = *o.LipWeight
	}
	if o.CFGScale != nil {
		out.CFGScale = *o.CFGScale
	}
	return out
}

// Validate checks the parameters against what the model accepts
func (p Params) Validate() error {
	supported := false
	for _, r := range SupportedResolutions {
		if p.Resolution == r {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("%w: resolution %d not in %v", ErrInvalidParams, p.Resolution, SupportedResolutions)
	}
	if p.Steps <= 0 {
		return fmt.Errorf("%w: steps must be positive, got %d", ErrInvalidParams, p.Steps)
	}
	if p.LipWeight <= 0 {
		return fmt.Errorf("%w: lip weight must be positive, got %g", ErrInvalidParams, p.LipWeight)
	}
	if p.CFGScale <= 0 {
		return fmt.Errorf("%w: cfg scale must be positive, got %g", ErrInvalidParams, p.CFGScale)
	}
	return nil
}

// Int returns a pointer to v, for building Overrides
func Int(v int) *int { return &v }

// Float returns a pointer to v, for building Overrides
func Float(v float64) *float64 { return &v }
