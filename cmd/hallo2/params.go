// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package main

import (
	"github.com/spf13/cobra"

	"github.com/ZSC714725/hallo2runner/internal/pipeline"
	"github.com/ZSC714725/hallo2runner/internal/preset"
)

// paramFlags are the generation parameters shared by generate and config
type paramFlags struct {
	image  string
	audio  string
	output string

	quality         string
	resolution      int
	steps           int
	lipWeight       float64
	cfgScale        float64
	fps             int
	poseWeight      float64
	faceWeight      float64
	faceExpandRatio float64
}

func (p *paramFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&p.image, "image", "", "Avatar image (png/jpg)")
	f.StringVar(&p.audio, "audio", "", "Driving audio (wav, mp3, m4a, aac, flac, ogg, opus)")
	f.StringVar(&p.output, "output", "", "Output video path")
	f.StringVar(&p.quality, "quality", "", "Quality preset: balanced, high, ultra (default from config)")
	f.IntVar(&p.resolution, "resolution", 0, "Override resolution (512, 768, 1024)")
	f.IntVar(&p.steps, "steps", 0, "Override diffusion steps")
	f.Float64Var(&p.lipWeight, "lip-weight", 0, "Override lip-sync weight")
	f.Float64Var(&p.cfgScale, "cfg-scale", 0, "Override classifier-free guidance scale")
	f.IntVar(&p.fps, "fps", 0, "Output frame rate (default from config)")
	f.Float64Var(&p.poseWeight, "pose-weight", 1.0, "Head pose weight")
	f.Float64Var(&p.faceWeight, "face-weight", 1.0, "Face expression weight")
	f.Float64Var(&p.faceExpandRatio, "face-expand-ratio", 1.2, "Face crop expansion ratio")

	cmd.MarkFlagRequired("image")
	cmd.MarkFlagRequired("audio")
	cmd.MarkFlagRequired("output")
}

// request builds a pipeline request; an override counts only when its flag was set
func (p *paramFlags) request(cmd *cobra.Command) pipeline.Request {
	changed := cmd.Flags().Changed

	req := pipeline.Request{
		ImagePath:  p.image,
		AudioPath:  p.audio,
		OutputPath: p.output,
		Preset:     p.quality,
	}
	if changed("fps") {
		req.FPS = preset.Int(p.fps)
	}
	if changed("pose-weight") {
		req.PoseWeight = preset.Float(p.poseWeight)
	}
	if changed("face-weight") {
		req.FaceWeight = preset.Float(p.faceWeight)
	}
	if changed("face-expand-ratio") {
		req.FaceExpandRatio = preset.Float(p.faceExpandRatio)
	}
	if changed("resolution") {
		req.Overrides.Resolution = preset.Int(p.resolution)
	}
	if changed("steps") {
		req.Overrides.Steps = preset.Int(p.steps)
	}
	if changed("lip-weight") {
		req.Overrides.LipWeight = preset.Float(p.lipWeight)
	}
	if changed("cfg-scale") {
		req.Overrides.CFGScale = preset.Float(p.cfgScale)
	}
	return req
}
