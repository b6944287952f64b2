// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具
//
// Package jobconfig builds and persists the configuration file consumed by the
// Hallo2 inference script.

package jobconfig

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ZSC714725/hallo2runner/internal/preset"
)

// Input is everything the caller decides about one generation job
type Input struct {
	ImagePath       string
	AudioPath       string
	OutputPath      string
	Params          preset.Params
	FPS             int
	PoseWeight      float64
	FaceWeight      float64
	FaceExpandRatio float64
}

// DefaultInput 返回非预设参数的默认值
func DefaultInput() Input {
	return Input{
		FPS:             25,
		PoseWeight:      1.0,
		FaceWeight:      1.0,
		FaceExpandRatio: 1.2,
	}
}

// Validate checks the frame rate and control weights
func (in Input) Validate() error {
	if in.FPS <= 0 {
		return fmt.Errorf("%w: fps must be positive, got %d", ErrInvalidInput, in.FPS)
	}
	if in.PoseWeight <= 0 || in.FaceWeight <= 0 || in.FaceExpandRatio <= 0 {
		return fmt.Errorf("%w: pose/face weights and face expand ratio must be positive", ErrInvalidInput)
	}
	return nil
}

// Assets are the pretrained weight locations
type Assets struct {
	AudioCkptDir   string
	BaseModel      string
	MotionModule   string
	FaceAnalysis   string
	Wav2Vec        string
	AudioSeparator string
	VAE            string
	CacheDir       string
}

// AssetsFromRoot lays the weights out the way the hallo2 model download does
func AssetsFromRoot(root, cacheDir string) Assets {
	return Assets{
		AudioCkptDir:   filepath.Join(root, "hallo2"),
		BaseModel:      filepath.Join(root, "stable-diffusion-v1-5"),
		MotionModule:   filepath.Join(root, "motion_module", "mm_sd_v15_v2.ckpt"),
		FaceAnalysis:   filepath.Join(root, "face_analysis"),
		Wav2Vec:        filepath.Join(root, "wav2vec", "wav2vec2-base-960h"),
		AudioSeparator: filepath.Join(root, "audio_separator", "Kim_Vocal_2.onnx"),
		VAE:            filepath.Join(root, "sd-vae-ft-mse"),
		CacheDir:       cacheDir,
	}
}

// Paths lists every asset path, used by doctor checks
func (a Assets) Paths() map[string]string {
	return map[string]string{
		"audio_ckpt_dir":     a.AudioCkptDir,
		"base_model_path":    a.BaseModel,
		"motion_module_path": a.MotionModule,
		"face_analysis":      a.FaceAnalysis,
		"wav2vec":            a.Wav2Vec,
		"audio_separator":    a.AudioSeparator,
		"vae":                a.VAE,
	}
}

// Build assembles the job config. Every path is made absolute because the
// inference script runs from its own repository directory.
func Build(in Input, assets Assets) (*Config, error) {
	if in.ImagePath == "" || in.AudioPath == "" || in.OutputPath == "" {
		return nil, fmt.Errorf("%w: image, audio and output paths are required", ErrInvalidInput)
	}
	if err := in.Params.Validate(); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	r := resolver{}
	cfg := &Config{
		SourceImage:  r.abs(in.ImagePath),
		DrivingAudio: r.abs(in.AudioPath),
		WeightDType:  weightDType,
		Data: Data{
			NMotionFrames: nMotionFrames,
			NSampleFrames: nSampleFrames,
			SourceImage:   ImageSize{Width: in.Params.Resolution, Height: in.Params.Resolution},
			DrivingAudio:  AudioFormat{SampleRate: SampleRate},
			ExportVideo:   ExportVideo{FPS: in.FPS},
		},
		InferenceSteps:       in.Params.Steps,
		CFGScale:             Float(in.Params.CFGScale),
		UseMask:              true,
		MaskRate:             maskRate,
		UseCut:               true,
		AudioCkptDir:         r.abs(assets.AudioCkptDir),
		SavePath:             r.abs(filepath.Dir(in.OutputPath)),
		CachePath:            r.abs(assets.CacheDir),
		BaseModelPath:        r.abs(assets.BaseModel),
		MotionModulePath:     r.abs(assets.MotionModule),
		FaceAnalysis:         ModelPath{ModelPath: r.abs(assets.FaceAnalysis)},
		Wav2Vec:              Wav2Vec{ModelPath: r.abs(assets.Wav2Vec), Features: "all"},
		AudioSeparator:       ModelPath{ModelPath: r.abs(assets.AudioSeparator)},
		VAE:                  ModelPath{ModelPath: r.abs(assets.VAE)},
		FaceExpandRatio:      Float(in.FaceExpandRatio),
		PoseWeight:           Float(in.PoseWeight),
		FaceWeight:           Float(in.FaceWeight),
		LipWeight:            Float(in.Params.LipWeight),
		UNetAdditionalKwargs: unetKwargs(),
		EnableZeroSNR:        true,
		NoiseSchedulerKwargs: noiseScheduler(),
		Sampler:              sampler,
	}
	if r.err != nil {
		return nil, r.err
	}
	return cfg, nil
}

// ArtifactPath is where the inference script leaves the merged video:
// save_path/<image stem>/merge_video.mp4
func (c *Config) ArtifactPath() string {
	base := filepath.Base(c.SourceImage)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(c.SavePath, stem, ArtifactName)
}

// Params returns the user-facing parameters carried by c
func (c *Config) Params() preset.Params {
	return preset.Params{
		Resolution: c.Data.SourceImage.Width,
		Steps:      c.InferenceSteps,
		LipWeight:  float64(c.LipWeight),
		CFGScale:   float64(c.CFGScale),
	}
}

// resolver keeps the first error so Build can resolve paths inline
type resolver struct {
	err error
}

func (r *resolver) abs(p string) string {
	if r.err != nil || p == "" {
		return p
	}
	a, err := filepath.Abs(p)
	if err != nil {
		r.err = fmt.Errorf("%w: resolve %s: %v", ErrInvalidInput, p, err)
		return p
	}
	return a
}
