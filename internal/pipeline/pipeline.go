// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具
//
// Package pipeline runs one talking-head generation job end to end:
// audio normalization, job config, inference subprocess and artifact
// relocation.

package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/ZSC714725/hallo2runner/internal/audio"
	"github.com/ZSC714725/hallo2runner/internal/inference"
	"github.com/ZSC714725/hallo2runner/internal/jobconfig"
	"github.com/ZSC714725/hallo2runner/internal/logger"
	"github.com/ZSC714725/hallo2runner/internal/preset"
	"github.com/ZSC714725/hallo2runner/internal/publish"
)

const (
	normalizedAudio = "audio.wav"
	jobConfigFile   = "hallo2_config.yaml"
)

// Request describes one generation job
type Request struct {
	ImagePath  string           `json:"image"`
	AudioPath  string           `json:"audio"`
	OutputPath string           `json:"output"`
	Preset     string           `json:"quality,omitempty"`
	Overrides  preset.Overrides `json:"overrides"`
	// nil 表示使用默认值；显式给出的非正数会在校验阶段被拒绝
	FPS             *int     `json:"fps,omitempty"`
	PoseWeight      *float64 `json:"pose_weight,omitempty"`
	FaceWeight      *float64 `json:"face_weight,omitempty"`
	FaceExpandRatio *float64 `json:"face_expand_ratio,omitempty"`
	Publish         bool     `json:"publish,omitempty"`
}

// Result summarizes a successful job
type Result struct {
	JobID        string        `json:"job_id"`
	OutputPath   string        `json:"output_path"`
	Size         int64         `json:"size"`
	Params       preset.Params `json:"params"`
	Duration     time.Duration `json:"duration"`
	PeakMemory   uint64        `json:"peak_memory"`
	PublishedURL string        `json:"published_url,omitempty"`
}

// Normalizer converts audio into the model's WAV format
type Normalizer interface {
	Normalize(ctx context.Context, in, out string) error
}

// Runner executes the inference script
type Runner interface {
	Run(ctx context.Context, job inference.Job) (*inference.Report, error)
}

// Config wires the pipeline's collaborators
type Config struct {
	Normalizer Normalizer
	Runner     Runner
	// Scripts are inference script candidates, first existing one wins
	Scripts []string
	Assets  jobconfig.Assets
	// Publisher is optional
	Publisher publish.Publisher
	// StrictPresets rejects unknown preset names instead of falling back
	StrictPresets bool
	// TempRoot is the parent of per-job temp dirs, os.TempDir() when empty
	TempRoot string
	// DefaultPreset is used when a request names none
	DefaultPreset string
	DefaultFPS    int
	Logger        logger.Logger
}

// Hooks observe a single run
type Hooks struct {
	// JobID is generated when empty
	JobID   string
	Output  io.Writer
	Parser  inference.Parser
	OnStage func(stage Stage)
	OnStart func(pid int)
}

// Pipeline is safe to reuse across sequential runs
type Pipeline struct {
	normalizer    Normalizer
	runner        Runner
	scripts       []string
	assets        jobconfig.Assets
	publisher     publish.Publisher
	strict        bool
	tempRoot      string
	defaultPreset string
	defaultFPS    int
	logger        logger.Logger
}

// New creates a pipeline
func New(config Config) *Pipeline {
	p := &Pipeline{
		normalizer:    config.Normalizer,
		runner:        config.Runner,
		scripts:       config.Scripts,
		assets:        config.Assets,
		publisher:     config.Publisher,
		strict:        config.StrictPresets,
		tempRoot:      config.TempRoot,
		defaultPreset: config.DefaultPreset,
		defaultFPS:    config.DefaultFPS,
		logger:        config.Logger,
	}
	if p.defaultPreset == "" {
		p.defaultPreset = preset.Default
	}
	if p.defaultFPS <= 0 {
		p.defaultFPS = jobconfig.DefaultInput().FPS
	}
	if p.logger == nil {
		p.logger = logger.Nop()
	}
	return p
}

// ResolveParams applies the preset and overrides of req
func (p *Pipeline) ResolveParams(req Request) (preset.Params, error) {
	name := req.Preset
	if name == "" {
		name = p.defaultPreset
	}
	base, err := preset.Lookup(name)
	if err != nil {
		if p.strict {
			return preset.Params{}, err
		}
		p.logger.Warn("unknown quality preset %q, using %s", name, base.Name)
	}
	params := preset.Merge(base, req.Overrides)
	if err := params.Validate(); err != nil {
		return preset.Params{}, err
	}
	return params, nil
}

// Input turns req into a job config input, filling unset values with
// defaults. Explicit values are kept as given so Validate can reject them.
func (p *Pipeline) Input(req Request, params preset.Params) jobconfig.Input {
	in := jobconfig.DefaultInput()
	in.ImagePath = req.ImagePath
	in.AudioPath = req.AudioPath
	in.OutputPath = req.OutputPath
	in.Params = params
	in.FPS = p.defaultFPS
	if req.FPS != nil {
		in.FPS = *req.FPS
	}
	if req.PoseWeight != nil {
		in.PoseWeight = *req.PoseWeight
	}
	if req.FaceWeight != nil {
		in.FaceWeight = *req.FaceWeight
	}
	if req.FaceExpandRatio != nil {
		in.FaceExpandRatio = *req.FaceExpandRatio
	}
	return in
}

// Run executes every stage in order; the first failure stops the run and is
// returned as a *StageError. The per-job temp dir is removed on every path.
func (p *Pipeline) Run(ctx context.Context, req Request, hooks Hooks) (*Result, error) {
	start := time.Now()
	jobID := hooks.JobID
	if jobID == "" {
		jobID = shortuuid.New()
	}
	log := p.logger.With(jobID)
	stage := func(s Stage) {
		log.Debug("stage %s", s)
		if hooks.OnStage != nil {
			hooks.OnStage(s)
		}
	}

	// 校验输入
	stage(StageValidate)
	if err := checkInputs(req); err != nil {
		return nil, fail(StageValidate, err)
	}
	params, err := p.ResolveParams(req)
	if err != nil {
		return nil, fail(StageValidate, err)
	}
	if err := p.Input(req, params).Validate(); err != nil {
		return nil, fail(StageValidate, err)
	}
	output, err := filepath.Abs(req.OutputPath)
	if err != nil {
		return nil, fail(StageValidate, fmt.Errorf("%w: output %s: %v", ErrInvalidRequest, req.OutputPath, err))
	}

	log.Info("image: %s", req.ImagePath)
	log.Info("audio: %s", req.AudioPath)
	log.Info("output: %s", output)
	log.Info("settings: %dx%d, %d steps, lip_weight=%g, cfg_scale=%g",
		params.Resolution, params.Resolution, params.Steps, params.LipWeight, params.CFGScale)

	stage(StageClassify)
	format, err := audio.Classify(req.AudioPath)
	if err != nil {
		return nil, fail(StageClassify, err)
	}

	stage(StagePrepare)
	tempDir, err := os.MkdirTemp(p.tempRoot, "hallo2-"+jobID+"-*")
	if err != nil {
		return nil, fail(StagePrepare, fmt.Errorf("create temp dir: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			log.Warn("remove temp dir %s: %v", tempDir, err)
		}
	}()
	log.Debug("temp dir: %s", tempDir)

	wavPath := req.AudioPath
	if format == audio.FormatConvertible {
		stage(StageNormalize)
		wavPath = filepath.Join(tempDir, normalizedAudio)
		if err := p.normalizer.Normalize(ctx, req.AudioPath, wavPath); err != nil {
			return nil, fail(StageNormalize, err)
		}
	} else {
		log.Info("using WAV audio as is")
	}

	stage(StageConfig)
	in := p.Input(req, params)
	in.AudioPath = wavPath
	in.OutputPath = output
	cfg, err := jobconfig.Build(in, p.assets)
	if err != nil {
		return nil, fail(StageConfig, err)
	}
	configPath := filepath.Join(tempDir, jobConfigFile)
	if err := jobconfig.Write(cfg, configPath); err != nil {
		return nil, fail(StageConfig, err)
	}

	stage(StageLocate)
	script, err := inference.Locate(p.scripts)
	if err != nil {
		return nil, fail(StageLocate, err)
	}

	stage(StageInference)
	report, err := p.runner.Run(ctx, inference.Job{
		Script:     script,
		ConfigPath: configPath,
		Output:     hooks.Output,
		Parser:     hooks.Parser,
		OnStart:    hooks.OnStart,
	})
	if err != nil {
		return nil, fail(StageInference, err)
	}

	stage(StageArtifact)
	artifact := cfg.ArtifactPath()
	if info, err := os.Stat(artifact); err != nil || !info.Mode().IsRegular() {
		return nil, fail(StageArtifact, fmt.Errorf("%w: expected %s", ErrArtifactMissing, artifact))
	}
	log.Info("found generated video: %s", artifact)

	stage(StageRelocate)
	if err := move(artifact, output); err != nil {
		return nil, fail(StageRelocate, err)
	}
	info, err := os.Stat(output)
	if err != nil {
		return nil, fail(StageRelocate, err)
	}

	result := &Result{
		JobID:      jobID,
		OutputPath: output,
		Size:       info.Size(),
		Params:     params,
		PeakMemory: report.PeakMemory,
	}

	if req.Publish {
		stage(StagePublish)
		if p.publisher == nil {
			return nil, fail(StagePublish, fmt.Errorf("%w: publish requested but no target configured", ErrInvalidRequest))
		}
		url, err := p.publisher.Publish(ctx, output)
		if err != nil {
			return nil, fail(StagePublish, err)
		}
		result.PublishedURL = url
	}

	result.Duration = time.Since(start)
	log.Info("video generation complete: %s (%.2f MB) in %s",
		output, float64(result.Size)/(1024*1024), result.Duration.Round(time.Second))
	return result, nil
}

func checkInputs(req Request) error {
	if req.ImagePath == "" || req.AudioPath == "" || req.OutputPath == "" {
		return fmt.Errorf("%w: image, audio and output are required", ErrInvalidRequest)
	}
	for _, path := range []string{req.ImagePath, req.AudioPath} {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
	}
	return nil
}
