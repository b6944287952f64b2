// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具
//
// Package inference locates and runs the Hallo2 inference script.

package inference

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/ZSC714725/hallo2runner/internal/logger"
	"github.com/ZSC714725/hallo2runner/internal/process"
)

// Config for the runner
type Config struct {
	// Python is the interpreter name or path
	Python string
	// WorkDir overrides the working directory; empty means the script's repo root
	WorkDir        string
	Env            []string
	LogLines       int
	SampleInterval time.Duration
	Logger         logger.Logger
}

// Job is one invocation of the inference script
type Job struct {
	Script        string
	ConfigPath    string
	Output        io.Writer
	Parser        Parser
	OnStart       func(pid int)
	OnStateChange func(from, to string)
}

// Report summarizes a finished invocation
type Report struct {
	Command    []string
	WorkDir    string
	Duration   time.Duration
	PeakCPU    float64
	PeakMemory uint64
	Progress   Progress
	Tail       []string
}

// Runner spawns the inference script, one job at a time per call
type Runner struct {
	python         string
	workDir        string
	env            []string
	logLines       int
	sampleInterval time.Duration
	logger         logger.Logger
}

// NewRunner creates a runner. The interpreter is resolved on each Run so a
// missing python does not mask input errors reported earlier in a pipeline.
func NewRunner(config Config) *Runner {
	r := &Runner{
		python:         config.Python,
		workDir:        config.WorkDir,
		env:            append([]string{"PYTHONUNBUFFERED=1"}, config.Env...),
		logLines:       config.LogLines,
		sampleInterval: config.SampleInterval,
		logger:         config.Logger,
	}
	if r.python == "" {
		r.python = "python3"
	}
	if r.logger == nil {
		r.logger = logger.Nop()
	}
	return r
}

// Python resolves the interpreter on PATH
func (r *Runner) Python() (string, error) {
	python, err := exec.LookPath(r.python)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInterpreterMissing, r.python, err)
	}
	return python, nil
}

// Run executes `<python> <script> --config <config>` and streams its output
// to job.Output. A non-zero exit is reported as ErrInferenceFailed.
func (r *Runner) Run(ctx context.Context, job Job) (*Report, error) {
	parser := job.Parser
	if parser == nil {
		parser = NewParser(ParserConfig{LogLines: r.logLines})
	}

	workDir := r.workDir
	if workDir == "" {
		workDir = RepoRoot(job.Script)
	}

	args := []string{job.Script, "--config", job.ConfigPath}
	report := &Report{WorkDir: workDir}

	python, err := r.Python()
	if err != nil {
		return report, err
	}
	report.Command = append([]string{python}, args...)

	proc, err := process.New(process.Config{
		Binary:         python,
		Args:           args,
		Dir:            workDir,
		Env:            r.env,
		Output:         job.Output,
		Parser:         parser,
		SampleInterval: r.sampleInterval,
		OnStart:        job.OnStart,
		OnStateChange:  job.OnStateChange,
		Logger:         r.logger,
	})
	if err != nil {
		return report, fmt.Errorf("%w: %v", ErrInferenceFailed, err)
	}

	r.logger.Info("command: %v", report.Command)
	r.logger.Debug("working directory: %s", workDir)

	start := time.Now()
	runErr := proc.Run(ctx)
	report.Duration = time.Since(start)

	status := proc.Status()
	report.PeakCPU = status.CPU.Peak
	report.PeakMemory = status.Memory.Peak
	report.Progress = parser.Progress()
	for _, line := range parser.Log() {
		report.Tail = append(report.Tail, line.Data)
	}

	if runErr != nil {
		return report, fmt.Errorf("%w: %w", ErrInferenceFailed, runErr)
	}
	return report, nil
}
