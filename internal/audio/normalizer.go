// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具
//
// Package audio converts driving audio into the 16 kHz mono WAV the model expects.

package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ZSC714725/hallo2runner/internal/logger"
)

const (
	SampleRate = 16000
	Channels   = 1

	// lines of ffmpeg output kept in ErrToolFailed
	errorTailLines = 20
)

// Config for the normalizer
type Config struct {
	Binary     string
	SampleRate int
	Channels   int
	Logger     logger.Logger
}

// Normalizer wraps the ffmpeg binary
type Normalizer struct {
	binary     string
	sampleRate int
	channels   int
	logger     logger.Logger
}

// New creates a Normalizer. The binary is resolved lazily so a missing
// ffmpeg only matters when a conversion is actually needed.
func New(config Config) *Normalizer {
	n := &Normalizer{
		binary:     config.Binary,
		sampleRate: config.SampleRate,
		channels:   config.Channels,
		logger:     config.Logger,
	}
	if n.binary == "" {
		n.binary = "ffmpeg"
	}
	if n.sampleRate <= 0 {
		n.sampleRate = SampleRate
	}
	if n.channels <= 0 {
		n.channels = Channels
	}
	if n.logger == nil {
		n.logger = logger.Nop()
	}
	return n
}

// Binary resolves the ffmpeg executable on PATH
func (n *Normalizer) Binary() (string, error) {
	path, err := exec.LookPath(n.binary)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrToolMissing, n.binary, err)
	}
	return path, nil
}

// Args returns the ffmpeg arguments for one conversion
func (n *Normalizer) Args(in, out string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-i", in,
		"-ar", strconv.Itoa(n.sampleRate),
		"-ac", strconv.Itoa(n.channels),
		"-y",
		out,
	}
}

// Normalize converts in to a WAV at out, overwriting it
func (n *Normalizer) Normalize(ctx context.Context, in, out string) error {
	info, err := os.Stat(in)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInputNotFound, in)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInputNotFound, in)
	}

	binary, err := n.Binary()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	n.logger.Info("converting %s to %d Hz, %d channel WAV", filepath.Base(in), n.sampleRate, n.channels)

	cmd := exec.CommandContext(ctx, binary, n.Args(in, out)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %v: %s", ErrToolFailed, err, tail(string(output), errorTailLines))
	}

	if _, err := os.Stat(out); err != nil {
		return fmt.Errorf("%w: %s", ErrOutputMissing, out)
	}

	n.logger.Info("audio converted: %s", out)
	return nil
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
