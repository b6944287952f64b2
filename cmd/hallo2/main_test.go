package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/ZSC714725/hallo2runner/internal/jobconfig"
	"github.com/ZSC714725/hallo2runner/internal/pipeline"
	"github.com/ZSC714725/hallo2runner/internal/preset"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeAppConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "hallo2.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPresetsCommand(t *testing.T) {
	out, err := execute(t, "--config", filepath.Join(t.TempDir(), "none.yaml"), "presets")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"balanced (default)", "high", "ultra", "768"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigCommandWritesJobConfig(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "job.yaml")

	out, err := execute(t,
		"--config", filepath.Join(dir, "none.yaml"),
		"config",
		"--image", "avatar.png",
		"--audio", "speech.wav",
		"--output", filepath.Join(dir, "videos", "final.mp4"),
		"--quality", "ultra",
		"--cfg-scale", "5",
		"--config-out", outPath,
	)
	if err != nil {
		t.Fatalf("config: %v\n%s", err, out)
	}

	cfg, err := jobconfig.Read(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.InferenceSteps != 60 || cfg.CFGScale != 5 || cfg.Data.SourceImage.Width != 768 {
		t.Errorf("params = steps %d cfg %g res %d", cfg.InferenceSteps, cfg.CFGScale, cfg.Data.SourceImage.Width)
	}
	if !filepath.IsAbs(cfg.SourceImage) || !filepath.IsAbs(cfg.BaseModelPath) {
		t.Errorf("paths not absolute: %s %s", cfg.SourceImage, cfg.BaseModelPath)
	}
	if !strings.Contains(out, filepath.Join(dir, "videos", "avatar", jobconfig.ArtifactName)) {
		t.Errorf("expected artifact path in output:\n%s", out)
	}
}

func TestConfigCommandUnknownPreset(t *testing.T) {
	dir := t.TempDir()
	args := []string{
		"config", "--image", "a.png", "--audio", "a.wav", "--output", "o.mp4",
		"--quality", "extreme", "--config-out", filepath.Join(dir, "job.yaml"),
	}

	_, err := execute(t, append([]string{"--config", filepath.Join(dir, "none.yaml")}, args...)...)
	if !errors.Is(err, preset.ErrUnknownPreset) {
		t.Errorf("strict: err = %v, want ErrUnknownPreset", err)
	}

	lenient := writeAppConfig(t, dir, "defaults:\n  strict_presets: false\nlogging:\n  level: error\n")
	if _, err := execute(t, append([]string{"--config", lenient}, args...)...); err != nil {
		t.Errorf("lenient: %v", err)
	}
	cfg, err := jobconfig.Read(filepath.Join(dir, "job.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.InferenceSteps != 40 {
		t.Errorf("fallback steps = %d, want balanced 40", cfg.InferenceSteps)
	}
}

func TestGenerateMissingInput(t *testing.T) {
	tests := []struct {
		name   string
		python string
	}{
		{"interpreter present", "/bin/sh"},
		// 输入校验先于解释器查找
		{"interpreter missing", "no-such-python-xyz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cfgPath := writeAppConfig(t, dir, "inference:\n  python: "+tt.python+"\nlogging:\n  level: error\n")

			_, err := execute(t, "--config", cfgPath, "generate",
				"--image", filepath.Join(dir, "missing.png"),
				"--audio", filepath.Join(dir, "missing.wav"),
				"--output", filepath.Join(dir, "out.mp4"),
			)
			if !errors.Is(err, pipeline.ErrInputNotFound) {
				t.Fatalf("err = %v, want ErrInputNotFound", err)
			}
			if pipeline.FailedStage(err) != pipeline.StageValidate {
				t.Errorf("stage = %q", pipeline.FailedStage(err))
			}
		})
	}
}

func TestGenerateRequiresFlags(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "none.yaml"), "generate", "--image", "a.png")
	if err == nil || !strings.Contains(err.Error(), "required flag") {
		t.Errorf("err = %v, want required flag error", err)
	}
}

func TestRequestOverridesOnlyWhenSet(t *testing.T) {
	var p paramFlags
	cmd := &cobra.Command{Use: "x", RunE: func(*cobra.Command, []string) error { return nil }}
	p.register(cmd)

	if err := cmd.ParseFlags([]string{"--image", "a", "--audio", "b", "--output", "c", "--steps", "10", "--lip-weight", "0", "--fps", "0"}); err != nil {
		t.Fatal(err)
	}
	req := p.request(cmd)

	if req.Overrides.Steps == nil || *req.Overrides.Steps != 10 {
		t.Errorf("steps override = %v", req.Overrides.Steps)
	}
	if req.Overrides.LipWeight == nil || *req.Overrides.LipWeight != 0 {
		t.Errorf("explicit zero lip weight should be kept as an override")
	}
	if req.Overrides.Resolution != nil || req.Overrides.CFGScale != nil {
		t.Errorf("unset flags produced overrides: %+v", req.Overrides)
	}
	// 显式的 0 交给校验阶段拒绝，而不是悄悄换成默认值
	if req.FPS == nil || *req.FPS != 0 {
		t.Errorf("explicit fps = %v", req.FPS)
	}
	if req.PoseWeight != nil || req.FaceWeight != nil || req.FaceExpandRatio != nil {
		t.Errorf("unset control flags produced values: %+v", req)
	}
}

func TestDoctorReport(t *testing.T) {
	var buf bytes.Buffer
	ok := report(&buf, []check{
		{name: "ffmpeg", ok: true, detail: "6.1"},
		{name: "python", detail: "not found"},
	})
	if ok {
		t.Error("report should fail when a check is missing")
	}
	if !strings.Contains(buf.String(), "[MISSING] python") {
		t.Errorf("report output:\n%s", buf.String())
	}
}
