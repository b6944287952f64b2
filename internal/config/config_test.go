package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ZSC714725/hallo2runner/internal/inference"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadOverridesAndFillsDefaults(t *testing.T) {
	path := writeConfig(t, `
ffmpeg:
  path: /usr/local/bin/ffmpeg
inference:
  python: /opt/venv/bin/python
  base_dir: /srv/hallo
  scripts:
    - custom/run.py
defaults:
  quality: high
  strict_presets: false
server:
  bind: ":9090"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.FFmpeg.Path != "/usr/local/bin/ffmpeg" {
		t.Errorf("ffmpeg.path = %s", cfg.FFmpeg.Path)
	}
	if cfg.Inference.Python != "/opt/venv/bin/python" {
		t.Errorf("inference.python = %s", cfg.Inference.Python)
	}
	if cfg.Defaults.Quality != "high" || cfg.Strict() {
		t.Errorf("defaults = %+v", cfg.Defaults)
	}
	// back-filled
	if cfg.Defaults.FPS != 25 || cfg.Models.Root != "./pretrained_models" || cfg.Logging.Level != "info" {
		t.Errorf("defaults not filled: %+v %+v %+v", cfg.Defaults, cfg.Models, cfg.Logging)
	}
	if cfg.Server.Bind != ":9090" || cfg.Server.QueueSize != 16 || cfg.Server.RetainJobs != 100 {
		t.Errorf("server = %+v", cfg.Server)
	}

	want := []string{filepath.Join("/srv/hallo", "custom/run.py")}
	if got := cfg.ScriptCandidates(); !reflect.DeepEqual(got, want) {
		t.Errorf("ScriptCandidates() = %v", got)
	}
}

func TestDefaultScriptCandidates(t *testing.T) {
	cfg := Default()
	got := cfg.ScriptCandidates()
	if len(got) != len(inference.DefaultScripts) {
		t.Fatalf("candidates = %v", got)
	}
	if !strings.HasSuffix(got[0], "inference_long.py") || !strings.HasSuffix(got[1], "inference.py") {
		t.Errorf("order = %v", got)
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("HALLO2_TEST_SECRET", "s3cr3t")
	path := writeConfig(t, `
publish:
  target: s3://bucket/videos
  secret_key: ${HALLO2_TEST_SECRET}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Publish.SecretKey != "s3cr3t" {
		t.Errorf("secret_key = %q", cfg.Publish.SecretKey)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"negative fps", "defaults:\n  fps: -1\n", "defaults.fps"},
		{"unknown quality", "defaults:\n  quality: cinematic\n", "defaults.quality"},
		{"bad log level", "logging:\n  level: loud\n", "logging.level"},
		{"bad publish target", "publish:\n  target: ftp://host/x\n", "publish.target"},
		{"bad yaml", "ffmpeg: [\n", "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error %q does not mention %q", err, tt.errMsg)
			}
		})
	}
}

func TestModelsRootIsAbsolute(t *testing.T) {
	cfg := Default()
	if !filepath.IsAbs(cfg.ModelsRoot()) {
		t.Errorf("ModelsRoot() = %s", cfg.ModelsRoot())
	}
}
