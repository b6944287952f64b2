package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/ZSC714725/hallo2runner/internal/audio"
	"github.com/ZSC714725/hallo2runner/internal/inference"
	"github.com/ZSC714725/hallo2runner/internal/jobconfig"
	"github.com/ZSC714725/hallo2runner/internal/preset"
)

type fakeNormalizer struct {
	calls int
	err   error
}

func (f *fakeNormalizer) Normalize(ctx context.Context, in, out string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(out, []byte("RIFF"), 0o644)
}

type countingRunner struct {
	calls int
}

func (c *countingRunner) Run(ctx context.Context, job inference.Job) (*inference.Report, error) {
	c.calls++
	return &inference.Report{}, nil
}

type fakePublisher struct {
	published string
}

func (f *fakePublisher) Publish(ctx context.Context, localPath string) (string, error) {
	f.published = localPath
	return "s3://bucket/" + filepath.Base(localPath), nil
}

type fixture struct {
	dir      string
	image    string
	output   string
	tempRoot string
	seen     string
	script   string
}

// newFixture lays out inputs and a fake inference script. The script copies
// its config to seen.yaml and, when produce is set, writes the artifact where
// the real script would.
func newFixture(t *testing.T, produce bool, exit int) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:      dir,
		image:    filepath.Join(dir, "avatar.png"),
		output:   filepath.Join(dir, "out", "final.mp4"),
		tempRoot: filepath.Join(dir, "tmp"),
		seen:     filepath.Join(dir, "seen.yaml"),
		script:   filepath.Join(dir, "hallo2", "scripts", "inference_long.py"),
	}
	if err := os.WriteFile(f.image, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(f.tempRoot, 0o755); err != nil {
		t.Fatal(err)
	}

	artifact := filepath.Join(filepath.Dir(f.output), "avatar", jobconfig.ArtifactName)
	body := "echo 'loading models'\ncp \"$2\" '" + f.seen + "'\n"
	if produce {
		body += "mkdir -p '" + filepath.Dir(artifact) + "'\nprintf video > '" + artifact + "'\n"
	}
	body += "echo '100%|##########| 8/8 [00:01<00:00]'\n"
	if exit != 0 {
		body += "exit " + strconv.Itoa(exit) + "\n"
	}
	if err := os.MkdirAll(filepath.Dir(f.script), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(f.script, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) audio(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func (f *fixture) pipeline(t *testing.T, norm Normalizer, runner Runner) *Pipeline {
	t.Helper()
	if runner == nil {
		runner = inference.NewRunner(inference.Config{Python: "/bin/sh"})
	}
	return New(Config{
		Normalizer:    norm,
		Runner:        runner,
		Scripts:       []string{filepath.Join(f.dir, "missing.py"), f.script},
		Assets:        jobconfig.AssetsFromRoot(filepath.Join(f.dir, "models"), filepath.Join(f.dir, "cache")),
		StrictPresets: true,
		TempRoot:      f.tempRoot,
	})
}

func (f *fixture) assertTempClean(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.tempRoot)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		t.Errorf("temp entry left behind: %s", e.Name())
	}
}

func TestRunConvertsAndRelocates(t *testing.T) {
	f := newFixture(t, true, 0)
	norm := &fakeNormalizer{}
	p := f.pipeline(t, norm, nil)

	var out bytes.Buffer
	var stages []Stage
	res, err := p.Run(context.Background(), Request{
		ImagePath:  f.image,
		AudioPath:  f.audio(t, "speech.mp3"),
		OutputPath: f.output,
		Preset:     "high",
		Overrides:  preset.Overrides{Steps: preset.Int(12)},
	}, Hooks{
		JobID:   "job1",
		Output:  &out,
		OnStage: func(s Stage) { stages = append(stages, s) },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if norm.calls != 1 {
		t.Errorf("normalizer calls = %d, want 1", norm.calls)
	}
	if res.JobID != "job1" || res.OutputPath != f.output || res.Size != int64(len("video")) {
		t.Errorf("unexpected result %+v", res)
	}
	want := preset.Params{Resolution: 768, Steps: 12, LipWeight: 1.1, CFGScale: 3.8}
	if res.Params != want {
		t.Errorf("params = %+v, want %+v", res.Params, want)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(f.output), "avatar", jobconfig.ArtifactName)); !os.IsNotExist(err) {
		t.Errorf("artifact should have been moved, stat err = %v", err)
	}
	if !strings.Contains(out.String(), "loading models") {
		t.Errorf("inference output not streamed: %q", out.String())
	}
	if stages[0] != StageValidate || stages[len(stages)-1] != StageRelocate {
		t.Errorf("stages = %v", stages)
	}

	cfg, err := jobconfig.Read(f.seen)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(cfg.DrivingAudio) != normalizedAudio {
		t.Errorf("driving_audio = %s, want normalized wav", cfg.DrivingAudio)
	}
	if cfg.InferenceSteps != 12 || cfg.Data.SourceImage.Width != 768 {
		t.Errorf("config params not applied: steps=%d width=%d", cfg.InferenceSteps, cfg.Data.SourceImage.Width)
	}
	f.assertTempClean(t)
}

func TestRunWAVPassthrough(t *testing.T) {
	f := newFixture(t, true, 0)
	norm := &fakeNormalizer{}
	p := f.pipeline(t, norm, nil)
	wav := f.audio(t, "speech.WAV")

	if _, err := p.Run(context.Background(), Request{ImagePath: f.image, AudioPath: wav, OutputPath: f.output}, Hooks{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if norm.calls != 0 {
		t.Errorf("normalizer invoked %d times for wav input", norm.calls)
	}
	cfg, err := jobconfig.Read(f.seen)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DrivingAudio != wav {
		t.Errorf("driving_audio = %s, want %s", cfg.DrivingAudio, wav)
	}
	if cfg.Data.ExportVideo.FPS != 25 || cfg.Data.SourceImage.Width != 512 {
		t.Errorf("defaults not applied: fps=%d width=%d", cfg.Data.ExportVideo.FPS, cfg.Data.SourceImage.Width)
	}
	f.assertTempClean(t)
}

func TestRunArtifactMissing(t *testing.T) {
	f := newFixture(t, false, 0)
	p := f.pipeline(t, &fakeNormalizer{}, nil)

	_, err := p.Run(context.Background(), Request{ImagePath: f.image, AudioPath: f.audio(t, "a.wav"), OutputPath: f.output}, Hooks{})
	if !errors.Is(err, ErrArtifactMissing) {
		t.Fatalf("err = %v, want ErrArtifactMissing", err)
	}
	if FailedStage(err) != StageArtifact {
		t.Errorf("stage = %q", FailedStage(err))
	}
	if _, err := os.Stat(f.output); !os.IsNotExist(err) {
		t.Errorf("output should not exist")
	}
	f.assertTempClean(t)
}

func TestRunInferenceFailure(t *testing.T) {
	f := newFixture(t, true, 3)
	p := f.pipeline(t, &fakeNormalizer{}, nil)

	_, err := p.Run(context.Background(), Request{ImagePath: f.image, AudioPath: f.audio(t, "a.wav"), OutputPath: f.output}, Hooks{})
	if !errors.Is(err, inference.ErrInferenceFailed) {
		t.Fatalf("err = %v, want ErrInferenceFailed", err)
	}
	if FailedStage(err) != StageInference {
		t.Errorf("stage = %q", FailedStage(err))
	}
	f.assertTempClean(t)
}

func TestRunRejectsBeforeSpawning(t *testing.T) {
	f := newFixture(t, true, 0)

	tests := []struct {
		name  string
		req   func() Request
		stage Stage
		want  error
	}{
		{
			name:  "unsupported audio",
			req:   func() Request { return Request{ImagePath: f.image, AudioPath: f.audio(t, "a.txt"), OutputPath: f.output} },
			stage: StageClassify,
			want:  audio.ErrUnsupportedFormat,
		},
		{
			name:  "missing image",
			req:   func() Request { return Request{ImagePath: f.image + ".nope", AudioPath: f.audio(t, "a.wav"), OutputPath: f.output} },
			stage: StageValidate,
			want:  ErrInputNotFound,
		},
		{
			name:  "missing audio",
			req:   func() Request { return Request{ImagePath: f.image, AudioPath: filepath.Join(f.dir, "none.mp3"), OutputPath: f.output} },
			stage: StageValidate,
			want:  ErrInputNotFound,
		},
		{
			name:  "unknown preset",
			req:   func() Request { return Request{ImagePath: f.image, AudioPath: f.audio(t, "a.wav"), OutputPath: f.output, Preset: "extreme"} },
			stage: StageValidate,
			want:  preset.ErrUnknownPreset,
		},
		{
			name: "bad override",
			req: func() Request {
				return Request{ImagePath: f.image, AudioPath: f.audio(t, "a.wav"), OutputPath: f.output, Overrides: preset.Overrides{Resolution: preset.Int(600)}}
			},
			stage: StageValidate,
			want:  preset.ErrInvalidParams,
		},
		{
			name: "explicit zero fps",
			req: func() Request {
				return Request{ImagePath: f.image, AudioPath: f.audio(t, "a.wav"), OutputPath: f.output, FPS: preset.Int(0)}
			},
			stage: StageValidate,
			want:  jobconfig.ErrInvalidInput,
		},
		{
			name: "negative pose weight",
			req: func() Request {
				return Request{ImagePath: f.image, AudioPath: f.audio(t, "a.wav"), OutputPath: f.output, PoseWeight: preset.Float(-1)}
			},
			stage: StageValidate,
			want:  jobconfig.ErrInvalidInput,
		},
		{
			name: "zero face expand ratio",
			req: func() Request {
				return Request{ImagePath: f.image, AudioPath: f.audio(t, "a.wav"), OutputPath: f.output, FaceExpandRatio: preset.Float(0)}
			},
			stage: StageValidate,
			want:  jobconfig.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &countingRunner{}
			norm := &fakeNormalizer{}
			_, err := f.pipeline(t, norm, runner).Run(context.Background(), tt.req(), Hooks{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if FailedStage(err) != tt.stage {
				t.Errorf("stage = %q, want %q", FailedStage(err), tt.stage)
			}
			if runner.calls != 0 || norm.calls != 0 {
				t.Errorf("subprocesses spawned: runner=%d normalizer=%d", runner.calls, norm.calls)
			}
			f.assertTempClean(t)
		})
	}
}

func TestRunLenientPreset(t *testing.T) {
	f := newFixture(t, true, 0)
	p := New(Config{
		Normalizer: &fakeNormalizer{},
		Runner:     &countingRunner{},
		Scripts:    []string{f.script},
		TempRoot:   f.tempRoot,
	})

	params, err := p.ResolveParams(Request{Preset: "extreme"})
	if err != nil {
		t.Fatalf("ResolveParams: %v", err)
	}
	if params.Resolution != 512 || params.Steps != 40 {
		t.Errorf("lenient fallback = %+v, want balanced", params)
	}
}

func TestRunNormalizeFailure(t *testing.T) {
	f := newFixture(t, true, 0)
	runner := &countingRunner{}
	p := f.pipeline(t, &fakeNormalizer{err: audio.ErrToolFailed}, runner)

	_, err := p.Run(context.Background(), Request{ImagePath: f.image, AudioPath: f.audio(t, "a.m4a"), OutputPath: f.output}, Hooks{})
	if !errors.Is(err, audio.ErrToolFailed) || FailedStage(err) != StageNormalize {
		t.Fatalf("err = %v", err)
	}
	if runner.calls != 0 {
		t.Errorf("inference spawned after failed conversion")
	}
	f.assertTempClean(t)
}

func TestRunScriptNotFound(t *testing.T) {
	f := newFixture(t, true, 0)
	p := New(Config{
		Normalizer: &fakeNormalizer{},
		Runner:     &countingRunner{},
		Scripts:    []string{filepath.Join(f.dir, "nope.py")},
		TempRoot:   f.tempRoot,
	})

	_, err := p.Run(context.Background(), Request{ImagePath: f.image, AudioPath: f.audio(t, "a.wav"), OutputPath: f.output}, Hooks{})
	if !errors.Is(err, inference.ErrScriptNotFound) || FailedStage(err) != StageLocate {
		t.Fatalf("err = %v", err)
	}
	f.assertTempClean(t)
}

func TestInputAppliesExplicitValues(t *testing.T) {
	p := New(Config{DefaultFPS: 30})
	params := preset.Params{Resolution: 512, Steps: 40, LipWeight: 1, CFGScale: 3.5}

	in := p.Input(Request{PoseWeight: preset.Float(0.8)}, params)
	if in.FPS != 30 || in.PoseWeight != 0.8 || in.FaceWeight != 1.0 || in.FaceExpandRatio != 1.2 {
		t.Errorf("input = %+v", in)
	}

	in = p.Input(Request{FPS: preset.Int(24), FaceWeight: preset.Float(0)}, params)
	if in.FPS != 24 || in.FaceWeight != 0 {
		t.Errorf("explicit values replaced: %+v", in)
	}
	if err := in.Validate(); !errors.Is(err, jobconfig.ErrInvalidInput) {
		t.Errorf("Validate() = %v, want ErrInvalidInput", err)
	}
}

func TestRunPublish(t *testing.T) {
	f := newFixture(t, true, 0)
	pub := &fakePublisher{}
	p := New(Config{
		Normalizer: &fakeNormalizer{},
		Runner:     inference.NewRunner(inference.Config{Python: "/bin/sh"}),
		Scripts:    []string{f.script},
		Publisher:  pub,
		TempRoot:   f.tempRoot,
	})

	res, err := p.Run(context.Background(), Request{ImagePath: f.image, AudioPath: f.audio(t, "a.wav"), OutputPath: f.output, Publish: true}, Hooks{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if pub.published != f.output {
		t.Errorf("published %q, want %q", pub.published, f.output)
	}
	if res.PublishedURL != "s3://bucket/final.mp4" {
		t.Errorf("url = %q", res.PublishedURL)
	}
}

func TestMoveCreatesParents(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")
	dst := filepath.Join(dir, "a", "b", "dst.mp4")
	if err := os.WriteFile(src, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := move(src, dst); err != nil {
		t.Fatalf("move: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "data" {
		t.Errorf("dst = %q, %v", data, err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("src still exists")
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := copyFile(src, dst); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(dst); string(data) != "payload" {
		t.Errorf("copied %q", data)
	}
}
