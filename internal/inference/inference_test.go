package inference

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZSC714725/hallo2runner/internal/process"
)

func writeScript(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestParserProgress(t *testing.T) {
	p := NewParser(ParserConfig{LogLines: 3})

	lines := []string{
		"loading models",
		" 45%|████▌     | 18/40 [00:10<00:12,  1.80it/s]",
		"100%|██████████| 40/40 [00:22<00:00,  1.80it/s]",
		"100%|██████████| 40/40 [00:22<00:00,  1.80it/s]",
		"  5%|▌         | 2/40 [00:01<00:22,  1.70it/s]",
	}
	for _, l := range lines {
		p.Parse(l)
	}

	prog := p.Progress()
	if prog.Done != 2 || prog.Total != 40 || prog.Percent != 5 {
		t.Errorf("progress = %+v", prog)
	}
	if prog.Bars != 1 {
		t.Errorf("bars = %d, want 1", prog.Bars)
	}

	log := p.Log()
	if len(log) != 3 {
		t.Fatalf("log has %d lines, want 3", len(log))
	}
	if log[2].Data != lines[4] || p.LastLine() != lines[4] {
		t.Errorf("last line = %q", log[2].Data)
	}

	p.ResetStats()
	p.ResetLog()
	if p.Progress() != (Progress{}) || len(p.Log()) != 0 || p.LastLine() != "" {
		t.Error("reset did not clear parser state")
	}
}

func TestParserIgnoresPlainLines(t *testing.T) {
	p := NewParser(ParserConfig{})
	if n := p.Parse("Processing clip 3 of 10"); n != 0 {
		t.Errorf("Parse returned %d", n)
	}
	if p.Progress().Total != 0 {
		t.Errorf("unexpected progress %+v", p.Progress())
	}
}

func TestLocateHonoursOrder(t *testing.T) {
	base := t.TempDir()
	writeScript(t, filepath.Join(base, "hallo2", "scripts", "inference.py"), "")

	got, err := Locate(Candidates(base, DefaultScripts))
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if filepath.Base(got) != "inference.py" {
		t.Errorf("got %s", got)
	}

	writeScript(t, filepath.Join(base, "hallo2", "scripts", "inference_long.py"), "")
	got, err = Locate(Candidates(base, DefaultScripts))
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if filepath.Base(got) != "inference_long.py" {
		t.Errorf("first candidate should win, got %s", got)
	}
}

func TestLocateNotFound(t *testing.T) {
	base := t.TempDir()
	// a directory with the right name is not a script
	if err := os.MkdirAll(filepath.Join(base, "hallo2", "scripts", "inference_long.py"), 0o755); err != nil {
		t.Fatal(err)
	}
	_, err := Locate(Candidates(base, DefaultScripts))
	if !errors.Is(err, ErrScriptNotFound) {
		t.Fatalf("expected ErrScriptNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "inference.py") {
		t.Errorf("error should list candidates: %v", err)
	}
}

func TestCandidatesKeepsAbsolute(t *testing.T) {
	got := Candidates("/base", []string{"/opt/run.py", "rel/run.py", ""})
	want := []string{"/opt/run.py", filepath.Join("/base", "rel/run.py")}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Candidates = %v", got)
	}
}

func TestRunnerRun(t *testing.T) {
	repo := t.TempDir()
	script := filepath.Join(repo, "scripts", "inference_long.py")
	writeScript(t, script, `
echo "args: $1 $2"
echo "cwd: $(pwd)"
printf ' 50%%|#    | 1/2\r100%%|#####| 2/2\n'
echo "unbuffered=$PYTHONUNBUFFERED"
`)

	r := NewRunner(Config{Python: "/bin/sh"})

	var out bytes.Buffer
	report, err := r.Run(context.Background(), Job{
		Script:     script,
		ConfigPath: "/tmp/job.yaml",
		Output:     &out,
	})
	if err != nil {
		t.Fatalf("Run: %v\n%s", err, out.String())
	}

	text := out.String()
	if !strings.Contains(text, "args: --config /tmp/job.yaml") {
		t.Errorf("script args missing:\n%s", text)
	}
	realRepo, _ := filepath.EvalSymlinks(repo)
	if !strings.Contains(text, "cwd: "+realRepo) && !strings.Contains(text, "cwd: "+repo) {
		t.Errorf("script did not run in repo root:\n%s", text)
	}
	if !strings.Contains(text, "unbuffered=1") {
		t.Errorf("PYTHONUNBUFFERED not set:\n%s", text)
	}
	if report.Progress.Done != 2 || report.Progress.Bars != 1 {
		t.Errorf("progress = %+v", report.Progress)
	}
	if report.WorkDir != repo {
		t.Errorf("workdir = %s", report.WorkDir)
	}
	if len(report.Tail) == 0 {
		t.Error("report tail empty")
	}
}

func TestRunnerFailure(t *testing.T) {
	repo := t.TempDir()
	script := filepath.Join(repo, "scripts", "inference.py")
	writeScript(t, script, "echo 'CUDA out of memory'; exit 2\n")

	r := NewRunner(Config{Python: "/bin/sh", WorkDir: repo})

	report, err := r.Run(context.Background(), Job{Script: script, ConfigPath: "cfg.yaml"})
	if !errors.Is(err, ErrInferenceFailed) {
		t.Fatalf("expected ErrInferenceFailed, got %v", err)
	}
	var exitErr *process.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 2 {
		t.Errorf("expected exit code 2, got %v", err)
	}
	if len(report.Tail) != 1 || report.Tail[0] != "CUDA out of memory" {
		t.Errorf("tail = %v", report.Tail)
	}
}

func TestRunMissingInterpreter(t *testing.T) {
	r := NewRunner(Config{Python: "/nonexistent/python9"})
	report, err := r.Run(context.Background(), Job{Script: "/srv/hallo/scripts/inference_long.py", ConfigPath: "cfg.yaml"})
	if !errors.Is(err, ErrInterpreterMissing) {
		t.Errorf("expected ErrInterpreterMissing, got %v", err)
	}
	if report == nil || len(report.Command) != 0 {
		t.Errorf("report = %+v", report)
	}
}
