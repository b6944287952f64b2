// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package inference

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultScripts are tried in order, relative to the base directory
var DefaultScripts = []string{
	filepath.Join("hallo2", "scripts", "inference_long.py"),
	filepath.Join("hallo2", "scripts", "inference.py"),
}

// Candidates resolves scripts against baseDir. Absolute entries are kept.
func Candidates(baseDir string, scripts []string) []string {
	out := make([]string, 0, len(scripts))
	for _, s := range scripts {
		if s == "" {
			continue
		}
		if !filepath.IsAbs(s) && baseDir != "" {
			s = filepath.Join(baseDir, s)
		}
		out = append(out, s)
	}
	return out
}

// Locate returns the first candidate that is an existing regular file
func Locate(candidates []string) (string, error) {
	for _, c := range candidates {
		info, err := os.Stat(c)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		abs, err := filepath.Abs(c)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", c, err)
		}
		return abs, nil
	}
	return "", fmt.Errorf("%w; looked in: %s", ErrScriptNotFound, strings.Join(candidates, ", "))
}

// RepoRoot is the hallo2 checkout a script lives in (<root>/scripts/x.py)
func RepoRoot(script string) string {
	return filepath.Dir(filepath.Dir(script))
}
