// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package audio

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Format tells the pipeline what to do with an input file
type Format int

const (
	// FormatWAV is used in place without conversion
	FormatWAV Format = iota
	// FormatConvertible must go through the normalizer first
	FormatConvertible
)

func (f Format) String() string {
	switch f {
	case FormatWAV:
		return "wav"
	case FormatConvertible:
		return "convertible"
	default:
		return "unknown"
	}
}

var convertible = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".aac":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
}

// Classify dispatches on the file extension, case-insensitively
func Classify(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".wav" {
		return FormatWAV, nil
	}
	if convertible[ext] {
		return FormatConvertible, nil
	}
	if ext == "" {
		ext = "(none)"
	}
	return 0, fmt.Errorf("%w: %s (supported: %s)", ErrUnsupportedFormat, ext, strings.Join(SupportedExtensions(), ", "))
}

// SupportedExtensions lists every accepted extension
func SupportedExtensions() []string {
	exts := []string{".wav"}
	for ext := range convertible {
		exts = append(exts, ext)
	}
	sort.Strings(exts[1:])
	return exts
}
