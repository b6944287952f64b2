// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package audio

import "errors"

var (
	ErrInputNotFound     = errors.New("audio input not found")
	ErrToolMissing       = errors.New("ffmpeg not found, please install ffmpeg")
	ErrToolFailed        = errors.New("ffmpeg conversion failed")
	ErrOutputMissing     = errors.New("ffmpeg reported success but output file was not created")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)
