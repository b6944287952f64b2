// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package jobconfig

import "errors"

var (
	ErrConfigWrite  = errors.New("failed to write job config")
	ErrConfigRead   = errors.New("failed to read job config")
	ErrInvalidInput = errors.New("invalid job input")
)
