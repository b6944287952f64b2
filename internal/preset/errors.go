// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package preset

import "errors"

var (
	ErrUnknownPreset = errors.New("unknown quality preset")
	ErrInvalidParams = errors.New("invalid generation parameters")
)
