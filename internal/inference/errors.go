// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package inference

import "errors"

var (
	ErrScriptNotFound  = errors.New("hallo2 inference script not found")
	ErrInferenceFailed = errors.New("hallo2 inference failed")
)

// ErrInterpreterMissing means the python interpreter could not be resolved
var ErrInterpreterMissing = errors.New("python interpreter not found")
