// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package task

import "errors"

var (
	ErrNotFound       = errors.New("job not found")
	ErrQueueFull      = errors.New("job queue is full")
	ErrJobRunning     = errors.New("job is running")
	ErrPathNotAllowed = errors.New("path not allowed")
	ErrStoreClosed    = errors.New("job store closed")
)
