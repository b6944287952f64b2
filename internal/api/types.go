// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package api

import (
	"time"

	"github.com/ZSC714725/hallo2runner/internal/inference"
	"github.com/ZSC714725/hallo2runner/internal/pipeline"
	"github.com/ZSC714725/hallo2runner/internal/preset"
)

// JobRequest for POST /api/v1/jobs
type JobRequest struct {
	Image           string   `json:"image" binding:"required"`
	Audio           string   `json:"audio" binding:"required"`
	Output          string   `json:"output" binding:"required"`
	Quality         string   `json:"quality"`
	Resolution      *int     `json:"resolution"`
	Steps           *int     `json:"steps"`
	LipWeight       *float64 `json:"lip_weight"`
	CFGScale        *float64 `json:"cfg_scale"`
	FPS             *int     `json:"fps"`
	PoseWeight      *float64 `json:"pose_weight"`
	FaceWeight      *float64 `json:"face_weight"`
	FaceExpandRatio *float64 `json:"face_expand_ratio"`
	Publish         bool     `json:"publish"`
}

// Job represents a job in API responses
type Job struct {
	ID         string              `json:"id"`
	State      string              `json:"state"`
	Stage      string              `json:"stage,omitempty"`
	Request    pipeline.Request    `json:"request"`
	Progress   *inference.Progress `json:"progress,omitempty"`
	Result     *pipeline.Result    `json:"result,omitempty"`
	OutputPath string              `json:"output_path,omitempty"`
	URL        string              `json:"url,omitempty"`
	Error      string              `json:"error,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
	// Archived is set for jobs only known from the history store
	Archived bool `json:"archived,omitempty"`
}

// JobLog for GET /api/v1/jobs/:id/log
type JobLog struct {
	ID  string      `json:"id"`
	Log [][2]string `json:"log"`
}

// PresetsResponse lists the quality presets
type PresetsResponse struct {
	Default              string          `json:"default"`
	Presets              []preset.Preset `json:"presets"`
	SupportedResolutions []int           `json:"supported_resolutions"`
}

// HealthResponse for GET /api/v1/health
type HealthResponse struct {
	Status  string `json:"status"`
	Queued  int    `json:"queued"`
	Running int    `json:"running"`
}

// ErrorResponse for API errors
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}
