// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ZSC714725/hallo2runner/internal/history"
	"github.com/ZSC714725/hallo2runner/internal/pipeline"
	"github.com/ZSC714725/hallo2runner/internal/preset"
	"github.com/ZSC714725/hallo2runner/internal/task"
)

// Handler holds dependencies
type Handler struct {
	store   *task.Store
	history *history.Store
	prober  Prober
}

// NewHandler creates API handler. history and prober may be nil.
func NewHandler(store *task.Store, hist *history.Store, prober Prober) *Handler {
	return &Handler{store: store, history: hist, prober: prober}
}

func errResp(c *gin.Context, code int, msg, detail string) {
	c.JSON(code, ErrorResponse{Code: code, Message: msg, Detail: detail})
}

// SubmitJob POST /api/v1/jobs
func (h *Handler) SubmitJob(c *gin.Context) {
	var req JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	j, err := h.store.Submit(requestToPipeline(&req))
	if err != nil {
		switch {
		case errors.Is(err, task.ErrPathNotAllowed):
			errResp(c, http.StatusForbidden, "Path not allowed", err.Error())
		case errors.Is(err, task.ErrQueueFull):
			errResp(c, http.StatusServiceUnavailable, "Queue full", err.Error())
		default:
			errResp(c, http.StatusInternalServerError, "Submit failed", err.Error())
		}
		return
	}

	c.JSON(http.StatusAccepted, jobToAPI(j.Info()))
}

// ListJobs GET /api/v1/jobs
func (h *Handler) ListJobs(c *gin.Context) {
	state := task.State(c.DefaultQuery("state", ""))
	switch state {
	case "", task.StateQueued, task.StateRunning, task.StateFinished, task.StateFailed:
	default:
		errResp(c, http.StatusBadRequest, "Unknown state", "Known: queued, running, finished, failed")
		return
	}

	jobs := h.store.List(state)
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobToAPI(j.Info()))
	}
	c.JSON(http.StatusOK, out)
}

// GetJob GET /api/v1/jobs/:id
func (h *Handler) GetJob(c *gin.Context) {
	id := c.Param("id")

	if j, err := h.store.Get(id); err == nil {
		c.JSON(http.StatusOK, jobToAPI(j.Info()))
		return
	}

	// 内存中没有时查历史记录
	if h.history != nil {
		rec, err := h.history.Get(id)
		if err == nil {
			c.JSON(http.StatusOK, recordToAPI(rec))
			return
		}
		if !errors.Is(err, history.ErrNotFound) {
			errResp(c, http.StatusInternalServerError, "History lookup failed", err.Error())
			return
		}
	}

	errResp(c, http.StatusNotFound, "Unknown job ID", id)
}

// GetJobLog GET /api/v1/jobs/:id/log
func (h *Handler) GetJobLog(c *gin.Context) {
	id := c.Param("id")

	j, err := h.store.Get(id)
	if err != nil {
		errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
		return
	}

	lines := j.Log()
	resp := JobLog{ID: id, Log: make([][2]string, len(lines))}
	for i, line := range lines {
		resp.Log[i] = [2]string{
			line.Timestamp.Format("2006-01-02 15:04:05.000"),
			line.Data,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteJob DELETE /api/v1/jobs/:id
func (h *Handler) DeleteJob(c *gin.Context) {
	id := c.Param("id")

	if err := h.store.Delete(id); err != nil {
		switch {
		case errors.Is(err, task.ErrNotFound):
			errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
		case errors.Is(err, task.ErrJobRunning):
			errResp(c, http.StatusConflict, "Job is running", err.Error())
		default:
			errResp(c, http.StatusInternalServerError, "Delete failed", err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, "OK")
}

// Presets GET /api/v1/presets
func (h *Handler) Presets(c *gin.Context) {
	c.JSON(http.StatusOK, PresetsResponse{
		Default:              preset.Default,
		Presets:              preset.All(),
		SupportedResolutions: preset.SupportedResolutions,
	})
}

// Health GET /api/v1/health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Queued:  len(h.store.List(task.StateQueued)),
		Running: len(h.store.List(task.StateRunning)),
	})
}

func requestToPipeline(req *JobRequest) pipeline.Request {
	return pipeline.Request{
		ImagePath:  req.Image,
		AudioPath:  req.Audio,
		OutputPath: req.Output,
		Preset:     req.Quality,
		Overrides: preset.Overrides{
			Resolution: req.Resolution,
			Steps:      req.Steps,
			LipWeight:  req.LipWeight,
			CFGScale:   req.CFGScale,
		},
		FPS:             req.FPS,
		PoseWeight:      req.PoseWeight,
		FaceWeight:      req.FaceWeight,
		FaceExpandRatio: req.FaceExpandRatio,
		Publish:         req.Publish,
	}
}

func jobToAPI(info task.Info) Job {
	j := Job{
		ID:         info.ID,
		State:      string(info.State),
		Stage:      string(info.Stage),
		Request:    info.Request,
		Result:     info.Result,
		Error:      info.Error,
		CreatedAt:  info.CreatedAt,
		FinishedAt: info.FinishedAt,
	}
	if info.State == task.StateRunning {
		p := info.Progress
		j.Progress = &p
	}
	if info.Result != nil {
		j.OutputPath = info.Result.OutputPath
		j.URL = info.Result.PublishedURL
	}
	return j
}

func recordToAPI(rec *history.Record) Job {
	j := Job{
		ID:         rec.ID,
		State:      rec.State,
		OutputPath: rec.OutputPath,
		URL:        rec.URL,
		Error:      rec.Error,
		CreatedAt:  rec.CreatedAt,
		Archived:   true,
	}
	if !rec.FinishedAt.IsZero() {
		t := rec.FinishedAt
		j.FinishedAt = &t
	}
	// 旧记录的请求解析失败时只返回摘要
	_ = json.Unmarshal(rec.Request, &j.Request)
	return j
}
