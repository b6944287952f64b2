// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZSC714725/hallo2runner/internal/audio"
)

// Prober reports what the installed ffmpeg can do
type Prober interface {
	Probe(ctx context.Context) (audio.Info, error)
}

// SkillsResponse for GET /api/v1/skills
type SkillsResponse struct {
	FFmpeg struct {
		Binary        string `json:"binary"`
		Version       string `json:"version"`
		Compiler      string `json:"compiler"`
		Configuration string `json:"configuration"`
		Libraries     []struct {
			Name     string `json:"name"`
			Compiled string `json:"compiled"`
			Linked   string `json:"linked"`
		} `json:"libraries"`
	} `json:"ffmpeg"`

	Codecs struct {
		Audio []SkillsCodec `json:"audio"`
	} `json:"codecs"`

	// Formats are the audio extensions accepted by the pipeline
	Formats []string `json:"formats"`
}

type SkillsCodec struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Encoders []string `json:"encoders"`
	Decoders []string `json:"decoders"`
}

func skillsToAPI(info audio.Info) SkillsResponse {
	resp := SkillsResponse{}

	resp.FFmpeg.Binary = info.Binary
	resp.FFmpeg.Version = info.Version
	resp.FFmpeg.Compiler = info.Compiler
	resp.FFmpeg.Configuration = info.Configuration
	resp.FFmpeg.Libraries = make([]struct {
		Name     string `json:"name"`
		Compiled string `json:"compiled"`
		Linked   string `json:"linked"`
	}, len(info.Libraries))
	for i, lib := range info.Libraries {
		resp.FFmpeg.Libraries[i].Name = lib.Name
		resp.FFmpeg.Libraries[i].Compiled = lib.Compiled
		resp.FFmpeg.Libraries[i].Linked = lib.Linked
	}

	resp.Codecs.Audio = make([]SkillsCodec, 0, len(info.Codecs))
	for _, c := range info.Codecs {
		resp.Codecs.Audio = append(resp.Codecs.Audio, SkillsCodec{
			ID:       c.Id,
			Name:     c.Name,
			Encoders: c.Encoders,
			Decoders: c.Decoders,
		})
	}

	resp.Formats = audio.SupportedExtensions()
	return resp
}

// Skills GET /api/v1/skills
func (h *Handler) Skills(c *gin.Context) {
	if h.prober == nil {
		errResp(c, http.StatusServiceUnavailable, "FFmpeg probe unavailable", "")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	info, err := h.prober.Probe(ctx)
	if err != nil {
		errResp(c, http.StatusServiceUnavailable, "FFmpeg probe failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, skillsToAPI(info))
}
