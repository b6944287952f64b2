// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter wires the routes. metrics may be nil.
func NewRouter(h *Handler, metrics http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), cors.Default())

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", h.Health)
		v1.GET("/presets", h.Presets)
		v1.GET("/skills", h.Skills)

		v1.GET("/jobs", h.ListJobs)
		v1.POST("/jobs", h.SubmitJob)
		v1.GET("/jobs/:id", h.GetJob)
		v1.GET("/jobs/:id/log", h.GetJobLog)
		v1.DELETE("/jobs/:id", h.DeleteJob)
	}

	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}
	return r
}
