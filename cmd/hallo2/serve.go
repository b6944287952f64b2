// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/ZSC714725/hallo2runner/internal/api"
	"github.com/ZSC714725/hallo2runner/internal/history"
	"github.com/ZSC714725/hallo2runner/internal/metrics"
	"github.com/ZSC714725/hallo2runner/internal/task"
)

func newServeCmd(a *app) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP job API",
		Long: `Run the HTTP job API. Jobs are queued and executed one at a time;
finished jobs are kept in the history store and exposed on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bind == "" {
				bind = a.cfg.Server.Bind
			}
			return a.serve(cmd.Context(), bind)
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Bind address (overrides config)")
	return cmd
}

func (a *app) serve(ctx context.Context, bind string) error {
	log := a.logger.With("server")

	p, release, err := a.pipeline(ctx, a.cfg.Publish.Target != "")
	if err != nil {
		return err
	}
	defer release()

	hist, err := history.Open(a.cfg.Server.History)
	if err != nil {
		return err
	}
	defer hist.Close()

	validator, err := task.NewValidator(a.cfg.Server.AllowPaths, a.cfg.Server.BlockPaths)
	if err != nil {
		return err
	}

	m := metrics.NewMetrics()
	store := task.NewStore(task.Config{
		Executor:  p,
		History:   hist,
		Metrics:   m,
		Validator: validator,
		QueueSize: a.cfg.Server.QueueSize,
		Retain:    a.cfg.Server.RetainJobs,
		LogLines:  a.cfg.Inference.LogLines,
		Logger:    a.logger.With("task"),
	})
	store.Start(ctx)
	defer store.Close()

	if a.cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := api.NewHandler(store, hist, a.normalizer())
	srv := &http.Server{
		Addr:    bind,
		Handler: api.NewRouter(handler, m.Handler()),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening on %s", bind)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
