// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZSC714725/hallo2runner/internal/jobconfig"
	"github.com/ZSC714725/hallo2runner/internal/pipeline"
)

func newConfigCmd(a *app) *cobra.Command {
	var (
		params    paramFlags
		configOut string
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write a Hallo2 job config without running inference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// 只生成配置，不需要解释器和 ffmpeg
			p := pipeline.New(pipeline.Config{
				Assets:        a.assets(),
				StrictPresets: a.cfg.Strict(),
				DefaultPreset: a.cfg.Defaults.Quality,
				DefaultFPS:    a.cfg.Defaults.FPS,
				Logger:        a.logger.With("config"),
			})

			req := params.request(cmd)
			resolved, err := p.ResolveParams(req)
			if err != nil {
				return err
			}
			cfg, err := jobconfig.Build(p.Input(req, resolved), a.assets())
			if err != nil {
				return err
			}
			if err := jobconfig.Write(cfg, configOut); err != nil {
				return err
			}

			a.logger.Info("config written: %s", configOut)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\nexpected video: %s\n", configOut, cfg.ArtifactPath())
			return nil
		},
	}

	params.register(cmd)
	cmd.Flags().StringVar(&configOut, "config-out", "", "Where to write the job config YAML")
	cmd.MarkFlagRequired("config-out")
	return cmd
}
