// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package main

import (
	"github.com/spf13/cobra"

	"github.com/ZSC714725/hallo2runner/internal/config"
	"github.com/ZSC714725/hallo2runner/internal/logger"
)

// app carries what every subcommand needs once flags are parsed
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "hallo2",
		Short: "Generate talking-head videos with Hallo2",
		Long: `Hallo2Runner prepares the driving audio, writes the Hallo2 job config,
runs the inference script and moves the finished video into place.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "hallo2.yaml", "Path to YAML config file (missing file means defaults)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	root.AddCommand(
		newGenerateCmd(a),
		newConvertCmd(a),
		newConfigCmd(a),
		newPresetsCmd(a),
		newDoctorCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg
	a.logger = logger.New("hallo2", cfg.Logging.Level)
	return nil
}
