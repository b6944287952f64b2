// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZSC714725/hallo2runner/internal/pipeline"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		params  paramFlags
		publish bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a talking-head video from an image and an audio file",
		Long: `Generate a talking-head video.
Non-WAV audio is converted to 16 kHz mono first, a job config is written to a
temporary directory and the Hallo2 inference script is run. The resulting
merge_video.mp4 is moved to --output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, release, err := a.pipeline(ctx, publish)
			if err != nil {
				return err
			}
			defer release()

			req := params.request(cmd)
			req.Publish = publish

			res, err := p.Run(ctx, req, pipeline.Hooks{Output: cmd.OutOrStdout()})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\nvideo:     %s (%.2f MB)\n", res.OutputPath, float64(res.Size)/(1024*1024))
			fmt.Fprintf(out, "settings:  %dx%d, %d steps, lip_weight=%g, cfg_scale=%g\n",
				res.Params.Resolution, res.Params.Resolution, res.Params.Steps, res.Params.LipWeight, res.Params.CFGScale)
			fmt.Fprintf(out, "duration:  %s\n", res.Duration.Round(time.Second))
			if res.PeakMemory > 0 {
				fmt.Fprintf(out, "peak mem:  %.1f MB\n", float64(res.PeakMemory)/(1024*1024))
			}
			if res.PublishedURL != "" {
				fmt.Fprintf(out, "published: %s\n", res.PublishedURL)
			}
			return nil
		},
	}

	params.register(cmd)
	cmd.Flags().BoolVar(&publish, "publish", false, "Upload the result to publish.target")
	return cmd
}
