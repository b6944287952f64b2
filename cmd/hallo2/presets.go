// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ZSC714725/hallo2runner/internal/preset"
)

func newPresetsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List quality presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := preset.All()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(presets)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tRESOLUTION\tSTEPS\tLIP WEIGHT\tCFG SCALE\t")
			for _, p := range presets {
				mark := ""
				if p.Name == a.cfg.Defaults.Quality {
					mark = " (default)"
				}
				fmt.Fprintf(w, "%s%s\t%d\t%d\t%g\t%g\t\n", p.Name, mark, p.Resolution, p.Steps, p.LipWeight, p.CFGScale)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
