// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZSC714725/hallo2runner/internal/inference"
)

var errDoctorFailed = errors.New("environment check failed")

type check struct {
	name   string
	ok     bool
	detail string
}

func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check ffmpeg, python, the inference script and model weights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			checks := a.doctor(ctx)
			if !report(cmd.OutOrStdout(), checks) {
				return errDoctorFailed
			}
			return nil
		},
	}
}

func (a *app) doctor(ctx context.Context) []check {
	var checks []check

	info, err := a.normalizer().Probe(ctx)
	if err != nil {
		checks = append(checks, check{name: "ffmpeg", detail: err.Error()})
	} else {
		checks = append(checks, check{name: "ffmpeg", ok: true, detail: info.Version + " (" + info.Binary + ")"})
		checks = append(checks, check{
			name:   "ffmpeg pcm_s16le",
			ok:     info.HasCodec("pcm_s16le", true),
			detail: "WAV encoder",
		})
	}

	if python, err := exec.LookPath(a.cfg.Inference.Python); err != nil {
		checks = append(checks, check{name: "python", detail: err.Error()})
	} else {
		checks = append(checks, check{name: "python", ok: true, detail: python})
	}

	if script, err := inference.Locate(a.cfg.ScriptCandidates()); err != nil {
		checks = append(checks, check{name: "inference script", detail: err.Error()})
	} else {
		checks = append(checks, check{name: "inference script", ok: true, detail: script})
	}

	paths := a.assets().Paths()
	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, err := os.Stat(paths[name])
		checks = append(checks, check{name: "model " + name, ok: err == nil, detail: paths[name]})
	}
	return checks
}

func report(w io.Writer, checks []check) bool {
	ok := true
	for _, c := range checks {
		mark := "ok"
		if !c.ok {
			mark = "MISSING"
			ok = false
		}
		fmt.Fprintf(w, "[%-7s] %-28s %s\n", mark, c.name, c.detail)
	}
	return ok
}
