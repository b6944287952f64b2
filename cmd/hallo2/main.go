// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZSC714725/hallo2runner/internal/pipeline"
)

func main() {
	// SIGINT/SIGTERM 取消 context，让临时目录清理和子进程终止得以执行
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		if stage := pipeline.FailedStage(err); stage != "" {
			fmt.Fprintf(os.Stderr, "hallo2: failed at %s stage: %v\n", stage, err)
		} else {
			fmt.Fprintf(os.Stderr, "hallo2: %v\n", err)
		}
		os.Exit(1)
	}
}
