// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package main

import (
	"context"
	"io"

	"github.com/ZSC714725/hallo2runner/internal/audio"
	"github.com/ZSC714725/hallo2runner/internal/inference"
	"github.com/ZSC714725/hallo2runner/internal/jobconfig"
	"github.com/ZSC714725/hallo2runner/internal/pipeline"
	"github.com/ZSC714725/hallo2runner/internal/publish"
)

func (a *app) normalizer() *audio.Normalizer {
	return audio.New(audio.Config{
		Binary: a.cfg.FFmpeg.Path,
		Logger: a.logger.With("ffmpeg"),
	})
}

func (a *app) assets() jobconfig.Assets {
	return jobconfig.AssetsFromRoot(a.cfg.ModelsRoot(), a.cfg.Models.Cache)
}

func (a *app) publisher(ctx context.Context) (publish.Publisher, error) {
	p := a.cfg.Publish
	return publish.New(ctx, publish.Config{
		Target:          p.Target,
		Region:          p.Region,
		AccessKey:       p.AccessKey,
		SecretKey:       p.SecretKey,
		Endpoint:        p.Endpoint,
		CredentialsFile: p.CredentialsFile,
		Logger:          a.logger.With("publish"),
	})
}

// pipeline wires every collaborator. The publisher is only created when
// withPublisher is set so a missing cloud config never blocks local runs.
// The returned func releases the publisher.
func (a *app) pipeline(ctx context.Context, withPublisher bool) (*pipeline.Pipeline, func(), error) {
	runner := inference.NewRunner(inference.Config{
		Python:   a.cfg.Inference.Python,
		WorkDir:  a.cfg.Inference.WorkDir,
		LogLines: a.cfg.Inference.LogLines,
		Logger:   a.logger.With("inference"),
	})

	var pub publish.Publisher
	if withPublisher {
		var err error
		if pub, err = a.publisher(ctx); err != nil {
			return nil, nil, err
		}
	}

	p := pipeline.New(pipeline.Config{
		Normalizer:    a.normalizer(),
		Runner:        runner,
		Scripts:       a.cfg.ScriptCandidates(),
		Assets:        a.assets(),
		Publisher:     pub,
		StrictPresets: a.cfg.Strict(),
		DefaultPreset: a.cfg.Defaults.Quality,
		DefaultFPS:    a.cfg.Defaults.FPS,
		Logger:        a.logger.With("pipeline"),
	})
	return p, func() { closePublisher(pub) }, nil
}

func closePublisher(p publish.Publisher) {
	if c, ok := p.(io.Closer); ok {
		c.Close()
	}
}
