// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具
//
// Package publish uploads finished videos to object storage.

package publish

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/ZSC714725/hallo2runner/internal/logger"
)

var (
	ErrUnsupportedTarget = errors.New("unsupported publish target")
	ErrUploadFailed      = errors.New("upload failed")
)

// Publisher uploads a local file and returns its remote URL
type Publisher interface {
	Publish(ctx context.Context, localPath string) (string, error)
}

// Config selects and configures the backend
type Config struct {
	// Target is s3://bucket/prefix or gs://bucket/prefix
	Target          string
	Region          string
	AccessKey       string
	SecretKey       string
	Endpoint        string
	CredentialsFile string
	Logger          logger.Logger
}

// Target is a parsed bucket location
type Target struct {
	Scheme string
	Bucket string
	Prefix string
}

// ParseTarget splits scheme://bucket/prefix
func ParseTarget(raw string) (Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %q: %v", ErrUnsupportedTarget, raw, err)
	}
	if u.Scheme != "s3" && u.Scheme != "gs" {
		return Target{}, fmt.Errorf("%w: %q (use s3:// or gs://)", ErrUnsupportedTarget, raw)
	}
	if u.Host == "" {
		return Target{}, fmt.Errorf("%w: %q has no bucket", ErrUnsupportedTarget, raw)
	}
	return Target{
		Scheme: u.Scheme,
		Bucket: u.Host,
		Prefix: strings.Trim(u.Path, "/"),
	}, nil
}

// Key is the object name for a local file
func (t Target) Key(localPath string) string {
	return path.Join(t.Prefix, filepath.Base(localPath))
}

// URL is the canonical location of key
func (t Target) URL(key string) string {
	return t.Scheme + "://" + t.Bucket + "/" + key
}

// New returns nil, nil when no target is configured
func New(ctx context.Context, config Config) (Publisher, error) {
	if config.Target == "" {
		return nil, nil
	}
	target, err := ParseTarget(config.Target)
	if err != nil {
		return nil, err
	}
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}

	switch target.Scheme {
	case "s3":
		return newS3(target, config), nil
	case "gs":
		return newGCS(ctx, target, config)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedTarget, config.Target)
}
