// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package publish

import (
	"context"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/ZSC714725/hallo2runner/internal/logger"
)

type gcsPublisher struct {
	target Target
	client *storage.Client
	logger logger.Logger
}

func newGCS(ctx context.Context, target Target, config Config) (*gcsPublisher, error) {
	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &gcsPublisher{target: target, client: client, logger: config.Logger}, nil
}

func (p *gcsPublisher) Publish(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer f.Close()

	key := p.target.Key(localPath)
	wc := p.client.Bucket(p.target.Bucket).Object(key).NewWriter(ctx)
	wc.ContentType = "video/mp4"

	if _, err := io.Copy(wc, f); err != nil {
		wc.Close()
		return "", fmt.Errorf("%w: copy to gs://%s/%s: %v", ErrUploadFailed, p.target.Bucket, key, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("%w: close gs://%s/%s: %v", ErrUploadFailed, p.target.Bucket, key, err)
	}

	url := p.target.URL(key)
	p.logger.Info("uploaded %s", url)
	return url, nil
}

// Close releases the storage client
func (p *gcsPublisher) Close() error {
	return p.client.Close()
}
