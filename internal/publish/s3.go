// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package publish

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ZSC714725/hallo2runner/internal/logger"
)

type s3Publisher struct {
	target   Target
	uploader *manager.Uploader
	logger   logger.Logger
}

func newS3(target Target, config Config) *s3Publisher {
	opts := s3.Options{
		Region:      config.Region,
		Credentials: credentials.NewStaticCredentialsProvider(config.AccessKey, config.SecretKey, ""),
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if config.Endpoint != "" {
		// S3-compatible stores (MinIO etc.) need path-style addressing
		opts.BaseEndpoint = aws.String(config.Endpoint)
		opts.UsePathStyle = true
	}

	return &s3Publisher{
		target:   target,
		uploader: manager.NewUploader(s3.New(opts)),
		logger:   config.Logger,
	}
}

func (p *s3Publisher) Publish(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer f.Close()

	key := p.target.Key(localPath)
	_, err = p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.target.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("video/mp4"),
	})
	if err != nil {
		return "", fmt.Errorf("%w: object %s to bucket %s: %v", ErrUploadFailed, key, p.target.Bucket, err)
	}

	url := p.target.URL(key)
	p.logger.Info("uploaded %s", url)
	return url, nil
}
