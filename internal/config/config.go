// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ZSC714725/hallo2runner/internal/inference"
	"github.com/ZSC714725/hallo2runner/internal/preset"
)

// Config 应用配置
type Config struct {
	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
	Inference InferenceConfig `yaml:"inference"`
	Models    ModelsConfig    `yaml:"models"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
	Server    ServerConfig    `yaml:"server"`
	Publish   PublishConfig   `yaml:"publish"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// FFmpegConfig FFmpeg 配置
type FFmpegConfig struct {
	Path string `yaml:"path"`
}

// InferenceConfig Hallo2 推理脚本配置
type InferenceConfig struct {
	Python   string   `yaml:"python"`
	BaseDir  string   `yaml:"base_dir"`
	Scripts  []string `yaml:"scripts"`
	WorkDir  string   `yaml:"workdir"`
	LogLines int      `yaml:"log_lines"`
}

// ModelsConfig 预训练模型目录
type ModelsConfig struct {
	Root  string `yaml:"root"`
	Cache string `yaml:"cache"`
}

// DefaultsConfig 生成参数默认值
type DefaultsConfig struct {
	Quality       string `yaml:"quality"`
	FPS           int    `yaml:"fps"`
	StrictPresets *bool  `yaml:"strict_presets"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Bind       string   `yaml:"bind"`
	History    string   `yaml:"history"`
	QueueSize  int      `yaml:"queue_size"`
	RetainJobs int      `yaml:"retain_jobs"`
	AllowPaths []string `yaml:"allow_paths"`
	BlockPaths []string `yaml:"block_paths"`
}

// PublishConfig 结果上传配置，target 为空时不上传
type PublishConfig struct {
	Target          string `yaml:"target"`
	Region          string `yaml:"region"`
	AccessKey       string `yaml:"access_key"`
	SecretKey       string `yaml:"secret_key"`
	Endpoint        string `yaml:"endpoint"`
	CredentialsFile string `yaml:"credentials_file"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default 返回默认配置
func Default() *Config {
	strict := true
	return &Config{
		FFmpeg: FFmpegConfig{Path: "ffmpeg"},
		Inference: InferenceConfig{
			Python:   "python3",
			BaseDir:  ".",
			Scripts:  append([]string(nil), inference.DefaultScripts...),
			LogLines: 200,
		},
		Models: ModelsConfig{
			Root:  "./pretrained_models",
			Cache: "./.cache",
		},
		Defaults: DefaultsConfig{
			Quality:       preset.Default,
			FPS:           25,
			StrictPresets: &strict,
		},
		Server: ServerConfig{
			Bind:      ":8080",
			History:   "./data/history",
			QueueSize:  16,
			RetainJobs: 100,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load 从 YAML 文件加载配置
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	// credentials are usually injected through the environment
	data = []byte(os.ExpandEnv(string(data)))

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// 填充空值
func (c *Config) fillDefaults() {
	def := Default()
	if c.FFmpeg.Path == "" {
		c.FFmpeg.Path = def.FFmpeg.Path
	}
	if c.Inference.Python == "" {
		c.Inference.Python = def.Inference.Python
	}
	if c.Inference.BaseDir == "" {
		c.Inference.BaseDir = def.Inference.BaseDir
	}
	if len(c.Inference.Scripts) == 0 {
		c.Inference.Scripts = def.Inference.Scripts
	}
	if c.Inference.LogLines <= 0 {
		c.Inference.LogLines = def.Inference.LogLines
	}
	if c.Models.Root == "" {
		c.Models.Root = def.Models.Root
	}
	if c.Models.Cache == "" {
		c.Models.Cache = def.Models.Cache
	}
	if c.Defaults.Quality == "" {
		c.Defaults.Quality = def.Defaults.Quality
	}
	if c.Defaults.FPS == 0 {
		c.Defaults.FPS = def.Defaults.FPS
	}
	if c.Defaults.StrictPresets == nil {
		c.Defaults.StrictPresets = def.Defaults.StrictPresets
	}
	if c.Server.Bind == "" {
		c.Server.Bind = def.Server.Bind
	}
	if c.Server.History == "" {
		c.Server.History = def.Server.History
	}
	if c.Server.QueueSize <= 0 {
		c.Server.QueueSize = def.Server.QueueSize
	}
	if c.Server.RetainJobs <= 0 {
		c.Server.RetainJobs = def.Server.RetainJobs
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
}

// Validate checks values that would only fail much later at run time
func (c *Config) Validate() error {
	var errs []error
	if c.Defaults.FPS <= 0 {
		errs = append(errs, fmt.Errorf("defaults.fps must be positive, got %d", c.Defaults.FPS))
	}
	if _, err := preset.Lookup(c.Defaults.Quality); err != nil {
		errs = append(errs, fmt.Errorf("defaults.quality: %w", err))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	if t := c.Publish.Target; t != "" && !strings.HasPrefix(t, "s3://") && !strings.HasPrefix(t, "gs://") {
		errs = append(errs, fmt.Errorf("publish.target %q must start with s3:// or gs://", t))
	}
	return errors.Join(errs...)
}

// Strict reports whether unknown preset names are rejected
func (c *Config) Strict() bool {
	return c.Defaults.StrictPresets == nil || *c.Defaults.StrictPresets
}

// ScriptCandidates returns the ordered inference script locations
func (c *Config) ScriptCandidates() []string {
	return inference.Candidates(c.Inference.BaseDir, c.Inference.Scripts)
}

// ModelsRoot returns the absolute models root
func (c *Config) ModelsRoot() string {
	if abs, err := filepath.Abs(c.Models.Root); err == nil {
		return abs
	}
	return c.Models.Root
}
