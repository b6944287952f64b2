// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides a simple logging interface
type Logger interface {
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
	With(prefix string) Logger
	Sync() error
}

type defaultLogger struct {
	prefix string
	sugar  *zap.SugaredLogger
}

// New 创建写入 stderr 的控制台日志，level 为 debug/info/warn/error
func New(prefix, level string) Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		parseLevel(level),
	)

	return &defaultLogger{
		prefix: normalizePrefix(prefix),
		sugar:  zap.New(core).Sugar(),
	}
}

// Nop returns a logger that discards everything
func Nop() Logger {
	return &defaultLogger{sugar: zap.NewNop().Sugar()}
}

func (l *defaultLogger) Info(format string, args ...interface{}) {
	l.sugar.Infof(l.prefix+format, args...)
}

func (l *defaultLogger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(l.prefix+format, args...)
}

func (l *defaultLogger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(l.prefix+format, args...)
}

func (l *defaultLogger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(l.prefix+format, args...)
}

// With returns a child logger whose messages carry an extra prefix
func (l *defaultLogger) With(prefix string) Logger {
	return &defaultLogger{
		prefix: l.prefix + normalizePrefix(prefix),
		sugar:  l.sugar,
	}
}

func (l *defaultLogger) Sync() error {
	return l.sugar.Sync()
}

func normalizePrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	return "[" + prefix + "] "
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
