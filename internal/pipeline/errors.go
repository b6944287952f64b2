// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrInputNotFound   = errors.New("input file not found")
	ErrArtifactMissing = errors.New("inference finished but produced no video")
	ErrInvalidRequest  = errors.New("invalid request")
)

// Stage names one gate of the pipeline
type Stage string

const (
	StageValidate  Stage = "validate"
	StageClassify  Stage = "classify"
	StagePrepare   Stage = "prepare"
	StageNormalize Stage = "normalize"
	StageConfig    Stage = "config"
	StageLocate    Stage = "locate"
	StageInference Stage = "inference"
	StageArtifact  Stage = "artifact"
	StageRelocate  Stage = "relocate"
	StagePublish   Stage = "publish"
)

// StageError reports which stage failed
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage of err, or "" if err did not come from a pipeline run
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

func fail(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}
