// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package jobconfig

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Float is a float64 that always encodes with a decimal point (1 -> 1.0), the
// way the reference long.yaml writes its weights.
type Float float64

// MarshalYAML implements yaml.Marshaler
func (f Float) MarshalYAML() (interface{}, error) {
	s := strconv.FormatFloat(float64(f), 'f', -1, 64)
	if !strings.ContainsAny(s, ".nN") {
		s += ".0"
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: s}, nil
}

// Config mirrors hallo2/configs/inference/long.yaml. Field names, nesting and
// order are what the inference script reads and must not change.
type Config struct {
	SourceImage          string         `yaml:"source_image"`
	DrivingAudio         string         `yaml:"driving_audio"`
	WeightDType          string         `yaml:"weight_dtype"`
	Data                 Data           `yaml:"data"`
	InferenceSteps       int            `yaml:"inference_steps"`
	CFGScale             Float          `yaml:"cfg_scale"`
	UseMask              bool           `yaml:"use_mask"`
	MaskRate             Float          `yaml:"mask_rate"`
	UseCut               bool           `yaml:"use_cut"`
	AudioCkptDir         string         `yaml:"audio_ckpt_dir"`
	SavePath             string         `yaml:"save_path"`
	CachePath            string         `yaml:"cache_path"`
	BaseModelPath        string         `yaml:"base_model_path"`
	MotionModulePath     string         `yaml:"motion_module_path"`
	FaceAnalysis         ModelPath      `yaml:"face_analysis"`
	Wav2Vec              Wav2Vec        `yaml:"wav2vec"`
	AudioSeparator       ModelPath      `yaml:"audio_separator"`
	VAE                  ModelPath      `yaml:"vae"`
	FaceExpandRatio      Float          `yaml:"face_expand_ratio"`
	PoseWeight           Float          `yaml:"pose_weight"`
	FaceWeight           Float          `yaml:"face_weight"`
	LipWeight            Float          `yaml:"lip_weight"`
	UNetAdditionalKwargs UNetKwargs     `yaml:"unet_additional_kwargs"`
	EnableZeroSNR        bool           `yaml:"enable_zero_snr"`
	NoiseSchedulerKwargs NoiseScheduler `yaml:"noise_scheduler_kwargs"`
	Sampler              string         `yaml:"sampler"`
}

// Data is the data: block
type Data struct {
	NMotionFrames int         `yaml:"n_motion_frames"`
	NSampleFrames int         `yaml:"n_sample_frames"`
	SourceImage   ImageSize   `yaml:"source_image"`
	DrivingAudio  AudioFormat `yaml:"driving_audio"`
	ExportVideo   ExportVideo `yaml:"export_video"`
}

type ImageSize struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type AudioFormat struct {
	SampleRate int `yaml:"sample_rate"`
}

type ExportVideo struct {
	FPS int `yaml:"fps"`
}

// ModelPath is a block holding a single model_path entry
type ModelPath struct {
	ModelPath string `yaml:"model_path"`
}

type Wav2Vec struct {
	ModelPath string `yaml:"model_path"`
	Features  string `yaml:"features"`
}

// UNetKwargs is unet_additional_kwargs
type UNetKwargs struct {
	UseInflatedGroupnorm       bool               `yaml:"use_inflated_groupnorm"`
	UNetUseCrossFrameAttention bool               `yaml:"unet_use_cross_frame_attention"`
	UNetUseTemporalAttention   bool               `yaml:"unet_use_temporal_attention"`
	UseMotionModule            bool               `yaml:"use_motion_module"`
	UseAudioModule             bool               `yaml:"use_audio_module"`
	MotionModuleResolutions    []int              `yaml:"motion_module_resolutions"`
	MotionModuleMidBlock       bool               `yaml:"motion_module_mid_block"`
	MotionModuleDecoderOnly    bool               `yaml:"motion_module_decoder_only"`
	MotionModuleType           string             `yaml:"motion_module_type"`
	MotionModuleKwargs         MotionModuleKwargs `yaml:"motion_module_kwargs"`
	AudioAttentionDim          int                `yaml:"audio_attention_dim"`
	StackEnableBlocksName      []string           `yaml:"stack_enable_blocks_name"`
	StackEnableBlocksDepth     []int              `yaml:"stack_enable_blocks_depth"`
}

type MotionModuleKwargs struct {
	NumAttentionHeads              int      `yaml:"num_attention_heads"`
	NumTransformerBlock            int      `yaml:"num_transformer_block"`
	AttentionBlockTypes            []string `yaml:"attention_block_types"`
	TemporalPositionEncoding       bool     `yaml:"temporal_position_encoding"`
	TemporalPositionEncodingMaxLen int      `yaml:"temporal_position_encoding_max_len"`
	TemporalAttentionDimDiv        int      `yaml:"temporal_attention_dim_div"`
}

// NoiseScheduler is noise_scheduler_kwargs
type NoiseScheduler struct {
	BetaStart           Float  `yaml:"beta_start"`
	BetaEnd             Float  `yaml:"beta_end"`
	BetaSchedule        string `yaml:"beta_schedule"`
	ClipSample          bool   `yaml:"clip_sample"`
	StepsOffset         int    `yaml:"steps_offset"`
	PredictionType      string `yaml:"prediction_type"`
	RescaleBetasZeroSNR bool   `yaml:"rescale_betas_zero_snr"`
	TimestepSpacing     string `yaml:"timestep_spacing"`
}

// Model hyperparameters that are not user facing.
const (
	SampleRate    = 16000
	weightDType   = "fp16"
	nMotionFrames = 2
	nSampleFrames = 16
	maskRate      = 0.25
	sampler       = "DDIM"

	// ArtifactName is what the inference script writes under save_path/<image stem>/
	ArtifactName = "merge_video.mp4"
)

func unetKwargs() UNetKwargs {
	return UNetKwargs{
		UseInflatedGroupnorm:       true,
		UNetUseCrossFrameAttention: false,
		UNetUseTemporalAttention:   false,
		UseMotionModule:            true,
		UseAudioModule:             true,
		MotionModuleResolutions:    []int{1, 2, 4, 8},
		MotionModuleMidBlock:       true,
		MotionModuleDecoderOnly:    false,
		MotionModuleType:           "Vanilla",
		MotionModuleKwargs: MotionModuleKwargs{
			NumAttentionHeads:              8,
			NumTransformerBlock:            1,
			AttentionBlockTypes:            []string{"Temporal_Self", "Temporal_Self"},
			TemporalPositionEncoding:       true,
			TemporalPositionEncodingMaxLen: 32,
			TemporalAttentionDimDiv:        1,
		},
		AudioAttentionDim:      768,
		StackEnableBlocksName:  []string{"up", "down", "mid"},
		StackEnableBlocksDepth: []int{0, 1, 2, 3},
	}
}

func noiseScheduler() NoiseScheduler {
	return NoiseScheduler{
		BetaStart:           0.00085,
		BetaEnd:             0.012,
		BetaSchedule:        "linear",
		ClipSample:          false,
		StepsOffset:         1,
		PredictionType:      "v_prediction",
		RescaleBetasZeroSNR: true,
		TimestepSpacing:     "trailing",
	}
}
