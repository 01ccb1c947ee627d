// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package app

import (
	"context"
	"fmt"
	"time"

	"image-qa/internal/device"
	"image-qa/internal/model"
	"image-qa/internal/model/caption"
	"image-qa/internal/model/vision"
	"image-qa/internal/model/vqa"
	"image-qa/pkg/config"
)

// CaptionConfigFromConfig 根据 config.Model.Caption 生成 caption 加载参数
func CaptionConfigFromConfig(cfg *config.Config) (caption.Config, error) {
	c := cfg.Model.Caption
	policy, err := vision.ParseDecodePolicy(c.DecodePolicy, vision.DecodeFallback)
	if err != nil {
		return caption.Config{}, fmt.Errorf("model.caption.decode_policy: %w", err)
	}
	return caption.Config{
		Backend:      c.Backend,
		Model:        c.Model,
		BaseURL:      c.BaseURL,
		APIKey:       c.APIKey,
		HealthPath:   c.HealthPath,
		Timeout:      parseDuration(c.Timeout, 300*time.Second),
		MaxNewTokens: c.MaxNewTokens,
		DecodePolicy: policy,
	}, nil
}

// VQAConfigFromConfig 根据 config.Model.VQA 生成 vqa 加载参数，绑定到 target 设备
func VQAConfigFromConfig(cfg *config.Config, target device.Target) (vqa.Config, error) {
	c := cfg.Model.VQA
	policy, err := vision.ParseDecodePolicy(c.DecodePolicy, vision.DecodePropagate)
	if err != nil {
		return vqa.Config{}, fmt.Errorf("model.vqa.decode_policy: %w", err)
	}
	strategy, err := vqa.ParseStrategy(c.Strategy)
	if err != nil {
		return vqa.Config{}, fmt.Errorf("model.vqa.strategy: %w", err)
	}
	return vqa.Config{
		Model:             c.Model,
		ServerURL:         c.ServerURL,
		ServerModel:       c.ServerModel,
		HubURL:            c.HubURL,
		CacheDir:          c.CacheDir,
		Strategy:          strategy,
		ImageSize:         c.ImageSize,
		MaxQuestionTokens: c.MaxQuestionTokens,
		Timeout:           parseDuration(c.Timeout, 120*time.Second),
		DecodePolicy:      policy,
		Device:            target,
	}, nil
}

// RegisterModels 向注册表注册两种模式的构建函数，每个模型带独立的设备占用控制
func RegisterModels(reg *model.Registry, cfg *config.Config, target device.Target) (map[model.Mode]*model.Guard, error) {
	captionCfg, err := CaptionConfigFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	vqaCfg, err := VQAConfigFromConfig(cfg, target)
	if err != nil {
		return nil, err
	}
	guardCfg := model.GuardConfig{
		MaxConcurrent:     cfg.Guard.MaxConcurrent,
		RequestsPerMinute: cfg.Guard.RequestsPerMinute,
	}
	guards := map[model.Mode]*model.Guard{
		model.ModeCaption: model.NewGuard(guardCfg),
		model.ModeVQA:     model.NewGuard(guardCfg),
	}

	reg.Register(model.ModeCaption, func(ctx context.Context) (vision.Adapter, error) {
		a, err := caption.Load(ctx, captionCfg)
		if err != nil {
			return nil, err
		}
		return model.Guarded(model.ModeCaption, a, guards[model.ModeCaption]), nil
	})
	reg.Register(model.ModeVQA, func(ctx context.Context) (vision.Adapter, error) {
		a, err := vqa.Load(ctx, vqaCfg)
		if err != nil {
			return nil, err
		}
		return model.Guarded(model.ModeVQA, a, guards[model.ModeVQA]), nil
	})
	return guards, nil
}

// parseDuration 解析时长字符串，无效或空时返回 defaultVal
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
