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

// Package vqa 实现 vqa 模式：专用视觉问答模型，图片与问题编码后一次前向，再解码答案
package vqa

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"image-qa/internal/device"
	"image-qa/internal/imageref"
	"image-qa/internal/model/vision"
	"image-qa/pkg/errors"
)

// Config vqa 模型加载参数
type Config struct {
	Model             string
	ServerURL         string
	ServerModel       string
	HubURL            string
	CacheDir          string
	Strategy          Strategy
	ImageSize         int
	MaxQuestionTokens int
	Timeout           time.Duration
	DecodePolicy      vision.DecodePolicy
	Device            device.Target
}

// Adapter vqa 模式的 vision.Adapter 实现
type Adapter struct {
	processor Processor
	model     Model
	strategy  Strategy
	policy    vision.DecodePolicy
	name      string
}

// NewAdapter 组合处理器与模型；policy 为空时使用 propagate
func NewAdapter(name string, p Processor, m Model, strategy Strategy, policy vision.DecodePolicy) *Adapter {
	if strategy == "" {
		strategy = StrategyGenerate
	}
	if policy == "" {
		policy = vision.DecodePropagate
	}
	return &Adapter{processor: p, model: m, strategy: strategy, policy: policy, name: name}
}

// Load 拉取分词器、连接推理服务并绑定设备
func Load(ctx context.Context, cfg Config) (*Adapter, error) {
	if cfg.Device == "" {
		cfg.Device = device.Detect()
	}
	hub := NewHub(cfg.HubURL, cfg.CacheDir, cfg.Timeout)
	tk, err := hub.LoadTokenizer(ctx, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("load processor for %s: %w", cfg.Model, err)
	}
	serverModel := cfg.ServerModel
	if serverModel == "" {
		serverModel = path.Base(cfg.Model)
	}
	m, err := NewKServeModel(ctx, cfg.ServerURL, serverModel, cfg.Device, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", cfg.Model, err)
	}
	p := NewBlipProcessor(tk, cfg.ImageSize, cfg.MaxQuestionTokens)
	return NewAdapter(cfg.Model, p, m, cfg.Strategy, cfg.DecodePolicy), nil
}

// Infer 实现 vision.Adapter
func (a *Adapter) Infer(ctx context.Context, img *imageref.Image, question string) (string, error) {
	in, err := a.processor.Encode(img, question)
	if err != nil {
		return "", errors.Mark(err, errors.ErrInference)
	}
	out, err := a.model.Run(ctx, in, a.strategy.Output())
	if err != nil {
		return "", errors.Mark(err, errors.ErrInference)
	}
	answer, err := a.decode(out)
	if err != nil {
		if a.policy == vision.DecodeFallback {
			return rawOutput(out), nil
		}
		return "", errors.Mark(err, errors.ErrInference)
	}
	return answer, nil
}

func (a *Adapter) decode(out *Tensor) (string, error) {
	ids, err := a.strategy.TokenIDs(out)
	if err != nil {
		return "", err
	}
	return a.processor.Decode(ids)
}

// rawOutput 原始输出的文本形式
func rawOutput(t *Tensor) string {
	b, err := json.Marshal(map[string]interface{}{"name": t.Name, "shape": t.Shape, "data": t.Data})
	if err != nil {
		return fmt.Sprint(t.Data)
	}
	return string(b)
}

// Name 返回模型标识
func (a *Adapter) Name() string {
	return a.name
}

// Strategy 返回使用的解码策略
func (a *Adapter) Strategy() Strategy {
	return a.strategy
}
