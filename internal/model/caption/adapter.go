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

// Package caption 实现 caption 模式：通用图文生成模型，以单轮对话提问
package caption

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"image-qa/internal/imageref"
	"image-qa/internal/model/vision"
	"image-qa/pkg/errors"
)

// 可选后端
const (
	BackendPipeline = "pipeline"
	BackendOpenAI   = "openai"
	BackendGemini   = "gemini"
)

// Config caption 模型加载参数
type Config struct {
	Backend      string
	Model        string
	BaseURL      string
	APIKey       string
	HealthPath   string
	Timeout      time.Duration
	MaxNewTokens int
	DecodePolicy vision.DecodePolicy
}

// Backend 生成后端：返回管线形状的原始输出 [{"generated_text": ...}]
type Backend interface {
	Generate(ctx context.Context, img *imageref.Image, question string) ([]byte, error)
	Name() string
}

// Adapter caption 模式的 vision.Adapter 实现
type Adapter struct {
	backend Backend
	policy  vision.DecodePolicy
}

// NewAdapter 用给定后端创建 Adapter；policy 为空时使用 fallback
func NewAdapter(backend Backend, policy vision.DecodePolicy) *Adapter {
	if policy == "" {
		policy = vision.DecodeFallback
	}
	return &Adapter{backend: backend, policy: policy}
}

// Load 按配置选择后端并创建 Adapter
func Load(ctx context.Context, cfg Config) (*Adapter, error) {
	var (
		backend Backend
		err     error
	)
	switch strings.ToLower(cfg.Backend) {
	case "", BackendPipeline:
		backend, err = NewPipelineBackend(ctx, cfg)
	case BackendOpenAI:
		backend, err = NewOpenAIBackend(ctx, cfg)
	case BackendGemini:
		backend, err = NewGeminiBackend(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown caption backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return NewAdapter(backend, cfg.DecodePolicy), nil
}

// Infer 实现 vision.Adapter
func (a *Adapter) Infer(ctx context.Context, img *imageref.Image, question string) (string, error) {
	raw, err := a.backend.Generate(ctx, img, question)
	if err != nil {
		return "", errors.Mark(err, errors.ErrInference)
	}
	answer, err := ExtractAnswer(raw, a.policy)
	if err != nil {
		return "", errors.Mark(err, errors.ErrInference)
	}
	return answer, nil
}

// Name 返回模型名称
func (a *Adapter) Name() string {
	return a.backend.Name()
}

// Close 关闭持有资源的后端
func (a *Adapter) Close() error {
	if c, ok := a.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
