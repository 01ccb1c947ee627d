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

package caption

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"image-qa/internal/imageref"
)

// PipelineBackend 调用托管 image-text-to-text 管线的推理服务，返回管线原始输出
type PipelineBackend struct {
	client       *resty.Client
	model        string
	maxNewTokens int
}

type pipelineRequest struct {
	Inputs     pipelineInputs     `json:"inputs"`
	Parameters pipelineParameters `json:"parameters"`
}

type pipelineInputs struct {
	Text []message `json:"text"`
}

type pipelineParameters struct {
	MaxNewTokens int `json:"max_new_tokens,omitempty"`
}

// NewPipelineBackend 创建管线后端；配置了 healthPath 时先确认服务就绪
func NewPipelineBackend(ctx context.Context, cfg Config) (*PipelineBackend, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("pipeline backend requires base_url")
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	if cfg.HealthPath != "" {
		resp, err := client.R().SetContext(ctx).Get(cfg.HealthPath)
		if err != nil {
			return nil, fmt.Errorf("pipeline health check failed: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("pipeline not ready: status %d", resp.StatusCode())
		}
	}

	return &PipelineBackend{client: client, model: cfg.Model, maxNewTokens: cfg.MaxNewTokens}, nil
}

// Generate 发送单轮对话，返回服务端原始 JSON
func (p *PipelineBackend) Generate(ctx context.Context, img *imageref.Image, question string) ([]byte, error) {
	url, err := img.DataURL()
	if err != nil {
		return nil, err
	}
	body := pipelineRequest{
		Inputs:     pipelineInputs{Text: []message{userTurn(url, question)}},
		Parameters: pipelineParameters{MaxNewTokens: p.maxNewTokens},
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/models/" + p.model)
	if err != nil {
		return nil, fmt.Errorf("调用 pipeline 服务失败: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("pipeline 服务返回错误: status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return resp.Body(), nil
}

// Name 返回模型名称
func (p *PipelineBackend) Name() string {
	return p.model
}
