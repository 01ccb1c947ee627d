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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"image-qa/internal/imageref"
)

// GeminiBackend 通过 Gemini 多模态接口生成答案
type GeminiBackend struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

// NewGeminiBackend 创建 Gemini 后端；BaseURL 非空时作为自定义 endpoint
func NewGeminiBackend(ctx context.Context, cfg Config) (*GeminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini backend requires api_key")
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	cl, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	m := cl.GenerativeModel(cfg.Model)
	if cfg.MaxNewTokens > 0 {
		m.SetMaxOutputTokens(int32(cfg.MaxNewTokens))
	}
	return &GeminiBackend{client: cl, model: m, name: cfg.Model}, nil
}

// Generate 发送图片与问题，把回复还原成管线输出形状
func (g *GeminiBackend) Generate(ctx context.Context, img *imageref.Image, question string) ([]byte, error) {
	data, err := img.JPEG()
	if err != nil {
		return nil, err
	}
	parts := []genai.Part{
		&genai.Blob{MIMEType: "image/jpeg", Data: data},
		genai.Text(question),
	}
	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	url, err := img.DataURL()
	if err != nil {
		return nil, err
	}
	return json.Marshal(pipelineOutput(userTurn(url, question), firstText(resp)))
}

// firstText 拼接第一个候选中的文本段
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}

// Name 返回模型名称
func (g *GeminiBackend) Name() string {
	return g.name
}

// Close 关闭底层客户端
func (g *GeminiBackend) Close() error {
	return g.client.Close()
}
