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

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"image-qa/internal/imageref"
)

// OpenAIBackend 通过 OpenAI 兼容的多模态聊天接口生成答案（vLLM、TGI 等均提供该接口）
type OpenAIBackend struct {
	chat  model.BaseChatModel
	model string
}

// NewOpenAIBackend 创建 OpenAI 兼容后端
func NewOpenAIBackend(ctx context.Context, cfg Config) (*OpenAIBackend, error) {
	conf := &openai.ChatModelConfig{
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	}
	if cfg.MaxNewTokens > 0 {
		maxTokens := cfg.MaxNewTokens
		conf.MaxTokens = &maxTokens
	}
	cm, err := openai.NewChatModel(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("create openai chat model: %w", err)
	}
	return &OpenAIBackend{chat: cm, model: cfg.Model}, nil
}

// Generate 发送单轮图文对话，把回复还原成管线输出形状
func (o *OpenAIBackend) Generate(ctx context.Context, img *imageref.Image, question string) ([]byte, error) {
	url, err := img.DataURL()
	if err != nil {
		return nil, err
	}
	msg := &schema.Message{
		Role: schema.User,
		MultiContent: []schema.ChatMessagePart{
			{Type: schema.ChatMessagePartTypeImageURL, ImageURL: &schema.ChatMessageImageURL{URL: url}},
			{Type: schema.ChatMessagePartTypeText, Text: question},
		},
	}
	reply, err := o.chat.Generate(ctx, []*schema.Message{msg})
	if err != nil {
		return nil, fmt.Errorf("调用 OpenAI 兼容接口失败: %w", err)
	}
	return json.Marshal(pipelineOutput(userTurn(url, question), reply.Content))
}

// Name 返回模型名称
func (o *OpenAIBackend) Name() string {
	return o.model
}
