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

package vision

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"image-qa/internal/imageref"
)

// Adapter 已加载的视觉模型：对一张图片和一个问题给出文本答案
type Adapter interface {
	// Infer 对 RGB 图像与问题推理，返回答案文本
	Infer(ctx context.Context, img *imageref.Image, question string) (string, error)
	// Name 返回模型名称
	Name() string
}

// DecodePolicy 模型输出格式不符合预期时的处理方式
type DecodePolicy string

const (
	// DecodeFallback 输出无法按结构解析时，原样返回原始输出
	DecodeFallback DecodePolicy = "fallback"
	// DecodePropagate 输出无法解析时返回错误
	DecodePropagate DecodePolicy = "propagate"
)

// ParseDecodePolicy 解析配置值，空值取 def
func ParseDecodePolicy(s string, def DecodePolicy) (DecodePolicy, error) {
	switch DecodePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return def, nil
	case DecodeFallback:
		return DecodeFallback, nil
	case DecodePropagate:
		return DecodePropagate, nil
	default:
		return "", fmt.Errorf("unknown decode policy %q", s)
	}
}

// StubAdapter 固定答案的实现，统计调用次数
type StubAdapter struct {
	Answer string
	Err    error
	calls  atomic.Int64
}

// Infer 返回固定答案
func (s *StubAdapter) Infer(ctx context.Context, img *imageref.Image, question string) (string, error) {
	s.calls.Add(1)
	if s.Err != nil {
		return "", s.Err
	}
	return s.Answer, nil
}

// Name 返回 stub
func (s *StubAdapter) Name() string {
	return "stub"
}

// Calls 已被调用的次数
func (s *StubAdapter) Calls() int64 {
	return s.calls.Load()
}
