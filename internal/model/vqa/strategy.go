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

package vqa

import (
	"fmt"
	"strings"
)

// Strategy VQA 解码方式
type Strategy string

const (
	// StrategyGenerate 模型生成答案 token 序列，再解码
	StrategyGenerate Strategy = "generate"
	// StrategyClassify 对 logits 最后一维取 argmax，再解码
	StrategyClassify Strategy = "classify"
)

// ParseStrategy 解析配置值，空值为 generate
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyGenerate:
		return StrategyGenerate, nil
	case StrategyClassify:
		return StrategyClassify, nil
	default:
		return "", fmt.Errorf("unknown vqa strategy %q", s)
	}
}

// Output 该策略请求的模型输出名
func (s Strategy) Output() string {
	if s == StrategyClassify {
		return "logits"
	}
	return "sequences"
}

// TokenIDs 按策略把输出张量转换为第一条样本的 token id 序列
func (s Strategy) TokenIDs(t *Tensor) ([]int64, error) {
	if s == StrategyClassify {
		return argmaxLast(t)
	}
	return firstRow(t)
}

// firstRow 取 [batch, seq] 或 [seq] 张量的第一行
func firstRow(t *Tensor) ([]int64, error) {
	if len(t.Shape) == 0 || len(t.Shape) > 2 {
		return nil, fmt.Errorf("sequences: unexpected shape %v", t.Shape)
	}
	n := t.Shape[len(t.Shape)-1]
	if n < 0 || n > int64(len(t.Data)) {
		return nil, fmt.Errorf("sequences: shape %v does not match %d values", t.Shape, len(t.Data))
	}
	ids := make([]int64, 0, n)
	for _, v := range t.Data[:n] {
		ids = append(ids, int64(v))
	}
	return ids, nil
}

// argmaxLast 对最后一维取 argmax，返回第一条样本的结果
func argmaxLast(t *Tensor) ([]int64, error) {
	if len(t.Shape) == 0 || len(t.Shape) > 3 {
		return nil, fmt.Errorf("logits: unexpected shape %v", t.Shape)
	}
	vocab := t.Shape[len(t.Shape)-1]
	if vocab <= 0 {
		return nil, fmt.Errorf("logits: empty last dimension")
	}
	rows := int64(1)
	if len(t.Shape) == 3 {
		rows = t.Shape[1]
	}
	if rows < 0 || rows*vocab > int64(len(t.Data)) {
		return nil, fmt.Errorf("logits: shape %v does not match %d values", t.Shape, len(t.Data))
	}
	ids := make([]int64, 0, rows)
	for r := int64(0); r < rows; r++ {
		row := t.Data[r*vocab : (r+1)*vocab]
		best := 0
		for i, v := range row {
			if v > row[best] {
				best = i
			}
		}
		ids = append(ids, int64(best))
	}
	return ids, nil
}
