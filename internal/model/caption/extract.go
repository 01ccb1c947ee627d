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
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"image-qa/internal/model/vision"
)

// ExtractAnswer 从生成管线的原始输出中取出答案文本
//
// 输出形如 [{"generated_text": ...}]。generated_text 为消息序列时取最后一条消息的 content，
// 否则原样返回 generated_text。输出不符合该形状时按 policy 处理：
// fallback 返回原始输出文本，propagate 返回错误。
func ExtractAnswer(raw []byte, policy vision.DecodePolicy) (string, error) {
	answer, err := extract(raw)
	if err == nil {
		return answer, nil
	}
	if policy == vision.DecodePropagate {
		return "", err
	}
	return rawString(raw), nil
}

// rawString 原始输出的文本形式，空输出也给出非空的表示
func rawString(raw []byte) string {
	if s := strings.TrimSpace(string(raw)); s != "" {
		return s
	}
	return fmt.Sprintf("%q", raw)
}

func extract(raw []byte) (string, error) {
	if !gjson.ValidBytes(raw) {
		return "", fmt.Errorf("output is not JSON")
	}
	root := gjson.ParseBytes(raw)
	var gt gjson.Result
	if root.IsArray() {
		gt = root.Get("0.generated_text")
	} else {
		gt = root.Get("generated_text")
	}
	if !gt.Exists() {
		return "", fmt.Errorf("output has no generated_text")
	}
	if !gt.IsArray() {
		return gt.String(), nil
	}

	turns := gt.Array()
	if len(turns) == 0 {
		return "", fmt.Errorf("generated_text is an empty sequence")
	}
	content := turns[len(turns)-1].Get("content")
	if !content.Exists() {
		return "", fmt.Errorf("last generated message has no content")
	}
	if content.IsArray() {
		// 多段内容：拼接其中的文本段
		var sb strings.Builder
		for _, part := range content.Array() {
			if t := part.Get("text"); t.Exists() {
				sb.WriteString(t.String())
			}
		}
		return sb.String(), nil
	}
	return content.String(), nil
}
