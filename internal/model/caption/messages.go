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

// 单轮对话：一段图片 + 一段文本

type messagePart struct {
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
	Text string `json:"text,omitempty"`
}

type message struct {
	Role    string        `json:"role"`
	Content []messagePart `json:"content"`
}

func userTurn(imageURL, question string) message {
	return message{
		Role: "user",
		Content: []messagePart{
			{Type: "image", URL: imageURL},
			{Type: "text", Text: question},
		},
	}
}

// textTurn 只带文本的消息，用于把远程聊天模型的回复还原成管线输出形状
func textTurn(role, text string) map[string]interface{} {
	return map[string]interface{}{"role": role, "content": text}
}

// pipelineOutput 组装 [{"generated_text": [user, assistant]}] 形状的输出
func pipelineOutput(user message, reply string) []map[string]interface{} {
	return []map[string]interface{}{
		{"generated_text": []interface{}{user, textTurn("assistant", reply)}},
	}
}
