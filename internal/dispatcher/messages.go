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

package dispatcher

import (
	"image-qa/internal/model"
	"image-qa/pkg/errors"
)

// NoImageMessage 未选择图片时的提示
const NoImageMessage = "Please select an image first."

// DisplayName 模式在界面上的名称
func DisplayName(mode model.Mode) string {
	if mode == model.ModeVQA {
		return "VQA"
	}
	return "Image-to-Text"
}

// SelectorLabel 模式选择器中的选项文本
func SelectorLabel(mode model.Mode) string {
	return DisplayName(mode) + " Model"
}

// Label 答案前缀
func Label(mode model.Mode) string {
	return DisplayName(mode) + " Answer:"
}

// DefaultQuestion 问题为空时使用的默认问题
func DefaultQuestion(mode model.Mode) string {
	if mode == model.ModeVQA {
		return "What is in the image?"
	}
	return "Describe the image."
}

// LoadingMessage 首次加载模型前发给 StatusSink 的提示
func LoadingMessage(mode model.Mode) string {
	return "Loading " + DisplayName(mode) + " model, please wait..."
}

// Render 把问答结果或错误转换为展示文本，任何输入都有输出
func Render(ans Answer, err error) string {
	if err == nil {
		if ans.Status != "" {
			return ans.Status
		}
		return Label(ans.Mode) + "\n" + ans.Text
	}
	switch {
	case errors.Is(err, errors.ErrImageRead):
		return "Could not read image: " + errors.Cause(err)
	case errors.Is(err, errors.ErrModelLoad):
		return "Failed to load " + DisplayName(ans.Mode) + " model: " + errors.Cause(err)
	case errors.Is(err, errors.ErrInference):
		return DisplayName(ans.Mode) + " inference failed: " + errors.Cause(err)
	case errors.Is(err, errors.ErrUnsupportedMode):
		return "Unsupported mode: " + errors.Cause(err)
	default:
		return "Error: " + err.Error()
	}
}
