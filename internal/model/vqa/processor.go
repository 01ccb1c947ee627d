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

	"image-qa/internal/imageref"
)

// Inputs 一次推理的模型输入
type Inputs struct {
	PixelValues   []float32
	ImageSize     int
	InputIDs      []int64
	AttentionMask []int64
}

// Processor 把图片与问题编码为模型输入，并把输出 token 解码为文本
type Processor interface {
	Encode(img *imageref.Image, question string) (*Inputs, error)
	Decode(ids []int64) (string, error)
}

// BlipProcessor BLIP 风格的处理器：CLIP 归一化的方形图像 + WordPiece 问题
type BlipProcessor struct {
	tokenizer *Tokenizer
	imageSize int
	maxTokens int
}

// NewBlipProcessor 创建处理器
func NewBlipProcessor(tk *Tokenizer, imageSize, maxTokens int) *BlipProcessor {
	if imageSize <= 0 {
		imageSize = 384
	}
	return &BlipProcessor{tokenizer: tk, imageSize: imageSize, maxTokens: maxTokens}
}

// Encode 实现 Processor
func (p *BlipProcessor) Encode(img *imageref.Image, question string) (*Inputs, error) {
	if img == nil || img.RGB == nil {
		return nil, fmt.Errorf("no image to encode")
	}
	ids, err := p.tokenizer.Encode(question, p.maxTokens)
	if err != nil {
		return nil, err
	}
	mask := make([]int64, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	return &Inputs{
		PixelValues:   PixelValues(img.RGB, p.imageSize),
		ImageSize:     p.imageSize,
		InputIDs:      ids,
		AttentionMask: mask,
	}, nil
}

// Decode 实现 Processor，去掉特殊 token
func (p *BlipProcessor) Decode(ids []int64) (string, error) {
	return p.tokenizer.Decode(ids, true)
}
