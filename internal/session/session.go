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

// Package session 保存当前选择的图片路径与模式，供交互式外壳使用
package session

import (
	"fmt"
	"sync"

	"image-qa/internal/imageref"
	"image-qa/internal/model"
	"image-qa/pkg/errors"
)

// Selection 当前选择：每次选择新图片都完全替换旧路径
type Selection struct {
	mu    sync.RWMutex
	image string
	mode  model.Mode
}

// New 创建空选择，默认 caption 模式
func New() *Selection {
	return &Selection{mode: model.ModeCaption}
}

// SelectImage 选择图片；扩展名不在可选范围内时拒绝，保留原选择
func (s *Selection) SelectImage(path string) error {
	if !imageref.Supported(path) {
		return errors.Mark(fmt.Errorf("%s: unsupported file type, choose one of %v", path, imageref.SupportedExtensions), errors.ErrInvalidArg)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.image = path
	return nil
}

// Image 当前图片路径，未选择时为空
func (s *Selection) Image() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.image
}

// Clear 取消图片选择
func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.image = ""
}

// SetMode 切换模式
func (s *Selection) SetMode(mode model.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
}

// Mode 当前模式
func (s *Selection) Mode() model.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}
