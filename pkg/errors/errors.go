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

// Package errors 提供统一错误辅助与错误分类哨兵，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// 常用哨兵错误
var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidArg = errors.New("invalid argument")
)

// 问答链路的错误分类：调用方用 errors.Is 判断，再决定如何展示
var (
	// ErrUnsupportedMode 未知的推理模式
	ErrUnsupportedMode = errors.New("unsupported mode")
	// ErrImageRead 图片无法打开或解码（I/O 类错误，与模型加载失败区分）
	ErrImageRead = errors.New("could not read image")
	// ErrModelLoad 模型构建失败（网络、权重缺失、设备不可用）
	ErrModelLoad = errors.New("model load failed")
	// ErrInference 推理或解码失败
	ErrInference = errors.New("inference failed")
)

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Mark 将 cause 归入 kind 分类，errors.Is 对 kind 与 cause 均成立
func Mark(cause error, kind error) error {
	if cause == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

// Is 代理标准库 errors.Is，避免调用方同时导入两个 errors 包
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Cause 返回去掉分类前缀后的原始错误描述，用于面向用户的展示
func Cause(err error) string {
	if err == nil {
		return ""
	}
	for _, kind := range []error{ErrImageRead, ErrModelLoad, ErrInference, ErrUnsupportedMode} {
		if errors.Is(err, kind) {
			msg := err.Error()
			prefix := kind.Error() + ": "
			if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
				return msg[len(prefix):]
			}
			return msg
		}
	}
	return err.Error()
}
