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

package model

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"image-qa/internal/model/vision"
	"image-qa/pkg/errors"
	"image-qa/pkg/metrics"
	"image-qa/pkg/tracing"
)

// Mode 推理模式
type Mode string

const (
	ModeCaption Mode = "caption"
	ModeVQA     Mode = "vqa"
)

// Modes 全部已知模式
var Modes = []Mode{ModeCaption, ModeVQA}

// ParseMode 解析模式名（大小写不敏感）
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeCaption:
		return ModeCaption, nil
	case ModeVQA:
		return ModeVQA, nil
	default:
		return "", errors.Mark(fmt.Errorf("%q", s), errors.ErrUnsupportedMode)
	}
}

// State 模型加载状态
type State int

const (
	Unloaded State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "unloaded"
	}
}

// Factory 构建某一模式的模型；会在首次使用时被调用
type Factory func(ctx context.Context) (vision.Adapter, error)

// Registry 按模式懒加载模型：每种模式至多构建一次，构建失败不缓存
type Registry struct {
	mu        sync.Mutex
	factories map[Mode]Factory
	models    map[Mode]vision.Adapter
	loading   map[Mode]bool
	group     singleflight.Group
	logger    *slog.Logger
}

// NewRegistry 创建空注册表；logger 为 nil 时使用 slog.Default
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		factories: make(map[Mode]Factory),
		models:    make(map[Mode]vision.Adapter),
		loading:   make(map[Mode]bool),
		logger:    logger,
	}
}

// Register 注册某一模式的构建函数
func (r *Registry) Register(mode Mode, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[mode] = f
}

// GetOrCreate 返回该模式已加载的模型，未加载时构建并缓存
// 并发的首次请求只触发一次构建
func (r *Registry) GetOrCreate(ctx context.Context, mode Mode) (vision.Adapter, error) {
	r.mu.Lock()
	if m, ok := r.models[mode]; ok {
		r.mu.Unlock()
		return m, nil
	}
	factory, ok := r.factories[mode]
	r.mu.Unlock()
	if !ok {
		return nil, errors.Mark(fmt.Errorf("model not registered: %s", mode), errors.ErrUnsupportedMode)
	}

	v, err, _ := r.group.Do(string(mode), func() (interface{}, error) {
		r.mu.Lock()
		if m, ok := r.models[mode]; ok {
			r.mu.Unlock()
			return m, nil
		}
		r.loading[mode] = true
		r.mu.Unlock()

		// 构建由所有等待者共享，不随首个调用方取消
		m, err := r.build(context.WithoutCancel(ctx), mode, factory)

		r.mu.Lock()
		delete(r.loading, mode)
		if err == nil {
			r.models[mode] = m
		}
		r.mu.Unlock()
		return m, err
	})
	if err != nil {
		return nil, err
	}
	return v.(vision.Adapter), nil
}

func (r *Registry) build(ctx context.Context, mode Mode, factory Factory) (vision.Adapter, error) {
	ctx, span := tracing.StartLoadSpan(ctx, string(mode))
	defer span.End()

	start := time.Now()
	r.logger.Info("加载模型", "mode", mode)
	m, err := factory(ctx)
	metrics.ModelLoadDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
	if err == nil && m == nil {
		err = fmt.Errorf("factory returned no model")
	}
	if err != nil {
		tracing.RecordError(span, err)
		metrics.ModelLoadTotal.WithLabelValues(string(mode), "error").Inc()
		r.logger.Error("模型加载失败", "mode", mode, "error", err)
		if errors.Is(err, errors.ErrModelLoad) {
			return nil, err
		}
		return nil, errors.Mark(err, errors.ErrModelLoad)
	}
	metrics.ModelLoadTotal.WithLabelValues(string(mode), "ok").Inc()
	metrics.ModelReady.WithLabelValues(string(mode)).Set(1)
	r.logger.Info("模型已就绪", "mode", mode, "model", m.Name(), "elapsed", time.Since(start))
	return m, nil
}

// State 返回某一模式当前的加载状态
func (r *Registry) State(mode Mode) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[mode]; ok {
		return Ready
	}
	if r.loading[mode] {
		return Loading
	}
	return Unloaded
}

// Registered 返回已注册的模式（按名称排序）
func (r *Registry) Registered() []Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Mode, 0, len(r.factories))
	for m := range r.factories {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Loaded 返回已加载的模型名称
func (r *Registry) Loaded() map[Mode]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Mode]string, len(r.models))
	for mode, m := range r.models {
		out[mode] = m.Name()
	}
	return out
}

// Close 释放已加载的模型；实现了 io.Closer 的模型会被关闭
func (r *Registry) Close() error {
	r.mu.Lock()
	models := r.models
	r.models = make(map[Mode]vision.Adapter)
	r.mu.Unlock()

	var firstErr error
	for mode, m := range models {
		metrics.ModelReady.WithLabelValues(string(mode)).Set(0)
		if c, ok := m.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
