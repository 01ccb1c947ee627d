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
	"time"

	"golang.org/x/time/rate"

	"image-qa/internal/imageref"
	"image-qa/internal/model/vision"
	"image-qa/pkg/metrics"
)

// GuardConfig 设备占用控制：并发上限与每分钟请求数
type GuardConfig struct {
	MaxConcurrent     int
	RequestsPerMinute float64
}

// Guard 模型绑定设备的占用控制，默认同一时刻只允许一次推理
type Guard struct {
	requestLimiter *rate.Limiter // RPS 限流器
	semaphore      chan struct{} // 并发控制
	config         GuardConfig
}

// NewGuard 创建设备占用控制
func NewGuard(config GuardConfig) *Guard {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 1
	}
	g := &Guard{
		semaphore: make(chan struct{}, config.MaxConcurrent),
		config:    config,
	}
	if config.RequestsPerMinute > 0 {
		rps := config.RequestsPerMinute / 60.0
		burst := int(config.RequestsPerMinute / 60.0 * 2) // burst = 2 秒的配额
		if burst < 1 {
			burst = 1
		}
		g.requestLimiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return g
}

// Wait 等待获取执行许可（阻塞直到可以执行或 ctx 结束）
func (g *Guard) Wait(ctx context.Context) error {
	if g.requestLimiter != nil {
		if err := g.requestLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("request rate limit wait failed: %w", err)
		}
	}
	select {
	case g.semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release 释放并发 slot
func (g *Guard) Release() {
	select {
	case <-g.semaphore:
	default:
	}
}

// Stats 当前占用情况
func (g *Guard) Stats() map[string]interface{} {
	return map[string]interface{}{
		"max_concurrent":      g.config.MaxConcurrent,
		"requests_per_minute": g.config.RequestsPerMinute,
		"in_flight":           len(g.semaphore),
		"available_slots":     cap(g.semaphore) - len(g.semaphore),
	}
}

// GuardedAdapter 在推理前后执行设备占用控制
type GuardedAdapter struct {
	inner vision.Adapter
	guard *Guard
	mode  Mode
}

// Guarded 包装模型；guard 为 nil 时退化为直接调用
func Guarded(mode Mode, inner vision.Adapter, guard *Guard) *GuardedAdapter {
	return &GuardedAdapter{inner: inner, guard: guard, mode: mode}
}

// Infer 实现 vision.Adapter
func (a *GuardedAdapter) Infer(ctx context.Context, img *imageref.Image, question string) (string, error) {
	if a.guard != nil {
		start := time.Now()
		if err := a.guard.Wait(ctx); err != nil {
			return "", err
		}
		metrics.GuardWaitSeconds.WithLabelValues(string(a.mode)).Observe(time.Since(start).Seconds())
		defer a.guard.Release()
	}
	return a.inner.Infer(ctx, img, question)
}

// Name 返回底层模型名称
func (a *GuardedAdapter) Name() string { return a.inner.Name() }

// Guard 返回占用控制（可能为 nil）
func (a *GuardedAdapter) Guard() *Guard { return a.guard }

// Close 代理到底层模型
func (a *GuardedAdapter) Close() error {
	if c, ok := a.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
