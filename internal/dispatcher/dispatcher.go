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

// Package dispatcher 根据模式、图片与问题取得答案：确保模型已加载、调用模型并规整结果
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"image-qa/internal/imageref"
	"image-qa/internal/model"
	"image-qa/internal/model/vision"
	"image-qa/pkg/errors"
	"image-qa/pkg/metrics"
	"image-qa/pkg/tracing"
)

// StatusSink 接收模型加载等进度提示
type StatusSink interface {
	Status(msg string)
}

// StatusFunc 函数形式的 StatusSink
type StatusFunc func(msg string)

// Status 实现 StatusSink
func (f StatusFunc) Status(msg string) { f(msg) }

// Registry 按模式提供已加载模型
type Registry interface {
	GetOrCreate(ctx context.Context, mode model.Mode) (vision.Adapter, error)
	State(mode model.Mode) model.State
}

// Answer 一次问答的结果
type Answer struct {
	RequestID string     `json:"request_id"`
	Mode      model.Mode `json:"mode"`
	Question  string     `json:"question,omitempty"`
	Text      string     `json:"text,omitempty"`
	// Status 非空表示未执行推理（例如尚未选择图片），直接展示该提示
	Status string `json:"status,omitempty"`
}

// Dispatcher 同步执行问答
type Dispatcher struct {
	registry Registry
	logger   *slog.Logger
	load     func(path string) (*imageref.Image, error)
}

// New 创建 Dispatcher；logger 为 nil 时使用 slog.Default
func New(registry Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, logger: logger, load: imageref.Load}
}

// Answer 对 imagePath 指向的图片回答 question
// sink 可为 nil；模型未就绪时在加载前收到加载提示
func (d *Dispatcher) Answer(ctx context.Context, mode model.Mode, imagePath, question string, sink StatusSink) (Answer, error) {
	ans := Answer{RequestID: uuid.NewString(), Mode: mode}
	if mode != model.ModeCaption && mode != model.ModeVQA {
		return ans, errors.Mark(fmt.Errorf("%q", mode), errors.ErrUnsupportedMode)
	}

	if imagePath == "" {
		metrics.AnswerTotal.WithLabelValues(string(mode), "no_image").Inc()
		ans.Status = NoImageMessage
		return ans, nil
	}

	ans.Question = strings.TrimSpace(question)
	if ans.Question == "" {
		ans.Question = DefaultQuestion(mode)
	}

	ctx, span := tracing.StartAnswerSpan(ctx, ans.RequestID, string(mode))
	defer span.End()
	logger := d.logger.With("request_id", ans.RequestID, "mode", mode)

	if d.registry.State(mode) != model.Ready && sink != nil {
		sink.Status(LoadingMessage(mode))
	}
	adapter, err := d.registry.GetOrCreate(ctx, mode)
	if err != nil {
		tracing.RecordError(span, err)
		metrics.AnswerTotal.WithLabelValues(string(mode), "load_error").Inc()
		logger.Error("模型加载失败", "error", err)
		if !errors.Is(err, errors.ErrModelLoad) && !errors.Is(err, errors.ErrUnsupportedMode) {
			err = errors.Mark(err, errors.ErrModelLoad)
		}
		return ans, err
	}

	img, err := d.load(imagePath)
	if err != nil {
		tracing.RecordError(span, err)
		metrics.AnswerTotal.WithLabelValues(string(mode), "image_error").Inc()
		logger.Warn("图片读取失败", "path", imagePath, "error", err)
		if !errors.Is(err, errors.ErrImageRead) {
			err = errors.Mark(err, errors.ErrImageRead)
		}
		return ans, err
	}

	text, err := d.infer(ctx, mode, adapter, img, ans.Question)
	if err != nil {
		tracing.RecordError(span, err)
		metrics.AnswerTotal.WithLabelValues(string(mode), "infer_error").Inc()
		logger.Error("推理失败", "model", adapter.Name(), "error", err)
		if !errors.Is(err, errors.ErrInference) {
			err = errors.Mark(err, errors.ErrInference)
		}
		return ans, err
	}

	ans.Text = text
	metrics.AnswerTotal.WithLabelValues(string(mode), "ok").Inc()
	logger.Info("问答完成", "model", adapter.Name(), "question", ans.Question)
	return ans, nil
}

func (d *Dispatcher) infer(ctx context.Context, mode model.Mode, adapter vision.Adapter, img *imageref.Image, question string) (string, error) {
	ctx, span := tracing.StartInferSpan(ctx, string(mode), adapter.Name())
	defer span.End()
	start := time.Now()
	text, err := adapter.Infer(ctx, img, question)
	metrics.InferenceDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
	tracing.RecordError(span, err)
	return text, err
}

// AnswerText 执行问答并返回展示文本
func (d *Dispatcher) AnswerText(ctx context.Context, mode model.Mode, imagePath, question string, sink StatusSink) string {
	ans, err := d.Answer(ctx, mode, imagePath, question, sink)
	return Render(ans, err)
}
