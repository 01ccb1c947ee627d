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

// Package tracing 提供 OpenTelemetry 初始化与问答链路的 span 辅助
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "image-qa"

// OTelConfig OpenTelemetry 配置
type OTelConfig struct {
	ServiceName    string
	ExportEndpoint string
	Insecure       bool
}

// InitTracer 初始化 OpenTelemetry tracer
func InitTracer(config OTelConfig) (*sdktrace.TracerProvider, error) {
	ctx := context.Background()

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.ExportEndpoint),
	}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}

// StartAnswerSpan 开始一次问答请求的 span
func StartAnswerSpan(ctx context.Context, requestID string, mode string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "answer.dispatch",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.String("answer.mode", mode),
		),
	)
}

// StartLoadSpan 开始模型构建 span
func StartLoadSpan(ctx context.Context, mode string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "model.load",
		trace.WithAttributes(
			attribute.String("answer.mode", mode),
		),
	)
}

// StartInferSpan 开始单次推理 span
func StartInferSpan(ctx context.Context, mode string, adapter string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "model.infer",
		trace.WithAttributes(
			attribute.String("answer.mode", mode),
			attribute.String("model.adapter", adapter),
		),
	)
}

// RecordError 在 span 上记录错误并标记状态
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
