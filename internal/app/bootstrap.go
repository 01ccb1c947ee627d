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

package app

import (
	"context"
	"fmt"
	"os"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"image-qa/internal/device"
	"image-qa/internal/dispatcher"
	"image-qa/internal/model"
	"image-qa/pkg/config"
	"image-qa/pkg/log"
	"image-qa/pkg/tracing"
)

// Bootstrap 统一初始化：供 api 与 cli 复用，避免在 cmd 内写装配逻辑
type Bootstrap struct {
	Config     *config.Config
	Logger     *log.Logger
	Device     device.Target
	Registry   *model.Registry
	Dispatcher *dispatcher.Dispatcher
	Guards     map[model.Mode]*model.Guard
	// Tracer 启用链路追踪时的 TracerProvider，否则为 nil
	Tracer     *sdktrace.TracerProvider
}

// NewBootstrap 根据配置创建 Bootstrap（日志、设备、模型注册表、问答调度）
// 只注册模型构建函数，模型在首次使用时才加载
func NewBootstrap(cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		var err error
		if cfg, err = config.LoadConfig(""); err != nil {
			return nil, err
		}
	}
	logger, err := log.NewLogger(LogConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	target, err := device.Resolve(cfg.Device.Prefer)
	if err != nil {
		return nil, fmt.Errorf("选择计算设备失败: %w", err)
	}

	tp, err := InitTracing(cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化链路追踪失败: %w", err)
	}
	if tp != nil {
		logger.Info("链路追踪已启用", "service_name", cfg.Monitoring.Tracing.ServiceName)
	}

	registry := model.NewRegistry(logger.Logger)
	guards, err := RegisterModels(registry, cfg, target)
	if err != nil {
		return nil, err
	}
	logger.Info("模型已注册（首次使用时加载）", "device", target, "caption_model", cfg.Model.Caption.Model, "vqa_model", cfg.Model.VQA.Model)

	return &Bootstrap{
		Config:     cfg,
		Logger:     logger,
		Device:     target,
		Registry:   registry,
		Dispatcher: dispatcher.New(registry, logger.Logger),
		Guards:     guards,
		Tracer:     tp,
	}, nil
}

// InitTracing monitoring.tracing.enable 且有导出地址时安装 OpenTelemetry TracerProvider
// 导出地址为空时读取 OTEL_EXPORTER_OTLP_ENDPOINT；未启用返回 nil
func InitTracing(cfg *config.Config) (*sdktrace.TracerProvider, error) {
	tc := cfg.Monitoring.Tracing
	if !tc.Enable {
		return nil, nil
	}
	endpoint := tc.ExportEndpoint
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if endpoint == "" {
		return nil, nil
	}
	serviceName := tc.ServiceName
	if serviceName == "" {
		serviceName = "image-qa"
	}
	return tracing.InitTracer(tracing.OTelConfig{
		ServiceName:    serviceName,
		ExportEndpoint: endpoint,
		Insecure:       tc.Insecure,
	})
}

// LogConfig 将 config.LogConfig 转为 log.Config
func LogConfig(cfg *config.Config) *log.Config {
	if cfg == nil {
		return &log.Config{}
	}
	return &log.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}
}

// Close 释放已加载的模型，并刷新、关闭链路追踪
func (b *Bootstrap) Close() error {
	err := b.Registry.Close()
	if b.Tracer != nil {
		if terr := b.Tracer.Shutdown(context.Background()); terr != nil && err == nil {
			err = terr
		}
		b.Tracer = nil
	}
	return err
}
