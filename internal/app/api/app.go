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

package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"image-qa/internal/api/http"
	"image-qa/internal/api/http/middleware"
	"image-qa/internal/app"
	"image-qa/pkg/log"
)

// App API 应用（装配 HTTP Router、Handler、Middleware；仅依赖 Bootstrap）
type App struct {
	bootstrap *app.Bootstrap
	router    *http.Router
	hertz     *server.Hertz
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	if bootstrap == nil || bootstrap.Dispatcher == nil {
		return nil, fmt.Errorf("bootstrap 未初始化")
	}
	handler := http.NewHandler(bootstrap.Dispatcher, bootstrap.Registry)
	handler.SetGuards(bootstrap.Guards)
	handler.SetDevice(bootstrap.Device)
	return &App{
		bootstrap: bootstrap,
		router:    http.NewRouter(handler, middleware.NewMiddleware()),
	}, nil
}

// Run 启动 HTTP 服务，addr 如 "127.0.0.1:8090"
func (a *App) Run(addr string) error {
	cfg := a.bootstrap.Config
	a.bootstrap.Logger.Info("API 服务启动", "addr", addr)

	// 使用 Hertz slog 扩展，与 bootstrap 日志输出和级别对齐
	levelVar := &slog.LevelVar{}
	levelVar.Set(log.ParseLevel(cfg.Log.Level))
	hertzLogger := hertzslog.NewLogger(
		hertzslog.WithOutput(a.bootstrap.Logger.Writer()),
		hertzslog.WithLevel(levelVar),
	)
	hlog.SetLogger(hertzLogger)

	// Bootstrap 已安装 TracerProvider 时为服务端请求创建 span
	if a.bootstrap.Tracer != nil {
		tracerOpt, tcfg := hertztracing.NewServerTracer()
		a.hertz = a.router.Build(addr, tracerOpt)
		a.hertz.Use(hertztracing.ServerMiddleware(tcfg))
	} else {
		a.hertz = a.router.Build(addr)
	}
	return a.hertz.Run()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	return a.bootstrap.Close()
}
