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

package http

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"image-qa/internal/device"
	"image-qa/internal/dispatcher"
	"image-qa/internal/imageref"
	"image-qa/internal/model"
	"image-qa/internal/session"
	"image-qa/pkg/errors"
	"image-qa/pkg/metrics"
)

// ModelStatus 模型加载状态查询
type ModelStatus interface {
	State(mode model.Mode) model.State
	Loaded() map[model.Mode]string
}

// Handler HTTP 处理器
type Handler struct {
	dispatcher *dispatcher.Dispatcher
	models     ModelStatus
	selection  *session.Selection
	guards     map[model.Mode]*model.Guard
	device     device.Target
}

// NewHandler 创建新的 HTTP 处理器
func NewHandler(d *dispatcher.Dispatcher, models ModelStatus) *Handler {
	return &Handler{
		dispatcher: d,
		models:     models,
		selection:  session.New(),
		device:     device.CPU,
	}
}

// SetGuards 设置各模式的设备占用控制，用于 /api/models 展示
func (h *Handler) SetGuards(guards map[model.Mode]*model.Guard) {
	h.guards = guards
}

// SetDevice 设置当前计算设备，用于 /api/models 展示
func (h *Handler) SetDevice(t device.Target) {
	h.device = t
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"service":   "image-qa",
	})
}

type selectImageRequest struct {
	Path string `json:"path"`
}

// SelectImage 选择图片（整体替换上一次的选择）
func (h *Handler) SelectImage(ctx context.Context, c *app.RequestContext) {
	var req selectImageRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "请求体格式错误"})
		return
	}
	if req.Path == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "path is required"})
		return
	}
	if err := h.selection.SelectImage(req.Path); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, utils.H{"image": h.selection.Image()})
}

// GetImage 当前选择的图片
func (h *Handler) GetImage(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"image": h.selection.Image()})
}

// ClearImage 取消图片选择
func (h *Handler) ClearImage(ctx context.Context, c *app.RequestContext) {
	h.selection.Clear()
	c.JSON(consts.StatusOK, utils.H{"image": ""})
}

type answerRequest struct {
	Mode     string `json:"mode"`
	Question string `json:"question"`
	// Image 非空时使用该路径，否则使用当前选择
	Image string `json:"image"`
}

type answerResponse struct {
	RequestID string     `json:"request_id"`
	Mode      model.Mode `json:"mode"`
	Question  string     `json:"question,omitempty"`
	Answer    string     `json:"answer,omitempty"`
	Status    []string   `json:"status,omitempty"`
	Display   string     `json:"display"`
	Error     string     `json:"error,omitempty"`
}

// Answer 对图片提问，返回加载提示与答案
func (h *Handler) Answer(ctx context.Context, c *app.RequestContext) {
	var req answerRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "请求体格式错误"})
		return
	}
	mode := h.selection.Mode()
	if req.Mode != "" {
		m, err := model.ParseMode(req.Mode)
		if err != nil {
			c.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		mode = m
		h.selection.SetMode(m)
	}
	imagePath := h.selection.Image()
	if req.Image != "" {
		if !imageref.Supported(req.Image) {
			c.JSON(consts.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("%s: unsupported file type, choose one of %v", req.Image, imageref.SupportedExtensions),
			})
			return
		}
		imagePath = req.Image
	}

	var (
		mu       sync.Mutex
		statuses []string
	)
	sink := dispatcher.StatusFunc(func(msg string) {
		mu.Lock()
		statuses = append(statuses, msg)
		mu.Unlock()
	})
	ans, err := h.dispatcher.Answer(ctx, mode, imagePath, req.Question, sink)

	resp := answerResponse{
		RequestID: ans.RequestID,
		Mode:      ans.Mode,
		Question:  ans.Question,
		Answer:    ans.Text,
		Status:    statuses,
		Display:   dispatcher.Render(ans, err),
	}
	if ans.Status != "" {
		resp.Status = append(resp.Status, ans.Status)
	}
	if err != nil {
		hlog.CtxErrorf(ctx, "answer failed: request_id=%s mode=%s err=%v", ans.RequestID, mode, err)
		resp.Error = err.Error()
		c.JSON(statusFor(err), resp)
		return
	}
	c.JSON(consts.StatusOK, resp)
}

// statusFor 错误分类对应的 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrImageRead), errors.Is(err, errors.ErrUnsupportedMode):
		return consts.StatusBadRequest
	case errors.Is(err, errors.ErrModelLoad):
		return consts.StatusServiceUnavailable
	case errors.Is(err, errors.ErrInference):
		return consts.StatusBadGateway
	default:
		return consts.StatusInternalServerError
	}
}

type modelInfo struct {
	Mode  model.Mode             `json:"mode"`
	Label string                 `json:"label"`
	State string                 `json:"state"`
	Model string                 `json:"model,omitempty"`
	Guard map[string]interface{} `json:"guard,omitempty"`
}

// ListModels 两种模式的加载状态
func (h *Handler) ListModels(ctx context.Context, c *app.RequestContext) {
	loaded := h.models.Loaded()
	out := make([]modelInfo, 0, len(model.Modes))
	for _, mode := range model.Modes {
		info := modelInfo{
			Mode:  mode,
			Label: dispatcher.SelectorLabel(mode),
			State: h.models.State(mode).String(),
			Model: loaded[mode],
		}
		if g := h.guards[mode]; g != nil {
			info.Guard = g.Stats()
		}
		out = append(out, info)
	}
	c.JSON(consts.StatusOK, utils.H{"device": h.device, "models": out})
}

// Metrics Prometheus 文本格式指标
func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	c.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}
