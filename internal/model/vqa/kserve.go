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
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"image-qa/internal/device"
)

// Tensor 推理输出张量（数据按行优先展开）
type Tensor struct {
	Name     string
	Shape    []int64
	Datatype string
	Data     []float64
}

// Model 远程 VQA 模型：执行一次无梯度前向，返回指定输出
type Model interface {
	Run(ctx context.Context, in *Inputs, output string) (*Tensor, error)
}

// KServeModel 通过 KServe v2 / Open Inference Protocol 调用部署在推理服务上的模型
type KServeModel struct {
	client *resty.Client
	name   string
	device device.Target
}

type inferTensor struct {
	Name     string      `json:"name"`
	Shape    []int64     `json:"shape"`
	Datatype string      `json:"datatype"`
	Data     interface{} `json:"data"`
}

type inferOutput struct {
	Name string `json:"name"`
}

type inferRequest struct {
	ID         string                 `json:"id"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Inputs     []inferTensor          `json:"inputs"`
	Outputs    []inferOutput          `json:"outputs"`
}

// NewKServeModel 连接推理服务并确认模型就绪
func NewKServeModel(ctx context.Context, serverURL, name string, target device.Target, timeout time.Duration) (*KServeModel, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("vqa model requires server_url")
	}
	m := &KServeModel{
		client: resty.New().
			SetBaseURL(strings.TrimRight(serverURL, "/")).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		name:   name,
		device: target,
	}
	resp, err := m.client.R().SetContext(ctx).Get("/v2/models/" + name + "/ready")
	if err != nil {
		return nil, fmt.Errorf("inference server unreachable: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("model %s not ready: status %d", name, resp.StatusCode())
	}
	return m, nil
}

// Run 实现 Model；所选设备随每次请求发送
func (m *KServeModel) Run(ctx context.Context, in *Inputs, output string) (*Tensor, error) {
	size := int64(in.ImageSize)
	n := int64(len(in.InputIDs))
	req := inferRequest{
		ID:         uuid.NewString(),
		Parameters: map[string]interface{}{"device": m.device.String()},
		Inputs: []inferTensor{
			{Name: "pixel_values", Shape: []int64{1, 3, size, size}, Datatype: "FP32", Data: in.PixelValues},
			{Name: "input_ids", Shape: []int64{1, n}, Datatype: "INT64", Data: in.InputIDs},
			{Name: "attention_mask", Shape: []int64{1, n}, Datatype: "INT64", Data: in.AttentionMask},
		},
		Outputs: []inferOutput{{Name: output}},
	}

	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("/v2/models/" + m.name + "/infer")
	if err != nil {
		return nil, fmt.Errorf("调用推理服务失败: %w", err)
	}
	if resp.IsError() {
		msg := gjson.GetBytes(resp.Body(), "error").String()
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return nil, fmt.Errorf("推理服务返回错误: status %d: %s", resp.StatusCode(), msg)
	}
	return parseOutput(resp.Body(), output)
}

// parseOutput 从推理响应中取出指定名称的输出张量
func parseOutput(body []byte, name string) (*Tensor, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("inference response is not JSON")
	}
	out := gjson.GetBytes(body, fmt.Sprintf(`outputs.#(name==%q)`, name))
	if !out.Exists() {
		return nil, fmt.Errorf("inference response has no %q output", name)
	}
	t := &Tensor{Name: name, Datatype: out.Get("datatype").String()}
	for _, d := range out.Get("shape").Array() {
		if d.Int() < 0 {
			return nil, fmt.Errorf("output %q: negative dimension in shape %s", name, out.Get("shape").Raw)
		}
		t.Shape = append(t.Shape, d.Int())
	}
	for _, v := range out.Get("data").Array() {
		t.Data = append(t.Data, v.Float())
	}
	total := int64(1)
	for _, d := range t.Shape {
		total *= d
	}
	if len(t.Shape) == 0 || total != int64(len(t.Data)) {
		return nil, fmt.Errorf("output %q: shape %v does not match %d values", name, t.Shape, len(t.Data))
	}
	return t, nil
}

// Name 返回推理服务上的模型名
func (m *KServeModel) Name() string {
	return m.name
}

// Device 返回绑定的计算设备
func (m *KServeModel) Device() device.Target {
	return m.device
}
