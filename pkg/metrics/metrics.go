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

package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API/CLI 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		ModelLoadDuration, ModelLoadTotal, ModelReady,
		AnswerTotal, InferenceDuration,
		GuardWaitSeconds,
	)
}

// ModelLoadDuration 模型构建耗时（秒）
var ModelLoadDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "imageqa_model_load_duration_seconds",
		Help:    "模型构建耗时（秒）",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	},
	[]string{"mode"},
)

// ModelLoadTotal 模型构建次数（按结果）
var ModelLoadTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "imageqa_model_load_total",
		Help: "模型构建次数",
	},
	[]string{"mode", "result"}, // ok | error
)

// ModelReady 模型是否已就绪（0/1）
var ModelReady = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "imageqa_model_ready",
		Help: "模型是否已就绪",
	},
	[]string{"mode"},
)

// AnswerTotal 问答请求总数（按结果）
var AnswerTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "imageqa_answer_total",
		Help: "问答请求总数",
	},
	[]string{"mode", "result"}, // ok | no_image | image_error | load_error | infer_error
)

// InferenceDuration 单次推理耗时（秒）
var InferenceDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "imageqa_inference_duration_seconds",
		Help:    "单次推理耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"mode"},
)

// GuardWaitSeconds 等待设备占用释放的时间（秒）
var GuardWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "imageqa_guard_wait_seconds",
		Help:    "等待设备并发/节流的时间（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"mode"},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 与 CLI 复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
