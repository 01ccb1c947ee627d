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

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// 默认模型标识（按标识在加载时拉取）
const (
	DefaultCaptionModel = "smolagents/SmolVLM2-2.2B-Instruct-Agentic-GUI"
	DefaultVQAModel     = "Salesforce/blip-vqa-small"
)

// DefaultConfigPath 默认配置文件路径
const DefaultConfigPath = "configs/imageqa.yaml"

// Config 应用配置结构体
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	API        APIConfig        `mapstructure:"api"`
	Model      ModelConfig      `mapstructure:"model"`
	Device     DeviceConfig     `mapstructure:"device"`
	Guard      GuardConfig      `mapstructure:"guard"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// AppConfig 应用基本信息
type AppConfig struct {
	Name string `mapstructure:"name"`
}

// APIConfig 本地 HTTP 服务配置
type APIConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// ModelConfig 两种模式的模型配置
type ModelConfig struct {
	Caption CaptionConfig `mapstructure:"caption"`
	VQA     VQAConfig     `mapstructure:"vqa"`
}

// CaptionConfig 图文生成（caption 模式）模型配置
type CaptionConfig struct {
	Backend      string `mapstructure:"backend"` // pipeline | openai | gemini
	Model        string `mapstructure:"model"`
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"`
	HealthPath   string `mapstructure:"health_path"` // pipeline 后端的就绪探测路径，空则跳过
	Timeout      string `mapstructure:"timeout"`
	MaxNewTokens int    `mapstructure:"max_new_tokens"`
	DecodePolicy string `mapstructure:"decode_policy"` // fallback | propagate
}

// VQAConfig 视觉问答（vqa 模式）模型配置
type VQAConfig struct {
	Model             string `mapstructure:"model"`
	ServerURL         string `mapstructure:"server_url"`   // KServe v2 推理服务地址
	ServerModel       string `mapstructure:"server_model"` // 推理服务上的模型名，空则取 Model 最后一段
	HubURL            string `mapstructure:"hub_url"`      // tokenizer 下载源
	CacheDir          string `mapstructure:"cache_dir"`
	Strategy          string `mapstructure:"strategy"` // generate | classify
	ImageSize         int    `mapstructure:"image_size"`
	MaxQuestionTokens int    `mapstructure:"max_question_tokens"`
	Timeout           string `mapstructure:"timeout"`
	DecodePolicy      string `mapstructure:"decode_policy"` // fallback | propagate
}

// DeviceConfig 计算设备偏好
type DeviceConfig struct {
	Prefer string `mapstructure:"prefer"` // auto | accelerator | cpu
}

// GuardConfig 每个模型绑定设备上的并发与节流
type GuardConfig struct {
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"` // <=0 不节流
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// setDefaults 未在配置文件中出现的键使用的默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "image-qa")
	v.SetDefault("api.host", "127.0.0.1")
	v.SetDefault("api.port", 8090)

	v.SetDefault("model.caption.backend", "pipeline")
	v.SetDefault("model.caption.model", DefaultCaptionModel)
	v.SetDefault("model.caption.base_url", "http://127.0.0.1:8000")
	v.SetDefault("model.caption.timeout", "300s")
	v.SetDefault("model.caption.max_new_tokens", 256)
	v.SetDefault("model.caption.decode_policy", "fallback")

	v.SetDefault("model.vqa.model", DefaultVQAModel)
	v.SetDefault("model.vqa.server_url", "http://127.0.0.1:8001")
	v.SetDefault("model.vqa.hub_url", "https://huggingface.co")
	v.SetDefault("model.vqa.cache_dir", defaultCacheDir())
	v.SetDefault("model.vqa.strategy", "generate")
	v.SetDefault("model.vqa.image_size", 384)
	v.SetDefault("model.vqa.max_question_tokens", 35)
	v.SetDefault("model.vqa.timeout", "120s")
	v.SetDefault("model.vqa.decode_policy", "propagate")

	v.SetDefault("device.prefer", "auto")
	v.SetDefault("guard.max_concurrent", 1)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("monitoring.tracing.service_name", "image-qa")
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + string(os.PathSeparator) + "image-qa"
	}
	return ".cache/image-qa"
}

// LoadConfig 加载配置文件；configPath 为空时只使用默认值与环境变量
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("IMAGEQA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("无法读取配置文件: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	return &config, nil
}

// LoadDefault 加载默认配置文件，不存在时退化为纯默认值
func LoadDefault() (*Config, error) {
	path := os.Getenv("IMAGEQA_CONFIG")
	if path == "" {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err != nil {
		return LoadConfig("")
	}
	return LoadConfig(path)
}

// replaceEnvVars 替换配置中 ${ENV} 形式的 API Key
func replaceEnvVars(config *Config) {
	config.Model.Caption.APIKey = expandEnv(config.Model.Caption.APIKey)
}

func expandEnv(s string) string {
	if !strings.HasPrefix(s, "$") {
		return s
	}
	envVar := strings.TrimPrefix(strings.TrimSuffix(s, "}"), "${")
	envVar = strings.TrimPrefix(envVar, "$")
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return ""
}
