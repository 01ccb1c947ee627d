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
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
api:
  port: 9000
  host: "0.0.0.0"
log:
  level: "debug"
model:
  caption:
    backend: "openai"
    api_key: "${IMAGEQA_TEST_CAPTION_KEY}"
  vqa:
    strategy: "classify"
`
	path := filepath.Join(dir, "test.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	t.Setenv("IMAGEQA_TEST_CAPTION_KEY", "sk-test")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port: got %d", cfg.API.Port)
	}
	if cfg.API.Host != "0.0.0.0" {
		t.Errorf("API.Host: got %q", cfg.API.Host)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level: got %q", cfg.Log.Level)
	}
	if cfg.Model.Caption.Backend != "openai" {
		t.Errorf("Caption.Backend: got %q", cfg.Model.Caption.Backend)
	}
	if cfg.Model.Caption.APIKey != "sk-test" {
		t.Errorf("Caption.APIKey: got %q", cfg.Model.Caption.APIKey)
	}
	if cfg.Model.VQA.Strategy != "classify" {
		t.Errorf("VQA.Strategy: got %q", cfg.Model.VQA.Strategy)
	}
	// 未出现在文件中的键取默认值
	if cfg.Model.VQA.Model != DefaultVQAModel {
		t.Errorf("VQA.Model: got %q", cfg.Model.VQA.Model)
	}
	if cfg.Model.Caption.Model != DefaultCaptionModel {
		t.Errorf("Caption.Model: got %q", cfg.Model.Caption.Model)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Model.Caption.Backend != "pipeline" {
		t.Errorf("Caption.Backend: got %q", cfg.Model.Caption.Backend)
	}
	if cfg.Model.Caption.DecodePolicy != "fallback" {
		t.Errorf("Caption.DecodePolicy: got %q", cfg.Model.Caption.DecodePolicy)
	}
	if cfg.Model.VQA.DecodePolicy != "propagate" {
		t.Errorf("VQA.DecodePolicy: got %q", cfg.Model.VQA.DecodePolicy)
	}
	if cfg.Model.VQA.ImageSize != 384 {
		t.Errorf("VQA.ImageSize: got %d", cfg.Model.VQA.ImageSize)
	}
	if cfg.Device.Prefer != "auto" {
		t.Errorf("Device.Prefer: got %q", cfg.Device.Prefer)
	}
	if cfg.Guard.MaxConcurrent != 1 {
		t.Errorf("Guard.MaxConcurrent: got %d", cfg.Guard.MaxConcurrent)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("IMAGEQA_EXPAND", "value")
	cases := map[string]string{
		"plain":              "plain",
		"${IMAGEQA_EXPAND}":  "value",
		"$IMAGEQA_EXPAND":    "value",
		"${IMAGEQA_MISSING}": "",
	}
	for in, want := range cases {
		if got := expandEnv(in); got != want {
			t.Errorf("expandEnv(%q) = %q, want %q", in, got, want)
		}
	}
}
