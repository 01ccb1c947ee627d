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
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// tokenizerFile 模型仓库中的分词器文件名
const tokenizerFile = "tokenizer.json"

// Hub 模型仓库文件下载与本地缓存
type Hub struct {
	client   *resty.Client
	cacheDir string
}

// NewHub 创建 Hub；hubURL 如 https://huggingface.co
// cacheDir 为空时使用系统临时目录下的 image-qa
func NewHub(hubURL, cacheDir string, timeout time.Duration) *Hub {
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "image-qa")
	}
	return &Hub{
		client:   resty.New().SetBaseURL(strings.TrimRight(hubURL, "/")).SetTimeout(timeout),
		cacheDir: cacheDir,
	}
}

// cachePath 模型文件在本地缓存中的位置：<cache>/<org>--<name>/<file>
func (h *Hub) cachePath(modelID, file string) string {
	return filepath.Join(h.cacheDir, strings.ReplaceAll(modelID, "/", "--"), file)
}

// FetchFile 返回模型文件在本地缓存中的路径，未命中时下载并写入缓存
func (h *Hub) FetchFile(ctx context.Context, modelID, file string) (string, error) {
	path := h.cachePath(modelID, file)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	resp, err := h.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/%s/resolve/main/%s", modelID, file))
	if err != nil {
		return "", fmt.Errorf("download %s/%s: %w", modelID, file, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("download %s/%s: status %d", modelID, file, resp.StatusCode())
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}
	tmp := path + ".part"
	if err := os.WriteFile(tmp, resp.Body(), 0o644); err != nil {
		return "", fmt.Errorf("write cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("write cache: %w", err)
	}
	return path, nil
}

// LoadTokenizer 拉取并解析模型的 tokenizer.json
func (h *Hub) LoadTokenizer(ctx context.Context, modelID string) (*Tokenizer, error) {
	path, err := h.FetchFile(ctx, modelID, tokenizerFile)
	if err != nil {
		return nil, err
	}
	return LoadTokenizerFile(path)
}
