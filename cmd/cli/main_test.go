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

package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"image-qa/internal/dispatcher"
	"image-qa/internal/model"
	"image-qa/internal/model/vision"
)

func writePNG(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, color.RGBA{G: 255, A: 255})
	path := filepath.Join(t.TempDir(), "cat.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestShell(t *testing.T) (*shell, *bytes.Buffer) {
	t.Helper()
	reg := model.NewRegistry(nil)
	reg.Register(model.ModeCaption, func(ctx context.Context) (vision.Adapter, error) {
		return &vision.StubAdapter{Answer: "a cat on a sofa"}, nil
	})
	reg.Register(model.ModeVQA, func(ctx context.Context) (vision.Adapter, error) {
		return &vision.StubAdapter{Answer: "yes"}, nil
	})
	out := &bytes.Buffer{}
	return newShell(dispatcher.New(reg, nil), reg, out), out
}

func TestShell_AskWithoutImage(t *testing.T) {
	sh, out := newTestShell(t)
	if sh.exec(context.Background(), "caption") {
		t.Fatal("caption should not quit")
	}
	if got := strings.TrimSpace(out.String()); got != dispatcher.NoImageMessage {
		t.Fatalf("output = %q", got)
	}
	if strings.Contains(out.String(), "Loading") {
		t.Error("no loading message expected without image")
	}
}

func TestShell_OpenThenAsk(t *testing.T) {
	sh, out := newTestShell(t)
	ctx := context.Background()
	sh.exec(ctx, "open "+writePNG(t))
	out.Reset()

	sh.exec(ctx, "vqa is there a cat?")
	got := out.String()
	if !strings.Contains(got, "Loading VQA model, please wait...") {
		t.Errorf("missing loading message: %q", got)
	}
	if !strings.Contains(got, "VQA Answer:\nyes") {
		t.Errorf("missing answer: %q", got)
	}

	// 第二次提问模型已就绪，不再提示加载
	out.Reset()
	sh.exec(ctx, "is it black?")
	if strings.Contains(out.String(), "Loading") {
		t.Errorf("unexpected loading message: %q", out.String())
	}
	if !strings.Contains(out.String(), "VQA Answer:\nyes") {
		t.Errorf("free text should use current mode: %q", out.String())
	}

	out.Reset()
	sh.exec(ctx, "models")
	if !strings.Contains(out.String(), "vqa\tstub") {
		t.Errorf("models output = %q", out.String())
	}
}

func TestShell_OpenRejectsUnsupported(t *testing.T) {
	sh, out := newTestShell(t)
	sh.exec(context.Background(), "open notes.txt")
	if sh.sel.Image() != "" {
		t.Fatal("unsupported file must not be selected")
	}
	if !strings.Contains(out.String(), "unsupported file type") {
		t.Errorf("output = %q", out.String())
	}
}

func TestShell_ModeAndQuit(t *testing.T) {
	sh, out := newTestShell(t)
	ctx := context.Background()
	sh.exec(ctx, "mode")
	if !strings.Contains(out.String(), "Image-to-Text Model") {
		t.Errorf("default mode output = %q", out.String())
	}
	out.Reset()
	sh.exec(ctx, "mode vqa")
	if sh.sel.Mode() != model.ModeVQA {
		t.Errorf("mode = %s", sh.sel.Mode())
	}
	out.Reset()
	sh.exec(ctx, "mode ocr")
	if sh.sel.Mode() != model.ModeVQA {
		t.Error("invalid mode must keep current selection")
	}
	if !sh.exec(ctx, "quit") {
		t.Error("quit should end the shell")
	}
}

func TestRemoteAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/answer" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"mode":"caption","display":"Image-to-Text Answer:\nA dog","status":["Loading Image-to-Text model, please wait..."]}`))
	}))
	defer srv.Close()
	t.Setenv("IMAGEQA_API_URL", srv.URL)

	out, err := remoteAnswer("caption", "/tmp/dog.png", "")
	if err != nil {
		t.Fatalf("remoteAnswer: %v", err)
	}
	if out["display"] != "Image-to-Text Answer:\nA dog" {
		t.Errorf("display = %v", out["display"])
	}
}

func TestGetHealth_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	t.Setenv("IMAGEQA_API_URL", srv.URL)

	if _, err := getHealth(); err == nil {
		t.Fatal("expected error for non-200 health")
	}
}
