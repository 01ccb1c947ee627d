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

package dispatcher

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-qa/internal/imageref"
	"image-qa/internal/model"
	"image-qa/internal/model/vision"
	pkgerrors "image-qa/pkg/errors"
)

// recorder 按发生顺序记录事件
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) Status(msg string) { r.add("status:" + msg) }

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// echoAdapter 记录收到的问题
type echoAdapter struct {
	answer    string
	err       error
	questions []string
}

func (e *echoAdapter) Infer(ctx context.Context, img *imageref.Image, question string) (string, error) {
	e.questions = append(e.questions, question)
	if e.err != nil {
		return "", e.err
	}
	return e.answer, nil
}

func (e *echoAdapter) Name() string { return "echo" }

func writeImage(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	path := filepath.Join(t.TempDir(), "pic.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func newDispatcher(rec *recorder, adapters map[model.Mode]vision.Adapter, builds map[model.Mode]*int) *Dispatcher {
	reg := model.NewRegistry(nil)
	for mode, a := range adapters {
		mode, a := mode, a
		reg.Register(mode, func(ctx context.Context) (vision.Adapter, error) {
			rec.add("build:" + string(mode))
			*builds[mode]++
			return a, nil
		})
	}
	return New(reg, nil)
}

func TestAnswer_NoImage(t *testing.T) {
	rec := &recorder{}
	captionBuilds, vqaBuilds := 0, 0
	d := newDispatcher(rec,
		map[model.Mode]vision.Adapter{model.ModeCaption: &echoAdapter{}, model.ModeVQA: &echoAdapter{}},
		map[model.Mode]*int{model.ModeCaption: &captionBuilds, model.ModeVQA: &vqaBuilds})

	for _, mode := range model.Modes {
		ans, err := d.Answer(context.Background(), mode, "", "anything", rec)
		require.NoError(t, err)
		assert.Equal(t, NoImageMessage, Render(ans, err))
	}
	assert.Zero(t, captionBuilds)
	assert.Zero(t, vqaBuilds)
	assert.Empty(t, rec.list())
}

func TestAnswer_DefaultQuestion(t *testing.T) {
	path := writeImage(t)
	tests := []struct {
		mode model.Mode
		want string
	}{
		{model.ModeCaption, "Describe the image."},
		{model.ModeVQA, "What is in the image?"},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			rec := &recorder{}
			a := &echoAdapter{answer: "ok"}
			n := 0
			d := newDispatcher(rec, map[model.Mode]vision.Adapter{tt.mode: a}, map[model.Mode]*int{tt.mode: &n})

			for _, q := range []string{"", "   \t "} {
				ans, err := d.Answer(context.Background(), tt.mode, path, q, nil)
				require.NoError(t, err)
				assert.Equal(t, tt.want, ans.Question)
			}
			assert.Equal(t, []string{tt.want, tt.want}, a.questions)
		})
	}
}

func TestAnswer_TrimsQuestion(t *testing.T) {
	a := &echoAdapter{answer: "yes"}
	n := 0
	d := newDispatcher(&recorder{}, map[model.Mode]vision.Adapter{model.ModeVQA: a}, map[model.Mode]*int{model.ModeVQA: &n})
	_, err := d.Answer(context.Background(), model.ModeVQA, writeImage(t), "  Is it red?  ", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Is it red?"}, a.questions)
}

func TestAnswer_LoadingStatusBeforeBuildOnce(t *testing.T) {
	path := writeImage(t)
	rec := &recorder{}
	n := 0
	d := newDispatcher(rec,
		map[model.Mode]vision.Adapter{model.ModeCaption: &echoAdapter{answer: "A red pixel."}},
		map[model.Mode]*int{model.ModeCaption: &n})

	ans, err := d.Answer(context.Background(), model.ModeCaption, path, "", rec)
	require.NoError(t, err)
	assert.Equal(t, "Image-to-Text Answer:\nA red pixel.", Render(ans, err))

	_, err = d.Answer(context.Background(), model.ModeCaption, path, "again", rec)
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{
		"status:Loading Image-to-Text model, please wait...",
		"build:caption",
	}, rec.list())
}

func TestAnswer_VQALabel(t *testing.T) {
	n := 0
	d := newDispatcher(&recorder{},
		map[model.Mode]vision.Adapter{model.ModeVQA: &echoAdapter{answer: "yes"}},
		map[model.Mode]*int{model.ModeVQA: &n})
	rec := &recorder{}
	ans, err := d.Answer(context.Background(), model.ModeVQA, writeImage(t), "Is there a pixel?", rec)
	require.NoError(t, err)
	assert.Equal(t, "VQA Answer:\nyes", Render(ans, err))
	assert.Equal(t, []string{"status:Loading VQA model, please wait..."}, rec.list())
}

func TestAnswer_ImageReadError(t *testing.T) {
	n := 0
	d := newDispatcher(&recorder{},
		map[model.Mode]vision.Adapter{model.ModeVQA: &echoAdapter{answer: "yes"}},
		map[model.Mode]*int{model.ModeVQA: &n})

	missing := filepath.Join(t.TempDir(), "gone.jpg")
	ans, err := d.Answer(context.Background(), model.ModeVQA, missing, "q", nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrImageRead))
	assert.False(t, pkgerrors.Is(err, pkgerrors.ErrModelLoad))
	out := Render(ans, err)
	assert.Contains(t, out, "Could not read image: ")
	assert.Contains(t, out, "gone.jpg")
}

func TestAnswer_LoadFailureRetried(t *testing.T) {
	path := writeImage(t)
	reg := model.NewRegistry(nil)
	attempts := 0
	reg.Register(model.ModeVQA, func(ctx context.Context) (vision.Adapter, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("connection refused")
		}
		return &echoAdapter{answer: "no"}, nil
	})
	d := New(reg, nil)

	ans, err := d.Answer(context.Background(), model.ModeVQA, path, "q", nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrModelLoad))
	assert.Equal(t, "Failed to load VQA model: connection refused", Render(ans, err))

	rec := &recorder{}
	ans, err = d.Answer(context.Background(), model.ModeVQA, path, "q", rec)
	require.NoError(t, err)
	assert.Equal(t, "no", ans.Text)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, []string{"status:Loading VQA model, please wait..."}, rec.list())
}

func TestAnswer_InferenceError(t *testing.T) {
	n := 0
	d := newDispatcher(&recorder{},
		map[model.Mode]vision.Adapter{model.ModeVQA: &echoAdapter{err: errors.New("bad logits")}},
		map[model.Mode]*int{model.ModeVQA: &n})
	ans, err := d.Answer(context.Background(), model.ModeVQA, writeImage(t), "q", nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrInference))
	assert.Equal(t, "VQA inference failed: bad logits", Render(ans, err))
}

func TestAnswer_UnsupportedMode(t *testing.T) {
	d := New(model.NewRegistry(nil), nil)
	ans, err := d.Answer(context.Background(), model.Mode("ocr"), "x.png", "", nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrUnsupportedMode))
	assert.Contains(t, Render(ans, err), "Unsupported mode")
}

func TestAnswerText(t *testing.T) {
	d := New(model.NewRegistry(nil), nil)
	assert.Equal(t, NoImageMessage, d.AnswerText(context.Background(), model.ModeCaption, "", "", StatusFunc(func(string) {
		t.Fatal("no status expected without an image")
	})))
}

func TestRender_GenericError(t *testing.T) {
	assert.Equal(t, "Error: boom", Render(Answer{Mode: model.ModeCaption}, errors.New("boom")))
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Image-to-Text Model", SelectorLabel(model.ModeCaption))
	assert.Equal(t, "VQA Model", SelectorLabel(model.ModeVQA))
	assert.Equal(t, "Image-to-Text Answer:", Label(model.ModeCaption))
	assert.Equal(t, "VQA Answer:", Label(model.ModeVQA))
}
