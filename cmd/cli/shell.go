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
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/chzyer/readline"

	"image-qa/internal/app"
	"image-qa/internal/dispatcher"
	"image-qa/internal/model"
	"image-qa/internal/session"
	"image-qa/pkg/metrics"
)

// loadedModels 查询已加载模型
type loadedModels interface {
	Loaded() map[model.Mode]string
}

// shell 交互式问答：选图、切换模式、提问
type shell struct {
	d      *dispatcher.Dispatcher
	models loadedModels
	sel    *session.Selection
	out    io.Writer
}

func newShell(d *dispatcher.Dispatcher, models loadedModels, out io.Writer) *shell {
	return &shell{d: d, models: models, sel: session.New(), out: out}
}

func (s *shell) help() {
	fmt.Fprintln(s.out, "命令:")
	fmt.Fprintln(s.out, "  open <path>         选择图片（.jpg .jpeg .png .bmp）")
	fmt.Fprintln(s.out, "  image               显示当前图片")
	fmt.Fprintln(s.out, "  clear               取消图片选择")
	fmt.Fprintln(s.out, "  mode [caption|vqa]  显示或切换模式")
	fmt.Fprintln(s.out, "  caption [question]  以 Image-to-Text 模式提问")
	fmt.Fprintln(s.out, "  vqa [question]      以 VQA 模式提问")
	fmt.Fprintln(s.out, "  models              列出已加载模型")
	fmt.Fprintln(s.out, "  metrics             输出本进程指标")
	fmt.Fprintln(s.out, "  quit                退出")
	fmt.Fprintln(s.out, "其他输入按当前模式作为问题提交")
}

// exec 执行一行输入，返回 true 表示退出
func (s *shell) exec(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		s.help()
	case "open":
		if rest == "" {
			fmt.Fprintln(s.out, "Usage: open <path>")
			return false
		}
		if err := s.sel.SelectImage(rest); err != nil {
			fmt.Fprintln(s.out, err)
			return false
		}
		fmt.Fprintf(s.out, "已选择 %s\n", rest)
	case "image":
		if img := s.sel.Image(); img != "" {
			fmt.Fprintln(s.out, img)
		} else {
			fmt.Fprintln(s.out, dispatcher.NoImageMessage)
		}
	case "clear":
		s.sel.Clear()
	case "mode":
		if rest == "" {
			fmt.Fprintln(s.out, dispatcher.SelectorLabel(s.sel.Mode()))
			return false
		}
		mode, err := model.ParseMode(rest)
		if err != nil {
			fmt.Fprintln(s.out, err)
			return false
		}
		s.sel.SetMode(mode)
		fmt.Fprintln(s.out, dispatcher.SelectorLabel(mode))
	case "caption", "vqa":
		mode := model.Mode(cmd)
		s.sel.SetMode(mode)
		s.ask(ctx, mode, rest)
	case "models":
		loaded := s.models.Loaded()
		if len(loaded) == 0 {
			fmt.Fprintln(s.out, "尚未加载模型")
			return false
		}
		modes := make([]string, 0, len(loaded))
		for m := range loaded {
			modes = append(modes, string(m))
		}
		sort.Strings(modes)
		for _, m := range modes {
			fmt.Fprintf(s.out, "%s\t%s\n", m, loaded[model.Mode(m)])
		}
	case "metrics":
		if err := metrics.WritePrometheus(s.out); err != nil {
			fmt.Fprintln(s.out, err)
		}
	default:
		s.ask(ctx, s.sel.Mode(), line)
	}
	return false
}

func (s *shell) ask(ctx context.Context, mode model.Mode, question string) {
	sink := dispatcher.StatusFunc(func(msg string) { fmt.Fprintln(s.out, msg) })
	ans, err := s.d.Answer(ctx, mode, s.sel.Image(), question, sink)
	fmt.Fprintln(s.out, dispatcher.Render(ans, err))
}

func runShell() {
	bootstrap, err := app.NewBootstrap(loadConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化失败: %v\n", err)
		os.Exit(1)
	}
	defer bootstrap.Close()

	rl, err := readline.New("imageqa> ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	sh := newShell(bootstrap.Dispatcher, bootstrap.Registry, rl.Stdout())
	sh.help()
	ctx := context.Background()
	for {
		line, err := rl.Readline()
		if err != nil {
			// io.EOF 或 Ctrl-C
			return
		}
		if sh.exec(ctx, line) {
			return
		}
	}
}
