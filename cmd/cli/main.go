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
	"os"
	"os/exec"
	"strings"

	"image-qa/internal/app"
	"image-qa/internal/dispatcher"
	"image-qa/internal/model"
	"image-qa/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}
	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "version":
		fmt.Println("image-qa cli 0.1.0")
	case "health":
		runHealth()
	case "config":
		runConfig()
	case "server":
		if len(args) > 0 && args[0] == "start" {
			runServerStart()
		} else {
			fmt.Fprintf(os.Stderr, "Usage: imageqa server start\n")
			os.Exit(1)
		}
	case "ask":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "Usage: imageqa ask <caption|vqa> <image> [question]\n")
			os.Exit(1)
		}
		os.Exit(runAsk(args[0], args[1], strings.Join(args[2:], " ")))
	case "remote":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "Usage: imageqa remote <caption|vqa> <image> [question]\n")
			os.Exit(1)
		}
		runRemote(args[0], args[1], strings.Join(args[2:], " "))
	case "models":
		runModels()
	case "metrics":
		runMetrics()
	case "shell":
		runShell()
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: imageqa <command> [args]")
	fmt.Println("  version         - 显示版本")
	fmt.Println("  health          - 检查 API 服务（IMAGEQA_API_URL）")
	fmt.Println("  config          - 显示配置概要")
	fmt.Println("  server start    - 启动 API 服务（go run ./cmd/api）")
	fmt.Println("  ask <mode> <image> [question]    - 本进程加载模型并回答（mode: caption | vqa）")
	fmt.Println("  remote <mode> <image> [question] - 通过 API 服务回答")
	fmt.Println("  models          - 列出 API 服务上的模型状态")
	fmt.Println("  metrics         - 输出 API 服务的 Prometheus 指标")
	fmt.Println("  shell           - 交互式问答（open / caption / vqa / image / models / quit）")
}

func loadConfig() *config.Config {
	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func runConfig() {
	cfg := loadConfig()
	fmt.Printf("api.host=%s\n", cfg.API.Host)
	fmt.Printf("api.port=%d\n", cfg.API.Port)
	fmt.Printf("model.caption.backend=%s\n", cfg.Model.Caption.Backend)
	fmt.Printf("model.caption.model=%s\n", cfg.Model.Caption.Model)
	fmt.Printf("model.vqa.model=%s\n", cfg.Model.VQA.Model)
	fmt.Printf("model.vqa.strategy=%s\n", cfg.Model.VQA.Strategy)
	fmt.Printf("device.prefer=%s\n", cfg.Device.Prefer)
}

func runHealth() {
	out, err := getHealth()
	if err != nil {
		fmt.Fprintf(os.Stderr, "API 服务不可用: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(out))
}

func runServerStart() {
	c := exec.Command("go", "run", "./cmd/api")
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	c.Dir = "."
	if err := c.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "server start: %v\n", err)
		os.Exit(1)
	}
}

// runAsk 在本进程内加载模型并回答一次，返回退出码
func runAsk(modeName, image, question string) int {
	mode, err := model.ParseMode(modeName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "未知模式 %q，可选 caption | vqa\n", modeName)
		return 1
	}
	bootstrap, err := app.NewBootstrap(loadConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化失败: %v\n", err)
		return 1
	}
	defer bootstrap.Close()

	sink := dispatcher.StatusFunc(func(msg string) { fmt.Fprintln(os.Stderr, msg) })
	ans, err := bootstrap.Dispatcher.Answer(context.Background(), mode, image, question, sink)
	fmt.Println(dispatcher.Render(ans, err))
	if err != nil {
		return 1
	}
	return 0
}

func runRemote(mode, image, question string) {
	out, err := remoteAnswer(mode, image, question)
	if err != nil {
		fmt.Fprintf(os.Stderr, "请求失败: %v\n", err)
		os.Exit(1)
	}
	if statuses, ok := out["status"].([]interface{}); ok {
		for _, s := range statuses {
			fmt.Fprintln(os.Stderr, s)
		}
	}
	display, _ := out["display"].(string)
	if display == "" {
		display = prettyJSON(out)
	}
	fmt.Println(display)
	if _, failed := out["error"]; failed {
		os.Exit(1)
	}
}

func runModels() {
	out, err := listModels()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取模型状态失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(out))
}

func runMetrics() {
	out, err := fetchMetrics()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取指标失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(out)
}
