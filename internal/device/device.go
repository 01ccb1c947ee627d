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

// Package device 查询本机可用的计算设备，返回 cpu | cuda | mps
package device

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Target 推理使用的计算设备
type Target string

const (
	CPU  Target = "cpu"
	CUDA Target = "cuda"
	MPS  Target = "mps"
)

// Prefer 设备偏好
const (
	PreferAuto        = "auto"
	PreferAccelerator = "accelerator"
	PreferCPU         = "cpu"
)

// Host 设备探测所依赖的环境查询，测试中可替换
type Host struct {
	GOOS     string
	GOARCH   string
	Stat     func(name string) (os.FileInfo, error)
	LookPath func(file string) (string, error)
}

// CurrentHost 使用真实运行环境的探测器
func CurrentHost() Host {
	return Host{
		GOOS:     runtime.GOOS,
		GOARCH:   runtime.GOARCH,
		Stat:     os.Stat,
		LookPath: exec.LookPath,
	}
}

// Detect 返回本机最佳可用设备：NVIDIA 设备优先，其次 Apple 芯片，否则 cpu
func (h Host) Detect() Target {
	if h.Stat != nil {
		if _, err := h.Stat("/dev/nvidia0"); err == nil {
			return CUDA
		}
	}
	if h.LookPath != nil {
		if _, err := h.LookPath("nvidia-smi"); err == nil {
			return CUDA
		}
	}
	if h.GOOS == "darwin" && h.GOARCH == "arm64" {
		return MPS
	}
	return CPU
}

// Resolve 按偏好确定设备；accelerator 在无加速器时报错，cpu 总是返回 cpu
func (h Host) Resolve(prefer string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(prefer)) {
	case "", PreferAuto:
		return h.Detect(), nil
	case PreferCPU:
		return CPU, nil
	case PreferAccelerator:
		if t := h.Detect(); t != CPU {
			return t, nil
		}
		return "", fmt.Errorf("no accelerator available on this host")
	default:
		return "", fmt.Errorf("unknown device preference %q", prefer)
	}
}

// Detect 使用真实环境探测
func Detect() Target {
	return CurrentHost().Detect()
}

// Resolve 使用真实环境按偏好确定设备
func Resolve(prefer string) (Target, error) {
	return CurrentHost().Resolve(prefer)
}

// String 实现 fmt.Stringer
func (t Target) String() string {
	return string(t)
}

// Accelerated 是否为加速设备
func (t Target) Accelerated() bool {
	return t == CUDA || t == MPS
}
