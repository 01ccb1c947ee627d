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

// Package imageref 负责用户选择的图片：扩展名校验、按内容识别格式、解码并转换为 RGB
package imageref

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"

	"image-qa/pkg/errors"
)

// SupportedExtensions 选择图片时接受的扩展名（小写）
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}

// 可解码的实际格式，按内容识别，不信任扩展名
var decodableMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/bmp":  true,
}

// Image 已解码的 RGB 图像
type Image struct {
	Path string
	MIME string
	RGB  *image.RGBA
}

// Supported 判断路径扩展名是否在可选范围内（大小写不敏感）
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Load 读取并解码图片，失败时返回 errors.ErrImageRead 分类的错误
func Load(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Mark(err, errors.ErrImageRead)
	}
	return Decode(path, data)
}

// Decode 从内存字节解码图片；path 仅用于标识
func Decode(path string, data []byte) (*Image, error) {
	mtype := mimetype.Detect(data)
	if !decodableMIME[mtype.String()] {
		return nil, errors.Mark(fmt.Errorf("cannot identify image file %q (%s)", path, mtype.String()), errors.ErrImageRead)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Mark(fmt.Errorf("decode %q: %w", path, err), errors.ErrImageRead)
	}
	return &Image{Path: path, MIME: mtype.String(), RGB: ToRGB(src)}, nil
}

// ToRGB 丢弃 alpha 通道，得到不透明的三通道图像
func ToRGB(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			dst.SetRGBA(x-b.Min.X, y-b.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return dst
}

// Bounds 图像尺寸
func (img *Image) Bounds() image.Rectangle {
	return img.RGB.Bounds()
}

// JPEG 将 RGB 图像编码为 JPEG，供远程推理后端上传
func (img *Image) JPEG() ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img.RGB, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL 返回 data:image/jpeg;base64,... 形式的图片地址
func (img *Image) DataURL() (string, error) {
	data, err := img.JPEG()
	if err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data), nil
}
