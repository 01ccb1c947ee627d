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

package imageref

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-qa/pkg/errors"
)

func writePNG(t *testing.T, dir, name string, c color.Color) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestSupported(t *testing.T) {
	cases := map[string]bool{
		"a.jpg":      true,
		"a.JPEG":     true,
		"dir/b.png":  true,
		"c.bmp":      true,
		"d.gif":      false,
		"noext":      false,
		"e.png.txt":  false,
		"/x/y/Z.JpG": true,
	}
	for path, want := range cases {
		assert.Equal(t, want, Supported(path), path)
	}
}

func TestLoad_PNGToRGB(t *testing.T) {
	path := writePNG(t, t.TempDir(), "red.png", color.NRGBA{R: 200, G: 10, B: 20, A: 128})
	img, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIME)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())
	px := img.RGB.RGBAAt(0, 0)
	assert.Equal(t, uint8(200), px.R)
	assert.Equal(t, uint8(10), px.G)
	assert.Equal(t, uint8(20), px.B)
	assert.Equal(t, uint8(255), px.A)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.jpg"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrImageRead))
}

func TestLoad_NotAnImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.jpg")
	require.NoError(t, os.WriteFile(path, []byte("plain text, not pixels"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrImageRead))
	assert.Contains(t, err.Error(), "cannot identify image file")
}

func TestDataURL(t *testing.T) {
	path := writePNG(t, t.TempDir(), "blue.png", color.NRGBA{B: 255, A: 255})
	img, err := Load(path)
	require.NoError(t, err)
	url, err := img.DataURL()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "data:image/jpeg;base64,"))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, "data:image/jpeg;base64,"))
	require.NoError(t, err)
	decoded, err := Decode("roundtrip", raw)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", decoded.MIME)
}
