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
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPixelValues_ShapeAndNormalization(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 7, 5))
	for y := 0; y < 5; y++ {
		for x := 0; x < 7; x++ {
			src.SetRGBA(x, y, color.RGBA{R: 255, G: 0, B: 128, A: 255})
		}
	}
	const size = 8
	out := PixelValues(src, size)
	require.Len(t, out, 3*size*size)

	plane := size * size
	wantR := (1 - imageMean[0]) / imageStd[0]
	wantG := (0 - imageMean[1]) / imageStd[1]
	wantB := (float32(128)/255 - imageMean[2]) / imageStd[2]
	for _, p := range []int{0, plane / 2, plane - 1} {
		assert.InDelta(t, wantR, out[p], 0.02)
		assert.InDelta(t, wantG, out[plane+p], 0.02)
		assert.InDelta(t, wantB, out[2*plane+p], 0.02)
	}
	for _, v := range out {
		assert.False(t, math.IsNaN(float64(v)))
	}
}
