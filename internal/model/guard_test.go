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

package model

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-qa/internal/imageref"
)

// slowAdapter 记录同时在执行的推理数
type slowAdapter struct {
	inFlight atomic.Int64
	peak     atomic.Int64
}

func (s *slowAdapter) Infer(ctx context.Context, img *imageref.Image, question string) (string, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	return "done", nil
}

func (s *slowAdapter) Name() string { return "slow" }

func TestGuardedAdapter_Serializes(t *testing.T) {
	inner := &slowAdapter{}
	a := Guarded(ModeVQA, inner, NewGuard(GuardConfig{}))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := a.Infer(context.Background(), nil, "q")
			assert.NoError(t, err)
			assert.Equal(t, "done", out)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, inner.peak.Load())
	assert.Equal(t, "slow", a.Name())
}

func TestGuard_ContextCancelled(t *testing.T) {
	g := NewGuard(GuardConfig{MaxConcurrent: 1})
	require.NoError(t, g.Wait(context.Background()))
	defer g.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := g.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGuard_Stats(t *testing.T) {
	g := NewGuard(GuardConfig{MaxConcurrent: 2, RequestsPerMinute: 120})
	require.NoError(t, g.Wait(context.Background()))
	stats := g.Stats()
	assert.Equal(t, 2, stats["max_concurrent"])
	assert.Equal(t, 1, stats["in_flight"])
	assert.Equal(t, 1, stats["available_slots"])
	g.Release()
	assert.Equal(t, 0, g.Stats()["in_flight"])
}
