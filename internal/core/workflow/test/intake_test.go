// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package workflow_test

import (
	"testing"

	"github.com/jaycherian/gcp-go-media-annotator/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runIntake(h *harness, payload string) cor.Context {
	chCtx := cor.NewBaseContextWith(ctx)
	chCtx.Add(cor.CtxIn, payload)
	workflow.NewIntakeWorkflow(h.driver()).Execute(chCtx)
	return chCtx
}

func TestIntakeProcessesURL(t *testing.T) {
	h := newHarness(t, 60)
	h.deps.Resolver = &scratchResolver{root: h.config.Pipeline.TempDir}

	chCtx := runIntake(h, `{"url": "https://example.com/clip.mp4", "interval_seconds": 1}`)
	require.False(t, chCtx.HasErrors())

	summary := chCtx.Get(cor.CtxOut).(*workflow.Summary)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 2, summary.Frames)
}

func TestIntakeGCSNotification(t *testing.T) {
	h := newHarness(t, 30)
	h.deps.Resolver = &scratchResolver{root: h.config.Pipeline.TempDir}

	chCtx := runIntake(h, `{"kind": "storage#object", "bucket": "media", "name": "cam1/clip.mp4", "contentType": "video/mp4"}`)
	require.False(t, chCtx.HasErrors())

	frames, err := h.store.VideoFrameFileNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gs://media/cam1/clip.mp4"}, frames)
}

func TestIntakeAcksPermanentFailures(t *testing.T) {
	h := newHarness(t, 30)
	h.deps.Resolver = &scratchResolver{root: h.config.Pipeline.TempDir, fail: true}

	assert.False(t, runIntake(h, `{"url": "https://example.com/missing.mp4"}`).HasErrors())
	assert.False(t, runIntake(h, `not json`).HasErrors())
	assert.False(t, runIntake(h, `{"url": "no scheme"}`).HasErrors())
}

func TestIntakeNacksWhenRunAborts(t *testing.T) {
	h := newHarness(t, 30)
	h.deps.Resolver = &scratchResolver{root: h.config.Pipeline.TempDir}
	h.deps.Store = unreachableStore{Store: h.store}

	chCtx := runIntake(h, `{"url": "https://example.com/clip.mp4"}`)
	assert.True(t, chCtx.HasErrors())
}
