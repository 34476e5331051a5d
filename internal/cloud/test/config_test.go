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

package cloud_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-media-annotator/internal/cloud"
	test "github.com/jaycherian/gcp-go-media-annotator/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestDefaultsAreValid(t *testing.T) {
	c := cloud.NewConfig()
	require.NoError(t, c.Validate())
	assert.Equal(t, "./images_clips", c.Pipeline.RootDir)
	assert.Equal(t, "photo_collection", c.Store.Collection)
	assert.Equal(t, "llava:13b", c.Annotator.Model)
	assert.Equal(t, "nomic-embed-text:v1.5", c.Embedding.Model)
	assert.Equal(t, float32(0.2), c.Annotator.Temperature)
	assert.Equal(t, 2.0, c.Pipeline.BatchIntervalSeconds)
	assert.Equal(t, 10.0, c.Pipeline.URLIntervalSeconds)
	assert.Equal(t, 5, c.Query.DefaultCount)
}

func TestLoadTestConfiguration(t *testing.T) {
	c := test.GetConfig()
	assert.Equal(t, "media-annotator-test", c.Application.Name)
	assert.Equal(t, "debug", c.Application.LogLevel)
	assert.False(t, c.Pipeline.AuditEnabled)
	// Values only present in the base file survive the override.
	assert.Equal(t, "http://127.0.0.1:11434", c.Annotator.OllamaHost)
	// Prompt defaults survive a partial [annotator.prompts] table.
	assert.Equal(t, cloud.DefaultFrameObjectsPrompt, c.Annotator.Prompts.FrameObjects)
}

func TestLoadConfigRuntimeOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte("[store]\nbackend = \"sqlite\"\ncollection = \"a\"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.unit.toml"), []byte("[store]\ncollection = \"b\"\n"), 0o644))
	t.Setenv(cloud.EnvConfigFilePrefix, dir)
	t.Setenv(cloud.EnvConfigRuntime, "unit")

	c := cloud.NewConfig()
	require.NoError(t, cloud.LoadConfig(c))
	assert.Equal(t, "b", c.Store.Collection)
}

func TestLoadConfigDecodeError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte("[store\n"), 0o644))
	t.Setenv(cloud.EnvConfigFilePrefix, dir)
	t.Setenv(cloud.EnvConfigRuntime, "unit")

	err := cloud.LoadConfig(cloud.NewConfig())
	assert.ErrorContains(t, err, ".env.toml")
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("ANNOTATOR_LOG_FORMAT", "json")
	t.Setenv("ANNOTATOR_STORE_BACKEND", "postgres")
	t.Setenv("ANNOTATOR_STORE_POSTGRES_DSN", "postgres://localhost/annotations")
	t.Setenv("ANNOTATOR_VISION_MODEL", "llava:7b")

	c := cloud.NewConfig()
	require.NoError(t, c.ApplyEnvironment())
	assert.Equal(t, "json", c.Application.LogFormat)
	assert.Equal(t, "postgres", c.Store.Backend)
	assert.Equal(t, "postgres://localhost/annotations", c.Store.PostgresDSN)
	assert.Equal(t, "llava:7b", c.Annotator.Model)
	assert.NoError(t, c.Validate())
}

func TestValidateRejects(t *testing.T) {
	c := cloud.NewConfig()
	c.Store.Backend = "chroma"
	assert.Error(t, c.Validate())

	c = cloud.NewConfig()
	c.Store.Backend = cloud.BackendPostgres
	assert.Error(t, c.Validate(), "postgres needs a dsn")

	c = cloud.NewConfig()
	c.Pipeline.BatchIntervalSeconds = 0
	assert.Error(t, c.Validate())
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `[{"name":"a"}]`, cloud.StripCodeFence("```json\n[{\"name\":\"a\"}]\n```"))
	assert.Equal(t, `{"x":1}`, cloud.StripCodeFence("```\n{\"x\":1}\n```"))
	assert.Equal(t, "plain text", cloud.StripCodeFence("  plain text \n"))
}

func TestParseIntakeMessage(t *testing.T) {
	msg, err := cloud.ParseIntakeMessage([]byte(`{"url":"https://example.com/a.mp4","interval_seconds":5}`))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a.mp4", msg.URL)
	assert.Equal(t, 5.0, msg.IntervalSeconds)

	msg, err = cloud.ParseIntakeMessage([]byte(`{"kind":"storage#object","bucket":"cams","name":"front/2024-05-01.mp4","contentType":"video/mp4"}`))
	require.NoError(t, err)
	assert.Equal(t, "gs://cams/front/2024-05-01.mp4", msg.URL)

	_, err = cloud.ParseIntakeMessage([]byte(`{}`))
	assert.Error(t, err)
	_, err = cloud.ParseIntakeMessage([]byte(`not json`))
	assert.Error(t, err)
}

// flakyGenerator fails a fixed number of times before answering.
type flakyGenerator struct {
	failures int
	calls    int
}

func (f *flakyGenerator) GenerateContent(_ context.Context, _ string, _ []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("resource exhausted")
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: "```json\n[]\n```"}}}}},
	}, nil
}

func TestQuotaAwareModelRetries(t *testing.T) {
	gen := &flakyGenerator{failures: 2}
	m := cloud.NewQuotaAwareModel(&genai.GenerateContentConfig{}, "gemini", gen, 100)
	m.RetryDelay = time.Millisecond

	out, err := cloud.GenerateMultiModalResponse(context.Background(), nil, nil, m, genai.Text("hi"))
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
	assert.Equal(t, 3, gen.calls)
}

func TestQuotaAwareModelGivesUp(t *testing.T) {
	gen := &flakyGenerator{failures: 100}
	m := cloud.NewQuotaAwareModel(&genai.GenerateContentConfig{}, "gemini", gen, 100)
	m.RetryDelay = time.Millisecond

	_, err := m.GenerateContent(context.Background(), genai.Text("hi"))
	assert.ErrorContains(t, err, "resource exhausted")
	assert.Equal(t, cloud.MaxRetries+1, gen.calls)
}
