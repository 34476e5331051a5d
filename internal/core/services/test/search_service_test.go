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

package services_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/services"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/store"
	test "github.com/jaycherian/gcp-go-media-annotator/internal/testutil"
	"github.com/zeebo/assert"
)

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "db"), "photo_collection")
	assert.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func addRecord(t *testing.T, s store.Store, embedder *test.FakeEmbedder, record model.Record) {
	t.Helper()
	vector, err := embedder.Embed(context.Background(), record.PageContent())
	assert.NoError(t, err)
	assert.NoError(t, s.Add(context.Background(), model.NewDocument(record, vector)))
}

func TestSearchServiceFind(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	embedder := test.NewFakeEmbedder()

	addRecord(t, s, embedder, model.NewImageRecord("cars.jpg", model.ImageMetadata{},
		[]model.DetectedObject{{Name: "car", Description: "red sports car"}}, "A red car on a street.", "m"))
	addRecord(t, s, embedder, model.NewImageRecord("forest.jpg", model.ImageMetadata{},
		[]model.DetectedObject{{Name: "tree", Description: "pine"}}, "A pine forest in winter.", "m"))
	addRecord(t, s, embedder, model.NewVideoFrameRecord("cam1/yard.mp4", &model.FrameSample{FrameNumber: 30, Timestamp: 1},
		nil, "An empty yard at night.", "m"))

	search := &services.SearchService{Embedder: embedder, Store: s}
	results, err := search.Find(ctx, "red car street", 2)
	assert.NoError(t, err)
	assert.Equal(t, len(results), 2)
	assert.Equal(t, results[0].FileName(), "cars.jpg")
	assert.That(t, results[0].Distance <= results[1].Distance)
}

func TestSearchServiceRejectsBadInput(t *testing.T) {
	search := &services.SearchService{Embedder: test.NewFakeEmbedder(), Store: newStore(t)}

	_, err := search.Find(context.Background(), "   ", 5)
	assert.That(t, errors.Is(err, services.ErrEmptyQuery))

	_, err = search.Find(context.Background(), "cars", 0)
	assert.Error(t, err)
}

func TestSearchServiceEmbeddingFailure(t *testing.T) {
	embedder := &test.FakeEmbedder{Dimensions: 8, Err: errors.New("model not loaded")}
	search := &services.SearchService{Embedder: embedder, Store: newStore(t)}
	_, err := search.Find(context.Background(), "cars", 5)
	assert.Error(t, err)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, services.Preview("short", 200), "short")
	assert.Equal(t, services.Preview("héllo wörld", 5), "héllo...")
	assert.Equal(t, services.Preview(strings.Repeat("a", 201), 200), strings.Repeat("a", 200)+"...")
}

func TestFormatImage(t *testing.T) {
	record := model.NewImageRecord("cars.jpg", model.ImageMetadata{Make: "Canon", Model: "EOS R5"},
		[]model.DetectedObject{{Name: "car", Description: "red"}}, "A red car.", "m")
	r := &model.SearchResult{PageContent: record.PageContent(), Metadata: record.Metadata()}

	out := services.Format(1, r, 200)
	assert.That(t, strings.HasPrefix(out, "Result 1:\n"))
	assert.That(t, strings.Contains(out, "  File: cars.jpg\n"))
	assert.That(t, strings.Contains(out, "  Type: image\n"))
	assert.That(t, strings.Contains(out, "  Objects: car - red\n"))
	assert.That(t, strings.Contains(out, "  Camera: Canon EOS R5\n"))
	assert.That(t, !strings.Contains(out, "Time:"))
}

func TestFormatVideoFrameWithoutObjects(t *testing.T) {
	record := model.NewVideoFrameRecord("yard.mp4", &model.FrameSample{FrameNumber: 60, Timestamp: 2}, nil, "Empty yard.", "m")
	r := &model.SearchResult{PageContent: record.PageContent(), Metadata: record.Metadata()}

	out := services.Format(3, r, 200)
	assert.That(t, strings.Contains(out, "  Type: video_frame\n"))
	assert.That(t, strings.Contains(out, "  Time: 2s (Frame 60)\n"))
	assert.That(t, !strings.Contains(out, "Objects:"))
	assert.That(t, !strings.Contains(out, "Camera:"))
}
