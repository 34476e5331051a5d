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
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/services"
	test "github.com/jaycherian/gcp-go-media-annotator/internal/testutil"
	"github.com/zeebo/assert"
	"google.golang.org/api/option"
)

func seededMediaService(t *testing.T) *services.MediaService {
	t.Helper()
	s := newStore(t)
	embedder := test.NewFakeEmbedder()
	addRecord(t, s, embedder, model.NewImageRecord("b.jpg", model.ImageMetadata{}, nil, "b", "m"))
	addRecord(t, s, embedder, model.NewImageRecord("a.jpg", model.ImageMetadata{}, nil, "a", "m"))
	addRecord(t, s, embedder, model.NewVideoFrameRecord("gs://media/cam1/clip.mp4", &model.FrameSample{}, nil, "c", "m"))
	return &services.MediaService{Ledger: s}
}

func TestProcessedFiles(t *testing.T) {
	media := seededMediaService(t)

	names, err := media.ProcessedFiles(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, strings.Join(names, ","), "a.jpg,b.jpg,gs://media/cam1/clip.mp4")

	ok, err := media.IsProcessed(context.Background(), "a.jpg")
	assert.NoError(t, err)
	assert.That(t, ok)

	ok, err = media.IsProcessed(context.Background(), "a")
	assert.NoError(t, err)
	assert.That(t, !ok)
}

func TestStats(t *testing.T) {
	stats, err := seededMediaService(t).Stats(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, stats.Files, 3)
	assert.Equal(t, stats.Images, 2)
	assert.Equal(t, stats.Videos, 1)
}

func TestStreamURLRequiresSigner(t *testing.T) {
	media := seededMediaService(t)
	_, err := media.StreamURL(context.Background(), "gs://media/cam1/clip.mp4", time.Minute)
	assert.That(t, errors.Is(err, services.ErrNotSignable))
}

func TestStreamURL(t *testing.T) {
	ctx := context.Background()
	client, err := storage.NewClient(ctx, option.WithoutAuthentication())
	assert.NoError(t, err)
	defer client.Close()

	var signed int
	media := seededMediaService(t)
	media.StorageClient = client
	media.SignerEmail = "annotator@example.iam.gserviceaccount.com"
	media.Signer = func(_ context.Context, email string, payload []byte) ([]byte, error) {
		signed++
		assert.Equal(t, email, "annotator@example.iam.gserviceaccount.com")
		return []byte("signature"), nil
	}

	u, err := media.StreamURL(ctx, "gs://media/cam1/clip.mp4", 15*time.Minute)
	assert.NoError(t, err)
	assert.Equal(t, signed, 1)
	assert.That(t, strings.Contains(u, "/media/cam1/clip.mp4"))
	assert.That(t, strings.Contains(u, "X-Goog-Signature="))

	_, err = media.StreamURL(ctx, "a.jpg", time.Minute)
	assert.That(t, errors.Is(err, services.ErrNotSignable))

	_, err = media.StreamURL(ctx, "gs://media/other.mp4", time.Minute)
	assert.That(t, errors.Is(err, services.ErrNotProcessed))
}
