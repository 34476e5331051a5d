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

package ledger_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jaycherian/gcp-go-media-annotator/internal/core/ledger"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageProcessedIsExactMatch(t *testing.T) {
	s := ledger.NewSnapshot([]string{"photos/a.jpg", "videos/v.mp4"}, []string{"videos/v.mp4"})
	assert.True(t, s.ImageProcessed("photos/a.jpg"))
	assert.False(t, s.ImageProcessed("photos/a.jpeg"))
	assert.False(t, s.ImageProcessed("photos/A.jpg"))
	assert.False(t, s.ImageProcessed("a.jpg"))
	assert.Equal(t, 2, s.Len())
}

func TestVideoProcessedNeedsAFrameRecord(t *testing.T) {
	// v2.mp4 is a stored file name but only as an image-typed record.
	s := ledger.NewSnapshot([]string{"v1.mp4", "v2.mp4"}, []string{"v1.mp4"})
	assert.True(t, s.VideoProcessed("v1.mp4"))
	assert.False(t, s.VideoProcessed("v2.mp4"))
	assert.False(t, s.VideoProcessed("v3.mp4"))
	assert.False(t, s.VideoProcessed(""))
}

func TestVideoProcessedIsPrefixMatch(t *testing.T) {
	s := ledger.NewSnapshot([]string{"cam/clip.mp4.bak"}, []string{"cam/clip.mp4.bak"})
	assert.True(t, s.VideoProcessed("cam/clip.mp4"))
	assert.True(t, s.VideoProcessed("cam/clip"))
	assert.False(t, s.VideoProcessed("cam/clip.mp4.bak2"))
	assert.False(t, s.VideoProcessed("cam/other.mp4"))
}

func TestSnapshotIsImmutable(t *testing.T) {
	names := []string{"a.jpg"}
	frames := []string{"v.mp4"}
	s := ledger.NewSnapshot(names, frames)
	names[0] = "b.jpg"
	frames[0] = "w.mp4"
	assert.True(t, s.ImageProcessed("a.jpg"))
	assert.True(t, s.VideoProcessed("v.mp4"))
	assert.Equal(t, []string{"a.jpg"}, s.FileNames())
}

func TestLoadFromStore(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "db"), "photo_collection")
	require.NoError(t, err)
	defer st.Close()

	image := model.NewImageRecord("a.jpg", model.ImageMetadata{}, nil, "", "m")
	frame := model.NewVideoFrameRecord("https://example.com/v.mp4", &model.FrameSample{FrameNumber: 0}, nil, "", "m")
	require.NoError(t, st.Add(ctx, model.NewDocument(image, []float32{1})))
	require.NoError(t, st.Add(ctx, model.NewDocument(frame, []float32{1})))

	s, err := ledger.Load(ctx, st)
	require.NoError(t, err)
	assert.True(t, s.ImageProcessed("a.jpg"))
	assert.True(t, s.VideoProcessed("https://example.com/v.mp4"))
	assert.False(t, s.VideoProcessed("a.jpg"))

	// New records do not change an existing snapshot.
	require.NoError(t, st.Add(ctx, model.NewDocument(model.NewImageRecord("b.jpg", model.ImageMetadata{}, nil, "", "m"), []float32{1})))
	assert.False(t, s.ImageProcessed("b.jpg"))
}

type failingReader struct{}

func (failingReader) DistinctFileNames(context.Context) ([]string, error) {
	return nil, errors.New("database is locked")
}

func (failingReader) VideoFrameFileNames(context.Context) ([]string, error) {
	return nil, nil
}

func TestLoadFailureIsReported(t *testing.T) {
	s, err := ledger.Load(context.Background(), failingReader{})
	assert.Nil(t, s)
	assert.ErrorContains(t, err, "database is locked")
}
