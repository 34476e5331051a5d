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

package model_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var objects = []model.DetectedObject{
	{Name: "person", Description: "walking a dog"},
	{Name: "dog", Description: "brown terrier on a leash"},
	{Name: "bicycle", Description: "leaning against the fence"},
}

func TestImagePageContent(t *testing.T) {
	r := model.NewImageRecord("images_clips/cam1/a.jpg", model.ImageMetadata{Make: "Canon"}, objects[:2], "A sunny street.", "llava:13b")

	assert.Equal(t, "person - walking a dog\ndog - brown terrier on a leash\n\nA sunny street.", r.PageContent())
	assert.Equal(t, model.ContentTypeImage, r.ContentType())
}

func TestFramePageContent(t *testing.T) {
	sample := &model.FrameSample{Timestamp: 2, FrameNumber: 60}
	r := model.NewVideoFrameRecord("https://example.com/v.mp4", sample, objects[:1], "A park.", "llava:13b")

	want := "Video: https://example.com/v.mp4\nTimestamp: 2.00s\nFrame: 60\n\nperson - walking a dog\n\nA park."
	assert.Equal(t, want, r.PageContent())
	assert.Equal(t, model.ContentTypeVideoFrame, r.Metadata()[model.MetaContentType])
}

func TestEmptyObjectsPageContent(t *testing.T) {
	r := model.NewImageRecord("a.jpg", model.ImageMetadata{}, nil, "Nothing here.", "m")
	assert.Equal(t, "\n\nNothing here.", r.PageContent())
}

func TestPageContentRoundTrip(t *testing.T) {
	records := []model.Record{
		model.NewImageRecord("a.jpg", model.ImageMetadata{GPS: "48.5, -2.25"}, objects, "desc", "m"),
		model.NewImageRecord("b.jpg", model.ImageMetadata{}, nil, "", "m"),
		model.NewVideoFrameRecord("v.mp4", &model.FrameSample{Timestamp: 4.0333, FrameNumber: 121}, objects, "frame desc", "m"),
	}
	for i, r := range records {
		t.Run(fmt.Sprintf("record-%d", i), func(t *testing.T) {
			// Simulate a store that keeps every value as JSON.
			raw, err := json.Marshal(r.Metadata())
			require.NoError(t, err)
			stored := map[string]any{}
			require.NoError(t, json.Unmarshal(raw, &stored))

			assert.Equal(t, r.PageContent(), model.PageContentFromMetadata(stored))
			assert.Equal(t, r.Objects(), model.ParseObjectsText(model.MetaString(stored, model.MetaDetectedObjects)))
		})
	}
}

func TestRecordCopiesObjects(t *testing.T) {
	in := []model.DetectedObject{{Name: "cat", Description: "asleep"}}
	r := model.NewImageRecord("a.jpg", model.ImageMetadata{}, in, "", "m")
	in[0].Name = "dog"
	assert.Equal(t, "cat", r.Objects()[0].Name)
}

func TestImageMetadataNeverMissing(t *testing.T) {
	meta := model.NewImageRecord("a.jpg", model.ImageMetadata{}, nil, "", "m").Metadata()
	for _, key := range []string{
		model.MetaMake, model.MetaModel, model.MetaDateTime, model.MetaApertureValue,
		model.MetaFocalLength, model.MetaExposureTime, model.MetaFNumber, model.MetaISO, model.MetaGPS,
	} {
		v, ok := meta[key]
		assert.True(t, ok, key)
		assert.Equal(t, "", v, key)
	}
}

func TestAuditRowsPerObject(t *testing.T) {
	session := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	r := model.NewImageRecord("a.jpg", model.ImageMetadata{Make: "Nikon", ExposureTime: "1/500"}, objects, "desc", "m")

	rows := model.AuditRows(r, session, 1500*time.Millisecond)
	require.Len(t, rows, 3)
	assert.Equal(t, "bicycle", rows[2].ObjectName)
	assert.Equal(t, "Nikon", rows[0].Make)
	assert.Equal(t, "1/500", rows[1].ExposureTime)
	assert.Equal(t, "1.5000", rows[0].ProcessingTimeSeconds)
	assert.Equal(t, "", rows[0].FrameNumber)
	assert.Len(t, rows[0].Values(), len(model.AuditColumns))
}

func TestAuditRowsSentinel(t *testing.T) {
	r := model.NewVideoFrameRecord("v.mp4", &model.FrameSample{Timestamp: 2, FrameNumber: 60}, nil, "empty road", "m")

	rows := model.AuditRows(r, time.Now(), time.Second)
	require.Len(t, rows, 1)
	assert.Equal(t, model.NoObjectsDetected, rows[0].ObjectName)
	assert.Equal(t, "2.00", rows[0].TimestampSeconds)
	assert.Equal(t, "60", rows[0].FrameNumber)
	assert.Equal(t, model.ContentTypeVideoFrame, rows[0].ContentType)
}

func TestPipelineErrorKinds(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("step: %w", model.NewPipelineError(model.KindRemoteFetchFailed, "https://x/y.mp4", cause))

	assert.ErrorIs(t, err, model.ErrRemoteFetchFailed)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, model.ErrAnnotationFailed)
	assert.Equal(t, model.KindRemoteFetchFailed, model.KindOf(err))
	assert.Equal(t, model.FailureKind(""), model.KindOf(cause))
	assert.Contains(t, err.Error(), "https://x/y.mp4")
}

func TestExampleObjectsJSON(t *testing.T) {
	var out []model.DetectedObject
	require.NoError(t, json.Unmarshal([]byte(model.GetExampleObjectsJSON()), &out))
	assert.Equal(t, model.GetExampleObjects(), out)
}
