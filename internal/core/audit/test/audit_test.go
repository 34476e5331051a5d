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

package audit_test

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-media-annotator/internal/core/audit"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var session = time.Date(2024, 5, 17, 9, 30, 15, 123456000, time.UTC)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVSinkCreatesHeaderOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "csv_logs")
	sink, err := audit.NewCSVSink(dir, session)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "object_detection_log_20240517_093015.csv"), sink.Path())

	objects := []model.DetectedObject{{Name: "car", Description: "red"}, {Name: "tree", Description: "oak"}, {Name: "dog", Description: "brown"}}
	image := model.NewImageRecord("a.jpg", model.ImageMetadata{Make: "Canon", GPS: "48.5, 2.25"}, objects, "A street.", "llava:13b")
	require.NoError(t, sink.Append(image, 1500*time.Millisecond))

	frame := model.NewVideoFrameRecord("v.mp4", &model.FrameSample{FrameNumber: 60, Timestamp: 2}, nil, "Empty yard.", "llava:13b")
	require.NoError(t, sink.Append(frame, 250*time.Millisecond))

	rows := readCSV(t, sink.Path())
	require.Len(t, rows, 1+3+1)
	assert.Equal(t, model.AuditColumns, rows[0])

	for i, name := range []string{"car", "tree", "dog"} {
		row := rows[1+i]
		assert.Equal(t, "2024-05-17T09:30:15.123456", row[0])
		assert.Equal(t, "a.jpg", row[1])
		assert.Equal(t, "image", row[2])
		assert.Equal(t, name, row[5])
		assert.Equal(t, "Canon", row[8])
		assert.Equal(t, "48.5, 2.25", row[16])
		assert.Equal(t, "1.5000", row[18])
	}

	last := rows[4]
	assert.Equal(t, "video_frame", last[2])
	assert.Equal(t, "2.00", last[3])
	assert.Equal(t, "60", last[4])
	assert.Equal(t, model.NoObjectsDetected, last[5])
	assert.Equal(t, "Empty yard.", last[7])
	assert.Equal(t, "", last[8])
	assert.Equal(t, "0.2500", last[18])
}

func TestCSVSinkAppendFailureIsAuditWriteFailed(t *testing.T) {
	sink, err := audit.NewCSVSink(t.TempDir(), session)
	require.NoError(t, err)
	require.NoError(t, os.Remove(sink.Path()))

	record := model.NewImageRecord("a.jpg", model.ImageMetadata{}, nil, "", "m")
	err = sink.Append(record, time.Second)
	assert.ErrorIs(t, err, model.ErrAuditWriteFailed)
	assert.Equal(t, model.KindAuditWriteFailed, model.KindOf(err))
}

func TestNopSink(t *testing.T) {
	var sink audit.Sink = audit.NopSink{}
	assert.NoError(t, sink.Append(model.NewImageRecord("a.jpg", model.ImageMetadata{}, nil, "", "m"), 0))
}
