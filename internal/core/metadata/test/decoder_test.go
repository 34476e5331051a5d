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

package metadata_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jaycherian/gcp-go-media-annotator/internal/core/metadata"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
	test "github.com/jaycherian/gcp-go-media-annotator/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDecimal(t *testing.T) {
	assert.Equal(t, 48.5, metadata.ToDecimal(48, 30, 0, "N"))
	assert.Equal(t, -48.5, metadata.ToDecimal(48, 30, 0, "S"))
	assert.Equal(t, 2.25, metadata.ToDecimal(2, 15, 0, "E"))
	assert.Equal(t, -2.25, metadata.ToDecimal(2, 15, 0, "W"))
	assert.InDelta(t, 10.5125, metadata.ToDecimal(10, 30, 45, "N"), 1e-9)
}

func TestFormatRational(t *testing.T) {
	assert.Equal(t, "1/500", metadata.FormatRational(1, 500))
	assert.Equal(t, "10/3000", metadata.FormatRational(10, 3000))
}

func TestFormatDecimal(t *testing.T) {
	assert.Equal(t, "2.8", metadata.FormatDecimal(2.8))
	assert.Equal(t, "28.0", metadata.FormatDecimal(28))
	assert.Equal(t, "-48.5", metadata.FormatDecimal(-48.5))
}

func fullFields() test.ExifFields {
	return test.ExifFields{
		Make:             "Canon",
		Model:            "EOS 5D",
		DateTime:         "2024:05:01 10:00:00",
		DateTimeOriginal: "2024:05:01 09:59:59",
		ExposureTime:     test.Rational{1, 500},
		FNumber:          test.Rational{28, 10},
		FocalLength:      test.Rational{28, 1},
		ApertureValue:    test.Rational{297, 100},
		ISO:              200,
		GPS: &test.GPSFields{
			LatitudeRef:  "S",
			Latitude:     [3]test.Rational{{48, 1}, {30, 1}, {0, 1}},
			LongitudeRef: "W",
			Longitude:    [3]test.Rational{{2, 1}, {15, 1}, {0, 1}},
		},
	}
}

func TestDecodeTIFF(t *testing.T) {
	meta := metadata.Decode(bytes.NewReader(test.ExifTIFF(fullFields())))

	assert.Equal(t, model.ImageMetadata{
		Make:          "Canon",
		Model:         "EOS 5D",
		DateTime:      "2024:05:01 10:00:00",
		ApertureValue: "2.97",
		FocalLength:   "28.0",
		ExposureTime:  "1/500",
		FNumber:       "2.8",
		ISO:           "200",
		GPS:           "-48.5, -2.25",
	}, meta)
}

func TestDecodeJPEG(t *testing.T) {
	b, err := test.JPEGBytes(test.ExifTIFF(fullFields()))
	require.NoError(t, err)

	meta := metadata.Decode(bytes.NewReader(b))
	assert.Equal(t, "Canon", meta.Make)
	assert.Equal(t, "1/500", meta.ExposureTime)
}

func TestDateTimeFallsBackToOriginal(t *testing.T) {
	f := fullFields()
	f.DateTime = ""
	meta := metadata.Decode(bytes.NewReader(test.ExifTIFF(f)))
	assert.Equal(t, "2024:05:01 09:59:59", meta.DateTime)
}

func TestGPSRequiresAllFourTags(t *testing.T) {
	f := fullFields()
	f.GPS.LongitudeRef = ""
	meta := metadata.Decode(bytes.NewReader(test.ExifTIFF(f)))
	assert.Equal(t, "", meta.GPS)
	assert.Equal(t, "Canon", meta.Make)
}

func TestDecodeNeverFails(t *testing.T) {
	assert.Equal(t, model.ImageMetadata{}, metadata.Decode(strings.NewReader("not an image")))
	assert.Equal(t, model.ImageMetadata{}, metadata.Decode(bytes.NewReader(nil)))

	plain, err := test.JPEGBytes(nil)
	require.NoError(t, err)
	assert.Equal(t, model.ImageMetadata{}, metadata.Decode(bytes.NewReader(plain)))
}
