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

// Package metadata decodes camera and location metadata from photographs.
//
// Decoding never fails: a file without EXIF data, or with a tag that cannot be
// read, yields empty strings for the affected fields so that every record
// written to the store has the same set of keys.
//
// Rendering rules:
//   - rationals render as decimals ("2.8", "28.0"), integers as-is ("200")
//   - ExposureTime keeps the stored fraction ("1/500")
//   - DateTime falls back to DateTimeOriginal
//   - GPS is "<lat>, <lon>" in signed decimal degrees and is only set when
//     latitude, longitude and both hemisphere references are present
package metadata

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// Decode reads EXIF data from r, a JPEG or TIFF stream.
func Decode(r io.Reader) model.ImageMetadata {
	x, err := exif.Decode(r)
	if x == nil {
		if err != nil {
			slog.Debug("no exif data", "error", err)
		}
		return model.ImageMetadata{}
	}
	if err != nil {
		slog.Debug("partial exif data", "error", err)
	}
	return FromExif(x)
}

// FromExif maps decoded EXIF tags onto ImageMetadata.
func FromExif(x *exif.Exif) model.ImageMetadata {
	meta := model.ImageMetadata{
		Make:          tagString(x, exif.Make),
		Model:         tagString(x, exif.Model),
		DateTime:      tagString(x, exif.DateTime),
		ApertureValue: tagString(x, exif.ApertureValue),
		FocalLength:   tagString(x, exif.FocalLength),
		FNumber:       tagString(x, exif.FNumber),
		ISO:           tagString(x, exif.ISOSpeedRatings),
		ExposureTime:  exposureTime(x),
		GPS:           gps(x),
	}
	if meta.DateTime == "" {
		meta.DateTime = tagString(x, exif.DateTimeOriginal)
	}
	return meta
}

// ToDecimal converts degrees, minutes and seconds to decimal degrees. The
// result is negative for the southern and western hemispheres.
func ToDecimal(degrees, minutes, seconds float64, ref string) float64 {
	decimal := degrees + minutes/60 + seconds/3600
	switch strings.ToUpper(strings.TrimSpace(ref)) {
	case "S", "W":
		return -decimal
	}
	return decimal
}

// FormatRational renders a fraction exactly as stored.
func FormatRational(numerator, denominator int64) string {
	return fmt.Sprintf("%d/%d", numerator, denominator)
}

// FormatDecimal renders f in its shortest form, keeping a ".0" suffix on
// integral values.
func FormatDecimal(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

func tagString(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	switch tag.Format() {
	case tiff.StringVal:
		s, err := tag.StringVal()
		if err != nil {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(s, "\x00"))
	case tiff.IntVal:
		v, err := tag.Int64(0)
		if err != nil {
			return ""
		}
		return strconv.FormatInt(v, 10)
	case tiff.RatVal:
		num, den, err := tag.Rat2(0)
		if err != nil || den == 0 {
			return ""
		}
		return FormatDecimal(float64(num) / float64(den))
	case tiff.FloatVal:
		v, err := tag.Float(0)
		if err != nil {
			return ""
		}
		return FormatDecimal(v)
	}
	return ""
}

func exposureTime(x *exif.Exif) string {
	tag, err := x.Get(exif.ExposureTime)
	if err != nil || tag.Format() != tiff.RatVal {
		return ""
	}
	num, den, err := tag.Rat2(0)
	if err != nil {
		return ""
	}
	return FormatRational(num, den)
}

func gps(x *exif.Exif) string {
	latRef := tagString(x, exif.GPSLatitudeRef)
	lonRef := tagString(x, exif.GPSLongitudeRef)
	lat, latOK := dms(x, exif.GPSLatitude)
	lon, lonOK := dms(x, exif.GPSLongitude)
	if !latOK || !lonOK || latRef == "" || lonRef == "" {
		return ""
	}
	return FormatDecimal(ToDecimal(lat[0], lat[1], lat[2], latRef)) + ", " +
		FormatDecimal(ToDecimal(lon[0], lon[1], lon[2], lonRef))
}

// dms reads a degrees/minutes/seconds triple of rationals.
func dms(x *exif.Exif, name exif.FieldName) ([3]float64, bool) {
	var out [3]float64
	tag, err := x.Get(name)
	if err != nil || tag.Format() != tiff.RatVal || tag.Count < 3 {
		return out, false
	}
	for i := range out {
		num, den, err := tag.Rat2(i)
		if err != nil || den == 0 {
			return out, false
		}
		out[i] = float64(num) / float64(den)
	}
	return out, true
}
