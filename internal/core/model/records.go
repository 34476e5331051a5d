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

package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Content types stored under MetaContentType.
const (
	ContentTypeImage      = "image"
	ContentTypeVideoFrame = "video_frame"
)

// Metadata keys written to the store. They match the keys used by records that
// already exist in deployed stores, so they must not be renamed.
const (
	MetaFileName        = "file_name"
	MetaMake            = "make"
	MetaModel           = "model"
	MetaDateTime        = "dt"
	MetaApertureValue   = "aperture_value"
	MetaFocalLength     = "focal_length"
	MetaExposureTime    = "exposure_time"
	MetaFNumber         = "f_stops"
	MetaISO             = "iso"
	MetaGPS             = "gps"
	MetaDetectedObjects = "detected_objects"
	MetaDescription     = "description"
	MetaGeneratedWith   = "generated_with"
	MetaContentType     = "content_type"
	MetaTimestamp       = "timestamp"
	MetaFrameNumber     = "frame_number"
)

// DetectedObject is one object reported by the annotator.
type DetectedObject struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ImageMetadata is the camera and location data decoded from an image. Absent
// tags are empty strings, never missing.
type ImageMetadata struct {
	Make          string
	Model         string
	DateTime      string
	ApertureValue string
	FocalLength   string
	ExposureTime  string
	FNumber       string
	ISO           string
	GPS           string
}

// Record is the normalized output unit for one image or one video frame.
type Record interface {
	FileName() string
	ContentType() string
	Objects() []DetectedObject
	SceneDescription() string
	ModelID() string
	PageContent() string
	Metadata() map[string]any
}

// RenderObjects renders objects as "<name> - <description>" lines.
func RenderObjects(objects []DetectedObject) string {
	lines := make([]string, 0, len(objects))
	for _, o := range objects {
		lines = append(lines, fmt.Sprintf("%s - %s", o.Name, o.Description))
	}
	return strings.Join(lines, "\n")
}

// ParseObjectsText reverses RenderObjects. Lines without the " - " separator
// become objects with an empty description.
func ParseObjectsText(text string) []DetectedObject {
	if text == "" {
		return nil
	}
	var objects []DetectedObject
	for _, line := range strings.Split(text, "\n") {
		name, description, _ := strings.Cut(line, " - ")
		objects = append(objects, DetectedObject{Name: name, Description: description})
	}
	return objects
}

// ImagePageContent builds the indexed text of an image record from its
// rendered objects and description.
func ImagePageContent(objectsText, description string) string {
	return objectsText + "\n\n" + description
}

// FramePageContent builds the indexed text of a video frame record.
func FramePageContent(fileName string, timestamp float64, frameNumber int, objectsText, description string) string {
	header := fmt.Sprintf("Video: %s\nTimestamp: %.2fs\nFrame: %d\n\n", fileName, timestamp, frameNumber)
	return header + ImagePageContent(objectsText, description)
}

// PageContentFromMetadata rebuilds the indexed text from stored metadata.
func PageContentFromMetadata(meta map[string]any) string {
	objects := metaString(meta, MetaDetectedObjects)
	description := metaString(meta, MetaDescription)
	if metaString(meta, MetaContentType) != ContentTypeVideoFrame {
		return ImagePageContent(objects, description)
	}
	ts, _ := strconv.ParseFloat(metaString(meta, MetaTimestamp), 64)
	frame, _ := strconv.Atoi(metaString(meta, MetaFrameNumber))
	return FramePageContent(metaString(meta, MetaFileName), ts, frame, objects, description)
}

func metaString(meta map[string]any, key string) string {
	v, ok := meta[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(t)
	}
}

// MetaString returns the string form of a metadata value.
func MetaString(meta map[string]any, key string) string {
	return metaString(meta, key)
}

// ImageRecord is the record of one photograph.
type ImageRecord struct {
	File            string
	Meta            ImageMetadata
	DetectedObjects []DetectedObject
	Description     string
	GeneratedWith   string
}

// NewImageRecord composes an image record. objects is copied so the record is
// immutable.
func NewImageRecord(path string, meta ImageMetadata, objects []DetectedObject, description, modelID string) *ImageRecord {
	return &ImageRecord{
		File:            path,
		Meta:            meta,
		DetectedObjects: append([]DetectedObject(nil), objects...),
		Description:     description,
		GeneratedWith:   modelID,
	}
}

func (r *ImageRecord) FileName() string              { return r.File }
func (r *ImageRecord) ContentType() string           { return ContentTypeImage }
func (r *ImageRecord) Objects() []DetectedObject     { return r.DetectedObjects }
func (r *ImageRecord) SceneDescription() string      { return r.Description }
func (r *ImageRecord) ModelID() string               { return r.GeneratedWith }
func (r *ImageRecord) ObjectsText() string           { return RenderObjects(r.DetectedObjects) }
func (r *ImageRecord) CameraMetadata() ImageMetadata { return r.Meta }

func (r *ImageRecord) PageContent() string {
	return ImagePageContent(r.ObjectsText(), r.Description)
}

func (r *ImageRecord) Metadata() map[string]any {
	return map[string]any{
		MetaFileName:        r.File,
		MetaMake:            r.Meta.Make,
		MetaModel:           r.Meta.Model,
		MetaDateTime:        r.Meta.DateTime,
		MetaApertureValue:   r.Meta.ApertureValue,
		MetaFocalLength:     r.Meta.FocalLength,
		MetaExposureTime:    r.Meta.ExposureTime,
		MetaFNumber:         r.Meta.FNumber,
		MetaISO:             r.Meta.ISO,
		MetaGPS:             r.Meta.GPS,
		MetaDetectedObjects: r.ObjectsText(),
		MetaDescription:     r.Description,
		MetaGeneratedWith:   r.GeneratedWith,
		MetaContentType:     ContentTypeImage,
	}
}

// VideoFrameRecord is the record of one sampled video frame. File is the
// identity of the source video (path or original URL), never a scratch path.
type VideoFrameRecord struct {
	File            string
	Timestamp       float64
	FrameNumber     int
	DetectedObjects []DetectedObject
	Description     string
	GeneratedWith   string
}

// NewVideoFrameRecord composes a frame record from a sample.
func NewVideoFrameRecord(source string, sample *FrameSample, objects []DetectedObject, description, modelID string) *VideoFrameRecord {
	return &VideoFrameRecord{
		File:            source,
		Timestamp:       sample.Timestamp,
		FrameNumber:     sample.FrameNumber,
		DetectedObjects: append([]DetectedObject(nil), objects...),
		Description:     description,
		GeneratedWith:   modelID,
	}
}

func (r *VideoFrameRecord) FileName() string          { return r.File }
func (r *VideoFrameRecord) ContentType() string       { return ContentTypeVideoFrame }
func (r *VideoFrameRecord) Objects() []DetectedObject { return r.DetectedObjects }
func (r *VideoFrameRecord) SceneDescription() string  { return r.Description }
func (r *VideoFrameRecord) ModelID() string           { return r.GeneratedWith }
func (r *VideoFrameRecord) ObjectsText() string       { return RenderObjects(r.DetectedObjects) }

func (r *VideoFrameRecord) PageContent() string {
	return FramePageContent(r.File, r.Timestamp, r.FrameNumber, r.ObjectsText(), r.Description)
}

func (r *VideoFrameRecord) Metadata() map[string]any {
	return map[string]any{
		MetaFileName:        r.File,
		MetaTimestamp:       r.Timestamp,
		MetaFrameNumber:     r.FrameNumber,
		MetaDetectedObjects: r.ObjectsText(),
		MetaDescription:     r.Description,
		MetaGeneratedWith:   r.GeneratedWith,
		MetaContentType:     ContentTypeVideoFrame,
	}
}
