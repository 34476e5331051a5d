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
	"time"
)

// NoObjectsDetected is the object name of the single audit row emitted for a
// record without detected objects.
const NoObjectsDetected = "NO_OBJECTS_DETECTED"

// AuditColumns is the fixed header of the audit log.
var AuditColumns = []string{
	"session_timestamp", "file_path", "content_type", "timestamp_seconds",
	"frame_number", "object_name", "object_description", "scene_description",
	"make", "model", "camera_date", "aperture_value", "focal_length",
	"exposure_time", "f_stops", "iso", "gps_coordinates", "generated_with",
	"processing_time_seconds",
}

// AuditRow is one line of the audit log.
type AuditRow struct {
	SessionTimestamp      string
	FilePath              string
	ContentType           string
	TimestampSeconds      string
	FrameNumber           string
	ObjectName            string
	ObjectDescription     string
	SceneDescription      string
	Make                  string
	Model                 string
	CameraDate            string
	ApertureValue         string
	FocalLength           string
	ExposureTime          string
	FNumber               string
	ISO                   string
	GPSCoordinates        string
	GeneratedWith         string
	ProcessingTimeSeconds string
}

// Values returns the row in AuditColumns order.
func (a AuditRow) Values() []string {
	return []string{
		a.SessionTimestamp, a.FilePath, a.ContentType, a.TimestampSeconds,
		a.FrameNumber, a.ObjectName, a.ObjectDescription, a.SceneDescription,
		a.Make, a.Model, a.CameraDate, a.ApertureValue, a.FocalLength,
		a.ExposureTime, a.FNumber, a.ISO, a.GPSCoordinates, a.GeneratedWith,
		a.ProcessingTimeSeconds,
	}
}

// AuditRows expands a record into one row per detected object, or a single
// sentinel row when nothing was detected.
func AuditRows(record Record, session time.Time, elapsed time.Duration) []AuditRow {
	base := AuditRow{
		SessionTimestamp:      session.Format("2006-01-02T15:04:05.000000"),
		FilePath:              record.FileName(),
		ContentType:           record.ContentType(),
		SceneDescription:      record.SceneDescription(),
		GeneratedWith:         record.ModelID(),
		ProcessingTimeSeconds: fmt.Sprintf("%.4f", elapsed.Seconds()),
	}

	switch r := record.(type) {
	case *ImageRecord:
		base.Make = r.Meta.Make
		base.Model = r.Meta.Model
		base.CameraDate = r.Meta.DateTime
		base.ApertureValue = r.Meta.ApertureValue
		base.FocalLength = r.Meta.FocalLength
		base.ExposureTime = r.Meta.ExposureTime
		base.FNumber = r.Meta.FNumber
		base.ISO = r.Meta.ISO
		base.GPSCoordinates = r.Meta.GPS
	case *VideoFrameRecord:
		base.TimestampSeconds = fmt.Sprintf("%.2f", r.Timestamp)
		base.FrameNumber = strconv.Itoa(r.FrameNumber)
	}

	objects := record.Objects()
	if len(objects) == 0 {
		row := base
		row.ObjectName = NoObjectsDetected
		return []AuditRow{row}
	}

	rows := make([]AuditRow, 0, len(objects))
	for _, o := range objects {
		row := base
		row.ObjectName = o.Name
		row.ObjectDescription = o.Description
		rows = append(rows, row)
	}
	return rows
}
