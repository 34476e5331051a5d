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

package cloud

import (
	"encoding/json"
	"errors"
	"fmt"
)

// GCSPubSubNotification is the subset of a Cloud Storage object notification
// used for intake. A bucket configured to notify the intake topic gets every
// finalized video annotated.
type GCSPubSubNotification struct {
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Bucket      string `json:"bucket"`
	ContentType string `json:"contentType"`
	Size        string `json:"size"`
}

// IntakeMessage asks the pipeline to process one remote video.
type IntakeMessage struct {
	URL             string  `json:"url"`
	IntervalSeconds float64 `json:"interval_seconds,omitempty"`
}

// ParseIntakeMessage decodes an intake payload. Both IntakeMessage and Cloud
// Storage notifications are accepted; a notification becomes a gs:// URL.
// A missing interval is left at zero for the caller to default.
func ParseIntakeMessage(data []byte) (*IntakeMessage, error) {
	var raw struct {
		IntakeMessage
		GCSPubSubNotification
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid intake message: %w", err)
	}
	msg := raw.IntakeMessage
	if msg.URL == "" && raw.Bucket != "" && raw.Name != "" {
		msg.URL = fmt.Sprintf("gs://%s/%s", raw.Bucket, raw.Name)
	}
	if msg.URL == "" {
		return nil, errors.New("invalid intake message: no url")
	}
	if msg.IntervalSeconds < 0 {
		return nil, errors.New("invalid intake message: negative interval")
	}
	return &msg, nil
}
