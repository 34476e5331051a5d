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

// Package commands holds the steps the annotation workflows are built from.
// Each step is a cor.Command that reads its inputs from the shared
// cor.Context, records failures there as model.PipelineError values, and
// leaves its output under its output parameter.
//
// Image chain:
//
//	load-image -> detect-objects -> describe-scene -> build-image-record
//	-> persist-document -> audit-log
//
// Frame chain (run once per sampled frame by process-frames):
//
//	encode-frame -> detect-objects -> describe-scene -> build-frame-record
//	-> persist-document -> audit-log
//
// Video chain:
//
//	fetch-remote-video (URLs only) -> process-frames
package commands

import (
	"context"
	"time"
)

// Context keys shared by the commands.
const (
	ParamSubject       = "__subject__"        // string: the file path or original URL of the unit.
	ParamStarted       = "__started__"        // time.Time: start of the image or frame.
	ParamImageBase64   = "__image_base64__"   // string: JPEG sent to the annotator.
	ParamImageMetadata = "__image_metadata__" // model.ImageMetadata
	ParamFrame         = "__frame__"          // *model.FrameSample
	ParamObjects       = "__objects__"        // []model.DetectedObject
	ParamDescription   = "__description__"    // string
	ParamRecord        = "__record__"         // model.Record
	ParamDocument      = "__document__"       // *model.Document
	ParamRemoteURL     = "__remote_url__"     // string: video to download.
	ParamLocalPath     = "__local_path__"     // string: video file to sample.
	ParamInterval      = "__interval__"       // float64: sampling interval in seconds.
	ParamFrameCount    = "__frame_count__"    // int: frames completed.
	ParamObjectCount   = "__object_count__"   // int: objects detected.
	ParamAuditWarnings = "__audit_warnings__" // int: failed audit appends.
)

// withTimeout bounds ctx when timeout is positive.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// intValue returns the int stored under key, or 0.
func intValue(value interface{}) int {
	if i, ok := value.(int); ok {
		return i
	}
	return 0
}
