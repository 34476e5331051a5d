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

package services

import (
	"fmt"
	"strings"

	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
)

// Preview shortens text to at most n runes, marking the cut with "...".
func Preview(text string, n int) string {
	runes := []rune(text)
	if n <= 0 || len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

// Format renders one query result as an indented block. index is 1-based.
// Video frames show their time and frame number, images their camera, and
// the object list is omitted when nothing was detected.
func Format(index int, r *model.SearchResult, previewRunes int) string {
	var b strings.Builder
	contentType := r.ContentType()
	fileName := r.FileName()
	if fileName == "" {
		fileName = "Unknown"
	}

	fmt.Fprintf(&b, "Result %d:\n", index)
	fmt.Fprintf(&b, "  File: %s\n", fileName)
	fmt.Fprintf(&b, "  Type: %s\n", contentType)

	if contentType == model.ContentTypeVideoFrame {
		fmt.Fprintf(&b, "  Time: %vs (Frame %v)\n", metaOr(r.Metadata, model.MetaTimestamp), metaOr(r.Metadata, model.MetaFrameNumber))
	}

	objects := model.MetaString(r.Metadata, model.MetaDetectedObjects)
	if objects != "" && objects != model.NoObjectsDetected {
		fmt.Fprintf(&b, "  Objects: %s\n", objects)
	}

	if contentType == model.ContentTypeImage {
		camera := strings.TrimSpace(model.MetaString(r.Metadata, model.MetaMake) + " " + model.MetaString(r.Metadata, model.MetaModel))
		if camera != "" {
			fmt.Fprintf(&b, "  Camera: %s\n", camera)
		}
	}

	fmt.Fprintf(&b, "  Description: %s\n", Preview(r.PageContent, previewRunes))
	return b.String()
}

func metaOr(meta map[string]any, key string) any {
	if v, ok := meta[key]; ok && v != nil {
		return v
	}
	return "Unknown"
}
