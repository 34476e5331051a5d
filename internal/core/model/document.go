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

import "github.com/google/uuid"

// Document is what a Store persists for one record.
type Document struct {
	ID          string
	PageContent string
	Metadata    map[string]any
	Embedding   []float32
}

// NewDocument wraps a record in a document with a fresh random identifier.
// The identifier is never derived from content.
func NewDocument(record Record, embedding []float32) *Document {
	return &Document{
		ID:          uuid.NewString(),
		PageContent: record.PageContent(),
		Metadata:    record.Metadata(),
		Embedding:   embedding,
	}
}

// SearchResult is one similarity match returned by a Store.
type SearchResult struct {
	ID          string         `json:"id"`
	PageContent string         `json:"page_content"`
	Metadata    map[string]any `json:"metadata"`
	Distance    float64        `json:"distance"`
}

// FileName returns the file_name metadata of the match.
func (s *SearchResult) FileName() string {
	return MetaString(s.Metadata, MetaFileName)
}

// ContentType returns the content type of the match. Records written before
// content types were stored are images.
func (s *SearchResult) ContentType() string {
	if ct := MetaString(s.Metadata, MetaContentType); ct != "" {
		return ct
	}
	return ContentTypeImage
}
