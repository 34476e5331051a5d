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

// Package services holds the read side of the annotator: similarity search
// over the stored records and lookups of processed media. It backs both the
// CLI query mode and the HTTP API.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jaycherian/gcp-go-media-annotator/internal/core/embedding"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/store"
)

// ErrEmptyQuery is returned for blank search text.
var ErrEmptyQuery = errors.New("query cannot be empty")

// SearchService finds the records closest to a natural language query.
type SearchService struct {
	Embedder embedding.Embedder // Must be the model the records were indexed with.
	Store    store.Store
}

// Find embeds query and returns at most maxResults records, closest first.
func (s *SearchService) Find(ctx context.Context, query string, maxResults int) ([]*model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if maxResults < 1 {
		return nil, fmt.Errorf("result count must be positive, got %d", maxResults)
	}

	vector, err := s.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	out, err := s.Store.Search(ctx, vector, maxResults)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	return out, nil
}
