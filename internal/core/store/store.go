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

// Package store persists annotated documents and serves similarity search
// over them. The store is the source of truth of the pipeline: the
// processing ledger is read back from it at the start of each run.
//
// Backends:
//   - SQLiteStore (default): a local database file managed with gorm. The
//     metadata of each document is kept as typed key/value rows so that the
//     ledger queries run in SQL; vector search is done in process.
//   - BigQueryStore: one row per document with the metadata as JSON and the
//     file name and content type promoted to columns; VECTOR_SEARCH for
//     queries.
//   - PostgresStore: pgvector column with cosine ordering and jsonb metadata.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/jaycherian/gcp-go-media-annotator/internal/cloud"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
)

// Store is the persistence boundary of the pipeline.
type Store interface {
	// Add writes one document. A failed write leaves nothing behind.
	Add(ctx context.Context, doc *model.Document) error
	// Search returns up to k documents ordered by ascending distance to vector.
	Search(ctx context.Context, vector []float32, k int) ([]*model.SearchResult, error)
	// DistinctFileNames returns every distinct file_name stored.
	DistinctFileNames(ctx context.Context) ([]string, error)
	// VideoFrameFileNames returns the distinct file_name values of video frame
	// documents.
	VideoFrameFileNames(ctx context.Context) ([]string, error)
	Close() error
}

// ErrEmptyEmbedding is returned by Add for a document without a vector.
var ErrEmptyEmbedding = errors.New("document has no embedding")

// Open returns the store selected by store.backend. clients may be nil for
// the local backends.
func Open(ctx context.Context, config *cloud.Config, clients *cloud.ServiceClients) (Store, error) {
	switch config.Store.Backend {
	case cloud.BackendSQLite:
		return NewSQLiteStore(config.Store.Dir, config.Store.Collection)
	case cloud.BackendPostgres:
		return NewPostgresStore(ctx, config.Store.PostgresDSN, config.Store.Collection)
	case cloud.BackendBigQuery:
		if clients == nil || clients.BigQueryClient == nil {
			return nil, errors.New("bigquery store requires an initialized bigquery client")
		}
		return NewBigQueryStore(ctx, clients.BigQueryClient, config.BigQueryDataSource.DatasetName, config.BigQueryDataSource.DocumentTable)
	default:
		return nil, fmt.Errorf("unsupported store backend %q", config.Store.Backend)
	}
}

// CosineDistance returns 1 - cos(a, b). Vectors of different length or with
// zero norm are at distance 1.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// rankByDistance sorts results by ascending distance and keeps the first k.
func rankByDistance(results []*model.SearchResult, k int) []*model.SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if k >= 0 && len(results) > k {
		results = results[:k]
	}
	return results
}
