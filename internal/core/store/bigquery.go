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

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// BigQuery statements. The %s placeholders take the fully qualified table
// name (and, for the search, the query vector literal).
const (
	QryDistinctFileNames   = "SELECT DISTINCT file_name FROM `%s` ORDER BY file_name"
	QryVideoFrameFileNames = "SELECT DISTINCT file_name FROM `%s` WHERE content_type = '" + model.ContentTypeVideoFrame + "' ORDER BY file_name"
	QryDocumentKnn         = "SELECT base.id AS id, base.page_content AS page_content, base.metadata AS metadata, distance FROM VECTOR_SEARCH(TABLE `%s`, 'embedding', (SELECT [ %s ] AS embedding), top_k => %d, distance_type => 'COSINE') ORDER BY distance ASC"
)

// BigQueryDocument is the row written for each document.
type BigQueryDocument struct {
	ID          string    `bigquery:"id"`
	FileName    string    `bigquery:"file_name"`
	ContentType string    `bigquery:"content_type"`
	PageContent string    `bigquery:"page_content"`
	Metadata    string    `bigquery:"metadata"`
	Embedding   []float64 `bigquery:"embedding"`
	CreatedAt   time.Time `bigquery:"created_at"`
}

type bigQueryMatch struct {
	ID          string  `bigquery:"id"`
	PageContent string  `bigquery:"page_content"`
	Metadata    string  `bigquery:"metadata"`
	Distance    float64 `bigquery:"distance"`
}

type fileNameRow struct {
	FileName string `bigquery:"file_name"`
}

// BigQueryStore keeps documents in a BigQuery table.
type BigQueryStore struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// NewBigQueryStore creates the document table when it does not exist.
func NewBigQueryStore(ctx context.Context, client *bigquery.Client, dataset, table string) (*BigQueryStore, error) {
	s := &BigQueryStore{client: client, dataset: dataset, table: table}
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewBigQueryDocument converts a document to its row.
func NewBigQueryDocument(doc *model.Document) (*BigQueryDocument, error) {
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	embedding := make([]float64, len(doc.Embedding))
	for i, f := range doc.Embedding {
		embedding[i] = float64(f)
	}
	return &BigQueryDocument{
		ID:          doc.ID,
		FileName:    model.MetaString(doc.Metadata, model.MetaFileName),
		ContentType: model.MetaString(doc.Metadata, model.MetaContentType),
		PageContent: doc.PageContent,
		Metadata:    string(meta),
		Embedding:   embedding,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (s *BigQueryStore) ensureTable(ctx context.Context) error {
	table := s.client.Dataset(s.dataset).Table(s.table)
	_, err := table.Metadata(ctx)
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusNotFound {
		return fmt.Errorf("failed to read table %s.%s: %w", s.dataset, s.table, err)
	}
	schema, err := bigquery.InferSchema(BigQueryDocument{})
	if err != nil {
		return err
	}
	if err := table.Create(ctx, &bigquery.TableMetadata{Schema: schema}); err != nil {
		return fmt.Errorf("failed to create table %s.%s: %w", s.dataset, s.table, err)
	}
	return nil
}

func (s *BigQueryStore) fullyQualifiedTable() string {
	return strings.Replace(s.client.Dataset(s.dataset).Table(s.table).FullyQualifiedName(), ":", ".", -1)
}

func (s *BigQueryStore) Add(ctx context.Context, doc *model.Document) error {
	if len(doc.Embedding) == 0 {
		return ErrEmptyEmbedding
	}
	row, err := NewBigQueryDocument(doc)
	if err != nil {
		return err
	}
	if err := s.client.Dataset(s.dataset).Table(s.table).Inserter().Put(ctx, row); err != nil {
		return fmt.Errorf("bigquery insert failed for %s: %w", row.FileName, err)
	}
	return nil
}

func (s *BigQueryStore) Search(ctx context.Context, vector []float32, k int) ([]*model.SearchResult, error) {
	values := make([]string, 0, len(vector))
	for _, f := range vector {
		values = append(values, strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	itr, err := s.client.Query(fmt.Sprintf(QryDocumentKnn, s.fullyQualifiedTable(), strings.Join(values, ","), k)).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read from BigQuery: %w", err)
	}

	out := make([]*model.SearchResult, 0)
	for {
		var match bigQueryMatch
		err := itr.Next(&match)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate results: %w", err)
		}
		meta := make(map[string]any)
		if err := json.Unmarshal([]byte(match.Metadata), &meta); err != nil {
			return nil, fmt.Errorf("invalid metadata for document %s: %w", match.ID, err)
		}
		out = append(out, &model.SearchResult{
			ID:          match.ID,
			PageContent: match.PageContent,
			Metadata:    meta,
			Distance:    match.Distance,
		})
	}
	return out, nil
}

func (s *BigQueryStore) DistinctFileNames(ctx context.Context) ([]string, error) {
	return s.fileNames(ctx, QryDistinctFileNames)
}

func (s *BigQueryStore) VideoFrameFileNames(ctx context.Context) ([]string, error) {
	return s.fileNames(ctx, QryVideoFrameFileNames)
}

func (s *BigQueryStore) fileNames(ctx context.Context, query string) ([]string, error) {
	itr, err := s.client.Query(fmt.Sprintf(query, s.fullyQualifiedTable())).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read file names from BigQuery: %w", err)
	}
	var names []string
	for {
		var row fileNameRow
		err := itr.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate file names: %w", err)
		}
		names = append(names, row.FileName)
	}
	return names, nil
}

// Close is a no-op; the client belongs to cloud.ServiceClients.
func (s *BigQueryStore) Close() error {
	return nil
}
