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
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
	"github.com/pgvector/pgvector-go"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const (
	pgCreateExtension = "CREATE EXTENSION IF NOT EXISTS vector"
	pgCreateTable     = `CREATE TABLE IF NOT EXISTS %[1]s (
    id UUID PRIMARY KEY,
    file_name TEXT NOT NULL,
    content_type TEXT NOT NULL,
    page_content TEXT NOT NULL,
    metadata JSONB NOT NULL,
    embedding vector NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
)`
	pgCreateIndex = "CREATE INDEX IF NOT EXISTS %[1]s_file_name_idx ON %[1]s (file_name)"
	pgInsert      = "INSERT INTO %s (id, file_name, content_type, page_content, metadata, embedding, created_at) VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)"
	pgSearch      = "SELECT id::text, page_content, metadata::text, embedding <=> $1 AS distance FROM %s ORDER BY embedding <=> $1 LIMIT $2"
	pgFileNames   = "SELECT DISTINCT file_name FROM %s ORDER BY file_name"
	pgFrameNames  = "SELECT DISTINCT file_name FROM %s WHERE content_type = $1 ORDER BY file_name"
)

// PostgresStore keeps documents in a PostgreSQL table with a pgvector column.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresStore connects to dsn and creates the extension, table and
// index when missing. The collection name is used as the table name.
func NewPostgresStore(ctx context.Context, dsn, collection string) (*PostgresStore, error) {
	if !tableNamePattern.MatchString(collection) {
		return nil, fmt.Errorf("invalid collection name %q", collection)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := &PostgresStore{pool: pool, table: collection}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	for _, stmt := range []string{
		pgCreateExtension,
		fmt.Sprintf(pgCreateTable, s.table),
		fmt.Sprintf(pgCreateIndex, s.table),
	} {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create database schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Add(ctx context.Context, doc *model.Document) error {
	if len(doc.Embedding) == 0 {
		return ErrEmptyEmbedding
	}
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, fmt.Sprintf(pgInsert, s.table),
		doc.ID,
		model.MetaString(doc.Metadata, model.MetaFileName),
		model.MetaString(doc.Metadata, model.MetaContentType),
		doc.PageContent,
		string(meta),
		pgvector.NewVector(doc.Embedding),
		time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}
	return nil
}

func (s *PostgresStore) Search(ctx context.Context, vector []float32, k int) ([]*model.SearchResult, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(pgSearch, s.table), pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	defer rows.Close()

	var out []*model.SearchResult
	for rows.Next() {
		var (
			result model.SearchResult
			meta   string
		)
		if err := rows.Scan(&result.ID, &result.PageContent, &meta, &result.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan search results: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &result.Metadata); err != nil {
			return nil, fmt.Errorf("invalid metadata for document %s: %w", result.ID, err)
		}
		out = append(out, &result)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DistinctFileNames(ctx context.Context) ([]string, error) {
	return s.fileNames(ctx, fmt.Sprintf(pgFileNames, s.table))
}

func (s *PostgresStore) VideoFrameFileNames(ctx context.Context) ([]string, error) {
	return s.fileNames(ctx, fmt.Sprintf(pgFrameNames, s.table), model.ContentTypeVideoFrame)
}

func (s *PostgresStore) fileNames(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read file names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
