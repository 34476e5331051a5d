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
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteFileName is the database file created inside store.dir.
const SQLiteFileName = "annotations.db"

// documentRow is one stored document.
type documentRow struct {
	ID          string `gorm:"primaryKey;size:36"`
	Collection  string `gorm:"index;not null"`
	PageContent string `gorm:"not null"`
	Embedding   []byte
	CreatedAt   time.Time
	Metadata    []metadataRow `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
}

func (documentRow) TableName() string { return "documents" }

// metadataRow is one metadata entry of a document. Exactly one of the value
// columns is set, matching the Go type of the value.
type metadataRow struct {
	ID          uint   `gorm:"primaryKey"`
	DocumentID  string `gorm:"index;not null;size:36"`
	Key         string `gorm:"index;not null"`
	StringValue *string
	IntValue    *int64
	FloatValue  *float64
}

func (metadataRow) TableName() string { return "document_metadata" }

const (
	qryDistinctFileNames = `SELECT DISTINCT m.string_value FROM document_metadata m
JOIN documents d ON d.id = m.document_id
WHERE d.collection = ? AND m.key = ? AND m.string_value IS NOT NULL
ORDER BY m.string_value`

	qryVideoFrameFileNames = `SELECT DISTINCT f.string_value FROM document_metadata f
JOIN document_metadata c ON c.document_id = f.document_id
JOIN documents d ON d.id = f.document_id
WHERE d.collection = ? AND f.key = ? AND c.key = ? AND c.string_value = ?
ORDER BY f.string_value`
)

// SQLiteStore keeps documents in a local SQLite database.
type SQLiteStore struct {
	db         *gorm.DB
	collection string
	path       string
}

// NewSQLiteStore opens (creating when needed) dir/annotations.db and migrates
// the schema.
func NewSQLiteStore(dir, collection string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, SQLiteFileName)
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", path)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", path, err)
	}
	if err := db.AutoMigrate(&documentRow{}, &metadataRow{}); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, fmt.Errorf("failed to migrate store %s: %w", path, err)
	}
	return &SQLiteStore{db: db, collection: collection, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Add(ctx context.Context, doc *model.Document) error {
	if len(doc.Embedding) == 0 {
		return ErrEmptyEmbedding
	}
	row := documentRow{
		ID:          doc.ID,
		Collection:  s.collection,
		PageContent: doc.PageContent,
		Embedding:   encodeVector(doc.Embedding),
		CreatedAt:   time.Now().UTC(),
		Metadata:    toMetadataRows(doc.ID, doc.Metadata),
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	})
}

func (s *SQLiteStore) Search(ctx context.Context, vector []float32, k int) ([]*model.SearchResult, error) {
	var rows []documentRow
	err := s.db.WithContext(ctx).
		Preload("Metadata").
		Where("collection = ?", s.collection).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}

	results := make([]*model.SearchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, &model.SearchResult{
			ID:          row.ID,
			PageContent: row.PageContent,
			Metadata:    fromMetadataRows(row.Metadata),
			Distance:    CosineDistance(vector, decodeVector(row.Embedding)),
		})
	}
	return rankByDistance(results, k), nil
}

func (s *SQLiteStore) DistinctFileNames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Raw(qryDistinctFileNames, s.collection, model.MetaFileName).Scan(&names).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read file names: %w", err)
	}
	return names, nil
}

func (s *SQLiteStore) VideoFrameFileNames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Raw(qryVideoFrameFileNames, s.collection, model.MetaFileName, model.MetaContentType, model.ContentTypeVideoFrame).
		Scan(&names).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read video frame file names: %w", err)
	}
	return names, nil
}

// Count returns the number of documents in the collection.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&documentRow{}).Where("collection = ?", s.collection).Count(&n).Error
	return n, err
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toMetadataRows(documentID string, meta map[string]any) []metadataRow {
	rows := make([]metadataRow, 0, len(meta))
	for key, value := range meta {
		row := metadataRow{DocumentID: documentID, Key: key}
		switch v := value.(type) {
		case string:
			row.StringValue = &v
		case int:
			i := int64(v)
			row.IntValue = &i
		case int64:
			row.IntValue = &v
		case float64:
			row.FloatValue = &v
		case float32:
			f := float64(v)
			row.FloatValue = &f
		case bool:
			var i int64
			if v {
				i = 1
			}
			row.IntValue = &i
		case nil:
			empty := ""
			row.StringValue = &empty
		default:
			str := fmt.Sprint(v)
			row.StringValue = &str
		}
		rows = append(rows, row)
	}
	return rows
}

func fromMetadataRows(rows []metadataRow) map[string]any {
	meta := make(map[string]any, len(rows))
	for _, row := range rows {
		switch {
		case row.StringValue != nil:
			meta[row.Key] = *row.StringValue
		case row.IntValue != nil:
			meta[row.Key] = int(*row.IntValue)
		case row.FloatValue != nil:
			meta[row.Key] = *row.FloatValue
		}
	}
	return meta
}

// encodeVector stores a vector as little-endian float32 values.
func encodeVector(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(f))
	}
	return out
}

func decodeVector(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}
