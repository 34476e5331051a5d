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

// Package audit writes the per-object CSV log of a run.
package audit

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
	"go.uber.org/multierr"
)

// Sink receives every persisted record.
type Sink interface {
	Append(record model.Record, elapsed time.Duration) error
}

// NopSink discards records. It is used when auditing is disabled.
type NopSink struct{}

func (NopSink) Append(model.Record, time.Duration) error { return nil }

// CSVSink appends rows to one CSV file per run. The file is opened and closed
// on every Append, so rows already written survive a crash.
type CSVSink struct {
	path    string
	session time.Time
}

// FileName returns the log file name of a run started at now.
func FileName(now time.Time) string {
	return fmt.Sprintf("object_detection_log_%s.csv", now.Format("20060102_150405"))
}

// NewCSVSink creates dir and the log file with its header.
func NewCSVSink(dir string, now time.Time) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory %s: %w", dir, err)
	}
	s := &CSVSink{path: filepath.Join(dir, FileName(now)), session: now}
	if err := s.write(os.O_CREATE|os.O_TRUNC|os.O_WRONLY, [][]string{model.AuditColumns}); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the log file path.
func (s *CSVSink) Path() string {
	return s.path
}

// Append writes the rows of record. Failures are AuditWriteFailed errors.
func (s *CSVSink) Append(record model.Record, elapsed time.Duration) error {
	rows := model.AuditRows(record, s.session, elapsed)
	values := make([][]string, 0, len(rows))
	for _, row := range rows {
		values = append(values, row.Values())
	}
	if err := s.write(os.O_APPEND|os.O_WRONLY, values); err != nil {
		return model.NewPipelineError(model.KindAuditWriteFailed, record.FileName(), err)
	}
	return nil
}

func (s *CSVSink) write(flag int, rows [][]string) (err error) {
	f, err := os.OpenFile(s.path, flag, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return w.Error()
}
