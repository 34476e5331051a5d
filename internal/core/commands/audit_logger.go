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

package commands

import (
	"log/slog"
	"time"

	"github.com/jaycherian/gcp-go-media-annotator/internal/core/audit"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
)

// AuditLogger appends the persisted record to the audit sink. A failed append
// is logged and counted in ParamAuditWarnings; it never fails the chain.
type AuditLogger struct {
	cor.BaseCommand
	sink audit.Sink
	now  func() time.Time
}

func NewAuditLogger(name string, sink audit.Sink) *AuditLogger {
	out := &AuditLogger{BaseCommand: *cor.NewBaseCommand(name), sink: sink, now: time.Now}
	out.InputParamName = ParamRecord
	return out
}

// IsExecutable also requires the record to have been stored.
func (c *AuditLogger) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && context.Get(ParamDocument) != nil
}

func (c *AuditLogger) Execute(context cor.Context) {
	record := context.Get(c.GetInputParam()).(model.Record)

	var elapsed time.Duration
	if started, ok := context.Get(ParamStarted).(time.Time); ok {
		elapsed = c.now().Sub(started)
	}

	if err := c.sink.Append(record, elapsed); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		slog.WarnContext(context.GetContext(), "failed to write audit rows", "file", record.FileName(), "error", err)
		context.Add(ParamAuditWarnings, intValue(context.Get(ParamAuditWarnings))+1)
		return
	}
	c.GetSuccessCounter().Add(context.GetContext(), 1)
}
