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
	"fmt"
	"log/slog"
	"time"

	"github.com/jaycherian/gcp-go-media-annotator/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/embedding"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/store"
)

// DocumentPersister embeds the page content of the record in ParamRecord and
// adds the resulting document to the store. It is the step after which a
// record counts as processed by the ledger.
//
// Inputs:
//   - ParamRecord: the model.Record to persist.
//
// Outputs:
//   - ParamDocument: the stored *model.Document.
//   - ParamObjectCount: incremented by the number of detected objects.
type DocumentPersister struct {
	cor.BaseCommand
	embedder embedding.Embedder
	store    store.Store
	timeout  time.Duration
}

func NewDocumentPersister(name string, embedder embedding.Embedder, documents store.Store, timeout time.Duration) *DocumentPersister {
	out := &DocumentPersister{
		BaseCommand: *cor.NewBaseCommand(name),
		embedder:    embedder,
		store:       documents,
		timeout:     timeout,
	}
	out.InputParamName = ParamRecord
	out.OutputParamName = ParamDocument
	return out
}

func (c *DocumentPersister) Execute(context cor.Context) {
	record := context.Get(c.GetInputParam()).(model.Record)

	ctx, cancel := withTimeout(context.GetContext(), c.timeout)
	defer cancel()

	vector, err := c.embedder.Embed(ctx, record.PageContent())
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), model.NewPipelineError(model.KindPersistenceFailed, record.FileName(),
			fmt.Errorf("failed to embed page content: %w", err)))
		return
	}

	doc := model.NewDocument(record, vector)
	if err := c.store.Add(ctx, doc); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), model.NewPipelineError(model.KindPersistenceFailed, record.FileName(),
			fmt.Errorf("failed to add document: %w", err)))
		return
	}
	slog.DebugContext(context.GetContext(), "document stored", "id", doc.ID, "file", record.FileName(),
		"content_type", record.ContentType())

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(ParamObjectCount, intValue(context.Get(ParamObjectCount))+len(record.Objects()))
	context.Add(c.GetOutputParam(), doc)
}
