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

package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jaycherian/gcp-go-media-annotator/internal/cloud"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/annotator"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/audit"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/embedding"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/fetch"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/sampler"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/store"
)

// NewDriverFromConfig builds every collaborator named by config: the model
// backends, the document store, the audit log of this run, the ffmpeg frame
// sampler and the remote fetcher. The returned Driver owns the store; call
// Close when done.
func NewDriverFromConfig(ctx context.Context, config *cloud.Config, clients *cloud.ServiceClients) (*Driver, error) {
	if clients == nil {
		clients = &cloud.ServiceClients{}
	}
	client, err := annotator.New(config, clients)
	if err != nil {
		return nil, err
	}
	embedder, err := embedding.New(config, clients)
	if err != nil {
		return nil, err
	}

	var sink audit.Sink = audit.NopSink{}
	if config.Pipeline.AuditEnabled {
		csvSink, err := audit.NewCSVSink(config.Pipeline.CSVDir, time.Now())
		if err != nil {
			return nil, err
		}
		slog.Info("audit log created", "path", csvSink.Path())
		sink = csvSink
	}

	documents, err := store.Open(ctx, config, clients)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", config.Store.Backend, err)
	}

	driver := NewDriver(config, Dependencies{
		Annotator: client,
		Embedder:  embedder,
		Store:     documents,
		Sink:      sink,
		Sampler:   sampler.NewSampler(sampler.NewFFmpegOpener(config.Pipeline.FFmpegPath, config.Pipeline.FFprobePath)),
		Resolver:  fetch.NewFetcher(&http.Client{}, clients.StorageClient, config.Pipeline.TempDir),
	})
	driver.ownsStore = true
	return driver, nil
}

// Store returns the document store the driver writes to.
func (d *Driver) Store() store.Store {
	return d.store
}

// Close releases the store when the driver created it.
func (d *Driver) Close() error {
	if d.ownsStore {
		return d.store.Close()
	}
	return nil
}
