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

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/jaycherian/gcp-go-media-annotator/internal/cloud"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/embedding"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/services"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/store"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/workflow"
	"github.com/jaycherian/gcp-go-media-annotator/internal/telemetry"
	"go.uber.org/multierr"
)

// app holds what the commands share once the configuration is loaded.
type app struct {
	config   *cloud.Config
	clients  *cloud.ServiceClients
	shutdown func(context.Context) error
	closers  []io.Closer
}

func (a *app) init(ctx context.Context) error {
	if a.config != nil {
		return nil
	}
	if os.Getenv(cloud.EnvConfigFilePrefix) == "" {
		if err := os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	config, err := cloud.Load()
	if err != nil {
		return err
	}
	telemetry.SetupLogging(config.Application.LogFormat, config.Application.LogLevel)

	shutdown, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to setup OpenTelemetry: %w", err)
	}
	a.shutdown = shutdown

	clients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		return err
	}
	a.clients = clients
	a.config = config
	return nil
}

func (a *app) close() {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i].Close())
	}
	a.closers = nil
	if a.clients != nil {
		err = multierr.Append(err, a.clients.Close())
		a.clients = nil
	}
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = multierr.Append(err, a.shutdown(ctx))
		a.shutdown = nil
	}
	if err != nil {
		slog.Warn("shutdown incomplete", "error", err)
	}
}

func (a *app) driver(ctx context.Context) (*workflow.Driver, error) {
	driver, err := workflow.NewDriverFromConfig(ctx, a.config, a.clients)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, driver)
	return driver, nil
}

func (a *app) runBatch(ctx context.Context, out io.Writer, root string) error {
	driver, err := a.driver(ctx)
	if err != nil {
		return err
	}
	summary, err := driver.RunBatch(ctx, root)
	if err != nil {
		return err
	}
	printSummary(out, summary)
	return nil
}

func (a *app) runURL(ctx context.Context, out io.Writer, url string, interval float64) error {
	driver, err := a.driver(ctx)
	if err != nil {
		return err
	}
	summary, err := driver.RunURL(ctx, url, interval)
	if err != nil {
		return err
	}
	printSummary(out, summary)
	return nil
}

func (a *app) runQuery(ctx context.Context, out io.Writer, query string, count int, open bool) error {
	if count <= 0 {
		count = a.config.Query.DefaultCount
	}
	embedder, err := embedding.New(a.config, a.clients)
	if err != nil {
		return err
	}
	documents, err := store.Open(ctx, a.config, a.clients)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", a.config.Store.Backend, err)
	}
	a.closers = append(a.closers, documents)

	search := &services.SearchService{Embedder: embedder, Store: documents}
	results, err := search.Find(ctx, query, count)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Query: %s\n", query)
	if len(results) == 0 {
		fmt.Fprintln(out, "No matches found.")
		return nil
	}
	fmt.Fprintf(out, "Found %d matches\n\n", len(results))
	for i, r := range results {
		fmt.Fprintln(out, services.Format(i+1, r, a.config.Query.PreviewRunes))
		if open {
			if name := r.FileName(); name != "" {
				if err := openFile(name); err != nil {
					slog.Warn("failed to open file", "file", name, "error", err)
				}
			}
		}
	}
	return nil
}

func printSummary(out io.Writer, s *workflow.Summary) {
	for _, o := range s.Outcomes {
		if o.Unit.IsVideo() && o.State == workflow.StateDone {
			fmt.Fprintf(out, "%s: %d frames, %d objects\n", o.Unit.Source, o.Frames, o.Objects)
		}
	}
	fmt.Fprintf(out, "Processed: %d  Skipped: %d  Failed: %d\n", s.Processed, s.Skipped, s.Failed)
	fmt.Fprintf(out, "Frames: %d  Objects: %d  Audit warnings: %d\n", s.Frames, s.Objects, s.AuditWarnings)
}

func openFile(name string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", name)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", name)
	default:
		cmd = exec.Command("xdg-open", name)
	}
	return cmd.Start()
}
