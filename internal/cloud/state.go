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

// Package cloud provides components for interacting with external services.
// This file builds the container of service clients shared by the CLI, the
// HTTP server and the tests.
//
// Logic Flow:
//  1. NewCloudServiceClients is called once at startup with the Config.
//  2. Only the clients the configuration needs are created: GenAI when a
//     model backend is "genai", BigQuery for the "bigquery" store, Pub/Sub
//     when subscriptions are configured. Storage is created on a best-effort
//     basis for gs:// references.
//  3. The GenAI agent model is wrapped in a QuotaAwareGenerativeAIModel.
//  4. Close releases everything that was created.
package cloud

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/multierr"
	"google.golang.org/genai"
)

// ServiceClients holds the clients of every external service in use. Fields
// are nil when the configuration does not need the service.
type ServiceClients struct {
	StorageClient   *storage.Client              // gs:// downloads.
	PubsubClient    *pubsub.Client               // URL intake.
	GenAIClient     *genai.Client                // Vertex AI models.
	BigQueryClient  *bigquery.Client             // BigQuery document store.
	PubSubListeners map[string]*PubSubListener   // Keyed by the subscription's logical name.
	AgentModel      *QuotaAwareGenerativeAIModel // Vision model when the annotator backend is genai.
}

// Close releases every created client.
func (c *ServiceClients) Close() error {
	var err error
	if c.StorageClient != nil {
		err = multierr.Append(err, c.StorageClient.Close())
	}
	if c.PubsubClient != nil {
		err = multierr.Append(err, c.PubsubClient.Close())
	}
	if c.BigQueryClient != nil {
		err = multierr.Append(err, c.BigQueryClient.Close())
	}
	return err
}

// NewAgentModelConfig converts annotator settings to GenAI generation settings.
func NewAgentModelConfig(a AnnotatorConfig) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:    genai.Ptr[float32](a.Temperature),
		SafetySettings: DefaultSafetySettings,
	}
	if a.TopP > 0 {
		cfg.TopP = genai.Ptr[float32](a.TopP)
	}
	if a.TopK > 0 {
		cfg.TopK = genai.Ptr[float32](a.TopK)
	}
	if a.MaxTokens > 0 {
		cfg.MaxOutputTokens = a.MaxTokens
	}
	return cfg
}

// NewCloudServiceClients creates the clients required by config.
//
// Inputs:
//   - ctx: the application root context.
//   - config: the loaded configuration.
//
// Outputs:
//   - *ServiceClients: the container; Close it on shutdown.
//   - error: the first client that failed to initialize.
func NewCloudServiceClients(ctx context.Context, config *Config) (*ServiceClients, error) {
	var err error
	cloud := &ServiceClients{PubSubListeners: make(map[string]*PubSubListener)}
	complete := false
	defer func() {
		if !complete {
			_ = cloud.Close()
		}
	}()

	if sc, serr := storage.NewClient(ctx); serr != nil {
		slog.Warn("storage client unavailable; gs:// urls will fail", "error", serr)
	} else {
		cloud.StorageClient = sc
	}

	if config.Annotator.Backend == BackendGenAI || config.Embedding.Backend == BackendGenAI {
		cloud.GenAIClient, err = genai.NewClient(ctx, &genai.ClientConfig{
			Project:  config.Application.GoogleProjectId,
			Location: config.Application.GoogleLocation,
			Backend:  genai.BackendVertexAI,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating genai client: %w", err)
		}
		slog.Debug("genai client created", "project", config.Application.GoogleProjectId, "location", config.Application.GoogleLocation)
	}
	if config.Annotator.Backend == BackendGenAI {
		cloud.AgentModel = NewQuotaAwareModel(NewAgentModelConfig(config.Annotator), config.Annotator.Model, cloud.GenAIClient.Models, config.Annotator.RateLimit)
	}

	if config.Store.Backend == BackendBigQuery {
		cloud.BigQueryClient, err = bigquery.NewClient(ctx, config.Application.GoogleProjectId)
		if err != nil {
			return nil, fmt.Errorf("error creating bigquery client: %w", err)
		}
	}

	if len(config.TopicSubscriptions) > 0 {
		cloud.PubsubClient, err = pubsub.NewClient(ctx, config.Application.GoogleProjectId)
		if err != nil {
			return nil, fmt.Errorf("error creating pubsub client: %w", err)
		}
		for key, values := range config.TopicSubscriptions {
			cloud.PubSubListeners[key] = NewPubSubListener(cloud.PubsubClient, values.Name, nil)
		}
	}
	complete = true
	return cloud, nil
}
