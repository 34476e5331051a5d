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

// Package embedding turns page content and search text into vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/jaycherian/gcp-go-media-annotator/internal/cloud"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/annotator"
	"github.com/ollama/ollama/api"
	"google.golang.org/genai"
)

// Embedder produces the vector of a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ContentEmbedder is the part of *genai.Models used by GenAIEmbedder.
type ContentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// GenAIEmbedder embeds with a Vertex AI text embedding model.
type GenAIEmbedder struct {
	models     ContentEmbedder
	model      string
	dimensions int32
}

func NewGenAIEmbedder(models ContentEmbedder, model string, dimensions int) *GenAIEmbedder {
	return &GenAIEmbedder{models: models, model: model, dimensions: int32(dimensions)}
}

func (g *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var config *genai.EmbedContentConfig
	if g.dimensions > 0 {
		config = &genai.EmbedContentConfig{OutputDimensionality: genai.Ptr[int32](g.dimensions)}
	}
	resp, err := g.models.EmbedContent(ctx, g.model, genai.Text(text), config)
	if err != nil {
		return nil, fmt.Errorf("embedding with %s failed: %w", g.model, err)
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("embedding with %s returned no vectors", g.model)
	}
	return resp.Embeddings[0].Values, nil
}

// OllamaEmbedder embeds with a model served by Ollama.
type OllamaEmbedder struct {
	client *api.Client
	model  string
}

func NewOllamaEmbedder(client *api.Client, model string) *OllamaEmbedder {
	return &OllamaEmbedder{client: client, model: model}
}

func (o *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.Embed(ctx, &api.EmbedRequest{Model: o.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("embedding with %s failed: %w", o.model, err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("embedding with %s returned no vectors", o.model)
	}
	return resp.Embeddings[0], nil
}

// New returns the embedder selected by embedding.backend.
func New(config *cloud.Config, clients *cloud.ServiceClients) (Embedder, error) {
	switch config.Embedding.Backend {
	case cloud.BackendGenAI:
		if clients == nil || clients.GenAIClient == nil {
			return nil, errors.New("genai embedder requires an initialized genai client")
		}
		return NewGenAIEmbedder(clients.GenAIClient.Models, config.Embedding.Model, config.Embedding.Dimensions), nil
	case cloud.BackendOllama:
		client, err := annotator.NewOllamaAPIClient(config.Embedding.OllamaHost, nil)
		if err != nil {
			return nil, err
		}
		return NewOllamaEmbedder(client, config.Embedding.Model), nil
	default:
		return nil, fmt.Errorf("unsupported embedding backend %q", config.Embedding.Backend)
	}
}
