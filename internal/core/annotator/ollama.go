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

package annotator

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jaycherian/gcp-go-media-annotator/internal/cloud"
	"github.com/ollama/ollama/api"
)

// OllamaClient annotates with a vision model served by Ollama.
type OllamaClient struct {
	client  *api.Client
	model   string
	options map[string]interface{}
}

// NewOllamaAPIClient returns an Ollama API client for host, or for the
// OLLAMA_HOST environment when host is empty. httpClient may be nil.
func NewOllamaAPIClient(host string, httpClient *http.Client) (*api.Client, error) {
	if host == "" {
		return api.ClientFromEnvironment()
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return api.NewClient(base, httpClient), nil
}

// NewOllamaClient creates the client with the sampling options of config.
func NewOllamaClient(client *api.Client, config cloud.AnnotatorConfig) *OllamaClient {
	options := map[string]interface{}{
		"temperature": config.Temperature,
	}
	if config.TopP > 0 {
		options["top_p"] = config.TopP
	}
	if config.TopK > 0 {
		options["top_k"] = int(config.TopK)
	}
	if config.MaxTokens > 0 {
		options["num_predict"] = int(config.MaxTokens)
	}
	return &OllamaClient{client: client, model: config.Model, options: options}
}

func (o *OllamaClient) ModelID() string {
	return o.model
}

// Annotate sends a non-streaming chat request with the system prompt and a
// user message carrying the image. The JSON flag is not forwarded; the object
// prompts ask for a JSON list themselves.
func (o *OllamaClient) Annotate(ctx context.Context, req Request) (string, error) {
	data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		return "", fmt.Errorf("invalid image encoding: %w", err)
	}

	stream := false
	chat := &api.ChatRequest{
		Model:  o.model,
		Stream: &stream,
		Messages: []api.Message{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.Instruction, Images: []api.ImageData{data}},
		},
		Options: o.options,
	}

	var sb strings.Builder
	err = o.client.Chat(ctx, chat, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat with %s failed: %w", o.model, err)
	}
	return sb.String(), nil
}
