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
	"errors"
	"fmt"

	"github.com/jaycherian/gcp-go-media-annotator/internal/cloud"
)

// New returns the client selected by annotator.backend.
func New(config *cloud.Config, clients *cloud.ServiceClients) (Client, error) {
	switch config.Annotator.Backend {
	case cloud.BackendGenAI:
		if clients == nil || clients.AgentModel == nil {
			return nil, errors.New("genai annotator requires an initialized agent model")
		}
		return NewGenAIClient("annotator", clients.AgentModel), nil
	case cloud.BackendOllama:
		client, err := NewOllamaAPIClient(config.Annotator.OllamaHost, nil)
		if err != nil {
			return nil, err
		}
		return NewOllamaClient(client, config.Annotator), nil
	default:
		return nil, fmt.Errorf("unsupported annotator backend %q", config.Annotator.Backend)
	}
}
