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

	"github.com/jaycherian/gcp-go-media-annotator/internal/cloud"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"
)

// GenAIClient annotates with a Gemini model. Token usage is recorded on the
// "<name>.gemini.token.input" and "<name>.gemini.token.output" counters.
type GenAIClient struct {
	model              *cloud.QuotaAwareGenerativeAIModel
	inputTokenCounter  metric.Int64Counter
	outputTokenCounter metric.Int64Counter
}

// NewGenAIClient wraps a rate limited model. name scopes the token counters.
func NewGenAIClient(name string, generativeAIModel *cloud.QuotaAwareGenerativeAIModel) *GenAIClient {
	meter := otel.Meter(name)
	out := &GenAIClient{model: generativeAIModel}
	out.inputTokenCounter, _ = meter.Int64Counter(fmt.Sprintf("%s.gemini.token.input", name))
	out.outputTokenCounter, _ = meter.Int64Counter(fmt.Sprintf("%s.gemini.token.output", name))
	return out
}

func (g *GenAIClient) ModelID() string {
	return g.model.ModelName
}

// Annotate sends the image as inline JPEG bytes followed by the instruction.
// The system prompt is sent as the system instruction of a per-request copy
// of the generation settings.
func (g *GenAIClient) Annotate(ctx context.Context, req Request) (string, error) {
	data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		return "", fmt.Errorf("invalid image encoding: %w", err)
	}

	config := &genai.GenerateContentConfig{}
	if g.model.GenerativeContentConfig != nil {
		copied := *g.model.GenerativeContentConfig
		config = &copied
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	requestModel := *g.model
	requestModel.GenerativeContentConfig = config

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, "image/jpeg"),
			genai.NewPartFromText(req.Instruction),
		}, genai.RoleUser),
	}
	return cloud.GenerateMultiModalResponse(ctx, g.inputTokenCounter, g.outputTokenCounter, &requestModel, contents)
}
