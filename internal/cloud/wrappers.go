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
// This file wraps the GenAI models client with a rate limiter and a bounded
// retry.
//
// Structs:
//   - QuotaAwareGenerativeAIModel: model name, generation settings, limiter.
//
// Functions:
//   - NewQuotaAwareModel: constructor.
//   - GenerateContent: waits for the limiter, then calls the model, retrying
//     failed calls with exponential backoff.
package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// MaxRetries is the number of retries after a failed model call.
const MaxRetries = 3

// ContentGenerator is the part of *genai.Models used by the wrapper.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// QuotaAwareGenerativeAIModel decorates a ContentGenerator with rate
// limiting and retries.
type QuotaAwareGenerativeAIModel struct {
	GenerativeContentConfig *genai.GenerateContentConfig // Settings sent with every request.
	ModelName               string                       // Model identifier, e.g. "gemini-2.0-flash".
	ModelHandle             ContentGenerator             // Usually genai.Client.Models.
	RateLimit               *rate.Limiter                // Requests per second with a burst of the same size.
	RetryDelay              time.Duration                // First backoff; doubled on each retry.
}

// NewQuotaAwareModel creates the wrapper allowing requestsPerSecond calls per
// second.
//
// Inputs:
//   - wrapped: generation settings.
//   - name: model identifier.
//   - handle: the models client.
//   - requestsPerSecond: limiter rate and burst; values below 1 mean 1.
func NewQuotaAwareModel(wrapped *genai.GenerateContentConfig, name string, handle ContentGenerator, requestsPerSecond int) *QuotaAwareGenerativeAIModel {
	if requestsPerSecond < 1 {
		requestsPerSecond = 1
	}
	return &QuotaAwareGenerativeAIModel{
		GenerativeContentConfig: wrapped,
		ModelName:               name,
		ModelHandle:             handle,
		RateLimit:               rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		RetryDelay:              2 * time.Second,
	}
}

// GenerateContent waits for a limiter token and calls the model. Failed calls
// are retried up to MaxRetries times, each retry also waiting for a token.
// Cancellation of ctx ends the wait immediately.
func (q *QuotaAwareGenerativeAIModel) GenerateContent(ctx context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error) {
	delay := q.RetryDelay
	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			slog.WarnContext(ctx, "retrying model call", "model", q.ModelName, "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		if err := q.RateLimit.Wait(ctx); err != nil {
			return nil, err
		}
		resp, err := q.ModelHandle.GenerateContent(ctx, q.ModelName, content, q.GenerativeContentConfig)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed generation after %d retries: %w", MaxRetries, lastErr)
}
