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
// This file contains the configuration loader and the GenAI response helper.
//
// Functions:
//   - LoadConfig: hierarchical TOML loading. A base file is read first and an
//     environment-specific file (e.g. .env.test.toml) overwrites its values.
//   - Load: NewConfig defaults, LoadConfig, environment overrides, validation.
//   - GenerateMultiModalResponse: calls a QuotaAwareGenerativeAIModel and
//     records token usage.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"
)

// Constants for configuration loading.
const (
	ConfigFileBaseName  = ".env"              // Base name of configuration files (".env.toml").
	ConfigFileExtension = ".toml"             // Extension of configuration files.
	ConfigSeparator     = "."                 // Separator between base name and runtime (".env.local.toml").
	EnvConfigFilePrefix = "GCP_CONFIG_PREFIX" // Directory holding the configuration files.
	EnvConfigRuntime    = "GCP_RUNTIME"       // Runtime name selecting the override file ("local", "test", "prod").
	EnvPrefix           = "annotator"         // Prefix of environment overrides (ANNOTATOR_LOG_FORMAT, ...).
	DefaultRuntime      = "local"
)

func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// ConfigFiles returns the base and runtime-specific configuration file paths.
func ConfigFiles() (base string, runtime string) {
	prefix := os.Getenv(EnvConfigFilePrefix)
	if len(prefix) > 0 && !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix = prefix + string(os.PathSeparator)
	}
	env := os.Getenv(EnvConfigRuntime)
	if env == "" {
		env = DefaultRuntime
	}
	base = prefix + ConfigFileBaseName + ConfigFileExtension
	runtime = prefix + ConfigFileBaseName + ConfigSeparator + env + ConfigFileExtension
	return base, runtime
}

// LoadConfig decodes the base configuration file and then the runtime file
// into baseConfig. Missing files are skipped.
//
// Inputs:
//   - baseConfig: pointer to the struct to populate.
//
// Outputs:
//   - error: a decode error naming the offending file.
func LoadConfig(baseConfig interface{}) error {
	base, runtime := ConfigFiles()
	for _, name := range []string{base, runtime} {
		if !fileExists(name) {
			slog.Debug("configuration file not found", "file", name)
			continue
		}
		if _, err := toml.DecodeFile(name, baseConfig); err != nil {
			return fmt.Errorf("failed to decode configuration file %s: %w", name, err)
		}
		slog.Debug("loaded configuration file", "file", name)
	}
	return nil
}

// ApplyEnvironment overrides configuration values from ANNOTATOR_* variables.
func (c *Config) ApplyEnvironment() error {
	sections := []struct {
		prefix string
		target interface{}
	}{
		{EnvPrefix, &c.Application},
		{EnvPrefix + "_pipeline", &c.Pipeline},
		{EnvPrefix + "_vision", &c.Annotator},
		{EnvPrefix + "_embedding", &c.Embedding},
		{EnvPrefix + "_store", &c.Store},
	}
	for _, s := range sections {
		if err := envconfig.Process(s.prefix, s.target); err != nil {
			return fmt.Errorf("invalid environment override: %w", err)
		}
	}
	return nil
}

var validate = validator.New()

// Validate checks the configuration constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Load builds the effective configuration.
func Load() (*Config, error) {
	config := NewConfig()
	if err := LoadConfig(config); err != nil {
		return nil, err
	}
	if err := config.ApplyEnvironment(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// GenerateMultiModalResponse sends content to the model and returns the
// concatenated text of the response with any Markdown JSON fence removed.
//
// Inputs:
//   - ctx: request context.
//   - inputTokenCounter, outputTokenCounter: token usage counters.
//   - model: the rate limited model.
//   - content: the prompt.
//
// Outputs:
//   - string: the response text.
//   - error: the model error after retries.
func GenerateMultiModalResponse(
	ctx context.Context,
	inputTokenCounter metric.Int64Counter,
	outputTokenCounter metric.Int64Counter,
	model *QuotaAwareGenerativeAIModel,
	content []*genai.Content) (value string, err error) {
	resp, err := model.GenerateContent(ctx, content)
	if err != nil {
		return "", err
	}
	if resp.UsageMetadata != nil {
		if inputTokenCounter != nil {
			inputTokenCounter.Add(ctx, int64(resp.UsageMetadata.PromptTokenCount))
		}
		if outputTokenCounter != nil {
			outputTokenCounter.Add(ctx, int64(resp.UsageMetadata.CandidatesTokenCount))
		}
	}

	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	return StripCodeFence(sb.String()), nil
}

// StripCodeFence removes a surrounding ```json or ``` Markdown fence.
func StripCodeFence(value string) string {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "```") {
		return value
	}
	value = strings.TrimPrefix(value, "```json")
	value = strings.TrimPrefix(value, "```JSON")
	value = strings.TrimPrefix(value, "```")
	value = strings.TrimSuffix(value, "```")
	return strings.TrimSpace(value)
}
