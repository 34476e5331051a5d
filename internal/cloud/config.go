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

// Package cloud defines the application configuration and the clients used to
// reach external services: the annotation and embedding models, the document
// store backends and the Pub/Sub intake subscription.
//
// This file centralizes the configuration structs. Values come from
// NewConfig defaults, then the TOML files read by LoadConfig, then
// environment overrides.
//
// Structs:
//   - ApplicationConfig: name, project, logging and telemetry switches.
//   - PipelineConfig: discovery root, sampling intervals, audit log and tools.
//   - AnnotatorConfig: vision model backend, generation settings and prompts.
//   - EmbeddingConfig: embedding model backend.
//   - StoreConfig: document store backend and connection settings.
//   - BigQueryDataSource: dataset and table for the BigQuery store.
//   - TopicSubscription: a Pub/Sub subscription for URL intake.
//   - Config: the root of the configuration tree.
package cloud

import "google.golang.org/genai"

// DefaultSafetySettings lets every harm category through.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// Backend names.
const (
	BackendOllama   = "ollama"
	BackendGenAI    = "genai"
	BackendSQLite   = "sqlite"
	BackendBigQuery = "bigquery"
	BackendPostgres = "postgres"
)

// ApplicationConfig holds general application settings.
type ApplicationConfig struct {
	Name             string `toml:"name" validate:"required"`
	GoogleProjectId  string `toml:"google_project_id" split_words:"true"`
	GoogleLocation   string `toml:"location" split_words:"true"`
	LogFormat        string `toml:"log_format" split_words:"true" validate:"oneof=json console"`
	LogLevel         string `toml:"log_level" split_words:"true" validate:"oneof=debug info warn error"`
	TelemetryEnabled bool   `toml:"telemetry_enabled" split_words:"true"`
	HTTPPort         int    `toml:"http_port" split_words:"true" validate:"gte=0,lte=65535"`
	// SignerServiceAccountEmail signs streaming URLs for gs:// media. Empty
	// disables signing.
	SignerServiceAccountEmail string `toml:"signer_service_account_email" split_words:"true"`
}

// PipelineConfig controls discovery, sampling and the audit log.
type PipelineConfig struct {
	RootDir              string  `toml:"root_dir" split_words:"true" validate:"required"`
	BatchIntervalSeconds float64 `toml:"batch_interval_seconds" validate:"gt=0"`
	URLIntervalSeconds   float64 `toml:"url_interval_seconds" validate:"gt=0"`
	AuditEnabled         bool    `toml:"audit_enabled" split_words:"true"`
	CSVDir               string  `toml:"csv_dir" split_words:"true" validate:"required_if=AuditEnabled true"`
	TempDir              string  `toml:"temp_dir" split_words:"true"`
	FFmpegPath           string  `toml:"ffmpeg_path" validate:"required"`
	FFprobePath          string  `toml:"ffprobe_path" validate:"required"`
	FetchTimeoutSeconds  int     `toml:"fetch_timeout_seconds" validate:"gte=0"`
}

// PromptTemplates holds the instructions sent with every image.
type PromptTemplates struct {
	ObjectSystem      string `toml:"object_system" validate:"required"`
	VisionSystem      string `toml:"vision_system" validate:"required"`
	ImageObjects      string `toml:"image_objects" validate:"required"`
	ImageDescription  string `toml:"image_description" validate:"required"`
	FrameObjects      string `toml:"frame_objects" validate:"required"`
	FrameDescription  string `toml:"frame_description" validate:"required"`
	IncludeJSONSample bool   `toml:"include_json_sample"`
}

// AnnotatorConfig selects and tunes the vision-language model.
type AnnotatorConfig struct {
	Backend        string          `toml:"backend" split_words:"true" validate:"oneof=ollama genai"`
	Model          string          `toml:"model" split_words:"true" validate:"required"`
	OllamaHost     string          `toml:"ollama_host" split_words:"true"`
	Temperature    float32         `toml:"temperature" validate:"gte=0,lte=2"`
	TopP           float32         `toml:"top_p" validate:"gte=0,lte=1"`
	TopK           float32         `toml:"top_k" validate:"gte=0"`
	MaxTokens      int32           `toml:"max_tokens" validate:"gte=0"`
	RateLimit      int             `toml:"rate_limit" validate:"gte=1"`
	TimeoutSeconds int             `toml:"timeout_seconds" validate:"gte=0"`
	Prompts        PromptTemplates `toml:"prompts"`
}

// EmbeddingConfig selects the embedding model.
type EmbeddingConfig struct {
	Backend    string `toml:"backend" split_words:"true" validate:"oneof=ollama genai"`
	Model      string `toml:"model" split_words:"true" validate:"required"`
	OllamaHost string `toml:"ollama_host" split_words:"true"`
	Dimensions int    `toml:"dimensions" validate:"gte=0"`
}

// StoreConfig selects the document store.
type StoreConfig struct {
	Backend        string `toml:"backend" split_words:"true" validate:"oneof=sqlite bigquery postgres"`
	Dir            string `toml:"dir" split_words:"true" validate:"required_if=Backend sqlite"`
	Collection     string `toml:"collection" validate:"required"`
	PostgresDSN    string `toml:"postgres_dsn" split_words:"true" validate:"required_if=Backend postgres"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"gte=0"`
}

// BigQueryDataSource names the dataset and table of the BigQuery store.
type BigQueryDataSource struct {
	DatasetName   string `toml:"dataset"`
	DocumentTable string `toml:"document_table"`
}

// TopicSubscription is one Pub/Sub subscription.
type TopicSubscription struct {
	Name             string `toml:"name"`
	DeadLetterTopic  string `toml:"dead_letter_topic"`
	TimeoutInSeconds int    `toml:"timeout_in_seconds"`
}

// QueryConfig holds query mode defaults.
type QueryConfig struct {
	DefaultCount int `toml:"default_count" validate:"gte=1"`
	PreviewRunes int `toml:"preview_runes" validate:"gte=1"`
}

// Config is the root of the configuration tree.
type Config struct {
	Application        ApplicationConfig            `toml:"application"`
	Pipeline           PipelineConfig               `toml:"pipeline"`
	Annotator          AnnotatorConfig              `toml:"annotator"`
	Embedding          EmbeddingConfig              `toml:"embedding"`
	Store              StoreConfig                  `toml:"store"`
	BigQueryDataSource BigQueryDataSource           `toml:"big_query_data_source"`
	Query              QueryConfig                  `toml:"query"`
	TopicSubscriptions map[string]TopicSubscription `toml:"topic_subscriptions"`
}

// Default prompts.
const (
	DefaultVisionSystemPrompt = `You're an expert image and photo analyzer.
You are very perceptive in analyzing images and photos.
You possess excellent vision.
Do not read any text unless it is the most prominent in the image.
Your description should be neutral in tone.`

	DefaultObjectSystemPrompt = `You're an expert image and photo analyzer.
You are very perceptive in analyzing images and photos.
You possess excellent vision.
Do not read any text unless it is the most prominent in the image.
You should always output your results in json format, for example:

[
 {"name": "a detected object", "description": "the detected object's description"},
 {"name": "another detected object", "description": "the other detected object's description"}
]`

	DefaultImageObjectsPrompt     = "Identify objects in the image. Return a json list of json items of the detected objects. Include only the names of each object and a short description of the object. The field names should be 'name' and 'description' respectively."
	DefaultImageDescriptionPrompt = "Describe the image in as much detail as possible. Do not try to read any text."
	DefaultFrameObjectsPrompt     = "Identify objects in the video frame. Return a json list of json items of the detected objects. Include only the names of each object and a short description of the object. The field names should be 'name' and 'description' respectively."
	DefaultFrameDescriptionPrompt = "Describe this video frame in as much detail as possible. Focus on the main subjects, actions, and scene composition. Do not try to read any text."
)

// NewConfig returns a Config populated with the defaults of a local,
// self-contained installation: Ollama models and a SQLite store next to the
// media folder.
func NewConfig() *Config {
	return &Config{
		Application: ApplicationConfig{
			Name:      "media-annotator",
			LogFormat: "console",
			LogLevel:  "info",
			HTTPPort:  8080,
		},
		Pipeline: PipelineConfig{
			RootDir:              "./images_clips",
			BatchIntervalSeconds: 2,
			URLIntervalSeconds:   10,
			AuditEnabled:         true,
			CSVDir:               "./csv_logs",
			FFmpegPath:           "ffmpeg",
			FFprobePath:          "ffprobe",
			FetchTimeoutSeconds:  600,
		},
		Annotator: AnnotatorConfig{
			Backend:        BackendOllama,
			Model:          "llava:13b",
			Temperature:    0.2,
			TopP:           0.9,
			TopK:           40,
			RateLimit:      1,
			TimeoutSeconds: 300,
			Prompts: PromptTemplates{
				ObjectSystem:     DefaultObjectSystemPrompt,
				VisionSystem:     DefaultVisionSystemPrompt,
				ImageObjects:     DefaultImageObjectsPrompt,
				ImageDescription: DefaultImageDescriptionPrompt,
				FrameObjects:     DefaultFrameObjectsPrompt,
				FrameDescription: DefaultFrameDescriptionPrompt,
			},
		},
		Embedding: EmbeddingConfig{
			Backend: BackendOllama,
			Model:   "nomic-embed-text:v1.5",
		},
		Store: StoreConfig{
			Backend:        BackendSQLite,
			Dir:            "./db_photos",
			Collection:     "photo_collection",
			TimeoutSeconds: 60,
		},
		BigQueryDataSource: BigQueryDataSource{
			DatasetName:   "media_annotator",
			DocumentTable: "photo_collection",
		},
		Query: QueryConfig{
			DefaultCount: 5,
			PreviewRunes: 200,
		},
		TopicSubscriptions: make(map[string]TopicSubscription),
	}
}
