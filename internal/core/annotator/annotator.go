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

// Package annotator is the boundary to the vision-language model that
// describes images and lists the objects in them.
//
// Every request carries an instruction, a system prompt and one base64 JPEG.
// Two response shapes are consumed:
//   - free text, returned as-is by Describe;
//   - a JSON list of {name, description} items, parsed by DetectObjects. A
//     response that cannot be parsed is an AnnotationFailed error, never an
//     empty list.
//
// Backends:
//   - OllamaClient: a local Ollama server (the default, llava).
//   - GenAIClient: Gemini on Vertex AI through the rate limited model wrapper.
package annotator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"sort"
	"strings"

	"github.com/jaycherian/gcp-go-media-annotator/internal/cloud"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
)

// JPEGQuality is the quality used when re-encoding images for the model.
const JPEGQuality = 75

// Request is a single annotation call.
type Request struct {
	Instruction  string // What to do with the image.
	ImageBase64  string // Base64 (standard encoding) JPEG bytes.
	SystemPrompt string // Persona and output rules.
	JSON         bool   // Ask the backend for a JSON response when it supports it.
}

// Client is implemented by every model backend.
type Client interface {
	// Annotate returns the raw text produced by the model.
	Annotate(ctx context.Context, req Request) (string, error)
	// ModelID identifies the model; it is stored as generated_with.
	ModelID() string
}

// EncodeJPEGBase64 encodes img as a JPEG and returns its base64 text.
func EncodeJPEGBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ObjectsRequest builds the object detection request for an image or frame.
func ObjectsRequest(prompts cloud.PromptTemplates, imageBase64 string, frame bool) Request {
	instruction := prompts.ImageObjects
	if frame {
		instruction = prompts.FrameObjects
	}
	if prompts.IncludeJSONSample {
		instruction = fmt.Sprintf("%s\nExample:\n%s", instruction, model.GetExampleObjectsJSON())
	}
	return Request{
		Instruction:  instruction,
		ImageBase64:  imageBase64,
		SystemPrompt: prompts.ObjectSystem,
		JSON:         true,
	}
}

// DescriptionRequest builds the scene description request for an image or
// frame.
func DescriptionRequest(prompts cloud.PromptTemplates, imageBase64 string, frame bool) Request {
	instruction := prompts.ImageDescription
	if frame {
		instruction = prompts.FrameDescription
	}
	return Request{
		Instruction:  instruction,
		ImageBase64:  imageBase64,
		SystemPrompt: prompts.VisionSystem,
	}
}

// DetectObjects runs req and parses the detected objects. Both transport and
// parse failures are returned as AnnotationFailed errors.
func DetectObjects(ctx context.Context, client Client, subject string, req Request) ([]model.DetectedObject, error) {
	out, err := client.Annotate(ctx, req)
	if err != nil {
		return nil, model.NewPipelineError(model.KindAnnotationFailed, subject, err)
	}
	objects, err := ParseObjects(out)
	if err != nil {
		return nil, model.NewPipelineError(model.KindAnnotationFailed, subject, err)
	}
	return objects, nil
}

// Describe runs req and returns the trimmed description.
func Describe(ctx context.Context, client Client, subject string, req Request) (string, error) {
	out, err := client.Annotate(ctx, req)
	if err != nil {
		return "", model.NewPipelineError(model.KindAnnotationFailed, subject, err)
	}
	return strings.TrimSpace(out), nil
}

// ParseObjects decodes a model response into detected objects. It accepts a
// JSON array of objects, a single object with a name, or an object holding
// such an array under one of its keys (tried in sorted key order). Markdown
// code fences are ignored. A JSON null anywhere in place of the list is an
// error; an empty array is not.
func ParseObjects(raw string) ([]model.DetectedObject, error) {
	text := cloud.StripCodeFence(raw)
	if text == "" {
		return nil, fmt.Errorf("empty object detection response")
	}

	if list, ok := decodeObjectList([]byte(text)); ok {
		return list, nil
	}

	var single model.DetectedObject
	if err := json.Unmarshal([]byte(text), &single); err == nil && single.Name != "" {
		return []model.DetectedObject{single}, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &wrapper); err != nil {
		return nil, fmt.Errorf("malformed object detection response: %w", err)
	}
	keys := make([]string, 0, len(wrapper))
	for key := range wrapper {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if list, ok := decodeObjectList(wrapper[key]); ok {
			return list, nil
		}
	}
	return nil, fmt.Errorf("object detection response is not a list of objects: %.80s", text)
}

// decodeObjectList decodes data only when it is a JSON array of objects.
func decodeObjectList(data []byte) ([]model.DetectedObject, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, false
	}
	var list []model.DetectedObject
	if err := json.Unmarshal(data, &list); err != nil || list == nil {
		return nil, false
	}
	return list, true
}
