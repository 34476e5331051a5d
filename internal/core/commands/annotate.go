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

package commands

import (
	"log/slog"
	"time"

	"github.com/jaycherian/gcp-go-media-annotator/internal/cloud"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/annotator"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ObjectDetector asks the model for the objects in the encoded image held in
// ParamImageBase64 and stores them under ParamObjects. An empty list is a
// valid result; a response that cannot be parsed is an AnnotationFailed
// error.
type ObjectDetector struct {
	cor.BaseCommand
	client  annotator.Client
	prompts cloud.PromptTemplates
	frame   bool
	timeout time.Duration
}

// NewObjectDetector creates the detector. frame selects the video frame
// prompt instead of the photograph prompt.
func NewObjectDetector(name string, client annotator.Client, prompts cloud.PromptTemplates, frame bool, timeout time.Duration) *ObjectDetector {
	out := &ObjectDetector{
		BaseCommand: *cor.NewBaseCommand(name),
		client:      client,
		prompts:     prompts,
		frame:       frame,
		timeout:     timeout,
	}
	out.InputParamName = ParamImageBase64
	out.OutputParamName = ParamObjects
	return out
}

func (c *ObjectDetector) Execute(context cor.Context) {
	encoded := context.Get(c.GetInputParam()).(string)
	subject, _ := context.Get(ParamSubject).(string)

	ctx, cancel := withTimeout(context.GetContext(), c.timeout)
	defer cancel()

	objects, err := annotator.DetectObjects(ctx, c.client, subject, annotator.ObjectsRequest(c.prompts, encoded, c.frame))
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), err)
		return
	}
	if objects == nil {
		objects = []model.DetectedObject{}
	}
	slog.DebugContext(context.GetContext(), "objects detected", "file", subject, "count", len(objects))

	c.GetSuccessCounter().Add(context.GetContext(), 1, metric.WithAttributes(attribute.Bool("frame", c.frame)))
	context.Add(c.GetOutputParam(), objects)
}

// SceneDescriber stores the model's free text description of the encoded
// image under ParamDescription.
type SceneDescriber struct {
	cor.BaseCommand
	client  annotator.Client
	prompts cloud.PromptTemplates
	frame   bool
	timeout time.Duration
}

func NewSceneDescriber(name string, client annotator.Client, prompts cloud.PromptTemplates, frame bool, timeout time.Duration) *SceneDescriber {
	out := &SceneDescriber{
		BaseCommand: *cor.NewBaseCommand(name),
		client:      client,
		prompts:     prompts,
		frame:       frame,
		timeout:     timeout,
	}
	out.InputParamName = ParamImageBase64
	out.OutputParamName = ParamDescription
	return out
}

func (c *SceneDescriber) Execute(context cor.Context) {
	encoded := context.Get(c.GetInputParam()).(string)
	subject, _ := context.Get(ParamSubject).(string)

	ctx, cancel := withTimeout(context.GetContext(), c.timeout)
	defer cancel()

	description, err := annotator.Describe(ctx, c.client, subject, annotator.DescriptionRequest(c.prompts, encoded, c.frame))
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), err)
		return
	}
	c.GetSuccessCounter().Add(context.GetContext(), 1, metric.WithAttributes(attribute.Bool("frame", c.frame)))
	context.Add(c.GetOutputParam(), description)
}
