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
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
)

// ImageRecordBuilder composes the model.ImageRecord of a photograph from the
// subject, EXIF metadata, objects and description in the context.
type ImageRecordBuilder struct {
	cor.BaseCommand
	modelID string
}

func NewImageRecordBuilder(name string, modelID string) *ImageRecordBuilder {
	out := &ImageRecordBuilder{BaseCommand: *cor.NewBaseCommand(name), modelID: modelID}
	out.InputParamName = ParamDescription
	out.OutputParamName = ParamRecord
	return out
}

func (c *ImageRecordBuilder) Execute(context cor.Context) {
	subject := context.Get(ParamSubject).(string)
	meta, _ := context.Get(ParamImageMetadata).(model.ImageMetadata)
	objects, _ := context.Get(ParamObjects).([]model.DetectedObject)
	description := context.Get(c.GetInputParam()).(string)

	record := model.NewImageRecord(subject, meta, objects, description, c.modelID)
	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), model.Record(record))
}

// FrameRecordBuilder composes the model.VideoFrameRecord of the frame in
// ParamFrame. The record's file name is ParamSubject, the identity of the
// video, so downloaded videos are recorded under their URL.
type FrameRecordBuilder struct {
	cor.BaseCommand
	modelID string
}

func NewFrameRecordBuilder(name string, modelID string) *FrameRecordBuilder {
	out := &FrameRecordBuilder{BaseCommand: *cor.NewBaseCommand(name), modelID: modelID}
	out.InputParamName = ParamDescription
	out.OutputParamName = ParamRecord
	return out
}

func (c *FrameRecordBuilder) Execute(context cor.Context) {
	subject := context.Get(ParamSubject).(string)
	frame := context.Get(ParamFrame).(*model.FrameSample)
	objects, _ := context.Get(ParamObjects).([]model.DetectedObject)
	description := context.Get(c.GetInputParam()).(string)

	record := model.NewVideoFrameRecord(subject, frame, objects, description, c.modelID)
	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), model.Record(record))
}
