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
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/annotator"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
)

// FrameEncoder encodes the sampled frame in ParamFrame as base64 JPEG.
type FrameEncoder struct {
	cor.BaseCommand
}

func NewFrameEncoder(name string) *FrameEncoder {
	out := &FrameEncoder{BaseCommand: *cor.NewBaseCommand(name)}
	out.InputParamName = ParamFrame
	out.OutputParamName = ParamImageBase64
	return out
}

func (c *FrameEncoder) Execute(context cor.Context) {
	frame := context.Get(c.GetInputParam()).(*model.FrameSample)
	encoded, err := annotator.EncodeJPEGBase64(frame.Image)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		subject, _ := context.Get(ParamSubject).(string)
		context.AddError(c.GetName(), model.NewPipelineError(model.KindMediaUnreadable, subject, err))
		return
	}
	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), encoded)
}
