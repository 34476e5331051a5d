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
	"bytes"
	"errors"
	"image"
	_ "image/jpeg"
	"log/slog"
	"os"

	"github.com/h2non/filetype"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/annotator"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/metadata"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
)

// ImageLoader reads a photograph from disk.
//
// Inputs:
//   - CtxIn: the image path.
//
// Outputs:
//   - ParamImageMetadata: the decoded EXIF fields (empty when absent).
//   - ParamImageBase64 / CtxOut: the image re-encoded as base64 JPEG.
type ImageLoader struct {
	cor.BaseCommand
}

func NewImageLoader(name string) *ImageLoader {
	return &ImageLoader{BaseCommand: *cor.NewBaseCommand(name)}
}

func (c *ImageLoader) Execute(context cor.Context) {
	path := context.Get(c.GetInputParam()).(string)

	fail := func(err error) {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), model.NewPipelineError(model.KindMediaUnreadable, path, err))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fail(err)
		return
	}
	if !filetype.IsImage(data) {
		fail(errors.New("file content is not an image"))
		return
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		fail(err)
		return
	}
	encoded, err := annotator.EncodeJPEGBase64(img)
	if err != nil {
		fail(err)
		return
	}

	meta := metadata.Decode(bytes.NewReader(data))
	slog.DebugContext(context.GetContext(), "image loaded", "file", path, "format", format,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(ParamImageMetadata, meta)
	context.Add(ParamImageBase64, encoded)
	context.Add(c.GetOutputParam(), encoded)
}
