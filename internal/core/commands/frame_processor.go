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
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/jaycherian/gcp-go-media-annotator/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/sampler"
)

// FrameProcessor samples the video at ParamLocalPath every ParamInterval
// seconds and runs the frame chain once per selected frame, in frame order.
// Each frame gets a fresh cor.Context carrying ParamSubject, ParamFrame and
// ParamStarted. The first frame failure is copied to the video's context and
// ends the loop; frames already stored stay stored.
//
// Outputs:
//   - ParamFrameCount: frames that completed the frame chain.
//   - ParamObjectCount: objects detected across those frames.
//   - ParamAuditWarnings: audit appends that failed.
type FrameProcessor struct {
	cor.BaseCommand
	sampler    *sampler.Sampler
	frameChain cor.Command
}

func NewFrameProcessor(name string, frameSampler *sampler.Sampler, frameChain cor.Command) *FrameProcessor {
	out := &FrameProcessor{BaseCommand: *cor.NewBaseCommand(name), sampler: frameSampler, frameChain: frameChain}
	out.InputParamName = ParamLocalPath
	out.OutputParamName = ParamFrameCount
	return out
}

func (c *FrameProcessor) Execute(context cor.Context) {
	path := context.Get(c.GetInputParam()).(string)
	subject, _ := context.Get(ParamSubject).(string)
	if subject == "" {
		subject = path
	}
	interval, _ := context.Get(ParamInterval).(float64)

	stream, err := c.sampler.Sample(context.GetContext(), path, interval)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), err)
		return
	}
	defer func() {
		if err := stream.Close(); err != nil {
			slog.WarnContext(context.GetContext(), "failed to close frame stream", "file", subject, "error", err)
		}
	}()
	slog.InfoContext(context.GetContext(), "sampling video", "file", subject, "fps", stream.FPS(),
		"frame_interval", stream.Interval())

	frames := 0
	objects := intValue(context.Get(ParamObjectCount))
	warnings := intValue(context.Get(ParamAuditWarnings))
	defer func() {
		context.Add(ParamObjectCount, objects)
		context.Add(ParamAuditWarnings, warnings)
		context.Add(c.GetOutputParam(), frames)
	}()

	for {
		frame, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.GetErrorCounter().Add(context.GetContext(), 1)
			context.AddError(c.GetName(), err)
			return
		}

		frameCtx := cor.NewBaseContextWith(context.GetContext())
		frameCtx.Add(ParamSubject, subject)
		frameCtx.Add(ParamFrame, frame)
		frameCtx.Add(ParamStarted, time.Now())
		frameCtx.Add(cor.CtxIn, frame)

		c.frameChain.Execute(frameCtx)

		objects += intValue(frameCtx.Get(ParamObjectCount))
		warnings += intValue(frameCtx.Get(ParamAuditWarnings))
		_ = frameCtx.Close()

		if frameCtx.HasErrors() {
			c.GetErrorCounter().Add(context.GetContext(), 1)
			context.AddError(c.GetName(), frameCtx.FirstError())
			return
		}
		frames++
		slog.InfoContext(context.GetContext(), "frame processed", "file", subject,
			"frame_number", frame.FrameNumber, "timestamp", frame.Timestamp)
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
}
