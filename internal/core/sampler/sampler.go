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

// Package sampler selects uniformly spaced frames from a video.
//
// Logic Flow:
//  1. A FrameSource is opened for the video. Failure to open it is reported
//     as a MediaUnreadable pipeline error and no frames are produced.
//  2. The frame interval is floor(fps * interval_seconds), never less than 1.
//  3. Every frame is decoded in order. Frames whose number is a multiple of
//     the interval are emitted with timestamp frame_number / fps, the rest are
//     dropped. Frame 0 is always emitted.
//
// A FrameStream is a single forward pass and cannot be restarted.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"

	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
)

// FrameSource decodes a video one frame at a time.
type FrameSource interface {
	// FPS is the average frame rate of the video.
	FPS() float64
	// Next returns the next decoded frame, or io.EOF after the last one.
	Next() (image.Image, error)
	Close() error
}

// SourceOpener opens a FrameSource for a video file.
type SourceOpener func(ctx context.Context, path string) (FrameSource, error)

// Sampler produces FrameStreams from videos.
type Sampler struct {
	open SourceOpener
}

// NewSampler creates a sampler backed by open.
func NewSampler(open SourceOpener) *Sampler {
	return &Sampler{open: open}
}

// FrameInterval converts a sampling period in seconds to a number of frames.
func FrameInterval(fps, intervalSeconds float64) int {
	n := int(math.Floor(fps * intervalSeconds))
	if n < 1 {
		return 1
	}
	return n
}

// Sample opens path and returns the stream of selected frames. The returned
// error wraps model.ErrMediaUnreadable when the video cannot be opened or has
// no usable frame rate.
func (s *Sampler) Sample(ctx context.Context, path string, intervalSeconds float64) (*FrameStream, error) {
	src, err := s.open(ctx, path)
	if err != nil {
		return nil, model.NewPipelineError(model.KindMediaUnreadable, path, err)
	}
	fps := src.FPS()
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		_ = src.Close()
		return nil, model.NewPipelineError(model.KindMediaUnreadable, path, fmt.Errorf("invalid frame rate %v", fps))
	}
	return &FrameStream{
		ctx:      ctx,
		path:     path,
		src:      src,
		fps:      fps,
		interval: FrameInterval(fps, intervalSeconds),
	}, nil
}

// FrameStream yields the selected frames in ascending frame order.
type FrameStream struct {
	ctx      context.Context
	path     string
	src      FrameSource
	fps      float64
	interval int
	next     int
	done     bool
}

// FPS returns the frame rate of the underlying video.
func (f *FrameStream) FPS() float64 { return f.fps }

// Interval returns the number of decoded frames between two samples.
func (f *FrameStream) Interval() int { return f.interval }

// Next returns the next selected frame, or io.EOF when the video is exhausted.
// A decode error part way through the video ends the stream with a
// MediaUnreadable error.
func (f *FrameStream) Next() (*model.FrameSample, error) {
	if f.done {
		return nil, io.EOF
	}
	for {
		if err := f.ctx.Err(); err != nil {
			f.done = true
			return nil, err
		}
		img, err := f.src.Next()
		if errors.Is(err, io.EOF) {
			f.done = true
			return nil, io.EOF
		}
		if err != nil {
			f.done = true
			return nil, model.NewPipelineError(model.KindMediaUnreadable, f.path, err)
		}
		n := f.next
		f.next++
		if n%f.interval != 0 {
			continue
		}
		return &model.FrameSample{
			Image:       img,
			Timestamp:   float64(n) / f.fps,
			FrameNumber: n,
		}, nil
	}
}

// Close releases the decoder.
func (f *FrameStream) Close() error {
	f.done = true
	return f.src.Close()
}
