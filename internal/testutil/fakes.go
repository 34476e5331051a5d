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

package test

import (
	"context"
	"errors"
	"hash/fnv"
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/jaycherian/gcp-go-media-annotator/internal/core/annotator"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/sampler"
)

// FakeAnnotator answers object requests with Objects and description
// requests with Description.
type FakeAnnotator struct {
	Model       string
	Objects     string
	Description string
	// Err is returned by every call when set.
	Err error
	// FailOnCall makes the n-th call (1-based) fail with Err or a default
	// error.
	FailOnCall int

	mu       sync.Mutex
	requests []annotator.Request
}

// NewFakeAnnotator returns an annotator that finds a car and a tree.
func NewFakeAnnotator() *FakeAnnotator {
	return &FakeAnnotator{
		Model:       "fake-vision",
		Objects:     `[{"name": "car", "description": "a red car"}, {"name": "tree", "description": "an oak tree"}]`,
		Description: "A red car parked under an oak tree.",
	}
}

func (f *FakeAnnotator) ModelID() string { return f.Model }

func (f *FakeAnnotator) Annotate(ctx context.Context, req annotator.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	call := len(f.requests)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.FailOnCall > 0 && call == f.FailOnCall {
		if f.Err != nil {
			return "", f.Err
		}
		return "", errors.New("model unavailable")
	}
	if f.FailOnCall == 0 && f.Err != nil {
		return "", f.Err
	}
	if req.JSON {
		return f.Objects, nil
	}
	return f.Description, nil
}

// Requests returns a copy of the requests received so far.
func (f *FakeAnnotator) Requests() []annotator.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]annotator.Request(nil), f.requests...)
}

// FakeEmbedder hashes the words of a text into a small normalized vector,
// so texts sharing words are close under cosine distance.
type FakeEmbedder struct {
	Dimensions int
	Err        error
}

func NewFakeEmbedder() *FakeEmbedder {
	return &FakeEmbedder{Dimensions: 32}
}

func (f *FakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return HashVector(text, f.Dimensions), nil
}

// HashVector is the embedding used by FakeEmbedder.
func HashVector(text string, dimensions int) []float32 {
	out := make([]float32, dimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,:;!?\"'()[]{}")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		out[h.Sum32()%uint32(dimensions)]++
	}
	var norm float64
	for _, v := range out {
		norm += float64(v * v)
	}
	if norm == 0 {
		out[0] = 1
		return out
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range out {
		out[i] *= scale
	}
	return out
}

// FakeVideoOpener opens any existing file as a video of frames solid frames
// at fps. Missing files fail like an unreadable container.
func FakeVideoOpener(fps float64, frames int) sampler.SourceOpener {
	return func(_ context.Context, path string) (sampler.FrameSource, error) {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		return &fakeSource{fps: fps, total: frames}, nil
	}
}

type fakeSource struct {
	fps     float64
	total   int
	decoded int
}

func (s *fakeSource) FPS() float64 { return s.fps }

func (s *fakeSource) Next() (image.Image, error) {
	if s.decoded >= s.total {
		return nil, io.EOF
	}
	s.decoded++
	return SolidImage(8, 8, color.RGBA{R: uint8(s.decoded), G: 80, B: 120, A: 255}), nil
}

func (s *fakeSource) Close() error { return nil }
