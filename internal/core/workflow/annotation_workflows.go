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

// Package workflow assembles the annotation commands into chains and drives
// them over a batch of media units.
//
// Logic Flow:
//  1. ImageWorkflow annotates one photograph and stores its record.
//  2. FrameWorkflow does the same for one sampled video frame.
//  3. VideoWorkflow downloads a remote video when needed, samples it and runs
//     FrameWorkflow for every selected frame.
//  4. Driver checks each unit against the ledger snapshot, runs the matching
//     workflow in a unit-scoped cor.Context and tallies the outcome.
package workflow

import (
	"time"

	"github.com/jaycherian/gcp-go-media-annotator/internal/cloud"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/annotator"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/audit"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/embedding"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/sampler"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/store"
)

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// ImageWorkflow is the chain run for one photograph. The image path is read
// from cor.CtxIn and ParamSubject.
type ImageWorkflow struct {
	cor.BaseCommand
	config    *cloud.Config
	annotator annotator.Client
	embedder  embedding.Embedder
	store     store.Store
	sink      audit.Sink
	chain     cor.Chain
}

func (w *ImageWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

func (w *ImageWorkflow) initializeChain() {
	annotateTimeout := seconds(w.config.Annotator.TimeoutSeconds)
	prompts := w.config.Annotator.Prompts

	out := cor.NewBaseChain(w.GetName())
	out.AddCommand(commands.NewImageLoader("load-image"))
	out.AddCommand(commands.NewObjectDetector("detect-image-objects", w.annotator, prompts, false, annotateTimeout))
	out.AddCommand(commands.NewSceneDescriber("describe-image", w.annotator, prompts, false, annotateTimeout))
	out.AddCommand(commands.NewImageRecordBuilder("build-image-record", w.annotator.ModelID()))
	out.AddCommand(commands.NewDocumentPersister("persist-image-document", w.embedder, w.store, seconds(w.config.Store.TimeoutSeconds)))
	out.AddCommand(commands.NewAuditLogger("audit-image", w.sink))
	w.chain = out
}

func NewImageWorkflow(config *cloud.Config, client annotator.Client, embedder embedding.Embedder, documents store.Store, sink audit.Sink) *ImageWorkflow {
	w := &ImageWorkflow{
		BaseCommand: *cor.NewBaseCommand("image-workflow"),
		config:      config,
		annotator:   client,
		embedder:    embedder,
		store:       documents,
		sink:        sink,
	}
	w.initializeChain()
	return w
}

// FrameWorkflow is the chain run for one sampled frame. The frame is read from
// ParamFrame and the video identity from ParamSubject.
type FrameWorkflow struct {
	cor.BaseCommand
	config    *cloud.Config
	annotator annotator.Client
	embedder  embedding.Embedder
	store     store.Store
	sink      audit.Sink
	chain     cor.Chain
}

func (w *FrameWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

func (w *FrameWorkflow) initializeChain() {
	annotateTimeout := seconds(w.config.Annotator.TimeoutSeconds)
	prompts := w.config.Annotator.Prompts

	out := cor.NewBaseChain(w.GetName())
	out.AddCommand(commands.NewFrameEncoder("encode-frame"))
	out.AddCommand(commands.NewObjectDetector("detect-frame-objects", w.annotator, prompts, true, annotateTimeout))
	out.AddCommand(commands.NewSceneDescriber("describe-frame", w.annotator, prompts, true, annotateTimeout))
	out.AddCommand(commands.NewFrameRecordBuilder("build-frame-record", w.annotator.ModelID()))
	out.AddCommand(commands.NewDocumentPersister("persist-frame-document", w.embedder, w.store, seconds(w.config.Store.TimeoutSeconds)))
	out.AddCommand(commands.NewAuditLogger("audit-frame", w.sink))
	w.chain = out
}

func NewFrameWorkflow(config *cloud.Config, client annotator.Client, embedder embedding.Embedder, documents store.Store, sink audit.Sink) *FrameWorkflow {
	w := &FrameWorkflow{
		BaseCommand: *cor.NewBaseCommand("frame-workflow"),
		config:      config,
		annotator:   client,
		embedder:    embedder,
		store:       documents,
		sink:        sink,
	}
	w.initializeChain()
	return w
}

// VideoWorkflow processes one video. Remote videos carry ParamRemoteURL and
// are downloaded first; local videos carry ParamLocalPath directly.
type VideoWorkflow struct {
	cor.BaseCommand
	config   *cloud.Config
	resolver commands.Resolver
	sampler  *sampler.Sampler
	frames   *FrameWorkflow
	chain    cor.Chain
}

func (w *VideoWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

func (w *VideoWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())
	if w.resolver != nil {
		out.AddCommand(commands.NewRemoteFetch("fetch-remote-video", w.resolver, seconds(w.config.Pipeline.FetchTimeoutSeconds)))
	}
	out.AddCommand(commands.NewFrameProcessor("process-frames", w.sampler, w.frames))
	w.chain = out
}

// NewVideoWorkflow creates the video chain. resolver may be nil when only
// local videos are processed.
func NewVideoWorkflow(config *cloud.Config, resolver commands.Resolver, frameSampler *sampler.Sampler, frames *FrameWorkflow) *VideoWorkflow {
	w := &VideoWorkflow{
		BaseCommand: *cor.NewBaseCommand("video-workflow"),
		config:      config,
		resolver:    resolver,
		sampler:     frameSampler,
		frames:      frames,
	}
	w.initializeChain()
	return w
}
