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

package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jaycherian/gcp-go-media-annotator/internal/cloud"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/annotator"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/audit"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/embedding"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/fetch"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/ledger"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/sampler"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/store"
)

// ErrInvalidURL is returned by RunURL for input that is not a URL at all.
var ErrInvalidURL = errors.New("not a valid url")

// Dependencies are the collaborators of a Driver.
type Dependencies struct {
	Annotator annotator.Client
	Embedder  embedding.Embedder
	Store     store.Store
	Sink      audit.Sink        // Optional; audit.NopSink when nil.
	Sampler   *sampler.Sampler  // Frame source for videos.
	Resolver  commands.Resolver // Optional; remote videos fail without it.
}

// Outcome is the end state of one media unit.
type Outcome struct {
	Unit     model.MediaUnit
	State    State         // Skipped, Done or Failed.
	FailedAt State         // Stage that failed when State is Failed.
	Err      error         // The first PipelineError when State is Failed.
	Frames   int           // Frames stored, for videos.
	Objects  int           // Objects detected across the unit.
	Elapsed  time.Duration // Wall time spent on the unit.
}

// Summary tallies a run.
type Summary struct {
	Processed     int
	Skipped       int
	Failed        int
	Frames        int
	Objects       int
	AuditWarnings int
	Outcomes      []Outcome
}

func (s *Summary) add(o Outcome, auditWarnings int) {
	switch o.State {
	case StateSkipped:
		s.Skipped++
	case StateFailed:
		s.Failed++
	default:
		s.Processed++
	}
	s.Frames += o.Frames
	s.Objects += o.Objects
	s.AuditWarnings += auditWarnings
	s.Outcomes = append(s.Outcomes, o)
}

// Driver runs media units through the annotation workflows, one at a time.
// It is the only writer to the store and the audit sink.
type Driver struct {
	config *cloud.Config
	store  store.Store
	images *ImageWorkflow
	videos *VideoWorkflow
	remote bool

	ownsStore bool
}

// NewDriver wires the workflows from deps.
func NewDriver(config *cloud.Config, deps Dependencies) *Driver {
	sink := deps.Sink
	if sink == nil {
		sink = audit.NopSink{}
	}
	frames := NewFrameWorkflow(config, deps.Annotator, deps.Embedder, deps.Store, sink)
	return &Driver{
		config: config,
		store:  deps.Store,
		images: NewImageWorkflow(config, deps.Annotator, deps.Embedder, deps.Store, sink),
		videos: NewVideoWorkflow(config, deps.Resolver, deps.Sampler, frames),
		remote: deps.Resolver != nil,
	}
}

// RunBatch discovers the media under root, or the configured root when empty,
// and processes photographs first, then videos.
func (d *Driver) RunBatch(ctx context.Context, root string) (*Summary, error) {
	if root == "" {
		root = d.config.Pipeline.RootDir
	}
	images, videos, err := Discover(root)
	if err != nil {
		return nil, err
	}
	units := make([]model.MediaUnit, 0, len(images)+len(videos))
	units = append(units, images...)
	units = append(units, videos...)
	return d.Run(ctx, units, d.config.Pipeline.BatchIntervalSeconds)
}

// RunURL processes the single remote video at raw. A non-positive interval
// selects the configured URL interval.
func (d *Driver) RunURL(ctx context.Context, raw string, intervalSeconds float64) (*Summary, error) {
	if !fetch.IsURL(raw) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	if intervalSeconds <= 0 {
		intervalSeconds = d.config.Pipeline.URLIntervalSeconds
	}
	return d.Run(ctx, []model.MediaUnit{model.NewRemoteVideo(raw)}, intervalSeconds)
}

// Run processes units in order against one ledger snapshot taken at the
// start. Per-unit failures are recorded in the Summary; the returned error is
// only set when the ledger cannot be read or ctx is cancelled.
func (d *Driver) Run(ctx context.Context, units []model.MediaUnit, intervalSeconds float64) (*Summary, error) {
	snapshot, err := ledger.Load(ctx, d.store)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "ledger loaded", "file_names", snapshot.Len(), "units", len(units))

	summary := &Summary{}
	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		outcome, warnings := d.process(ctx, snapshot, unit, intervalSeconds)
		summary.add(outcome, warnings)
	}

	slog.InfoContext(ctx, "run complete", "processed", summary.Processed, "skipped", summary.Skipped,
		"failed", summary.Failed, "frames", summary.Frames, "objects", summary.Objects,
		"audit_warnings", summary.AuditWarnings)
	return summary, nil
}

func (d *Driver) process(ctx context.Context, snapshot *ledger.Snapshot, unit model.MediaUnit, intervalSeconds float64) (Outcome, int) {
	log := slog.With("file", unit.Source, "kind", unit.Kind.String())
	log.DebugContext(ctx, "unit state", "state", StateDiscovered.String())

	processed := snapshot.ImageProcessed(unit.Source)
	if unit.IsVideo() {
		processed = snapshot.VideoProcessed(unit.Source)
	}
	log.DebugContext(ctx, "unit state", "state", StateLedgerChecked.String())
	if processed {
		log.InfoContext(ctx, "already processed, skipping", "state", StateSkipped.String())
		return Outcome{Unit: unit, State: StateSkipped}, 0
	}

	started := time.Now()
	chCtx := cor.NewBaseContextWith(ctx)
	defer func() {
		if err := chCtx.Close(); err != nil {
			log.WarnContext(ctx, "failed to remove scratch files", "error", err)
		}
	}()
	chCtx.Add(commands.ParamSubject, unit.Source)
	chCtx.Add(commands.ParamStarted, started)

	if unit.IsVideo() {
		log.InfoContext(ctx, "processing video", "state", StateSampling.String(), "interval_seconds", intervalSeconds)
		chCtx.Add(commands.ParamInterval, intervalSeconds)
		if unit.Kind == model.KindRemoteVideo {
			if !d.remote {
				chCtx.AddError("driver", model.NewPipelineError(model.KindRemoteFetchFailed, unit.Source, errors.New("remote fetching is not configured")))
			}
			chCtx.Add(commands.ParamRemoteURL, unit.Source)
		} else {
			chCtx.Add(commands.ParamLocalPath, unit.Source)
		}
		if !chCtx.HasErrors() {
			d.videos.Execute(chCtx)
		}
	} else {
		log.InfoContext(ctx, "processing image", "state", StateAnnotating.String())
		chCtx.Add(cor.CtxIn, unit.Source)
		d.images.Execute(chCtx)
	}

	outcome := Outcome{
		Unit:    unit,
		Frames:  intOf(chCtx.Get(commands.ParamFrameCount)),
		Objects: intOf(chCtx.Get(commands.ParamObjectCount)),
		Elapsed: time.Since(started),
	}
	warnings := intOf(chCtx.Get(commands.ParamAuditWarnings))

	if chCtx.HasErrors() {
		outcome.State = StateFailed
		outcome.Err = chCtx.FirstError()
		outcome.FailedAt = failedFrom(outcome.Err)
		log.ErrorContext(ctx, "unit failed", "state", StateFailed.String(), "failed_at", outcome.FailedAt.String(),
			"failure", string(model.KindOf(outcome.Err)), "error", outcome.Err, "frames", outcome.Frames)
		return outcome, warnings
	}

	outcome.State = StateDone
	log.InfoContext(ctx, "unit processed", "state", StateDone.String(), "frames", outcome.Frames,
		"objects", outcome.Objects, "audit_warnings", warnings, "elapsed", outcome.Elapsed)
	return outcome, warnings
}

func intOf(v interface{}) int {
	if i, ok := v.(int); ok {
		return i
	}
	return 0
}
