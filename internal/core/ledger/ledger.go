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

// Package ledger decides which media were already processed, from a snapshot
// of the file names present in the store.
//
// The snapshot is read once per run and never updated in-process, so a unit
// processed earlier in the same run is not skipped by it.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Reader is the read side of the store used by the ledger.
type Reader interface {
	DistinctFileNames(ctx context.Context) ([]string, error)
	VideoFrameFileNames(ctx context.Context) ([]string, error)
}

// Snapshot is an immutable view of the processed file names.
type Snapshot struct {
	fileNames  map[string]struct{}
	frameNames []string
}

// Load reads the processed file names. An error means the store is
// unreachable and the run should not start.
func Load(ctx context.Context, reader Reader) (*Snapshot, error) {
	names, err := reader.DistinctFileNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load processed file names: %w", err)
	}
	frames, err := reader.VideoFrameFileNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load processed video frames: %w", err)
	}
	return NewSnapshot(names, frames), nil
}

// NewSnapshot builds a snapshot from file names and the subset of them that
// belongs to video frame records.
func NewSnapshot(fileNames, videoFrameNames []string) *Snapshot {
	s := &Snapshot{
		fileNames:  make(map[string]struct{}, len(fileNames)),
		frameNames: append([]string(nil), videoFrameNames...),
	}
	for _, name := range fileNames {
		s.fileNames[name] = struct{}{}
	}
	sort.Strings(s.frameNames)
	return s
}

// ImageProcessed reports whether path is exactly a stored file name.
func (s *Snapshot) ImageProcessed(path string) bool {
	_, ok := s.fileNames[path]
	return ok
}

// VideoProcessed reports whether at least one video frame record has a file
// name starting with identity. A single stored frame marks the whole video as
// processed, even if the earlier run stopped part way. Because the match is a
// prefix, "clip.mp4" is also considered processed when only "clip.mp4.bak"
// frames are stored.
func (s *Snapshot) VideoProcessed(identity string) bool {
	if identity == "" {
		return false
	}
	i := sort.SearchStrings(s.frameNames, identity)
	return i < len(s.frameNames) && strings.HasPrefix(s.frameNames[i], identity)
}

// Len returns the number of distinct processed file names.
func (s *Snapshot) Len() int {
	return len(s.fileNames)
}

// FileNames returns the processed file names in sorted order.
func (s *Snapshot) FileNames() []string {
	out := make([]string, 0, len(s.fileNames))
	for name := range s.fileNames {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
