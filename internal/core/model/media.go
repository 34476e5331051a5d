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

// Package model holds the data structures that flow through the annotation
// pipeline: units of work, frame samples, the normalized records written to the
// store and the audit log, and the failure taxonomy.
package model

import "image"

// MediaKind distinguishes the three kinds of work unit.
type MediaKind int

const (
	KindImage MediaKind = iota
	KindLocalVideo
	KindRemoteVideo
)

func (k MediaKind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindLocalVideo:
		return "local_video"
	case KindRemoteVideo:
		return "remote_video"
	}
	return "unknown"
}

// MediaUnit identifies one unit of work before sampling. Source is a path for
// images and local videos, and the original URL for remote videos.
type MediaUnit struct {
	Kind   MediaKind
	Source string
}

func NewImage(path string) MediaUnit {
	return MediaUnit{Kind: KindImage, Source: path}
}

func NewLocalVideo(path string) MediaUnit {
	return MediaUnit{Kind: KindLocalVideo, Source: path}
}

func NewRemoteVideo(url string) MediaUnit {
	return MediaUnit{Kind: KindRemoteVideo, Source: url}
}

// IsVideo reports whether the unit goes through frame sampling.
func (m MediaUnit) IsVideo() bool {
	return m.Kind == KindLocalVideo || m.Kind == KindRemoteVideo
}

// FrameSample is one decoded frame selected by the sampler. It is consumed by
// the annotator and then discarded.
type FrameSample struct {
	Image       image.Image
	Timestamp   float64
	FrameNumber int
}
