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

package model

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a unit of media could not be completed.
type FailureKind string

const (
	KindMediaUnreadable   FailureKind = "MediaUnreadable"
	KindRemoteFetchFailed FailureKind = "RemoteFetchFailed"
	KindAnnotationFailed  FailureKind = "AnnotationFailed"
	KindPersistenceFailed FailureKind = "PersistenceFailed"
	KindAuditWriteFailed  FailureKind = "AuditWriteFailed"
)

// Sentinels matched by errors.Is against any PipelineError of the same kind.
var (
	ErrMediaUnreadable   = errors.New("media unreadable")
	ErrRemoteFetchFailed = errors.New("remote fetch failed")
	ErrAnnotationFailed  = errors.New("annotation failed")
	ErrPersistenceFailed = errors.New("persistence failed")
	ErrAuditWriteFailed  = errors.New("audit write failed")
)

var sentinels = map[FailureKind]error{
	KindMediaUnreadable:   ErrMediaUnreadable,
	KindRemoteFetchFailed: ErrRemoteFetchFailed,
	KindAnnotationFailed:  ErrAnnotationFailed,
	KindPersistenceFailed: ErrPersistenceFailed,
	KindAuditWriteFailed:  ErrAuditWriteFailed,
}

// PipelineError is a classified failure naming the file or URL it concerns.
type PipelineError struct {
	Kind    FailureKind
	Subject string
	Err     error
}

// NewPipelineError wraps err with a kind and a subject.
func NewPipelineError(kind FailureKind, subject string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Subject: subject, Err: err}
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Subject)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Subject, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error kind.
func (e *PipelineError) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// KindOf returns the failure kind carried by err, or "" when err is not
// classified.
func KindOf(err error) FailureKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
