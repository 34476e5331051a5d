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

// Package cor (Chain of Responsibility) holds the building blocks every
// annotation workflow is assembled from. A workflow is a Chain of Commands that
// share a single Context for one unit of media: the commands read their inputs
// from the Context, write their outputs back to it, and record failures in it.
// The Context also owns the unit's scratch files so that they are released on
// every exit path.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// CtxIn and CtxOut are the piping keys managed by BaseChain.
const (
	// CtxIn holds the primary input of a command. BaseChain fills it with the
	// previous command's output.
	CtxIn = "__IN__"
	// CtxOut is where a command leaves its primary output for the next command.
	CtxOut = "__OUT__"
)

// Context is the per-execution property bag passed through a chain.
type Context interface {
	// SetContext sets the Go context used for cancellation and tracing.
	SetContext(context context.Context)

	// GetContext returns the Go context.
	GetContext() context.Context

	// Add stores a value under key and returns the Context for chaining.
	Add(key string, value interface{}) Context

	// AddError records the error produced by the named command.
	AddError(key string, err error)

	// GetErrors returns every recorded error keyed by command name.
	GetErrors() map[string]error

	// FirstError returns the earliest recorded error, or nil.
	FirstError() error

	// Get returns the value stored under key, or nil.
	Get(key string) interface{}

	// Remove deletes key.
	Remove(key string)

	// HasErrors reports whether any command has failed.
	HasErrors() bool

	// AddTempFile registers a scratch file or directory owned by this execution.
	AddTempFile(file string)

	// GetTempFiles returns the registered scratch paths.
	GetTempFiles() []string

	// Close removes every registered scratch path. It is safe to call more
	// than once.
	Close() error
}

// Executable is anything with an Execute step.
type Executable interface {
	// Execute runs the business logic, reading from and writing to context.
	Execute(context Context)
}

// Command is an atomic, traceable unit of work.
type Command interface {
	Executable

	// GetName returns the command name used for spans and metrics.
	GetName() string

	// GetInputParam returns the context key of the primary input.
	GetInputParam() string

	// GetOutputParam returns the context key of the primary output.
	GetOutputParam() string

	// IsExecutable is the precondition check run before Execute.
	IsExecutable(context Context) bool

	// GetTracer returns the OpenTelemetry tracer of the command.
	GetTracer() trace.Tracer

	// GetMeter returns the OpenTelemetry meter of the command.
	GetMeter() metric.Meter

	// GetSuccessCounter returns the counter incremented on success.
	GetSuccessCounter() metric.Int64Counter

	// GetErrorCounter returns the counter incremented on failure.
	GetErrorCounter() metric.Int64Counter
}

// Chain is an ordered list of commands that is itself a Command, so chains
// nest.
type Chain interface {
	Command

	// ContinueOnFailure controls whether later commands still run after a
	// failure has been recorded.
	ContinueOnFailure(bool) Chain

	// AddCommand appends a command.
	AddCommand(command Command) Chain
}
