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
	"errors"
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-media-annotator/internal/cloud"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/cor"
)

// IntakeWorkflow handles one Pub/Sub intake message: it decodes the payload
// in cor.CtxIn and runs the driver on the URL it names. An error is recorded,
// and the message redelivered, only when the run aborts. Malformed payloads
// and per-unit failures are logged and the message is acknowledged.
type IntakeWorkflow struct {
	cor.BaseCommand
	driver *Driver
}

func NewIntakeWorkflow(driver *Driver) *IntakeWorkflow {
	return &IntakeWorkflow{BaseCommand: *cor.NewBaseCommand("intake-workflow"), driver: driver}
}

func (w *IntakeWorkflow) Execute(context cor.Context) {
	payload, _ := context.Get(w.GetInputParam()).(string)

	msg, err := cloud.ParseIntakeMessage([]byte(payload))
	if err != nil {
		w.GetErrorCounter().Add(context.GetContext(), 1)
		slog.ErrorContext(context.GetContext(), "dropping intake message", "payload", payload, "error", err)
		return
	}

	summary, err := w.driver.RunURL(context.GetContext(), msg.URL, msg.IntervalSeconds)
	if errors.Is(err, ErrInvalidURL) {
		w.GetErrorCounter().Add(context.GetContext(), 1)
		slog.ErrorContext(context.GetContext(), "dropping intake message", "url", msg.URL, "error", err)
		return
	}
	if err != nil {
		w.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(w.GetName(), fmt.Errorf("intake run aborted for %s: %w", msg.URL, err))
		return
	}

	w.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(w.GetOutputParam(), summary)
}
