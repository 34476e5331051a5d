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

// Command annotator annotates a media folder or a single remote video and
// queries the resulting records.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jaycherian/gcp-go-media-annotator/internal/telemetry"
)

func main() {
	// Replaced once the configuration is loaded.
	telemetry.SetupLogging(telemetry.FormatConsole, "info")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{}
	defer a.close()

	if err := rootCommand(a).ExecuteContext(ctx); err != nil {
		slog.Error("annotator failed", "error", err)
		a.close()
		stop()
		os.Exit(1)
	}
}
