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

package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/jaycherian/gcp-go-media-annotator/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/fetch"
)

// Resolver downloads a remote video to local scratch space.
type Resolver interface {
	Resolve(ctx context.Context, raw string) (*fetch.Download, error)
}

// RemoteFetch downloads the video named by ParamRemoteURL and leaves the
// local file path in ParamLocalPath. The scratch directory is registered as
// a temp file of the execution, also on failure, so it is removed when the
// context is closed.
type RemoteFetch struct {
	cor.BaseCommand
	resolver Resolver
	timeout  time.Duration
}

// NewRemoteFetch creates the command. A zero timeout means the download is
// only bounded by the parent context.
func NewRemoteFetch(name string, resolver Resolver, timeout time.Duration) *RemoteFetch {
	out := &RemoteFetch{BaseCommand: *cor.NewBaseCommand(name), resolver: resolver, timeout: timeout}
	out.InputParamName = ParamRemoteURL
	out.OutputParamName = ParamLocalPath
	return out
}

func (c *RemoteFetch) Execute(context cor.Context) {
	raw := context.Get(c.GetInputParam()).(string)

	ctx, cancel := withTimeout(context.GetContext(), c.timeout)
	defer cancel()

	dl, err := c.resolver.Resolve(ctx, raw)
	if dl != nil && dl.Dir != "" {
		context.AddTempFile(dl.Dir)
	}
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), err)
		return
	}

	slog.InfoContext(context.GetContext(), "remote video ready", "url", raw, "path", dl.Path)
	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), dl.Path)
}
