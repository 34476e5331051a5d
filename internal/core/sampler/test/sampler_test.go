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

package sampler_test

import (
	"context"
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/sampler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// countingSource yields total blank frames and records how many were decoded.
type countingSource struct {
	fps     float64
	total   int
	decoded int
	failAt  int
	closed  bool
}

func (c *countingSource) FPS() float64 { return c.fps }

func (c *countingSource) Next() (image.Image, error) {
	if c.failAt > 0 && c.decoded == c.failAt {
		return nil, errors.New("corrupt packet")
	}
	if c.decoded >= c.total {
		return nil, io.EOF
	}
	c.decoded++
	return image.NewRGBA(image.Rect(0, 0, 2, 2)), nil
}

func (c *countingSource) Close() error {
	c.closed = true
	return nil
}

func openerFor(src *countingSource) sampler.SourceOpener {
	return func(context.Context, string) (sampler.FrameSource, error) {
		return src, nil
	}
}

func drain(t *testing.T, stream *sampler.FrameStream) []*model.FrameSample {
	var out []*model.FrameSample
	for {
		s, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, s)
	}
}

func TestFrameInterval(t *testing.T) {
	assert.Equal(t, 60, sampler.FrameInterval(30, 2))
	assert.Equal(t, 299, sampler.FrameInterval(29.97, 10))
	assert.Equal(t, 1, sampler.FrameInterval(0.2, 2))
	assert.Equal(t, 1, sampler.FrameInterval(30, 0))
}

func TestSampleSelectsEveryIntervalFrame(t *testing.T) {
	src := &countingSource{fps: 30, total: 185}
	stream, err := sampler.NewSampler(openerFor(src)).Sample(context.Background(), "clip.mp4", 2)
	require.NoError(t, err)
	defer stream.Close()

	samples := drain(t, stream)
	require.Len(t, samples, 4)
	for i, want := range []int{0, 60, 120, 180} {
		assert.Equal(t, want, samples[i].FrameNumber)
		assert.Equal(t, float64(want)/30, samples[i].Timestamp)
	}
	// Unselected frames are still decoded.
	assert.Equal(t, 185, src.decoded)

	_, err = stream.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSampleCloseReleasesSource(t *testing.T) {
	src := &countingSource{fps: 25, total: 10}
	stream, err := sampler.NewSampler(openerFor(src)).Sample(context.Background(), "clip.mp4", 1)
	require.NoError(t, err)

	first, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, 0, first.FrameNumber)
	require.NoError(t, stream.Close())
	assert.True(t, src.closed)

	_, err = stream.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSampleDecodeErrorIsMediaUnreadable(t *testing.T) {
	src := &countingSource{fps: 10, total: 100, failAt: 15}
	stream, err := sampler.NewSampler(openerFor(src)).Sample(context.Background(), "clip.mp4", 1)
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Next()
	require.NoError(t, err)
	_, err = stream.Next()
	require.NoError(t, err)
	_, err = stream.Next()
	assert.ErrorIs(t, err, model.ErrMediaUnreadable)
}

func TestSampleUnopenableVideo(t *testing.T) {
	s := sampler.NewSampler(func(context.Context, string) (sampler.FrameSource, error) {
		return nil, errors.New("moov atom not found")
	})
	stream, err := s.Sample(context.Background(), "broken.mp4", 2)
	assert.Nil(t, stream)
	assert.ErrorIs(t, err, model.ErrMediaUnreadable)
	assert.Equal(t, model.KindMediaUnreadable, model.KindOf(err))
}

func TestSampleZeroFrameRate(t *testing.T) {
	src := &countingSource{fps: 0, total: 10}
	_, err := sampler.NewSampler(openerFor(src)).Sample(context.Background(), "clip.mp4", 2)
	assert.ErrorIs(t, err, model.ErrMediaUnreadable)
	assert.True(t, src.closed)
}

func TestSampleStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &countingSource{fps: 30, total: 300}
	stream, err := sampler.NewSampler(openerFor(src)).Sample(ctx, "clip.mp4", 1)
	require.NoError(t, err)
	defer stream.Close()

	cancel()
	_, err = stream.Next()
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFFmpegOpenerMissingFile(t *testing.T) {
	open := sampler.NewFFmpegOpener("ffmpeg", "ffprobe")
	_, err := sampler.NewSampler(open).Sample(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"), 2)
	assert.ErrorIs(t, err, model.ErrMediaUnreadable)
}

const fakeProbe = `#!/bin/sh
echo '{"streams":[{"width":2,"height":2,"avg_frame_rate":"1/1","r_frame_rate":"1/1"}]}'
`

// fakeTools writes shell stand-ins for ffprobe and ffmpeg into a temp dir and
// returns the paths of the decoder, the prober, a video file and the file the
// decoder records its arguments to.
func fakeTools(t *testing.T, decoder string) (ffmpeg, ffprobe, video, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts stand in for ffmpeg")
	}
	dir := t.TempDir()
	ffprobe = filepath.Join(dir, "ffprobe")
	ffmpeg = filepath.Join(dir, "ffmpeg")
	video = filepath.Join(dir, "clip.mp4")
	argsFile = filepath.Join(dir, "args")
	require.NoError(t, os.WriteFile(ffprobe, []byte(fakeProbe), 0o755))
	require.NoError(t, os.WriteFile(ffmpeg, []byte("#!/bin/sh\necho \"$@\" > "+argsFile+"\n"+decoder), 0o755))
	require.NoError(t, os.WriteFile(video, []byte("not really a video"), 0o644))
	return ffmpeg, ffprobe, video, argsFile
}

func TestFFmpegDecoderFailureIsMediaUnreadable(t *testing.T) {
	ffmpeg, ffprobe, video, _ := fakeTools(t, "echo 'Invalid data found when processing input' >&2\nexit 1\n")

	stream, err := sampler.NewSampler(sampler.NewFFmpegOpener(ffmpeg, ffprobe)).Sample(context.Background(), video, 1)
	require.NoError(t, err)

	_, err = stream.Next()
	assert.ErrorIs(t, err, model.ErrMediaUnreadable)
	assert.Contains(t, err.Error(), "Invalid data found")

	err = stream.Close()
	assert.Error(t, err)
}

func TestFFmpegDecodesFrames(t *testing.T) {
	// Two 2x2 RGB frames.
	ffmpeg, ffprobe, video, argsFile := fakeTools(t, "head -c 24 /dev/zero\n")

	stream, err := sampler.NewSampler(sampler.NewFFmpegOpener(ffmpeg, ffprobe)).Sample(context.Background(), video, 1)
	require.NoError(t, err)

	frames := drain(t, stream)
	require.Len(t, frames, 2)
	assert.Equal(t, image.Rect(0, 0, 2, 2), frames[0].Image.Bounds())
	assert.Equal(t, 1, frames[1].FrameNumber)
	assert.NoError(t, stream.Close())

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Less(t, strings.Index(string(args), "-noautorotate"), strings.Index(string(args), "-i "))
	assert.Contains(t, string(args), "-noautorotate")
}
