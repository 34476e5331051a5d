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

package sampler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Arguments for the probe and decode processes.
const (
	// DefaultProbeArgs reads the size and frame rate of the first video stream.
	DefaultProbeArgs = "-v error -select_streams v:0 -show_entries stream=width,height,avg_frame_rate,r_frame_rate -of json %s"
	// DefaultDecodeArgs decodes every frame as packed RGB to stdout. -vsync 0
	// keeps the decoder from duplicating or dropping frames. -noautorotate
	// keeps frames at the coded size ffprobe reports, whatever the rotation
	// side data says.
	DefaultDecodeArgs = "-v error -nostdin -noautorotate -i %s -f rawvideo -pix_fmt rgb24 -vsync 0 pipe:1"
	CommandSeparator  = " "
)

type probeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
}

// parseRate parses an ffprobe rate such as "30000/1001". Unknown rates are 0.
func parseRate(rate string) float64 {
	num, den, found := strings.Cut(rate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// splitArgs expands an argument template around a path that may contain the
// separator.
func splitArgs(template, path string) []string {
	var args []string
	for _, a := range strings.Split(template, CommandSeparator) {
		if a == "%s" {
			args = append(args, path)
			continue
		}
		args = append(args, a)
	}
	return args
}

// NewFFmpegOpener returns a SourceOpener that probes with ffprobePath and
// decodes with ffmpegPath.
func NewFFmpegOpener(ffmpegPath, ffprobePath string) SourceOpener {
	return func(ctx context.Context, path string) (FrameSource, error) {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}

		probe := exec.CommandContext(ctx, ffprobePath, splitArgs(DefaultProbeArgs, path)...)
		var stderr bytes.Buffer
		probe.Stderr = &stderr
		out, err := probe.Output()
		if err != nil {
			return nil, fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		var info probeOutput
		if err := json.Unmarshal(out, &info); err != nil {
			return nil, fmt.Errorf("unable to parse ffprobe output: %w", err)
		}
		if len(info.Streams) == 0 {
			return nil, errors.New("no video stream")
		}
		stream := info.Streams[0]
		fps := parseRate(stream.AvgFrameRate)
		if fps <= 0 {
			fps = parseRate(stream.RFrameRate)
		}
		if stream.Width <= 0 || stream.Height <= 0 {
			return nil, fmt.Errorf("invalid frame size %dx%d", stream.Width, stream.Height)
		}

		cmd := exec.CommandContext(ctx, ffmpegPath, splitArgs(DefaultDecodeArgs, path)...)
		src := &ffmpegSource{
			cmd:    cmd,
			fps:    fps,
			width:  stream.Width,
			height: stream.Height,
		}
		cmd.Stderr = &src.stderr
		src.stdout, err = cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("error running ffmpeg: %w", err)
		}
		src.buf = make([]byte, stream.Width*stream.Height*3)
		return src, nil
	}
}

type ffmpegSource struct {
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  bytes.Buffer
	fps     float64
	width   int
	height  int
	buf     []byte
	waited  bool
	waitErr error
	closed  bool
}

func (s *ffmpegSource) FPS() float64 { return s.fps }

func (s *ffmpegSource) Next() (image.Image, error) {
	if _, err := io.ReadFull(s.stdout, s.buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			if waitErr := s.wait(); waitErr != nil {
				return nil, waitErr
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				// A truncated trailing frame from a clean exit ends the video.
				slog.Debug("truncated frame at end of stream", "stderr", s.stderr.String())
			}
			return nil, io.EOF
		}
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	for i, j := 0, 0; i < len(s.buf); i, j = i+3, j+4 {
		img.Pix[j] = s.buf[i]
		img.Pix[j+1] = s.buf[i+1]
		img.Pix[j+2] = s.buf[i+2]
		img.Pix[j+3] = 0xFF
	}
	return img, nil
}

// wait reaps the decoder once its output is drained and reports a non-zero
// exit with the decoder's diagnostics.
func (s *ffmpegSource) wait() error {
	if s.waited {
		return s.waitErr
	}
	s.waited = true
	if err := s.cmd.Wait(); err != nil {
		s.waitErr = fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(s.stderr.String()))
	}
	return s.waitErr
}

// Close stops the decoder if it is still running and reaps the process. It
// returns the decoder's failure when the process exited on its own.
func (s *ffmpegSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.waited {
		return s.waitErr
	}
	s.waited = true
	_ = s.stdout.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	// The exit status is meaningless after a kill.
	_ = s.cmd.Wait()
	return nil
}
