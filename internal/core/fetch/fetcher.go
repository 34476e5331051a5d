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

// Package fetch resolves remote video references to local scratch files.
//
// Supported references are generic HTTP(S) URLs, single-file Google Drive
// links and gs:// objects. Drive folder links fail before any network I/O.
//
// Every Resolve call downloads into its own temporary directory, so
// concurrent calls never share a destination. The fetcher never removes what
// it created: the caller owns Download.Dir and must remove it on every exit
// path.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/h2non/filetype"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
)

const (
	// DriveDownloadURL is the direct download endpoint for a Drive file id.
	DriveDownloadURL = "https://drive.google.com/uc?export=download&id=%s"
	// DriveConfirmURL repeats the download with the large-file confirmation token.
	DriveConfirmURL = "https://drive.google.com/uc?export=download&confirm=%s&id=%s"
	// TempDirPattern names the per-call scratch directory.
	TempDirPattern = "annotator-fetch-"

	sniffLen       = 512
	maxConfirmBody = 1 << 20
)

var confirmPattern = regexp.MustCompile(`confirm=([0-9A-Za-z_\-]+)`)

// Download is a fetched file and the scratch directory that holds it.
type Download struct {
	Source string // Original reference.
	Path   string // Local file.
	Dir    string // Scratch directory owned by the caller.
}

// Fetcher downloads remote videos.
type Fetcher struct {
	client   *http.Client
	storage  *storage.Client
	tempRoot string
}

// NewFetcher creates a Fetcher. storageClient may be nil, in which case gs://
// references fail. tempRoot is the parent of scratch directories; empty
// means os.TempDir.
func NewFetcher(client *http.Client, storageClient *storage.Client, tempRoot string) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{client: client, storage: storageClient, tempRoot: tempRoot}
}

func fetchError(raw string, err error) error {
	return model.NewPipelineError(model.KindRemoteFetchFailed, raw, err)
}

// Resolve downloads raw to a fresh scratch directory. When a scratch
// directory was created the returned Download is non-nil even if err is not,
// so that the caller can remove it.
func (f *Fetcher) Resolve(ctx context.Context, raw string) (*Download, error) {
	kind := Classify(raw)
	switch kind {
	case KindDriveFolder:
		return nil, fetchError(raw, errors.New("google drive folder links are not supported; share each video with its own file link (https://drive.google.com/file/d/<id>/view) and process it individually"))
	case KindDriveOther:
		return nil, fetchError(raw, fmt.Errorf("%w: google drive links must name a single file (https://drive.google.com/file/d/<id>/view)", ErrUnsupportedURL))
	case KindInvalid:
		return nil, fetchError(raw, fmt.Errorf("%w: expected an http(s), drive or gs:// url", ErrUnsupportedURL))
	}

	var name string
	var driveID string
	switch kind {
	case KindDriveFile:
		id, err := DriveFileID(raw)
		if err != nil {
			return nil, fetchError(raw, err)
		}
		driveID = id
		name = DriveFileName(id)
	case KindGCS:
		_, object, err := ParseGCSURL(raw)
		if err != nil {
			return nil, fetchError(raw, err)
		}
		name = GenericFileName("gs://bucket/" + object)
	default:
		name = GenericFileName(raw)
	}

	dir, err := os.MkdirTemp(f.tempRoot, TempDirPattern)
	if err != nil {
		return nil, fetchError(raw, fmt.Errorf("could not create scratch directory: %w", err))
	}
	dl := &Download{Source: raw, Dir: dir, Path: filepath.Join(dir, name)}

	switch kind {
	case KindDriveFile:
		err = f.fetchDrive(ctx, driveID, dl.Path)
	case KindGCS:
		err = f.fetchGCS(ctx, raw, dl.Path)
	default:
		err = f.fetchHTTP(ctx, raw, dl.Path)
	}
	if err != nil {
		return dl, fetchError(raw, err)
	}
	slog.InfoContext(ctx, "downloaded remote video", "url", raw, "path", dl.Path, "kind", kind.String())
	return dl, nil
}

func (f *Fetcher) get(ctx context.Context, raw string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, raw, dest string) error {
	resp, err := f.get(ctx, raw)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return writeVideo(resp.Body, dest)
}

// fetchDrive downloads a Drive file, following the confirmation page Drive
// serves for files too large to virus-scan.
func (f *Fetcher) fetchDrive(ctx context.Context, id, dest string) error {
	resp, err := f.get(ctx, fmt.Sprintf(DriveDownloadURL, id))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	token := confirmToken(resp)
	if token == "" && isHTML(resp.Header.Get("Content-Type")) {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxConfirmBody))
		if err != nil {
			return err
		}
		if m := confirmPattern.FindSubmatch(body); m != nil {
			token = string(m[1])
		} else {
			return errors.New("drive returned a web page instead of the file; check that the file is shared publicly")
		}
	}
	if token == "" {
		return writeVideo(resp.Body, dest)
	}

	slog.DebugContext(ctx, "following drive confirmation", "id", id)
	confirmed, err := f.get(ctx, fmt.Sprintf(DriveConfirmURL, token, id))
	if err != nil {
		return err
	}
	defer confirmed.Body.Close()
	return writeVideo(confirmed.Body, dest)
}

func confirmToken(resp *http.Response) string {
	for _, c := range resp.Cookies() {
		if strings.HasPrefix(c.Name, "download_warning") {
			return c.Value
		}
	}
	return ""
}

func isHTML(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "text/html")
}

func (f *Fetcher) fetchGCS(ctx context.Context, raw, dest string) error {
	if f.storage == nil {
		return errors.New("gs:// urls need a storage client")
	}
	bucket, object, err := ParseGCSURL(raw)
	if err != nil {
		return err
	}
	reader, err := f.storage.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to create GCS reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer func(reader *storage.Reader) {
		if err := reader.Close(); err != nil {
			slog.Warn("failed to close GCS reader", "error", err)
		}
	}(reader)
	return writeVideo(reader, dest)
}

// writeVideo streams r to dest after checking that the payload is not empty
// and is not a web page.
func writeVideo(r io.Reader, dest string) error {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return err
	}
	head = head[:n]
	if n == 0 {
		return errors.New("empty response body")
	}
	if looksLikeHTML(head) {
		return errors.New("response is a web page, not a video")
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	written, err := io.Copy(out, io.MultiReader(bytes.NewReader(head), r))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write download, %d bytes written: %w", written, err)
	}
	return nil
}

func looksLikeHTML(head []byte) bool {
	if filetype.IsVideo(head) {
		return false
	}
	trimmed := bytes.ToLower(bytes.TrimSpace(head))
	return bytes.HasPrefix(trimmed, []byte("<!doctype html")) ||
		bytes.HasPrefix(trimmed, []byte("<html")) ||
		bytes.Contains(trimmed, []byte("<body"))
}
