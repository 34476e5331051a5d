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

package fetch_test

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/fetch"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMP4 starts with an ISO base media "ftyp" box.
var fakeMP4 = append([]byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'm', 'p', '4', '2', 0, 0, 0, 0, 'i', 's', 'o', 'm', 'm', 'p', '4', '2'}, make([]byte, 2048)...)

func newFetcher(t *testing.T) (*fetch.Fetcher, *httpmock.MockTransport, string) {
	mt := httpmock.NewMockTransport()
	root := t.TempDir()
	return fetch.NewFetcher(&http.Client{Transport: mt}, nil, root), mt, root
}

func htmlResponder(status int, body string) httpmock.Responder {
	return func(*http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(status, body)
		resp.Header.Set("Content-Type", "text/html; charset=utf-8")
		return resp, nil
	}
}

func TestClassify(t *testing.T) {
	cases := map[string]fetch.URLKind{
		"https://example.com/videos/clip.mp4":                        fetch.KindGeneric,
		"https://drive.google.com/file/d/abc123/view?usp=sharing":    fetch.KindDriveFile,
		"https://drive.google.com/open?id=abc123&authuser=0":         fetch.KindDriveFile,
		"https://drive.google.com/drive/folders/1AbCdEf?usp=sharing": fetch.KindDriveFolder,
		"https://drive.google.com/open?usp=sharing":                  fetch.KindDriveOther,
		"https://drive.google.com/drive/my-drive":                    fetch.KindDriveOther,
		"gs://media-bucket/cctv/front.mp4":                           fetch.KindGCS,
		"ftp://example.com/clip.mp4":                                 fetch.KindInvalid,
		"clip.mp4":                                                   fetch.KindInvalid,
		"example.com/clip.mp4":                                       fetch.KindInvalid,
	}
	for raw, want := range cases {
		assert.Equal(t, want, fetch.Classify(raw), raw)
	}
}

func TestDriveFileID(t *testing.T) {
	id, err := fetch.DriveFileID("https://drive.google.com/file/d/1a2B3c_-X/view?usp=sharing")
	require.NoError(t, err)
	assert.Equal(t, "1a2B3c_-X", id)

	id, err = fetch.DriveFileID("https://drive.google.com/uc?id=XYZ789&export=download")
	require.NoError(t, err)
	assert.Equal(t, "XYZ789", id)

	_, err = fetch.DriveFileID("https://drive.google.com/drive/folders/abc")
	assert.Error(t, err)
	_, err = fetch.DriveFileID("https://drive.google.com/file/d//view")
	assert.Error(t, err)
}

func TestGenericFileName(t *testing.T) {
	assert.Equal(t, "clip.mp4", fetch.GenericFileName("https://example.com/a/clip.mp4?x=1"))
	assert.Equal(t, "clip.MOV", fetch.GenericFileName("https://example.com/clip.MOV"))
	assert.Equal(t, "stream.mp4", fetch.GenericFileName("https://example.com/stream"))
	assert.Equal(t, "downloaded_video.mp4", fetch.GenericFileName("https://example.com/"))
	assert.Equal(t, "downloaded_video.mp4", fetch.GenericFileName("https://example.com"))
}

func TestDriveFolderFailsWithoutIO(t *testing.T) {
	f, mt, root := newFetcher(t)

	dl, err := f.Resolve(context.Background(), "https://drive.google.com/drive/folders/1AbCdEf")
	assert.Nil(t, dl)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrRemoteFetchFailed)
	assert.Contains(t, err.Error(), "folder")
	assert.Equal(t, 0, mt.GetTotalCallCount())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDriveLinkWithoutFileFailsWithoutIO(t *testing.T) {
	f, mt, root := newFetcher(t)

	for _, raw := range []string{
		"https://drive.google.com/open?usp=sharing",
		"https://drive.google.com/drive/my-drive",
	} {
		dl, err := f.Resolve(context.Background(), raw)
		assert.Nil(t, dl, raw)
		assert.ErrorIs(t, err, model.ErrRemoteFetchFailed, raw)
		assert.ErrorIs(t, err, fetch.ErrUnsupportedURL, raw)
	}
	assert.Equal(t, 0, mt.GetTotalCallCount())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenericDownload(t *testing.T) {
	f, mt, root := newFetcher(t)
	mt.RegisterResponder(http.MethodGet, "https://example.com/media/front-door.mp4",
		httpmock.NewBytesResponder(200, fakeMP4))

	dl, err := f.Resolve(context.Background(), "https://example.com/media/front-door.mp4")
	require.NoError(t, err)
	assert.Equal(t, "front-door.mp4", filepath.Base(dl.Path))
	assert.Equal(t, root, filepath.Dir(dl.Dir))

	b, err := os.ReadFile(dl.Path)
	require.NoError(t, err)
	assert.Equal(t, fakeMP4, b)
}

func TestConcurrentDestinationsDiffer(t *testing.T) {
	f, mt, _ := newFetcher(t)
	mt.RegisterResponder(http.MethodGet, "https://example.com/clip.mp4", httpmock.NewBytesResponder(200, fakeMP4))

	a, err := f.Resolve(context.Background(), "https://example.com/clip.mp4")
	require.NoError(t, err)
	b, err := f.Resolve(context.Background(), "https://example.com/clip.mp4")
	require.NoError(t, err)
	assert.NotEqual(t, a.Path, b.Path)
	assert.NotEqual(t, a.Dir, b.Dir)
}

func TestGenericDownloadHTTPError(t *testing.T) {
	f, mt, _ := newFetcher(t)
	mt.RegisterResponder(http.MethodGet, "https://example.com/missing.mp4", httpmock.NewStringResponder(404, "not found"))

	dl, err := f.Resolve(context.Background(), "https://example.com/missing.mp4")
	assert.ErrorIs(t, err, model.ErrRemoteFetchFailed)
	// The scratch directory is left for the caller to remove.
	require.NotNil(t, dl)
	_, statErr := os.Stat(dl.Dir)
	assert.NoError(t, statErr)
}

func TestEmptyBodyFails(t *testing.T) {
	f, mt, _ := newFetcher(t)
	mt.RegisterResponder(http.MethodGet, "https://example.com/empty.mp4", httpmock.NewBytesResponder(200, nil))

	_, err := f.Resolve(context.Background(), "https://example.com/empty.mp4")
	assert.ErrorIs(t, err, model.ErrRemoteFetchFailed)
}

func TestDriveDirectDownload(t *testing.T) {
	f, mt, _ := newFetcher(t)
	mt.RegisterResponder(http.MethodGet, "https://drive.google.com/uc?export=download&id=abc123",
		httpmock.NewBytesResponder(200, fakeMP4))

	dl, err := f.Resolve(context.Background(), "https://drive.google.com/file/d/abc123/view")
	require.NoError(t, err)
	assert.Equal(t, "gdrive_video_abc123.mp4", filepath.Base(dl.Path))
}

func TestDriveConfirmationPage(t *testing.T) {
	f, mt, _ := newFetcher(t)
	mt.RegisterResponder(http.MethodGet, "https://drive.google.com/uc?export=download&id=big1",
		htmlResponder(200, `<html><body><a href="/uc?export=download&amp;confirm=t0K3n&amp;id=big1">Download anyway</a></body></html>`))
	mt.RegisterResponder(http.MethodGet, "https://drive.google.com/uc?export=download&confirm=t0K3n&id=big1",
		httpmock.NewBytesResponder(200, fakeMP4))

	dl, err := f.Resolve(context.Background(), "https://drive.google.com/open?id=big1")
	require.NoError(t, err)
	b, err := os.ReadFile(dl.Path)
	require.NoError(t, err)
	assert.Equal(t, fakeMP4, b)
	assert.Equal(t, 2, mt.GetTotalCallCount())
}

func TestDriveHTMLWithoutTokenFails(t *testing.T) {
	f, mt, _ := newFetcher(t)
	mt.RegisterResponder(http.MethodGet, "https://drive.google.com/uc?export=download&id=private",
		htmlResponder(200, `<html><body>Sign in to continue</body></html>`))

	_, err := f.Resolve(context.Background(), "https://drive.google.com/file/d/private/view")
	assert.ErrorIs(t, err, model.ErrRemoteFetchFailed)
}

func TestGenericHTMLPayloadFails(t *testing.T) {
	f, mt, _ := newFetcher(t)
	mt.RegisterResponder(http.MethodGet, "https://example.com/watch", httpmock.NewStringResponder(200, "<!DOCTYPE html><html></html>"))

	_, err := f.Resolve(context.Background(), "https://example.com/watch")
	assert.ErrorIs(t, err, model.ErrRemoteFetchFailed)
}

func TestGCSWithoutClientFails(t *testing.T) {
	f, _, _ := newFetcher(t)
	_, err := f.Resolve(context.Background(), "gs://bucket/clip.mp4")
	assert.ErrorIs(t, err, model.ErrRemoteFetchFailed)
}

func TestParseGCSURL(t *testing.T) {
	bucket, object, err := fetch.ParseGCSURL("gs://media/cctv/front.mp4")
	require.NoError(t, err)
	assert.Equal(t, "media", bucket)
	assert.Equal(t, "cctv/front.mp4", object)

	_, _, err = fetch.ParseGCSURL("gs://media/")
	assert.Error(t, err)
}
