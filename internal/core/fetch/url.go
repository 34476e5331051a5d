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

package fetch

import (
	"errors"
	"net/url"
	"path"
	"strings"
)

// URLKind is the classification of a remote media reference.
type URLKind int

const (
	KindInvalid URLKind = iota
	KindGeneric
	KindDriveFile
	KindDriveFolder
	// KindDriveOther is a Drive link that names neither a file nor a folder.
	KindDriveOther
	KindGCS
)

func (k URLKind) String() string {
	switch k {
	case KindGeneric:
		return "generic"
	case KindDriveFile:
		return "drive_file"
	case KindDriveFolder:
		return "drive_folder"
	case KindDriveOther:
		return "drive_other"
	case KindGCS:
		return "gcs"
	}
	return "invalid"
}

const (
	driveHost           = "drive.google.com"
	driveFileMarker     = "/file/d/"
	driveIDMarker       = "id="
	driveFolderMarker   = "/folders/"
	defaultDownloadName = "downloaded_video.mp4"
)

// VideoExtensions are the extensions kept as-is on downloaded files.
var VideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv"}

// ErrUnsupportedURL is returned for references the fetcher cannot resolve.
var ErrUnsupportedURL = errors.New("unsupported url")

// IsURL reports whether s has both a scheme and a host.
func IsURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Classify determines how a reference is fetched.
func Classify(raw string) URLKind {
	if !IsURL(raw) {
		return KindInvalid
	}
	u, _ := url.Parse(raw)
	switch strings.ToLower(u.Scheme) {
	case "gs":
		return KindGCS
	case "http", "https":
	default:
		return KindInvalid
	}
	if strings.Contains(strings.ToLower(u.Host), driveHost) {
		if strings.Contains(raw, driveFolderMarker) {
			return KindDriveFolder
		}
		if strings.Contains(raw, driveFileMarker) || strings.Contains(raw, driveIDMarker) {
			return KindDriveFile
		}
		return KindDriveOther
	}
	return KindGeneric
}

// DriveFileID extracts the file identifier from a single-file Drive link of
// the form .../file/d/<id>/... or ...?id=<id>&...
func DriveFileID(raw string) (string, error) {
	if strings.Contains(raw, driveFolderMarker) {
		return "", errors.New("drive folder links are not supported")
	}
	var id string
	switch {
	case strings.Contains(raw, driveFileMarker):
		rest := strings.SplitN(raw, driveFileMarker, 2)[1]
		id = strings.SplitN(rest, "/", 2)[0]
		id = strings.SplitN(id, "?", 2)[0]
	case strings.Contains(raw, driveIDMarker):
		rest := strings.SplitN(raw, driveIDMarker, 2)[1]
		id = strings.SplitN(rest, "&", 2)[0]
		id = strings.SplitN(id, "#", 2)[0]
	}
	if id == "" {
		return "", errors.New("could not extract a file id from the drive link")
	}
	return id, nil
}

// DriveFileName is the local name of a downloaded Drive file.
func DriveFileName(id string) string {
	return "gdrive_video_" + id + ".mp4"
}

// GenericFileName derives a local name from the last element of the URL
// path, appending ".mp4" unless it already has a known video extension.
func GenericFileName(raw string) string {
	name := ""
	if u, err := url.Parse(raw); err == nil {
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" || name == ".." {
		return defaultDownloadName
	}
	ext := strings.ToLower(path.Ext(name))
	for _, v := range VideoExtensions {
		if ext == v {
			return name
		}
	}
	return name + ".mp4"
}

// ParseGCSURL splits gs://bucket/object into its parts.
func ParseGCSURL(raw string) (bucket, object string, err error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "gs" || u.Host == "" {
		return "", "", ErrUnsupportedURL
	}
	object = strings.TrimPrefix(u.Path, "/")
	if object == "" {
		return "", "", errors.New("gs url has no object name")
	}
	return u.Host, object, nil
}
