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
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jaycherian/gcp-go-media-annotator/internal/core/model"
)

var (
	imageExtensions = map[string]bool{".jpg": true, ".jpeg": true}
	videoExtensions = map[string]bool{
		".mp4": true, ".avi": true, ".mov": true, ".mkv": true,
		".wmv": true, ".flv": true, ".webm": true,
	}
)

// Discover walks root recursively and returns its photographs and videos,
// each sorted by path. Extensions are matched case-insensitively. The number
// of files found in every directory is logged, so camera folders can be told
// apart.
func Discover(root string) (images, videos []model.MediaUnit, err error) {
	perDir := make(map[string][2]int)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		counts := perDir[filepath.Dir(path)]
		switch {
		case imageExtensions[ext]:
			images = append(images, model.NewImage(path))
			counts[0]++
		case videoExtensions[ext]:
			videos = append(videos, model.NewLocalVideo(path))
			counts[1]++
		default:
			return nil
		}
		perDir[filepath.Dir(path)] = counts
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	sort.Slice(images, func(i, j int) bool { return images[i].Source < images[j].Source })
	sort.Slice(videos, func(i, j int) bool { return videos[i].Source < videos[j].Source })

	dirs := make([]string, 0, len(perDir))
	for dir := range perDir {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	for _, dir := range dirs {
		slog.Info("discovered media", "dir", dir, "images", perDir[dir][0], "videos", perDir[dir][1])
	}
	slog.Info("discovery complete", "root", root, "images", len(images), "videos", len(videos))
	return images, videos, nil
}
