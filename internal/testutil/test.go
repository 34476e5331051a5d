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

// Package test provides helpers shared by the test suites: configuration
// loading, EXIF and JPEG fixtures, and in-memory fakes of the model backends.
package test

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jaycherian/gcp-go-media-annotator/internal/cloud"
)

var (
	configOnce sync.Once
	config     *cloud.Config
)

// HandleErr fails the test when err is not nil.
func HandleErr(err error, t *testing.T) {
	t.Helper()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// RepoRoot walks up from the working directory to the directory holding go.mod.
func RepoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("go.mod not found")
		}
		dir = parent
	}
}

// SetupOS points the configuration loader at configs/.env.test.toml.
func SetupOS() error {
	root, err := RepoRoot()
	if err != nil {
		return err
	}
	if err := os.Setenv(cloud.EnvConfigFilePrefix, filepath.Join(root, "configs")); err != nil {
		return err
	}
	return os.Setenv(cloud.EnvConfigRuntime, "test")
}

// GetConfig loads the test configuration once and returns a copy, so tests
// can change their copy freely.
func GetConfig() *cloud.Config {
	configOnce.Do(func() {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		c, err := cloud.Load()
		if err != nil {
			log.Fatalf("failed to load test configuration: %v\n", err)
		}
		config = c
	})
	c := *config
	c.TopicSubscriptions = make(map[string]cloud.TopicSubscription, len(config.TopicSubscriptions))
	for k, v := range config.TopicSubscriptions {
		c.TopicSubscriptions[k] = v
	}
	return &c
}

// ConfigForDir returns the test configuration with every on-disk location
// placed under dir.
func ConfigForDir(dir string) *cloud.Config {
	c := GetConfig()
	c.Pipeline.RootDir = filepath.Join(dir, "media")
	c.Pipeline.CSVDir = filepath.Join(dir, "csv_logs")
	c.Pipeline.TempDir = filepath.Join(dir, "tmp")
	c.Store.Backend = cloud.BackendSQLite
	c.Store.Dir = filepath.Join(dir, "db")
	for _, d := range []string{c.Pipeline.RootDir, c.Pipeline.TempDir} {
		_ = os.MkdirAll(d, 0o755)
	}
	return c
}
