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

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/fetch"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/ledger"
)

var (
	// ErrNotProcessed is returned for media the store has no record of.
	ErrNotProcessed = errors.New("media has not been processed")
	// ErrNotSignable is returned when a streaming URL cannot be produced.
	ErrNotSignable = errors.New("media cannot be streamed")
)

// SignBytes signs payload as the service account email.
type SignBytes func(ctx context.Context, email string, payload []byte) ([]byte, error)

// NewIAMSigner signs through the IAM credentials API, so the server needs no
// private key of its own.
func NewIAMSigner(client *credentials.IamCredentialsClient) SignBytes {
	return func(ctx context.Context, email string, payload []byte) ([]byte, error) {
		resp, err := client.SignBlob(ctx, &credentialspb.SignBlobRequest{
			Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", email),
			Payload: payload,
		})
		if err != nil {
			return nil, err
		}
		return resp.SignedBlob, nil
	}
}

// MediaService answers questions about processed media.
type MediaService struct {
	Ledger        ledger.Reader
	StorageClient *storage.Client // Optional; required for StreamURL.
	Signer        SignBytes       // Optional; required for StreamURL.
	SignerEmail   string
}

// ProcessedFiles returns the distinct file names in the store, sorted.
func (s *MediaService) ProcessedFiles(ctx context.Context) ([]string, error) {
	snapshot, err := ledger.Load(ctx, s.Ledger)
	if err != nil {
		return nil, err
	}
	return snapshot.FileNames(), nil
}

// Stats counts the processed media.
type Stats struct {
	Files  int `json:"files"`
	Images int `json:"images"`
	Videos int `json:"videos"`
}

// Stats counts distinct processed files, split into photographs and videos.
func (s *MediaService) Stats(ctx context.Context) (*Stats, error) {
	names, err := s.Ledger.DistinctFileNames(ctx)
	if err != nil {
		return nil, err
	}
	videos, err := s.Ledger.VideoFrameFileNames(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{Files: len(names), Images: len(names) - len(videos), Videos: len(videos)}, nil
}

// IsProcessed reports whether name is a stored file name.
func (s *MediaService) IsProcessed(ctx context.Context, name string) (bool, error) {
	snapshot, err := ledger.Load(ctx, s.Ledger)
	if err != nil {
		return false, err
	}
	return snapshot.ImageProcessed(name), nil
}

// StreamURL returns a V4 signed GET URL, valid for expires, for a processed
// gs:// video or image.
func (s *MediaService) StreamURL(ctx context.Context, name string, expires time.Duration) (string, error) {
	if s.StorageClient == nil || s.Signer == nil || s.SignerEmail == "" {
		return "", fmt.Errorf("%w: url signing is not configured", ErrNotSignable)
	}
	bucket, object, err := fetch.ParseGCSURL(name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotSignable, err)
	}
	processed, err := s.IsProcessed(ctx, name)
	if err != nil {
		return "", err
	}
	if !processed {
		return "", fmt.Errorf("%w: %s", ErrNotProcessed, name)
	}

	opts := &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Method:         "GET",
		Expires:        time.Now().Add(expires),
		GoogleAccessID: s.SignerEmail,
		SignBytes: func(payload []byte) ([]byte, error) {
			return s.Signer(ctx, s.SignerEmail, payload)
		},
	}
	u, err := s.StorageClient.Bucket(bucket).SignedURL(object, opts)
	if err != nil {
		return "", fmt.Errorf("failed to sign gs://%s/%s: %w", bucket, object, err)
	}
	return u, nil
}
