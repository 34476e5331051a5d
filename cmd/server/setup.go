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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"github.com/jaycherian/gcp-go-media-annotator/internal/cloud"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/embedding"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/services"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/store"
	"github.com/jaycherian/gcp-go-media-annotator/internal/core/workflow"
	"go.uber.org/multierr"
)

// IngestSubscription is the topic_subscriptions key of the URL intake.
const IngestSubscription = "ingest"

// StateManager holds the shared components of the server.
type StateManager struct {
	config        *cloud.Config
	cloud         *cloud.ServiceClients
	iam           *credentials.IamCredentialsClient
	driver        *workflow.Driver
	documents     store.Store
	searchService *services.SearchService
	mediaService  *services.MediaService
}

var state = &StateManager{}

// GetConfig loads the configuration once, from ./configs unless
// GCP_CONFIG_PREFIX says otherwise.
func GetConfig() (*cloud.Config, error) {
	if state.config != nil {
		return state.config, nil
	}
	if os.Getenv(cloud.EnvConfigFilePrefix) == "" {
		if err := os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return nil, err
		}
	}
	config, err := cloud.Load()
	if err != nil {
		return nil, err
	}
	state.config = config
	return config, nil
}

// InitState creates the cloud clients and the services. When the ingest
// subscription is configured, the pipeline driver is built and its store is
// shared with the read services, so the driver stays the only writer.
func InitState(ctx context.Context, config *cloud.Config) error {
	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		return err
	}
	state.cloud = cloudClients

	if _, ok := cloudClients.PubSubListeners[IngestSubscription]; ok {
		driver, err := workflow.NewDriverFromConfig(ctx, config, cloudClients)
		if err != nil {
			return err
		}
		state.driver = driver
		state.documents = driver.Store()
	} else {
		documents, err := store.Open(ctx, config, cloudClients)
		if err != nil {
			return fmt.Errorf("failed to open %s store: %w", config.Store.Backend, err)
		}
		state.documents = documents
	}

	embedder, err := embedding.New(config, cloudClients)
	if err != nil {
		return err
	}
	state.searchService = &services.SearchService{Embedder: embedder, Store: state.documents}

	state.mediaService = &services.MediaService{
		Ledger:        state.documents,
		StorageClient: cloudClients.StorageClient,
		SignerEmail:   config.Application.SignerServiceAccountEmail,
	}
	if config.Application.SignerServiceAccountEmail != "" {
		iamClient, err := credentials.NewIamCredentialsClient(ctx)
		if err != nil {
			return fmt.Errorf("error creating iam credentials client: %w", err)
		}
		state.iam = iamClient
		state.mediaService.Signer = services.NewIAMSigner(iamClient)
	}

	SetupListeners(ctx)
	return nil
}

// SetupListeners attaches the intake workflow to the ingest subscription.
func SetupListeners(ctx context.Context) {
	listener, ok := state.cloud.PubSubListeners[IngestSubscription]
	if !ok || state.driver == nil {
		slog.Info("url intake disabled", "subscription", IngestSubscription)
		return
	}
	listener.SetCommand(workflow.NewIntakeWorkflow(state.driver))
	listener.Listen(ctx)
}

// CloseState releases everything InitState created.
func CloseState() error {
	var err error
	if state.driver != nil {
		err = multierr.Append(err, state.driver.Close())
	} else if state.documents != nil {
		err = multierr.Append(err, state.documents.Close())
	}
	if state.iam != nil {
		err = multierr.Append(err, state.iam.Close())
	}
	if state.cloud != nil {
		err = multierr.Append(err, state.cloud.Close())
	}
	return err
}
