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
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/jaycherian/gcp-go-media-annotator/internal/core/services"
	"github.com/jaycherian/gcp-go-media-annotator/internal/telemetry"
)

const streamURLLifetime = 15 * time.Minute

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config, err := GetConfig()
	if err != nil {
		log.Fatal(err)
	}
	telemetry.SetupLogging(config.Application.LogFormat, config.Application.LogLevel)
	slog.Info("Logging initialized")

	shutdownTelemetry, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		slog.Error("Failed to setup OpenTelemetry", "error", err)
		os.Exit(1)
	}
	slog.Info("Tracing initialized")

	if err := InitState(ctx, config); err != nil {
		slog.Error("Failed to initialize state", "error", err)
		os.Exit(1)
	}
	slog.Info("Initialized State")

	r := gin.Default()
	r.Use(otelgin.Middleware(config.Application.Name))
	r.Use(cors.Default())

	apiV1 := r.Group("/api/v1")
	{
		MediaRouter(apiV1)
		LedgerRouter(apiV1)
		Dashboard(apiV1)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Application.HTTPPort),
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to listen", "error", err)
		}
	}()
	slog.Info("Server Ready", "port", config.Application.HTTPPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutdown Server ...")

	// Stops the Pub/Sub receivers before the store closes.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server Shutdown Failed", "error", err)
	}
	if err := CloseState(); err != nil {
		slog.Warn("failed to release clients", "error", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Warn("failed to flush telemetry", "error", err)
	}
	slog.Info("Server exiting")
}

// MediaRouter sets up the routes for media search and streaming.
func MediaRouter(r *gin.RouterGroup) {
	media := r.Group("/media")
	{
		media.GET("", func(c *gin.Context) {
			query := c.Query("s")
			if len(query) == 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter s"})
				return
			}
			count, err := strconv.Atoi(c.DefaultQuery("count", strconv.Itoa(state.config.Query.DefaultCount)))
			if err != nil || count < 1 {
				count = state.config.Query.DefaultCount
			}
			results, err := state.searchService.Find(c, query, count)
			if err != nil {
				if errors.Is(err, services.ErrEmptyQuery) {
					c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
					return
				}
				slog.ErrorContext(c, "error searching media", "query", query, "error", err)
				c.Status(http.StatusInternalServerError)
				return
			}
			c.JSON(http.StatusOK, results)
		})

		media.GET("/stream", func(c *gin.Context) {
			name := c.Query("name")
			if name == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter name"})
				return
			}
			signedURL, err := state.mediaService.StreamURL(c, name, streamURLLifetime)
			switch {
			case errors.Is(err, services.ErrNotProcessed):
				c.JSON(http.StatusNotFound, gin.H{"error": "Media not found"})
			case errors.Is(err, services.ErrNotSignable):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			case err != nil:
				slog.ErrorContext(c, "error signing media url", "name", name, "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not generate streaming URL"})
			default:
				c.JSON(http.StatusOK, gin.H{"url": signedURL})
			}
		})
	}
}

// LedgerRouter exposes the processed file names.
func LedgerRouter(r *gin.RouterGroup) {
	r.GET("/ledger", func(c *gin.Context) {
		names, err := state.mediaService.ProcessedFiles(c)
		if err != nil {
			slog.ErrorContext(c, "error reading ledger", "error", err)
			c.Status(http.StatusServiceUnavailable)
			return
		}
		c.JSON(http.StatusOK, gin.H{"files": names, "count": len(names)})
	})
}

// Dashboard sets up the statistics routes.
func Dashboard(r *gin.RouterGroup) {
	stats := r.Group("/stats")
	{
		stats.GET("", func(c *gin.Context) {
			out, err := state.mediaService.Stats(c)
			if err != nil {
				slog.ErrorContext(c, "error reading stats", "error", err)
				c.Status(http.StatusServiceUnavailable)
				return
			}
			c.JSON(http.StatusOK, out)
		})
	}
}
