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
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

const queryHelp = `Query mode searches the annotated media with natural language.

Examples:
  annotator query "red car parked at night"
  annotator -q "person walking a dog" -c 10
  annotator -q "delivery truck" --open

Each result shows the file, its type, the time and frame number for video
frames, the detected objects, the camera for photographs and a preview of the
description. Results are ordered by similarity, closest first.`

type rootFlags struct {
	root      string
	query     string
	count     int
	open      bool
	helpQuery bool
}

func rootCommand(a *app) *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "annotator",
		Short:         "Annotate photographs and videos and search them",
		Long:          "Without a subcommand, annotates every photograph and video under the media root.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if flags.helpQuery {
				return nil
			}
			return a.init(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch {
			case flags.helpQuery:
				fmt.Fprintln(cmd.OutOrStdout(), queryHelp)
				return nil
			case flags.query != "":
				return a.runQuery(cmd.Context(), cmd.OutOrStdout(), flags.query, flags.count, flags.open)
			default:
				return a.runBatch(cmd.Context(), cmd.OutOrStdout(), flags.root)
			}
		},
	}

	cmd.Flags().StringVar(&flags.root, "root", "", "Media root directory (defaults to pipeline.root_dir)")
	cmd.Flags().StringVarP(&flags.query, "query", "q", "", "Search the annotated media instead of processing")
	cmd.Flags().IntVarP(&flags.count, "count", "c", 0, "Number of query results (defaults to query.default_count)")
	cmd.Flags().BoolVarP(&flags.open, "open", "o", false, "Open matched files with the system viewer")
	cmd.Flags().BoolVar(&flags.helpQuery, "help-query", false, "Show query mode help")
	cmd.MarkFlagsMutuallyExclusive("query", "root")

	cmd.AddCommand(batchCommand(a), urlCommand(a), queryCommand(a))
	return cmd
}

func batchCommand(a *app) *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Annotate every photograph and video under the media root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runBatch(cmd.Context(), cmd.OutOrStdout(), root)
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "Media root directory (defaults to pipeline.root_dir)")
	return cmd
}

func urlCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "url <URL> [interval]",
		Short: "Annotate a single remote video",
		Long:  "Downloads the video at URL (http, https, gs:// or a Google Drive share link) and annotates one frame every interval seconds.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var interval float64
			if len(args) == 2 {
				v, err := strconv.ParseFloat(args[1], 64)
				if err != nil || v <= 0 {
					return fmt.Errorf("interval must be a positive number of seconds, got %q", args[1])
				}
				interval = v
			}
			return a.runURL(cmd.Context(), cmd.OutOrStdout(), args[0], interval)
		},
	}
}

func queryCommand(a *app) *cobra.Command {
	var (
		count int
		open  bool
	)
	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Search the annotated media",
		Long:  queryHelp,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runQuery(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "), count, open)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "c", 0, "Number of results (defaults to query.default_count)")
	cmd.Flags().BoolVarP(&open, "open", "o", false, "Open matched files with the system viewer")
	return cmd
}
