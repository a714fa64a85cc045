// Licensed to Elasticsearch B.V. under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. Elasticsearch B.V. licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

// Command bulkload loads NJSON files into an Elasticsearch index.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	bulkloader "github.com/searchtools/go-bulkloader"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		esURL            string
		index            string
		credentials      string
		pipeline         string
		batchSize        int
		progressInterval int
		compressionLevel int
	)
	cmd := &cobra.Command{
		Use:   "bulkload [flags] FILE...",
		Short: "Bulk-load NJSON files into an Elasticsearch index",
		Long: `Bulk-load newline-delimited JSON (NJSON) files into an Elasticsearch index.

Each file carries two lines per record: an action line naming the primary
key, followed by the document line. Files are loaded concurrently, one
loader per file; within a file, batches are submitted one at a time and the
load stops at the first fatal error.`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()

			g, ctx := errgroup.WithContext(cmd.Context())
			for _, path := range args {
				path := path
				g.Go(func() error {
					loader, err := bulkloader.NewFromCredentials(esURL, index, credentials, bulkloader.Config{
						Logger:           logger.With(zap.String("file", path)),
						BatchSize:        batchSize,
						ProgressInterval: progressInterval,
						CompressionLevel: compressionLevel,
						Pipeline:         pipeline,
					})
					if err != nil {
						return err
					}
					n, err := loader.LoadFile(ctx, path)
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					logger.Info("file loaded",
						zap.String("file", path),
						zap.Int("documents", n),
					)
					return nil
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&esURL, "url", "http://localhost:9200", "Elasticsearch URL")
	cmd.Flags().StringVar(&index, "index", "", "target index name")
	cmd.Flags().StringVar(&credentials, "credentials", "", "path to a YAML credentials file")
	cmd.Flags().StringVar(&pipeline, "pipeline", "", "ingest pipeline ID")
	cmd.Flags().IntVar(&batchSize, "batch-size", 100, "records per bulk request")
	cmd.Flags().IntVar(&progressInterval, "progress-interval", 500, "persisted documents between progress log entries")
	cmd.Flags().IntVar(&compressionLevel, "compression-level", 0, "gzip compression level for request bodies, -1 to 9")
	cmd.MarkFlagRequired("index")
	return cmd
}
