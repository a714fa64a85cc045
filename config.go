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

package bulkloader

import (
	"go.elastic.co/apm/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Config holds configuration for Loader.
type Config struct {
	// Logger holds an optional Logger to use for logging load progress and
	// per-document indexing failures.
	//
	// All Elasticsearch errors will be logged at error level.
	//
	// If Logger is nil, logging will be disabled.
	Logger *zap.Logger

	// Tracer holds an optional apm.Tracer to use for tracing bulk requests
	// to Elasticsearch. Each bulk request is traced as a transaction.
	//
	// If Tracer is nil, requests will not be traced.
	Tracer *apm.Tracer

	// BatchSize holds the maximum number of records (line pairs) submitted
	// in one bulk request.
	//
	// If BatchSize is zero, the default of 100 will be used. It can be
	// changed between batches with Loader.SetBatchSize.
	BatchSize int

	// ProgressInterval holds the number of persisted documents between
	// progress log entries during a streaming load. Progress is always
	// logged once more when the load completes.
	//
	// If ProgressInterval is zero, the default of 500 will be used.
	ProgressInterval int

	// CompressionLevel holds the gzip compression level, from 0 (gzip.NoCompression)
	// to 9 (gzip.BestCompression). Higher values provide greater compression, at a
	// greater cost of CPU. The special value -1 (gzip.DefaultCompression) selects the
	// default compression level.
	CompressionLevel int

	// Pipeline holds the ingest pipeline ID.
	//
	// If Pipeline is empty, no ingest pipeline will be specified in the Bulk request.
	Pipeline string

	// Refresh holds the bulk request refresh policy.
	//
	// If Refresh is empty, "wait_for" will be used so that loaded documents
	// are visible to search before the load returns.
	Refresh string

	// MeterProvider holds the OTel MeterProvider to be used to create and
	// record loader metrics.
	//
	// If unset, the global OTel MeterProvider will be used, if that is unset,
	// no metrics will be recorded.
	MeterProvider metric.MeterProvider

	// MetricAttributes holds any extra attributes to set in the recorded
	// metrics.
	MetricAttributes attribute.Set
}

func defaultConfig(cfg Config) Config {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 500
	}
	if cfg.Refresh == "" {
		cfg.Refresh = "wait_for"
	}
	return cfg
}
