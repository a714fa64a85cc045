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

// Package bulkloader loads newline-delimited JSON (NJSON) record streams into
// Elasticsearch through the _bulk API. An NJSON stream carries two lines per
// record: an action line naming the primary key, followed by the document
// line. Records are grouped into bounded batches, each batch is sent as a
// single bulk request, and the per-item results in the bulk response are
// reconciled against what was sent to produce an accurate count of documents
// actually persisted.
//
// This package is intentionally simpler than the go-elasticsearch
// esutil.BulkIndexer API: loads are synchronous and single-threaded, failed
// batches are not retried, and document bodies are treated as opaque lines of
// JSON text.
package bulkloader
