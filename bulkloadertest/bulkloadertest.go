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

// Package bulkloadertest provides a mock Elasticsearch bulk endpoint for
// testing code built on the bulkloader package.
package bulkloadertest

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.elastic.co/apm/module/apmelasticsearch/v2"

	"github.com/elastic/go-elasticsearch/v8"
)

// Record is one decoded NJSON record from a bulk request body.
type Record struct {
	// Action is the bulk action type, e.g. "index" or "create".
	Action string

	// ActionLine is the raw first line of the record.
	ActionLine string

	// Document is the raw second line of the record.
	Document string
}

// BulkResponse is the mock response body for one bulk request.
type BulkResponse struct {
	Errors bool                          `json:"errors"`
	Items  []map[string]BulkResponseItem `json:"items"`
}

// BulkResponseItem is the per-record result inside a BulkResponse.
type BulkResponseItem struct {
	ID     string     `json:"_id,omitempty"`
	Status int        `json:"status"`
	Error  *BulkError `json:"error,omitempty"`
}

// BulkError is the error detail of a failed BulkResponseItem.
type BulkError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// DecodeBulkRequest decodes a /_bulk request's body, returning the decoded
// records and an all-successful response with one item per record.
func DecodeBulkRequest(r *http.Request) ([]Record, BulkResponse) {
	body := r.Body
	switch r.Header.Get("Content-Encoding") {
	case "gzip":
		r, err := gzip.NewReader(body)
		if err != nil {
			panic(err)
		}
		defer r.Close()
		body = r
	}

	scanner := bufio.NewScanner(body)
	var records []Record
	var result BulkResponse
	for scanner.Scan() {
		actionLine := scanner.Text()
		action := make(map[string]struct {
			ID string `json:"_id"`
		})
		if err := json.Unmarshal([]byte(actionLine), &action); err != nil {
			panic(fmt.Errorf("invalid action line %q: %w", actionLine, err))
		}
		var actionType, id string
		for actionType = range action {
			id = action[actionType].ID
		}
		if !scanner.Scan() {
			panic("expected document line")
		}

		doc := scanner.Text()
		if !json.Valid([]byte(doc)) {
			panic(fmt.Errorf("invalid JSON: %s", doc))
		}
		records = append(records, Record{
			Action:     actionType,
			ActionLine: actionLine,
			Document:   doc,
		})

		item := BulkResponseItem{ID: id, Status: http.StatusCreated}
		result.Items = append(result.Items, map[string]BulkResponseItem{actionType: item})
	}
	return records, result
}

// NewMockElasticsearchClient returns an elasticsearch.Client which sends
// /_bulk requests to bulkHandler.
func NewMockElasticsearchClient(t testing.TB, bulkHandler http.HandlerFunc) *elasticsearch.Client {
	config := NewMockElasticsearchClientConfig(t, bulkHandler)
	client, err := elasticsearch.NewClient(config)
	require.NoError(t, err)
	return client
}

// NewMockElasticsearchClientConfig starts an httptest.Server, and returns an
// elasticsearch.Config which sends /_bulk requests to bulkHandler. The
// httptest.Server will be closed via t.Cleanup.
func NewMockElasticsearchClientConfig(t testing.TB, bulkHandler http.HandlerFunc) elasticsearch.Config {
	mux := http.NewServeMux()
	HandleBulk(mux, bulkHandler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	config := elasticsearch.Config{}
	config.Addresses = []string{srv.URL}
	config.DisableRetry = true
	config.Transport = apmelasticsearch.WrapRoundTripper(http.DefaultTransport)

	return config
}

// HandleBulk registers bulkHandler with mux for handling bulk requests,
// wrapping bulkHandler to conform with go-elasticsearch version checking.
func HandleBulk(mux *http.ServeMux, bulkHandler http.HandlerFunc) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		bulkHandler.ServeHTTP(w, r)
	}
	mux.HandleFunc("/_bulk", handler)
	mux.HandleFunc("/{index}/_bulk", handler)
}
