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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestReconcileBulkResponse(t *testing.T) {
	for _, tc := range []struct {
		name          string
		body          string
		errors        int
		conflicts     int
		loggedReasons []string
	}{
		{
			name:   "no_errors_flag",
			body:   `{"took":3,"errors":false,"items":[{"index":{"_id":"a","status":201}}]}`,
			errors: 0,
		},
		{
			name:   "errors_flag_absent",
			body:   `{"items":[{"index":{"_id":"a","status":400,"error":{"reason":"nope"}}}]}`,
			errors: 0,
		},
		{
			name:   "malformed",
			body:   `{"errors":true,"items":`,
			errors: 0,
		},
		{
			name:   "not_json",
			body:   `<html>bad gateway</html>`,
			errors: 0,
		},
		{
			name:   "empty",
			body:   ``,
			errors: 0,
		},
		{
			name: "index_failure_logged",
			body: `{"errors":true,"items":[` +
				`{"index":{"_id":"a","status":201}},` +
				`{"index":{"_id":"b","status":400,"error":{"type":"mapper_parsing_exception","reason":"mapper_parsing_exception"}}}]}`,
			errors:        1,
			loggedReasons: []string{"mapper_parsing_exception"},
		},
		{
			name: "create_conflict_counted_not_logged",
			body: `{"errors":true,"items":[` +
				`{"create":{"_id":"a","status":409.0}},` +
				`{"create":{"_id":"b","status":201}}]}`,
			errors:    1,
			conflicts: 1,
		},
		{
			name: "conflict_and_failure_mixed",
			body: `{"errors":true,"items":[` +
				`{"create":{"_id":"a","status":409}},` +
				`{"create":{"_id":"b","status":400,"error":{"reason":"bad doc"}}},` +
				`{"create":{"_id":"c","status":201}}]}`,
			errors:        2,
			conflicts:     1,
			loggedReasons: []string{"bad doc"},
		},
		{
			name:   "index_conflict_is_failure",
			body:   `{"errors":true,"items":[{"index":{"_id":"a","status":409,"error":{"reason":"version conflict"}}}]}`,
			errors: 1,
			loggedReasons: []string{
				"version conflict",
			},
		},
		{
			name:   "unknown_action_skipped",
			body:   `{"errors":true,"items":[{"delete":{"_id":"a","status":404,"error":{"reason":"not found"}}}]}`,
			errors: 0,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			core, observed := observer.New(zap.NewAtomicLevelAt(zapcore.DebugLevel))
			numErrors, numConflicts := reconcileBulkResponse([]byte(tc.body), zap.New(core))
			assert.Equal(t, tc.errors, numErrors)
			assert.Equal(t, tc.conflicts, numConflicts)

			entries := observed.FilterMessage("failed to index document").TakeAll()
			require.Len(t, entries, len(tc.loggedReasons))
			for i, e := range entries {
				assert.Equal(t, tc.loggedReasons[i], e.ContextMap()["reason"])
			}
		})
	}
}

func TestClassifyItem(t *testing.T) {
	conflict := bulkResponseItem{Action: "create", Status: "409.0"}
	assert.Equal(t, itemConflict, classifyItem(conflict))

	// The conflict short-circuit wins even when an error object is present:
	// the item is counted but never logged.
	conflict.HasError = true
	conflict.Error.Reason = "document already exists"
	assert.Equal(t, itemConflict, classifyItem(conflict))

	failed := bulkResponseItem{Action: "index", Status: "400", HasError: true}
	assert.Equal(t, itemFailed, classifyItem(failed))

	ok := bulkResponseItem{Action: "create", Status: "201"}
	assert.Equal(t, itemPersisted, classifyItem(ok))

	skipped := bulkResponseItem{Action: "update", Status: "400", HasError: true}
	assert.Equal(t, itemPersisted, classifyItem(skipped))
}

func TestLastLine(t *testing.T) {
	assert.Equal(t, "", string(lastLine(nil)))
	assert.Equal(t, `{"errors":false}`, string(lastLine([]byte(`{"errors":false}`))))
	assert.Equal(t, `{"errors":false}`, string(lastLine([]byte("100-continue\nchunk\n{\"errors\":false}\n"))))
	assert.Equal(t, "last", string(lastLine([]byte("first\r\nlast\r\n"))))
}

func TestExtractErrorReason(t *testing.T) {
	assert.Equal(t, "index blocked",
		extractErrorReason([]byte(`{"error":{"type":"cluster_block_exception","reason":"index blocked"}}`)))
	assert.Equal(t, "plain message",
		extractErrorReason([]byte(`{"error":"plain message"}`)))
	assert.Equal(t, "", extractErrorReason([]byte(`{"status":500}`)))
	assert.Equal(t, "", extractErrorReason([]byte(`not json`)))
}
