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

package bulkloader_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bulkloader "github.com/searchtools/go-bulkloader"
	"github.com/searchtools/go-bulkloader/bulkloadertest"
)

func TestReadCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("username: loader\npassword: hunter2\n"), 0o600))

	creds, err := bulkloader.ReadCredentials(path)
	require.NoError(t, err)
	assert.Equal(t, "loader", creds.Username)
	assert.Equal(t, "hunter2", creds.Password)

	_, err = bulkloader.ReadCredentials(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("username: [\n"), 0o600))
	_, err = bulkloader.ReadCredentials(bad)
	assert.Error(t, err)
}

func TestNewFromCredentials(t *testing.T) {
	var sawAuth atomic.Bool
	mux := http.NewServeMux()
	bulkloadertest.HandleBulk(mux, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		sawAuth.Store(ok && user == "loader" && pass == "hunter2")
		_, result := bulkloadertest.DecodeBulkRequest(r)
		json.NewEncoder(w).Encode(result)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "creds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("username: loader\npassword: hunter2\n"), 0o600))

	loader, err := bulkloader.NewFromCredentials(srv.URL, "testidx", path, bulkloader.Config{})
	require.NoError(t, err)

	persisted, err := loader.LoadBatch(context.Background(), njsonLines(t, "index", 2))
	require.NoError(t, err)
	assert.Equal(t, 2, persisted)
	assert.True(t, sawAuth.Load())
}
