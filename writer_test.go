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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bulkloader "github.com/searchtools/go-bulkloader"
)

func TestRecordWriter(t *testing.T) {
	var buf bytes.Buffer
	rw := bulkloader.NewRecordWriter(&buf)

	require.NoError(t, rw.WriteCreate("urn:example:dataset:1.0", []byte(`{"title":"a"}`)))
	require.NoError(t, rw.WriteIndex(`needs "escaping"`, []byte(`{"title":"b"}`)))
	require.NoError(t, rw.WriteIndex("", []byte(`{"title":"c"}`)))

	assert.Equal(t,
		`{"create":{"_id":"urn:example:dataset:1.0"}}`+"\n"+
			`{"title":"a"}`+"\n"+
			`{"index":{"_id":"needs \"escaping\""}}`+"\n"+
			`{"title":"b"}`+"\n"+
			`{"index":{}}`+"\n"+
			`{"title":"c"}`+"\n",
		buf.String(),
	)
}
