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
	"fmt"
	"io"

	"go.elastic.co/fastjson"
)

// RecordWriter produces NJSON record streams in the two-line format consumed
// by Loader: an action line carrying the document id, then the document line.
// The document is written as-is and must be a single line of JSON.
type RecordWriter struct {
	w     io.Writer
	jsonw fastjson.Writer
}

// NewRecordWriter returns a RecordWriter writing NJSON records to w.
func NewRecordWriter(w io.Writer) *RecordWriter {
	return &RecordWriter{w: w}
}

// WriteCreate writes a record under the "create" action, which inserts the
// document only when the id is not already present in the index.
func (rw *RecordWriter) WriteCreate(id string, doc []byte) error {
	return rw.write("create", id, doc)
}

// WriteIndex writes a record under the "index" action, which inserts or
// overwrites the document.
func (rw *RecordWriter) WriteIndex(id string, doc []byte) error {
	return rw.write("index", id, doc)
}

func (rw *RecordWriter) write(action, id string, doc []byte) error {
	rw.jsonw.RawByte('{')
	rw.jsonw.String(action)
	rw.jsonw.RawString(`:{`)
	if id != "" {
		rw.jsonw.RawString(`"_id":`)
		rw.jsonw.String(id)
	}
	rw.jsonw.RawString("}}\n")
	_, err := rw.w.Write(rw.jsonw.Bytes())
	rw.jsonw.Reset()
	if err != nil {
		return fmt.Errorf("failed to write action line: %w", err)
	}
	if _, err := rw.w.Write(doc); err != nil {
		return fmt.Errorf("failed to write document line: %w", err)
	}
	if _, err := rw.w.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	return nil
}
