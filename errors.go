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
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/http"

	jsoniter "github.com/json-iterator/go"
)

var (
	// ErrOddLineCount is returned when the NJSON line list passed to
	// LoadBatch does not hold an even number of lines. Every record is an
	// action line followed by a document line.
	ErrOddLineCount = errors.New("NJSON data must contain an even number of lines")

	// ErrPrematureEnd is returned when an NJSON stream ends after an action
	// line, before the paired document line. The incomplete record is never
	// transmitted.
	ErrPrematureEnd = errors.New("premature end of NJSON data: action line without a document line")

	errMissingIndex = errors.New("missing index name")
)

// ErrorUnknownHost is returned when the Elasticsearch host cannot be resolved.
type ErrorUnknownHost struct {
	Host string
}

func (e ErrorUnknownHost) Error() string {
	return "unknown host " + e.Host
}

// ErrorFlushFailed is returned when Elasticsearch answers a bulk request with
// a non-2xx status. Reason carries whatever diagnostic could be extracted
// from the error body.
type ErrorFlushFailed struct {
	StatusCode int
	Reason     string
}

func (e ErrorFlushFailed) Error() string {
	return fmt.Sprintf("bulk request failed: %s", e.Reason)
}

// enrichTransportError maps low-level transport failures onto user-facing
// errors. An unresolvable host becomes a single error naming the host;
// everything else is surfaced as-is.
func enrichTransportError(err error, host string) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if host == "" {
			host = dnsErr.Name
		}
		return ErrorUnknownHost{Host: host}
	}
	return err
}

// flushFailedError builds the error for a non-2xx bulk response. The last
// line of the error body usually holds an Elasticsearch error envelope with a
// human-readable reason; failing that, the raw body text is used, and an
// empty body falls back to the HTTP status text.
func flushFailedError(statusCode int, body []byte) error {
	line := lastLine(body)
	if len(line) == 0 {
		return ErrorFlushFailed{StatusCode: statusCode, Reason: http.StatusText(statusCode)}
	}
	if reason := extractErrorReason(line); reason != "" {
		return ErrorFlushFailed{StatusCode: statusCode, Reason: reason}
	}
	return ErrorFlushFailed{StatusCode: statusCode, Reason: string(line)}
}

// extractErrorReason pulls the reason out of an Elasticsearch error envelope.
// The envelope nests either an object with a "reason" field or a bare string
// under the top-level "error" key. Returns "" when neither can be extracted.
func extractErrorReason(line []byte) string {
	if reason := jsoniter.Get(line, "error", "reason").ToString(); reason != "" {
		return reason
	}
	if v := jsoniter.Get(line, "error"); v.ValueType() == jsoniter.StringValue {
		return v.ToString()
	}
	return ""
}

// lastLine returns the last non-empty line of b. Bulk responses are a single
// line of JSON; any earlier lines are a transport artifact.
func lastLine(b []byte) []byte {
	b = bytes.TrimRight(b, "\r\n")
	if i := bytes.LastIndexByte(b, '\n'); i >= 0 {
		b = b[i+1:]
	}
	return bytes.TrimSpace(b)
}
