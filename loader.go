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
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/klauspost/compress/gzip"
	"go.elastic.co/apm/module/apmzap/v2"
	"go.elastic.co/apm/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// maxLineBytes bounds a single NJSON line. Elasticsearch rejects documents
// approaching the 100MB HTTP limit long before this.
const maxLineBytes = 64 * 1024 * 1024

// Loader loads NJSON record streams into a single Elasticsearch index via
// the _bulk API. Records are submitted in batches of up to BatchSize line
// pairs, one synchronous bulk request per batch, and the per-item results
// are reconciled into a count of documents actually persisted.
//
// A Loader is not safe for concurrent use. Each load fully completes one
// bulk exchange before starting the next, and running totals are local to a
// single load invocation. Failed batches are not retried: the first fatal
// error aborts the load, leaving the returned total reflecting only fully
// processed prior batches.
type Loader struct {
	config Config
	client esapi.Transport
	index  string
	host   string

	metrics *loaderMetrics
	buf     bytes.Buffer
	gzipw   *gzip.Writer
	writer  io.Writer
}

// New returns a Loader that submits bulk requests to the given index through
// client. It is only tested with the v8 go-elasticsearch client.
func New(client esapi.Transport, index string, cfg Config) (*Loader, error) {
	if client == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if index == "" {
		return nil, errMissingIndex
	}
	if cfg.CompressionLevel < -1 || cfg.CompressionLevel > 9 {
		return nil, fmt.Errorf(
			"expected CompressionLevel in range [-1,9], got %d",
			cfg.CompressionLevel,
		)
	}
	cfg = defaultConfig(cfg)

	ms, err := newMetrics(cfg)
	if err != nil {
		return nil, err
	}
	l := &Loader{
		config:  cfg,
		client:  client,
		index:   index,
		metrics: ms,
	}
	if cfg.CompressionLevel != gzip.NoCompression {
		l.gzipw, _ = gzip.NewWriterLevel(&l.buf, cfg.CompressionLevel)
	}
	return l, nil
}

// SetBatchSize changes the number of records submitted per bulk request.
// The new size takes effect starting with the next batch; the batch being
// assembled when the call is made is not re-split.
func (l *Loader) SetBatchSize(size int) error {
	if size <= 0 {
		return fmt.Errorf("batch size must be > 0, got %d", size)
	}
	l.config.BatchSize = size
	return nil
}

// LoadBatch submits an even-length list of NJSON lines, two per record, as a
// single bulk request regardless of the configured batch size. It returns
// the number of documents actually persisted.
func (l *Loader) LoadBatch(ctx context.Context, lines []string) (int, error) {
	if len(lines) == 0 {
		return 0, nil
	}
	if len(lines)%2 != 0 {
		return 0, ErrOddLineCount
	}
	l.resetBuf()
	for i := 0; i < len(lines); i += 2 {
		l.writeRecord(lines[i], lines[i+1])
	}
	numRecords := len(lines) / 2
	numErrors, err := l.flush(ctx, numRecords)
	if err != nil {
		return 0, err
	}
	return numRecords - numErrors, nil
}

// LoadFile loads an NJSON file and returns the number of documents
// persisted. The file is closed on every exit path.
func (l *Loader) LoadFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open NJSON file: %w", err)
	}
	defer f.Close()

	l.config.Logger.Info("loading NJSON file", zap.String("path", path))
	return l.LoadReader(ctx, f)
}

// LoadReader loads an NJSON stream in batches of up to BatchSize records and
// returns the number of documents persisted. Progress is logged every
// ProgressInterval persisted documents and once more on completion.
func (l *Loader) LoadReader(ctx context.Context, r io.Reader) (int, error) {
	src := newLineSource(r)

	// An empty stream, or one opening with a blank line, holds no records.
	first, ok, err := src.peek()
	if err != nil {
		return 0, err
	}
	if !ok || first == "" {
		return 0, nil
	}

	var total, lastProgress int
	for {
		numRecords, numErrors, more, err := l.loadStreamBatch(ctx, src)
		if err != nil {
			return total, err
		}
		total += numRecords - numErrors
		if total-lastProgress >= l.config.ProgressInterval {
			l.config.Logger.Info("loaded documents", zap.Int("count", total))
			lastProgress = total
		}
		if !more {
			break
		}
	}
	l.config.Logger.Info("loaded documents", zap.Int("count", total))
	return total, nil
}

// loadStreamBatch assembles and submits one batch. more reports whether
// another batch follows: when the batch fills up, one line is peeked and a
// present, non-empty line is the first action line of the next batch.
func (l *Loader) loadStreamBatch(ctx context.Context, src *lineSource) (numRecords, numErrors int, more bool, err error) {
	l.resetBuf()
	size := l.config.BatchSize
	for numRecords < size {
		keyLine, ok, err := src.next()
		if err != nil {
			return 0, 0, false, err
		}
		if !ok {
			break
		}
		docLine, ok, err := src.next()
		if err != nil {
			return 0, 0, false, err
		}
		if !ok {
			return 0, 0, false, ErrPrematureEnd
		}
		l.writeRecord(keyLine, docLine)
		numRecords++
	}

	if numRecords == size {
		next, ok, err := src.peek()
		if err != nil {
			return 0, 0, false, err
		}
		more = ok && next != ""
	}

	numErrors, err = l.flush(ctx, numRecords)
	return numRecords, numErrors, more, err
}

func (l *Loader) resetBuf() {
	l.buf.Reset()
	if l.gzipw != nil {
		l.gzipw.Reset(&l.buf)
		l.writer = l.gzipw
	} else {
		l.writer = &l.buf
	}
}

func (l *Loader) writeRecord(keyLine, docLine string) {
	io.WriteString(l.writer, keyLine)
	io.WriteString(l.writer, "\n")
	io.WriteString(l.writer, docLine)
	io.WriteString(l.writer, "\n")
}

// flush executes the bulk request for the buffered batch and reconciles the
// response, returning the number of records that were not persisted.
func (l *Loader) flush(ctx context.Context, numRecords int) (int, error) {
	if numRecords == 0 {
		return 0, nil
	}

	logger := l.config.Logger
	if l.config.Tracer != nil {
		tx := l.config.Tracer.StartTransaction("bulkloader.flush", "output")
		defer tx.End()
		ctx = apm.ContextWithTransaction(ctx, tx)
		logger = logger.With(apmzap.TraceContext(ctx)...)
	}

	if l.gzipw != nil {
		if err := l.gzipw.Close(); err != nil {
			return 0, fmt.Errorf("failed closing the gzip writer: %w", err)
		}
	}

	req := esapi.BulkRequest{
		Index:      l.index,
		Body:       bytes.NewReader(l.buf.Bytes()),
		Refresh:    l.config.Refresh,
		Pipeline:   l.config.Pipeline,
		Header:     make(http.Header),
		FilterPath: []string{"errors", "items.*._id", "items.*.status", "items.*.error.type", "items.*.error.reason"},
	}
	req.Header.Set("Content-Type", "application/x-ndjson; charset=utf-8")
	if l.gzipw != nil {
		req.Header.Set("Content-Encoding", "gzip")
	}

	attrs := metric.WithAttributeSet(l.config.MetricAttributes)
	bytesFlushed := l.buf.Len()
	before := time.Now()
	res, err := req.Do(ctx, l.client)
	l.metrics.flushDuration.Record(context.Background(), time.Since(before).Seconds(), attrs)
	l.metrics.bulkRequests.Add(context.Background(), 1, attrs)
	if err != nil {
		err = enrichTransportError(err, l.host)
		logger.Error("bulk request failed", zap.Error(err))
		if l.config.Tracer != nil {
			apm.CaptureError(ctx, err).Send()
		}
		return 0, err
	}
	defer res.Body.Close()
	l.metrics.bytesTotal.Add(context.Background(), int64(bytesFlushed), attrs)

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read bulk response: %w", err)
	}
	if res.IsError() {
		err := flushFailedError(res.StatusCode, body)
		logger.Error("bulk request failed", zap.Error(err))
		if l.config.Tracer != nil {
			apm.CaptureError(ctx, err).Send()
		}
		return 0, err
	}

	line := lastLine(body)
	logger.Debug("bulk response", zap.ByteString("body", line))
	numErrors, numConflicts := reconcileBulkResponse(line, logger)

	if persisted := numRecords - numErrors; persisted > 0 {
		l.metrics.docsProcessed.Add(context.Background(), int64(persisted), attrs,
			metric.WithAttributes(attribute.String("status", "Success")))
	}
	if numConflicts > 0 {
		l.metrics.docsProcessed.Add(context.Background(), int64(numConflicts), attrs,
			metric.WithAttributes(attribute.String("status", "Conflict")))
	}
	if failed := numErrors - numConflicts; failed > 0 {
		l.metrics.docsProcessed.Add(context.Background(), int64(failed), attrs,
			metric.WithAttributes(attribute.String("status", "Failed")))
	}
	return numErrors, nil
}

// lineSource reads lines with a single line of lookahead, so the loader can
// detect stream exhaustion at a batch boundary without losing the first
// action line of the next batch.
type lineSource struct {
	scanner *bufio.Scanner
	peeked  *string
}

func newLineSource(r io.Reader) *lineSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &lineSource{scanner: sc}
}

// next consumes the lookahead line if one is buffered, or reads the next
// line from the stream. ok is false when the stream is exhausted.
func (s *lineSource) next() (line string, ok bool, err error) {
	if s.peeked != nil {
		line = *s.peeked
		s.peeked = nil
		return line, true, nil
	}
	if !s.scanner.Scan() {
		return "", false, s.scanner.Err()
	}
	return s.scanner.Text(), true, nil
}

// peek reads one line ahead without consuming it.
func (s *lineSource) peek() (line string, ok bool, err error) {
	if s.peeked == nil {
		if !s.scanner.Scan() {
			return "", false, s.scanner.Err()
		}
		text := s.scanner.Text()
		s.peeked = &text
	}
	return *s.peeked, true, nil
}
