// Copyright © 2022 Meroxa, Inc & Yalantis.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/conduitio-labs/conduit-connector-influxdb/source/emitter"
)

// line is a single event written by Writer.
type line struct {
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

// Writer writes events as JSON lines.
type Writer struct {
	w      *bufio.Writer
	closed bool
}

// NewWriter creates a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// AcceptBatch writes one line per event and flushes the batch.
func (w *Writer) AcceptBatch(_ context.Context, events []emitter.Event) error {
	if w.closed {
		return ErrClosed
	}

	enc := json.NewEncoder(w.w)

	for i := range events {
		if err := enc.Encode(line{Headers: events[i].Headers, Body: string(events[i].Body)}); err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
	}

	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("flush writer: %w", err)
	}

	return nil
}

// Close flushes buffered output. Later batches are rejected.
func (w *Writer) Close(context.Context) error {
	if w.closed {
		return nil
	}

	w.closed = true

	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("flush writer: %w", err)
	}

	return nil
}
