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

package emitter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/multierr"

	"github.com/conduitio-labs/conduit-connector-influxdb/source/converter"
)

const (
	// HeaderTimestamp holds the epoch millis at which a record was emitted.
	HeaderTimestamp = "timestamp"
	// HeaderIndex holds the incremental key of a record.
	HeaderIndex = "index"
)

// Event is a single delivered record.
type Event struct {
	Body    []byte
	Headers map[string]string
}

// Emitter accumulates records into batches of a fixed size and hands full
// batches to a Channel. It is not safe for concurrent use.
type Emitter struct {
	channel   Channel
	batchSize int
	buffer    []Event
	now       func() time.Time
}

// New creates an Emitter.
func New(channel Channel, batchSize int) *Emitter {
	return &Emitter{
		channel:   channel,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Accept buffers a record and delivers the buffer once it holds batchSize events.
func (e *Emitter) Accept(ctx context.Context, record converter.Record) error {
	e.buffer = append(e.buffer, Event{
		Body: record.Body,
		Headers: map[string]string{
			HeaderTimestamp: strconv.FormatInt(e.now().UnixMilli(), 10),
			HeaderIndex:     record.Index(),
		},
	})

	if len(e.buffer) < e.batchSize {
		return nil
	}

	return e.Flush(ctx)
}

// Flush delivers buffered events, if any. The buffer is kept when delivery fails.
func (e *Emitter) Flush(ctx context.Context) error {
	if len(e.buffer) == 0 {
		return nil
	}

	if err := e.channel.AcceptBatch(ctx, e.buffer); err != nil {
		return fmt.Errorf("%w: %d events: %w", ErrDelivery, len(e.buffer), err)
	}

	e.buffer = nil

	return nil
}

// Discard drops buffered events.
func (e *Emitter) Discard() {
	e.buffer = nil
}

// Pending returns the number of buffered events.
func (e *Emitter) Pending() int {
	return len(e.buffer)
}

// Close flushes buffered events and closes the channel when it supports closing.
func (e *Emitter) Close(ctx context.Context) error {
	err := e.Flush(ctx)

	if closer, ok := e.channel.(interface{ Close(context.Context) error }); ok {
		err = multierr.Append(err, closer.Close(ctx))
	}

	return err
}
