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

package poller

import (
	"context"
	"fmt"
	"time"

	sdk "github.com/conduitio/conduit-connector-sdk"
	"github.com/jpillora/backoff"
	"go.uber.org/multierr"

	"github.com/conduitio-labs/conduit-connector-influxdb/source/checkpoint"
	"github.com/conduitio-labs/conduit-connector-influxdb/source/converter"
	"github.com/conduitio-labs/conduit-connector-influxdb/source/emitter"
	"github.com/conduitio-labs/conduit-connector-influxdb/source/query"
)

// minBackoff is the first wait after a failed cycle in Run.
const minBackoff = 100 * time.Millisecond

// Status is the outcome of a cycle.
type Status int

const (
	// StatusReady means the cycle succeeded and polling continues.
	StatusReady Status = iota
	// StatusBackoff means the cycle failed and the caller should wait longer before the next one.
	StatusBackoff
)

func (s Status) String() string {
	if s == StatusBackoff {
		return "BACKOFF"
	}

	return "READY"
}

// Result describes a finished cycle.
type Result struct {
	Status Status
	// Rows is the number of rows the data source returned.
	Rows int
	// Wait is the pause before the next cycle.
	Wait time.Duration
	// Index is the incremental key of the last delivered record, empty when nothing was delivered.
	Index string
	// Records is the number of delivered records.
	Records int
}

// Params is an incoming params for the New function.
type Params struct {
	Querier   Querier
	Store     *checkpoint.Store
	Builder   query.Builder
	Converter *converter.Converter
	Emitter   *emitter.Emitter
	// MaxRows is the row count at which the source is considered backlogged.
	MaxRows int
	// Delay is the pause after a cycle that caught up with the source.
	Delay time.Duration
	// Timeout bounds a single query. Zero means no timeout.
	Timeout time.Duration
	// DeferAdvance leaves the checkpoint untouched after delivery. The caller
	// advances it with Advance once the downstream acknowledged Result.Index.
	DeferAdvance bool
}

// Poller runs poll cycles. It is owned by a single goroutine.
type Poller struct {
	querier   Querier
	store     *checkpoint.Store
	builder   query.Builder
	converter *converter.Converter
	emitter   *emitter.Emitter
	maxRows   int
	delay     time.Duration
	timeout   time.Duration
	deferred  bool

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Poller.
func New(params Params) *Poller {
	return &Poller{
		querier:   params.Querier,
		store:     params.Store,
		builder:   params.Builder,
		converter: params.Converter,
		emitter:   params.Emitter,
		maxRows:   params.MaxRows,
		delay:     params.Delay,
		timeout:   params.Timeout,
		deferred:  params.DeferAdvance,
		sleep:     Sleep,
	}
}

// Cycle queries rows newer than the checkpoint, delivers them and advances the checkpoint.
//
// The last record's first field becomes the new checkpoint, so the first selected
// column must be the monotonically increasing incremental key.
func (p *Poller) Cycle(ctx context.Context) (Result, error) {
	q := p.builder.Build(p.store.Index(checkpoint.DefaultStartFrom))

	rows, err := p.query(ctx, q)
	if err != nil {
		return Result{Status: StatusBackoff}, fmt.Errorf("execute query %q: %w", q, err)
	}

	result := Result{Status: StatusReady, Rows: len(rows)}

	if len(rows) > 0 {
		result.Index, result.Records, err = p.process(ctx, rows)
		if err != nil {
			return Result{Status: StatusBackoff, Rows: len(rows)}, fmt.Errorf("process rows of %q: %w", q, err)
		}
	}

	if len(rows) < p.maxRows {
		result.Wait = p.delay
	}

	return result, nil
}

// Run repeats cycles until ctx is done. It waits Result.Wait after a successful
// cycle and an exponentially growing pause after a failed one.
func (p *Poller) Run(ctx context.Context) error {
	b := &backoff.Backoff{
		Min:    minBackoff,
		Max:    p.delay,
		Factor: 2,
		Jitter: true,
	}

	if b.Max < minBackoff {
		b.Max = minBackoff
	}

	for ctx.Err() == nil {
		result, err := p.Cycle(ctx)

		wait := result.Wait
		if err != nil {
			wait = b.Duration()

			sdk.Logger(ctx).Error().Err(err).Dur("backoff", wait).Msg("poll cycle failed")
		} else {
			b.Reset()

			sdk.Logger(ctx).Trace().Int("rows", result.Rows).Dur("wait", wait).Msg("poll cycle finished")
		}

		if err = p.sleep(ctx, wait); err != nil {
			break
		}
	}

	return nil
}

// Close flushes pending events, closes the channel and releases the data source connection.
func (p *Poller) Close(ctx context.Context) error {
	var err error

	if er := p.emitter.Close(ctx); er != nil {
		err = multierr.Append(err, fmt.Errorf("close emitter: %w", er))
	}

	if er := p.querier.Close(); er != nil {
		err = multierr.Append(err, fmt.Errorf("close querier: %w", er))
	}

	return err
}

func (p *Poller) query(ctx context.Context, q string) ([][]any, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	return p.querier.Query(ctx, q)
}

// Advance moves the checkpoint to index. A persist failure is logged and
// the in-memory checkpoint still moves, so polling continues.
func (p *Poller) Advance(ctx context.Context, index string) {
	if err := p.store.Advance(ctx, index); err != nil {
		sdk.Logger(ctx).Error().Err(err).Str("lastTime", index).
			Msg("persist checkpoint, rows may be delivered again after a restart")
	}
}

// process converts and delivers rows, then advances the checkpoint unless
// advancing is deferred. It returns the last delivered index and the record count.
// Nothing is advanced when conversion or delivery fails.
func (p *Poller) process(ctx context.Context, rows [][]any) (string, int, error) {
	records, err := p.converter.Convert(rows)
	if err != nil {
		return "", 0, fmt.Errorf("convert rows: %w", err)
	}

	if len(records) == 0 {
		return "", 0, nil
	}

	for i := range records {
		if err = p.emitter.Accept(ctx, records[i]); err != nil {
			p.emitter.Discard()

			return "", 0, fmt.Errorf("accept record: %w", err)
		}
	}

	if err = p.emitter.Flush(ctx); err != nil {
		p.emitter.Discard()

		return "", 0, fmt.Errorf("flush records: %w", err)
	}

	index := records[len(records)-1].Index()

	if !p.deferred {
		p.Advance(ctx, index)
	}

	return index, len(records), nil
}

// Sleep pauses for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
