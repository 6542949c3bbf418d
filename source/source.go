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

package source

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	sdk "github.com/conduitio/conduit-connector-sdk"
	"github.com/jpillora/backoff"
	"go.uber.org/multierr"

	"github.com/conduitio-labs/conduit-connector-influxdb/client"
	"github.com/conduitio-labs/conduit-connector-influxdb/config"
	"github.com/conduitio-labs/conduit-connector-influxdb/source/checkpoint"
	"github.com/conduitio-labs/conduit-connector-influxdb/source/poller"
	"github.com/conduitio-labs/conduit-connector-influxdb/source/position"
)

// Source connector.
type Source struct {
	sdk.UnimplementedSource

	config   Config
	poller   *poller.Poller
	queue    *queue
	backoff  *backoff.Backoff
	nextPoll time.Time
	now      func() time.Time

	// mu guards the cycle state below, Ack runs concurrently with Read.
	mu sync.Mutex
	// unacked counts records of the last cycle that Conduit has not acknowledged yet.
	unacked int
	// cycleIndex is the checkpoint the status file moves to once unacked drops to zero.
	cycleIndex string

	newQuerier func(client.Params) (poller.Querier, error)
}

// New initialises a new source.
func New() sdk.Source {
	return &Source{
		now:        time.Now,
		newQuerier: client.New,
	}
}

// Parameters returns a map of named sdk.Parameters that describe how to configure the Source.
func (s *Source) Parameters() map[string]sdk.Parameter {
	return map[string]sdk.Parameter{
		config.KeyConnectionURL: {
			Description: "InfluxDB http endpoint, or a sqlserver:// url to poll SQL Server instead. " +
				"http:// is assumed when the url has no scheme.",
			Required: true,
			Default:  "",
		},
		config.KeyConnectionUser: {
			Description: "A name of the user to authenticate as.",
			Required:    true,
			Default:     "",
		},
		config.KeyConnectionPassword: {
			Description: "A password of the user.",
			Required:    true,
			Default:     "",
		},
		config.KeyDatabase: {
			Description: "A name of the database to query.",
			Required:    true,
			Default:     "",
		},
		config.KeyReadOnly: {
			Description: "Marks the session as read-only. It is only reported on startup.",
			Required:    false,
			Default:     "false",
		},
		KeySourceName: {
			Description: "An identity of the source, recorded in the status file.",
			Required:    false,
			Default:     defaultSourceName,
		},
		KeyTable: {
			Description: "A table or measurement the default query reads from. Required without a custom query.",
			Required:    false,
			Default:     "",
		},
		KeyColumns: {
			Description: "Columns the default query selects. The first column must be the " +
				"monotonically increasing incremental key, usually time.",
			Required: false,
			Default:  defaultColumns,
		},
		KeyCustomQuery: {
			Description: "A query run instead of the default one. $@$ is replaced with the last " +
				"incremental key in single quotes. The first selected column must be the incremental key.",
			Required: false,
			Default:  "",
		},
		KeyQueryDelay: {
			Description: "A pause in milliseconds after a query returned fewer than max.rows rows.",
			Required:    false,
			Default:     strconv.FormatInt(defaultQueryDelay.Milliseconds(), 10),
		},
		KeyQueryTimeout: {
			Description: "A timeout of a single query in milliseconds. 0 disables it.",
			Required:    false,
			Default:     "0",
		},
		KeyBatchSize: {
			Description: "A count of records delivered at once.",
			Required:    false,
			Default:     strconv.Itoa(defaultBatchSize),
		},
		KeyMaxRows: {
			Description: "A row count at which the source is considered backlogged and queried again " +
				"without a pause. The query is expected to limit its rows to it.",
			Required: false,
			Default:  strconv.Itoa(defaultMaxRows),
		},
		KeyStatusFilePath: {
			Description: "A directory of the status file.",
			Required:    false,
			Default:     checkpoint.DefaultDirectory,
		},
		KeyStatusFileName: {
			Description: "A file name of the status file that keeps the last incremental key.",
			Required:    true,
			Default:     "",
		},
		KeyStartFrom: {
			Description: "An incremental key to start from when the status file does not exist.",
			Required:    false,
			Default:     checkpoint.DefaultStartFrom,
		},
		KeyDelimiter: {
			Description: "A single character that separates fields of a record.",
			Required:    false,
			Default:     defaultDelimiter,
		},
		KeyEncloseByQuotes: {
			Description: "Wraps every field of a record in double quotes.",
			Required:    false,
			Default:     strconv.FormatBool(defaultEncloseByQuotes),
		},
		KeyCharset: {
			Description: "A charset records are encoded with.",
			Required:    false,
			Default:     defaultCharset,
		},
	}
}

// Configure parses and stores configurations, returns an error in case of invalid configuration.
func (s *Source) Configure(ctx context.Context, cfgRaw map[string]string) error {
	cfg, err := Parse(cfgRaw)
	if err != nil {
		return err
	}

	s.config = cfg

	return nil
}

// Open prepare the plugin to start sending records from the given position.
// The status file is the checkpoint; the position only seeds it when the file does not exist yet.
func (s *Source) Open(ctx context.Context, rp sdk.Position) error {
	pos, err := position.ParseSDKPosition(rp)
	if err != nil {
		return fmt.Errorf("parse position: %w", err)
	}

	cfg := s.config
	if pos != nil {
		cfg.StartFrom = pos.LastTime
	}

	q, err := s.newQuerier(client.Params{
		URL:      cfg.URL,
		User:     cfg.User,
		Password: cfg.Password,
		Database: cfg.Database,
		Timeout:  cfg.QueryTimeout,
	})
	if err != nil {
		return fmt.Errorf("create querier: %w", err)
	}

	s.queue = newQueue(cfg.Database)

	s.poller, err = NewPoller(ctx, cfg, q, s.queue, true)
	if err != nil {
		return multierr.Append(fmt.Errorf("create poller: %w", err), q.Close())
	}

	s.backoff = &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    cfg.QueryDelay,
		Factor: 2,
		Jitter: true,
	}

	if s.backoff.Max < s.backoff.Min {
		s.backoff.Max = s.backoff.Min
	}

	return nil
}

// Read returns the next record, running a poll cycle when none is queued, every record
// of the previous cycle is acknowledged and the poll delay has passed.
func (s *Source) Read(ctx context.Context) (sdk.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.queue.pop(); ok {
		return record, nil
	}

	if s.unacked > 0 || s.now().Before(s.nextPoll) {
		return sdk.Record{}, sdk.ErrBackoffRetry
	}

	result, err := s.poller.Cycle(ctx)
	if err != nil {
		// records of earlier batches of a failed cycle are polled again.
		s.queue.reset()

		wait := s.backoff.Duration()
		s.nextPoll = s.now().Add(wait)

		sdk.Logger(ctx).Error().Err(err).Dur("backoff", wait).Msg("poll cycle failed")

		return sdk.Record{}, sdk.ErrBackoffRetry
	}

	s.backoff.Reset()
	s.nextPoll = s.now().Add(result.Wait)
	s.unacked = result.Records
	s.cycleIndex = result.Index

	sdk.Logger(ctx).Trace().Int("rows", result.Rows).Int("queued", s.queue.len()).
		Dur("wait", result.Wait).Msg("poll cycle finished")

	if record, ok := s.queue.pop(); ok {
		return record, nil
	}

	return sdk.Record{}, sdk.ErrBackoffRetry
}

// Teardown gracefully shutdown connector.
func (s *Source) Teardown(ctx context.Context) error {
	if s.poller != nil {
		if err := s.poller.Close(ctx); err != nil {
			return fmt.Errorf("close poller: %w", err)
		}
	}

	return nil
}

// Ack counts acknowledged records and advances the status file to the last
// index of a cycle once every record of that cycle is acknowledged.
func (s *Source) Ack(ctx context.Context, p sdk.Position) error {
	sdk.Logger(ctx).Debug().Str("position", string(p)).Msg("got ack")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unacked == 0 {
		return nil
	}

	s.unacked--
	if s.unacked > 0 {
		return nil
	}

	s.poller.Advance(ctx, s.cycleIndex)
	s.cycleIndex = ""

	return nil
}
