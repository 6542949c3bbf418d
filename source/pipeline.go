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

	sdk "github.com/conduitio/conduit-connector-sdk"

	"github.com/conduitio-labs/conduit-connector-influxdb/source/checkpoint"
	"github.com/conduitio-labs/conduit-connector-influxdb/source/emitter"
	"github.com/conduitio-labs/conduit-connector-influxdb/source/poller"
	"github.com/conduitio-labs/conduit-connector-influxdb/source/query"
)

// NewPoller wires a poller for cfg that reads through q and delivers to ch.
// The status file is opened, or created from cfg.StartFrom, before it returns.
// With deferAdvance the checkpoint only moves through poller.Advance.
func NewPoller(
	ctx context.Context, cfg Config, q poller.Querier, ch emitter.Channel, deferAdvance bool,
) (*poller.Poller, error) {
	conv, err := cfg.Converter()
	if err != nil {
		return nil, fmt.Errorf("create converter: %w", err)
	}

	store, err := checkpoint.Open(ctx, checkpoint.Params{
		Dir:       cfg.StatusFilePath,
		Name:      cfg.StatusFileName,
		StartFrom: cfg.StartFrom,
		Expected:  cfg.Checkpoint(),
	})
	if err != nil {
		return nil, fmt.Errorf("open status file: %w", err)
	}

	sdk.Logger(ctx).Info().
		Str("source", cfg.SourceName).
		Str("database", cfg.Database).
		Str("statusFile", store.Path()).
		Str("lastTime", store.Index(cfg.StartFrom)).
		Bool("readOnly", cfg.ReadOnly).
		Msg("poller configured")

	return poller.New(poller.Params{
		Querier:   q,
		Store:     store,
		Builder:   query.New(cfg.Columns, cfg.Table, cfg.CustomQuery),
		Converter: conv,
		Emitter:   emitter.New(ch, cfg.BatchSize),
		MaxRows:   cfg.MaxRows,
		Delay:     cfg.QueryDelay,
		Timeout:   cfg.QueryTimeout,

		DeferAdvance: deferAdvance,
	}), nil
}
