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
	"time"

	sdk "github.com/conduitio/conduit-connector-sdk"

	"github.com/conduitio-labs/conduit-connector-influxdb/source/emitter"
	"github.com/conduitio-labs/conduit-connector-influxdb/source/position"
)

const (
	// metadataDatabase is a metadata key for the database a record was read from.
	metadataDatabase = "influxdb.database"
	// metadataTimestamp is a metadata key for the epoch millis a record was emitted at.
	metadataTimestamp = "influxdb.timestamp"
)

// queue holds delivered events as records until Read hands them to Conduit.
type queue struct {
	database string
	records  []sdk.Record
}

func newQueue(database string) *queue {
	return &queue{database: database}
}

// AcceptBatch converts events into records. Nothing is queued when any event fails.
func (q *queue) AcceptBatch(_ context.Context, events []emitter.Event) error {
	records := make([]sdk.Record, 0, len(events))

	for i := range events {
		record, err := q.record(events[i])
		if err != nil {
			return err
		}

		records = append(records, record)
	}

	q.records = append(q.records, records...)

	return nil
}

func (q *queue) pop() (sdk.Record, bool) {
	if len(q.records) == 0 {
		return sdk.Record{}, false
	}

	record := q.records[0]
	q.records = q.records[1:]

	return record, true
}

func (q *queue) reset() {
	q.records = nil
}

func (q *queue) len() int {
	return len(q.records)
}

func (q *queue) record(event emitter.Event) (sdk.Record, error) {
	index := event.Headers[emitter.HeaderIndex]

	pos, err := position.Position{LastTime: index}.ConvertToSDKPosition()
	if err != nil {
		return sdk.Record{}, fmt.Errorf("convert position: %w", err)
	}

	metadata := sdk.Metadata{
		metadataDatabase:  q.database,
		metadataTimestamp: event.Headers[emitter.HeaderTimestamp],
	}

	if millis, er := strconv.ParseInt(event.Headers[emitter.HeaderTimestamp], 10, 64); er == nil {
		metadata.SetCreatedAt(time.UnixMilli(millis))
	}

	return sdk.Util.Source.NewRecordCreate(pos, metadata, sdk.RawData(index), sdk.RawData(event.Body)), nil
}
