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
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/matryer/is"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/conduitio-labs/conduit-connector-influxdb/source/emitter"
)

func testEvents() []emitter.Event {
	return []emitter.Event{
		{
			Body:    []byte(`"2020-01-01T00:00:01Z","1.5"`),
			Headers: map[string]string{emitter.HeaderIndex: "2020-01-01T00:00:01Z", emitter.HeaderTimestamp: "1664625600000"},
		},
		{
			Body:    []byte(`"2020-01-01T00:00:02Z","2.5"`),
			Headers: map[string]string{emitter.HeaderIndex: "2020-01-01T00:00:02Z", emitter.HeaderTimestamp: "1664625600001"},
		},
	}
}

func TestWriter_AcceptBatch(t *testing.T) {
	t.Parallel()

	is := is.New(t)

	ctx := context.Background()

	var buf bytes.Buffer

	w := NewWriter(&buf)

	is.NoErr(w.AcceptBatch(ctx, testEvents()))
	is.Equal(buf.String(),
		`{"headers":{"index":"2020-01-01T00:00:01Z","timestamp":"1664625600000"},"body":"\"2020-01-01T00:00:01Z\",\"1.5\""}`+"\n"+
			`{"headers":{"index":"2020-01-01T00:00:02Z","timestamp":"1664625600001"},"body":"\"2020-01-01T00:00:02Z\",\"2.5\""}`+"\n")

	is.NoErr(w.Close(ctx))
	is.NoErr(w.Close(ctx))
	is.True(errors.Is(w.AcceptBatch(ctx, testEvents()), ErrClosed))
}

type fakeProducer struct {
	produced []*kgo.Record
	err      error
	closed   bool
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))

	for _, r := range rs {
		if p.err == nil {
			p.produced = append(p.produced, r)
		}

		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}

	return results
}

func (p *fakeProducer) Close() {
	p.closed = true
}

func TestKafka_AcceptBatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{name: "produced"},
		{name: "broker error", err: errors.New("not leader for partition"), wantErr: true},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			is := is.New(t)

			ctx := context.Background()

			p := &fakeProducer{err: tt.err}
			k := &Kafka{topic: "influxdb", client: p}

			err := k.AcceptBatch(ctx, testEvents())
			if tt.wantErr {
				is.True(errors.Is(err, tt.err))
				is.Equal(len(p.produced), 0)

				return
			}

			is.NoErr(err)
			is.Equal(len(p.produced), 2)

			is.NoErr(k.Close(ctx))
			is.True(p.closed)
			is.True(errors.Is(k.AcceptBatch(ctx, testEvents()), ErrClosed))
		})
	}
}

func TestRecords(t *testing.T) {
	t.Parallel()

	is := is.New(t)

	records := Records("influxdb", testEvents())
	is.Equal(len(records), 2)

	is.Equal(records[0].Topic, "influxdb")
	is.Equal(records[0].Key, []byte("2020-01-01T00:00:01Z"))
	is.Equal(records[0].Value, []byte(`"2020-01-01T00:00:01Z","1.5"`))
	is.Equal(records[0].Headers, []kgo.RecordHeader{
		{Key: emitter.HeaderIndex, Value: []byte("2020-01-01T00:00:01Z")},
		{Key: emitter.HeaderTimestamp, Value: []byte("1664625600000")},
	})
	is.Equal(records[1].Key, []byte("2020-01-01T00:00:02Z"))
}
