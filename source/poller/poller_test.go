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
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/matryer/is"

	"github.com/conduitio-labs/conduit-connector-influxdb/source/checkpoint"
	"github.com/conduitio-labs/conduit-connector-influxdb/source/converter"
	"github.com/conduitio-labs/conduit-connector-influxdb/source/emitter"
	"github.com/conduitio-labs/conduit-connector-influxdb/source/mock"
	"github.com/conduitio-labs/conduit-connector-influxdb/source/query"
)

const (
	startFrom = "2020-01-01T00:00:00.000Z"
	delay     = 10 * time.Second

	ts1 = "2020-01-01T00:00:01Z"
	ts2 = "2020-01-01T00:00:02Z"
	ts3 = "2020-01-01T00:00:03Z"
)

type testSetup struct {
	dir       string
	batchSize int
	maxRows   int
	template  string
	charset   string
	deferred  bool
}

func (ts testSetup) expected() checkpoint.Record {
	if ts.template != "" {
		return checkpoint.Record{
			SourceName: "influxdb-source",
			URL:        "http://localhost:8086",
			Mode:       checkpoint.ModeCustomQuery,
			Query:      ts.template,
		}
	}

	return checkpoint.Record{
		SourceName: "influxdb-source",
		URL:        "http://localhost:8086",
		Mode:       checkpoint.ModeTable,
		Columns:    "*",
		Table:      "t",
	}
}

func newPoller(t *testing.T, ts testSetup, q Querier, ch emitter.Channel) (*Poller, *checkpoint.Store) {
	t.Helper()

	ctx := context.Background()

	if ts.charset == "" {
		ts.charset = "UTF-8"
	}

	store, err := checkpoint.Open(ctx, checkpoint.Params{
		Dir:       ts.dir,
		Name:      "status.json",
		StartFrom: startFrom,
		Expected:  ts.expected(),
	})
	if err != nil {
		t.Fatal(err)
	}

	conv, err := converter.New(",", true, ts.charset)
	if err != nil {
		t.Fatal(err)
	}

	return New(Params{
		Querier:      q,
		Store:        store,
		Builder:      query.New("*", "t", ts.template),
		Converter:    conv,
		Emitter:      emitter.New(ch, ts.batchSize),
		MaxRows:      ts.maxRows,
		Delay:        delay,
		DeferAdvance: ts.deferred,
	}), store
}

func bodies(events []emitter.Event) []string {
	out := make([]string, len(events))
	for i := range events {
		out[i] = string(events[i].Body)
	}

	return out
}

func TestPoller_Cycle_DeliversBatchesAndAdvances(t *testing.T) {
	t.Parallel()

	is := is.New(t)

	ctrl := gomock.NewController(t)
	ctx := context.Background()

	q := mock.NewMockQuerier(ctrl)
	ch := mock.NewMockChannel(ctrl)

	p, store := newPoller(t, testSetup{dir: t.TempDir(), batchSize: 2, maxRows: 100}, q, ch)

	q.EXPECT().Query(gomock.Any(), "SELECT * FROM t").
		Return([][]any{{ts1, int64(1)}, {ts2, int64(2)}, {ts3, int64(3)}}, nil)

	var delivered [][]string

	gomock.InOrder(
		ch.EXPECT().AcceptBatch(gomock.Any(), gomock.Len(2)).
			DoAndReturn(func(_ context.Context, events []emitter.Event) error {
				delivered = append(delivered, bodies(events))

				return nil
			}),
		ch.EXPECT().AcceptBatch(gomock.Any(), gomock.Len(1)).
			DoAndReturn(func(_ context.Context, events []emitter.Event) error {
				delivered = append(delivered, bodies(events))

				return nil
			}),
	)

	result, err := p.Cycle(ctx)
	is.NoErr(err)
	is.Equal(result, Result{Status: StatusReady, Rows: 3, Wait: delay, Index: ts3, Records: 3})

	is.Equal(delivered, [][]string{
		{`"` + ts1 + `","1"`, `"` + ts2 + `","2"`},
		{`"` + ts3 + `","3"`},
	})
	is.Equal(store.Index(checkpoint.DefaultStartFrom), ts3)

	data, err := os.ReadFile(store.Path())
	is.NoErr(err)

	persisted, err := checkpoint.Decode(data)
	is.NoErr(err)
	is.Equal(persisted.LastTime, ts3)
}

func TestPoller_Cycle_SubstitutesCheckpointAndResumes(t *testing.T) {
	t.Parallel()

	is := is.New(t)

	ctrl := gomock.NewController(t)
	ctx := context.Background()

	setup := testSetup{
		dir:       t.TempDir(),
		batchSize: 2,
		maxRows:   100,
		template:  "SELECT * FROM t WHERE time > $@$",
	}

	q := mock.NewMockQuerier(ctrl)
	ch := mock.NewMockChannel(ctrl)

	p, _ := newPoller(t, setup, q, ch)

	gomock.InOrder(
		q.EXPECT().Query(gomock.Any(), "SELECT * FROM t WHERE time > '"+startFrom+"'").
			Return([][]any{{ts1, int64(1)}, {ts2, int64(2)}, {ts3, int64(3)}}, nil),
		q.EXPECT().Query(gomock.Any(), "SELECT * FROM t WHERE time > '"+ts3+"'").
			Return(nil, nil),
	)
	ch.EXPECT().AcceptBatch(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	_, err := p.Cycle(ctx)
	is.NoErr(err)

	result, err := p.Cycle(ctx)
	is.NoErr(err)
	is.Equal(result, Result{Status: StatusReady, Rows: 0, Wait: delay})

	// a restarted poller picks up the persisted index.
	restartedQuerier := mock.NewMockQuerier(ctrl)
	restarted, store := newPoller(t, setup, restartedQuerier, mock.NewMockChannel(ctrl))
	is.Equal(store.Index(checkpoint.DefaultStartFrom), ts3)

	restartedQuerier.EXPECT().Query(gomock.Any(), "SELECT * FROM t WHERE time > '"+ts3+"'").Return(nil, nil)

	_, err = restarted.Cycle(ctx)
	is.NoErr(err)
}

func TestPoller_Cycle_DeferredAdvance(t *testing.T) {
	t.Parallel()

	is := is.New(t)

	ctrl := gomock.NewController(t)
	ctx := context.Background()

	q := mock.NewMockQuerier(ctrl)
	ch := mock.NewMockChannel(ctrl)

	p, store := newPoller(t, testSetup{dir: t.TempDir(), batchSize: 2, maxRows: 100, deferred: true}, q, ch)

	q.EXPECT().Query(gomock.Any(), gomock.Any()).
		Return([][]any{{ts1, 1}, {ts2, 2}, {ts3, 3}}, nil)
	ch.EXPECT().AcceptBatch(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	result, err := p.Cycle(ctx)
	is.NoErr(err)
	is.Equal(result.Index, ts3)
	is.Equal(result.Records, 3)

	// delivered but not acknowledged.
	is.Equal(store.Index(checkpoint.DefaultStartFrom), startFrom)

	data, err := os.ReadFile(store.Path())
	is.NoErr(err)

	persisted, err := checkpoint.Decode(data)
	is.NoErr(err)
	is.Equal(persisted.LastTime, startFrom)

	p.Advance(ctx, result.Index)

	is.Equal(store.Index(checkpoint.DefaultStartFrom), ts3)

	data, err = os.ReadFile(store.Path())
	is.NoErr(err)

	persisted, err = checkpoint.Decode(data)
	is.NoErr(err)
	is.Equal(persisted.LastTime, ts3)
}

func TestPoller_Cycle_FlowControl(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		rows     [][]any
		wantWait time.Duration
	}{
		{
			name:     "backlogged at max rows",
			rows:     [][]any{{ts1, 1}, {ts2, 2}},
			wantWait: 0,
		},
		{
			name:     "caught up below max rows",
			rows:     [][]any{{ts1, 1}},
			wantWait: delay,
		},
		{
			name:     "no rows",
			rows:     nil,
			wantWait: delay,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			is := is.New(t)

			ctrl := gomock.NewController(t)
			ctx := context.Background()

			q := mock.NewMockQuerier(ctrl)
			ch := mock.NewMockChannel(ctrl)

			p, _ := newPoller(t, testSetup{dir: t.TempDir(), batchSize: 10, maxRows: 2}, q, ch)

			q.EXPECT().Query(gomock.Any(), gomock.Any()).Return(tt.rows, nil)
			ch.EXPECT().AcceptBatch(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

			result, err := p.Cycle(ctx)
			is.NoErr(err)
			is.Equal(result.Status, StatusReady)
			is.Equal(result.Rows, len(tt.rows))
			is.Equal(result.Wait, tt.wantWait)
		})
	}
}

func TestPoller_Cycle_QueryFailure(t *testing.T) {
	t.Parallel()

	is := is.New(t)

	ctrl := gomock.NewController(t)
	ctx := context.Background()

	q := mock.NewMockQuerier(ctrl)
	ch := mock.NewMockChannel(ctrl)

	p, store := newPoller(t, testSetup{dir: t.TempDir(), batchSize: 2, maxRows: 100}, q, ch)

	errConn := errors.New("connection refused")
	q.EXPECT().Query(gomock.Any(), "SELECT * FROM t").Return(nil, errConn)

	result, err := p.Cycle(ctx)
	is.True(errors.Is(err, errConn))
	is.Equal(result.Status, StatusBackoff)
	is.Equal(store.Index(checkpoint.DefaultStartFrom), startFrom)
}

func TestPoller_Cycle_DeliveryFailureKeepsCheckpoint(t *testing.T) {
	t.Parallel()

	is := is.New(t)

	ctrl := gomock.NewController(t)
	ctx := context.Background()

	q := mock.NewMockQuerier(ctrl)
	ch := mock.NewMockChannel(ctrl)

	p, store := newPoller(t, testSetup{dir: t.TempDir(), batchSize: 2, maxRows: 100}, q, ch)

	before, err := os.ReadFile(store.Path())
	is.NoErr(err)

	q.EXPECT().Query(gomock.Any(), gomock.Any()).
		Return([][]any{{ts1, 1}, {ts2, 2}, {ts3, 3}}, nil)
	gomock.InOrder(
		ch.EXPECT().AcceptBatch(gomock.Any(), gomock.Len(2)).Return(nil),
		ch.EXPECT().AcceptBatch(gomock.Any(), gomock.Len(1)).Return(errors.New("channel full")),
	)

	result, err := p.Cycle(ctx)
	is.True(errors.Is(err, emitter.ErrDelivery))
	is.Equal(result.Status, StatusBackoff)
	is.Equal(store.Index(checkpoint.DefaultStartFrom), startFrom)
	is.Equal(p.emitter.Pending(), 0)

	after, err := os.ReadFile(store.Path())
	is.NoErr(err)
	is.Equal(after, before)
}

func TestPoller_Cycle_ConversionFailure(t *testing.T) {
	t.Parallel()

	is := is.New(t)

	ctrl := gomock.NewController(t)
	ctx := context.Background()

	q := mock.NewMockQuerier(ctrl)
	ch := mock.NewMockChannel(ctrl)

	p, store := newPoller(t, testSetup{dir: t.TempDir(), batchSize: 2, maxRows: 100, charset: "ISO-8859-2"}, q, ch)

	q.EXPECT().Query(gomock.Any(), gomock.Any()).Return([][]any{{ts1, "温度"}}, nil)

	result, err := p.Cycle(ctx)
	is.True(errors.Is(err, converter.ErrEncode))
	is.Equal(result.Status, StatusBackoff)
	is.Equal(store.Index(checkpoint.DefaultStartFrom), startFrom)
}

func TestPoller_Cycle_PersistFailureStaysReady(t *testing.T) {
	t.Parallel()

	is := is.New(t)

	ctrl := gomock.NewController(t)
	ctx := context.Background()

	dir := filepath.Join(t.TempDir(), "status")

	q := mock.NewMockQuerier(ctrl)
	ch := mock.NewMockChannel(ctrl)

	p, store := newPoller(t, testSetup{dir: dir, batchSize: 2, maxRows: 100}, q, ch)

	// replace the status directory with a regular file so writes fail.
	is.NoErr(os.RemoveAll(dir))
	is.NoErr(os.WriteFile(dir, nil, 0o600))

	q.EXPECT().Query(gomock.Any(), gomock.Any()).Return([][]any{{ts1, 1}}, nil)
	ch.EXPECT().AcceptBatch(gomock.Any(), gomock.Len(1)).Return(nil)

	result, err := p.Cycle(ctx)
	is.NoErr(err)
	is.Equal(result.Status, StatusReady)
	is.Equal(store.Index(checkpoint.DefaultStartFrom), ts1)
}

func TestPoller_Cycle_Timeout(t *testing.T) {
	t.Parallel()

	is := is.New(t)

	ctrl := gomock.NewController(t)
	ctx := context.Background()

	q := mock.NewMockQuerier(ctrl)
	ch := mock.NewMockChannel(ctrl)

	p, _ := newPoller(t, testSetup{dir: t.TempDir(), batchSize: 2, maxRows: 100}, q, ch)
	p.timeout = time.Millisecond

	q.EXPECT().Query(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string) ([][]any, error) {
			<-ctx.Done()

			return nil, ctx.Err()
		})

	result, err := p.Cycle(ctx)
	is.True(errors.Is(err, context.DeadlineExceeded))
	is.Equal(result.Status, StatusBackoff)
}

func TestPoller_Run(t *testing.T) {
	t.Parallel()

	is := is.New(t)

	ctrl := gomock.NewController(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := mock.NewMockQuerier(ctrl)
	ch := mock.NewMockChannel(ctrl)

	p, _ := newPoller(t, testSetup{dir: t.TempDir(), batchSize: 10, maxRows: 2}, q, ch)

	var waits []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)

		return ctx.Err()
	}

	gomock.InOrder(
		q.EXPECT().Query(gomock.Any(), gomock.Any()).Return([][]any{{ts1, 1}, {ts2, 2}}, nil),
		q.EXPECT().Query(gomock.Any(), gomock.Any()).Return([][]any{{ts3, 3}}, nil),
		q.EXPECT().Query(gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout")),
		q.EXPECT().Query(gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, string) ([][]any, error) {
				cancel()

				return nil, nil
			}),
	)
	ch.EXPECT().AcceptBatch(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	is.NoErr(p.Run(ctx))

	is.Equal(len(waits), 4)
	is.Equal(waits[0], time.Duration(0))
	is.Equal(waits[1], delay)
	is.True(waits[2] >= minBackoff)
	is.Equal(waits[3], delay)
}

func TestPoller_Close(t *testing.T) {
	t.Parallel()

	is := is.New(t)

	ctrl := gomock.NewController(t)
	ctx := context.Background()

	q := mock.NewMockQuerier(ctrl)
	ch := mock.NewMockChannel(ctrl)

	p, _ := newPoller(t, testSetup{dir: t.TempDir(), batchSize: 10, maxRows: 2}, q, ch)

	q.EXPECT().Close().Return(nil)

	is.NoErr(p.Close(ctx))
}

func TestSleep(t *testing.T) {
	t.Parallel()

	is := is.New(t)

	is.NoErr(Sleep(context.Background(), time.Millisecond))
	is.NoErr(Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	is.True(errors.Is(Sleep(ctx, time.Hour), context.Canceled))
}
