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

package client

import (
	"context"
	"fmt"

	influx "github.com/influxdata/influxdb1-client/v2"
)

// Influx queries an InfluxDB 1.x server over http with InfluxQL.
type Influx struct {
	params Params
	client influx.Client
}

// NewInflux creates an Influx querier. The connection is established on the first query.
func NewInflux(params Params) *Influx {
	return &Influx{params: params}
}

// Query runs q against the configured database and returns the values of the
// first series of the first result.
func (i *Influx) Query(ctx context.Context, q string) ([]Row, error) {
	if err := i.connect(); err != nil {
		return nil, err
	}

	resp, err := i.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	if err = resp.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}

	if len(resp.Results) == 0 || len(resp.Results[0].Series) == 0 {
		return nil, nil
	}

	return resp.Results[0].Series[0].Values, nil
}

type queryResult struct {
	resp *influx.Response
	err  error
}

// query runs q in its own goroutine so a done ctx ends the wait.
// The request itself is bounded by Params.Timeout.
func (i *Influx) query(ctx context.Context, q string) (*influx.Response, error) {
	done := make(chan queryResult, 1)

	c := i.client

	go func() {
		resp, err := c.Query(influx.NewQuery(q, i.params.Database, ""))
		done <- queryResult{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.resp, res.err
	}
}

// Close releases the http client.
func (i *Influx) Close() error {
	if i.client == nil {
		return nil
	}

	err := i.client.Close()
	i.client = nil

	return err
}

func (i *Influx) connect() error {
	if i.client != nil {
		return nil
	}

	c, err := influx.NewHTTPClient(influx.HTTPConfig{
		Addr:     i.params.URL,
		Username: i.params.User,
		Password: i.params.Password,
		Timeout:  i.params.Timeout,
	})
	if err != nil {
		return fmt.Errorf("%w: create http client: %w", ErrConnection, err)
	}

	i.client = c

	return nil
}
