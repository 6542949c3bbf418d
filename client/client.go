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

// Package client implements queriers for the data sources the connector polls.
package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/conduitio-labs/conduit-connector-influxdb/source/poller"
)

// Row is a single result row, ordered as the query selects its columns.
type Row = []any

const (
	schemeSQLServer = "sqlserver"
	schemeMSSQL     = "mssql"
	schemeHTTP      = "http"
	schemeHTTPS     = "https"
)

// Params is an incoming params for the New function.
type Params struct {
	URL      string
	User     string
	Password string
	Database string
	// Timeout bounds a single request to the data source. Zero means no timeout.
	Timeout time.Duration
}

// New returns a querier chosen by the scheme of the connection url.
// Urls without a scheme are treated as InfluxDB http endpoints.
func New(params Params) (poller.Querier, error) {
	scheme, _, found := strings.Cut(params.URL, "://")
	if !found {
		params.URL = schemeHTTP + "://" + params.URL

		return NewInflux(params), nil
	}

	switch strings.ToLower(scheme) {
	case schemeSQLServer, schemeMSSQL:
		return NewSQL(params), nil
	case schemeHTTP, schemeHTTPS:
		return NewInflux(params), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
}
