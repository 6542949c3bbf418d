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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/conduitio-labs/conduit-connector-influxdb/config"
	"github.com/conduitio-labs/conduit-connector-influxdb/source/checkpoint"
	"github.com/conduitio-labs/conduit-connector-influxdb/source/converter"
	"github.com/conduitio-labs/conduit-connector-influxdb/validator"
)

const (
	// KeySourceName is a config name for an identity of the source.
	KeySourceName = "source.name"
	// KeyTable is a config name for a table or measurement.
	KeyTable = "table"
	// KeyColumns is a config name for the selected columns.
	KeyColumns = "columns.to.select"
	// KeyCustomQuery is a config name for a custom query template.
	KeyCustomQuery = "custom.query"
	// KeyQueryDelay is a config name for a poll delay in milliseconds.
	KeyQueryDelay = "run.query.delay"
	// KeyQueryTimeout is a config name for a query timeout in milliseconds.
	KeyQueryTimeout = "query.timeout"
	// KeyBatchSize is a config name for a batch size.
	KeyBatchSize = "batch.size"
	// KeyMaxRows is a config name for the row count a query is expected to return at most.
	KeyMaxRows = "max.rows"
	// KeyStatusFilePath is a config name for a directory of the status file.
	KeyStatusFilePath = "status.file.path"
	// KeyStatusFileName is a config name for a file name of the status file.
	KeyStatusFileName = "status.file.name"
	// KeyStartFrom is a config name for the initial incremental key.
	KeyStartFrom = "start.from"
	// KeyDelimiter is a config name for a field delimiter.
	KeyDelimiter = "delimiter.entry"
	// KeyEncloseByQuotes is a config name for a quote enclosure flag.
	KeyEncloseByQuotes = "enclose.by.quotes"
	// KeyCharset is a config name for a charset of the produced records.
	KeyCharset = "default.charset.resultset"

	defaultSourceName      = "influxdb-source"
	defaultColumns         = "*"
	defaultQueryDelay      = 10 * time.Second
	defaultBatchSize       = 10000
	defaultMaxRows         = 100000
	defaultDelimiter       = ","
	defaultEncloseByQuotes = true
	defaultCharset         = "UTF-8"
)

// Config holds source specific configurable values.
type Config struct {
	config.Config

	// SourceName identifies the source in the status file.
	SourceName string `key:"source.name" validate:"required"`
	// Table is a table or measurement the default query reads from.
	Table string `key:"table" validate:"required_without=CustomQuery"`
	// Columns is a comma separated list of columns the default query selects.
	Columns string `key:"columns.to.select" validate:"required"`
	// CustomQuery replaces the default query. "$@$" is substituted with the last index.
	CustomQuery string `key:"custom.query"`
	// QueryDelay is a pause after a cycle that caught up with the source.
	QueryDelay time.Duration `key:"run.query.delay"`
	// QueryTimeout bounds a single query. Zero means no timeout.
	QueryTimeout time.Duration `key:"query.timeout"`
	// BatchSize is a count of records delivered at once.
	BatchSize int `key:"batch.size" validate:"gte=1"`
	// MaxRows is a row count at which the source is considered backlogged.
	MaxRows int `key:"max.rows" validate:"gte=1"`
	// StatusFilePath is a directory of the status file.
	StatusFilePath string `key:"status.file.path" validate:"required"`
	// StatusFileName is a file name of the status file.
	StatusFileName string `key:"status.file.name" validate:"required"`
	// StartFrom is an incremental key used until the status file holds one.
	StartFrom string `key:"start.from" validate:"required"`
	// Delimiter separates fields of a record.
	Delimiter string `key:"delimiter.entry" validate:"required"`
	// EncloseByQuotes wraps every field of a record in double quotes.
	EncloseByQuotes bool `key:"enclose.by.quotes"`
	// Charset is an encoding of the produced records.
	Charset string `key:"default.charset.resultset" validate:"required"`
}

// Parse maps the incoming map to the Config and validates it.
func Parse(cfg map[string]string) (Config, error) {
	common, err := config.Parse(cfg)
	if err != nil {
		return Config{}, fmt.Errorf("parse common config: %w", err)
	}

	sourceConfig := Config{
		Config:          common,
		SourceName:      valueOrDefault(cfg[KeySourceName], defaultSourceName),
		Table:           strings.TrimSpace(cfg[KeyTable]),
		Columns:         valueOrDefault(cfg[KeyColumns], defaultColumns),
		CustomQuery:     strings.TrimSpace(cfg[KeyCustomQuery]),
		QueryDelay:      defaultQueryDelay,
		BatchSize:       defaultBatchSize,
		MaxRows:         defaultMaxRows,
		StatusFilePath:  valueOrDefault(cfg[KeyStatusFilePath], checkpoint.DefaultDirectory),
		StatusFileName:  strings.TrimSpace(cfg[KeyStatusFileName]),
		StartFrom:       valueOrDefault(cfg[KeyStartFrom], checkpoint.DefaultStartFrom),
		Delimiter:       defaultDelimiter,
		EncloseByQuotes: defaultEncloseByQuotes,
		Charset:         valueOrDefault(cfg[KeyCharset], defaultCharset),
	}

	if delimiter := cfg[KeyDelimiter]; delimiter != "" {
		sourceConfig.Delimiter = delimiter
	}

	if sourceConfig.QueryDelay, err = parseMillis(cfg, KeyQueryDelay, defaultQueryDelay); err != nil {
		return Config{}, err
	}

	if sourceConfig.QueryTimeout, err = parseMillis(cfg, KeyQueryTimeout, 0); err != nil {
		return Config{}, err
	}

	if batchSize := cfg[KeyBatchSize]; batchSize != "" {
		sourceConfig.BatchSize, err = strconv.Atoi(batchSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", KeyBatchSize, err)
		}
	}

	if maxRows := cfg[KeyMaxRows]; maxRows != "" {
		sourceConfig.MaxRows, err = strconv.Atoi(maxRows)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", KeyMaxRows, err)
		}
	}

	if enclose := cfg[KeyEncloseByQuotes]; enclose != "" {
		sourceConfig.EncloseByQuotes, err = strconv.ParseBool(enclose)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", KeyEncloseByQuotes, err)
		}
	}

	if err = validator.Validate(&sourceConfig); err != nil {
		return Config{}, fmt.Errorf("validate source config: %w", err)
	}

	if _, err = sourceConfig.Converter(); err != nil {
		return Config{}, fmt.Errorf("validate source config: %w", err)
	}

	return sourceConfig, nil
}

// Converter creates a row converter for the configured delimiter, quoting and charset.
func (c Config) Converter() (*converter.Converter, error) {
	return converter.New(c.Delimiter, c.EncloseByQuotes, c.Charset)
}

// Checkpoint describes the configured source the way the status file records it.
func (c Config) Checkpoint() checkpoint.Record {
	record := checkpoint.Record{
		SourceName: c.SourceName,
		URL:        c.URL,
	}

	if c.CustomQuery != "" {
		record.Mode = checkpoint.ModeCustomQuery
		record.Query = c.CustomQuery

		return record
	}

	record.Mode = checkpoint.ModeTable
	record.Columns = c.Columns
	record.Table = c.Table

	return record
}

func parseMillis(cfg map[string]string, key string, fallback time.Duration) (time.Duration, error) {
	raw := cfg[key]
	if raw == "" {
		return fallback, nil
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}

	if ms < 0 {
		return 0, fmt.Errorf("%w: %q value must be greater than or equal to 0", validator.ErrOutOfRange, key)
	}

	return time.Duration(ms) * time.Millisecond, nil
}

func valueOrDefault(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}

	return fallback
}
