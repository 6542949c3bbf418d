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

package checkpoint

import (
	"encoding/json"
	"fmt"
)

// Status file keys.
const (
	KeySourceName      = "SourceName"
	KeyURL             = "URL"
	KeyLastTime        = "LastTime"
	KeyColumnsToSelect = "ColumnsToSelect"
	KeyTable           = "Table"
	KeyQuery           = "Query"
)

// Mode is the query shape a status file was created for.
type Mode int

const (
	// ModeTable means the connector selects columns from a table.
	ModeTable Mode = iota
	// ModeCustomQuery means the connector runs a custom query template.
	ModeCustomQuery
)

func (m Mode) String() string {
	if m == ModeCustomQuery {
		return "custom query"
	}

	return "table"
}

// Record is the content of a status file.
//
// Columns and Table are only meaningful in ModeTable, Query only in ModeCustomQuery.
type Record struct {
	SourceName string
	URL        string
	LastTime   string
	Mode       Mode
	Columns    string
	Table      string
	Query      string
}

// Decode parses a status file. Malformed content is reported with ErrCorrupt,
// a well-formed file that lacks keys or mixes query modes with a *ValidationError.
func Decode(data []byte) (Record, error) {
	raw := make(map[string]any)
	if err := json.Unmarshal(data, &raw); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	values := make(map[string]string, len(raw))
	for key, value := range raw {
		str, ok := value.(string)
		if !ok {
			return Record{}, fmt.Errorf("%w: %s is %T, not a string", ErrCorrupt, key, value)
		}

		values[key] = str
	}

	for _, key := range []string{KeySourceName, KeyURL, KeyLastTime} {
		if _, ok := values[key]; !ok {
			return Record{}, &ValidationError{Field: key, Reason: "missing"}
		}
	}

	rec := Record{
		SourceName: values[KeySourceName],
		URL:        values[KeyURL],
		LastTime:   values[KeyLastTime],
	}

	query, hasQuery := values[KeyQuery]
	columns, hasColumns := values[KeyColumnsToSelect]
	table, hasTable := values[KeyTable]

	switch {
	case hasQuery && (hasColumns || hasTable):
		return Record{}, &ValidationError{Field: KeyQuery, Reason: "present together with table keys"}
	case hasQuery:
		rec.Mode = ModeCustomQuery
		rec.Query = query
	case !hasColumns:
		return Record{}, &ValidationError{Field: KeyColumnsToSelect, Reason: "missing"}
	case !hasTable:
		return Record{}, &ValidationError{Field: KeyTable, Reason: "missing"}
	default:
		rec.Mode = ModeTable
		rec.Columns = columns
		rec.Table = table
	}

	return rec, nil
}

// Encode renders the record as a flat JSON object with the keys of its mode.
func (r Record) Encode() ([]byte, error) {
	values := map[string]string{
		KeySourceName: r.SourceName,
		KeyURL:        r.URL,
		KeyLastTime:   r.LastTime,
	}

	if r.Mode == ModeCustomQuery {
		values[KeyQuery] = r.Query
	} else {
		values[KeyColumnsToSelect] = r.Columns
		values[KeyTable] = r.Table
	}

	return json.Marshal(values)
}

// Validate compares every field except LastTime with the expected record.
func (r Record) Validate(expected Record) error {
	if r.Mode != expected.Mode {
		return &ValidationError{Field: "mode", Stored: r.Mode.String(), Configured: expected.Mode.String()}
	}

	checks := []fieldCheck{
		{KeyURL, r.URL, expected.URL},
		{KeySourceName, r.SourceName, expected.SourceName},
	}

	if expected.Mode == ModeCustomQuery {
		checks = append(checks, fieldCheck{KeyQuery, r.Query, expected.Query})
	} else {
		checks = append(checks,
			fieldCheck{KeyColumnsToSelect, r.Columns, expected.Columns},
			fieldCheck{KeyTable, r.Table, expected.Table},
		)
	}

	for _, c := range checks {
		if c.stored != c.configured {
			return &ValidationError{Field: c.field, Stored: c.stored, Configured: c.configured}
		}
	}

	return nil
}

type fieldCheck struct {
	field      string
	stored     string
	configured string
}
