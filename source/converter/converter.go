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

package converter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

const quote = `"`

// Record is a row rendered as text.
type Record struct {
	// Fields are the rendered values of the row, in column order.
	Fields []string
	// Body is the delimited line encoded with the result charset.
	Body []byte
}

// Index returns the first field, the incremental key of the row.
func (r Record) Index() string {
	if len(r.Fields) == 0 {
		return ""
	}

	return r.Fields[0]
}

// Converter turns rows into delimited text records.
type Converter struct {
	delimiter rune
	enclose   bool
	encoder   *encoding.Encoder
}

// New creates a Converter. The delimiter must be a single character and
// charset a name known to the WHATWG encoding index.
func New(delimiter string, enclose bool, charset string) (*Converter, error) {
	r, size := utf8.DecodeRuneInString(delimiter)
	if size == 0 || size != len(delimiter) || !validDelimiter(r) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDelimiter, delimiter)
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrUnknownCharset, charset, err)
	}

	c := &Converter{
		delimiter: r,
		enclose:   enclose,
	}

	if enc != unicode.UTF8 {
		c.encoder = enc.NewEncoder()
	}

	return c, nil
}

// Convert renders rows in order, one record per row. Rows that render blank are skipped.
func (c *Converter) Convert(rows [][]any) ([]Record, error) {
	records := make([]Record, 0, len(rows))

	for i, row := range rows {
		fields := make([]string, len(row))
		for j := range row {
			fields[j] = FormatValue(row[j])
		}

		if strings.TrimSpace(strings.Join(fields, ", ")) == "" {
			continue
		}

		body, err := c.encode(fields)
		if err != nil {
			return nil, fmt.Errorf("encode row %d: %w", i, err)
		}

		records = append(records, Record{Fields: fields, Body: body})
	}

	return records, nil
}

func (c *Converter) encode(fields []string) ([]byte, error) {
	var line string

	if c.enclose {
		quoted := make([]string, len(fields))
		for i := range fields {
			quoted[i] = quote + strings.ReplaceAll(fields[i], quote, quote+quote) + quote
		}

		line = strings.Join(quoted, string(c.delimiter))
	} else {
		var buf bytes.Buffer

		w := csv.NewWriter(&buf)
		w.Comma = c.delimiter

		if err := w.Write(fields); err != nil {
			return nil, fmt.Errorf("write csv: %w", err)
		}

		w.Flush()

		if err := w.Error(); err != nil {
			return nil, fmt.Errorf("flush csv: %w", err)
		}

		line = strings.TrimSuffix(buf.String(), "\n")
	}

	if c.encoder == nil {
		return []byte(line), nil
	}

	encoded, err := c.encoder.String(line)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}

	return []byte(encoded), nil
}

func validDelimiter(r rune) bool {
	return r != '"' && r != '\r' && r != '\n' && r != utf8.RuneError
}
