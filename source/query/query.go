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

package query

import (
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

// Placeholder is replaced with the quoted last processed index in a custom query.
const Placeholder = "$@$"

// Builder builds the query text of a poll cycle.
type Builder struct {
	columns  string
	table    string
	template string
}

// New creates a Builder. A non-empty template takes precedence over columns and table.
func New(columns, table, template string) Builder {
	return Builder{
		columns:  columns,
		table:    table,
		template: template,
	}
}

// Build returns the query for the given index.
func (b Builder) Build(index string) string {
	if b.template == "" {
		sb := sqlbuilder.NewSelectBuilder()

		return sb.Select(b.columns).From(b.table).String()
	}

	if !strings.Contains(b.template, Placeholder) {
		return b.template
	}

	return strings.ReplaceAll(b.template, Placeholder, "'"+index+"'")
}
