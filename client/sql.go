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
	"net/url"

	// Go driver for SQL Server.
	_ "github.com/denisenkom/go-mssqldb"
	"github.com/jmoiron/sqlx"
)

const driverName = "mssql"

// SQL queries a SQL Server database.
type SQL struct {
	params Params
	db     *sqlx.DB

	open func(driverName, dsn string) (*sqlx.DB, error)
}

// NewSQL creates a SQL querier. The connection is established on the first query.
func NewSQL(params Params) *SQL {
	return &SQL{
		params: params,
		open:   sqlx.Open,
	}
}

// Query runs q and scans every row.
func (s *SQL) Query(ctx context.Context, q string) ([]Row, error) {
	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryxContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	defer rows.Close()

	var result []Row

	for rows.Next() {
		row, er := rows.SliceScan()
		if er != nil {
			return nil, fmt.Errorf("%w: scan row: %w", ErrQuery, er)
		}

		result = append(result, row)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate rows: %w", ErrQuery, err)
	}

	return result, nil
}

// Close closes the database connection pool.
func (s *SQL) Close() error {
	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil

	return err
}

func (s *SQL) connect(ctx context.Context) error {
	if s.db != nil {
		return nil
	}

	dsn, err := DSN(s.params)
	if err != nil {
		return err
	}

	db, err := s.open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("%w: open: %w", ErrConnection, err)
	}

	if err = db.PingContext(ctx); err != nil {
		db.Close()

		return fmt.Errorf("%w: ping: %w", ErrConnection, err)
	}

	s.db = db

	return nil
}

// DSN builds a sqlserver connection string from params.
// Credentials and database already present in the url are kept.
func DSN(params Params) (string, error) {
	u, err := url.Parse(params.URL)
	if err != nil {
		return "", fmt.Errorf("parse connection url: %w", err)
	}

	u.Scheme = schemeSQLServer

	if u.User == nil && params.User != "" {
		u.User = url.UserPassword(params.User, params.Password)
	}

	query := u.Query()
	if query.Get("database") == "" && params.Database != "" {
		query.Set("database", params.Database)
	}

	u.RawQuery = query.Encode()

	return u.String(), nil
}
