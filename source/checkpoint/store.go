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
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	sdk "github.com/conduitio/conduit-connector-sdk"
)

const (
	// DefaultStartFrom is the index used when nothing else is known.
	DefaultStartFrom = "1970-01-01T08:00:00.000Z"
	// DefaultDirectory is a directory status files are kept in by default.
	DefaultDirectory = "/var/lib/flume"

	backupInfix = ".bak."
	dirPerm     = 0o755
	filePerm    = 0o644
)

// Params is an incoming params for the Open function.
type Params struct {
	// Dir is a directory of the status file, created when absent.
	Dir string
	// Name is a file name of the status file.
	Name string
	// StartFrom seeds LastTime of a newly created status file.
	StartFrom string
	// Expected describes the configured source. Its LastTime is ignored.
	Expected Record
}

// Store owns a status file and its in-memory copy.
// It is not safe for concurrent use.
type Store struct {
	path   string
	record Record
	now    func() time.Time
}

// Open loads the status file, creating it when it does not exist and
// replacing it with a fresh one, after a backup, when it cannot be parsed.
// A status file that belongs to a different configuration is an error.
func Open(ctx context.Context, params Params) (*Store, error) {
	s := &Store{
		path: filepath.Join(params.Dir, params.Name),
		now:  time.Now,
	}

	dirErr := os.MkdirAll(params.Dir, dirPerm)
	if dirErr != nil {
		sdk.Logger(ctx).Error().Err(dirErr).Str("dir", params.Dir).Msg("create status directory")
	}

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist), err != nil && dirErr != nil:
		sdk.Logger(ctx).Info().Str("path", s.path).Str("startFrom", params.StartFrom).
			Msg("status file not found, creating a new one")

		s.create(ctx, params)

		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read status file: %w", err)
	}

	record, err := Decode(data)
	switch {
	case errors.Is(err, ErrCorrupt):
		backup, er := s.backup()
		if er != nil {
			return nil, fmt.Errorf("back up status file: %w", er)
		}

		sdk.Logger(ctx).Error().Err(err).Str("path", s.path).Str("backup", backup).
			Msg("status file is corrupt, backed it up and creating a new one")

		s.create(ctx, params)

		return s, nil
	case err != nil:
		return nil, fmt.Errorf("decode status file %s: %w", s.path, err)
	}

	if err = record.Validate(params.Expected); err != nil {
		return nil, fmt.Errorf("validate status file %s: %w", s.path, err)
	}

	s.record = record

	sdk.Logger(ctx).Info().Str("path", s.path).Str("lastTime", record.LastTime).Msg("status file loaded")

	return s, nil
}

// Index returns the last processed index, or fallback when it is empty.
func (s *Store) Index(fallback string) string {
	if s.record.LastTime == "" {
		return fallback
	}

	return s.record.LastTime
}

// Record returns the in-memory status record.
func (s *Store) Record() Record {
	return s.record
}

// Path returns the location of the status file.
func (s *Store) Path() string {
	return s.path
}

// Advance stores a new last processed index and rewrites the status file.
// The in-memory index is updated even when the write fails.
func (s *Store) Advance(ctx context.Context, index string) error {
	s.record.LastTime = index

	if err := s.persist(); err != nil {
		return err
	}

	sdk.Logger(ctx).Debug().Str("lastTime", index).Msg("status file updated")

	return nil
}

// create seeds the record and writes it. A failed write is only logged,
// the record stays in memory.
func (s *Store) create(ctx context.Context, params Params) {
	s.record = params.Expected
	s.record.LastTime = params.StartFrom

	if err := s.persist(); err != nil {
		sdk.Logger(ctx).Error().Err(err).Str("path", s.path).Msg("create status file")
	}
}

// persist overwrites the status file with the whole record.
func (s *Store) persist() error {
	data, err := s.record.Encode()
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrPersist, err)
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return fmt.Errorf("%w: open: %w", ErrPersist, err)
	}

	if _, err = f.Write(data); err != nil {
		f.Close() //nolint:errcheck,nolintlint

		return fmt.Errorf("%w: write: %w", ErrPersist, err)
	}

	if err = f.Sync(); err != nil {
		f.Close() //nolint:errcheck,nolintlint

		return fmt.Errorf("%w: sync: %w", ErrPersist, err)
	}

	if err = f.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", ErrPersist, err)
	}

	return nil
}

// backup renames the status file to <path>.bak.<epoch millis> and returns the new path.
func (s *Store) backup() (string, error) {
	backup := s.path + backupInfix + strconv.FormatInt(s.now().UnixMilli(), 10)

	if err := os.Rename(s.path, backup); err != nil {
		return "", err
	}

	return backup, nil
}
