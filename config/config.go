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

package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/conduitio-labs/conduit-connector-influxdb/validator"
)

const (
	// KeyConnectionURL is a config name for a connection endpoint.
	KeyConnectionURL = "connection.url"
	// KeyConnectionUser is a config name for a user name.
	KeyConnectionUser = "connection.user"
	// KeyConnectionPassword is a config name for a password.
	KeyConnectionPassword = "connection.password"
	// KeyDatabase is a config name for a database.
	KeyDatabase = "database"
	// KeyReadOnly is a config name for a read-only session flag.
	KeyReadOnly = "read.only"
)

// Config contains the connection values of the data source.
type Config struct {
	// URL is a connection endpoint of the data source.
	URL string `key:"connection.url" validate:"required"`
	// User is a name of the user the connector authenticates as.
	User string `key:"connection.user" validate:"required"`
	// Password of the User.
	Password string `key:"connection.password" validate:"required"`
	// Database is a name of the database the connector reads from.
	Database string `key:"database" validate:"required"`
	// ReadOnly is advisory and is only reported on startup.
	ReadOnly bool `key:"read.only"`
}

// Parse attempts to parse a provided map[string]string into a Config struct.
func Parse(cfg map[string]string) (Config, error) {
	config := Config{
		URL:      strings.TrimSpace(cfg[KeyConnectionURL]),
		User:     cfg[KeyConnectionUser],
		Password: cfg[KeyConnectionPassword],
		Database: cfg[KeyDatabase],
	}

	if readOnly := cfg[KeyReadOnly]; readOnly != "" {
		var err error

		config.ReadOnly, err = strconv.ParseBool(readOnly)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", KeyReadOnly, err)
		}
	}

	if err := validator.Validate(&config); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}
