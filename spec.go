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

package influxdb

import (
	sdk "github.com/conduitio/conduit-connector-sdk"
)

// version is set during the build process (i.e. the Makefile).
// Default version matches default from runtime/debug.
var version = "(devel)"

// Specification returns the Plugin's Specification.
func Specification() sdk.Specification {
	return sdk.Specification{
		Name:    "influxdb",
		Summary: "The InfluxDB incremental polling source plugin for Conduit, written in Go.",
		Description: "The InfluxDB connector is one of Conduit plugins. " +
			"It polls an InfluxDB 1.x database with InfluxQL, emits rows newer than " +
			"the last seen incremental key as delimited text records and keeps " +
			"that key in a local status file.",
		Version: version,
		Author:  "Meroxa, Inc. & Yalantis",
	}
}
