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

import "errors"

var (
	// ErrConnection occurs when a data source cannot be reached.
	ErrConnection = errors.New("connect to data source")
	// ErrQuery occurs when a data source rejects a query.
	ErrQuery = errors.New("query data source")
	// ErrUnsupportedScheme occurs when a connection url has a scheme no client handles.
	ErrUnsupportedScheme = errors.New("unsupported connection url scheme")
)
