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

package validator

import "errors"

var (
	// ErrRequired occurs when a mandatory configuration value is missing.
	ErrRequired = errors.New("missing required value")
	// ErrOutOfRange occurs when a configuration value is outside of its allowed range.
	ErrOutOfRange = errors.New("value out of range")
)
