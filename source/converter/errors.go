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

import "errors"

var (
	// ErrInvalidDelimiter occurs when the delimiter is not a single usable character.
	ErrInvalidDelimiter = errors.New("invalid delimiter")
	// ErrUnknownCharset occurs when the result charset is not supported.
	ErrUnknownCharset = errors.New("unknown charset")
	// ErrEncode occurs when a record cannot be represented in the result charset.
	ErrEncode = errors.New("encode record")
)
