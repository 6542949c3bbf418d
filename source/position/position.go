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

package position

import (
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/conduitio/conduit-connector-sdk"
)

// ErrEmptyLastTime occurs when a position carries no incremental key.
var ErrEmptyLastTime = errors.New("position has an empty lastTime")

// Position represents an InfluxDB source position.
type Position struct {
	// LastTime is the incremental key of the record the position belongs to.
	LastTime string `json:"lastTime"`
}

// ParseSDKPosition parses SDK position and returns Position.
func ParseSDKPosition(p sdk.Position) (*Position, error) {
	if p == nil {
		return nil, nil
	}

	var pos Position

	if err := json.Unmarshal(p, &pos); err != nil {
		return nil, fmt.Errorf("unmarshal position: %w", err)
	}

	if pos.LastTime == "" {
		return nil, ErrEmptyLastTime
	}

	return &pos, nil
}

// ConvertToSDKPosition formats and returns sdk.Position.
func (p Position) ConvertToSDKPosition() (sdk.Position, error) {
	return json.Marshal(p)
}
