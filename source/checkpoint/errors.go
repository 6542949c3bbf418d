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
	"errors"
	"fmt"
)

var (
	// ErrCorrupt occurs when a status file cannot be parsed.
	ErrCorrupt = errors.New("corrupt status file")
	// ErrValidation occurs when a status file does not belong to the configured source.
	ErrValidation = errors.New("status file does not match configuration")
	// ErrPersist occurs when a status file cannot be written.
	ErrPersist = errors.New("persist status file")
)

// ValidationError names the status file field that failed validation.
type ValidationError struct {
	Field string
	// Stored is the value found in the status file.
	Stored string
	// Configured is the value the connector is configured with.
	Configured string
	// Reason is set instead of Stored and Configured for structural problems.
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Reason)
	}

	return fmt.Sprintf("%s: %s is %q in status file, configured %q",
		ErrValidation, e.Field, e.Stored, e.Configured)
}

// Is makes errors.Is(err, ErrValidation) true for a *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
