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

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	v "github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
)

// keyTag is a struct tag that holds a configuration key name of a field.
const keyTag = "key"

var (
	validatorInstance *v.Validate
	once              sync.Once
)

// Get initializes and registers validation tags once, and returns validator instance.
func Get() *v.Validate {
	once.Do(func() {
		validatorInstance = v.New()

		validatorInstance.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get(keyTag), ",", 2)[0]
			if name == "-" {
				return ""
			}

			if name == "" {
				return field.Name
			}

			return name
		})
	})

	return validatorInstance
}

// Validate validates a struct and translates validation errors
// into errors that name the configuration keys.
func Validate(data any) error {
	var err error

	validationErr := Get().Struct(data)
	if validationErr == nil {
		return nil
	}

	var invalidValidationErr *v.InvalidValidationError
	if errors.As(validationErr, &invalidValidationErr) {
		return fmt.Errorf("validate struct: %w", validationErr)
	}

	var validationErrs v.ValidationErrors
	if !errors.As(validationErr, &validationErrs) {
		return fmt.Errorf("validate struct: %w", validationErr)
	}

	for _, e := range validationErrs {
		switch e.ActualTag() {
		case "required":
			err = multierr.Append(err, requiredErr(e.Field()))
		case "required_without":
			err = multierr.Append(err, requiredWithoutErr(e.Field(), fieldKey(data, e.Param())))
		case "gte":
			err = multierr.Append(err, gteErr(e.Field(), e.Param()))
		default:
			err = multierr.Append(err, fmt.Errorf("%q: failed %q validation", e.Field(), e.ActualTag()))
		}
	}

	return err
}

// requiredErr returns the formatted required error.
func requiredErr(name string) error {
	return fmt.Errorf("%w: %q value must be set", ErrRequired, name)
}

// requiredWithoutErr returns the formatted required_without error.
func requiredWithoutErr(name, other string) error {
	return fmt.Errorf("%w: %q value must be set when %q is empty", ErrRequired, name, other)
}

// gteErr returns the formatted gte error.
func gteErr(name, value string) error {
	return fmt.Errorf("%w: %q value must be greater than or equal to %s", ErrOutOfRange, name, value)
}

// fieldKey returns the configuration key of the named field of data,
// or the name itself when the field has no key tag.
func fieldKey(data any, name string) string {
	t := reflect.TypeOf(data)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t == nil || t.Kind() != reflect.Struct {
		return name
	}

	field, ok := t.FieldByName(name)
	if !ok {
		return name
	}

	if key := strings.SplitN(field.Tag.Get(keyTag), ",", 2)[0]; key != "" && key != "-" {
		return key
	}

	return name
}
