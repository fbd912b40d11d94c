// Copyright 2026 The Backoffice Authors
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

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/patliputra/backoffice/internal/rbac"
)

const maxBodyBytes = 1 << 20

var customValidations = map[string]validator.Func{
	"valid_role":   validateRole,
	"valid_module": validateModule,
	"valid_action": validateAction,
}

var validate = newValidator(customValidations)

// newValidator panics if a custom validation cannot be registered, so a bad
// tag stops the process at start-up rather than passing requests unchecked.
func newValidator(custom map[string]validator.Func) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	for tag, fn := range custom {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("failed to register validation %q: %v", tag, err))
		}
	}
	return v
}

func validateRole(fl validator.FieldLevel) bool {
	return rbac.Role(fl.Field().String()).Valid()
}

func validateModule(fl validator.FieldLevel) bool {
	return rbac.Module(fl.Field().String()).Valid()
}

func validateAction(fl validator.FieldLevel) bool {
	return rbac.Action(fl.Field().String()).Valid()
}

// decodeRequest reads a JSON body into dst and validates it. The returned
// error is safe to show to the caller.
func decodeRequest(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		return validationMessage(err)
	}
	return nil
}

func validationMessage(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.New("invalid request")
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", jsonName(fe), fe.Tag()))
	}
	return errors.New(strings.Join(parts, "; "))
}

func jsonName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		return "field"
	}
	return strings.ToLower(name[:1]) + name[1:]
}
