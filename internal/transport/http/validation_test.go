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
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidator_RegistersCustomTags(t *testing.T) {
	v := newValidator(customValidations)

	type roleInput struct {
		Role string `validate:"valid_role"`
	}
	require.NoError(t, v.Struct(roleInput{Role: "sales_user"}))
	assert.Error(t, v.Struct(roleInput{Role: "owner"}))
}

func TestNewValidator_PanicsOnBadRegistration(t *testing.T) {
	assert.Panics(t, func() {
		newValidator(map[string]validator.Func{"": validateRole})
	})
	assert.Panics(t, func() {
		newValidator(map[string]validator.Func{"valid_nothing": nil})
	})
}
