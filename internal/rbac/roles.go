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

package rbac

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrUnknownRole       = errors.New("unknown role")
	ErrUnknownModule     = errors.New("unknown module")
	ErrUnknownAction     = errors.New("unknown action")
	ErrIncompleteMatrix  = errors.New("authorization matrix is incomplete")
	ErrInvalidPermission = errors.New("invalid permission")
)

// Role is the identity class assigned to a back-office user.
// Roles are not ranked; each one owns an independently declared permission set.
type Role string

// -----------------------------------------------------------------------------
// Role Name Constants
// These are the canonical names stored in the database and carried in tokens.
// -----------------------------------------------------------------------------

const (
	// RoleMasterAdmin has every grant, including user management.
	RoleMasterAdmin Role = "master_admin"

	// RoleAdmin manages the catalogue and marketing content.
	// Settings are read-only and user management is hidden.
	RoleAdmin Role = "admin"

	// RoleSalesUser works leads and finance applications.
	RoleSalesUser Role = "sales_user"
)

var roles = []Role{RoleMasterAdmin, RoleAdmin, RoleSalesUser}

// Roles returns every known role.
func Roles() []Role {
	out := make([]Role, len(roles))
	copy(out, roles)
	return out
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleMasterAdmin, RoleAdmin, RoleSalesUser:
		return true
	}
	return false
}

// DisplayName returns the human readable role name shown in the console.
func (r Role) DisplayName() string {
	switch r {
	case RoleMasterAdmin:
		return "Master Admin"
	case RoleAdmin:
		return "Admin"
	case RoleSalesUser:
		return "Sales User"
	default:
		return "Unknown"
	}
}

func (r Role) String() string {
	return string(r)
}

// ParseRole converts an untrusted string (token claim, stored session, request body)
// into a Role. Anything outside the closed set is rejected.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}
