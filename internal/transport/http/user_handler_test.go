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
	"net/http"
	"testing"

	"github.com/patliputra/backoffice/internal/audit"
	"github.com/patliputra/backoffice/internal/rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userList struct {
	Users []UserResponse `json:"users"`
	Total int            `json:"total"`
}

// TestPurpose: Validates that user management is reserved to master admins.
// Scope: Unit Test
// Security: Privilege escalation (CWE-269)
// Expected: Admin and sales receive 403 on every user endpoint; master admin can list.
// Test Case ID: USR-01
func TestUsers_OnlyMasterAdmin(t *testing.T) {
	env := newTestEnv(t)
	target := env.ids["sales@dealer.test"]

	for _, email := range []string{"admin@dealer.test", "sales@dealer.test"} {
		tok := env.login(email)
		assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/v1/users", tok, nil).Code, email)
		assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, "/api/v1/users", tok, CreateUserRequest{Email: "x@dealer.test", Name: "X", Role: "admin"}).Code, email)
		assert.Equal(t, http.StatusForbidden, env.do(http.MethodPut, "/api/v1/users/"+target+"/role", tok, ChangeRoleRequest{Role: "master_admin"}).Code, email)
		assert.Equal(t, http.StatusForbidden, env.do(http.MethodDelete, "/api/v1/users/"+target, tok, nil).Code, email)
	}
	assert.NotEmpty(t, env.audit.ofType(audit.TypeAccessDenied))

	w := env.do(http.MethodGet, "/api/v1/users", env.login("master@dealer.test"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[userList](t, w)
	assert.Equal(t, 3, list.Total)
	assert.Len(t, list.Users, 3)
}

// TestPurpose: Validates account provisioning through the API.
// Scope: Unit Test
// Security: Input validation and credential setup
// Expected: A created user can log in; duplicates are 409; unknown roles and short passwords are 400.
// Test Case ID: USR-02
func TestUsers_Create(t *testing.T) {
	env := newTestEnv(t)
	master := env.login("master@dealer.test")

	w := env.do(http.MethodPost, "/api/v1/users", master, CreateUserRequest{
		Email:    "new.sales@dealer.test",
		Name:     "New Sales",
		Role:     string(rbac.RoleSalesUser),
		Password: testPassword,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[UserResponse](t, w)
	assert.Equal(t, rbac.RoleSalesUser, created.Role)
	assert.Equal(t, "Sales User", created.RoleName)
	assert.True(t, created.IsActive)
	assert.Equal(t, rbac.SalesUserPermissions, created.EffectivePermissions)

	assert.NotEmpty(t, env.login("new.sales@dealer.test"))

	w = env.do(http.MethodPost, "/api/v1/users", master, CreateUserRequest{Email: "NEW.SALES@dealer.test", Name: "Dup", Role: "admin"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodPost, "/api/v1/users", master, CreateUserRequest{Email: "x@dealer.test", Name: "X", Role: "owner"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/v1/users", master, CreateUserRequest{Email: "y@dealer.test", Name: "Y", Role: "admin", Password: "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestPurpose: Validates that master admin accounts are protected from deactivation and deletion.
// Scope: Unit Test
// Security: Administrative lockout prevention
// Expected: 409 for deactivating or deleting a master admin, and for deleting oneself.
// Test Case ID: USR-03
func TestUsers_MasterAdminProtected(t *testing.T) {
	env := newTestEnv(t)
	master := env.login("master@dealer.test")
	masterID := env.ids["master@dealer.test"]
	otherMaster := env.seed("second.master@dealer.test", rbac.RoleMasterAdmin)

	w := env.do(http.MethodPut, "/api/v1/users/"+otherMaster+"/status", master, map[string]any{"isActive": false})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodDelete, "/api/v1/users/"+otherMaster, master, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodDelete, "/api/v1/users/"+masterID, master, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodPut, "/api/v1/users/"+masterID+"/status", master, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "isActive is required")
}

// TestPurpose: Validates per-user permission overrides end to end.
// Scope: Unit Test
// Security: Fine-grained authorization
// Expected: An override opens CIBIL read access without export; clearing it restores the role defaults; partial sets are rejected.
// Test Case ID: USR-04
func TestUsers_PermissionOverrides(t *testing.T) {
	env := newTestEnv(t)
	master := env.login("master@dealer.test")
	sales := env.login("sales@dealer.test")
	salesID := env.ids["sales@dealer.test"]

	require.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/v1/cibil", sales, nil).Code)

	perms := rbac.SalesUserPermissions.Clone()
	perms[rbac.ModuleCibil] = rbac.ReadOnly
	w := env.do(http.MethodPut, "/api/v1/users/"+salesID+"/permissions", master, SetPermissionsRequest{Permissions: perms})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[UserResponse](t, w)
	assert.Equal(t, rbac.ReadOnly, updated.EffectivePermissions[rbac.ModuleCibil])
	assert.Equal(t, rbac.RoleSalesUser, updated.Role, "overrides leave the role alone")

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/cibil", sales, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/v1/cibil/export", sales, nil).Code)

	partial := rbac.ModulePermissionSet{rbac.ModuleCibil: rbac.Full}
	w = env.do(http.MethodPut, "/api/v1/users/"+salesID+"/permissions", master, SetPermissionsRequest{Permissions: partial})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodDelete, "/api/v1/users/"+salesID+"/permissions", master, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := decode[UserResponse](t, w)
	assert.Nil(t, cleared.Permissions)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/v1/cibil", sales, nil).Code)

	assert.NotEmpty(t, env.audit.ofType(audit.TypePermissionsChanged))
}

// TestPurpose: Validates that deleting a user ends their sessions and hides the account.
// Scope: Unit Test
// Security: Session revocation on account removal
// Expected: 204 on delete, 401 for the deleted user's token, 404 on lookup.
// Test Case ID: USR-05
func TestUsers_Delete(t *testing.T) {
	env := newTestEnv(t)
	master := env.login("master@dealer.test")
	admin := env.login("admin@dealer.test")
	adminID := env.ids["admin@dealer.test"]

	w := env.do(http.MethodDelete, "/api/v1/users/"+adminID, master, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/v1/auth/me", admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/v1/users/"+adminID, master, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/api/v1/users/does-not-exist", master, nil).Code)
}
