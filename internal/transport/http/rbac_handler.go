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

	"github.com/patliputra/backoffice/internal/rbac"
)

// RoleView is one role's row of the matrix.
type RoleView struct {
	Role        rbac.Role                `json:"role"`
	Name        string                   `json:"name"`
	Permissions rbac.ModulePermissionSet `json:"permissions"`
}

// MatrixResponse is the body of GET /rbac/matrix.
type MatrixResponse struct {
	Modules []MenuItem `json:"modules"`
	Roles   []RoleView `json:"roles"`
}

// GetMatrix returns the role defaults for every module.
func (h *Handler) GetMatrix(w http.ResponseWriter, r *http.Request) {
	matrix := h.guard.Matrix()

	resp := MatrixResponse{
		Modules: menuFor(rbac.Modules()),
		Roles:   make([]RoleView, 0, len(rbac.Roles())),
	}
	for _, role := range rbac.Roles() {
		resp.Roles = append(resp.Roles, RoleView{
			Role:        role,
			Name:        role.DisplayName(),
			Permissions: matrix.Permissions(role),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

// CheckRequest asks whether the caller may perform an action.
type CheckRequest struct {
	Module string `json:"module" validate:"required,valid_module"`
	Action string `json:"action" validate:"required,valid_action"`
}

// CheckResponse is the answer to a CheckRequest.
type CheckResponse struct {
	Module  rbac.Module `json:"module"`
	Action  rbac.Action `json:"action"`
	Allowed bool        `json:"allowed"`
}

// CheckPermission evaluates a single (module, action) pair for the caller.
// It is a query, so denials are not audited.
func (h *Handler) CheckPermission(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	module, action := rbac.Module(req.Module), rbac.Action(req.Action)
	respondJSON(w, http.StatusOK, CheckResponse{
		Module:  module,
		Action:  action,
		Allowed: h.guard.Matrix().Allows(GetIdentity(r.Context()), module, action),
	})
}
