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
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/patliputra/backoffice/internal/identity"
	"github.com/patliputra/backoffice/internal/observability/logger"
	"github.com/patliputra/backoffice/internal/rbac"
)

// UserResponse is the administrative view of an account.
type UserResponse struct {
	ID                   string                   `json:"id"`
	Email                string                   `json:"email"`
	Name                 string                   `json:"name"`
	Role                 rbac.Role                `json:"role"`
	RoleName             string                   `json:"roleName"`
	IsActive             bool                     `json:"isActive"`
	Permissions          rbac.ModulePermissionSet `json:"permissions,omitempty"`
	EffectivePermissions rbac.ModulePermissionSet `json:"effectivePermissions"`
	Locked               bool                     `json:"locked"`
	LastLoginAt          *time.Time               `json:"lastLoginAt,omitempty"`
	CreatedAt            time.Time                `json:"createdAt"`
}

func (h *Handler) userResponse(u *identity.User) UserResponse {
	return UserResponse{
		ID:                   u.ID,
		Email:                u.Email,
		Name:                 u.Name,
		Role:                 u.Role,
		RoleName:             u.Role.DisplayName(),
		IsActive:             u.Active,
		Permissions:          u.Permissions,
		EffectivePermissions: h.guard.Matrix().ResolveEffectivePermissions(u.Identity()),
		Locked:               u.IsLocked(h.now()),
		LastLoginAt:          u.LastLoginAt,
		CreatedAt:            u.CreatedAt,
	}
}

// ListUsers returns every account.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.identityService.ListUsers(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list users", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, h.userResponse(u))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"users": out,
		"total": len(out),
	})
}

// GetUser returns one account.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.identityService.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.respondIdentityError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.userResponse(user))
}

// CreateUserRequest provisions an account.
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,max=200"`
	Role     string `json:"role" validate:"required,valid_role"`
	Password string `json:"password" validate:"omitempty,min=8"`
}

// CreateUser provisions an account and, when given, its initial password.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	actorID := GetUserID(r.Context())
	user, err := h.identityService.Provision(r.Context(), actorID, req.Email, req.Name, rbac.Role(req.Role))
	if err != nil {
		h.respondIdentityError(w, r, err)
		return
	}

	if req.Password != "" {
		if err := h.identityService.AddPassword(r.Context(), user.ID, req.Password); err != nil {
			slog.ErrorContext(r.Context(), "failed to set password",
				logger.Error(err),
				logger.UserID(user.ID),
			)
			// the account exists without a password; the caller can retry via change-password
			h.respondIdentityError(w, r, err)
			return
		}
	}

	respondJSON(w, http.StatusCreated, h.userResponse(user))
}

// ChangeRoleRequest assigns a new role.
type ChangeRoleRequest struct {
	Role string `json:"role" validate:"required,valid_role"`
}

// ChangeUserRole assigns a new role to an account.
func (h *Handler) ChangeUserRole(w http.ResponseWriter, r *http.Request) {
	var req ChangeRoleRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.identityService.ChangeRole(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "userID"), rbac.Role(req.Role))
	if err != nil {
		h.respondIdentityError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.userResponse(user))
}

// SetStatusRequest activates or deactivates an account.
type SetStatusRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

// SetUserStatus activates or deactivates an account. Deactivation ends
// every session the account holds.
func (h *Handler) SetUserStatus(w http.ResponseWriter, r *http.Request) {
	var req SetStatusRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := chi.URLParam(r, "userID")
	user, err := h.identityService.SetActive(r.Context(), GetUserID(r.Context()), userID, *req.IsActive)
	if err != nil {
		h.respondIdentityError(w, r, err)
		return
	}

	if !user.Active {
		if _, err := h.sessionService.DestroyForUser(r.Context(), user.ID); err != nil {
			slog.ErrorContext(r.Context(), "failed to end sessions of deactivated user",
				logger.UserID(user.ID),
				logger.Error(err),
			)
		}
	}
	respondJSON(w, http.StatusOK, h.userResponse(user))
}

// SetPermissionsRequest installs per-user overrides. Every module must be
// present.
type SetPermissionsRequest struct {
	Permissions rbac.ModulePermissionSet `json:"permissions" validate:"required"`
}

// SetUserPermissions installs per-user overrides.
func (h *Handler) SetUserPermissions(w http.ResponseWriter, r *http.Request) {
	var req SetPermissionsRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.identityService.SetPermissions(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "userID"), req.Permissions)
	if err != nil {
		h.respondIdentityError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.userResponse(user))
}

// ClearUserPermissions restores the role defaults for an account.
func (h *Handler) ClearUserPermissions(w http.ResponseWriter, r *http.Request) {
	user, err := h.identityService.SetPermissions(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "userID"), nil)
	if err != nil {
		h.respondIdentityError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.userResponse(user))
}

// DeleteUser removes an account and ends its sessions.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == GetUserID(r.Context()) {
		respondError(w, http.StatusConflict, "cannot delete your own account")
		return
	}

	if err := h.identityService.DeleteUser(r.Context(), GetUserID(r.Context()), userID); err != nil {
		h.respondIdentityError(w, r, err)
		return
	}
	if _, err := h.sessionService.DestroyForUser(r.Context(), userID); err != nil {
		slog.ErrorContext(r.Context(), "failed to end sessions of deleted user",
			logger.UserID(userID),
			logger.Error(err),
		)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondIdentityError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, identity.ErrUserNotFound):
		respondError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, identity.ErrUserAlreadyExists):
		respondError(w, http.StatusConflict, "user already exists")
	case errors.Is(err, identity.ErrInvalidEmail):
		respondError(w, http.StatusBadRequest, "invalid email address")
	case errors.Is(err, identity.ErrWeakPassword):
		respondError(w, http.StatusBadRequest, "password does not meet security requirements")
	case errors.Is(err, identity.ErrIncompletePermissions):
		respondError(w, http.StatusBadRequest, "permissions must define every module")
	case errors.Is(err, rbac.ErrUnknownModule), errors.Is(err, rbac.ErrUnknownRole):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, identity.ErrProtectedAccount):
		respondError(w, http.StatusConflict, "master admin accounts cannot be deactivated or deleted")
	case errors.Is(err, identity.ErrLastMasterAdmin):
		respondError(w, http.StatusConflict, "at least one active master admin must remain")
	default:
		slog.ErrorContext(r.Context(), "user administration failed", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
