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

package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patliputra/backoffice/internal/rbac"
)

// Domain errors
var (
	ErrUserNotFound          = errors.New("user not found")
	ErrUserAlreadyExists     = errors.New("user already exists")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrInvalidEmail          = errors.New("invalid email address")
	ErrWeakPassword          = errors.New("password does not meet security requirements")
	ErrAccountLocked         = errors.New("account is locked")
	ErrAccountInactive       = errors.New("account is inactive")
	ErrInvalidIdentity       = errors.New("invalid identity")
	ErrProtectedAccount      = errors.New("master admin accounts cannot be deactivated or demoted")
	ErrIncompletePermissions = errors.New("permission override must define every module")
)

// User is the persisted console account.
type User struct {
	ID     string
	Email  string
	Name   string
	Role   rbac.Role
	Active bool

	// Permissions replaces the role defaults module by module. Nil means the
	// role defaults apply unchanged.
	Permissions rbac.ModulePermissionSet

	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLoginAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
	DeletedAt           *time.Time
}

// IsLocked reports whether the account is inside a lockout window at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// Identity returns the principal a session carries for this user.
func (u *User) Identity() *Identity {
	return &Identity{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		IsActive:    u.Active,
		Permissions: u.Permissions.Clone(),
	}
}

// Identity is the authenticated principal. Its JSON form is what the login
// endpoint returns and what clients persist alongside the token.
type Identity struct {
	ID          string                   `json:"id"`
	Name        string                   `json:"name"`
	Email       string                   `json:"email"`
	Role        rbac.Role                `json:"role"`
	IsActive    bool                     `json:"isActive"`
	Permissions rbac.ModulePermissionSet `json:"permissions,omitempty"`
}

// Validate rejects identities that must never be installed as current: an
// empty id, a role outside the closed set, or overrides naming unknown modules.
func (i *Identity) Validate() error {
	if i == nil {
		return fmt.Errorf("%w: nil", ErrInvalidIdentity)
	}
	if i.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidIdentity)
	}
	if !i.Role.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidIdentity, rbac.ErrUnknownRole, i.Role)
	}
	if err := i.Permissions.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidIdentity, err)
	}
	return nil
}

// Clone returns a deep copy.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	out := *i
	out.Permissions = i.Permissions.Clone()
	return &out
}

// SubjectRole implements rbac.Subject.
func (i *Identity) SubjectRole() rbac.Role {
	if i == nil {
		return ""
	}
	return i.Role
}

// PermissionOverrides implements rbac.Subject.
func (i *Identity) PermissionOverrides() rbac.ModulePermissionSet {
	if i == nil {
		return nil
	}
	return i.Permissions
}

// Credentials represents user authentication credentials
type Credentials struct {
	UserID       string
	PasswordHash string
	UpdatedAt    time.Time
}

// UserRepository defines the interface for user persistence
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *User) error

	// AddCredentials adds credentials for a user
	AddCredentials(ctx context.Context, credentials *Credentials) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(ctx context.Context, email string) (*User, error)

	// List returns all users that are not deleted, oldest first
	List(ctx context.Context) ([]*User, error)

	// CountByRole counts active, non-deleted users holding role
	CountByRole(ctx context.Context, role rbac.Role) (int, error)

	// Update persists name, role, active flag and permission overrides
	Update(ctx context.Context, user *User) error

	// UpdateLockout updates user lockout status
	UpdateLockout(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error

	// RecordLogin stamps a successful login
	RecordLogin(ctx context.Context, userID string, at time.Time) error

	// Delete soft-deletes a user
	Delete(ctx context.Context, id string) error

	// GetCredentials retrieves user credentials
	GetCredentials(ctx context.Context, userID string) (*Credentials, error)

	// UpdatePassword updates user password
	UpdatePassword(ctx context.Context, userID string, passwordHash string) error
}
