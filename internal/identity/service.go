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
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/patliputra/backoffice/internal/audit"
	"github.com/patliputra/backoffice/internal/id"
	"github.com/patliputra/backoffice/internal/observability/logger"
	"github.com/patliputra/backoffice/internal/observability/tracing"
	"github.com/patliputra/backoffice/internal/rbac"
)

// ErrLastMasterAdmin is returned when a change would leave no active master admin.
var ErrLastMasterAdmin = errors.New("cannot remove the last master admin")

const minPasswordLength = 8

var validate = validator.New()

// Service provides identity-related business logic
type Service struct {
	repo               UserRepository
	hasher             *PasswordHasher
	auditLogger        audit.Logger
	lockoutMaxAttempts int
	lockoutDuration    time.Duration
	now                func() time.Time
}

// NewService creates a new identity service
func NewService(
	repo UserRepository,
	hasher *PasswordHasher,
	auditLogger audit.Logger,
	lockoutMaxAttempts int,
	lockoutDuration time.Duration,
) *Service {
	return &Service{
		repo:               repo,
		hasher:             hasher,
		auditLogger:        auditLogger,
		lockoutMaxAttempts: lockoutMaxAttempts,
		lockoutDuration:    lockoutDuration,
		now:                time.Now,
	}
}

// Provision creates an active user with the given role and no credentials.
func (s *Service) Provision(ctx context.Context, actorID, email, name string, role rbac.Role) (*User, error) {
	email = normalizeEmail(email)
	if !isValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", rbac.ErrUnknownRole, role)
	}

	existing, err := s.repo.GetByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, ErrUserAlreadyExists
	}
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	now := s.now()
	user := &User{
		ID:        id.NewUUIDv7(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		Role:      role,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserCreated,
		ActorID:  actorID,
		Resource: audit.ResourceUser,
		Metadata: map[string]any{
			audit.AttrTargetID: user.ID,
			audit.AttrEmail:    email,
			audit.AttrRole:     string(role),
		},
	})

	return user, nil
}

// AddPassword adds a password credential to an existing user
func (s *Service) AddPassword(ctx context.Context, userID, password string) error {
	if !isStrongPassword(password) {
		return ErrWeakPassword
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.repo.AddCredentials(ctx, &Credentials{UserID: userID, PasswordHash: passwordHash}); err != nil {
		return fmt.Errorf("failed to add credentials: %w", err)
	}
	return nil
}

// Authenticate authenticates a user with email and password. Inactive
// accounts fail only after the password checks out, so the response does not
// reveal account state to someone guessing.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	ctx, span := tracing.Start(ctx, "identity.authenticate")
	user, err := s.authenticate(ctx, email, password)
	tracing.End(span, err)
	return user, err
}

func (s *Service) authenticate(ctx context.Context, email, password string) (*User, error) {
	email = normalizeEmail(email)
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			Resource: audit.ResourceLogin,
			Metadata: map[string]any{audit.AttrReason: "user_not_found", audit.AttrEmail: email},
		})
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if user.IsLocked(now) {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			ActorID:  user.ID,
			Resource: audit.ResourceLogin,
			Metadata: map[string]any{audit.AttrReason: "locked_out"},
		})
		return nil, ErrAccountLocked
	}

	credentials, err := s.repo.GetCredentials(ctx, user.ID)
	if err != nil {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			ActorID:  user.ID,
			Resource: audit.ResourceLogin,
			Metadata: map[string]any{audit.AttrReason: "no_credentials"},
		})
		return nil, ErrInvalidCredentials
	}

	valid, err := s.hasher.Verify(password, credentials.PasswordHash)
	if err != nil || !valid {
		attempts := user.FailedLoginAttempts + 1
		var lockedUntil *time.Time

		if attempts >= s.lockoutMaxAttempts {
			until := now.Add(s.lockoutDuration)
			lockedUntil = &until
			s.auditLogger.Log(ctx, audit.Event{
				Type:     audit.TypeUserLocked,
				ActorID:  user.ID,
				Resource: audit.ResourceLogin,
				Metadata: map[string]any{audit.AttrAttempts: attempts},
			})
		}

		if err := s.repo.UpdateLockout(ctx, user.ID, attempts, lockedUntil); err != nil {
			slog.ErrorContext(ctx, "failed to record failed login", logger.UserID(user.ID), logger.Error(err))
		}

		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			ActorID:  user.ID,
			Resource: audit.ResourceLogin,
			Metadata: map[string]any{
				audit.AttrReason:   "invalid_password",
				audit.AttrAttempts: attempts,
			},
		})
		return nil, ErrInvalidCredentials
	}

	if !user.Active {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			ActorID:  user.ID,
			Resource: audit.ResourceLogin,
			Metadata: map[string]any{audit.AttrReason: "inactive"},
		})
		return nil, ErrAccountInactive
	}

	if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
		if err := s.repo.UpdateLockout(ctx, user.ID, 0, nil); err != nil {
			slog.ErrorContext(ctx, "failed to reset lockout", logger.UserID(user.ID), logger.Error(err))
		}
		user.FailedLoginAttempts = 0
		user.LockedUntil = nil
	}
	if s.hasher.NeedsRehash(credentials.PasswordHash) {
		s.rehash(ctx, user.ID, password)
	}
	if err := s.repo.RecordLogin(ctx, user.ID, now); err != nil {
		slog.WarnContext(ctx, "failed to record login time", logger.UserID(user.ID), logger.Error(err))
	}
	user.LastLoginAt = &now

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeLoginSuccess,
		ActorID:  user.ID,
		Resource: audit.ResourceLogin,
		Metadata: map[string]any{audit.AttrRole: string(user.Role)},
	})

	return user, nil
}

// rehash re-encodes a verified password at the current cost. Failure only
// leaves the old hash in place.
func (s *Service) rehash(ctx context.Context, userID, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.repo.UpdatePassword(ctx, userID, hash)
	}
	if err != nil {
		slog.WarnContext(ctx, "failed to upgrade password hash", logger.UserID(userID), logger.Error(err))
		return
	}
	slog.InfoContext(ctx, "upgraded password hash", logger.UserID(userID))
}

// GetUser retrieves a user by ID
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, normalizeEmail(email))
}

// ListUsers returns every account.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// ChangeRole assigns a new role. Demoting the last active master admin is refused.
func (s *Service) ChangeRole(ctx context.Context, actorID, userID string, role rbac.Role) (*User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", rbac.ErrUnknownRole, role)
	}
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == role {
		return user, nil
	}
	if user.Role == rbac.RoleMasterAdmin {
		if err := s.ensureOtherMasterAdmin(ctx, user); err != nil {
			return nil, err
		}
	}

	oldRole := user.Role
	user.Role = role
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleChanged,
		ActorID:  actorID,
		Resource: audit.ResourceUser,
		Metadata: map[string]any{
			audit.AttrTargetID: user.ID,
			audit.AttrOldRole:  string(oldRole),
			audit.AttrRole:     string(role),
		},
	})
	return user, nil
}

// SetActive activates or deactivates an account. Master admins cannot be deactivated.
func (s *Service) SetActive(ctx context.Context, actorID, userID string, active bool) (*User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !active && user.Role == rbac.RoleMasterAdmin {
		return nil, ErrProtectedAccount
	}
	if user.Active == active {
		return user, nil
	}

	user.Active = active
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}

	eventType := audit.TypeUserActivated
	if !active {
		eventType = audit.TypeUserDeactivated
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     eventType,
		ActorID:  actorID,
		Resource: audit.ResourceUser,
		Metadata: map[string]any{audit.AttrTargetID: user.ID},
	})
	return user, nil
}

// SetPermissions installs per-user overrides. A non-nil set must define every
// module; nil restores the role defaults.
func (s *Service) SetPermissions(ctx context.Context, actorID, userID string, perms rbac.ModulePermissionSet) (*User, error) {
	if perms != nil {
		if err := perms.Validate(); err != nil {
			return nil, err
		}
		if !perms.Complete() {
			return nil, ErrIncompletePermissions
		}
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Permissions = perms.Clone()
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update permissions: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypePermissionsChanged,
		ActorID:  actorID,
		Resource: audit.ResourceUser,
		Metadata: map[string]any{
			audit.AttrTargetID: user.ID,
			"cleared":          perms == nil,
		},
	})
	return user, nil
}

// DeleteUser soft-deletes an account. Master admins cannot be deleted.
func (s *Service) DeleteUser(ctx context.Context, actorID, userID string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.Role == rbac.RoleMasterAdmin {
		return ErrProtectedAccount
	}
	if err := s.repo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserDeleted,
		ActorID:  actorID,
		Resource: audit.ResourceUser,
		Metadata: map[string]any{audit.AttrTargetID: userID},
	})
	return nil
}

// ChangePassword changes user password
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	credentials, err := s.repo.GetCredentials(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}

	valid, err := s.hasher.Verify(oldPassword, credentials.PasswordHash)
	if err != nil || !valid {
		return ErrInvalidCredentials
	}

	if !isStrongPassword(newPassword) {
		return ErrWeakPassword
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.repo.UpdatePassword(ctx, userID, newHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypePasswordChanged,
		ActorID:  userID,
		Resource: audit.ResourceUser,
	})
	return nil
}

func (s *Service) ensureOtherMasterAdmin(ctx context.Context, user *User) error {
	if !user.Active {
		return nil
	}
	n, err := s.repo.CountByRole(ctx, rbac.RoleMasterAdmin)
	if err != nil {
		return fmt.Errorf("failed to count master admins: %w", err)
	}
	if n <= 1 {
		return ErrLastMasterAdmin
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(email string) bool {
	return validate.Var(email, "required,email,max=254") == nil
}

func isStrongPassword(password string) bool {
	return len(password) >= minPasswordLength
}
