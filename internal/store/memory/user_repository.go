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

// Package memory holds process-local repositories for development servers
// and tests. Nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/patliputra/backoffice/internal/identity"
	"github.com/patliputra/backoffice/internal/rbac"
)

// UserRepository implements identity.UserRepository in memory. Values are
// copied on the way in and out.
type UserRepository struct {
	mu          sync.RWMutex
	users       map[string]*identity.User
	credentials map[string]*identity.Credentials
}

// NewUserRepository creates an empty repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:       make(map[string]*identity.User),
		credentials: make(map[string]*identity.Credentials),
	}
}

func copyUser(u *identity.User) *identity.User {
	c := *u
	c.Permissions = u.Permissions.Clone()
	return &c
}

func (r *UserRepository) Create(ctx context.Context, user *identity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email && u.DeletedAt == nil {
			return identity.ErrUserAlreadyExists
		}
	}
	if _, ok := r.users[user.ID]; ok {
		return identity.ErrUserAlreadyExists
	}
	r.users[user.ID] = copyUser(user)
	return nil
}

func (r *UserRepository) AddCredentials(ctx context.Context, credentials *identity.Credentials) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[credentials.UserID]; !ok {
		return identity.ErrUserNotFound
	}
	c := *credentials
	r.credentials[credentials.UserID] = &c
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*identity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, identity.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email && u.DeletedAt == nil {
			return copyUser(u), nil
		}
	}
	return nil, identity.ErrUserNotFound
}

func (r *UserRepository) List(ctx context.Context) ([]*identity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*identity.User{}
	for _, u := range r.users {
		if u.DeletedAt == nil {
			out = append(out, copyUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *UserRepository) CountByRole(ctx context.Context, role rbac.Role) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, u := range r.users {
		if u.Role == role && u.Active && u.DeletedAt == nil {
			n++
		}
	}
	return n, nil
}

func (r *UserRepository) Update(ctx context.Context, user *identity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[user.ID]
	if !ok || u.DeletedAt != nil {
		return identity.ErrUserNotFound
	}
	u.Name = user.Name
	u.Role = user.Role
	u.Active = user.Active
	u.Permissions = user.Permissions.Clone()
	u.UpdatedAt = user.UpdatedAt
	return nil
}

func (r *UserRepository) UpdateLockout(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return identity.ErrUserNotFound
	}
	u.FailedLoginAttempts = failedAttempts
	u.LockedUntil = lockedUntil
	return nil
}

func (r *UserRepository) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return identity.ErrUserNotFound
	}
	u.LastLoginAt = &at
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.DeletedAt != nil {
		return identity.ErrUserNotFound
	}
	now := time.Now()
	u.DeletedAt = &now
	u.Active = false
	return nil
}

func (r *UserRepository) GetCredentials(ctx context.Context, userID string) (*identity.Credentials, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.credentials[userID]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	out := *c
	return &out, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID string, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.credentials[userID]
	if !ok {
		return identity.ErrUserNotFound
	}
	c.PasswordHash = passwordHash
	c.UpdatedAt = time.Now()
	return nil
}
