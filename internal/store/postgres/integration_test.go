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

//go:build integration
// +build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/patliputra/backoffice/internal/identity"
	"github.com/patliputra/backoffice/internal/rbac"
	"github.com/patliputra/backoffice/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	cfg := Config{
		Host:         envOr("DB_HOST", "localhost"),
		Port:         envOr("DB_PORT", "5432"),
		User:         envOr("DB_USER", "backoffice"),
		Password:     envOr("DB_PASSWORD", "backoffice_dev_password"),
		Database:     envOr("DB_NAME", "backoffice"),
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 1,
	}

	db, err := New(ctx, cfg)
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to database: %v", err)
	}
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx, InitialSchema))
	return db
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// TestPurpose: Validates that permission overrides survive a round trip through the database and can be cleared.
// Scope: Database Integration Test
// Security: Authorization data integrity
// Expected: Stored overrides read back identically; clearing stores NULL and reads back as nil.
// Test Case ID: PG-01
func TestUserRepository_PermissionOverrides(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db)

	user := &identity.User{
		ID:     "pg-user-" + time.Now().Format("150405.000000"),
		Email:  "pg-" + time.Now().Format("150405.000000") + "@dealer.test",
		Name:   "PG Sales",
		Role:   rbac.RoleSalesUser,
		Active: true,
	}
	require.NoError(t, repo.Create(ctx, user))
	t.Cleanup(func() { db.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", user.ID) })

	perms := rbac.SalesUserPermissions.Clone()
	perms[rbac.ModuleCibil] = rbac.ReadOnly
	user.Permissions = perms
	require.NoError(t, repo.Update(ctx, user))

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, perms, got.Permissions)

	got.Permissions = nil
	require.NoError(t, repo.Update(ctx, got))
	got, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Permissions)

	assert.ErrorIs(t, repo.Create(ctx, &identity.User{ID: user.ID + "-dup", Email: user.Email, Name: "Dup", Role: rbac.RoleAdmin}), identity.ErrUserAlreadyExists)

	require.NoError(t, repo.Delete(ctx, user.ID))
	_, err = repo.GetByEmail(ctx, user.Email)
	assert.ErrorIs(t, err, identity.ErrUserNotFound)
}

// TestPurpose: Validates session persistence and bulk revocation.
// Scope: Database Integration Test
// Security: Session revocation
// Expected: DeleteByUserID removes every session of the user; DeleteExpired removes only expired ones.
// Test Case ID: PG-02
func TestSessionRepository_Revocation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db)
	repo := NewSessionRepository(db)

	suffix := time.Now().Format("150405.000000")
	user := &identity.User{ID: "pg-sess-" + suffix, Email: "sess-" + suffix + "@dealer.test", Name: "S", Role: rbac.RoleAdmin, Active: true}
	require.NoError(t, users.Create(ctx, user))
	t.Cleanup(func() { db.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", user.ID) })

	now := time.Now().UTC().Truncate(time.Microsecond)
	live := &session.Session{ID: "live-" + suffix, UserID: user.ID, ExpiresAt: now.Add(time.Hour), CreatedAt: now, LastSeenAt: now}
	dead := &session.Session{ID: "dead-" + suffix, UserID: user.ID, ExpiresAt: now.Add(-time.Hour), CreatedAt: now, LastSeenAt: now}
	require.NoError(t, repo.Create(ctx, live))
	require.NoError(t, repo.Create(ctx, dead))

	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
	_, err = repo.Get(ctx, dead.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	require.NoError(t, repo.Touch(ctx, live.ID, now.Add(time.Minute)))
	got, err := repo.Get(ctx, live.ID)
	require.NoError(t, err)
	assert.True(t, got.LastSeenAt.Equal(now.Add(time.Minute)))

	n, err = repo.DeleteByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
