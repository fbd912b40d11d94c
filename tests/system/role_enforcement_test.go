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

// Package system runs the gateway end to end against a real PostgreSQL database.
//
// Test Execution:
//
//	INTEGRATION_TEST=true go test -v ./tests/system/...
//
// Prerequisites:
//
//	a PostgreSQL instance reachable through the DB_* variables
//
// Test Categories:
//   - SYS-*: role enforcement through the full request path
package system

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/patliputra/backoffice/internal/audit"
	"github.com/patliputra/backoffice/internal/guard"
	"github.com/patliputra/backoffice/internal/id"
	"github.com/patliputra/backoffice/internal/identity"
	"github.com/patliputra/backoffice/internal/rbac"
	"github.com/patliputra/backoffice/internal/session"
	"github.com/patliputra/backoffice/internal/store/postgres"
	"github.com/patliputra/backoffice/internal/token"
	transport "github.com/patliputra/backoffice/internal/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const password = "system-test-password"

// testDB is the shared database connection for system tests
var testDB *postgres.DB

func TestMain(m *testing.M) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		os.Exit(0)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         getEnvOrDefault("DB_HOST", "localhost"),
		Port:         getEnvOrDefault("DB_PORT", "5432"),
		User:         getEnvOrDefault("DB_USER", "backoffice"),
		Password:     getEnvOrDefault("DB_PASSWORD", "backoffice_dev_password"),
		Database:     getEnvOrDefault("DB_NAME", "backoffice"),
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	})
	if err != nil {
		panic("failed to connect to test database: " + err.Error())
	}
	testDB = db

	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		panic("failed to migrate test database: " + err.Error())
	}

	code := m.Run()
	testDB.Close()
	os.Exit(code)
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

type gateway struct {
	t        *testing.T
	srv      *httptest.Server
	identity *identity.Service
	sessions *postgres.SessionRepository
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	if testDB == nil {
		t.Skip("system test requires database (set INTEGRATION_TEST=true)")
	}

	auditLogger := audit.NewSlogLogger()
	sessions := postgres.NewSessionRepository(testDB)
	idSvc := identity.NewService(
		postgres.NewUserRepository(testDB),
		identity.NewPasswordHasher(1024, 1, 1, 16, 32),
		auditLogger, 5, 5*time.Minute,
	)
	issuer, err := token.NewIssuer(strings.Repeat("s", 32), "backoffice-system")
	require.NoError(t, err)

	h := transport.NewHandler(
		idSvc,
		session.NewService(sessions, auditLogger, time.Hour, 30*time.Minute),
		issuer,
		guard.New(rbac.Default, guard.WithAuditLogger(auditLogger)),
		nil,
		auditLogger,
		transport.SessionConfig{CookieName: "admin_token", CookiePath: "/", CookieHTTPOnly: true, CookieSameSite: http.SameSiteLaxMode},
	)
	srv := httptest.NewServer(transport.NewRouter(h, transport.NewRateLimiter(1000, 1000), nil))
	t.Cleanup(srv.Close)

	return &gateway{t: t, srv: srv, identity: idSvc, sessions: sessions}
}

// account provisions a user with a unique email so reruns against the same
// database do not collide.
func (g *gateway) account(role rbac.Role) (userID, email string) {
	g.t.Helper()
	ctx := context.Background()
	email = strings.ToLower(string(role)) + "-" + id.NewUUIDv7() + "@dealer.test"
	u, err := g.identity.Provision(ctx, audit.ActorSystemBootstrap, email, "System "+string(role), role)
	require.NoError(g.t, err)
	require.NoError(g.t, g.identity.AddPassword(ctx, u.ID, password))
	return u.ID, email
}

func (g *gateway) login(email string) string {
	g.t.Helper()
	resp, body := g.call(http.MethodPost, "/api/v1/auth/login", "", transport.LoginRequest{Email: email, Password: password})
	require.Equal(g.t, http.StatusOK, resp.StatusCode, string(body))
	var out transport.LoginResponse
	require.NoError(g.t, json.Unmarshal(body, &out))
	return out.Token
}

func (g *gateway) call(method, path, bearer string, payload any) (*http.Response, []byte) {
	g.t.Helper()
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(g.t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, g.srv.URL+path, reader)
	require.NoError(g.t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := g.srv.Client().Do(req)
	require.NoError(g.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(g.t, err)
	return resp, body
}

func (g *gateway) allowed(bearer string, module rbac.Module, action rbac.Action) bool {
	g.t.Helper()
	resp, body := g.call(http.MethodPost, "/api/v1/rbac/check", bearer, transport.CheckRequest{Module: string(module), Action: string(action)})
	require.Equal(g.t, http.StatusOK, resp.StatusCode, string(body))
	var out transport.CheckResponse
	require.NoError(g.t, json.Unmarshal(body, &out))
	return out.Allowed
}

// TestPurpose: Validates that overrides written by a master admin are stored and enforced on the next request.
// Scope: System Test
// Security: Per-user permission overrides persisted in PostgreSQL
// Expected: A sales user gains products view after the override and loses it after the override is cleared.
// Test Case ID: SYS-01
func TestSystem_OverridesApplyOnNextRequest(t *testing.T) {
	g := newGateway(t)
	_, masterEmail := g.account(rbac.RoleMasterAdmin)
	salesID, salesEmail := g.account(rbac.RoleSalesUser)
	master := g.login(masterEmail)
	sales := g.login(salesEmail)

	assert.False(t, g.allowed(sales, rbac.ModuleProducts, rbac.ActionView))

	overrides := rbac.SalesUserPermissions.Clone()
	overrides[rbac.ModuleProducts] = rbac.ReadOnly
	resp, body := g.call(http.MethodPut, "/api/v1/users/"+salesID+"/permissions", master,
		transport.SetPermissionsRequest{Permissions: overrides})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	assert.True(t, g.allowed(sales, rbac.ModuleProducts, rbac.ActionView))
	assert.False(t, g.allowed(sales, rbac.ModuleProducts, rbac.ActionEdit))

	resp, body = g.call(http.MethodDelete, "/api/v1/users/"+salesID+"/permissions", master, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.False(t, g.allowed(sales, rbac.ModuleProducts, rbac.ActionView))
}

// TestPurpose: Validates that deactivating an account removes its stored sessions.
// Scope: System Test
// Security: Session revocation on deactivation
// Expected: The deactivated user's token is rejected and no session rows remain for them.
// Test Case ID: SYS-02
func TestSystem_DeactivationRevokesSessions(t *testing.T) {
	g := newGateway(t)
	_, masterEmail := g.account(rbac.RoleMasterAdmin)
	adminID, adminEmail := g.account(rbac.RoleAdmin)
	master := g.login(masterEmail)
	admin := g.login(adminEmail)

	resp, _ := g.call(http.MethodGet, "/api/v1/auth/me", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	inactive := false
	resp, body := g.call(http.MethodPut, "/api/v1/users/"+adminID+"/status", master, transport.SetStatusRequest{IsActive: &inactive})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, _ = g.call(http.MethodGet, "/api/v1/auth/me", admin, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	removed, err := g.sessions.DeleteByUserID(context.Background(), adminID)
	require.NoError(t, err)
	assert.Zero(t, removed, "sessions should already be gone")
}

// TestPurpose: Validates that the role defaults hold end to end for admin and sales users.
// Scope: System Test
// Security: Role-based route protection
// Expected: Admin reads settings but cannot manage users; sales cannot read settings.
// Test Case ID: SYS-03
func TestSystem_RoleDefaults(t *testing.T) {
	g := newGateway(t)
	_, adminEmail := g.account(rbac.RoleAdmin)
	_, salesEmail := g.account(rbac.RoleSalesUser)
	admin := g.login(adminEmail)
	sales := g.login(salesEmail)

	assert.True(t, g.allowed(admin, rbac.ModuleSettings, rbac.ActionView))
	assert.False(t, g.allowed(admin, rbac.ModuleSettings, rbac.ActionEdit))

	resp, _ := g.call(http.MethodGet, "/api/v1/users/", admin, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	assert.False(t, g.allowed(sales, rbac.ModuleSettings, rbac.ActionView))
	assert.True(t, g.allowed(sales, rbac.ModuleLeads, rbac.ActionExport))
	assert.False(t, g.allowed(sales, rbac.ModuleLeads, rbac.ActionDelete))
}
