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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/patliputra/backoffice/internal/auth"
	"github.com/patliputra/backoffice/internal/identity"
	"github.com/patliputra/backoffice/internal/rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu    sync.Mutex
	users map[string]*identity.Identity // by email
	me    *identity.Identity
}

func newFakeGateway(t *testing.T) (*fakeGateway, *httptest.Server) {
	t.Helper()
	g := &fakeGateway{users: map[string]*identity.Identity{
		"sales@dealer.test": {ID: "u-sales", Name: "Sunita", Email: "sales@dealer.test", Role: rbac.RoleSalesUser, IsActive: true},
		"admin@dealer.test": {ID: "u-admin", Name: "Arjun", Email: "admin@dealer.test", Role: rbac.RoleAdmin, IsActive: true},
	}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds auth.Credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		g.mu.Lock()
		defer g.mu.Unlock()
		id, ok := g.users[creds.Email]
		if !ok || creds.Password != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		g.me = id
		json.NewEncoder(w).Encode(auth.LoginResult{Token: "tok-" + id.ID, User: id})
	})
	mux.HandleFunc("GET /api/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.me == nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"user": g.me})
	})
	mux.HandleFunc("POST /api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.me = nil
		g.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return g, srv
}

type harness struct {
	store *auth.MemoryStore
	url   string
}

func (h *harness) run(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	c := &cli{
		in:       strings.NewReader(stdin),
		out:      &out,
		errOut:   &errOut,
		provider: auth.NewProvider(h.store, auth.NewRemoteAuthenticator(h.url, 5*time.Second)),
	}
	code := c.run(context.Background(), args)
	return code, out.String(), errOut.String()
}

func newHarness(t *testing.T) (*fakeGateway, *harness) {
	t.Helper()
	t.Setenv(EnvPassword, "")
	g, srv := newFakeGateway(t)
	return g, &harness{store: auth.NewMemoryStore(), url: srv.URL}
}

func TestLoginWhoamiLogout(t *testing.T) {
	_, h := newHarness(t)

	code, out, _ := h.run(t, "pw\n", "login", "--email", "sales@dealer.test")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "logged in as Sunita <sales@dealer.test> (Sales User)\n", out)

	tok, ok, err := h.store.Get(context.Background(), auth.KeyToken)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tok-u-sales", tok)

	code, out, _ = h.run(t, "", "whoami")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "role:   Sales User")

	code, out, _ = h.run(t, "", "logout")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "logged out\n", out)

	code, _, errOut := h.run(t, "", "whoami")
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, errOut, "not logged in")
}

func TestLoginFailure(t *testing.T) {
	_, h := newHarness(t)

	code, _, errOut := h.run(t, "", "login", "--email", "sales@dealer.test", "--password", "nope")
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, errOut, "invalid email or password")

	_, ok, _ := h.store.Get(context.Background(), auth.KeyToken)
	assert.False(t, ok, "failed login must not persist anything")

	code, _, _ = h.run(t, "", "login")
	assert.Equal(t, exitUsage, code)
}

func TestCanAndMenu(t *testing.T) {
	_, h := newHarness(t)
	code, _, _ := h.run(t, "", "login", "--email", "sales@dealer.test", "--password", "pw")
	require.Equal(t, exitOK, code)

	code, out, _ := h.run(t, "", "can", "leads", "export")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "allowed\n", out)

	code, out, _ = h.run(t, "", "can", "leads", "delete")
	assert.Equal(t, exitFailed, code)
	assert.Equal(t, "denied\n", out)

	code, _, _ = h.run(t, "", "can", "payroll", "view")
	assert.Equal(t, exitUsage, code)

	code, out, _ = h.run(t, "", "menu")
	require.Equal(t, exitOK, code)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "Dashboard"))
	assert.Contains(t, lines[1], "/admin/leads")
}

// TestPurpose: Validates the CLI screen guard for anonymous, permitted and forbidden paths.
// Scope: Unit Test
// Security: Route protection at the CLI enforcement point
// Expected: Anonymous is sent to /admin/login; sales opens leads but is sent to /admin for settings.
// Test Case ID: CLI-01
func TestOpen(t *testing.T) {
	_, h := newHarness(t)

	code, out, _ := h.run(t, "", "open", "/admin/leads")
	assert.Equal(t, exitFailed, code)
	assert.Equal(t, "redirect /admin/login (unauthenticated)\n", out)

	code, _, _ = h.run(t, "", "login", "--email", "sales@dealer.test", "--password", "pw")
	require.Equal(t, exitOK, code)

	code, out, _ = h.run(t, "", "open", "/admin/leads/L001")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "open /admin/leads/L001 (Leads)\n", out)

	code, out, _ = h.run(t, "", "open", "/admin/settings")
	assert.Equal(t, exitFailed, code)
	assert.Equal(t, "redirect /admin (forbidden)\n", out)
}

func TestWhoamiRefreshPicksUpRoleChange(t *testing.T) {
	g, h := newHarness(t)
	code, _, _ := h.run(t, "", "login", "--email", "sales@dealer.test", "--password", "pw")
	require.Equal(t, exitOK, code)

	g.mu.Lock()
	promoted := *g.me
	promoted.Role = rbac.RoleAdmin
	g.me = &promoted
	g.mu.Unlock()

	code, out, _ := h.run(t, "", "whoami")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "Sales User", "cached identity until refreshed")

	code, out, _ = h.run(t, "", "whoami", "--refresh")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "role:   Admin")

	code, out, _ = h.run(t, "", "can", "products", "delete")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "allowed\n", out)
}

func TestMatrixFlag(t *testing.T) {
	_, h := newHarness(t)
	code, _, errOut := h.run(t, "", "--matrix", "/does/not/exist.yaml", "menu")
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, errOut, "exist.yaml")

	code, _, _ = h.run(t, "")
	assert.Equal(t, exitUsage, code)

	code, _, _ = h.run(t, "", "frobnicate")
	assert.Equal(t, exitUsage, code)
}
