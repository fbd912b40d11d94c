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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/patliputra/backoffice/internal/audit"
	"github.com/patliputra/backoffice/internal/backend"
	"github.com/patliputra/backoffice/internal/guard"
	"github.com/patliputra/backoffice/internal/identity"
	"github.com/patliputra/backoffice/internal/rbac"
	"github.com/patliputra/backoffice/internal/session"
	"github.com/patliputra/backoffice/internal/store/memory"
	"github.com/patliputra/backoffice/internal/token"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct-horse-battery"

var testNow = time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) Log(ctx context.Context, event audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingAudit) ofType(eventType string) []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Event
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type backendRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
}

type fakeBackend struct {
	*httptest.Server
	mu       sync.Mutex
	requests []backendRequest
}

func (b *fakeBackend) last() (backendRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.requests) == 0 {
		return backendRequest{}, false
	}
	return b.requests[len(b.requests)-1], true
}

func (b *fakeBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests = append(b.requests, backendRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
		})
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/api/leads" && r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`[{"id":"L001","customerName":"Rajesh Kumar","email":"rajesh@example.com","mobile":"9876543210","brand":"JCB","productName":"JCB 3DX","source":"website","status":"new","assignedTo":"Ravi","createdAt":"2026-01-10T10:30:00Z"}]`))
		case r.URL.Path == "/api/cibil" && r.URL.Query().Get("search") == "fail":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"bureau timeout"}`))
		case r.URL.Path == "/api/cibil" && r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`[{"id":"C001","customerName":"Amit Singh","mobile":"9123456780","score":742,"scoreBand":"Good","checkedAt":"2026-01-12T09:00:00Z"}]`))
		default:
			_, _ = w.Write([]byte(`{"ok":true}`))
		}
	}))
	t.Cleanup(b.Close)
	return b
}

type testEnv struct {
	t        *testing.T
	router   http.Handler
	handler  *Handler
	identity *identity.Service
	audit    *recordingAudit
	backend  *fakeBackend
	ids      map[string]string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	rec := &recordingAudit{}
	// small argon2 parameters keep the suite fast
	idSvc := identity.NewService(memory.NewUserRepository(), identity.NewPasswordHasher(1024, 1, 1, 16, 32), rec, 3, 5*time.Minute)
	sessSvc := session.NewService(memory.NewSessionRepository(), rec, 8*time.Hour, 30*time.Minute)
	tokens, err := token.NewIssuer(strings.Repeat("k", 32), "backoffice-test")
	require.NoError(t, err)

	fb := newFakeBackend(t)
	h := NewHandler(
		idSvc,
		sessSvc,
		tokens,
		guard.New(rbac.Default, guard.WithAuditLogger(rec)),
		backend.New(fb.URL+"/api", 5*time.Second),
		rec,
		SessionConfig{
			CookieName:     "admin_token",
			CookiePath:     "/",
			CookieHTTPOnly: true,
			CookieSameSite: http.SameSiteLaxMode,
		},
	)
	h.now = func() time.Time { return testNow }

	console := fstest.MapFS{
		"index.html":    {Data: []byte("<html>console</html>")},
		"assets/app.js": {Data: []byte("console.log('app')")},
	}

	env := &testEnv{
		t:        t,
		router:   NewRouter(h, NewRateLimiter(1000, 1000), console),
		handler:  h,
		identity: idSvc,
		audit:    rec,
		backend:  fb,
		ids:      map[string]string{},
	}
	env.seed("master@dealer.test", rbac.RoleMasterAdmin)
	env.seed("admin@dealer.test", rbac.RoleAdmin)
	env.seed("sales@dealer.test", rbac.RoleSalesUser)
	return env
}

func (e *testEnv) seed(email string, role rbac.Role) string {
	e.t.Helper()
	ctx := context.Background()
	u, err := e.identity.Provision(ctx, audit.ActorSystemBootstrap, email, "Test "+string(role), role)
	require.NoError(e.t, err)
	require.NoError(e.t, e.identity.AddPassword(ctx, u.ID, testPassword))
	e.ids[email] = u.ID
	return u.ID
}

func (e *testEnv) login(email string) string {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: email, Password: testPassword})
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	var resp LoginResponse
	require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(e.t, resp.Token)
	return resp.Token
}

func (e *testEnv) do(method, path, bearer string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) doCookie(method, path, cookie string, header map[string]string) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "admin_token", Value: cookie})
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
