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

//go:build e2e

// Package e2e drives a running gateway over HTTP the way the console does:
// cookie sessions, CSRF headers and screen redirects.
//
//	BACKOFFICE_API_URL=http://127.0.0.1:8080 \
//	BOOTSTRAP_ADMIN_EMAIL=... BOOTSTRAP_ADMIN_PASSWORD=... \
//	go test -tags e2e ./tests/e2e/...
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseURL = getEnv("BACKOFFICE_API_URL", "http://127.0.0.1:8080")

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// TestClient is a browser stand-in: it keeps cookies and never follows redirects.
type TestClient struct {
	httpClient *http.Client
}

func NewTestClient() *TestClient {
	jar, _ := cookiejar.New(nil)
	return &TestClient{httpClient: &http.Client{
		Jar:     jar,
		Timeout: 10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

func (c *TestClient) Do(t *testing.T, method, path string, body any, csrf bool) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, baseURL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if csrf {
		req.Header.Set("X-CSRF-Token", "e2e")
	}
	resp, err := c.httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

func (c *TestClient) Login(t *testing.T, email, password string) map[string]any {
	t.Helper()
	resp, body := c.Do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": email, "password": password}, false)
	require.Equal(t, http.StatusOK, resp.StatusCode, "login %s", email)
	return body
}

func TestE2E_ConsoleWorkflow(t *testing.T) {
	masterEmail := os.Getenv("BOOTSTRAP_ADMIN_EMAIL")
	masterPassword := os.Getenv("BOOTSTRAP_ADMIN_PASSWORD")
	if masterEmail == "" || masterPassword == "" {
		t.Skip("BOOTSTRAP_ADMIN_EMAIL and BOOTSTRAP_ADMIN_PASSWORD are required")
	}
	if resp, err := http.Get(baseURL + "/health"); err != nil {
		t.Skipf("gateway not reachable at %s: %v", baseURL, err)
	} else {
		resp.Body.Close()
	}

	master := NewTestClient()
	sales := NewTestClient()
	salesEmail := fmt.Sprintf("e2e-sales-%d@dealer.test", time.Now().UnixNano())
	const salesPassword = "e2e-sales-password"
	var salesID string

	t.Run("Master Admin Flow", func(t *testing.T) {
		master.Login(t, masterEmail, masterPassword)

		resp, me := master.Do(t, http.MethodGet, "/api/v1/auth/me", nil, false)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Master Admin", me["roleName"])

		newUser := map[string]string{"email": salesEmail, "name": "E2E Sales", "role": "sales_user", "password": salesPassword}
		resp, _ = master.Do(t, http.MethodPost, "/api/v1/users/", newUser, false)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, "cookie request without CSRF header")

		resp, created := master.Do(t, http.MethodPost, "/api/v1/users/", newUser, true)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		salesID, _ = created["id"].(string)
		require.NotEmpty(t, salesID)
	})

	t.Run("Sales User Flow", func(t *testing.T) {
		require.NotEmpty(t, salesID)
		sales.Login(t, salesEmail, salesPassword)

		resp, me := sales.Do(t, http.MethodGet, "/api/v1/auth/me", nil, false)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "/admin", me["landing"])

		resp, _ = sales.Do(t, http.MethodGet, "/api/v1/users/", nil, false)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp, _ = sales.Do(t, http.MethodGet, "/admin/settings", nil, false)
		if resp.StatusCode != http.StatusNotFound { // console assets not deployed
			assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
			assert.Equal(t, "/admin", resp.Header.Get("Location"))
		}
	})

	t.Run("Deletion Ends Session", func(t *testing.T) {
		require.NotEmpty(t, salesID)
		resp, _ := master.Do(t, http.MethodDelete, "/api/v1/users/"+salesID, nil, true)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, _ = sales.Do(t, http.MethodGet, "/api/v1/auth/me", nil, false)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
