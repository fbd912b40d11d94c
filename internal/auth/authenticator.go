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

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patliputra/backoffice/internal/identity"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account is disabled or locked")
	ErrUnauthorized       = errors.New("not authenticated")
	ErrInvalidResponse    = errors.New("invalid authentication response")
)

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
}

// LoginResult is the login response body.
type LoginResult struct {
	Token string             `json:"token"`
	User  *identity.Identity `json:"user"`
}

// Authenticator is the external authentication endpoint.
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (*LoginResult, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context, token string) (*identity.Identity, error)
}

// StatusError is a non-success response the caller has no sentinel for.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("auth endpoint returned %d", e.StatusCode)
	}
	return fmt.Sprintf("auth endpoint returned %d: %s", e.StatusCode, e.Message)
}

// RemoteAuthenticator talks to the gateway's /api/v1/auth endpoints.
type RemoteAuthenticator struct {
	baseURL string
	client  *http.Client
}

// NewRemoteAuthenticator creates a client for the gateway at baseURL.
func NewRemoteAuthenticator(baseURL string, timeout time.Duration) *RemoteAuthenticator {
	return &RemoteAuthenticator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Login exchanges credentials for a token and identity.
func (a *RemoteAuthenticator) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("failed to encode credentials: %w", err)
	}

	resp, err := a.do(ctx, http.MethodPost, "/api/v1/auth/login", "", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, ErrInvalidCredentials
	case http.StatusForbidden, http.StatusLocked:
		return nil, ErrAccountDisabled
	default:
		return nil, statusError(resp)
	}

	var result LoginResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &result, nil
}

// Logout revokes token server-side.
func (a *RemoteAuthenticator) Logout(ctx context.Context, token string) error {
	resp, err := a.do(ctx, http.MethodPost, "/api/v1/auth/logout", token, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	return nil
}

// Me fetches the identity token currently belongs to.
func (a *RemoteAuthenticator) Me(ctx context.Context, token string) (*identity.Identity, error) {
	resp, err := a.do(ctx, http.MethodGet, "/api/v1/auth/me", token, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthorized
	default:
		return nil, statusError(resp)
	}

	var body struct {
		User *identity.Identity `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if body.User == nil {
		return nil, ErrInvalidResponse
	}
	return body.User, nil
}

func (a *RemoteAuthenticator) do(ctx context.Context, method, path, token string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &body) != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: body.Error}
}
