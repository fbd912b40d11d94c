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

// Package backend is a typed client for the dealership REST API that owns
// leads, finance applications and CIBIL checks. The gateway forwards the
// caller's bearer token so the backend sees the same principal.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Lead is a sales enquiry.
type Lead struct {
	ID           string    `json:"id"`
	CustomerName string    `json:"customerName"`
	Email        string    `json:"email"`
	Mobile       string    `json:"mobile"`
	ProductID    string    `json:"productId,omitempty"`
	ProductName  string    `json:"productName,omitempty"`
	Brand        string    `json:"brand,omitempty"`
	Source       string    `json:"source"`
	Status       string    `json:"status"`
	AssignedTo   string    `json:"assignedTo,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CibilCheck is one credit bureau lookup.
type CibilCheck struct {
	ID           string    `json:"id"`
	LeadID       string    `json:"leadId,omitempty"`
	CustomerName string    `json:"customerName"`
	Mobile       string    `json:"mobile"`
	Score        int       `json:"score"`
	ScoreBand    string    `json:"scoreBand"`
	CheckedAt    time.Time `json:"checkedAt"`
}

// LeadFilter narrows ListLeads. Zero fields are not sent.
type LeadFilter struct {
	Status   string
	Brand    string
	Source   string
	Search   string
	DateFrom time.Time
	DateTo   time.Time
}

func (f LeadFilter) values() url.Values {
	v := url.Values{}
	setIf(v, "status", f.Status)
	setIf(v, "brand", f.Brand)
	setIf(v, "source", f.Source)
	setIf(v, "search", f.Search)
	if !f.DateFrom.IsZero() {
		v.Set("dateFrom", f.DateFrom.Format(time.DateOnly))
	}
	if !f.DateTo.IsZero() {
		v.Set("dateTo", f.DateTo.Format(time.DateOnly))
	}
	return v
}

// CibilFilter narrows ListCibilChecks. Zero fields are not sent.
type CibilFilter struct {
	Search   string
	ScoreMin int
	ScoreMax int
}

func (f CibilFilter) values() url.Values {
	v := url.Values{}
	setIf(v, "search", f.Search)
	if f.ScoreMin > 0 {
		v.Set("scoreMin", strconv.Itoa(f.ScoreMin))
	}
	if f.ScoreMax > 0 {
		v.Set("scoreMax", strconv.Itoa(f.ScoreMax))
	}
	return v
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

// APIError is returned for any non-2xx backend response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %d", e.StatusCode)
}

// Client talks to the REST backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the backend at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
}

// NewWithHTTPClient creates a client using httpClient.
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// BaseURL returns the backend root all requests are made against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListLeads returns the leads matching filter.
func (c *Client) ListLeads(ctx context.Context, token string, filter LeadFilter) ([]Lead, error) {
	var leads []Lead
	if err := c.getJSON(ctx, token, "/leads", filter.values(), &leads); err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	return leads, nil
}

// ListCibilChecks returns the CIBIL checks matching filter.
func (c *Client) ListCibilChecks(ctx context.Context, token string, filter CibilFilter) ([]CibilCheck, error) {
	var checks []CibilCheck
	if err := c.getJSON(ctx, token, "/cibil", filter.values(), &checks); err != nil {
		return nil, fmt.Errorf("list cibil checks: %w", err)
	}
	return checks, nil
}

func (c *Client) getJSON(ctx context.Context, token, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
