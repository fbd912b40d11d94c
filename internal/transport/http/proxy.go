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
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/patliputra/backoffice/internal/observability/logger"
	"github.com/patliputra/backoffice/internal/rbac"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// proxyRoutes maps backend API prefixes under /api/v1 to the module that
// owns them.
var proxyRoutes = map[string]rbac.Module{
	"dashboard":     rbac.ModuleDashboard,
	"products":      rbac.ModuleProducts,
	"used-vehicles": rbac.ModuleCertifiedRefurbished,
	"leads":         rbac.ModuleLeads,
	"finance":       rbac.ModuleFinance,
	"cibil":         rbac.ModuleCibil,
	"analytics":     rbac.ModuleAnalytics,
	"dealers":       rbac.ModuleDealers,
	"banners":       rbac.ModuleBanners,
	"settings":      rbac.ModuleSettings,
	"media":         rbac.ModuleMediaLibrary,
	"offers":        rbac.ModuleOffersSchemes,
	"pages":         rbac.ModuleContentPages,
}

// newBackendProxy forwards authorized /api/v1 requests to the backend with
// the /api/v1 prefix replaced by the backend base path. The caller's token
// travels as a bearer header; console cookies never leave the gateway.
func (h *Handler) newBackendProxy() http.Handler {
	target, err := url.Parse(h.backend.BaseURL())
	if err != nil {
		slog.Error("invalid backend base URL", logger.Error(err))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, http.StatusBadGateway, "backend unavailable")
		})
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Path = strings.TrimPrefix(pr.In.URL.Path, "/api/v1")
			pr.Out.URL.RawPath = ""
			pr.SetURL(target)
			pr.SetXForwarded()

			pr.Out.Header.Del("Cookie")
			pr.Out.Header.Del("X-CSRF-Token")
			if raw := getToken(pr.In.Context()); raw != "" {
				pr.Out.Header.Set("Authorization", "Bearer "+raw)
			}
			if id := GetIdentity(pr.In.Context()); id != nil {
				pr.Out.Header.Set("X-Backoffice-User", id.ID)
				pr.Out.Header.Set("X-Backoffice-Role", string(id.Role))
			}
		},
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slog.ErrorContext(r.Context(), "backend proxy failed", logger.Path(r.URL.Path), logger.Error(err))
			respondError(w, http.StatusBadGateway, "backend unavailable")
		},
	}
}
