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

// Package http exposes the gateway: authentication, user administration,
// the permission matrix, guarded exports, the guarded backend proxy and the
// console itself.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patliputra/backoffice/internal/audit"
	"github.com/patliputra/backoffice/internal/backend"
	"github.com/patliputra/backoffice/internal/guard"
	"github.com/patliputra/backoffice/internal/identity"
	"github.com/patliputra/backoffice/internal/observability/logger"
	"github.com/patliputra/backoffice/internal/rbac"
	"github.com/patliputra/backoffice/internal/session"
	"github.com/patliputra/backoffice/internal/token"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Recorder receives gateway counters. metrics.Meter satisfies it.
type Recorder interface {
	RecordLogin(ctx context.Context, outcome string)
	RecordExport(ctx context.Context, kind string, rows int)
}

type nopRecorder struct{}

func (nopRecorder) RecordLogin(context.Context, string)       {}
func (nopRecorder) RecordExport(context.Context, string, int) {}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService *identity.Service
	sessionService  *session.Service
	tokens          *token.Issuer
	guard           *guard.Guard
	backend         *backend.Client
	auditLogger     audit.Logger
	recorder        Recorder
	sessionConfig   SessionConfig
	clientIP        ClientIP
	now             func() time.Time
}

// SessionConfig holds console cookie configuration
type SessionConfig struct {
	CookieName     string
	CookieDomain   string
	CookiePath     string
	CookieSecure   bool
	CookieHTTPOnly bool
	CookieSameSite http.SameSite
}

// NewHandler creates a new HTTP handler
func NewHandler(
	identityService *identity.Service,
	sessionService *session.Service,
	tokens *token.Issuer,
	g *guard.Guard,
	backendClient *backend.Client,
	auditLogger audit.Logger,
	sessionConfig SessionConfig,
) *Handler {
	return &Handler{
		identityService: identityService,
		sessionService:  sessionService,
		tokens:          tokens,
		guard:           g,
		backend:         backendClient,
		auditLogger:     auditLogger,
		recorder:        nopRecorder{},
		sessionConfig:   sessionConfig,
		now:             time.Now,
	}
}

// WithRecorder reports login and export counts to r.
func (h *Handler) WithRecorder(r Recorder) *Handler {
	if r != nil {
		h.recorder = r
	}
	return h
}

// WithTrustedProxies makes the handler read client addresses from
// X-Forwarded-For when the request arrives through one of the given proxies.
func (h *Handler) WithTrustedProxies(trusted []netip.Prefix) *Handler {
	h.clientIP = NewClientIP(trusted)
	return h
}

// NewRouter creates the gateway router. console may be nil, in which case
// the console screens are not served.
func NewRouter(h *Handler, rateLimiter *RateLimiter, console fs.FS) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(CleanPathOnly)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(RateLimitMiddleware(rateLimiter, h.clientIP.From)).Post("/auth/login", h.Login)
		r.Post("/auth/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)
			r.Use(h.CSRFMiddleware)

			r.Get("/auth/me", h.GetCurrentUser)
			r.Post("/auth/change-password", h.ChangePassword)

			r.With(h.RequireModule(rbac.ModuleUsers, rbac.ActionView)).Get("/rbac/matrix", h.GetMatrix)
			r.Post("/rbac/check", h.CheckPermission)

			r.Route("/users", func(r chi.Router) {
				r.With(h.RequireModule(rbac.ModuleUsers, rbac.ActionView)).Get("/", h.ListUsers)
				r.With(h.RequireModule(rbac.ModuleUsers, rbac.ActionCreate)).Post("/", h.CreateUser)
				r.Route("/{userID}", func(r chi.Router) {
					r.With(h.RequireModule(rbac.ModuleUsers, rbac.ActionView)).Get("/", h.GetUser)
					r.With(h.RequireModule(rbac.ModuleUsers, rbac.ActionDelete)).Delete("/", h.DeleteUser)
					r.Group(func(r chi.Router) {
						r.Use(h.RequireModule(rbac.ModuleUsers, rbac.ActionEdit))
						r.Put("/role", h.ChangeUserRole)
						r.Put("/status", h.SetUserStatus)
						r.Put("/permissions", h.SetUserPermissions)
						r.Delete("/permissions", h.ClearUserPermissions)
					})
				})
			})

			r.With(h.RequireModule(rbac.ModuleLeads, rbac.ActionExport)).Get("/leads/export", h.ExportLeads)
			r.With(h.RequireModule(rbac.ModuleCibil, rbac.ActionExport)).Get("/cibil/export", h.ExportCibil)

			if h.backend != nil {
				proxy := h.newBackendProxy()
				for prefix, module := range proxyRoutes {
					guarded := h.RequireMethodAction(module)(proxy)
					r.Handle("/"+prefix, guarded)
					r.Handle("/"+prefix+"/*", guarded)
				}
			}
		})
	})

	if console != nil {
		c := h.Console(console)
		r.Handle("/admin", c)
		r.Handle("/admin/*", c)
	}

	return r
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: "backoffice",
	})
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the bearer token and the identity it belongs to.
type LoginResponse struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expiresAt"`
	User      *identity.Identity `json:"user"`
}

// Login authenticates credentials, opens a server-side session and returns
// a bearer token bound to it. The token is also set as the console cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.identityService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrAccountLocked):
			h.recorder.RecordLogin(r.Context(), "locked")
			respondError(w, http.StatusLocked, "account is temporarily locked")
		case errors.Is(err, identity.ErrAccountInactive):
			h.recorder.RecordLogin(r.Context(), "inactive")
			respondError(w, http.StatusForbidden, "account is inactive")
		case errors.Is(err, identity.ErrInvalidCredentials):
			h.recorder.RecordLogin(r.Context(), "invalid")
			respondError(w, http.StatusUnauthorized, "invalid credentials")
		default:
			slog.ErrorContext(r.Context(), "authentication failed", logger.Error(err))
			respondError(w, http.StatusInternalServerError, "authentication failed")
		}
		return
	}

	sess, err := h.sessionService.Create(r.Context(), user.ID, h.clientIP.From(r), r.UserAgent())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to create session", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	raw, err := h.tokens.Issue(user.ID, sess.ID, user.Role, sess.ExpiresAt)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to issue token", logger.Error(err))
		_ = h.sessionService.Destroy(r.Context(), sess.ID)
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	h.setSessionCookie(w, raw, sess.ExpiresAt)
	h.recorder.RecordLogin(r.Context(), "success")

	respondJSON(w, http.StatusOK, LoginResponse{
		Token:     raw,
		ExpiresAt: sess.ExpiresAt,
		User:      user.Identity(),
	})
}

// Logout destroys the session behind the presented token, if any. It
// always succeeds so clients can call it unconditionally.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if raw := h.requestToken(r); raw != "" {
		if claims, err := h.tokens.Parse(raw); err == nil {
			if err := h.sessionService.Destroy(r.Context(), claims.SessionID); err != nil {
				slog.WarnContext(r.Context(), "failed to destroy session", logger.Error(err))
			}
			h.auditLogger.Log(r.Context(), audit.Event{
				Type:      audit.TypeLogout,
				ActorID:   claims.Subject,
				Resource:  audit.ResourceSession,
				IPAddress: h.clientIP.From(r),
				UserAgent: r.UserAgent(),
			})
		}
	}

	h.clearSessionCookie(w)

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "logged out successfully",
	})
}

// MenuItem is one entry of the console navigation.
type MenuItem struct {
	Module rbac.Module `json:"module"`
	Label  string      `json:"label"`
	Path   string      `json:"path"`
}

// MeResponse describes the caller.
type MeResponse struct {
	User        *identity.Identity       `json:"user"`
	RoleName    string                   `json:"roleName"`
	Permissions rbac.ModulePermissionSet `json:"permissions"`
	Menu        []MenuItem               `json:"menu"`
	Landing     string                   `json:"landing"`
}

// GetCurrentUser returns the caller's identity, effective permissions and menu.
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	id := GetIdentity(r.Context())
	matrix := h.guard.Matrix()

	respondJSON(w, http.StatusOK, MeResponse{
		User:        id,
		RoleName:    id.Role.DisplayName(),
		Permissions: matrix.ResolveEffectivePermissions(id),
		Menu:        menuFor(matrix.AccessibleModulesFor(id)),
		Landing:     h.guard.Landing(id),
	})
}

func menuFor(modules []rbac.Module) []MenuItem {
	out := make([]MenuItem, 0, len(modules))
	for _, m := range modules {
		out = append(out, MenuItem{Module: m, Label: m.Label(), Path: m.Path()})
	}
	return out
}

// ChangePasswordRequest represents password change data
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

// ChangePassword changes the caller's password and ends their other sessions.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := GetUserID(r.Context())
	err := h.identityService.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidCredentials):
			respondError(w, http.StatusUnauthorized, "invalid old password")
		case errors.Is(err, identity.ErrWeakPassword):
			respondError(w, http.StatusBadRequest, "new password does not meet security requirements")
		default:
			slog.ErrorContext(r.Context(), "failed to change password", logger.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to change password")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "password changed successfully",
	})
}

// Helper functions
func (h *Handler) setSessionCookie(w http.ResponseWriter, value string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.sessionConfig.CookieName,
		Value:    value,
		Path:     h.sessionConfig.CookiePath,
		Domain:   h.sessionConfig.CookieDomain,
		Secure:   h.sessionConfig.CookieSecure,
		HttpOnly: h.sessionConfig.CookieHTTPOnly,
		SameSite: h.sessionConfig.CookieSameSite,
		Expires:  expiresAt,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   h.sessionConfig.CookieName,
		Value:  "",
		Path:   h.sessionConfig.CookiePath,
		Domain: h.sessionConfig.CookieDomain,
		MaxAge: -1,
	})
}

// requestToken returns the bearer token from the Authorization header, or
// failing that from the console cookie.
func (h *Handler) requestToken(r *http.Request) string {
	if raw, ok := bearerToken(r); ok {
		return raw
	}
	cookie, err := r.Cookie(h.sessionConfig.CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
