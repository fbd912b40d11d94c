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
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/patliputra/backoffice/internal/guard"
	"github.com/patliputra/backoffice/internal/identity"
	"github.com/patliputra/backoffice/internal/observability/logger"
	"github.com/patliputra/backoffice/internal/rbac"
)

var (
	errNoToken        = errors.New("not authenticated")
	errInvalidSession = errors.New("invalid or expired session")
	errInactive       = errors.New("account is inactive")
)

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// authenticate resolves the request's token to a live session and the
// user's current record. The user is re-read on every call so role,
// status and override changes apply immediately.
func (h *Handler) authenticate(r *http.Request) (*identity.Identity, string, string, error) {
	raw := h.requestToken(r)
	if raw == "" {
		return nil, "", "", errNoToken
	}

	claims, err := h.tokens.Parse(raw)
	if err != nil {
		return nil, "", "", errInvalidSession
	}

	sess, err := h.sessionService.Get(r.Context(), claims.SessionID)
	if err != nil || sess.UserID != claims.Subject {
		return nil, "", "", errInvalidSession
	}

	user, err := h.identityService.GetUser(r.Context(), sess.UserID)
	if err != nil {
		return nil, "", "", errInvalidSession
	}
	if !user.Active {
		if err := h.sessionService.Destroy(r.Context(), sess.ID); err != nil {
			slog.WarnContext(r.Context(), "failed to destroy session of inactive user", logger.Error(err))
		}
		return nil, "", "", errInactive
	}

	if _, err := h.sessionService.Refresh(r.Context(), sess.ID); err != nil {
		slog.ErrorContext(r.Context(), "failed to refresh session", logger.Error(err))
	}

	return user.Identity(), sess.ID, raw, nil
}

// AuthMiddleware validates the bearer token and adds the identity to context
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, sessionID, raw, err := h.authenticate(r)
		if err != nil {
			if !errors.Is(err, errNoToken) {
				h.clearSessionCookie(w)
			}
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}

		ctx := withPrincipal(r.Context(), id, sessionID, raw)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CSRFMiddleware protects cookie-authenticated state-changing requests by
// requiring the X-CSRF-Token header. Requests carrying an Authorization
// header are not exposed to cross-site submission and pass through.
func (h *Handler) CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := bearerToken(r); ok {
			next.ServeHTTP(w, r)
			return
		}

		if r.Header.Get("X-CSRF-Token") == "" {
			slog.WarnContext(r.Context(), "missing CSRF token header", "method", r.Method, "path", r.URL.Path)
			respondError(w, http.StatusForbidden, "CSRF protection: X-CSRF-Token header is required for state-changing operations")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireModule lets the request through only if the caller may perform
// action on module.
func (h *Handler) RequireModule(module rbac.Module, action rbac.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !h.allow(w, r, module, action) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CleanPathOnly rejects requests whose decoded path is not in canonical
// form. Routes pick the module from the literal path, so a path with dot
// segments or repeated slashes could be checked against one module and
// resolve to another further along.
func CleanPathOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isCleanPath(r.URL.Path) {
			respondError(w, http.StatusBadRequest, "invalid path")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isCleanPath(p string) bool {
	if p == "" || p == "/" {
		return true
	}
	trimmed := strings.TrimSuffix(p, "/")
	return strings.HasPrefix(p, "/") && path.Clean(trimmed) == trimmed
}

// RequireMethodAction is RequireModule with the action taken from the
// request method. Methods with no action are rejected.
func (h *Handler) RequireMethodAction(module rbac.Module) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			action, ok := rbac.ActionForMethod(r.Method)
			if !ok {
				respondError(w, http.StatusMethodNotAllowed, "method not allowed")
				return
			}
			if !h.allow(w, r, module, action) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) allow(w http.ResponseWriter, r *http.Request, module rbac.Module, action rbac.Action) bool {
	d := h.guard.Check(r.Context(), GetIdentity(r.Context()), module, action)
	if d.Allowed {
		return true
	}
	switch d.Reason {
	case guard.ReasonUnauthenticated, guard.ReasonInactive:
		respondError(w, http.StatusUnauthorized, "not authenticated")
	default:
		respondError(w, http.StatusForbidden, "insufficient permissions")
	}
	return false
}

// principal is used by handlers that run outside AuthMiddleware.
func (h *Handler) principal(r *http.Request) (context.Context, *identity.Identity) {
	id, sessionID, raw, err := h.authenticate(r)
	if err != nil {
		return r.Context(), nil
	}
	return withPrincipal(r.Context(), id, sessionID, raw), id
}
