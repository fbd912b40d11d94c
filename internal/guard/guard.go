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

// Package guard decides whether an identity may reach a console screen or
// API route, and where to send it when it may not.
package guard

import (
	"context"
	"log/slog"

	"github.com/patliputra/backoffice/internal/audit"
	"github.com/patliputra/backoffice/internal/identity"
	"github.com/patliputra/backoffice/internal/observability/logger"
	"github.com/patliputra/backoffice/internal/observability/tracing"
	"github.com/patliputra/backoffice/internal/rbac"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultLoginPath is where unauthenticated visitors are sent.
const DefaultLoginPath = "/admin/login"

// Reason explains a decision.
type Reason string

const (
	ReasonAllowed         Reason = "allowed"
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonInactive        Reason = "inactive"
	ReasonForbidden       Reason = "forbidden"
)

// Decision is the outcome of a check. Redirect is empty when Allowed.
type Decision struct {
	Allowed  bool
	Redirect string
	Reason   Reason
}

// Recorder receives every decision. metrics.Meter satisfies it.
type Recorder interface {
	RecordDecision(ctx context.Context, role, module, action string, allowed bool)
}

// Guard checks identities against a matrix. A Guard is safe for concurrent use.
type Guard struct {
	matrix      *rbac.Matrix
	fallback    rbac.Module
	loginPath   string
	recorder    Recorder
	auditLogger audit.Logger
}

// Option configures a Guard.
type Option func(*Guard)

// WithFallback sets the module forbidden visitors are sent to.
func WithFallback(m rbac.Module) Option {
	return func(g *Guard) { g.fallback = m }
}

// WithLoginPath sets the path unauthenticated visitors are sent to.
func WithLoginPath(path string) Option {
	return func(g *Guard) { g.loginPath = path }
}

// WithRecorder reports decisions to r.
func WithRecorder(r Recorder) Option {
	return func(g *Guard) { g.recorder = r }
}

// WithAuditLogger records denials as access_denied events.
func WithAuditLogger(l audit.Logger) Option {
	return func(g *Guard) { g.auditLogger = l }
}

// New creates a guard over matrix. The fallback defaults to the dashboard.
func New(matrix *rbac.Matrix, opts ...Option) *Guard {
	g := &Guard{
		matrix:    matrix,
		fallback:  rbac.ModuleDashboard,
		loginPath: DefaultLoginPath,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Matrix returns the matrix the guard checks against.
func (g *Guard) Matrix() *rbac.Matrix {
	return g.matrix
}

// LoginPath returns the login screen path.
func (g *Guard) LoginPath() string {
	return g.loginPath
}

// Check decides whether id may perform action on module. A nil identity is
// sent to the login screen, as is an inactive one. An identity lacking the
// permission is sent to the fallback screen. Overrides on the identity are
// honoured.
func (g *Guard) Check(ctx context.Context, id *identity.Identity, module rbac.Module, action rbac.Action) Decision {
	ctx, span := tracing.Start(ctx, "guard.check",
		attribute.String("rbac.module", string(module)),
		attribute.String("rbac.action", string(action)),
	)
	defer span.End()

	var d Decision
	switch {
	case id == nil:
		d = Decision{Redirect: g.loginPath, Reason: ReasonUnauthenticated}
	case !id.IsActive:
		d = Decision{Redirect: g.loginPath, Reason: ReasonInactive}
	case g.matrix.Allows(id, module, action):
		d = Decision{Allowed: true, Reason: ReasonAllowed}
	default:
		d = Decision{Redirect: g.landing(id), Reason: ReasonForbidden}
	}

	span.SetAttributes(attribute.Bool("rbac.allowed", d.Allowed), attribute.String("rbac.reason", string(d.Reason)))
	g.report(ctx, id, module, action, d)
	return d
}

// CheckPath checks view access to the screen at path. Paths outside the
// console belong to the fallback module.
func (g *Guard) CheckPath(ctx context.Context, id *identity.Identity, path string) (rbac.Module, Decision) {
	module, ok := rbac.ModuleForPath(path)
	if !ok {
		module = g.fallback
	}
	return module, g.Check(ctx, id, module, rbac.ActionView)
}

// Landing returns the screen id should see after login: the fallback module
// if it can view it, else the first module it can view, else the login screen.
func (g *Guard) Landing(id *identity.Identity) string {
	if id == nil || !id.IsActive {
		return g.loginPath
	}
	return g.landing(id)
}

func (g *Guard) landing(id *identity.Identity) string {
	if g.matrix.Allows(id, g.fallback, rbac.ActionView) {
		return g.fallback.Path()
	}
	if modules := g.matrix.AccessibleModulesFor(id); len(modules) > 0 {
		return modules[0].Path()
	}
	return g.loginPath
}

func (g *Guard) report(ctx context.Context, id *identity.Identity, module rbac.Module, action rbac.Action, d Decision) {
	role, actor := "anonymous", ""
	if id != nil {
		role, actor = string(id.Role), id.ID
	}

	if g.recorder != nil {
		g.recorder.RecordDecision(ctx, role, string(module), string(action), d.Allowed)
	}
	if d.Allowed {
		return
	}

	slog.DebugContext(ctx, "access denied",
		logger.UserID(actor),
		logger.Role(role),
		logger.Module(string(module)),
		logger.Action(string(action)),
		logger.Reason(string(d.Reason)),
	)

	if g.auditLogger != nil {
		g.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeAccessDenied,
			ActorID:  actor,
			Resource: string(module),
			Metadata: map[string]any{
				audit.AttrModule: string(module),
				audit.AttrAction: string(action),
				audit.AttrRole:   role,
				audit.AttrReason: string(d.Reason),
			},
		})
	}
}
