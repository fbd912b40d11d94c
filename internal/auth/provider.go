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

// Package auth holds the client side of a console session: who is logged in,
// the token proving it, and the storage that survives restarts.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/patliputra/backoffice/internal/identity"
	"github.com/patliputra/backoffice/internal/observability/logger"
)

// ErrSuperseded is returned by a login whose result arrived after a newer
// login or logout had already changed the session.
var ErrSuperseded = errors.New("login superseded by a newer session change")

// Provider owns the current identity and its persisted form. All state sits
// behind one lock. Every change takes a ticket when it starts; a change may
// only commit if no later-started change has committed first, so the most
// recently started login wins however the calls interleave.
type Provider struct {
	store Store
	authn Authenticator

	mu        sync.RWMutex
	current   *identity.Identity
	token     string
	seq       uint64
	committed uint64
}

// NewProvider creates a provider over store, delegating credential checks to authn.
func NewProvider(store Store, authn Authenticator) *Provider {
	return &Provider{store: store, authn: authn}
}

// RestoreSession loads a persisted session. It yields an identity only when
// both keys are present and the stored identity is valid; anything else
// clears both keys and yields nil. Only storage read failures are errors.
func (p *Provider) RestoreSession(ctx context.Context) (*identity.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ticket := p.ticketLocked()

	token, hasToken, err := p.store.Get(ctx, KeyToken)
	if err != nil {
		if errors.Is(err, ErrCorruptStore) {
			p.discardLocked(ctx, ticket, err)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session token: %w", err)
	}
	raw, hasUser, err := p.store.Get(ctx, KeyUser)
	if err != nil {
		if errors.Is(err, ErrCorruptStore) {
			p.discardLocked(ctx, ticket, err)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session user: %w", err)
	}

	if !hasToken && !hasUser {
		return nil, nil
	}
	if !hasToken || !hasUser || token == "" {
		p.discardLocked(ctx, ticket, errors.New("incomplete session"))
		return nil, nil
	}

	var id identity.Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		p.discardLocked(ctx, ticket, err)
		return nil, nil
	}
	if err := id.Validate(); err != nil {
		p.discardLocked(ctx, ticket, err)
		return nil, nil
	}

	p.current = &id
	p.token = token
	p.committed = ticket
	return id.Clone(), nil
}

// Login authenticates and, on success, persists and installs the identity.
// On any failure no new identity is installed. If the authenticator accepted
// the credentials but persisting fails, the previous session is dropped too.
// A login whose result arrives after a later-started login or a logout has
// committed returns ErrSuperseded and changes nothing.
func (p *Provider) Login(ctx context.Context, creds Credentials) (*identity.Identity, error) {
	p.mu.Lock()
	ticket := p.ticketLocked()
	p.mu.Unlock()

	result, err := p.authn.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	if result == nil || result.Token == "" {
		return nil, ErrInvalidResponse
	}
	if err := result.User.Validate(); err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(result.User)
	if err != nil {
		return nil, fmt.Errorf("failed to encode identity: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.committed > ticket {
		return nil, ErrSuperseded
	}

	if err := p.store.Set(ctx, KeyToken, result.Token); err != nil {
		p.discardLocked(ctx, ticket, err)
		return nil, fmt.Errorf("failed to persist session token: %w", err)
	}
	if err := p.store.Set(ctx, KeyUser, string(encoded)); err != nil {
		p.discardLocked(ctx, ticket, err)
		return nil, fmt.Errorf("failed to persist session user: %w", err)
	}

	p.current = result.User.Clone()
	p.token = result.Token
	p.committed = ticket
	return result.User.Clone(), nil
}

// Logout clears the identity and both persisted keys. It is safe to call
// without a session. Server-side revocation is best effort.
func (p *Provider) Logout(ctx context.Context) error {
	p.mu.Lock()
	token := p.token
	p.current = nil
	p.token = ""
	p.committed = p.ticketLocked()
	err := p.clearStoreLocked(ctx)
	p.mu.Unlock()

	if token != "" && p.authn != nil {
		if rerr := p.authn.Logout(ctx, token); rerr != nil {
			slog.WarnContext(ctx, "remote logout failed", logger.Error(rerr))
		}
	}
	return err
}

// Refresh re-reads the identity from the authenticator so role and
// permission changes made since login are picked up. A rejected token ends
// the session.
func (p *Provider) Refresh(ctx context.Context) (*identity.Identity, error) {
	p.mu.Lock()
	token := p.token
	ticket := p.ticketLocked()
	p.mu.Unlock()

	if token == "" {
		return nil, nil
	}

	fresh, err := p.authn.Me(ctx, token)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			if p.Token() != token {
				return nil, ErrSuperseded
			}
			return nil, p.Logout(ctx)
		}
		return nil, err
	}
	if err := fresh.Validate(); err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(fresh)
	if err != nil {
		return nil, fmt.Errorf("failed to encode identity: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// the identity read belongs to token; a session installed meanwhile wins
	if p.committed > ticket || p.token != token {
		return nil, ErrSuperseded
	}
	if err := p.store.Set(ctx, KeyUser, string(encoded)); err != nil {
		return nil, fmt.Errorf("failed to persist session user: %w", err)
	}
	p.current = fresh.Clone()
	p.committed = ticket
	return fresh.Clone(), nil
}

// CurrentIdentity returns a copy of the current identity, or nil.
func (p *Provider) CurrentIdentity() *identity.Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.Clone()
}

// Token returns the current bearer token, or "".
func (p *Provider) Token() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

func (p *Provider) ticketLocked() uint64 {
	p.seq++
	return p.seq
}

func (p *Provider) discardLocked(ctx context.Context, ticket uint64, cause error) {
	slog.WarnContext(ctx, "discarding persisted session", logger.Error(cause))
	p.current = nil
	p.token = ""
	p.committed = ticket
	if err := p.clearStoreLocked(ctx); err != nil {
		slog.WarnContext(ctx, "failed to clear persisted session", logger.Error(err))
	}
}

func (p *Provider) clearStoreLocked(ctx context.Context) error {
	return errors.Join(
		p.store.Delete(ctx, KeyToken),
		p.store.Delete(ctx, KeyUser),
	)
}
