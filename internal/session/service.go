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

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/patliputra/backoffice/internal/audit"
	"github.com/patliputra/backoffice/internal/id"
	"github.com/patliputra/backoffice/internal/observability/logger"
)

// touchInterval bounds how often LastSeenAt is written back.
const touchInterval = time.Minute

// Service manages server-side sessions.
type Service struct {
	repo        Repository
	auditLogger audit.Logger
	lifetime    time.Duration
	idleTimeout time.Duration
	now         func() time.Time
}

// NewService creates a new session service
func NewService(repo Repository, auditLogger audit.Logger, lifetime, idleTimeout time.Duration) *Service {
	return &Service{
		repo:        repo,
		auditLogger: auditLogger,
		lifetime:    lifetime,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// Lifetime is the absolute lifetime of new sessions.
func (s *Service) Lifetime() time.Duration {
	return s.lifetime
}

// Create starts a session for userID.
func (s *Service) Create(ctx context.Context, userID, ipAddress, userAgent string) (*Session, error) {
	if userID == "" {
		return nil, ErrSessionInvalid
	}
	now := s.now()
	sess := &Session{
		ID:         id.NewUUIDv7(),
		UserID:     userID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		ExpiresAt:  now.Add(s.lifetime),
		CreatedAt:  now,
		LastSeenAt: now,
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// Get returns a live session. Expired or idle sessions are removed and
// reported as ErrSessionExpired.
func (s *Service) Get(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}
	sess, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	now := s.now()
	if sess.IsExpired(now) || sess.IsIdle(now, s.idleTimeout) {
		if err := s.repo.Delete(ctx, sess.ID); err != nil {
			slog.WarnContext(ctx, "failed to delete expired session", logger.SessionID(sess.ID), logger.Error(err))
		}
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeSessionExpired,
			ActorID:  sess.UserID,
			Resource: audit.ResourceSession,
		})
		return nil, ErrSessionExpired
	}
	return sess, nil
}

// Refresh records activity on a live session.
func (s *Service) Refresh(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if now.Sub(sess.LastSeenAt) < touchInterval {
		return sess, nil
	}
	if err := s.repo.Touch(ctx, sess.ID, now); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}
	sess.LastSeenAt = now
	return sess, nil
}

// Destroy ends a session. Destroying an unknown session is not an error.
func (s *Service) Destroy(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.repo.Delete(ctx, sessionID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

// DestroyForUser ends every session of userID.
func (s *Service) DestroyForUser(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.DeleteByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to destroy user sessions: %w", err)
	}
	return n, nil
}

// CleanupExpired purges sessions past their absolute expiry.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup sessions: %w", err)
	}
	return n, nil
}
