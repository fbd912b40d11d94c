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

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/patliputra/backoffice/internal/audit"
	"github.com/patliputra/backoffice/internal/observability/logger"
	"github.com/patliputra/backoffice/internal/rbac"
)

const (
	EnvBootstrapAdminEmail    = "BOOTSTRAP_ADMIN_EMAIL"
	EnvBootstrapAdminName     = "BOOTSTRAP_ADMIN_NAME"
	EnvBootstrapAdminPassword = "BOOTSTRAP_ADMIN_PASSWORD"
)

// BootstrapConfig names the first master admin.
type BootstrapConfig struct {
	Email    string
	Name     string
	Password string
}

// BootstrapConfigFromEnv reads the bootstrap settings from the environment.
func BootstrapConfigFromEnv() BootstrapConfig {
	cfg := BootstrapConfig{
		Email:    os.Getenv(EnvBootstrapAdminEmail),
		Name:     os.Getenv(EnvBootstrapAdminName),
		Password: os.Getenv(EnvBootstrapAdminPassword),
	}
	if cfg.Name == "" {
		cfg.Name = "Master Admin"
	}
	return cfg
}

// BootstrapService creates the first master admin of an empty installation.
type BootstrapService struct {
	identityService *Service
	auditLogger     audit.Logger
}

// NewBootstrapService creates a new bootstrap service
func NewBootstrapService(identityService *Service, auditLogger audit.Logger) *BootstrapService {
	return &BootstrapService{
		identityService: identityService,
		auditLogger:     auditLogger,
	}
}

// Bootstrap makes sure an active master admin exists. It does nothing when
// cfg.Email is empty or a master admin is already present. An existing
// account with the bootstrap email is promoted; otherwise one is created.
func (s *BootstrapService) Bootstrap(ctx context.Context, cfg BootstrapConfig) error {
	if cfg.Email == "" {
		return nil
	}

	repo := s.identityService.repo
	n, err := repo.CountByRole(ctx, rbac.RoleMasterAdmin)
	if err != nil {
		return fmt.Errorf("failed to check for existing master admin: %w", err)
	}
	if n > 0 {
		return nil
	}

	user, err := repo.GetByEmail(ctx, normalizeEmail(cfg.Email))
	switch {
	case err == nil:
		user.Role = rbac.RoleMasterAdmin
		user.Active = true
		if err := repo.Update(ctx, user); err != nil {
			return fmt.Errorf("failed to promote bootstrap user: %w", err)
		}
	case errors.Is(err, ErrUserNotFound):
		if cfg.Password == "" {
			return fmt.Errorf("%s is required to create the bootstrap admin", EnvBootstrapAdminPassword)
		}
		user, err = s.identityService.Provision(ctx, audit.ActorSystemBootstrap, cfg.Email, cfg.Name, rbac.RoleMasterAdmin)
		if err != nil {
			return fmt.Errorf("failed to create bootstrap admin: %w", err)
		}
		if err := s.identityService.AddPassword(ctx, user.ID, cfg.Password); err != nil {
			return fmt.Errorf("failed to set bootstrap admin password: %w", err)
		}
	default:
		return fmt.Errorf("failed to look up bootstrap user: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAdminBootstrap,
		ActorID:  audit.ActorSystemBootstrap,
		Resource: audit.ResourceUser,
		Metadata: map[string]any{
			audit.AttrTargetID: user.ID,
			audit.AttrEmail:    user.Email,
			audit.AttrRole:     string(rbac.RoleMasterAdmin),
		},
	})

	slog.InfoContext(ctx, "bootstrapped initial master admin", logger.Email(user.Email), logger.UserID(user.ID))
	return nil
}
