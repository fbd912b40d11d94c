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

// Command cleanup removes expired console sessions once and exits. It is
// meant for cron when the gateway's own hourly sweep is not enough.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/patliputra/backoffice/internal/audit"
	"github.com/patliputra/backoffice/internal/config"
	"github.com/patliputra/backoffice/internal/observability/logger"
	"github.com/patliputra/backoffice/internal/session"
	"github.com/patliputra/backoffice/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "backoffice-cleanup",
		DisableOTel: true,
	})

	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: 2,
		MaxIdleConns: 1,
	})
	if err != nil {
		slog.Error("unable to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	sessionService := session.NewService(postgres.NewSessionRepository(db), audit.NewSlogLogger(), cfg.Session.Lifetime, cfg.Session.IdleTimeout)
	n, err := sessionService.CleanupExpired(ctx)
	if err != nil {
		slog.Error("cleanup failed", logger.Error(err))
		os.Exit(1)
	}
	slog.Info("removed expired sessions", logger.RowsAffected(n))
}
