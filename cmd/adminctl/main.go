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

// Command adminctl is the operator client for the back-office gateway. It
// logs in, keeps the session in a file, Redis or memory, and answers
// permission questions for the logged-in account:
//
//	adminctl login --email ops@dealer.example
//	adminctl whoami --refresh
//	adminctl can leads export
//	adminctl menu
//	adminctl open /admin/cibil
//	adminctl logout
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/patliputra/backoffice/internal/auth"
	"github.com/patliputra/backoffice/internal/config"
	"github.com/patliputra/backoffice/internal/observability/logger"
	"github.com/patliputra/backoffice/internal/store/redisstore"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger.InitLogger(logger.Config{
		Level:       cfg.LogLevel,
		Format:      "text",
		ServiceName: "adminctl",
		Output:      os.Stderr,
		DisableOTel: true,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	c := &cli{
		in:       os.Stdin,
		out:      os.Stdout,
		provider: auth.NewProvider(store, auth.NewRemoteAuthenticator(cfg.GatewayURL, cfg.Timeout)),
	}
	code := c.run(ctx, os.Args[1:])
	closeStore()
	os.Exit(code)
}

func openStore(ctx context.Context, cfg *config.ClientConfig) (auth.Store, func(), error) {
	switch cfg.Store {
	case config.StoreMemory:
		return auth.NewMemoryStore(), func() {}, nil
	case config.StoreRedis:
		s, err := redisstore.New(ctx, redisstore.Config{
			Addr:      cfg.Redis.Addr(),
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       cfg.Redis.TTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return auth.NewFileStore(cfg.SessionFile), func() {}, nil
	}
}
