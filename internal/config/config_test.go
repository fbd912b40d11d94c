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

package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("AUTH_JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "admin_token", cfg.Session.CookieName)
	assert.Equal(t, 12*time.Hour, cfg.Session.Lifetime)
	assert.Equal(t, "/admin/login", cfg.Console.LoginPath)
	assert.Equal(t, 5, cfg.Security.LockoutMaxAttempts)
	assert.Contains(t, cfg.Database.DSN(), "dbname=backoffice")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("AUTH_JWT_SECRET", testSecret)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SESSION_LIFETIME", "1h")
	t.Setenv("RATELIMIT_RPS", "2.5")
	t.Setenv("RBAC_MATRIX_FILE", "/etc/backoffice/rbac.yaml")
	t.Setenv("SERVER_READ_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.Session.Lifetime)
	assert.Equal(t, 2.5, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, "/etc/backoffice/rbac.yaml", cfg.RBAC.MatrixFile)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout, "invalid durations fall back to the default")
}

// TestPurpose: Validates that the gateway refuses to start with a missing database password or a short signing key.
// Scope: Unit Test
// Security: Secure configuration (weak token signing keys)
// Expected: Load fails and names both problems.
// Test Case ID: CFG-01
func TestLoad_RejectsWeakSecrets(t *testing.T) {
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("AUTH_JWT_SECRET", "short")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "DB_PASSWORD"))
	assert.True(t, strings.Contains(err.Error(), "AUTH_JWT_SECRET"))
}

func TestLoad_TrustedProxies(t *testing.T) {
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("AUTH_JWT_SECRET", testSecret)
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.7 ,")

	cfg, err := Load()
	require.NoError(t, err)
	proxies, err := cfg.RateLimit.Proxies()
	require.NoError(t, err)
	require.Len(t, proxies, 2)
	assert.Equal(t, "10.0.0.0/8", proxies[0].String())
	assert.Equal(t, "192.0.2.7/32", proxies[1].String())

	t.Setenv("TRUSTED_PROXIES", "not-an-address")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRUSTED_PROXIES")
}

func TestLoad_StoreDriver(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", testSecret)
	t.Setenv("DB_PASSWORD", "")

	t.Setenv("STORE_DRIVER", DriverMemory)
	cfg, err := Load()
	require.NoError(t, err, "the memory driver needs no database password")
	assert.Equal(t, DriverMemory, cfg.StoreDriver)

	t.Setenv("STORE_DRIVER", "mysql")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_DRIVER")
}

func TestLoadClient(t *testing.T) {
	t.Setenv("BACKOFFICE_URL", "https://admin.example.com")
	t.Setenv("BACKOFFICE_SESSION_STORE", "redis")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, "https://admin.example.com", cfg.GatewayURL)
	assert.Equal(t, StoreRedis, cfg.Store)
	assert.Equal(t, "localhost:6380", cfg.Redis.Addr())
	assert.NotEmpty(t, cfg.SessionFile)

	t.Setenv("BACKOFFICE_SESSION_STORE", "sqlite")
	_, err = LoadClient()
	assert.Error(t, err)
}
