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

//go:build integration
// +build integration

package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates that console session keys round-trip through Redis and expire with the configured TTL.
// Scope: Redis Integration Test
// Security: Session lifetime enforcement on shared storage
// Expected: Values are readable after Set, gone after Delete, and carry a positive TTL.
// Test Case ID: RDS-01
func TestStore_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	ctx := context.Background()
	prefix := "backoffice:test:" + time.Now().Format("150405.000000") + ":"
	s, err := New(ctx, Config{Addr: addr, KeyPrefix: prefix, TTL: time.Minute})
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to redis: %v", err)
	}
	defer s.Close()

	_, ok, err := s.Get(ctx, "admin_token")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "admin_token", "tok"))
	v, ok, err := s.Get(ctx, "admin_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)

	ttl, err := s.client.TTL(ctx, prefix+"admin_token").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)

	require.NoError(t, s.Delete(ctx, "admin_token"))
	require.NoError(t, s.Delete(ctx, "admin_token"))
	_, ok, err = s.Get(ctx, "admin_token")
	require.NoError(t, err)
	assert.False(t, ok)
}
