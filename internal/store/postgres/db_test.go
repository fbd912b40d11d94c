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

package postgres

import (
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_ConnString(t *testing.T) {
	cfg := Config{
		Host:     "db.internal",
		Port:     "5433",
		User:     "backoffice",
		Password: `p@ss 'word\`,
		Database: "backoffice",
		SSLMode:  "require",
	}

	parsed, err := pgxpool.ParseConfig(cfg.ConnString())
	require.NoError(t, err)
	assert.Equal(t, "db.internal", parsed.ConnConfig.Host)
	assert.Equal(t, uint16(5433), parsed.ConnConfig.Port)
	assert.Equal(t, "backoffice", parsed.ConnConfig.User)
	assert.Equal(t, `p@ss 'word\`, parsed.ConnConfig.Password)
	assert.Equal(t, "backoffice", parsed.ConnConfig.Database)
}

func TestConfig_ConnStringSkipsEmpty(t *testing.T) {
	cfg := Config{Host: "localhost", Database: "backoffice"}
	assert.Equal(t, "host='localhost' dbname='backoffice'", cfg.ConnString())
}
