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

// Command clean-db empties the console tables of a development database.
// It refuses to run unless -yes is given.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/patliputra/backoffice/internal/config"
	"github.com/spf13/pflag"
)

// tables in reverse dependency order
var tables = []string{"sessions", "credentials", "users"}

func main() {
	yes := pflag.Bool("yes", false, "confirm that every account and session should be deleted")
	pflag.Parse()

	if !*yes {
		fmt.Fprintln(os.Stderr, "refusing to clean the database without -yes")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, cfg.Database.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	for _, table := range tables {
		if _, err := conn.Exec(ctx, "TRUNCATE TABLE "+pgx.Identifier{table}.Sanitize()+" CASCADE"); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to truncate %s: %v\n", table, err)
			os.Exit(1)
		}
		fmt.Printf("Truncated %s\n", table)
	}
}
