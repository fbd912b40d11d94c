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

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/patliputra/backoffice/internal/auth"
	"github.com/patliputra/backoffice/internal/guard"
	"github.com/patliputra/backoffice/internal/identity"
	"github.com/patliputra/backoffice/internal/rbac"
	"github.com/spf13/pflag"
)

// Exit codes
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

// EnvPassword supplies the login password without a prompt.
const EnvPassword = "ADMINCTL_PASSWORD"

var errNotLoggedIn = errors.New("not logged in; run adminctl login")

const usage = `usage: adminctl [--matrix FILE] <command> [args]

commands:
  login --email EMAIL [--password PASSWORD]
  logout
  whoami [--refresh]
  can MODULE ACTION
  menu
  open PATH
`

type cli struct {
	in       io.Reader
	out      io.Writer
	errOut   io.Writer
	provider *auth.Provider
	guard    *guard.Guard
}

func (c *cli) run(ctx context.Context, args []string) int {
	if c.errOut == nil {
		c.errOut = os.Stderr
	}

	global := pflag.NewFlagSet("adminctl", pflag.ContinueOnError)
	global.SetOutput(c.errOut)
	global.SetInterspersed(false)
	matrixFile := global.String("matrix", "", "YAML permission matrix (defaults to the built-in matrix)")
	if err := global.Parse(args); err != nil {
		return exitUsage
	}
	rest := global.Args()
	if len(rest) == 0 {
		fmt.Fprint(c.errOut, usage)
		return exitUsage
	}

	if c.guard == nil {
		matrix := rbac.Default
		if *matrixFile != "" {
			m, err := rbac.LoadMatrix(*matrixFile)
			if err != nil {
				fmt.Fprintln(c.errOut, err)
				return exitFailed
			}
			matrix = m
		}
		c.guard = guard.New(matrix)
	}

	var err error
	command, cmdArgs := rest[0], rest[1:]
	switch command {
	case "login":
		err = c.login(ctx, cmdArgs)
	case "logout":
		err = c.logout(ctx)
	case "whoami":
		err = c.whoami(ctx, cmdArgs)
	case "can":
		err = c.can(ctx, cmdArgs)
	case "menu":
		err = c.menu(ctx)
	case "open":
		err = c.open(ctx, cmdArgs)
	default:
		fmt.Fprintf(c.errOut, "unknown command %q\n\n%s", command, usage)
		return exitUsage
	}

	var ue usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &ue):
		fmt.Fprintln(c.errOut, err)
		return exitUsage
	case errors.Is(err, errDenied):
		return exitFailed
	default:
		fmt.Fprintln(c.errOut, describe(err))
		return exitFailed
	}
}

type usageError string

func (e usageError) Error() string { return string(e) }

// errDenied ends a command whose answer was "no" after it has been printed.
var errDenied = errors.New("denied")

func (c *cli) login(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("login", pflag.ContinueOnError)
	fs.SetOutput(c.errOut)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (or set "+EnvPassword+")")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if *email == "" {
		return usageError("login requires --email")
	}

	pw := *password
	if pw == "" {
		pw = os.Getenv(EnvPassword)
	}
	if pw == "" {
		line, err := bufio.NewReader(c.in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read password: %w", err)
		}
		pw = strings.TrimRight(line, "\r\n")
	}

	id, err := c.provider.Login(ctx, auth.Credentials{Email: *email, Password: pw})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "logged in as %s <%s> (%s)\n", id.Name, id.Email, id.Role.DisplayName())
	return nil
}

func (c *cli) logout(ctx context.Context) error {
	if _, err := c.provider.RestoreSession(ctx); err != nil {
		return err
	}
	if err := c.provider.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "logged out")
	return nil
}

func (c *cli) whoami(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("whoami", pflag.ContinueOnError)
	fs.SetOutput(c.errOut)
	refresh := fs.Bool("refresh", false, "re-read the account from the gateway")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}

	id, err := c.current(ctx)
	if err != nil {
		return err
	}
	if *refresh {
		if id, err = c.provider.Refresh(ctx); err != nil {
			return err
		}
		if id == nil {
			return errNotLoggedIn
		}
	}

	fmt.Fprintf(c.out, "id:     %s\nname:   %s\nemail:  %s\nrole:   %s\nactive: %t\n",
		id.ID, id.Name, id.Email, id.Role.DisplayName(), id.IsActive)
	if id.Permissions != nil {
		fmt.Fprintln(c.out, "overrides: yes")
	}
	return nil
}

func (c *cli) can(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageError("can requires MODULE and ACTION")
	}
	module, err := rbac.ParseModule(args[0])
	if err != nil {
		return usageError(err.Error())
	}
	action, err := rbac.ParseAction(args[1])
	if err != nil {
		return usageError(err.Error())
	}

	id, err := c.current(ctx)
	if err != nil {
		return err
	}
	if c.guard.Matrix().Allows(id, module, action) {
		fmt.Fprintln(c.out, "allowed")
		return nil
	}
	fmt.Fprintln(c.out, "denied")
	return errDenied
}

func (c *cli) menu(ctx context.Context) error {
	id, err := c.current(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for _, m := range c.guard.Matrix().AccessibleModulesFor(id) {
		fmt.Fprintf(tw, "%s\t%s\n", m.Label(), m.Path())
	}
	return tw.Flush()
}

func (c *cli) open(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("open requires PATH")
	}
	id, err := c.provider.RestoreSession(ctx)
	if err != nil {
		return err
	}

	module, d := c.guard.CheckPath(ctx, id, args[0])
	if d.Allowed {
		fmt.Fprintf(c.out, "open %s (%s)\n", args[0], module.Label())
		return nil
	}
	fmt.Fprintf(c.out, "redirect %s (%s)\n", d.Redirect, d.Reason)
	return errDenied
}

func (c *cli) current(ctx context.Context) (*identity.Identity, error) {
	id, err := c.provider.RestoreSession(ctx)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, errNotLoggedIn
	}
	return id, nil
}

func describe(err error) string {
	var se *auth.StatusError
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "invalid email or password"
	case errors.Is(err, auth.ErrAccountDisabled):
		return "account is disabled or locked"
	case errors.Is(err, rbac.ErrUnknownRole):
		return "gateway returned an account with an unknown role"
	case errors.As(err, &se):
		return se.Error()
	default:
		return err.Error()
	}
}
