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

package logger

import "log/slog"

// Attribute helpers keep log keys identical across the gateway, the CLI and
// the maintenance commands.

func RequestID(id string) slog.Attr    { return slog.String("request_id", id) }
func Method(method string) slog.Attr   { return slog.String("method", method) }
func Path(path string) slog.Attr       { return slog.String("path", path) }
func RemoteAddr(addr string) slog.Attr { return slog.String("remote_addr", addr) }
func UserAgent(ua string) slog.Attr    { return slog.String("user_agent", ua) }
func StatusCode(code int) slog.Attr    { return slog.Int("status_code", code) }
func Duration(ms int64) slog.Attr      { return slog.Int64("duration_ms", ms) }
func Component(name string) slog.Attr  { return slog.String("component", name) }
func Operation(op string) slog.Attr    { return slog.String("operation", op) }
func RowsAffected(n int64) slog.Attr   { return slog.Int64("rows_affected", n) }
func String(key, v string) slog.Attr   { return slog.String(key, v) }
func SessionID(id string) slog.Attr    { return slog.String("session_id", id) }
func Email(email string) slog.Attr     { return slog.String("email", email) }
func UserID(id string) slog.Attr       { return slog.String("user_id", id) }
func Role(role string) slog.Attr       { return slog.String("role", role) }
func Module(module string) slog.Attr   { return slog.String("module", module) }
func Action(action string) slog.Attr   { return slog.String("action", action) }
func Reason(reason string) slog.Attr   { return slog.String("reason", reason) }
func ExportKind(kind string) slog.Attr { return slog.String("export_kind", kind) }
func MatrixFile(path string) slog.Attr { return slog.String("matrix_file", path) }
func Rows(n int) slog.Attr             { return slog.Int("rows", n) }

// Error renders err under the "error" key; a nil error logs as empty.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
