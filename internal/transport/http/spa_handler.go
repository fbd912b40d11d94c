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

package http

import (
	"errors"
	"io/fs"
	"net/http"
	"strings"
)

// consolePrefix is where the console is mounted.
const consolePrefix = "/admin"

// SPAHandler serves a Single Page Application from a static filesystem.
// It serves static files if they exist, otherwise it falls back to index.html.
type SPAHandler struct {
	StaticFS fs.FS
}

func (h SPAHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// r.URL.Path here is already stripped of the prefix if using http.StripPrefix
	path := strings.TrimPrefix(r.URL.Path, "/")

	if path == "" || !h.isFile(path) {
		h.serveIndex(w)
		return
	}

	http.FileServer(http.FS(h.StaticFS)).ServeHTTP(w, r)
}

// isFile reports whether path names a regular file in the bundle.
func (h SPAHandler) isFile(path string) bool {
	f, err := h.StaticFS.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	stat, err := f.Stat()
	return err == nil && !stat.IsDir()
}

func (h SPAHandler) serveIndex(w http.ResponseWriter) {
	content, err := fs.ReadFile(h.StaticFS, "index.html")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.Error(w, "console not installed", http.StatusNotFound)
			return
		}
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}

// Console serves the console. Bundle files are public. Every other path is
// a screen: the login screen is public, the rest are gated on view access
// to the module owning the path. A visitor who may not see a screen is
// redirected before any of it is written.
func (h *Handler) Console(static fs.FS) http.Handler {
	spa := SPAHandler{StaticFS: static}
	files := http.StripPrefix(consolePrefix, spa)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			respondError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		rel := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, consolePrefix), "/")
		if rel != "" && spa.isFile(rel) {
			files.ServeHTTP(w, r)
			return
		}

		ctx, id := h.principal(r)

		if r.URL.Path == h.guard.LoginPath() {
			// An identity that can view nothing lands on the login screen
			// itself, so it is served rather than redirected.
			if landing := h.guard.Landing(id); id != nil && landing != r.URL.Path {
				http.Redirect(w, r, landing, http.StatusSeeOther)
				return
			}
			spa.serveIndex(w)
			return
		}

		_, d := h.guard.CheckPath(ctx, id, r.URL.Path)
		if !d.Allowed {
			w.Header().Set("Cache-Control", "no-store")
			http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
			return
		}
		spa.serveIndex(w)
	})
}
