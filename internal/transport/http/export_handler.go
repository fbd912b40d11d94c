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
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/patliputra/backoffice/internal/audit"
	"github.com/patliputra/backoffice/internal/backend"
	"github.com/patliputra/backoffice/internal/export"
	"github.com/patliputra/backoffice/internal/observability/logger"
)

// ExportLeads streams the filtered leads as a CSV attachment.
func (h *Handler) ExportLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := backend.LeadFilter{
		Status: q.Get("status"),
		Brand:  q.Get("brand"),
		Source: q.Get("source"),
		Search: q.Get("search"),
	}
	var err error
	if filter.DateFrom, err = parseDateParam(q.Get("dateFrom")); err != nil {
		respondError(w, http.StatusBadRequest, "dateFrom must be YYYY-MM-DD")
		return
	}
	if filter.DateTo, err = parseDateParam(q.Get("dateTo")); err != nil {
		respondError(w, http.StatusBadRequest, "dateTo must be YYYY-MM-DD")
		return
	}

	leads, err := h.backend.ListLeads(r.Context(), getToken(r.Context()), filter)
	if err != nil {
		h.respondBackendError(w, r, err)
		return
	}

	var buf bytes.Buffer
	rows, err := export.WriteLeads(&buf, leads)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to render export", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to render export")
		return
	}
	h.sendExport(w, r, export.KindLeads, rows, buf.Bytes())
}

// ExportCibil streams the filtered CIBIL checks as a CSV attachment.
func (h *Handler) ExportCibil(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := backend.CibilFilter{Search: q.Get("search")}
	var err error
	if filter.ScoreMin, err = parseIntParam(q.Get("scoreMin")); err != nil {
		respondError(w, http.StatusBadRequest, "scoreMin must be an integer")
		return
	}
	if filter.ScoreMax, err = parseIntParam(q.Get("scoreMax")); err != nil {
		respondError(w, http.StatusBadRequest, "scoreMax must be an integer")
		return
	}

	checks, err := h.backend.ListCibilChecks(r.Context(), getToken(r.Context()), filter)
	if err != nil {
		h.respondBackendError(w, r, err)
		return
	}

	var buf bytes.Buffer
	rows, err := export.WriteCibilChecks(&buf, checks)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to render export", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to render export")
		return
	}
	h.sendExport(w, r, export.KindCibil, rows, buf.Bytes())
}

func (h *Handler) sendExport(w http.ResponseWriter, r *http.Request, kind export.Kind, rows int, body []byte) {
	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeDataExported,
		ActorID:   GetUserID(r.Context()),
		Resource:  string(kind),
		IPAddress: h.clientIP.From(r),
		UserAgent: r.UserAgent(),
		Metadata:  map[string]any{audit.AttrRows: rows},
	})
	h.recorder.RecordExport(r.Context(), string(kind), rows)
	slog.InfoContext(r.Context(), "export served", logger.UserID(GetUserID(r.Context())), logger.ExportKind(string(kind)), logger.Rows(rows))

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(kind, h.now())))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *Handler) respondBackendError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		slog.WarnContext(r.Context(), "backend rejected request",
			logger.StatusCode(apiErr.StatusCode),
			logger.Error(err),
		)
		respondError(w, http.StatusBadGateway, apiErr.Error())
		return
	}
	slog.ErrorContext(r.Context(), "backend unavailable", logger.Error(err))
	respondError(w, http.StatusBadGateway, "backend unavailable")
}

func parseDateParam(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}

func parseIntParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
