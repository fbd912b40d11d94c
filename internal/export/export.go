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

// Package export renders backend records as CSV downloads.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/patliputra/backoffice/internal/backend"
)

// Kind names an export.
type Kind string

const (
	KindLeads Kind = "leads"
	KindCibil Kind = "cibil"
)

// ContentType is the media type of every export.
const ContentType = "text/csv; charset=utf-8"

var (
	leadHeader  = []string{"Lead ID", "Date", "Name", "Mobile", "Email", "Brand", "Product", "Status", "Assigned To", "Source"}
	cibilHeader = []string{"Check ID", "Date", "Customer Name", "Mobile", "Score", "Score Band"}
)

// Filename returns the download name for kind on the UTC date of now,
// e.g. leads_export_2024-01-15.csv.
func Filename(kind Kind, now time.Time) string {
	return fmt.Sprintf("%s_export_%s.csv", kind, now.UTC().Format(time.DateOnly))
}

// WriteLeads writes leads as CSV and returns the number of data rows.
func WriteLeads(w io.Writer, leads []backend.Lead) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(leadHeader); err != nil {
		return 0, err
	}
	for _, l := range leads {
		record := []string{
			l.ID,
			formatDate(l.CreatedAt),
			l.CustomerName,
			l.Mobile,
			l.Email,
			l.Brand,
			l.ProductName,
			l.Status,
			l.AssignedTo,
			l.Source,
		}
		if err := cw.Write(record); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("failed to write leads export: %w", err)
	}
	return len(leads), nil
}

// WriteCibilChecks writes checks as CSV and returns the number of data rows.
func WriteCibilChecks(w io.Writer, checks []backend.CibilCheck) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(cibilHeader); err != nil {
		return 0, err
	}
	for _, c := range checks {
		record := []string{
			c.ID,
			formatDate(c.CheckedAt),
			c.CustomerName,
			c.Mobile,
			strconv.Itoa(c.Score),
			c.ScoreBand,
		}
		if err := cw.Write(record); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("failed to write cibil export: %w", err)
	}
	return len(checks), nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}
