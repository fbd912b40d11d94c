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

// Command report_gen merges `go test -json` output with the annotation
// block written above security tests (TestPurpose, Scope, Security,
// Expected, Test Case ID) and writes JSON and Markdown reports.
//
//	go test -json ./... > test.json
//	go run ./scripts/testing -input test.json -out-json report.json -out-md report.md
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// TestMetadata is the annotation block of one test function.
type TestMetadata struct {
	Name       string `json:"name"`
	Purpose    string `json:"purpose,omitempty"`
	Scope      string `json:"scope,omitempty"`
	Security   string `json:"security,omitempty"`
	Expected   string `json:"expected,omitempty"`
	TestCaseID string `json:"test_case_id,omitempty"`
	Package    string `json:"package"`
	Category   string `json:"category"`
	Type       string `json:"type"` // UT, SYSTEM, E2E
}

// GoTestEvent is one line of `go test -json`.
type GoTestEvent struct {
	Time    time.Time `json:"Time"`
	Action  string    `json:"Action"`
	Package string    `json:"Package"`
	Test    string    `json:"Test"`
	Elapsed float64   `json:"Elapsed"`
	Output  string    `json:"Output"`
}

// TestResult is the merged outcome of one test or subtest.
type TestResult struct {
	Name        string       `json:"name"`
	Status      string       `json:"status"`
	Elapsed     float64      `json:"elapsed_seconds"`
	Package     string       `json:"package"`
	Failure     string       `json:"failure_reason,omitempty"`
	Annotations TestMetadata `json:"annotations"`
}

// ReportSummary is the top-level report.
type ReportSummary struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Total       int          `json:"total"`
	Passed      int          `json:"passed"`
	Failed      int          `json:"failed"`
	Skipped     int          `json:"skipped"`
	Results     []TestResult `json:"results"`
}

// categoryOrder fixes the section order of the Markdown report.
var categoryOrder = []string{"RBAC", "Guard", "AuthN", "Session", "Client Session", "API", "Export", "Store", "CLI", "SYSTEM Tests", "E2E Tests", "Other"}

func main() {
	inputPath := pflag.String("input", "", "Path to go test -json output file")
	outputJSON := pflag.String("out-json", "", "Path for output JSON report")
	outputMD := pflag.String("out-md", "", "Path for output Markdown report")
	title := pflag.String("title", "Test Report", "Report title")
	root := pflag.String("root", ".", "Module root to scan for annotations")
	onlyType := pflag.String("filter-type", "", "Only include tests of this type (UT, SYSTEM, E2E)")
	annotatedOnly := pflag.Bool("annotated-only", false, "Only include tests carrying a Test Case ID")
	pflag.Parse()

	if *inputPath == "" || *outputJSON == "" || *outputMD == "" {
		fmt.Fprintln(os.Stderr, "usage: report_gen --input FILE --out-json FILE --out-md FILE")
		os.Exit(2)
	}

	modulePath, err := readModulePath(filepath.Join(*root, "go.mod"))
	if err != nil {
		fail(err)
	}
	meta, err := scanMetadata(*root, modulePath)
	if err != nil {
		fail(err)
	}
	results, err := parseTestOutput(*inputPath, modulePath, meta)
	if err != nil {
		fail(err)
	}

	var kept []TestResult
	for _, r := range results {
		if *onlyType != "" && !strings.EqualFold(r.Annotations.Type, *onlyType) {
			continue
		}
		if *annotatedOnly && r.Annotations.TestCaseID == "" {
			continue
		}
		kept = append(kept, r)
	}

	summary := summarize(kept)
	if err := writeJSON(summary, *outputJSON); err != nil {
		fail(err)
	}
	if err := writeFile(*outputMD, renderMarkdown(summary, *title)); err != nil {
		fail(err)
	}

	// non-zero exit keeps CI gates honest
	if summary.Failed > 0 {
		fmt.Fprintf(os.Stderr, "test reporting: %d tests failed\n", summary.Failed)
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "report_gen:", err)
	os.Exit(1)
}

func readModulePath(goMod string) (string, error) {
	f, err := os.Open(goMod)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", goMod, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if rest, ok := strings.CutPrefix(line, "module "); ok {
			return strings.Trim(strings.TrimSpace(rest), `"`), nil
		}
	}
	return "", fmt.Errorf("no module directive in %s", goMod)
}

func scanMetadata(root, modulePath string) (map[string]TestMetadata, error) {
	out := make(map[string]TestMetadata)
	fset := token.NewFileSet()

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor" || name == "testdata") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, "_test.go") {
			return nil
		}

		file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			return nil
		}

		rel, _ := filepath.Rel(root, filepath.Dir(path))
		pkg := modulePath
		if rel != "." {
			pkg = modulePath + "/" + filepath.ToSlash(rel)
		}

		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv != nil || !strings.HasPrefix(fn.Name.Name, "Test") || fn.Name.Name == "TestMain" {
				continue
			}
			m := TestMetadata{
				Name:     fn.Name.Name,
				Package:  pkg,
				Type:     testType(modulePath, pkg),
				Category: category(modulePath, pkg),
			}
			if fn.Doc != nil {
				annotate(&m, fn.Doc)
			}
			out[pkg+"."+fn.Name.Name] = m
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	return out, nil
}

func annotate(m *TestMetadata, doc *ast.CommentGroup) {
	fields := map[string]*string{
		"TestPurpose:":  &m.Purpose,
		"Scope:":        &m.Scope,
		"Security:":     &m.Security,
		"Expected:":     &m.Expected,
		"Test Case ID:": &m.TestCaseID,
	}
	for _, line := range doc.List {
		text := strings.TrimSpace(strings.TrimPrefix(line.Text, "//"))
		for prefix, dst := range fields {
			if value, ok := strings.CutPrefix(text, prefix); ok {
				*dst = strings.TrimSpace(value)
				break
			}
		}
	}
}

func testType(modulePath, pkg string) string {
	rel := strings.TrimPrefix(strings.TrimPrefix(pkg, modulePath), "/")
	if parts := strings.Split(rel, "/"); len(parts) > 1 && parts[0] == "tests" {
		return strings.ToUpper(parts[1])
	}
	return "UT"
}

func category(modulePath, pkg string) string {
	rel := strings.TrimPrefix(strings.TrimPrefix(pkg, modulePath), "/")
	switch {
	case strings.HasPrefix(rel, "tests/"):
		return testType(modulePath, pkg) + " Tests"
	case strings.HasSuffix(rel, "internal/rbac"):
		return "RBAC"
	case strings.HasSuffix(rel, "internal/guard"):
		return "Guard"
	case strings.HasSuffix(rel, "internal/identity"), strings.HasSuffix(rel, "internal/token"):
		return "AuthN"
	case strings.HasSuffix(rel, "internal/session"):
		return "Session"
	case strings.HasSuffix(rel, "internal/auth"):
		return "Client Session"
	case strings.HasSuffix(rel, "internal/transport/http"):
		return "API"
	case strings.HasSuffix(rel, "internal/export"), strings.HasSuffix(rel, "internal/backend"):
		return "Export"
	case strings.HasPrefix(rel, "internal/store"):
		return "Store"
	case strings.HasPrefix(rel, "cmd/"):
		return "CLI"
	}
	return "Other"
}

func parseTestOutput(path, modulePath string, meta map[string]TestMetadata) ([]TestResult, error) {
	states := make(map[string]*TestResult, len(meta))
	for key, m := range meta {
		states[key] = &TestResult{Name: m.Name, Package: m.Package, Status: "not run", Annotations: m}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open test output: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var event GoTestEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil || event.Test == "" {
			continue
		}

		key := event.Package + "." + event.Test
		res, ok := states[key]
		if !ok {
			ann := TestMetadata{
				Name:     event.Test,
				Package:  event.Package,
				Type:     testType(modulePath, event.Package),
				Category: category(modulePath, event.Package),
			}
			// subtests inherit the parent's annotations
			if parent, sub, found := strings.Cut(event.Test, "/"); found {
				if pm, ok := meta[event.Package+"."+parent]; ok {
					ann = pm
					ann.Name = event.Test
					if ann.Purpose != "" {
						ann.Purpose += " (" + sub + ")"
					}
				}
			}
			res = &TestResult{Name: event.Test, Package: event.Package, Annotations: ann}
			states[key] = res
		}

		switch event.Action {
		case "pass", "fail":
			res.Status = event.Action
			res.Elapsed = event.Elapsed
		case "skip":
			res.Status = "skip"
		case "output":
			if res.Status == "" || res.Status == "not run" || res.Status == "fail" {
				res.Failure += event.Output
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read test output: %w", err)
	}

	list := make([]TestResult, 0, len(states))
	for _, r := range states {
		if r.Status != "fail" {
			r.Failure = ""
		}
		list = append(list, *r)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Package != list[j].Package {
			return list[i].Package < list[j].Package
		}
		return list[i].Name < list[j].Name
	})
	return list, nil
}

func summarize(results []TestResult) ReportSummary {
	s := ReportSummary{GeneratedAt: time.Now(), Results: results}
	for _, r := range results {
		s.Total++
		switch r.Status {
		case "pass":
			s.Passed++
		case "fail":
			s.Failed++
		case "skip":
			s.Skipped++
		}
	}
	return s
}

func renderMarkdown(s ReportSummary, title string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Backoffice %s\n\n", title)
	fmt.Fprintf(&sb, "**Generated:** %s  \n", s.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	status := "PASSED"
	if s.Failed > 0 {
		status = "FAILED"
	}
	fmt.Fprintf(&sb, "**Status:** %s\n\n", status)

	rate := 0.0
	if s.Total > 0 {
		rate = float64(s.Passed) / float64(s.Total) * 100
	}
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Total | Passed | Failed | Skipped | Pass Rate |\n")
	sb.WriteString("|-------|--------|--------|---------|-----------|\n")
	fmt.Fprintf(&sb, "| %d | %d | %d | %d | %.1f%% |\n\n", s.Total, s.Passed, s.Failed, s.Skipped, rate)

	byCategory := make(map[string][]TestResult)
	for _, r := range s.Results {
		byCategory[r.Annotations.Category] = append(byCategory[r.Annotations.Category], r)
	}

	sb.WriteString("## Results by Category\n\n")
	for _, cat := range categoryOrder {
		tests := byCategory[cat]
		if len(tests) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "### %s\n\n", cat)
		sb.WriteString("| ID | Test | Status | Purpose | Security |\n")
		sb.WriteString("|----|------|--------|---------|----------|\n")
		for _, t := range tests {
			security := t.Annotations.Security
			if security != "" {
				security = "**" + security + "**"
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
				t.Annotations.TestCaseID, t.Name, t.Status, escapeCell(t.Annotations.Purpose), escapeCell(security))
		}
		sb.WriteString("\n")
	}

	if s.Failed > 0 {
		sb.WriteString("## Failure Details\n\n")
		for _, t := range s.Results {
			if t.Status == "fail" {
				fmt.Fprintf(&sb, "### %s (%s)\n\n```\n%s\n```\n\n", t.Name, t.Package, t.Failure)
			}
		}
	}
	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func writeJSON(s ReportSummary, path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return writeFile(path, string(data)+"\n")
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
