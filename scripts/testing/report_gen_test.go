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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mod = "github.com/patliputra/backoffice"

func TestCategoryAndType(t *testing.T) {
	cases := []struct {
		pkg, category, typ string
	}{
		{mod + "/internal/rbac", "RBAC", "UT"},
		{mod + "/internal/transport/http", "API", "UT"},
		{mod + "/internal/store/postgres", "Store", "UT"},
		{mod + "/cmd/adminctl", "CLI", "UT"},
		{mod + "/tests/system", "SYSTEM Tests", "SYSTEM"},
		{mod + "/tests/e2e", "E2E Tests", "E2E"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.category, category(mod, tc.pkg), tc.pkg)
		assert.Equal(t, tc.typ, testType(mod, tc.pkg), tc.pkg)
	}
}

func TestScanAndMerge(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write("go.mod", "module "+mod+"\n\ngo 1.24\n")
	write("internal/guard/guard_test.go", `package guard

import "testing"

// TestPurpose: Anonymous users are redirected.
// Scope: Unit Test
// Security: Route protection
// Expected: Redirect to login.
// Test Case ID: GRD-01
func TestAnonymous(t *testing.T) {}

func TestPlain(t *testing.T) {}
`)
	write("_skip/ignored_test.go", "package skip\n\nfunc TestIgnored(t *testing.T) {}\n")

	modulePath, err := readModulePath(filepath.Join(root, "go.mod"))
	require.NoError(t, err)
	require.Equal(t, mod, modulePath)

	meta, err := scanMetadata(root, modulePath)
	require.NoError(t, err)
	require.Len(t, meta, 2)
	m := meta[mod+"/internal/guard.TestAnonymous"]
	assert.Equal(t, "GRD-01", m.TestCaseID)
	assert.Equal(t, "Route protection", m.Security)
	assert.Equal(t, "Guard", m.Category)

	events := strings.Join([]string{
		`{"Action":"run","Package":"` + mod + `/internal/guard","Test":"TestAnonymous"}`,
		`{"Action":"pass","Package":"` + mod + `/internal/guard","Test":"TestAnonymous/sub","Elapsed":0.01}`,
		`{"Action":"output","Package":"` + mod + `/internal/guard","Test":"TestPlain","Output":"boom\n"}`,
		`{"Action":"fail","Package":"` + mod + `/internal/guard","Test":"TestPlain","Elapsed":0.02}`,
		`{"Action":"pass","Package":"` + mod + `/internal/guard","Test":"TestAnonymous","Elapsed":0.03}`,
		`not json`,
	}, "\n")
	input := filepath.Join(root, "test.json")
	require.NoError(t, os.WriteFile(input, []byte(events), 0o644))

	results, err := parseTestOutput(input, modulePath, meta)
	require.NoError(t, err)
	require.Len(t, results, 3)

	byName := map[string]TestResult{}
	for _, r := range results {
		byName[r.Name] = r
	}
	assert.Equal(t, "pass", byName["TestAnonymous"].Status)
	assert.Equal(t, "GRD-01", byName["TestAnonymous/sub"].Annotations.TestCaseID)
	assert.Equal(t, "fail", byName["TestPlain"].Status)
	assert.Contains(t, byName["TestPlain"].Failure, "boom")

	s := summarize(results)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Failed)

	md := renderMarkdown(s, "Test Report")
	assert.Contains(t, md, "**Status:** FAILED")
	assert.Contains(t, md, "| GRD-01 | TestAnonymous | pass |")
	assert.Contains(t, md, "## Failure Details")
}
