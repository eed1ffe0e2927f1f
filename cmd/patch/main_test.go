package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliResult struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPatch_ReplaceToNewDestination(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "demo.html", "<div class=\"demo\">demo</div>\n")
	rules := writeFile(t, dir, "modal.patch.yaml", `
rules:
  - id: rename
    type: replace
    find: demo
    replace: modal
    occurrence: all
`)
	out := filepath.Join(dir, "modal.html")

	res := runCLI(t, src, "--rules", rules, "--out", out)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "[0] replace rename: applied count=2")

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "<div class=\"modal\">modal</div>\n", string(got))

	orig, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, "<div class=\"demo\">demo</div>\n", string(orig))
}

func TestPatch_InsertBeforeDocComment(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "db.js", "class Db {\n  /**\n   * Clear everything\n   */\n  async clearAll() {}\n}\n")
	rules := writeFile(t, dir, "add.patch.json", `[
  {
    "type": "insert",
    "anchor": {
      "markers": ["async clearAll():", "async clearAll()"],
      "seek": {"direction": "backward", "match": "contains", "token": "/**"}
    },
    "payload": "  async added() {}\n\n"
  }
]`)

	res := runCLI(t, src, "--rules", rules)
	require.Equal(t, exitOK, res.code, res.stderr)

	got, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, "class Db {\n  async added() {}\n\n  /**\n   * Clear everything\n   */\n  async clearAll() {}\n}\n", string(got))
}

func TestPatch_RequiredRuleWritesNothing(t *testing.T) {
	dir := t.TempDir()
	content := "line one\nline two\n"
	src := writeFile(t, dir, "a.txt", content)
	rules := writeFile(t, dir, "r.patch.yaml", `
- type: replace
  find: one
  replace: ONE
- type: replace
  find: missing
  replace: x
  required: true
`)
	before, err := os.Stat(src)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	res := runCLI(t, src, "--rules", rules)
	assert.Equal(t, exitPatch, res.code)
	assert.Contains(t, res.stderr, "PATCH_ERROR")
	assert.Contains(t, res.stdout, "[1] replace rule-1: not_found")

	got, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))

	after, err := os.Stat(src)
	require.NoError(t, err)
	assert.True(t, before.ModTime().Equal(after.ModTime()), "source was not rewritten")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp or output files left behind")
}

func TestPatch_OptionalMissIsReported(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "a.txt", "alpha\n")
	rules := writeFile(t, dir, "r.patch.yaml", `
- type: replace
  find: beta
  replace: gamma
- type: replace
  find: alpha
  replace: omega
`)

	res := runCLI(t, src, "--rules", rules)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "[0] replace rule-0: not_found")
	assert.Contains(t, res.stdout, "[1] replace rule-1: applied")

	got, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, "omega\n", string(got))
}

func TestPatch_DeleteRangeOutOfBounds(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "a.txt", "1\n2\n3\n")
	rules := writeFile(t, dir, "r.patch.yaml", "- {type: delete_range, start: 1, end: 9}\n")

	res := runCLI(t, src, "--rules", rules)
	assert.Equal(t, exitPatch, res.code)
	assert.Contains(t, res.stderr, "RANGE_ERROR")

	got, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", string(got))
}

func TestPatch_MissingSource(t *testing.T) {
	res := runCLI(t, filepath.Join(t.TempDir(), "nope.txt"))
	assert.Equal(t, exitIO, res.code)
	assert.Contains(t, res.stderr, "IO_ERROR")
}

func TestPatch_MissingRulesFile(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "a.txt", "x\n")

	res := runCLI(t, src, "--rules", filepath.Join(dir, "nope.yaml"))
	assert.Equal(t, exitIO, res.code)
	assert.Contains(t, res.stderr, "IO_ERROR")

	got, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, "x\n", string(got))
}

func TestPatch_InvalidInvocation(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "a.txt", "x\n")

	tests := []struct {
		name string
		args []string
	}{
		{"no source", nil},
		{"two sources", []string{src, src}},
		{"unknown flag", []string{src, "--bogus"}},
		{"bad format", []string{src, "--format", "xml"}},
		{"bad log level", []string{src, "--log-level", "loud"}},
		{"unsupported rules extension", []string{src, "--rules", writeFile(t, dir, "r.txt", "[]")}},
		{"unknown rule field", []string{src, "--rules", writeFile(t, dir, "u.yaml", "- {type: replace, find: a, colour: red}\n")}},
		{"invalid rule", []string{src, "--rules", writeFile(t, dir, "v.yaml", "- {type: insert, payload: x}\n")}},
		{"bad when expression", []string{src, "--rules", writeFile(t, dir, "w.yaml", "- {type: replace, find: a, when: 'lines >'}\n")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, tt.args...)
			assert.Equal(t, exitInvalid, res.code, res.stderr)
			assert.Contains(t, res.stderr, "Error:")
		})
	}

	got, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, "x\n", string(got))
}

func TestPatch_DryRunWithDiff(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "a.txt", "keep\nold\n")
	rules := writeFile(t, dir, "r.patch.yaml", "- {type: replace, find: old, replace: new}\n")

	res := runCLI(t, src, "--rules", rules, "--dry-run", "--diff")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "-old\n")
	assert.Contains(t, res.stdout, "+new\n")

	got, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, "keep\nold\n", string(got))
}

func TestPatch_JSONReport(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "a.txt", "a\n")
	rules := writeFile(t, dir, "r.patch.json", `{"name": "one", "rules": [{"type": "replace", "find": "a", "replace": "b"}]}`)

	res := runCLI(t, src, "--rules", rules, "--format", "json", "--no-atomic", "--lock", "--lock-timeout", "2s")
	require.Equal(t, exitOK, res.code, res.stderr)

	var rep map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &rep))
	assert.Equal(t, "written", rep["state"])
	assert.Equal(t, true, rep["changed"])
	assert.Len(t, rep["results"], 1)
}

func TestPatch_NoRulesIsNoOp(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "a.txt", "same\n")

	res := runCLI(t, src, "--format", "json")
	require.Equal(t, exitOK, res.code, res.stderr)

	var rep map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &rep))
	assert.Equal(t, "unchanged", rep["state"])
}

func TestPatch_LogFlagsOverrideEnv(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "a.txt", "x\n")

	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "json")
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{src, "--log-level", "debug"}, &stdout, &stderr)
	require.Equal(t, exitOK, code)
	assert.Contains(t, stderr.String(), `"level":"debug"`)

	t.Setenv("LOG_LEVEL", "loud")
	stderr.Reset()
	code = execute(context.Background(), []string{src}, &stdout, &stderr)
	assert.Equal(t, exitInvalid, code)
}
