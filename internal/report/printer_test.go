package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freewebtopdf/source-patcher/internal/domain"
)

func sampleReport() *domain.PatchReport {
	return &domain.PatchReport{
		Source:      "demo.txt",
		Destination: "demo.txt",
		State:       domain.StateWritten,
		Changed:     true,
		Results: []domain.EditResult{
			{Index: 0, RuleID: "fix-b", Type: domain.RuleReplace, Status: domain.StatusApplied, Count: 1, Lines: []int{1}},
			{Index: 1, RuleID: "rule-1", Type: domain.RuleInsert, Status: domain.StatusNotFound, Message: "no line contains any of [\"x\"]"},
			{Index: 2, RuleID: "guarded", Type: domain.RuleReplace, Status: domain.StatusSkipped, Message: "document already contains \"y\""},
		},
		Diff: "--- a\n+++ b\n@@ -1 +1 @@\n-B\n+X\n",
	}
}

func TestPrinter_Text(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatText)
	require.NoError(t, p.Print(sampleReport()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, "[0] replace fix-b: applied count=1 lines=1", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "[1] insert rule-1: not_found ("))
	assert.True(t, strings.HasPrefix(lines[2], "[2] replace guarded: skipped ("))
	assert.Equal(t, "--- a", lines[3])
	assert.Equal(t, "+X", lines[7])
	assert.NotContains(t, buf.String(), "\x1b[", "no colour when not writing to a terminal")
}

func TestPrinter_ForcedColor(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatText)
	p.SetColor(true)
	require.NoError(t, p.Print(sampleReport()))
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestPrinter_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, FormatJSON).Print(sampleReport()))

	var decoded domain.PatchReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, domain.StateWritten, decoded.State)
	assert.Len(t, decoded.Results, 3)
	assert.Equal(t, domain.StatusSkipped, decoded.Results[2].Status)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	_, err = ParseFormat("yaml")
	assert.Error(t, err)
}

func TestFormatLines(t *testing.T) {
	assert.Equal(t, "1", formatLines([]int{1}))
	assert.Equal(t, "2-4,7,9-10", formatLines([]int{2, 3, 4, 7, 9, 10}))
	assert.Equal(t, "", formatLines(nil))
}
