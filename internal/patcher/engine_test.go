package patcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freewebtopdf/source-patcher/internal/document"
	"github.com/freewebtopdf/source-patcher/internal/domain"
)

func TestEngine_AppliesInOrderAgainstUpdatedDocument(t *testing.T) {
	rules := []domain.PatchRule{
		{Type: domain.RuleReplace, Find: "B", Replace: "X"},
		// only matches after the first rule ran
		{ID: "second", Type: domain.RuleReplace, Find: "X", Replace: "Y"},
	}
	out, results, err := NewEngine().Apply(context.Background(), document.New("A\nB\nC\n"), rules)

	require.NoError(t, err)
	assert.Equal(t, "A\nY\nC\n", out.Text())
	require.Len(t, results, 2)
	assert.Equal(t, "rule-0", results[0].RuleID)
	assert.Equal(t, "second", results[1].RuleID)
	assert.Equal(t, 1, results[1].Index)
	assert.Equal(t, domain.RuleReplace, results[1].Type)
}

func TestEngine_OptionalMissContinues(t *testing.T) {
	rules := []domain.PatchRule{
		{Type: domain.RuleReplace, Find: "nope", Replace: "X"},
		{Type: domain.RuleReplace, Find: "B", Replace: "X"},
	}
	out, results, err := NewEngine().Apply(context.Background(), document.New("A\nB\n"), rules)

	require.NoError(t, err)
	assert.Equal(t, "A\nX\n", out.Text())
	assert.Equal(t, domain.StatusNotFound, results[0].Status)
	assert.Equal(t, domain.StatusApplied, results[1].Status)
}

func TestEngine_RequiredMissAborts(t *testing.T) {
	doc := document.New("A\nB\n")
	rules := []domain.PatchRule{
		{Type: domain.RuleReplace, Find: "A", Replace: "Z"},
		{ID: "must", Type: domain.RuleInsert, Required: true, Anchor: &domain.AnchorSpec{Markers: []string{"missing"}}, Payload: "x"},
		{Type: domain.RuleReplace, Find: "B", Replace: "Q"},
	}
	out, results, err := NewEngine().Apply(context.Background(), doc, rules)

	require.Error(t, err)
	assert.True(t, domain.IsPatchError(err))
	assert.Same(t, doc, out, "the original document comes back untouched")
	require.Len(t, results, 2, "later rules never run")
	assert.Equal(t, domain.StatusNotFound, results[1].Status)

	var appErr *domain.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 1, appErr.Details.(map[string]any)["index"])
	assert.Equal(t, "must", appErr.Details.(map[string]any)["rule_id"])
}

func TestEngine_RangeErrorAborts(t *testing.T) {
	rules := []domain.PatchRule{
		{Type: domain.RuleDeleteRange, Start: domain.IntPtr(1), End: domain.IntPtr(9)},
	}
	_, results, err := NewEngine().Apply(context.Background(), document.New("a\nb\n"), rules)

	assert.True(t, domain.IsRangeError(err))
	require.Len(t, results, 1)
}

func TestEngine_DeleteRangeRule(t *testing.T) {
	rules := []domain.PatchRule{
		{Type: domain.RuleDeleteRange, Start: domain.IntPtr(2), End: domain.IntPtr(5)},
	}
	out, results, err := NewEngine().Apply(context.Background(), docOf(numberedLines(10)), rules)

	require.NoError(t, err)
	assert.Equal(t, 7, out.LineCount())
	assert.Equal(t, []int{2, 3, 4}, results[0].Lines)
	assert.Equal(t, 3, results[0].Count)
	assert.Equal(t, 6, results[0].Offsets[0])
}

func TestEngine_UnlessContainsGuard(t *testing.T) {
	rule := domain.PatchRule{
		Type:           domain.RuleInsert,
		Anchor:         &domain.AnchorSpec{Markers: []string{"import React"}},
		Payload:        "import { useCallback } from 'react';",
		Position:       domain.PositionAfter,
		UnlessContains: "useCallback",
	}
	engine := NewEngine()

	first, results, err := engine.Apply(context.Background(), document.New("import React from 'react';\n"), []domain.PatchRule{rule})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApplied, results[0].Status)

	second, results, err := engine.Apply(context.Background(), first, []domain.PatchRule{rule})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSkipped, results[0].Status)
	assert.Equal(t, first.Text(), second.Text(), "guarded rules are idempotent")
}

func TestEngine_WhenCondition(t *testing.T) {
	rules := []domain.PatchRule{
		{ID: "tsx-only", Type: domain.RuleReplace, Find: "a", Replace: "b", When: `path endsWith ".tsx"`},
		{ID: "short-files", Type: domain.RuleReplace, Find: "a", Replace: "c", When: "lines < 5 && content contains 'a'"},
	}
	require.NoError(t, domain.NewRuleValidator().ValidateRules(rules))

	doc := document.Parse("demo.ts", []byte("a\n"))
	out, results, err := NewEngine().Apply(context.Background(), doc, rules)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusSkipped, results[0].Status)
	assert.Equal(t, domain.StatusApplied, results[1].Status)
	assert.Equal(t, "c\n", out.Text())
}

func TestEngine_WhenCompiledLazily(t *testing.T) {
	rules := []domain.PatchRule{{Type: domain.RuleReplace, Find: "a", Replace: "b", When: "lines > 0"}}
	out, _, err := NewEngine().Apply(context.Background(), document.New("a\n"), rules)
	require.NoError(t, err)
	assert.Equal(t, "b\n", out.Text())

	bad := []domain.PatchRule{{Type: domain.RuleReplace, Find: "a", Replace: "b", When: "lines >"}}
	_, _, err = NewEngine().Apply(context.Background(), document.New("a\n"), bad)
	assert.True(t, domain.IsValidationError(err))
}

func TestEngine_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewEngine().Apply(ctx, document.New("a"), []domain.PatchRule{{Type: domain.RuleReplace, Find: "a"}})
	assert.True(t, domain.IsTimeout(err))
}

func TestEngine_NoRulesIsNoop(t *testing.T) {
	doc := document.New("a\n")
	out, results, err := NewEngine().Apply(context.Background(), doc, nil)
	require.NoError(t, err)
	assert.Same(t, doc, out)
	assert.Empty(t, results)
}
