package domain

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestProperty_RuleLabelDefaultsToIndex(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a rule without an id is labelled rule-<index>, otherwise by its id", prop.ForAll(
		func(id string, index int) bool {
			rule := PatchRule{ID: id, Type: RuleReplace}
			if id == "" {
				return rule.Label(index) == fmt.Sprintf("rule-%d", index)
			}
			return rule.Label(index) == id
		},
		gen.OneGenOf(gen.Const(""), gen.Identifier()),
		gen.IntRange(0, 500),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestPatchRule_Defaults(t *testing.T) {
	rule := PatchRule{Type: RuleInsert}
	assert.Equal(t, OccurrenceFirst, rule.EffectiveOccurrence())
	assert.Equal(t, PositionBefore, rule.EffectivePosition())

	rule.Occurrence = OccurrenceAll
	rule.Position = PositionAfter
	assert.Equal(t, OccurrenceAll, rule.EffectiveOccurrence())
	assert.Equal(t, PositionAfter, rule.EffectivePosition())

	seek := &Seek{Match: SeekBlank}
	assert.Equal(t, SeekBackward, seek.EffectiveDirection())
	assert.Equal(t, DefaultSeekWindow, seek.EffectiveWindow())

	seek = &Seek{Match: SeekBlank, Direction: SeekForward, Window: 3}
	assert.Equal(t, SeekForward, seek.EffectiveDirection())
	assert.Equal(t, 3, seek.EffectiveWindow())
}

func TestRuleSet_Clone(t *testing.T) {
	set := &RuleSet{Name: "demo", Rules: []PatchRule{{Type: RuleReplace, Find: "a"}}}
	clone := set.Clone()
	clone.Rules[0].Find = "b"
	clone.Rules = append(clone.Rules, PatchRule{Type: RuleReplace, Find: "c"})

	assert.Equal(t, "a", set.Rules[0].Find)
	assert.Len(t, set.Rules, 1)
	assert.Equal(t, "demo", clone.Name)
}

func TestPatchState_Terminal(t *testing.T) {
	for _, s := range []PatchState{StateWritten, StateUnchanged, StateDryRun, StateAborted} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []PatchState{StateLoaded, StateTransforming, StateReady} {
		assert.False(t, s.Terminal(), s)
	}
}

func TestPatchReport_Count(t *testing.T) {
	report := &PatchReport{Results: []EditResult{
		{Status: StatusApplied},
		{Status: StatusNotFound},
		{Status: StatusApplied},
		{Status: StatusSkipped},
	}}
	assert.Equal(t, 2, report.Count(StatusApplied))
	assert.Equal(t, 1, report.Count(StatusNotFound))
	assert.Equal(t, 1, report.Count(StatusSkipped))
}
