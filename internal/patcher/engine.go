// Package patcher applies ordered literal and anchor rules to a document.
// Compute is kept apart from commit: nothing here touches the filesystem.
package patcher

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/freewebtopdf/source-patcher/internal/document"
	"github.com/freewebtopdf/source-patcher/internal/domain"
)

// Engine applies rule lists to documents
type Engine struct{}

// NewEngine creates a rule engine
func NewEngine() *Engine {
	return &Engine{}
}

// Apply runs rules in declared order, each against the output of the one
// before. A not_found on a required rule stops the run with a PATCH_ERROR and
// the original document; results up to and including the failing rule are
// returned either way.
func (e *Engine) Apply(ctx context.Context, doc *document.Document, rules []domain.PatchRule) (*document.Document, []domain.EditResult, error) {
	current := doc
	results := make([]domain.EditResult, 0, len(rules))

	for i := range rules {
		if err := ctx.Err(); err != nil {
			return doc, results, domain.NewAppErrorWithCause(domain.ErrTimeout, "patch cancelled", 408, err, map[string]any{"index": i})
		}

		rule := &rules[i]
		label := rule.Label(i)

		reason, err := skipReason(current, i, rule)
		if err != nil {
			return doc, results, err
		}
		if reason != "" {
			res := domain.EditResult{Status: domain.StatusSkipped, Message: reason}
			results = append(results, stamp(res, i, rule))
			log.Debug().Int("rule_index", i).Str("rule_id", label).Str("reason", reason).Msg("Rule skipped")
			continue
		}

		next, res, err := applyOne(current, rule)
		res = stamp(res, i, rule)
		if err != nil {
			results = append(results, res)
			log.Error().Err(err).Int("rule_index", i).Str("rule_id", label).Msg("Rule failed")
			return doc, results, err
		}

		if res.Status == domain.StatusNotFound {
			results = append(results, res)
			if rule.Required {
				log.Error().Int("rule_index", i).Str("rule_id", label).Str("reason", res.Message).Msg("Required rule not satisfied")
				return doc, results, domain.NewPatchError(i, label, res.Message)
			}
			log.Warn().Int("rule_index", i).Str("rule_id", label).Str("status", string(res.Status)).
				Str("reason", res.Message).Msg("Rule did not match")
			continue
		}

		log.Debug().Int("rule_index", i).Str("rule_id", label).Int("count", res.Count).Msg("Rule applied")
		results = append(results, res)
		current = next
	}

	return current, results, nil
}

func applyOne(doc *document.Document, rule *domain.PatchRule) (*document.Document, domain.EditResult, error) {
	switch rule.Type {
	case domain.RuleReplace:
		next, res := ApplyReplace(doc, rule)
		return next, res, nil
	case domain.RuleInsert:
		next, res := ApplyInsert(doc, rule)
		return next, res, nil
	case domain.RuleReplaceBetween:
		next, res := ApplyReplaceBetween(doc, rule)
		return next, res, nil
	case domain.RuleDeleteRange:
		if rule.Start == nil || rule.End == nil {
			return doc, domain.EditResult{Status: domain.StatusNotFound}, domain.NewAppError(domain.ErrValidationFailed, "delete_range needs start and end", 422, nil)
		}
		return applyDeleteRange(doc, rule)
	}
	return doc, domain.EditResult{Status: domain.StatusNotFound}, domain.NewAppError(domain.ErrValidationFailed,
		fmt.Sprintf("unknown rule type %q", rule.Type), 422, map[string]any{"field": "type"})
}

func stamp(res domain.EditResult, index int, rule *domain.PatchRule) domain.EditResult {
	res.Index = index
	res.RuleID = rule.Label(index)
	res.Type = rule.Type
	return res
}
