package patcher

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/freewebtopdf/source-patcher/internal/document"
	"github.com/freewebtopdf/source-patcher/internal/domain"
)

// skipReason evaluates a rule's guards against the current document. A
// non-empty reason means the rule is skipped.
func skipReason(doc *document.Document, index int, rule *domain.PatchRule) (string, error) {
	if rule.UnlessContains != "" && strings.Contains(doc.Text(), doc.Normalize(rule.UnlessContains)) {
		return fmt.Sprintf("document already contains %q", truncate(rule.UnlessContains)), nil
	}
	if rule.When == "" {
		return "", nil
	}

	program := rule.GetCompiledWhen()
	if program == nil {
		compiled, err := expr.Compile(rule.When, expr.Env(domain.ConditionEnv{}), expr.AsBool())
		if err != nil {
			return "", domain.NewAppErrorWithCause(domain.ErrValidationFailed, "Invalid when expression", 422, err, map[string]any{
				"index":   index,
				"rule_id": rule.Label(index),
				"field":   "when",
			})
		}
		rule.SetCompiledWhen(compiled)
		program = compiled
	}

	out, err := expr.Run(program, domain.ConditionEnv{
		Content: doc.Text(),
		Path:    doc.Path(),
		Lines:   doc.LineCount(),
	})
	if err != nil {
		return "", domain.NewAppErrorWithCause(domain.ErrValidationFailed, "when expression failed", 422, err, map[string]any{
			"index":   index,
			"rule_id": rule.Label(index),
			"field":   "when",
		})
	}
	if ok, _ := out.(bool); !ok {
		return fmt.Sprintf("condition %q is false", truncate(rule.When)), nil
	}
	return "", nil
}
