package domain

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/go-playground/validator/v10"
)

// RuleValidator checks patch rules with struct tags and per-type semantic checks.
// It also compiles when expressions so the engine can evaluate them without
// recompiling.
type RuleValidator struct {
	validate   *validator.Validate
	maxPayload int
}

// NewRuleValidator creates a rule validator with default settings
func NewRuleValidator() *RuleValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RuleValidator{
		validate:   v,
		maxPayload: 1 << 20, // 1MB
	}
}

// ValidateRules validates every rule in order and stops at the first failure.
// Explicit rule ids must be unique within the list; generated rule-<index>
// labels never collide.
func (v *RuleValidator) ValidateRules(rules []PatchRule) error {
	seen := make(map[string]int, len(rules))
	for i := range rules {
		if err := v.ValidateRule(i, &rules[i]); err != nil {
			return err
		}
		id := rules[i].ID
		if id == "" {
			continue
		}
		if first, dup := seen[id]; dup {
			return NewAppError(ErrValidationFailed, fmt.Sprintf("duplicate rule id %q", id), 422, map[string]any{
				"index":       i,
				"rule_id":     id,
				"field":       "id",
				"first_index": first,
			})
		}
		seen[id] = i
	}
	return nil
}

// ValidateRuleSet validates a loaded rule set
func (v *RuleValidator) ValidateRuleSet(set *RuleSet) error {
	if set == nil {
		return NewAppError(ErrValidationFailed, "Rule set cannot be nil", 422, nil)
	}
	if err := v.ValidateRules(set.Rules); err != nil {
		if appErr, ok := err.(*AppError); ok {
			if details, ok := appErr.Details.(map[string]any); ok {
				details["ruleset"] = set.Name
			}
		}
		return err
	}
	return nil
}

// ValidateRule validates a single rule. index is the rule's position in its list.
func (v *RuleValidator) ValidateRule(index int, rule *PatchRule) error {
	if rule == nil {
		return NewAppError(ErrValidationFailed, "Rule cannot be nil", 422, map[string]any{"index": index})
	}

	if err := v.validate.Struct(rule); err != nil {
		return v.formatValidationError(index, rule, err)
	}

	var err error
	switch rule.Type {
	case RuleReplace:
		err = v.validateReplace(index, rule)
	case RuleInsert:
		err = v.validateInsert(index, rule)
	case RuleDeleteRange:
		err = v.validateDeleteRange(index, rule)
	case RuleReplaceBetween:
		err = v.validateReplaceBetween(index, rule)
	}
	if err != nil {
		return err
	}

	return v.compileWhen(index, rule)
}

func (v *RuleValidator) validateReplace(index int, rule *PatchRule) error {
	if rule.Find == "" {
		return ruleFieldError(index, rule, "find", "find is required for replace rules")
	}
	return v.checkSize(index, rule, "replace", rule.Replace)
}

func (v *RuleValidator) validateInsert(index int, rule *PatchRule) error {
	if rule.Anchor == nil {
		return ruleFieldError(index, rule, "anchor", "anchor is required for insert rules")
	}
	if rule.Payload == "" {
		return ruleFieldError(index, rule, "payload", "payload is required for insert rules")
	}
	if seek := rule.Anchor.Seek; seek != nil && seek.Match == SeekContains && seek.Token == "" {
		return ruleFieldError(index, rule, "anchor.seek.token", "seek token is required when match is contains")
	}
	return v.checkSize(index, rule, "payload", rule.Payload)
}

// validateDeleteRange only checks presence and sign. Ordering against the
// document is checked when the range is applied so it surfaces as RANGE_ERROR.
func (v *RuleValidator) validateDeleteRange(index int, rule *PatchRule) error {
	if rule.Start == nil {
		return ruleFieldError(index, rule, "start", "start is required for delete_range rules")
	}
	if rule.End == nil {
		return ruleFieldError(index, rule, "end", "end is required for delete_range rules")
	}
	return nil
}

func (v *RuleValidator) validateReplaceBetween(index int, rule *PatchRule) error {
	if rule.StartMarker == "" {
		return ruleFieldError(index, rule, "start_marker", "start_marker is required for replace_between rules")
	}
	if rule.EndMarker == "" {
		return ruleFieldError(index, rule, "end_marker", "end_marker is required for replace_between rules")
	}
	return v.checkSize(index, rule, "replace", rule.Replace)
}

func (v *RuleValidator) checkSize(index int, rule *PatchRule, field, content string) error {
	if len(content) > v.maxPayload {
		return NewAppError(ErrValidationFailed, fmt.Sprintf("%s too large (max %d bytes)", field, v.maxPayload), 422, map[string]any{
			"index":    index,
			"rule_id":  rule.Label(index),
			"field":    field,
			"size":     len(content),
			"max_size": v.maxPayload,
		})
	}
	return nil
}

func (v *RuleValidator) compileWhen(index int, rule *PatchRule) error {
	if rule.When == "" {
		rule.SetCompiledWhen(nil)
		return nil
	}
	program, err := expr.Compile(rule.When, expr.Env(ConditionEnv{}), expr.AsBool())
	if err != nil {
		return NewAppErrorWithCause(ErrValidationFailed, "Invalid when expression", 422, err, map[string]any{
			"index":   index,
			"rule_id": rule.Label(index),
			"field":   "when",
		})
	}
	rule.SetCompiledWhen(program)
	return nil
}

func ruleFieldError(index int, rule *PatchRule, field, message string) error {
	return NewAppError(ErrValidationFailed, message, 422, map[string]any{
		"index":   index,
		"rule_id": rule.Label(index),
		"field":   field,
	})
}

// formatValidationError turns validator errors into a single VALIDATION_FAILED error
func (v *RuleValidator) formatValidationError(index int, rule *PatchRule, err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return NewAppErrorWithCause(ErrValidationFailed, "Rule validation failed", 422, err, map[string]any{"index": index})
	}

	var messages, fields []string
	for _, e := range validationErrors {
		field := strings.TrimPrefix(e.Namespace(), "PatchRule.")
		fields = append(fields, field)
		switch e.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", field))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must be at least %s", field, e.Param()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s", field, e.Param()))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of: %s", field, e.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed validation: %s", field, e.Tag()))
		}
	}

	return NewAppError(ErrValidationFailed, strings.Join(messages, "; "), 422, map[string]any{
		"index":   index,
		"rule_id": rule.Label(index),
		"fields":  fields,
	})
}
