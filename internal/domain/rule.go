package domain

import (
	"fmt"

	"github.com/expr-lang/expr/vm"
)

// RuleType selects the variant of a PatchRule
type RuleType string

const (
	// RuleReplace replaces a literal substring
	RuleReplace RuleType = "replace"
	// RuleInsert inserts a block of lines next to an anchor line
	RuleInsert RuleType = "insert"
	// RuleDeleteRange removes a zero-based, end-exclusive line range
	RuleDeleteRange RuleType = "delete_range"
	// RuleReplaceBetween replaces the span from a start marker through an end marker
	RuleReplaceBetween RuleType = "replace_between"
)

// Occurrence controls how many matches a replace rule rewrites
type Occurrence string

const (
	OccurrenceFirst Occurrence = "first"
	OccurrenceAll   Occurrence = "all"
)

// Position places an inserted block relative to the located line
type Position string

const (
	PositionBefore Position = "before"
	PositionAfter  Position = "after"
)

// SeekDirection is the direction of the bounded scan away from an anchor
type SeekDirection string

const (
	SeekBackward SeekDirection = "backward"
	SeekForward  SeekDirection = "forward"
)

// SeekMatch is the predicate a line must satisfy to end the scan
type SeekMatch string

const (
	// SeekBlank matches lines made only of whitespace
	SeekBlank SeekMatch = "blank"
	// SeekContains matches lines containing the seek token
	SeekContains SeekMatch = "contains"
)

// IndentMode controls how an insert payload is indented
type IndentMode string

const (
	IndentKeep IndentMode = "keep"
	IndentAuto IndentMode = "auto"
)

const (
	// DefaultSeekWindow is the number of lines scanned when a seek sets no window
	DefaultSeekWindow = 10
	// MaxSeekWindow bounds the window a rule may ask for
	MaxSeekWindow = 1000
)

// Seek refines an anchor by scanning a bounded number of lines away from it
type Seek struct {
	Direction SeekDirection `json:"direction,omitempty" yaml:"direction,omitempty" validate:"omitempty,oneof=backward forward"`
	Match     SeekMatch     `json:"match" yaml:"match" validate:"required,oneof=blank contains"`
	Token     string        `json:"token,omitempty" yaml:"token,omitempty"`
	Window    int           `json:"window,omitempty" yaml:"window,omitempty" validate:"omitempty,min=1,max=1000"`
}

// EffectiveDirection returns the scan direction, backward when unset
func (s *Seek) EffectiveDirection() SeekDirection {
	if s.Direction == "" {
		return SeekBackward
	}
	return s.Direction
}

// EffectiveWindow returns the scan bound, DefaultSeekWindow when unset
func (s *Seek) EffectiveWindow() int {
	if s.Window <= 0 {
		return DefaultSeekWindow
	}
	return s.Window
}

// AnchorSpec locates the line an insert rule targets. The anchor is the first
// line containing any of the markers.
type AnchorSpec struct {
	Markers []string `json:"markers" yaml:"markers" validate:"required,min=1,dive,required"`
	Seek    *Seek    `json:"seek,omitempty" yaml:"seek,omitempty"`
}

// PatchRule is one ordered transformation. Type decides which of the
// variant fields are read.
type PatchRule struct {
	ID          string   `json:"id,omitempty" yaml:"id,omitempty" validate:"omitempty,max=128"`
	Type        RuleType `json:"type" yaml:"type" validate:"required,oneof=replace insert delete_range replace_between"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty" validate:"max=1024"`
	Required    bool     `json:"required,omitempty" yaml:"required,omitempty"`

	// replace
	Find       string     `json:"find,omitempty" yaml:"find,omitempty"`
	Replace    string     `json:"replace,omitempty" yaml:"replace,omitempty"`
	Occurrence Occurrence `json:"occurrence,omitempty" yaml:"occurrence,omitempty" validate:"omitempty,oneof=first all"`

	// insert
	Anchor   *AnchorSpec `json:"anchor,omitempty" yaml:"anchor,omitempty"`
	Payload  string      `json:"payload,omitempty" yaml:"payload,omitempty"`
	Position Position    `json:"position,omitempty" yaml:"position,omitempty" validate:"omitempty,oneof=before after"`
	Indent   IndentMode  `json:"indent,omitempty" yaml:"indent,omitempty" validate:"omitempty,oneof=keep auto"`

	// delete_range
	Start *int `json:"start,omitempty" yaml:"start,omitempty"`
	End   *int `json:"end,omitempty" yaml:"end,omitempty"`

	// replace_between (Replace is shared with replace)
	StartMarker string `json:"start_marker,omitempty" yaml:"start_marker,omitempty"`
	EndMarker   string `json:"end_marker,omitempty" yaml:"end_marker,omitempty"`

	// guards
	UnlessContains string `json:"unless_contains,omitempty" yaml:"unless_contains,omitempty"`
	When           string `json:"when,omitempty" yaml:"when,omitempty" validate:"max=2048"`

	compiledWhen *vm.Program `json:"-" yaml:"-"`
}

// Label returns the rule id, or rule-<index> when the rule has none
func (r *PatchRule) Label(index int) string {
	if r.ID != "" {
		return r.ID
	}
	return fmt.Sprintf("rule-%d", index)
}

// EffectiveOccurrence returns the occurrence mode, first when unset
func (r *PatchRule) EffectiveOccurrence() Occurrence {
	if r.Occurrence == "" {
		return OccurrenceFirst
	}
	return r.Occurrence
}

// EffectivePosition returns the insert position, before when unset
func (r *PatchRule) EffectivePosition() Position {
	if r.Position == "" {
		return PositionBefore
	}
	return r.Position
}

// GetCompiledWhen returns the compiled when expression, if any
func (r *PatchRule) GetCompiledWhen() *vm.Program {
	return r.compiledWhen
}

// SetCompiledWhen sets the compiled when expression
func (r *PatchRule) SetCompiledWhen(program *vm.Program) {
	r.compiledWhen = program
}

// ConditionEnv is the environment a when expression is evaluated against
type ConditionEnv struct {
	Content string `expr:"content"`
	Path    string `expr:"path"`
	Lines   int    `expr:"lines"`
}

// RuleSet is a named, ordered list of rules loaded from a rules file
type RuleSet struct {
	Name        string      `json:"name" yaml:"name,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Rules       []PatchRule `json:"rules" yaml:"rules" validate:"dive"`

	FilePath string `json:"file_path,omitempty" yaml:"-"`
}

// Clone returns a copy whose rule slice can be modified independently
func (s *RuleSet) Clone() *RuleSet {
	out := *s
	out.Rules = make([]PatchRule, len(s.Rules))
	copy(out.Rules, s.Rules)
	return &out
}

// IntPtr is a convenience for building delete_range rules
func IntPtr(v int) *int {
	return &v
}
