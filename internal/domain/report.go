package domain

import "time"

// EditStatus is the outcome of one rule
type EditStatus string

const (
	StatusApplied  EditStatus = "applied"
	StatusNotFound EditStatus = "not_found"
	StatusSkipped  EditStatus = "skipped"
)

// EditResult reports what one rule did to the document
type EditResult struct {
	Index   int        `json:"index"`
	RuleID  string     `json:"rule_id"`
	Type    RuleType   `json:"type"`
	Status  EditStatus `json:"status"`
	Offsets []int      `json:"offsets,omitempty"` // byte offsets in the encoded file the rule was applied to
	Lines   []int      `json:"lines,omitempty"`   // zero-based
	Count   int        `json:"count"`
	Message string     `json:"message,omitempty"`
}

// PatchState is a step of the load, transform, write pipeline
type PatchState string

const (
	StateLoaded       PatchState = "loaded"
	StateTransforming PatchState = "transforming"
	StateReady        PatchState = "ready"
	StateWritten      PatchState = "written"
	StateUnchanged    PatchState = "unchanged"
	StateDryRun       PatchState = "dry_run"
	StateAborted      PatchState = "aborted"
)

// Terminal reports whether no further transition can follow
func (s PatchState) Terminal() bool {
	switch s {
	case StateWritten, StateUnchanged, StateDryRun, StateAborted:
		return true
	}
	return false
}

// PatchRequest describes one patch run
type PatchRequest struct {
	Source      string      `json:"source" validate:"required"`
	Destination string      `json:"out,omitempty"`
	RuleSet     string      `json:"ruleset,omitempty"`
	Rules       []PatchRule `json:"rules,omitempty"`
	DryRun      bool        `json:"dry_run,omitempty"`
	IncludeDiff bool        `json:"diff,omitempty"`
	RequestID   string      `json:"-"`
}

// PatchReport is the outcome of one patch run
type PatchReport struct {
	Source      string       `json:"source"`
	Destination string       `json:"destination"`
	RuleSet     string       `json:"ruleset,omitempty"`
	Results     []EditResult `json:"results"`
	State       PatchState   `json:"state"`
	Changed     bool         `json:"changed"`
	LinesBefore int          `json:"lines_before"`
	LinesAfter  int          `json:"lines_after"`
	Diff        string       `json:"diff,omitempty"`
	ErrorCode   string       `json:"error_code,omitempty"`
	Duration    string       `json:"duration"`
	StartedAt   time.Time    `json:"started_at"`
}

// Count returns how many results have the given status
func (r *PatchReport) Count(status EditStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// JournalEntry is one recorded patch run
type JournalEntry struct {
	ID          string     `json:"id"`
	RequestID   string     `json:"request_id,omitempty"`
	Source      string     `json:"source"`
	Destination string     `json:"destination"`
	RuleSet     string     `json:"ruleset,omitempty"`
	State       PatchState `json:"state"`
	Applied     int        `json:"applied"`
	NotFound    int        `json:"not_found"`
	Skipped     int        `json:"skipped"`
	ErrorCode   string     `json:"error_code,omitempty"`
	DurationMS  int64      `json:"duration_ms"`
	CreatedAt   time.Time  `json:"created_at"`
}

// RuleSetInfo summarises a discovered rule set
type RuleSetInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	FilePath    string `json:"file_path"`
	RuleCount   int    `json:"rule_count"`
	Error       string `json:"error,omitempty"`
}

// LoadError represents an error loading a specific rule file
type LoadError struct {
	FilePath string `json:"file_path"`
	Error    string `json:"error"`
	Line     int    `json:"line,omitempty"`
}

// RuleFile is the mapping form of a rules file
type RuleFile struct {
	Name        string      `json:"name,omitempty" yaml:"name,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Rules       []PatchRule `json:"rules" yaml:"rules"`
}

// CacheStats represents cache performance metrics
type CacheStats struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	Size     int     `json:"size"`
	MaxSize  int     `json:"max_size"`
	HitRatio float64 `json:"hit_ratio"`
}

// HealthStatus represents the health status of a component
type HealthStatus struct {
	Status    string         `json:"status"` // "healthy", "unhealthy", "degraded"
	Message   string         `json:"message,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Health status constants
const (
	HealthStatusHealthy   = "healthy"
	HealthStatusUnhealthy = "unhealthy"
	HealthStatusDegraded  = "degraded"
)

// SystemHealth represents overall system health
type SystemHealth struct {
	Status     string                  `json:"status"`
	Timestamp  time.Time               `json:"timestamp"`
	Components map[string]HealthStatus `json:"components"`
	Metrics    map[string]any          `json:"metrics,omitempty"`
	Uptime     time.Duration           `json:"uptime"`
}
