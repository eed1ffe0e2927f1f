package domain

import "context"

// Patcher runs one load, transform, write pipeline
type Patcher interface {
	Run(ctx context.Context, req PatchRequest) (*PatchReport, error)
}

// RuleSetRepository defines the contract for named rule set lookup
type RuleSetRepository interface {
	List(ctx context.Context) ([]RuleSetInfo, error)
	Get(ctx context.Context, name string) (*RuleSet, error)
	Reload(ctx context.Context) error

	// Health and monitoring
	HealthCheck(ctx context.Context) HealthStatus
	GetStats(ctx context.Context) map[string]any
}

// RuleSetCache defines the contract for caching parsed rule sets
type RuleSetCache interface {
	Get(key string) (*RuleSet, bool)
	Set(key string, set *RuleSet)
	Invalidate(key string)
	Clear()
	Stats() CacheStats

	// Health and monitoring
	HealthCheck(ctx context.Context) HealthStatus
}

// Journal records completed patch runs
type Journal interface {
	Record(ctx context.Context, entry JournalEntry) error
	Recent(ctx context.Context, limit int) ([]JournalEntry, error)
	HealthCheck(ctx context.Context) HealthStatus
}

// HealthComponent is anything able to report its own health
type HealthComponent interface {
	HealthCheck(ctx context.Context) HealthStatus
}

// HealthChecker defines the interface for system health monitoring
type HealthChecker interface {
	CheckHealth(ctx context.Context) SystemHealth
	CheckComponent(ctx context.Context, component string) HealthStatus
}

// Validator defines the interface for rule validation
type Validator interface {
	ValidateRule(index int, rule *PatchRule) error
	ValidateRules(rules []PatchRule) error
	ValidateRuleSet(set *RuleSet) error
}
