// Package health aggregates component health for the service endpoints.
package health

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/freewebtopdf/source-patcher/internal/domain"
)

// StatsProvider is implemented by components that expose counters
type StatsProvider interface {
	GetStats(ctx context.Context) map[string]any
}

type component struct {
	name  string
	check domain.HealthComponent
}

// SystemHealthChecker implements domain.HealthChecker over registered components
type SystemHealthChecker struct {
	components []component

	timeout   time.Duration
	startTime time.Time

	// cached result to avoid expensive checks on every request
	lastCheck   time.Time
	lastHealth  domain.SystemHealth
	cacheTTL    time.Duration
	healthMutex sync.Mutex
}

// NewSystemHealthChecker creates a checker whose results are cached for ttl
func NewSystemHealthChecker(ttl time.Duration) *SystemHealthChecker {
	return &SystemHealthChecker{
		timeout:   5 * time.Second,
		cacheTTL:  ttl,
		startTime: time.Now(),
	}
}

// Register adds a named component. Nil components are ignored.
func (h *SystemHealthChecker) Register(name string, c domain.HealthComponent) {
	if c == nil {
		return
	}
	h.healthMutex.Lock()
	defer h.healthMutex.Unlock()
	h.components = append(h.components, component{name: name, check: c})
	h.lastCheck = time.Time{}
}

// Components lists registered component names in order
func (h *SystemHealthChecker) Components() []string {
	h.healthMutex.Lock()
	defer h.healthMutex.Unlock()
	names := make([]string, len(h.components))
	for i, c := range h.components {
		names[i] = c.name
	}
	return names
}

// CheckHealth checks every component and reports the worst status
func (h *SystemHealthChecker) CheckHealth(ctx context.Context) domain.SystemHealth {
	h.healthMutex.Lock()
	defer h.healthMutex.Unlock()

	if h.cacheTTL > 0 && !h.lastCheck.IsZero() && time.Since(h.lastCheck) < h.cacheTTL {
		return h.lastHealth
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	now := time.Now()
	components := make(map[string]domain.HealthStatus, len(h.components))
	overall := domain.HealthStatusHealthy

	for _, c := range h.components {
		status := c.check.HealthCheck(checkCtx)
		components[c.name] = status
		overall = aggregateStatus(overall, status.Status)
	}

	systemHealth := domain.SystemHealth{
		Status:     overall,
		Timestamp:  now,
		Components: components,
		Metrics:    h.collectMetrics(checkCtx),
		Uptime:     time.Since(h.startTime),
	}

	h.lastCheck = now
	h.lastHealth = systemHealth
	return systemHealth
}

// CheckComponent checks a single named component
func (h *SystemHealthChecker) CheckComponent(ctx context.Context, name string) domain.HealthStatus {
	h.healthMutex.Lock()
	var found domain.HealthComponent
	for _, c := range h.components {
		if c.name == name {
			found = c.check
			break
		}
	}
	h.healthMutex.Unlock()

	if found == nil {
		return domain.HealthStatus{
			Status:    domain.HealthStatusUnhealthy,
			Message:   "Unknown component",
			Timestamp: time.Now(),
			Details: map[string]any{
				"component": name,
				"error":     "Component not found",
			},
		}
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return found.HealthCheck(checkCtx)
}

// Metrics returns component counters without running health checks
func (h *SystemHealthChecker) Metrics(ctx context.Context) map[string]any {
	h.healthMutex.Lock()
	defer h.healthMutex.Unlock()
	return h.collectMetrics(ctx)
}

func (h *SystemHealthChecker) collectMetrics(ctx context.Context) map[string]any {
	metrics := make(map[string]any)
	for _, c := range h.components {
		if p, ok := c.check.(StatsProvider); ok {
			if stats := p.GetStats(ctx); stats != nil {
				metrics[c.name] = stats
			}
		}
		if cache, ok := c.check.(interface{ Stats() domain.CacheStats }); ok {
			metrics[c.name] = cache.Stats()
		}
	}

	metrics["system"] = map[string]any{
		"uptime_seconds": time.Since(h.startTime).Seconds(),
		"components":     len(h.components),
	}
	return metrics
}

// aggregateStatus keeps the worse of two statuses
func aggregateStatus(current, componentStatus string) string {
	statusPriority := map[string]int{
		domain.HealthStatusHealthy:   0,
		domain.HealthStatusDegraded:  1,
		domain.HealthStatusUnhealthy: 2,
	}

	componentPriority, known := statusPriority[componentStatus]
	if !known {
		componentPriority = statusPriority[domain.HealthStatusUnhealthy]
		componentStatus = domain.HealthStatusUnhealthy
	}
	if componentPriority > statusPriority[current] {
		return componentStatus
	}
	return current
}

// DirectoryCheck reports whether a directory exists and accepts new files
type DirectoryCheck struct {
	Path string
}

// HealthCheck writes and removes a temporary file in the directory
func (d DirectoryCheck) HealthCheck(ctx context.Context) domain.HealthStatus {
	status := domain.HealthStatus{
		Status:    domain.HealthStatusHealthy,
		Message:   "Directory is writable",
		Details:   map[string]any{"path": d.Path},
		Timestamp: time.Now(),
	}

	info, err := os.Stat(d.Path)
	if err != nil {
		status.Status = domain.HealthStatusUnhealthy
		status.Message = "Directory is not accessible"
		status.Details["error"] = err.Error()
		return status
	}
	if !info.IsDir() {
		status.Status = domain.HealthStatusUnhealthy
		status.Message = "Path is not a directory"
		return status
	}

	tmp, err := os.CreateTemp(d.Path, ".health-*")
	if err != nil {
		status.Status = domain.HealthStatusDegraded
		status.Message = "Directory is read-only"
		status.Details["error"] = err.Error()
		return status
	}
	name := tmp.Name()
	_ = tmp.Close()
	_ = os.Remove(name)
	return status
}
