package loader

import (
	"context"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freewebtopdf/source-patcher/internal/domain"
)

var ruleSetNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*(/[A-Za-z0-9][A-Za-z0-9._-]*)*$`)

// Store implements domain.RuleSetRepository over a rules directory. The
// index maps names to files; parsed sets live in the cache and are reparsed
// on a miss.
type Store struct {
	scanner   *Scanner
	parser    *Parser
	writer    *Writer
	validator domain.Validator
	cache     domain.RuleSetCache

	mu         sync.RWMutex
	index      map[string]string
	loadErrors []domain.LoadError
	lastLoad   time.Time
}

// NewStore creates a store for dir. Call Reload before first use.
func NewStore(dir string, validator domain.Validator, cache domain.RuleSetCache) *Store {
	return &Store{
		scanner:   NewScanner(dir),
		parser:    NewParser(),
		writer:    NewWriter(),
		validator: validator,
		cache:     cache,
		index:     make(map[string]string),
	}
}

// Root returns the rules directory
func (s *Store) Root() string {
	return s.scanner.Root()
}

// Reload rescans the rules directory and reparses every rule set. Files
// that fail to parse or validate are left out and reported by LoadErrors.
func (s *Store) Reload(ctx context.Context) error {
	files, err := s.scanner.Scan(ctx)
	if err != nil {
		return domain.NewIOError("scan", s.scanner.Root(), err)
	}

	index := make(map[string]string, len(files))
	parsed := make(map[string]*domain.RuleSet, len(files))
	var loadErrors []domain.LoadError

	for _, file := range files {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		set, loadErr := s.parseAndValidate(file)
		if loadErr != nil {
			log.Warn().Str("file", loadErr.FilePath).Str("error", loadErr.Error).Msg("Skipping invalid rule set")
			loadErrors = append(loadErrors, *loadErr)
			continue
		}
		index[file.Name] = file.Path
		parsed[file.Name] = set
	}

	s.mu.Lock()
	s.index = index
	s.loadErrors = loadErrors
	s.lastLoad = time.Now()
	if s.cache != nil {
		s.cache.Clear()
		for name, set := range parsed {
			s.cache.Set(name, set)
		}
	}
	s.mu.Unlock()

	log.Info().Int("rule_sets", len(index)).Int("errors", len(loadErrors)).Str("dir", s.scanner.Root()).Msg("Rule sets loaded")
	return nil
}

func (s *Store) parseAndValidate(file ScannedFile) (*domain.RuleSet, *domain.LoadError) {
	set, loadErr := s.parser.ParseFile(file.Path)
	if loadErr != nil {
		return nil, loadErr
	}
	set.Name = file.Name

	if s.validator != nil {
		if err := s.validator.ValidateRuleSet(set); err != nil {
			return nil, &domain.LoadError{FilePath: file.Path, Error: err.Error()}
		}
	}
	return set, nil
}

// Get returns a copy of the named rule set
func (s *Store) Get(ctx context.Context, name string) (*domain.RuleSet, error) {
	s.mu.RLock()
	path, ok := s.index[name]
	s.mu.RUnlock()
	if !ok {
		return nil, notFound(name)
	}

	if s.cache != nil {
		if set, hit := s.cache.Get(name); hit {
			return set, nil
		}
	}

	set, loadErr := s.parseAndValidate(ScannedFile{Path: path, Name: name})
	if loadErr != nil {
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return nil, notFound(name)
		}
		return nil, domain.NewAppError(domain.ErrValidationFailed, loadErr.Error, 422, map[string]any{"ruleset": name, "file_path": path})
	}

	if s.cache != nil {
		s.cache.Set(name, set)
	}
	return set, nil
}

// List summarises every indexed rule set plus the files that failed to load
func (s *Store) List(ctx context.Context) ([]domain.RuleSetInfo, error) {
	s.mu.RLock()
	names := make([]string, 0, len(s.index))
	for name := range s.index {
		names = append(names, name)
	}
	loadErrors := append([]domain.LoadError(nil), s.loadErrors...)
	s.mu.RUnlock()
	sort.Strings(names)

	infos := make([]domain.RuleSetInfo, 0, len(names)+len(loadErrors))
	for _, name := range names {
		set, err := s.Get(ctx, name)
		if err != nil {
			infos = append(infos, domain.RuleSetInfo{Name: name, Error: err.Error()})
			continue
		}
		infos = append(infos, domain.RuleSetInfo{
			Name:        name,
			Description: set.Description,
			FilePath:    set.FilePath,
			RuleCount:   len(set.Rules),
		})
	}

	for _, le := range loadErrors {
		name, _ := s.scanner.NameFor(le.FilePath)
		infos = append(infos, domain.RuleSetInfo{Name: name, FilePath: le.FilePath, Error: le.Error})
	}
	return infos, nil
}

// Put validates and writes a rule set under name, replacing any existing one
func (s *Store) Put(ctx context.Context, name string, set *domain.RuleSet) (*domain.RuleSet, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	stored := set.Clone()
	stored.Name = name
	if s.validator != nil {
		if err := s.validator.ValidateRuleSet(stored); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path, exists := s.index[name]
	if !exists {
		path = s.scanner.PathFor(name)
	}
	if err := s.writer.WriteRuleSet(stored, path); err != nil {
		return nil, domain.NewIOError("write", path, err)
	}

	stored.FilePath = path
	s.index[name] = path
	if s.cache != nil {
		s.cache.Set(name, stored)
	}

	log.Info().Str("ruleset", name).Int("rules", len(stored.Rules)).Msg("Rule set saved")
	return stored.Clone(), nil
}

// Delete removes the named rule set and its file
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, ok := s.index[name]
	if !ok {
		return notFound(name)
	}
	if err := s.writer.DeleteRuleFile(path); err != nil {
		return domain.NewIOError("delete", path, err)
	}

	delete(s.index, name)
	if s.cache != nil {
		s.cache.Invalidate(name)
	}

	log.Info().Str("ruleset", name).Msg("Rule set deleted")
	return nil
}

// LoadErrors returns the failures of the last reload
func (s *Store) LoadErrors() []domain.LoadError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.LoadError(nil), s.loadErrors...)
}

// HealthCheck reports unhealthy when the rules directory is unusable and
// degraded when some files failed to load
func (s *Store) HealthCheck(ctx context.Context) domain.HealthStatus {
	s.mu.RLock()
	count := len(s.index)
	errCount := len(s.loadErrors)
	lastLoad := s.lastLoad
	s.mu.RUnlock()

	details := map[string]any{
		"dir":         s.scanner.Root(),
		"rule_sets":   count,
		"load_errors": errCount,
		"last_load":   lastLoad,
	}

	status := domain.HealthStatus{
		Status:    domain.HealthStatusHealthy,
		Message:   "Rule sets loaded",
		Details:   details,
		Timestamp: time.Now(),
	}

	info, err := os.Stat(s.scanner.Root())
	switch {
	case err != nil && !os.IsNotExist(err):
		status.Status = domain.HealthStatusUnhealthy
		status.Message = "Rules directory is not accessible"
		details["error"] = err.Error()
	case err == nil && !info.IsDir():
		status.Status = domain.HealthStatusUnhealthy
		status.Message = "Rules directory is not a directory"
	case errCount > 0:
		status.Status = domain.HealthStatusDegraded
		status.Message = "Some rule set files failed to load"
	}
	return status
}

// GetStats returns store statistics
func (s *Store) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"rule_sets":   len(s.index),
		"load_errors": len(s.loadErrors),
		"last_load":   s.lastLoad,
	}
	if s.cache != nil {
		stats["cache"] = s.cache.Stats()
	}
	return stats
}

func validateName(name string) error {
	if !ruleSetNamePattern.MatchString(name) || strings.Contains(name, "..") {
		return domain.NewAppError(domain.ErrInvalidInput, "invalid rule set name", 400, map[string]any{"ruleset": name})
	}
	return nil
}

func notFound(name string) error {
	return domain.NewAppError(domain.ErrNotFound, "rule set not found", 404, map[string]any{"ruleset": name})
}
