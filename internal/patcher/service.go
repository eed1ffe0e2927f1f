package patcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/freewebtopdf/source-patcher/internal/diff"
	"github.com/freewebtopdf/source-patcher/internal/document"
	"github.com/freewebtopdf/source-patcher/internal/domain"
	"github.com/freewebtopdf/source-patcher/internal/lock"
)

// DocumentStore loads and saves whole documents
type DocumentStore interface {
	Load(ctx context.Context, path string) (*document.Document, error)
	Save(ctx context.Context, doc *document.Document, path string) error
}

// Locker serialises runs touching the same paths
type Locker interface {
	AcquireAll(ctx context.Context, paths ...string) ([]*lock.Handle, error)
	ReleaseAll(handles []*lock.Handle)
}

// Service runs the load, transform, write pipeline
type Service struct {
	store     DocumentStore
	engine    *Engine
	validator domain.Validator
	locker    Locker
	rulesets  domain.RuleSetRepository
	journal   domain.Journal
}

// Option configures a Service
type Option func(*Service)

// WithLocker serialises runs per path
func WithLocker(l Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithRuleSets lets requests name a rule set instead of carrying rules
func WithRuleSets(repo domain.RuleSetRepository) Option {
	return func(s *Service) { s.rulesets = repo }
}

// WithJournal records every run
func WithJournal(j domain.Journal) Option {
	return func(s *Service) { s.journal = j }
}

// NewService creates a patch service
func NewService(store DocumentStore, validator domain.Validator, opts ...Option) *Service {
	s := &Service{
		store:     store,
		engine:    NewEngine(),
		validator: validator,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one request. The report is returned even when err is not
// nil; its State is aborted in that case and nothing was written.
func (s *Service) Run(ctx context.Context, req domain.PatchRequest) (*domain.PatchReport, error) {
	started := time.Now()
	dest := req.Destination
	if dest == "" {
		dest = req.Source
	}
	rep := &domain.PatchReport{
		Source:      req.Source,
		Destination: dest,
		RuleSet:     req.RuleSet,
		Results:     []domain.EditResult{},
		StartedAt:   started,
	}
	logger := log.With().Str("source", req.Source).Str("destination", dest).Logger()

	err := s.run(ctx, req, rep)
	rep.Duration = time.Since(started).String()

	if err != nil {
		rep.State = domain.StateAborted
		var appErr *domain.AppError
		if errors.As(err, &appErr) {
			rep.ErrorCode = appErr.Code
		}
		logger.Error().Err(err).Str("state", string(rep.State)).Msg("Patch aborted")
	} else {
		logger.Info().Str("state", string(rep.State)).
			Int("applied", rep.Count(domain.StatusApplied)).
			Int("not_found", rep.Count(domain.StatusNotFound)).
			Int("skipped", rep.Count(domain.StatusSkipped)).
			Msg("Patch finished")
	}

	s.record(ctx, req, rep)
	return rep, err
}

func (s *Service) run(ctx context.Context, req domain.PatchRequest, rep *domain.PatchReport) error {
	if req.Source == "" {
		return domain.NewAppError(domain.ErrInvalidInput, "source path is required", 400, map[string]any{"field": "source"})
	}

	rules, err := s.resolveRules(ctx, req)
	if err != nil {
		return err
	}

	if s.locker != nil {
		handles, err := s.locker.AcquireAll(ctx, rep.Source, rep.Destination)
		if err != nil {
			return err
		}
		defer s.locker.ReleaseAll(handles)
	}

	doc, err := s.store.Load(ctx, rep.Source)
	if err != nil {
		return err
	}
	rep.State = domain.StateLoaded
	rep.LinesBefore = doc.LineCount()

	rep.State = domain.StateTransforming
	out, results, err := s.engine.Apply(ctx, doc, rules)
	rep.Results = results
	if err != nil {
		return err
	}

	rep.State = domain.StateReady
	rep.LinesAfter = out.LineCount()
	rep.Changed = !out.Equal(doc)
	if req.IncludeDiff {
		rep.Diff = diff.Unified(rep.Source, rep.Destination, doc.Text(), out.Text())
	}

	if req.DryRun {
		rep.State = domain.StateDryRun
		return nil
	}
	if !rep.Changed && samePath(rep.Source, rep.Destination) {
		rep.State = domain.StateUnchanged
		return nil
	}

	if err := s.store.Save(ctx, out, rep.Destination); err != nil {
		return err
	}
	rep.State = domain.StateWritten
	return nil
}

func (s *Service) resolveRules(ctx context.Context, req domain.PatchRequest) ([]domain.PatchRule, error) {
	var rules []domain.PatchRule
	switch {
	case len(req.Rules) > 0:
		rules = slices.Clone(req.Rules)
	case req.RuleSet != "":
		if s.rulesets == nil {
			return nil, domain.NewAppError(domain.ErrInvalidInput, "named rule sets are not available", 400, map[string]any{"ruleset": req.RuleSet})
		}
		set, err := s.rulesets.Get(ctx, req.RuleSet)
		if err != nil {
			return nil, err
		}
		rules = set.Rules
	}

	if err := s.validator.ValidateRules(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *Service) record(ctx context.Context, req domain.PatchRequest, rep *domain.PatchReport) {
	if s.journal == nil {
		return
	}
	entry := domain.JournalEntry{
		ID:          uuid.New().String(),
		RequestID:   req.RequestID,
		Source:      rep.Source,
		Destination: rep.Destination,
		RuleSet:     rep.RuleSet,
		State:       rep.State,
		Applied:     rep.Count(domain.StatusApplied),
		NotFound:    rep.Count(domain.StatusNotFound),
		Skipped:     rep.Count(domain.StatusSkipped),
		ErrorCode:   rep.ErrorCode,
		DurationMS:  time.Since(rep.StartedAt).Milliseconds(),
		CreatedAt:   rep.StartedAt,
	}
	if err := s.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		log.Warn().Err(err).Str("source", rep.Source).Msg("Failed to record patch run")
	}
}

// samePath reports whether a and b name the same file
func samePath(a, b string) bool {
	if a == b {
		return true
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA == nil && errB == nil && absA == absB {
		return true
	}
	infoA, errA := os.Stat(a)
	infoB, errB := os.Stat(b)
	return errA == nil && errB == nil && os.SameFile(infoA, infoB)
}
