package api

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/freewebtopdf/source-patcher/internal/domain"
	"github.com/freewebtopdf/source-patcher/internal/middleware"
)

const (
	// MaxBatchJobs bounds the number of jobs in one batch request
	MaxBatchJobs = 100

	defaultBatchConcurrency = 4
	defaultHistoryLimit     = 50
)

// RuleSetStore is a rule set repository that can also be edited
type RuleSetStore interface {
	domain.RuleSetRepository
	Put(ctx context.Context, name string, set *domain.RuleSet) (*domain.RuleSet, error)
	Delete(ctx context.Context, name string) error
}

// Handlers contains all HTTP handlers for the patch service
type Handlers struct {
	patcher          domain.Patcher
	rulesets         RuleSetStore
	journal          domain.Journal
	healthChecker    domain.HealthChecker
	workspace        *Workspace
	batchConcurrency int
}

// NewHandlers creates the handlers. rulesets and journal may be nil.
func NewHandlers(patcher domain.Patcher, workspace *Workspace, rulesets RuleSetStore, journal domain.Journal, healthChecker domain.HealthChecker) *Handlers {
	return &Handlers{
		patcher:          patcher,
		rulesets:         rulesets,
		journal:          journal,
		healthChecker:    healthChecker,
		workspace:        workspace,
		batchConcurrency: defaultBatchConcurrency,
	}
}

// SetBatchConcurrency bounds how many batch jobs run at once
func (h *Handlers) SetBatchConcurrency(n int) {
	if n > 0 {
		h.batchConcurrency = n
	}
}

// ErrorResponse represents the standard error response format
type ErrorResponse struct {
	Status  string              `json:"status"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details any                 `json:"details,omitempty"`
	Report  *domain.PatchReport `json:"report,omitempty"`
}

// SuccessResponse represents the standard success response format
type SuccessResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

// RuleSetListResponse is the data of GET /v1/rulesets
type RuleSetListResponse struct {
	RuleSets []domain.RuleSetInfo `json:"rulesets"`
	Count    int                  `json:"count" example:"3"`
}

// RuleSetResponse wraps one rule set
type RuleSetResponse struct {
	RuleSet *domain.RuleSet `json:"ruleset"`
}

// HistoryResponse is the data of GET /v1/history
type HistoryResponse struct {
	Entries []domain.JournalEntry `json:"entries"`
	Count   int                   `json:"count" example:"10"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status     string                         `json:"status" example:"healthy"`
	Timestamp  string                         `json:"timestamp" example:"2026-01-01T12:00:00Z"`
	Components map[string]domain.HealthStatus `json:"components"`
	Uptime     string                         `json:"uptime" example:"1h2m3s"`
}

// BatchRequest carries several patch jobs
type BatchRequest struct {
	Jobs []domain.PatchRequest `json:"jobs"`
}

// BatchItem is the outcome of one batch job
type BatchItem struct {
	Index  int                 `json:"index"`
	Status string              `json:"status"`
	Report *domain.PatchReport `json:"report,omitempty"`
	Error  *ErrorResponse      `json:"error,omitempty"`
}

// BatchResponse reports every job in request order
type BatchResponse struct {
	Results   []BatchItem `json:"results"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

// PatchHandler handles POST /v1/patch
// @Summary      Patch one file
// @Description  Applies inline rules or a named rule set to a workspace file, in order, and writes the result to the source or to out
// @Tags         Patch
// @Accept       json
// @Produce      json
// @Param        request body domain.PatchRequest true "Patch job"
// @Success      200 {object} SuccessResponse{data=domain.PatchReport} "Patch report"
// @Failure      400 {object} ErrorResponse "Invalid payload or path outside the workspace"
// @Failure      404 {object} ErrorResponse "Source or rule set not found"
// @Failure      422 {object} ErrorResponse "Invalid rules, required rule not satisfied or invalid line range"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /v1/patch [post]
func (h *Handlers) PatchHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req domain.PatchRequest
	if err := c.BodyParser(&req); err != nil {
		return h.sendError(c, domain.NewAppError(
			domain.ErrInvalidInput,
			"Invalid JSON payload",
			400,
			map[string]string{"error": err.Error()},
		).WithContext(ctx, "patch_request_parsing"), nil)
	}
	req.RequestID = middleware.RequestID(c)

	rep, err := h.runJob(ctx, req)
	if err != nil {
		return h.sendError(c, toAppError(err, "patch"), rep)
	}

	return c.Status(200).JSON(SuccessResponse{
		Status: "success",
		Data:   rep,
	})
}

// BatchHandler handles POST /v1/batch. Jobs run concurrently; one failing
// job does not stop the others.
// @Summary      Patch several files
// @Description  Runs up to 100 patch jobs concurrently and reports each one in request order
// @Tags         Patch
// @Accept       json
// @Produce      json
// @Param        request body BatchRequest true "Patch jobs"
// @Success      200 {object} SuccessResponse{data=BatchResponse} "Per-job results"
// @Failure      400 {object} ErrorResponse "Invalid payload"
// @Failure      422 {object} ErrorResponse "No jobs or too many jobs"
// @Router       /v1/batch [post]
func (h *Handlers) BatchHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req BatchRequest
	if err := c.BodyParser(&req); err != nil {
		return h.sendError(c, domain.NewAppError(
			domain.ErrInvalidInput,
			"Invalid JSON payload",
			400,
			map[string]string{"error": err.Error()},
		).WithContext(ctx, "batch_request_parsing"), nil)
	}
	if len(req.Jobs) == 0 || len(req.Jobs) > MaxBatchJobs {
		return h.sendError(c, domain.NewAppError(
			domain.ErrValidationFailed,
			"Batch must contain between 1 and "+strconv.Itoa(MaxBatchJobs)+" jobs",
			422,
			map[string]any{"field": "jobs", "count": len(req.Jobs)},
		), nil)
	}

	rid := middleware.RequestID(c)
	items := make([]BatchItem, len(req.Jobs))

	var g errgroup.Group
	g.SetLimit(h.batchConcurrency)
	for i, job := range req.Jobs {
		job.RequestID = rid
		g.Go(func() error {
			rep, err := h.runJob(ctx, job)
			item := BatchItem{Index: i, Status: "success", Report: rep}
			if err != nil {
				appErr := toAppError(err, "batch_job")
				item.Status = "error"
				item.Error = &ErrorResponse{
					Status:  "error",
					Code:    appErr.Code,
					Message: appErr.Message,
					Details: appErr.Details,
				}
			}
			items[i] = item
			return nil
		})
	}
	_ = g.Wait()

	resp := BatchResponse{Results: items}
	for _, item := range items {
		if item.Error != nil {
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}

	log.Info().
		Str("request_id", rid).
		Int("jobs", len(items)).
		Int("failed", resp.Failed).
		Msg("Batch finished")

	return c.Status(200).JSON(SuccessResponse{
		Status: "success",
		Data:   resp,
	})
}

// runJob confines the job's paths to the workspace, runs it and reports the
// paths the way the client wrote them
func (h *Handlers) runJob(ctx context.Context, req domain.PatchRequest) (*domain.PatchReport, error) {
	source, err := h.workspace.Resolve("source", req.Source)
	if err != nil {
		return nil, err
	}
	dest := source
	if req.Destination != "" {
		if dest, err = h.workspace.Resolve("out", req.Destination); err != nil {
			return nil, err
		}
	}

	clientSource, clientDest := req.Source, req.Destination
	if clientDest == "" {
		clientDest = clientSource
	}
	req.Source, req.Destination = source, dest

	rep, err := h.patcher.Run(ctx, req)
	if rep != nil {
		rep.Source, rep.Destination = clientSource, clientDest
		if rep.Diff != "" {
			rep.Diff = strings.Replace(rep.Diff, "--- "+source+"\n", "--- "+clientSource+"\n", 1)
			rep.Diff = strings.Replace(rep.Diff, "+++ "+dest+"\n", "+++ "+clientDest+"\n", 1)
		}
	}
	return rep, err
}

// ListRuleSetsHandler handles GET /v1/rulesets
// @Summary      List rule sets
// @Description  Lists the rule sets discovered under the rules directory, including files that failed to load
// @Tags         Rule Sets
// @Produce      json
// @Success      200 {object} SuccessResponse{data=RuleSetListResponse} "Rule sets"
// @Failure      404 {object} ErrorResponse "Rule sets are not configured"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /v1/rulesets [get]
func (h *Handlers) ListRuleSetsHandler(c *fiber.Ctx) error {
	if h.rulesets == nil {
		return h.sendError(c, rulesetsDisabled(), nil)
	}

	infos, err := h.rulesets.List(c.UserContext())
	if err != nil {
		log.Error().Err(err).Str("request_id", middleware.RequestID(c)).Msg("Failed to list rule sets")
		return h.sendError(c, toAppError(err, "list_rulesets"), nil)
	}

	for i := range infos {
		infos[i].FilePath = ""
	}

	return c.Status(200).JSON(SuccessResponse{
		Status: "success",
		Data:   RuleSetListResponse{RuleSets: infos, Count: len(infos)},
	})
}

// GetRuleSetHandler handles GET /v1/rulesets/*
// @Summary      Get a rule set
// @Tags         Rule Sets
// @Produce      json
// @Param        name path string true "Rule set name, may contain slashes"
// @Success      200 {object} SuccessResponse{data=RuleSetResponse} "Rule set"
// @Failure      404 {object} ErrorResponse "Rule set not found"
// @Router       /v1/rulesets/{name} [get]
func (h *Handlers) GetRuleSetHandler(c *fiber.Ctx) error {
	if h.rulesets == nil {
		return h.sendError(c, rulesetsDisabled(), nil)
	}

	name := ruleSetName(c)
	set, err := h.rulesets.Get(c.UserContext(), name)
	if err != nil {
		return h.sendError(c, toAppError(err, "get_ruleset"), nil)
	}
	set.FilePath = ""

	return c.Status(200).JSON(SuccessResponse{
		Status: "success",
		Data:   RuleSetResponse{RuleSet: set},
	})
}

// PutRuleSetHandler handles PUT /v1/rulesets/*
// @Summary      Create or replace a rule set
// @Description  Validates the rules, then writes the rule set file atomically
// @Tags         Rule Sets
// @Accept       json
// @Produce      json
// @Param        name path string true "Rule set name, may contain slashes"
// @Param        request body domain.RuleFile true "Rule set"
// @Success      200 {object} SuccessResponse{data=RuleSetResponse} "Stored rule set"
// @Failure      400 {object} ErrorResponse "Invalid payload or name"
// @Failure      422 {object} ErrorResponse "Validation failed"
// @Router       /v1/rulesets/{name} [put]
func (h *Handlers) PutRuleSetHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if h.rulesets == nil {
		return h.sendError(c, rulesetsDisabled(), nil)
	}

	var file domain.RuleFile
	if err := c.BodyParser(&file); err != nil {
		return h.sendError(c, domain.NewAppError(
			domain.ErrInvalidInput,
			"Invalid JSON payload",
			400,
			map[string]string{"error": err.Error()},
		).WithContext(ctx, "put_ruleset_parsing"), nil)
	}

	name := ruleSetName(c)
	stored, err := h.rulesets.Put(ctx, name, &domain.RuleSet{
		Name:        name,
		Description: strings.TrimSpace(file.Description),
		Rules:       file.Rules,
	})
	if err != nil {
		return h.sendError(c, toAppError(err, "put_ruleset"), nil)
	}
	stored.FilePath = ""

	return c.Status(200).JSON(SuccessResponse{
		Status: "success",
		Data:   RuleSetResponse{RuleSet: stored},
	})
}

// DeleteRuleSetHandler handles DELETE /v1/rulesets/*
// @Summary      Delete a rule set
// @Tags         Rule Sets
// @Produce      json
// @Param        name path string true "Rule set name, may contain slashes"
// @Success      200 {object} SuccessResponse "Rule set deleted"
// @Failure      404 {object} ErrorResponse "Rule set not found"
// @Router       /v1/rulesets/{name} [delete]
func (h *Handlers) DeleteRuleSetHandler(c *fiber.Ctx) error {
	if h.rulesets == nil {
		return h.sendError(c, rulesetsDisabled(), nil)
	}

	name := ruleSetName(c)
	if err := h.rulesets.Delete(c.UserContext(), name); err != nil {
		return h.sendError(c, toAppError(err, "delete_ruleset"), nil)
	}

	return c.Status(200).JSON(SuccessResponse{
		Status: "success",
		Data: map[string]any{
			"message": "Rule set deleted successfully",
			"ruleset": name,
		},
	})
}

// ReloadRuleSetsHandler handles POST /v1/rulesets/reload
// @Summary      Reload rule sets
// @Description  Rescans the rules directory and returns loader statistics
// @Tags         Rule Sets
// @Produce      json
// @Success      200 {object} SuccessResponse "Loader statistics"
// @Failure      404 {object} ErrorResponse "Rule sets are not configured"
// @Router       /v1/rulesets/reload [post]
func (h *Handlers) ReloadRuleSetsHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if h.rulesets == nil {
		return h.sendError(c, rulesetsDisabled(), nil)
	}

	if err := h.rulesets.Reload(ctx); err != nil {
		log.Error().Err(err).Str("request_id", middleware.RequestID(c)).Msg("Failed to reload rule sets")
		return h.sendError(c, toAppError(err, "reload_rulesets"), nil)
	}

	return c.Status(200).JSON(SuccessResponse{
		Status: "success",
		Data:   h.rulesets.GetStats(ctx),
	})
}

// HistoryHandler handles GET /v1/history?limit=N
// @Summary      Recent patch runs
// @Tags         History
// @Produce      json
// @Param        limit query int false "Maximum entries, newest first" default(50)
// @Success      200 {object} SuccessResponse{data=HistoryResponse} "Journal entries"
// @Failure      404 {object} ErrorResponse "Journal is disabled"
// @Failure      422 {object} ErrorResponse "Invalid limit"
// @Router       /v1/history [get]
func (h *Handlers) HistoryHandler(c *fiber.Ctx) error {
	if h.journal == nil {
		return h.sendError(c, domain.NewAppError(
			domain.ErrNotFound,
			"Patch journal is disabled",
			404,
			nil,
		), nil)
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return h.sendError(c, domain.NewAppError(
				domain.ErrValidationFailed,
				"limit must be a positive integer",
				422,
				map[string]string{"field": "limit", "value": raw},
			), nil)
		}
		limit = n
	}

	entries, err := h.journal.Recent(c.UserContext(), limit)
	if err != nil {
		log.Error().Err(err).Str("request_id", middleware.RequestID(c)).Msg("Failed to read patch history")
		return h.sendError(c, toAppError(err, "history"), nil)
	}

	return c.Status(200).JSON(SuccessResponse{
		Status: "success",
		Data:   HistoryResponse{Entries: entries, Count: len(entries)},
	})
}

// HealthHandler handles GET /health requests
// @Summary      Health check
// @Description  200 while healthy or degraded, 503 when any component is unhealthy
// @Tags         System
// @Produce      json
// @Success      200 {object} HealthResponse "Healthy or degraded"
// @Failure      503 {object} HealthResponse "Unhealthy"
// @Router       /health [get]
func (h *Handlers) HealthHandler(c *fiber.Ctx) error {
	health := h.healthChecker.CheckHealth(c.UserContext())

	status := 200
	if health.Status == domain.HealthStatusUnhealthy {
		status = 503
	}

	return c.Status(status).JSON(HealthResponse{
		Status:     health.Status,
		Timestamp:  health.Timestamp.Format(time.RFC3339),
		Components: health.Components,
		Uptime:     health.Uptime.String(),
	})
}

// MetricsHandler handles GET /metrics requests
// @Summary      Component metrics
// @Tags         System
// @Produce      json
// @Success      200 {object} SuccessResponse "Component statistics and uptime"
// @Router       /metrics [get]
func (h *Handlers) MetricsHandler(c *fiber.Ctx) error {
	health := h.healthChecker.CheckHealth(c.UserContext())

	return c.Status(200).JSON(SuccessResponse{
		Status: "success",
		Data: map[string]any{
			"components": health.Metrics,
			"uptime": map[string]any{
				"seconds":   int64(health.Uptime.Seconds()),
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			},
		},
	})
}

// sendError sends a standardized error response
func (h *Handlers) sendError(c *fiber.Ctx, appErr *domain.AppError, rep *domain.PatchReport) error {
	return c.Status(appErr.StatusCode).JSON(ErrorResponse{
		Status:  "error",
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
		Report:  rep,
	})
}

// toAppError converts any error into an AppError, hiding unknown causes
func toAppError(err error, operation string) *domain.AppError {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		if appErr.StatusCode == 0 {
			appErr.StatusCode = 500
		}
		return appErr
	}
	log.Error().Err(err).Str("operation", operation).Msg("Unexpected error")
	return domain.NewAppErrorWithCause(domain.ErrInternal, "Internal server error", 500, err, nil)
}

func rulesetsDisabled() *domain.AppError {
	return domain.NewAppError(domain.ErrNotFound, "Named rule sets are not configured", 404, nil)
}

func ruleSetName(c *fiber.Ctx) string {
	return strings.Trim(c.Params("*"), "/")
}
