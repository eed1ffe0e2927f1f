package api

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/google/uuid"

	"github.com/freewebtopdf/source-patcher/internal/domain"
	"github.com/freewebtopdf/source-patcher/internal/middleware"
)

const swaggerPrefix = "/swagger"

// RouterConfig contains configuration for the HTTP router
type RouterConfig struct {
	CORSOrigins      []string
	BodyLimit        int
	RateLimitRPS     int
	RateLimitBurst   int
	BatchConcurrency int
}

// RouterDependencies contains all dependencies needed by the router
type RouterDependencies struct {
	Patcher       domain.Patcher
	Workspace     *Workspace
	RuleSets      RuleSetStore
	Journal       domain.Journal
	HealthChecker domain.HealthChecker
}

// RouterResult contains the configured app and cleanup function
type RouterResult struct {
	App     *fiber.App
	Cleanup func()
}

// SetupRouter creates and configures the Fiber app with all routes and middleware
func SetupRouter(deps RouterDependencies, config RouterConfig) *RouterResult {
	app := fiber.New(fiber.Config{
		BodyLimit:    config.BodyLimit,
		ErrorHandler: customErrorHandler,
	})

	handlers := NewHandlers(deps.Patcher, deps.Workspace, deps.RuleSets, deps.Journal, deps.HealthChecker)
	handlers.SetBatchConcurrency(config.BatchConcurrency)

	// Middleware order matters: the request id must exist before anything logs,
	// and the limiter runs before CORS so preflights are counted too.
	app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: generateUUID,
	}))
	app.Use(middleware.RequestLogger())
	app.Use(recover.New(recover.Config{
		EnableStackTrace:  true,
		StackTraceHandler: middleware.Recovered,
	}))
	app.Use(middleware.SecurityHeaders(swaggerPrefix))

	var stopRateLimiter func()
	if config.RateLimitRPS > 0 {
		rateLimiter := middleware.NewRateLimiter(config.RateLimitRPS, config.RateLimitBurst)
		stopRateLimiter = rateLimiter.StartCleanupRoutine()
		app.Use(rateLimiter.Middleware())
	}

	if len(config.CORSOrigins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins: strings.Join(config.CORSOrigins, ","),
			AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
			AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID",
			MaxAge:       int((24 * time.Hour).Seconds()),
		}))
	}

	v1 := app.Group("/v1")

	// Patch endpoints
	v1.Post("/patch", handlers.PatchHandler)
	v1.Post("/batch", handlers.BatchHandler)

	// Rule set endpoints; names may contain slashes
	v1.Get("/rulesets", handlers.ListRuleSetsHandler)
	v1.Post("/rulesets/reload", handlers.ReloadRuleSetsHandler)
	v1.Get("/rulesets/*", handlers.GetRuleSetHandler)
	v1.Put("/rulesets/*", handlers.PutRuleSetHandler)
	v1.Delete("/rulesets/*", handlers.DeleteRuleSetHandler)

	v1.Get("/history", handlers.HistoryHandler)

	// Health and metrics endpoints
	app.Get("/health", handlers.HealthHandler)
	app.Get("/metrics", handlers.MetricsHandler)

	// API documentation, described by the docs package
	app.Get(swaggerPrefix+"/*", swagger.HandlerDefault)

	cleanup := func() {
		if stopRateLimiter != nil {
			stopRateLimiter()
		}
	}

	return &RouterResult{App: app, Cleanup: cleanup}
}

// customErrorHandler turns errors that escape the handlers (mostly fiber's own)
// into the standard error envelope
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}

	resp := ErrorResponse{Status: "error", Code: domain.ErrInternal, Message: message}
	switch code {
	case fiber.StatusRequestEntityTooLarge:
		resp.Code = domain.ErrTooLarge
		resp.Message = "Request payload too large"
	case fiber.StatusBadRequest:
		resp.Code = domain.ErrInvalidInput
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		resp.Code = domain.ErrNotFound
		resp.Details = map[string]any{"method": c.Method(), "path": c.Path()}
	}
	return c.Status(code).JSON(resp)
}

func generateUUID() string {
	return uuid.New().String()
}
