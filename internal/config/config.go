package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds all configuration for the patch service
type Config struct {
	Server struct {
		Port         int           `env:"PORT" envDefault:"8080" validate:"min=1,max=65535"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
		BodyLimit    int           `env:"BODY_LIMIT" envDefault:"4194304" validate:"min=1"` // 4MB
		// PublicHost is the host advertised in the API docs
		PublicHost string `env:"DOMAIN"`
	}

	Workspace struct {
		Dir          string `env:"WORKSPACE_DIR" envDefault:"./workspace" validate:"required"`
		MaxFileSize  int64  `env:"MAX_FILE_SIZE" envDefault:"33554432" validate:"min=1"` // 32MB
		AtomicWrites bool   `env:"ATOMIC_WRITES" envDefault:"true"`
	}

	Rules struct {
		Dir          string `env:"RULES_DIR" envDefault:"./rules" validate:"required"`
		WatchFiles   bool   `env:"WATCH_RULE_FILES" envDefault:"false"`
		CacheMaxSize int    `env:"CACHE_MAX_SIZE" envDefault:"256" validate:"min=1"`
	}

	Lock struct {
		Timeout   time.Duration `env:"LOCK_TIMEOUT" envDefault:"10s"`
		FileLocks bool          `env:"LOCK_FILES" envDefault:"false"`
	}

	Journal struct {
		Path    string `env:"JOURNAL_PATH" envDefault:"./data/journal.db"`
		Enabled bool   `env:"JOURNAL_ENABLED" envDefault:"true"`
	}

	Security struct {
		CORSOrigins    []string `env:"CORS_ORIGINS" envSeparator:"," validate:"cors_origins"`
		RateLimitRPS   int      `env:"RATE_LIMIT_RPS" envDefault:"50" validate:"min=1"`
		RateLimitBurst int      `env:"RATE_LIMIT_BURST" envDefault:"100" validate:"min=1"`
	}

	Logging LoggingConfig
}

// LoggingConfig is shared by the server and the command line tool
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	Format string `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json text"`
}

// Load loads configuration from environment variables and .env files
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadLogging reads only the logging section
func LoadLogging() (LoggingConfig, error) {
	_ = godotenv.Load()

	var cfg LoggingConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse environment variables: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return cfg, formatValidationError(err)
	}
	return cfg, nil
}

// Validate validates the configuration using struct tags
func Validate(cfg *Config) error {
	validate := validator.New()

	if err := validate.RegisterValidation("cors_origins", validateCORSOrigins); err != nil {
		return fmt.Errorf("failed to register cors_origins validation: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCORSOrigins validates CORS origins format
func validateCORSOrigins(fl validator.FieldLevel) bool {
	origins := fl.Field().Interface().([]string)
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return false
		}
	}
	return true
}

// validateCustomRules performs additional validation beyond struct tags
func validateCustomRules(cfg *Config) error {
	if cfg.Server.ReadTimeout < time.Millisecond {
		return fmt.Errorf("read timeout must be at least 1ms")
	}
	if cfg.Server.WriteTimeout < time.Millisecond {
		return fmt.Errorf("write timeout must be at least 1ms")
	}
	if cfg.Lock.Timeout < time.Millisecond {
		return fmt.Errorf("lock timeout must be at least 1ms")
	}
	if cfg.Security.RateLimitBurst < cfg.Security.RateLimitRPS {
		return fmt.Errorf("rate limit burst must be at least the rate limit")
	}
	if cfg.Journal.Enabled && cfg.Journal.Path == "" {
		return fmt.Errorf("journal path cannot be empty when the journal is enabled")
	}

	workspace, err := filepath.Abs(cfg.Workspace.Dir)
	if err != nil {
		return fmt.Errorf("invalid workspace directory: %w", err)
	}
	rules, err := filepath.Abs(cfg.Rules.Dir)
	if err != nil {
		return fmt.Errorf("invalid rules directory: %w", err)
	}
	if rel, err := filepath.Rel(workspace, rules); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("rules directory must not be inside the workspace")
	}

	return nil
}

// EnsureDirectories creates all required directories
func (cfg *Config) EnsureDirectories() error {
	dirs := []string{
		cfg.Workspace.Dir,
		cfg.Rules.Dir,
	}
	if cfg.Journal.Enabled && cfg.Journal.Path != ":memory:" {
		dirs = append(dirs, filepath.Dir(cfg.Journal.Path))
	}

	for _, dir := range dirs {
		if dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("cannot create directory %s: %w", dir, err)
			}
		}
	}
	return nil
}

// SetupLogger configures the global zerolog logger. Text format writes a
// console rendering to w.
func SetupLogger(cfg LoggingConfig, w io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339

	switch cfg.Level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if cfg.Format == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// formatValidationError formats validation errors into readable messages
func formatValidationError(err error) error {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var messages []string
		for _, e := range validationErrors {
			switch e.Tag() {
			case "required":
				messages = append(messages, fmt.Sprintf("%s is required", e.Field()))
			case "min":
				messages = append(messages, fmt.Sprintf("%s must be at least %s", e.Field(), e.Param()))
			case "max":
				messages = append(messages, fmt.Sprintf("%s must be at most %s", e.Field(), e.Param()))
			case "oneof":
				messages = append(messages, fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param()))
			case "cors_origins":
				messages = append(messages, fmt.Sprintf("%s contains invalid origin format", e.Field()))
			default:
				messages = append(messages, fmt.Sprintf("%s failed validation: %s", e.Field(), e.Tag()))
			}
		}
		return fmt.Errorf("validation errors: %s", strings.Join(messages, "; "))
	}
	return err
}
