// Command patch applies an ordered list of marker-based edits to one text
// file.
//
//	patch <source-path> [--rules <rules-file>] [--out <dest-path>] [--dry-run] [--diff]
//
// Exit codes: 0 success, 1 I/O failure (source or rules file unreadable,
// destination unwritable), 2 a required rule was not satisfied or a line
// range was invalid, 3 invalid invocation or rules file content.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/freewebtopdf/source-patcher/internal/config"
	"github.com/freewebtopdf/source-patcher/internal/domain"
	"github.com/freewebtopdf/source-patcher/internal/loader"
	"github.com/freewebtopdf/source-patcher/internal/lock"
	"github.com/freewebtopdf/source-patcher/internal/patcher"
	"github.com/freewebtopdf/source-patcher/internal/report"
	"github.com/freewebtopdf/source-patcher/internal/storage"
)

const (
	exitOK      = 0
	exitIO      = 1
	exitPatch   = 2
	exitInvalid = 3
)

// exitError carries the process exit code out of a cobra RunE
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

type options struct {
	rules       string
	out         string
	dryRun      bool
	diff        bool
	format      string
	noAtomic    bool
	lock        bool
	lockTimeout time.Duration
	maxFileSize int64
	logLevel    string
	logFormat   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command line and returns the process exit code
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// flag and argument errors raised by cobra itself
	return exitInvalid
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "patch <source-path>",
		Short: "Apply marker-based edits to a text file",
		Long: `Reads the source file, applies the rules of the rules file in order and
writes the result back to the source or to --out. Rules that find nothing are
reported as not_found; a required rule that finds nothing aborts the run and
nothing is written.`,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args[0], stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.StringVar(&opts.rules, "rules", "", "rules file (.yaml, .yml or .json); none means no edits")
	f.StringVar(&opts.out, "out", "", "destination path (default: overwrite the source)")
	f.BoolVar(&opts.dryRun, "dry-run", false, "compute the edits without writing")
	f.BoolVar(&opts.diff, "diff", false, "print a unified diff of the change")
	f.StringVar(&opts.format, "format", "text", "report format: text or json")
	f.BoolVar(&opts.noAtomic, "no-atomic", false, "write in place instead of through a temp file and rename")
	f.BoolVar(&opts.lock, "lock", false, "hold a <path>.lock file lock while patching")
	f.DurationVar(&opts.lockTimeout, "lock-timeout", lock.DefaultTimeout, "how long to wait for --lock")
	f.Int64Var(&opts.maxFileSize, "max-file-size", 0, "refuse sources larger than this many bytes (0: unlimited)")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error (default from LOG_LEVEL)")
	f.StringVar(&opts.logFormat, "log-format", "", "log format: text or json (default from LOG_FORMAT, else text)")

	return cmd
}

func run(cmd *cobra.Command, opts *options, source string, stdout, stderr io.Writer) error {
	logging, err := loggingConfig(cmd, opts)
	if err != nil {
		return &exitError{code: exitInvalid, err: err}
	}
	config.SetupLogger(logging, stderr)

	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return &exitError{code: exitInvalid, err: err}
	}

	validator := domain.NewRuleValidator()
	req := domain.PatchRequest{
		Source:      source,
		Destination: opts.out,
		DryRun:      opts.dryRun,
		IncludeDiff: opts.diff,
		Rules:       []domain.PatchRule{},
	}
	if opts.rules != "" {
		set, err := loader.LoadRulesFile(opts.rules, validator)
		if err != nil {
			code := exitInvalid
			if domain.IsIOError(err) {
				code = exitIO
			}
			return &exitError{code: code, err: err}
		}
		req.Rules = set.Rules
		log.Debug().Str("rules", opts.rules).Str("ruleset", set.Name).Int("count", len(set.Rules)).Msg("Rules loaded")
	}

	store := storage.NewFileStore(storage.Options{
		MaxFileSize: opts.maxFileSize,
		Atomic:      !opts.noAtomic,
	})
	var svcOpts []patcher.Option
	if opts.lock {
		svcOpts = append(svcOpts, patcher.WithLocker(lock.NewManager(opts.lockTimeout, true)))
	}
	service := patcher.NewService(store, validator, svcOpts...)

	rep, runErr := service.Run(cmd.Context(), req)
	if rep != nil {
		if err := report.NewPrinter(stdout, format).Print(rep); err != nil {
			return &exitError{code: exitIO, err: err}
		}
	}
	if runErr != nil {
		return &exitError{code: exitCode(runErr), err: runErr}
	}
	return nil
}

// loggingConfig starts from LOG_LEVEL and LOG_FORMAT and lets flags win
func loggingConfig(cmd *cobra.Command, opts *options) (config.LoggingConfig, error) {
	cfg := config.LoggingConfig{Level: "info", Format: "text"}
	if os.Getenv("LOG_LEVEL") != "" || os.Getenv("LOG_FORMAT") != "" {
		fromEnv, err := config.LoadLogging()
		if err != nil {
			return cfg, err
		}
		cfg = fromEnv
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Level = opts.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Format = opts.logFormat
	}

	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		return cfg, fmt.Errorf("invalid log level %q", cfg.Level)
	}
	switch cfg.Format {
	case "text", "json":
	default:
		return cfg, fmt.Errorf("invalid log format %q", cfg.Format)
	}
	return cfg, nil
}

// exitCode maps an aborted run to the documented exit codes
func exitCode(err error) int {
	switch {
	case domain.IsPatchError(err), domain.IsRangeError(err):
		return exitPatch
	case domain.IsValidationError(err), hasCode(err, domain.ErrInvalidInput):
		return exitInvalid
	default:
		return exitIO
	}
}

func hasCode(err error, code string) bool {
	var appErr *domain.AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
