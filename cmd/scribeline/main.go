package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/scribeline/scribeline/internal/chunk"
	"github.com/scribeline/scribeline/internal/cli"
	"github.com/scribeline/scribeline/internal/config"
	"github.com/scribeline/scribeline/internal/interrupt"
	"github.com/scribeline/scribeline/internal/lang"
	"github.com/scribeline/scribeline/internal/logging"
	"github.com/scribeline/scribeline/internal/media"
	"github.com/scribeline/scribeline/internal/pipeline"
	"github.com/scribeline/scribeline/internal/transcribe/stt"
)

// Injected at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes.
const (
	ExitOK            = 0
	ExitGeneral       = 1
	ExitUsage         = 2
	ExitSetup         = 3
	ExitValidation    = 4
	ExitTranscription = 5
	ExitInterrupt     = 130
)

func main() {
	// Load .env file if present (ignore error if missing).
	_ = godotenv.Load()

	// First Ctrl+C cancels the context so a running session drains and
	// cleans up its artifacts; a second one aborts immediately.
	handler, ctx := interrupt.NewHandler(context.Background())
	defer handler.Stop()

	env := cli.DefaultEnv()

	var (
		logLevel    string
		logFormat   string
		metricsAddr string
	)

	rootCmd := &cobra.Command{
		Use:     "scribeline",
		Short:   "Chunked media transcription with adaptive sizing",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		// Silence Cobra's default error/usage printing; we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(*cobra.Command, []string) {
			setup(env, logLevel, logFormat, metricsAddr)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "", "log format: json or console")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")

	rootCmd.AddCommand(cli.ProcessCmd(env))
	rootCmd.AddCommand(cli.PlanCmd(env))
	rootCmd.AddCommand(cli.AnalyzeCmd(env))
	rootCmd.AddCommand(cli.ConfigCmd(env))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// setup initializes logging and the optional metrics listener. Flags win
// over config file values; both fall back to defaults.
func setup(env *cli.Env, logLevel, logFormat, metricsAddr string) {
	cfg, err := env.ConfigLoader.Load()
	if err != nil {
		cfg = config.Config{}
	}

	logCfg := logging.DefaultConfig()
	if cfg.LogLevel != "" {
		logCfg.Level = cfg.LogLevel
	}
	if cfg.LogFormat != "" {
		logCfg.Format = cfg.LogFormat
	}
	if logLevel != "" {
		logCfg.Level = logLevel
	}
	if logFormat != "" {
		logCfg.Format = logFormat
	}
	log := logging.Init(logCfg)

	if metricsAddr == "" {
		metricsAddr = cfg.MetricsAddr
	}
	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Warn().Err(err).Str("addr", metricsAddr).Msg("metrics listener stopped")
			}
		}()
	}
}

// exitCode maps errors to documented exit codes.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	// Interrupted or canceled sessions.
	if errors.Is(err, context.Canceled) {
		return ExitInterrupt
	}

	// Usage errors: Cobra flag/arg parsing failures. Cobra doesn't expose
	// typed errors, so known message patterns are matched instead.
	if isCobraUsageError(err) {
		return ExitUsage
	}

	// Environment problems: missing binary, key, or backend.
	if errors.Is(err, media.ErrBinaryNotFound) ||
		errors.Is(err, cli.ErrAPIKeyMissing) ||
		errors.Is(err, stt.ErrAPIKeyMissing) ||
		errors.Is(err, stt.ErrUnknownBackend) {
		return ExitSetup
	}

	// Bad inputs or output targets.
	if errors.Is(err, cli.ErrFileNotFound) ||
		errors.Is(err, cli.ErrUnsupportedFormat) ||
		errors.Is(err, cli.ErrOutputExists) ||
		errors.Is(err, config.ErrInvalidKey) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, config.ErrInvalidSyntax) ||
		errors.Is(err, config.ErrNotDirectory) ||
		errors.Is(err, config.ErrNotWritable) ||
		errors.Is(err, lang.ErrInvalid) ||
		errors.Is(err, chunk.ErrDurationUnknown) ||
		errors.Is(err, media.ErrProbeFailed) {
		return ExitValidation
	}

	// Session-level transcription failures.
	if errors.Is(err, pipeline.ErrNoChunks) ||
		errors.Is(err, pipeline.ErrAllChunksFailed) ||
		errors.Is(err, media.ErrTranscodeFailed) ||
		errors.Is(err, stt.ErrRateLimit) ||
		errors.Is(err, stt.ErrQuotaExceeded) ||
		errors.Is(err, stt.ErrTimeout) ||
		errors.Is(err, stt.ErrAuthFailed) ||
		errors.Is(err, stt.ErrBadRequest) {
		return ExitTranscription
	}

	return ExitGeneral
}

// cobraUsageErrorPatterns contains error message substrings that indicate
// Cobra usage errors. These patterns are stable across Cobra versions
// (tested with v1.8+).
var cobraUsageErrorPatterns = []string{
	"required flag",             // Missing required flag
	"unknown flag",              // Flag doesn't exist
	"unknown shorthand",         // Short flag doesn't exist
	"flag needs an argument",    // Flag provided without value
	"invalid argument",          // Invalid flag value type
	"if any flags in the group", // Mutually exclusive flag violation
	"accepts ",                  // Wrong number of arguments (e.g., "accepts 1 arg(s)")
	"requires at least",         // Too few arguments
	"requires at most",          // Too many arguments
	"unknown command",           // Subcommand doesn't exist
}

// isCobraUsageError checks if an error is a Cobra usage/parsing error.
func isCobraUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range cobraUsageErrorPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
