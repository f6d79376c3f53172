package cli

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/scribeline/scribeline/internal/config"
	"github.com/scribeline/scribeline/internal/transcribe/stt"
)

// validConfigKeys lists every key the config command accepts.
var validConfigKeys = []string{
	config.KeyOutputDir,
	config.KeyBackend,
	config.KeyChunkSeconds,
	config.KeyKeywords,
	config.KeyKafkaBrokers,
	config.KeyKafkaTopic,
	config.KeyMinWorkers,
	config.KeyMaxWorkers,
	config.KeyWorkerMemoryGB,
	config.KeyMemoryReserveGB,
	config.KeyArtifactCap,
	config.KeyLogLevel,
	config.KeyLogFormat,
	config.KeyMetricsAddr,
}

// ConfigCmd creates the config command with set, get and list subcommands.
func ConfigCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage persistent configuration",
		Long: `Manage settings stored in ~/.config/scribeline/config.

Available keys:
  output-dir         default directory for transcripts
  backend            speech-to-text backend: openai, google, mock
  chunk-seconds      chunk length in seconds (0 = adaptive)
  keywords           comma-separated keywords for analysis
  kafka-brokers      comma-separated Kafka brokers for progress events
  kafka-topic        Kafka topic for progress events
  min-workers        minimum transcription workers
  max-workers        maximum transcription workers
  worker-memory-gb   memory budgeted per transcription worker
  memory-reserve-gb  memory held back from worker sizing
  artifact-cap       temporary files kept on disk before eviction
  log-level          debug, info, warn, error
  log-format         json or console
  metrics-addr       address for the Prometheus /metrics listener

Every key can also be set through a SCRIBELINE_* environment variable,
e.g. SCRIBELINE_OUTPUT_DIR. File values win over environment values.`,
	}

	cmd.AddCommand(configSetCmd(env), configGetCmd(env), configListCmd(env))

	return cmd
}

func configSetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Example: `  scribeline config set output-dir ~/Documents/transcripts
  scribeline config set backend mock
  scribeline config set keywords deadline,budget`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(env, args[0], args[1])
		},
	}
}

func configGetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Show a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd, env, args[0])
		},
	}
}

func configListCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show all configuration values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigList(cmd, env)
		},
	}
}

func runConfigSet(env *Env, key, value string) error {
	if !isValidConfigKey(key) {
		return fmt.Errorf("%w: %q (valid keys: %s)",
			config.ErrInvalidKey, key, strings.Join(validConfigKeys, ", "))
	}

	validated, err := validateConfigValue(key, value)
	if err != nil {
		return err
	}

	if err := config.Save(key, validated); err != nil {
		return err
	}

	fmt.Fprintf(env.Stderr, "Set %s = %s\n", key, validated)
	return nil
}

func runConfigGet(cmd *cobra.Command, env *Env, key string) error {
	if !isValidConfigKey(key) {
		return fmt.Errorf("%w: %q (valid keys: %s)",
			config.ErrInvalidKey, key, strings.Join(validConfigKeys, ", "))
	}

	value, err := config.Get(key)
	if err != nil {
		return err
	}

	// Environment variable fallback, mirroring how Load resolves keys.
	if value == "" {
		value = env.Getenv(config.EnvVar(key))
	}

	if value != "" {
		fmt.Fprintln(cmd.OutOrStdout(), value)
	}

	return nil
}

func runConfigList(cmd *cobra.Command, env *Env) error {
	data, err := config.List()
	if err != nil {
		return err
	}

	// Add environment-provided values for keys the file leaves unset.
	for _, key := range validConfigKeys {
		if _, ok := data[key]; ok {
			continue
		}
		if envVal := env.Getenv(config.EnvVar(key)); envVal != "" {
			data[key] = envVal + " (from env)"
		}
	}

	out := cmd.OutOrStdout()
	if len(data) == 0 {
		fmt.Fprintln(out, "No configuration set.")
		fmt.Fprintln(out, "\nAvailable settings:")
		for _, key := range validConfigKeys {
			fmt.Fprintf(out, "  %s\n", key)
		}
		return nil
	}

	for _, key := range validConfigKeys {
		if value, ok := data[key]; ok {
			fmt.Fprintf(out, "%s = %s\n", key, value)
		}
	}

	return nil
}

// validateConfigValue normalizes and validates a value for its key.
// Keywords, brokers, topic and metrics-addr take free-form values.
func validateConfigValue(key, value string) (string, error) {
	switch key {
	case config.KeyOutputDir:
		expanded := config.ExpandPath(value)
		if err := config.EnsureOutputDir(expanded); err != nil {
			return "", fmt.Errorf("invalid output-dir: %w", err)
		}
		// Store the expanded path for consistency.
		return expanded, nil

	case config.KeyBackend:
		if !slices.Contains(validBackends, value) {
			return "", fmt.Errorf("%w: %q (valid: %s)",
				stt.ErrUnknownBackend, value, strings.Join(validBackends, ", "))
		}

	case config.KeyChunkSeconds, config.KeyMinWorkers, config.KeyMaxWorkers, config.KeyArtifactCap:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return "", fmt.Errorf("%w: %s must be a non-negative integer, got %q",
				config.ErrInvalidValue, key, value)
		}

	case config.KeyWorkerMemoryGB, config.KeyMemoryReserveGB:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return "", fmt.Errorf("%w: %s must be a non-negative number, got %q",
				config.ErrInvalidValue, key, value)
		}

	case config.KeyLogLevel:
		if _, err := zerolog.ParseLevel(value); err != nil {
			return "", fmt.Errorf("%w: %s: %q", config.ErrInvalidValue, key, value)
		}

	case config.KeyLogFormat:
		if value != "json" && value != "console" {
			return "", fmt.Errorf("%w: %s must be json or console, got %q",
				config.ErrInvalidValue, key, value)
		}
	}

	return value, nil
}

func isValidConfigKey(key string) bool {
	return slices.Contains(validConfigKeys, key)
}
