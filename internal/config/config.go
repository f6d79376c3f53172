package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// Config keys.
const (
	KeyOutputDir       = "output-dir"
	KeyBackend         = "backend"
	KeyChunkSeconds    = "chunk-seconds"
	KeyKeywords        = "keywords"
	KeyKafkaBrokers    = "kafka-brokers"
	KeyKafkaTopic      = "kafka-topic"
	KeyMinWorkers      = "min-workers"
	KeyMaxWorkers      = "max-workers"
	KeyWorkerMemoryGB  = "worker-memory-gb"
	KeyMemoryReserveGB = "memory-reserve-gb"
	KeyArtifactCap     = "artifact-cap"
	KeyLogLevel        = "log-level"
	KeyLogFormat       = "log-format"
	KeyMetricsAddr     = "metrics-addr"
)

// EnvPrefix is the prefix for environment variable fallbacks.
const EnvPrefix = "SCRIBELINE_"

// EnvVar maps a config key to its environment variable fallback.
// Example: "output-dir" -> "SCRIBELINE_OUTPUT_DIR".
func EnvVar(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// Config holds user configuration loaded from ~/.config/scribeline/config.
// Zero values mean "not set"; callers apply their own defaults.
type Config struct {
	OutputDir       string
	Backend         string
	ChunkSeconds    int
	Keywords        []string
	KafkaBrokers    []string
	KafkaTopic      string
	MinWorkers      int
	MaxWorkers      int
	WorkerMemoryGB  float64
	MemoryReserveGB float64
	ArtifactCap     int
	LogLevel        string
	LogFormat       string
	MetricsAddr     string
}

// dir returns the configuration directory path.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/scribeline.
func dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "scribeline"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "scribeline"), nil
}

// path returns the full path to the config file.
func path() (string, error) {
	d, err := dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "config"), nil
}

// Load reads the configuration file and environment variables.
// Precedence: config file values, then environment variable fallbacks.
// Returns an empty Config if the file doesn't exist (not an error).
func Load() (Config, error) {
	var cfg Config

	p, err := path()
	if err != nil {
		return cfg, err
	}

	data, err := parseFile(p)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		data = nil
	}

	// File value wins; a missing or empty key falls back to SCRIBELINE_*.
	get := func(key string) string {
		if v := data[key]; v != "" {
			return v
		}
		return os.Getenv(EnvVar(key))
	}

	cfg.OutputDir = get(KeyOutputDir)
	cfg.Backend = get(KeyBackend)
	cfg.KafkaTopic = get(KeyKafkaTopic)
	cfg.LogLevel = get(KeyLogLevel)
	cfg.LogFormat = get(KeyLogFormat)
	cfg.MetricsAddr = get(KeyMetricsAddr)
	cfg.Keywords = SplitList(get(KeyKeywords))
	cfg.KafkaBrokers = SplitList(get(KeyKafkaBrokers))

	if cfg.ChunkSeconds, err = intValue(get, KeyChunkSeconds); err != nil {
		return cfg, err
	}
	if cfg.MinWorkers, err = intValue(get, KeyMinWorkers); err != nil {
		return cfg, err
	}
	if cfg.MaxWorkers, err = intValue(get, KeyMaxWorkers); err != nil {
		return cfg, err
	}
	if cfg.WorkerMemoryGB, err = floatValue(get, KeyWorkerMemoryGB); err != nil {
		return cfg, err
	}
	if cfg.MemoryReserveGB, err = floatValue(get, KeyMemoryReserveGB); err != nil {
		return cfg, err
	}
	if cfg.ArtifactCap, err = intValue(get, KeyArtifactCap); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// intValue parses an optional integer setting. Empty means unset.
func intValue(get func(string) string, key string) (int, error) {
	raw := get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, raw)
	}
	return n, nil
}

// floatValue parses an optional float setting. Empty means unset.
func floatValue(get func(string) string, key string) (float64, error) {
	raw := get(key)
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, raw)
	}
	return f, nil
}

// SplitList splits a comma-separated setting into trimmed, non-empty items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseFile reads a key=value config file.
// Format: one key=value per line, # comments, empty lines ignored.
func parseFile(p string) (map[string]string, error) {
	f, err := os.Open(p) // #nosec G304 -- config path is constructed from home dir
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key=value.
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w at line %d: %q", ErrInvalidSyntax, lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		data[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return data, nil
}

// validKey rejects keys that would corrupt the key=value file format.
func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, "=\n") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Save writes a single key=value to the config file.
// Creates the config directory and file if they don't exist.
// Preserves existing key=value pairs but discards comments.
func Save(key, value string) error {
	if err := validKey(key); err != nil {
		return err
	}

	p, err := path()
	if err != nil {
		return err
	}

	// Ensure config directory exists.
	d := filepath.Dir(p)
	if err := os.MkdirAll(d, 0750); err != nil { // #nosec G301 -- user config dir
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	// Read existing config (if any).
	existing, _ := parseFile(p)
	if existing == nil {
		existing = make(map[string]string)
	}

	// Update value.
	existing[key] = value

	// Write back.
	return writeFile(p, existing)
}

// writeFile writes the config map to a file, keys sorted for stable output.
func writeFile(p string, data map[string]string) error {
	// #nosec G302 G304 -- config file with standard permissions, path from home dir
	f, err := os.OpenFile(p, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("cannot write config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	for _, key := range keys {
		if _, err := fmt.Fprintf(f, "%s=%s\n", key, data[key]); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	return nil
}

// Get reads a single value from the config file.
// Returns empty string if the key doesn't exist.
func Get(key string) (string, error) {
	p, err := path()
	if err != nil {
		return "", err
	}

	data, err := parseFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	return data[key], nil
}

// List returns all config values as a map.
func List() (map[string]string, error) {
	p, err := path()
	if err != nil {
		return nil, err
	}

	data, err := parseFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}

	return data, nil
}

// ResolveOutputPath resolves the final output path using the following precedence:
//  1. If output is absolute, use it as-is
//  2. If output is relative and outputDir is set, join them
//  3. If output is empty, use defaultName in outputDir (or cwd if no outputDir)
//
// outputDir can come from config or flag.
// All paths are cleaned using filepath.Clean to normalize separators and remove redundant elements.
func ResolveOutputPath(output, outputDir, defaultName string) string {
	// Case 1: Explicit absolute path - use as-is.
	if output != "" && filepath.IsAbs(output) {
		return filepath.Clean(output)
	}

	// Case 2: Explicit relative path - combine with outputDir if set.
	if output != "" {
		if outputDir != "" {
			return filepath.Clean(filepath.Join(outputDir, output))
		}
		return filepath.Clean(output)
	}

	// Case 3: No output specified - use default name.
	if outputDir != "" {
		return filepath.Clean(filepath.Join(outputDir, defaultName))
	}
	return filepath.Clean(defaultName)
}

// EnsureOutputDir checks that d is usable as an output directory,
// creating it if missing. Expands a leading ~.
func EnsureOutputDir(d string) error {
	if d == "" {
		return fmt.Errorf("output-dir cannot be empty")
	}

	d = ExpandPath(d)

	info, err := os.Stat(d)
	if err != nil {
		if os.IsNotExist(err) {
			// Directory doesn't exist - try to create it.
			if err := os.MkdirAll(d, 0750); err != nil { // #nosec G301 -- user output dir
				return fmt.Errorf("cannot create directory: %w", err)
			}
			return nil
		}
		return fmt.Errorf("cannot access directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, d)
	}

	// Check if writable by attempting to create a temp file.
	f, err := os.CreateTemp(d, ".scribeline-write-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotWritable, err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("%w: %v", ErrNotWritable, err)
	}
	_ = os.Remove(name) // Best effort cleanup, ignore error

	return nil
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(p string) string {
	if p == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return p
	}
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, p[2:])
	}
	return p
}
