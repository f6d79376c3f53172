package config

import "errors"

// Sentinel errors for config operations.
var (
	// ErrInvalidKey indicates a config key that cannot be stored
	// (empty, or containing '=' or newline).
	ErrInvalidKey = errors.New("invalid config key")

	// ErrInvalidSyntax indicates a config file line that is not key=value.
	ErrInvalidSyntax = errors.New("invalid config syntax")

	// ErrInvalidValue indicates a config value that failed typed parsing.
	ErrInvalidValue = errors.New("invalid config value")

	// ErrNotDirectory indicates an output path that exists but is a file.
	ErrNotDirectory = errors.New("path is not a directory")

	// ErrNotWritable indicates an output directory that cannot be written.
	ErrNotWritable = errors.New("directory is not writable")
)
