package cli

import "errors"

// CLI-specific sentinel errors. Domain errors live in their own
// packages; these cover input validation the commands do themselves.
var (
	// ErrAPIKeyMissing indicates OPENAI_API_KEY is not set.
	ErrAPIKeyMissing = errors.New("OPENAI_API_KEY environment variable not set")

	// ErrFileNotFound indicates the specified input file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrUnsupportedFormat indicates the input has an unsupported extension.
	ErrUnsupportedFormat = errors.New("unsupported media format")

	// ErrOutputExists indicates an output file already exists.
	ErrOutputExists = errors.New("output file already exists")
)
