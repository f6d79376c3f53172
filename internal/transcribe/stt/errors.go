package stt

import "errors"

// Sentinel errors for speech-to-text failures. Backends classify
// provider-specific errors into these at the adapter boundary using
// fmt.Errorf("%s: %w", msg, sentinel); callers check with errors.Is.
var (
	// ErrRateLimit indicates the API rate limit was exceeded (temporary, retryable).
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrQuotaExceeded indicates the API quota was exceeded (billing issue, not retryable).
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrTimeout indicates a request timed out.
	ErrTimeout = errors.New("request timeout")

	// ErrAuthFailed indicates API authentication failed (invalid key or credentials).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrBadRequest indicates a client error (4xx) that is not otherwise classified.
	ErrBadRequest = errors.New("bad request")

	// ErrUnknownBackend indicates an unrecognized backend name.
	ErrUnknownBackend = errors.New("unknown speech-to-text backend")

	// ErrAPIKeyMissing indicates the selected backend requires an API key.
	ErrAPIKeyMissing = errors.New("API key missing")
)
