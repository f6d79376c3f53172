package chunk

import "errors"

// Sentinel errors for chunk planning and extraction.
var (
	// ErrDurationUnknown indicates the source duration is missing or not
	// positive, so no plan can be computed. This is fatal for the session.
	ErrDurationUnknown = errors.New("media duration unknown or not positive")

	// ErrNilTranscoder indicates an Extractor was built without a transcoder.
	ErrNilTranscoder = errors.New("transcoder cannot be nil")

	// ErrNilRegistry indicates an Extractor was built without a registry.
	ErrNilRegistry = errors.New("artifact registry cannot be nil")
)
