package transcribe

import "errors"

// Sentinel errors for pool construction.
var (
	// ErrNilTranscoder indicates the pool was built without a transcoder.
	ErrNilTranscoder = errors.New("transcoder is nil")

	// ErrNilFactory indicates the pool was built without a model factory.
	ErrNilFactory = errors.New("model factory is nil")

	// ErrNilRegistry indicates the pool was built without an artifact registry.
	ErrNilRegistry = errors.New("artifact registry is nil")
)
