package pipeline

import "errors"

// Dependency validation errors.
var (
	ErrNilProber     = errors.New("prober is nil")
	ErrNilTranscoder = errors.New("transcoder is nil")
	ErrNilFactory    = errors.New("model factory is nil")
	ErrNilTelemetry  = errors.New("telemetry is nil")
	ErrNilTracker    = errors.New("progress tracker is nil")
	ErrNilRegistry   = errors.New("artifact registry is nil")
)

// ErrNoChunks indicates every planned chunk was lost before
// transcription could start.
var ErrNoChunks = errors.New("no chunks survived extraction")

// ErrAllChunksFailed indicates transcription produced not a single
// usable chunk result.
var ErrAllChunksFailed = errors.New("all chunks failed transcription")
