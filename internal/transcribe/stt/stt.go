// Package stt defines the speech-to-text model contract shared by all
// transcription backends, plus a factory for constructing them by name.
//
// A Model transcribes one audio file per call. Transcription workers
// obtain their own Model through a Factory and reuse it for every chunk
// they process, so expensive backend setup happens once per worker
// rather than once per chunk.
package stt

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Supported backend names, as accepted by NewFactory.
const (
	BackendOpenAI = "openai"
	BackendGoogle = "google"
	BackendMock   = "mock"
)

// Span is one transcribed span with timestamps relative to the start of
// the audio file it came from.
type Span struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Result holds the transcription of one audio file.
type Result struct {
	// Text is the full transcription.
	Text string

	// Spans carries per-span timing when the backend provides it.
	// May be empty if the backend returned text only.
	Spans []Span
}

// Options configures a single transcription request.
type Options struct {
	// WordTimestamps requests span-level timing from the backend.
	WordTimestamps bool

	// Language hints the audio language (ISO 639-1 code or locale).
	// Zero value means auto-detect.
	Language string

	// Prompt provides context to improve transcription accuracy.
	// Useful for domain-specific vocabulary, acronyms, or expected content.
	// Example: "Technical discussion about Kubernetes and Docker containers."
	Prompt string
}

// Model transcribes audio files to text.
type Model interface {
	// Transcribe converts an audio file to text with span timings.
	// audioPath must be a file in a format the backend accepts.
	Transcribe(ctx context.Context, audioPath string, opts Options) (Result, error)
}

// Factory constructs one Model instance. Each transcription worker calls
// its Factory once and reuses the returned Model for all chunks it is
// assigned. Models that also implement io.Closer are closed when the
// worker shuts down.
type Factory func(ctx context.Context) (Model, error)

// NewFactory returns a Factory for the named backend.
//
// The openai backend requires apiKey. The google backend authenticates
// through GOOGLE_APPLICATION_CREDENTIALS. The mock backend needs no
// credentials and produces deterministic canned output for offline use.
func NewFactory(backend, apiKey string) (Factory, error) {
	switch backend {
	case BackendOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("backend %q: %w", backend, ErrAPIKeyMissing)
		}
		return func(context.Context) (Model, error) {
			return NewOpenAIModel(openai.NewClient(apiKey)), nil
		}, nil
	case BackendGoogle:
		return func(ctx context.Context) (Model, error) {
			return NewGoogleModel(ctx)
		}, nil
	case BackendMock:
		return func(context.Context) (Model, error) {
			return NewMockModel(), nil
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
