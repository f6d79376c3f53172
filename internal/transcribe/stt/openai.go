package stt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/scribeline/scribeline/internal/lang"
)

// audioTranscriber is an internal interface for OpenAI audio transcription.
// *openai.Client implements this implicitly.
// This allows injecting mocks in tests.
type audioTranscriber interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// Compile-time interface compliance checks.
var (
	_ Model            = (*OpenAIModel)(nil)
	_ audioTranscriber = (*openai.Client)(nil)
)

// OpenAIModel transcribes audio using OpenAI's Whisper API.
// It requests verbose JSON so segment timings come back with the text,
// and retries transient errors with exponential backoff.
type OpenAIModel struct {
	client     audioTranscriber
	model      string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// OpenAIOption configures an OpenAIModel.
type OpenAIOption func(*OpenAIModel)

// WithModelID overrides the transcription model identifier.
func WithModelID(id string) OpenAIOption {
	return func(m *OpenAIModel) {
		if id != "" {
			m.model = id
		}
	}
}

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) OpenAIOption {
	return func(m *OpenAIModel) {
		if n >= 0 {
			m.maxRetries = n
		}
	}
}

// WithRetryDelays sets the base and max delays for exponential backoff.
func WithRetryDelays(base, maxDelay time.Duration) OpenAIOption {
	return func(m *OpenAIModel) {
		if base > 0 {
			m.baseDelay = base
		}
		if maxDelay > 0 {
			m.maxDelay = maxDelay
		}
	}
}

// withAudioClient injects a mock audio client (for testing).
func withAudioClient(client audioTranscriber) OpenAIOption {
	return func(m *OpenAIModel) {
		m.client = client
	}
}

// NewOpenAIModel creates an OpenAIModel backed by the given client.
func NewOpenAIModel(client *openai.Client, opts ...OpenAIOption) *OpenAIModel {
	m := &OpenAIModel{
		client:     client,
		model:      openai.Whisper1,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Transcribe transcribes an audio file using the Whisper API.
// It automatically retries on transient errors (rate limits, timeouts,
// server errors).
func (m *OpenAIModel) Transcribe(ctx context.Context, audioPath string, opts Options) (Result, error) {
	req := openai.AudioRequest{
		Model:    m.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Prompt:   opts.Prompt,
		Language: lang.BaseCode(opts.Language), // Whisper only accepts ISO 639-1 base codes
	}
	if opts.WordTimestamps {
		req.TimestampGranularities = []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
			openai.TranscriptionTimestampGranularityWord,
		}
	}

	cfg := RetryConfig{
		MaxRetries: m.maxRetries,
		BaseDelay:  m.baseDelay,
		MaxDelay:   m.maxDelay,
	}

	resp, err := RetryWithBackoff(ctx, cfg, func() (openai.AudioResponse, error) {
		resp, err := m.client.CreateTranscription(ctx, req)
		if err != nil {
			return openai.AudioResponse{}, classifyError(err)
		}
		return resp, nil
	}, isRetryableError)
	if err != nil {
		return Result{}, fmt.Errorf("openai transcription: %w", err)
	}

	return fromAudioResponse(resp), nil
}

// fromAudioResponse converts a verbose JSON response into a Result.
// Segment granularity is preferred; word granularity is the fallback
// when the response carries words only.
func fromAudioResponse(resp openai.AudioResponse) Result {
	res := Result{Text: strings.TrimSpace(resp.Text)}

	if len(resp.Segments) > 0 {
		res.Spans = make([]Span, 0, len(resp.Segments))
		for _, seg := range resp.Segments {
			res.Spans = append(res.Spans, Span{
				Start: secondsToDuration(seg.Start),
				End:   secondsToDuration(seg.End),
				Text:  strings.TrimSpace(seg.Text),
			})
		}
		return res
	}

	if len(resp.Words) > 0 {
		res.Spans = make([]Span, 0, len(resp.Words))
		for _, w := range resp.Words {
			res.Spans = append(res.Spans, Span{
				Start: secondsToDuration(w.Start),
				End:   secondsToDuration(w.End),
				Text:  w.Word,
			})
		}
	}
	return res
}

// secondsToDuration converts fractional seconds, as returned by the API,
// to a time.Duration.
func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}

// classifyError maps OpenAI API errors to sentinel errors.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			// Distinguish between temporary rate limit and quota exceeded (billing issue).
			// Quota exceeded should not be retried - it requires user action.
			if strings.Contains(apiErr.Message, "quota") ||
				strings.Contains(apiErr.Message, "billing") {
				return fmt.Errorf("%s: %w", apiErr.Message, ErrQuotaExceeded)
			}
			return fmt.Errorf("%s: %w", apiErr.Message, ErrRateLimit)
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w", apiErr.Message, ErrAuthFailed)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return fmt.Errorf("%s: %w", apiErr.Message, ErrTimeout)
		case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound:
			return fmt.Errorf("%s: %w", apiErr.Message, ErrBadRequest)
		}
	}

	// Check for context timeout/deadline exceeded.
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", ErrTimeout)
	}

	return err
}

// isRetryableError determines if an error is transient and should be retried.
func isRetryableError(err error) bool {
	// Rate limits are retryable (with backoff).
	if errors.Is(err, ErrRateLimit) {
		return true
	}

	// Timeouts are retryable.
	if errors.Is(err, ErrTimeout) {
		return true
	}

	// Server errors (5xx) are retryable.
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}

	// Context cancellation and auth errors are not retryable.
	return false
}
