package stt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/scribeline/scribeline/internal/lang"
)

// defaultGoogleLanguage is used when no language hint is given.
// Google Speech-to-Text requires an explicit language code.
const defaultGoogleLanguage = "en-US"

// googleSampleRate matches the audio produced by the extraction stage
// (mono 16 kHz PCM WAV).
const googleSampleRate = 16000

// recognizeClient is an internal interface for Google Speech recognition.
// *speech.Client implements this implicitly.
// This allows injecting mocks in tests.
type recognizeClient interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

// Compile-time interface compliance checks.
var (
	_ Model           = (*GoogleModel)(nil)
	_ recognizeClient = (*speech.Client)(nil)
)

// GoogleModel transcribes audio using Google Cloud Speech-to-Text.
// Word time offsets are requested so span timings come back with the
// text. Authentication uses GOOGLE_APPLICATION_CREDENTIALS.
type GoogleModel struct {
	client     recognizeClient
	readFile   func(string) ([]byte, error)
	sampleRate int32
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// GoogleOption configures a GoogleModel.
type GoogleOption func(*GoogleModel)

// WithGoogleRetries sets the retry parameters for recognition calls.
func WithGoogleRetries(maxRetries int, base, maxDelay time.Duration) GoogleOption {
	return func(m *GoogleModel) {
		if maxRetries >= 0 {
			m.maxRetries = maxRetries
		}
		if base > 0 {
			m.baseDelay = base
		}
		if maxDelay > 0 {
			m.maxDelay = maxDelay
		}
	}
}

// withRecognizeClient injects a mock recognition client (for testing).
func withRecognizeClient(client recognizeClient) GoogleOption {
	return func(m *GoogleModel) {
		m.client = client
	}
}

// withFileReader injects a file reader (for testing).
func withFileReader(readFile func(string) ([]byte, error)) GoogleOption {
	return func(m *GoogleModel) {
		m.readFile = readFile
	}
}

// NewGoogleModel creates a GoogleModel. Unless a client is injected, it
// dials the Speech API using ambient Google credentials.
func NewGoogleModel(ctx context.Context, opts ...GoogleOption) (*GoogleModel, error) {
	m := &GoogleModel{
		readFile:   os.ReadFile,
		sampleRate: googleSampleRate,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.client == nil {
		client, err := speech.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create speech client: %w", classifyGoogleError(err))
		}
		m.client = client
	}
	return m, nil
}

// Close releases the underlying API client connection.
func (m *GoogleModel) Close() error {
	return m.client.Close()
}

// Transcribe transcribes an audio file using Google Speech-to-Text.
// It automatically retries on transient errors.
func (m *GoogleModel) Transcribe(ctx context.Context, audioPath string, opts Options) (Result, error) {
	audio, err := m.readFile(audioPath)
	if err != nil {
		return Result{}, fmt.Errorf("read audio file: %w", err)
	}

	language := lang.Tag(opts.Language)
	if language == "" {
		language = defaultGoogleLanguage
	}

	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            m.sampleRate,
			LanguageCode:               language,
			EnableAutomaticPunctuation: true,
			EnableWordTimeOffsets:      opts.WordTimestamps,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	}

	cfg := RetryConfig{
		MaxRetries: m.maxRetries,
		BaseDelay:  m.baseDelay,
		MaxDelay:   m.maxDelay,
	}

	resp, err := RetryWithBackoff(ctx, cfg, func() (*speechpb.RecognizeResponse, error) {
		resp, err := m.client.Recognize(ctx, req)
		if err != nil {
			return nil, classifyGoogleError(err)
		}
		return resp, nil
	}, isRetryableGoogleError)
	if err != nil {
		return Result{}, fmt.Errorf("google transcription: %w", err)
	}

	return fromRecognizeResponse(resp), nil
}

// fromRecognizeResponse converts a recognition response into a Result.
// Each result alternative becomes one span; timing comes from word
// offsets when present, falling back to the result end time.
func fromRecognizeResponse(resp *speechpb.RecognizeResponse) Result {
	var sb strings.Builder
	var spans []Span

	for _, r := range resp.GetResults() {
		if len(r.GetAlternatives()) == 0 {
			continue
		}
		alt := r.GetAlternatives()[0]
		text := strings.TrimSpace(alt.GetTranscript())
		if text == "" {
			continue
		}

		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(text)

		span := Span{Text: text}
		if words := alt.GetWords(); len(words) > 0 {
			span.Start = words[0].GetStartTime().AsDuration()
			span.End = words[len(words)-1].GetEndTime().AsDuration()
		} else if end := r.GetResultEndTime(); end != nil {
			span.End = end.AsDuration()
		}
		spans = append(spans, span)
	}

	return Result{Text: sb.String(), Spans: spans}
}

// classifyGoogleError maps gRPC status codes to sentinel errors.
func classifyGoogleError(err error) error {
	if s, ok := status.FromError(err); ok && s != nil {
		switch s.Code() {
		case codes.ResourceExhausted:
			if strings.Contains(s.Message(), "quota") ||
				strings.Contains(s.Message(), "billing") {
				return fmt.Errorf("%s: %w", s.Message(), ErrQuotaExceeded)
			}
			return fmt.Errorf("%s: %w", s.Message(), ErrRateLimit)
		case codes.Unauthenticated, codes.PermissionDenied:
			return fmt.Errorf("%s: %w", s.Message(), ErrAuthFailed)
		case codes.DeadlineExceeded:
			return fmt.Errorf("%s: %w", s.Message(), ErrTimeout)
		case codes.InvalidArgument, codes.NotFound, codes.FailedPrecondition:
			return fmt.Errorf("%s: %w", s.Message(), ErrBadRequest)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", ErrTimeout)
	}

	return err
}

// isRetryableGoogleError determines if a recognition error is transient.
func isRetryableGoogleError(err error) bool {
	if errors.Is(err, ErrRateLimit) || errors.Is(err, ErrTimeout) {
		return true
	}

	// Transient server codes are retryable; classifyGoogleError leaves
	// them unwrapped so the status survives to this check.
	if s, ok := status.FromError(err); ok && s != nil {
		switch s.Code() {
		case codes.Unavailable, codes.Internal, codes.Aborted:
			return true
		}
	}

	return false
}
