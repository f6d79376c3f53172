package stt_test

// Coverage Notes:
// - The Speech API client is mocked behind the recognize seam; no network calls.
// - Responses are built from speechpb protos directly, including word offsets.
// - gRPC status classification mirrors the OpenAI classification tests.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/scribeline/scribeline/internal/transcribe/stt"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

// fakeRecognizer implements the recognize seam with a canned response
// sequence. The last response repeats once exhausted.
type fakeRecognizer struct {
	mu        sync.Mutex
	responses []recognizeReply
	requests  []*speechpb.RecognizeRequest
	closed    bool
}

type recognizeReply struct {
	response *speechpb.RecognizeResponse
	err      error
}

func (f *fakeRecognizer) Recognize(_ context.Context, req *speechpb.RecognizeRequest, _ ...gax.CallOption) (*speechpb.RecognizeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)

	if len(f.responses) == 0 {
		return &speechpb.RecognizeResponse{}, nil
	}
	idx := min(len(f.requests)-1, len(f.responses)-1)
	reply := f.responses[idx]
	return reply.response, reply.err
}

func (f *fakeRecognizer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeRecognizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeRecognizer) lastRequest(t *testing.T) *speechpb.RecognizeRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("no requests were made")
	}
	return f.requests[len(f.requests)-1]
}

// newGoogleModel builds a model around the fake with fast retry delays
// and an in-memory file reader.
func newGoogleModel(t *testing.T, client stt.RecognizeClient, opts ...stt.GoogleOption) *stt.GoogleModel {
	t.Helper()
	base := []stt.GoogleOption{
		stt.WithRecognizeClient(client),
		stt.WithFileReader(func(string) ([]byte, error) { return []byte("RIFFaudio"), nil }),
		stt.WithGoogleRetries(2, time.Millisecond, time.Millisecond),
	}
	model, err := stt.NewGoogleModel(context.Background(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewGoogleModel() unexpected error: %v", err)
	}
	return model
}

// wordInfo builds a WordInfo with offsets in milliseconds.
func wordInfo(word string, startMs, endMs int64) *speechpb.WordInfo {
	return &speechpb.WordInfo{
		Word:      word,
		StartTime: durationpb.New(time.Duration(startMs) * time.Millisecond),
		EndTime:   durationpb.New(time.Duration(endMs) * time.Millisecond),
	}
}

// ---------------------------------------------------------------------------
// TestGoogleModel_Transcribe
// ---------------------------------------------------------------------------

func TestGoogleModel_Transcribe(t *testing.T) {
	t.Parallel()

	t.Run("returns spans with word offsets", func(t *testing.T) {
		t.Parallel()

		resp := &speechpb.RecognizeResponse{
			Results: []*speechpb.SpeechRecognitionResult{
				{
					Alternatives: []*speechpb.SpeechRecognitionAlternative{{
						Transcript: "hello there",
						Words: []*speechpb.WordInfo{
							wordInfo("hello", 0, 400),
							wordInfo("there", 500, 900),
						},
					}},
				},
				{
					Alternatives: []*speechpb.SpeechRecognitionAlternative{{
						Transcript: "general update",
						Words: []*speechpb.WordInfo{
							wordInfo("general", 1000, 1400),
							wordInfo("update", 1500, 2000),
						},
					}},
				},
			},
		}
		client := &fakeRecognizer{responses: []recognizeReply{{response: resp}}}
		model := newGoogleModel(t, client)

		got, err := model.Transcribe(context.Background(), "/tmp/chunk_000.wav", stt.Options{WordTimestamps: true})
		if err != nil {
			t.Fatalf("Transcribe() unexpected error: %v", err)
		}

		if got.Text != "hello there general update" {
			t.Errorf("Text = %q, want joined transcripts", got.Text)
		}
		if len(got.Spans) != 2 {
			t.Fatalf("got %d spans, want 2", len(got.Spans))
		}
		if got.Spans[0].Start != 0 || got.Spans[0].End != 900*time.Millisecond {
			t.Errorf("span 0 = [%v, %v], want [0, 900ms]", got.Spans[0].Start, got.Spans[0].End)
		}
		if got.Spans[1].Start != time.Second {
			t.Errorf("span 1 start = %v, want 1s", got.Spans[1].Start)
		}
	})

	t.Run("falls back to result end time without words", func(t *testing.T) {
		t.Parallel()

		resp := &speechpb.RecognizeResponse{
			Results: []*speechpb.SpeechRecognitionResult{{
				Alternatives:  []*speechpb.SpeechRecognitionAlternative{{Transcript: "short clip"}},
				ResultEndTime: durationpb.New(3 * time.Second),
			}},
		}
		client := &fakeRecognizer{responses: []recognizeReply{{response: resp}}}
		model := newGoogleModel(t, client)

		got, err := model.Transcribe(context.Background(), "/tmp/chunk_001.wav", stt.Options{})
		if err != nil {
			t.Fatalf("Transcribe() unexpected error: %v", err)
		}

		if len(got.Spans) != 1 {
			t.Fatalf("got %d spans, want 1", len(got.Spans))
		}
		if got.Spans[0].End != 3*time.Second {
			t.Errorf("span end = %v, want 3s", got.Spans[0].End)
		}
	})

	t.Run("request carries encoding sample rate and language tag", func(t *testing.T) {
		t.Parallel()

		client := &fakeRecognizer{}
		model := newGoogleModel(t, client)

		_, err := model.Transcribe(context.Background(), "/tmp/chunk_002.wav", stt.Options{
			Language:       "pt",
			WordTimestamps: true,
		})
		if err != nil {
			t.Fatalf("Transcribe() unexpected error: %v", err)
		}

		cfg := client.lastRequest(t).GetConfig()
		if cfg.GetEncoding() != speechpb.RecognitionConfig_LINEAR16 {
			t.Errorf("encoding = %v, want LINEAR16", cfg.GetEncoding())
		}
		if cfg.GetSampleRateHertz() != 16000 {
			t.Errorf("sample rate = %d, want 16000", cfg.GetSampleRateHertz())
		}
		if cfg.GetLanguageCode() != "pt-BR" {
			t.Errorf("language = %q, want BCP-47 tag %q", cfg.GetLanguageCode(), "pt-BR")
		}
		if !cfg.GetEnableWordTimeOffsets() {
			t.Error("EnableWordTimeOffsets should be set when word timestamps are requested")
		}
	})

	t.Run("empty language defaults to en-US", func(t *testing.T) {
		t.Parallel()

		client := &fakeRecognizer{}
		model := newGoogleModel(t, client)

		if _, err := model.Transcribe(context.Background(), "/tmp/chunk_003.wav", stt.Options{}); err != nil {
			t.Fatalf("Transcribe() unexpected error: %v", err)
		}

		if got := client.lastRequest(t).GetConfig().GetLanguageCode(); got != "en-US" {
			t.Errorf("language = %q, want default %q", got, "en-US")
		}
	})

	t.Run("file read failure surfaces without an API call", func(t *testing.T) {
		t.Parallel()

		client := &fakeRecognizer{}
		model := newGoogleModel(t, client, stt.WithFileReader(func(string) ([]byte, error) {
			return nil, os.ErrNotExist
		}))

		_, err := model.Transcribe(context.Background(), "/tmp/missing.wav", stt.Options{})
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("error = %v, want wrapped os.ErrNotExist", err)
		}
		if client.callCount() != 0 {
			t.Errorf("call count = %d, want 0", client.callCount())
		}
	})

	t.Run("retries unavailable then succeeds", func(t *testing.T) {
		t.Parallel()

		client := &fakeRecognizer{responses: []recognizeReply{
			{err: status.Error(codes.Unavailable, "try again")},
			{response: &speechpb.RecognizeResponse{
				Results: []*speechpb.SpeechRecognitionResult{{
					Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "recovered"}},
				}},
			}},
		}}
		model := newGoogleModel(t, client)

		got, err := model.Transcribe(context.Background(), "/tmp/chunk_004.wav", stt.Options{})
		if err != nil {
			t.Fatalf("Transcribe() unexpected error: %v", err)
		}
		if got.Text != "recovered" {
			t.Errorf("Text = %q, want %q", got.Text, "recovered")
		}
		if client.callCount() != 2 {
			t.Errorf("call count = %d, want 2", client.callCount())
		}
	})

	t.Run("permission denied is not retried", func(t *testing.T) {
		t.Parallel()

		client := &fakeRecognizer{responses: []recognizeReply{
			{err: status.Error(codes.PermissionDenied, "speech API disabled")},
		}}
		model := newGoogleModel(t, client)

		_, err := model.Transcribe(context.Background(), "/tmp/chunk_005.wav", stt.Options{})
		if !errors.Is(err, stt.ErrAuthFailed) {
			t.Errorf("error = %v, want ErrAuthFailed", err)
		}
		if client.callCount() != 1 {
			t.Errorf("call count = %d, want 1", client.callCount())
		}
	})

	t.Run("skips empty alternatives", func(t *testing.T) {
		t.Parallel()

		resp := &speechpb.RecognizeResponse{
			Results: []*speechpb.SpeechRecognitionResult{
				{},
				{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "  "}}},
				{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "kept"}}},
			},
		}
		client := &fakeRecognizer{responses: []recognizeReply{{response: resp}}}
		model := newGoogleModel(t, client)

		got, err := model.Transcribe(context.Background(), "/tmp/chunk_006.wav", stt.Options{})
		if err != nil {
			t.Fatalf("Transcribe() unexpected error: %v", err)
		}
		if got.Text != "kept" {
			t.Errorf("Text = %q, want %q", got.Text, "kept")
		}
		if len(got.Spans) != 1 {
			t.Errorf("got %d spans, want 1", len(got.Spans))
		}
	})
}

func TestGoogleModel_Close(t *testing.T) {
	t.Parallel()

	client := &fakeRecognizer{}
	model := newGoogleModel(t, client)

	if err := model.Close(); err != nil {
		t.Fatalf("Close() unexpected error: %v", err)
	}
	if !client.closed {
		t.Error("Close() should close the underlying client")
	}
}

// ---------------------------------------------------------------------------
// TestClassifyGoogleError - gRPC status classification
// ---------------------------------------------------------------------------

func TestClassifyGoogleError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		err          error
		wantSentinel error
	}{
		{
			name:         "resource exhausted with quota message",
			err:          status.Error(codes.ResourceExhausted, "quota exceeded for recognition"),
			wantSentinel: stt.ErrQuotaExceeded,
		},
		{
			name:         "resource exhausted plain",
			err:          status.Error(codes.ResourceExhausted, "too many requests"),
			wantSentinel: stt.ErrRateLimit,
		},
		{
			name:         "unauthenticated",
			err:          status.Error(codes.Unauthenticated, "invalid credentials"),
			wantSentinel: stt.ErrAuthFailed,
		},
		{
			name:         "permission denied",
			err:          status.Error(codes.PermissionDenied, "API disabled"),
			wantSentinel: stt.ErrAuthFailed,
		},
		{
			name:         "deadline exceeded code",
			err:          status.Error(codes.DeadlineExceeded, "deadline"),
			wantSentinel: stt.ErrTimeout,
		},
		{
			name:         "invalid argument",
			err:          status.Error(codes.InvalidArgument, "bad encoding"),
			wantSentinel: stt.ErrBadRequest,
		},
		{
			name:         "wrapped context deadline",
			err:          fmt.Errorf("rpc: %w", context.DeadlineExceeded),
			wantSentinel: stt.ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := stt.ClassifyGoogleError(tt.err)
			if !errors.Is(got, tt.wantSentinel) {
				t.Errorf("ClassifyGoogleError(%v) = %v, want sentinel %v", tt.err, got, tt.wantSentinel)
			}
		})
	}

	t.Run("unavailable passes through for retry detection", func(t *testing.T) {
		t.Parallel()

		err := status.Error(codes.Unavailable, "server busy")
		got := stt.ClassifyGoogleError(err)

		if s, ok := status.FromError(got); !ok || s.Code() != codes.Unavailable {
			t.Errorf("ClassifyGoogleError(Unavailable) = %v, want status preserved", got)
		}
	})
}

// ---------------------------------------------------------------------------
// TestIsRetryableGoogleError - Transient error detection
// ---------------------------------------------------------------------------

func TestIsRetryableGoogleError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "rate limit sentinel", err: fmt.Errorf("x: %w", stt.ErrRateLimit), want: true},
		{name: "timeout sentinel", err: fmt.Errorf("x: %w", stt.ErrTimeout), want: true},
		{name: "unavailable", err: status.Error(codes.Unavailable, "busy"), want: true},
		{name: "internal", err: status.Error(codes.Internal, "oops"), want: true},
		{name: "aborted", err: status.Error(codes.Aborted, "conflict"), want: true},
		{name: "auth sentinel", err: fmt.Errorf("x: %w", stt.ErrAuthFailed), want: false},
		{name: "quota sentinel", err: fmt.Errorf("x: %w", stt.ErrQuotaExceeded), want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := stt.IsRetryableGoogleError(tt.err); got != tt.want {
				t.Errorf("IsRetryableGoogleError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
