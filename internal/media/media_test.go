package media_test

// Notes:
// - Tests focus on pure functions (parsing, formatting) and argument construction
// - FFmpeg execution is tested via the commandRunner mock, never a real binary
// - Internal functions exposed via export_test.go for black-box testing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scribeline/scribeline/internal/media"
)

// ---------------------------------------------------------------------------
// NewFFmpeg - Constructor validation
// ---------------------------------------------------------------------------

func TestNewFFmpeg(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		binPath string
		wantErr bool
	}{
		{name: "valid path", binPath: "/usr/bin/ffmpeg", wantErr: false},
		{name: "empty path", binPath: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := media.NewFFmpeg(tt.binPath)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewFFmpeg() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, media.ErrBinaryNotFound) {
				t.Errorf("NewFFmpeg() error = %v, want ErrBinaryNotFound", err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// ParseDurationFromOutput - FFmpeg duration parsing
// ---------------------------------------------------------------------------

func TestParseDurationFromOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		output  string
		want    time.Duration
		wantErr bool
	}{
		{
			name:    "standard Duration format",
			output:  "Duration: 00:05:23.45, start: 0.000000, bitrate: 128 kb/s",
			want:    5*time.Minute + 23*time.Second + 450*time.Millisecond,
			wantErr: false,
		},
		{
			name:    "Duration with hours",
			output:  "Duration: 01:30:00.00, start: 0.000000",
			want:    time.Hour + 30*time.Minute,
			wantErr: false,
		},
		{
			name:    "time= format fallback",
			output:  "frame= 1000 fps=25 time=00:02:30.50 bitrate=128.0kbits/s",
			want:    2*time.Minute + 30*time.Second + 500*time.Millisecond,
			wantErr: false,
		},
		{
			name:    "multiple time= entries uses last",
			output:  "time=00:01:00.00 speed=1x\ntime=00:02:00.00 speed=1x\ntime=00:03:00.00 speed=1x",
			want:    3 * time.Minute,
			wantErr: false,
		},
		{
			name:    "Duration preferred over time=",
			output:  "Duration: 00:10:00.00\ntime=00:05:00.00",
			want:    10 * time.Minute,
			wantErr: false,
		},
		{
			name:    "no duration present",
			output:  "some unrelated ffmpeg output",
			wantErr: true,
		},
		{
			name:    "empty output",
			output:  "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := media.ParseDurationFromOutput(tt.output)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDurationFromOutput() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseDurationFromOutput() = %v, want %v", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// ParseTimeComponents - Fractional precision normalization
// ---------------------------------------------------------------------------

func TestParseTimeComponents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		h, m, s    string
		fractional string
		want       time.Duration
	}{
		{
			name: "one fractional digit",
			h:    "0", m: "0", s: "1", fractional: "4",
			want: time.Second + 400*time.Millisecond,
		},
		{
			name: "two fractional digits",
			h:    "0", m: "0", s: "1", fractional: "45",
			want: time.Second + 450*time.Millisecond,
		},
		{
			name: "three fractional digits",
			h:    "0", m: "0", s: "1", fractional: "456",
			want: time.Second + 456*time.Millisecond,
		},
		{
			name: "six fractional digits truncated",
			h:    "0", m: "0", s: "1", fractional: "456789",
			want: time.Second + 456*time.Millisecond,
		},
		{
			name: "full components",
			h:    "2", m: "30", s: "15", fractional: "500",
			want: 2*time.Hour + 30*time.Minute + 15*time.Second + 500*time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := media.ParseTimeComponents(tt.h, tt.m, tt.s, tt.fractional)
			if err != nil {
				t.Fatalf("ParseTimeComponents() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseTimeComponents() = %v, want %v", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// FormatTime - FFmpeg -ss/-t argument formatting
// ---------------------------------------------------------------------------

func TestFormatTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input time.Duration
		want  string
	}{
		{name: "zero", input: 0, want: "00:00:00.000"},
		{name: "seconds only", input: 45 * time.Second, want: "00:00:45.000"},
		{name: "with milliseconds", input: 90*time.Second + 500*time.Millisecond, want: "00:01:30.500"},
		{name: "with hours", input: 2*time.Hour + 5*time.Minute + 3*time.Second, want: "02:05:03.000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := media.FormatTime(tt.input)
			if got != tt.want {
				t.Errorf("FormatTime(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// FFmpeg.Probe - Duration probing via mocked runner
// ---------------------------------------------------------------------------

func TestFFmpeg_Probe(t *testing.T) {
	t.Parallel()

	t.Run("parses duration from stderr", func(t *testing.T) {
		t.Parallel()

		mockCmd := &mockCommandRunner{
			outputFunc: func(ctx context.Context, name string, args []string) ([]byte, error) {
				return []byte("Duration: 00:10:50.00, start: 0.000000"), nil
			},
		}

		f, err := media.NewFFmpeg("/usr/bin/ffmpeg", media.WithCommandRunner(mockCmd))
		if err != nil {
			t.Fatalf("NewFFmpeg() error = %v", err)
		}

		got, err := f.Probe(context.Background(), "/fake/input.mp4")
		if err != nil {
			t.Fatalf("Probe() error = %v", err)
		}
		if want := 10*time.Minute + 50*time.Second; got != want {
			t.Errorf("Probe() = %v, want %v", got, want)
		}
	})

	t.Run("tolerates non-zero exit with parsable output", func(t *testing.T) {
		t.Parallel()

		mockCmd := &mockCommandRunner{
			outputFunc: func(ctx context.Context, name string, args []string) ([]byte, error) {
				// FFmpeg exits non-zero for "-f null -" on some builds.
				return []byte("Duration: 00:01:00.00"), errors.New("exit status 1")
			},
		}

		f, _ := media.NewFFmpeg("/usr/bin/ffmpeg", media.WithCommandRunner(mockCmd))
		got, err := f.Probe(context.Background(), "/fake/input.mp4")
		if err != nil {
			t.Fatalf("Probe() error = %v", err)
		}
		if got != time.Minute {
			t.Errorf("Probe() = %v, want %v", got, time.Minute)
		}
	})

	t.Run("empty output with error is a probe failure", func(t *testing.T) {
		t.Parallel()

		mockCmd := &mockCommandRunner{
			outputFunc: func(ctx context.Context, name string, args []string) ([]byte, error) {
				return nil, errors.New("no such file")
			},
		}

		f, _ := media.NewFFmpeg("/usr/bin/ffmpeg", media.WithCommandRunner(mockCmd))
		_, err := f.Probe(context.Background(), "/missing.mp4")
		if !errors.Is(err, media.ErrProbeFailed) {
			t.Errorf("Probe() error = %v, want ErrProbeFailed", err)
		}
	})

	t.Run("unparsable output is a probe failure", func(t *testing.T) {
		t.Parallel()

		mockCmd := &mockCommandRunner{
			outputFunc: func(ctx context.Context, name string, args []string) ([]byte, error) {
				return []byte("garbage with no duration"), nil
			},
		}

		f, _ := media.NewFFmpeg("/usr/bin/ffmpeg", media.WithCommandRunner(mockCmd))
		_, err := f.Probe(context.Background(), "/fake/input.mp4")
		if !errors.Is(err, media.ErrProbeFailed) {
			t.Errorf("Probe() error = %v, want ErrProbeFailed", err)
		}
	})
}

// ---------------------------------------------------------------------------
// FFmpeg.ExtractClip / ExtractAudio - Argument construction and error wrapping
// ---------------------------------------------------------------------------

func TestFFmpeg_ExtractClip(t *testing.T) {
	t.Parallel()

	t.Run("builds stream copy arguments", func(t *testing.T) {
		t.Parallel()

		mockCmd := &mockCommandRunner{}
		f, _ := media.NewFFmpeg("/usr/bin/ffmpeg", media.WithCommandRunner(mockCmd))

		err := f.ExtractClip(context.Background(), "/in.mp4", "/out/chunk_000.mp4",
			5*time.Minute, 30*time.Second)
		if err != nil {
			t.Fatalf("ExtractClip() error = %v", err)
		}

		if len(mockCmd.calls) != 1 {
			t.Fatalf("expected 1 ffmpeg call, got %d", len(mockCmd.calls))
		}
		args := mockCmd.calls[0].args
		for _, want := range []string{"-ss", "00:05:00.000", "-t", "00:00:30.000", "-c", "copy", "/out/chunk_000.mp4"} {
			if !contains(args, want) {
				t.Errorf("ExtractClip() args missing %q: %v", want, args)
			}
		}
	})

	t.Run("wraps failure as ErrTranscodeFailed", func(t *testing.T) {
		t.Parallel()

		mockCmd := &mockCommandRunner{
			outputFunc: func(ctx context.Context, name string, args []string) ([]byte, error) {
				return []byte("Invalid data found"), errors.New("exit status 1")
			},
		}
		f, _ := media.NewFFmpeg("/usr/bin/ffmpeg", media.WithCommandRunner(mockCmd))

		err := f.ExtractClip(context.Background(), "/in.mp4", "/out.mp4", 0, time.Minute)
		if !errors.Is(err, media.ErrTranscodeFailed) {
			t.Errorf("ExtractClip() error = %v, want ErrTranscodeFailed", err)
		}
	})
}

func TestFFmpeg_ExtractAudio(t *testing.T) {
	t.Parallel()

	t.Run("builds mono 16kHz wav arguments", func(t *testing.T) {
		t.Parallel()

		mockCmd := &mockCommandRunner{}
		f, _ := media.NewFFmpeg("/usr/bin/ffmpeg", media.WithCommandRunner(mockCmd))

		err := f.ExtractAudio(context.Background(), "/chunk_001.mp4", "/chunk_001.wav")
		if err != nil {
			t.Fatalf("ExtractAudio() error = %v", err)
		}

		args := mockCmd.calls[0].args
		for _, want := range []string{"-vn", "-ac", "1", "-ar", "16000", "-f", "wav", "/chunk_001.wav"} {
			if !contains(args, want) {
				t.Errorf("ExtractAudio() args missing %q: %v", want, args)
			}
		}
	})

	t.Run("wraps failure as ErrTranscodeFailed", func(t *testing.T) {
		t.Parallel()

		mockCmd := &mockCommandRunner{
			outputFunc: func(ctx context.Context, name string, args []string) ([]byte, error) {
				return []byte("stream not found"), errors.New("exit status 1")
			},
		}
		f, _ := media.NewFFmpeg("/usr/bin/ffmpeg", media.WithCommandRunner(mockCmd))

		err := f.ExtractAudio(context.Background(), "/in.mp4", "/out.wav")
		if !errors.Is(err, media.ErrTranscodeFailed) {
			t.Errorf("ExtractAudio() error = %v, want ErrTranscodeFailed", err)
		}
	})
}

// ---------------------------------------------------------------------------
// Mocks for testing
// ---------------------------------------------------------------------------

type mockCommandRunner struct {
	outputFunc func(ctx context.Context, name string, args []string) ([]byte, error)
	calls      []mockCall
}

type mockCall struct {
	name string
	args []string
}

func (m *mockCommandRunner) CombinedOutput(ctx context.Context, name string, args []string) ([]byte, error) {
	m.calls = append(m.calls, mockCall{name: name, args: args})
	if m.outputFunc != nil {
		return m.outputFunc(ctx, name, args)
	}
	return nil, nil
}

func contains(slice []string, s string) bool {
	for _, item := range slice {
		if item == s {
			return true
		}
	}
	return false
}
