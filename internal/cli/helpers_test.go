package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/scribeline/scribeline/internal/memory"
)

// ---------------------------------------------------------------------------
// syncBuffer - thread-safe bytes.Buffer for concurrent command output
// ---------------------------------------------------------------------------

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Compile-time check that syncBuffer implements io.Writer.
var _ io.Writer = (*syncBuffer)(nil)

// ---------------------------------------------------------------------------
// testMocks - convenience struct grouping all Env fakes
// ---------------------------------------------------------------------------

type testMocks struct {
	configLoader *mockConfigLoader
	media        *mockMediaToolchain
	models       *mockModelFactory
	telemetry    *fakeTelemetry
}

// newTestMocks builds fakes for a healthy 650-second media file: three
// adaptive chunks, every extraction and transcription succeeding, and
// enough free memory for four workers.
func newTestMocks() *testMocks {
	return &testMocks{
		configLoader: &mockConfigLoader{},
		media: &mockMediaToolchain{
			prober:     &fakeProber{duration: 650 * time.Second},
			transcoder: &fakeTranscoder{},
		},
		models: &mockModelFactory{},
		telemetry: &fakeTelemetry{
			snapshot: memory.Snapshot{
				TotalGB:     16,
				AvailableGB: 12,
				UsedPercent: 40,
				CPUCount:    4,
			},
		},
	}
}

// ---------------------------------------------------------------------------
// testEnv - fully mocked Env
// ---------------------------------------------------------------------------

// testEnv creates an Env with every dependency faked. Returns the Env,
// its stderr buffer and the mocks for assertions.
func testEnv(opts ...EnvOption) (*Env, *syncBuffer, *testMocks) {
	stderr := &syncBuffer{}
	mocks := newTestMocks()

	base := []EnvOption{
		WithStderr(stderr),
		WithGetenv(defaultTestEnv),
		WithConfigLoader(mocks.configLoader),
		WithMediaToolchain(mocks.media),
		WithModelFactory(mocks.models),
		WithTelemetry(mocks.telemetry),
	}

	env := NewEnv(append(base, opts...)...)
	return env, stderr, mocks
}

// staticEnv returns a getenv function backed by the given map.
func staticEnv(vars map[string]string) func(string) string {
	return func(key string) string {
		return vars[key]
	}
}

// defaultTestEnv provides an OpenAI key so the default backend validates.
func defaultTestEnv(key string) string {
	if key == EnvOpenAIAPIKey {
		return "test-openai-key"
	}
	return ""
}

// ---------------------------------------------------------------------------
// File and command helpers
// ---------------------------------------------------------------------------

// createTestMediaFile creates a small fake media file and returns its
// path. The file lives in a per-test temp dir.
func createTestMediaFile(t *testing.T, name string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("fake media content"), 0644); err != nil {
		t.Fatalf("failed to create test media file: %v", err)
	}
	return path
}

// executeCommand runs a cobra command with the given args and returns
// its captured stdout.
func executeCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// mustContain fails the test when output lacks the wanted substring.
func mustContain(t *testing.T, output, want string) {
	t.Helper()

	if !strings.Contains(output, want) {
		t.Errorf("output missing %q:\n%s", want, output)
	}
}
