package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/scribeline/scribeline/internal/config"
	"github.com/scribeline/scribeline/internal/media"
	"github.com/scribeline/scribeline/internal/memory"
	"github.com/scribeline/scribeline/internal/transcribe/stt"
)

// ---------------------------------------------------------------------------
// Mock ConfigLoader
// ---------------------------------------------------------------------------

type mockConfigLoader struct {
	LoadFunc func() (config.Config, error)

	mu        sync.Mutex
	loadCalls int
}

func (m *mockConfigLoader) Load() (config.Config, error) {
	m.mu.Lock()
	m.loadCalls++
	m.mu.Unlock()

	if m.LoadFunc != nil {
		return m.LoadFunc()
	}
	return config.Config{}, nil
}

func (m *mockConfigLoader) LoadCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadCalls
}

// ---------------------------------------------------------------------------
// Mock MediaToolchain with fake prober and transcoder
// ---------------------------------------------------------------------------

type mockMediaToolchain struct {
	prober     *fakeProber
	transcoder *fakeTranscoder
	err        error
}

func (m *mockMediaToolchain) Tools() (media.Prober, media.Transcoder, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.prober, m.transcoder, nil
}

// fakeProber reports a fixed duration for any path.
type fakeProber struct {
	duration time.Duration
	err      error

	mu    sync.Mutex
	calls []string
}

func (p *fakeProber) Probe(_ context.Context, path string) (time.Duration, error) {
	p.mu.Lock()
	p.calls = append(p.calls, path)
	p.mu.Unlock()

	if p.err != nil {
		return 0, p.err
	}
	return p.duration, nil
}

func (p *fakeProber) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// fakeTranscoder materializes clip and audio files so the real artifact
// registry has something to track and remove.
type fakeTranscoder struct {
	failClips map[int]error

	mu     sync.Mutex
	clips  int
	audios int
}

func (t *fakeTranscoder) ExtractClip(ctx context.Context, _, dst string, _, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.failClips[chunkIndexFromPath(dst)]; err != nil {
		return err
	}

	t.mu.Lock()
	t.clips++
	t.mu.Unlock()

	return os.WriteFile(dst, []byte("clip"), 0644)
}

func (t *fakeTranscoder) ExtractAudio(ctx context.Context, _, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	t.audios++
	t.mu.Unlock()

	return os.WriteFile(dst, []byte("audio"), 0644)
}

func (t *fakeTranscoder) Clips() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.clips
}

// ---------------------------------------------------------------------------
// Mock ModelFactory with fake model
// ---------------------------------------------------------------------------

type factoryCall struct {
	backend string
	apiKey  string
}

type mockModelFactory struct {
	NewFactoryFunc func(backend, apiKey string) (stt.Factory, error)
	model          *fakeModel

	mu    sync.Mutex
	calls []factoryCall
}

func (m *mockModelFactory) NewFactory(backend, apiKey string) (stt.Factory, error) {
	m.mu.Lock()
	m.calls = append(m.calls, factoryCall{backend: backend, apiKey: apiKey})
	m.mu.Unlock()

	if m.NewFactoryFunc != nil {
		return m.NewFactoryFunc(backend, apiKey)
	}

	model := m.model
	if model == nil {
		model = &fakeModel{text: "the deadline is Friday"}
	}
	return func(context.Context) (stt.Model, error) { return model, nil }, nil
}

func (m *mockModelFactory) Calls() []factoryCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]factoryCall(nil), m.calls...)
}

// fakeModel returns canned text with a single span anchored at zero.
type fakeModel struct {
	text string
	fail map[int]error

	mu    sync.Mutex
	calls int
}

func (m *fakeModel) Transcribe(ctx context.Context, audioPath string, _ stt.Options) (stt.Result, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return stt.Result{}, err
	}
	if err := m.fail[chunkIndexFromPath(audioPath)]; err != nil {
		return stt.Result{}, err
	}

	return stt.Result{
		Text:  m.text,
		Spans: []stt.Span{{Start: 0, End: 4 * time.Second, Text: m.text}},
	}, nil
}

func (m *fakeModel) TranscribeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// ---------------------------------------------------------------------------
// Fake telemetry
// ---------------------------------------------------------------------------

type fakeTelemetry struct {
	snapshot memory.Snapshot
	err      error
}

func (t *fakeTelemetry) Snapshot(context.Context) (memory.Snapshot, error) {
	if t.err != nil {
		return memory.Snapshot{}, t.err
	}
	return t.snapshot, nil
}

// chunkIndexFromPath recovers the index from chunk_NNN file names. Both
// clip and audio paths keep the chunk_NNN stem.
func chunkIndexFromPath(path string) int {
	var idx int
	if _, err := fmt.Sscanf(filepath.Base(path), "chunk_%03d", &idx); err != nil {
		return -1
	}
	return idx
}

// Compile-time interface checks.
var (
	_ ConfigLoader     = (*mockConfigLoader)(nil)
	_ MediaToolchain   = (*mockMediaToolchain)(nil)
	_ ModelFactory     = (*mockModelFactory)(nil)
	_ media.Prober     = (*fakeProber)(nil)
	_ media.Transcoder = (*fakeTranscoder)(nil)
	_ stt.Model        = (*fakeModel)(nil)
	_ memory.Telemetry = (*fakeTelemetry)(nil)
)
