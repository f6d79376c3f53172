// Package cli wires the transcription pipeline into cobra commands.
//
// Commands receive their dependencies through Env, which defaults to
// real implementations and swaps to fakes in tests.
package cli

import (
	"io"
	"os"

	"github.com/scribeline/scribeline/internal/config"
	"github.com/scribeline/scribeline/internal/media"
	"github.com/scribeline/scribeline/internal/memory"
	"github.com/scribeline/scribeline/internal/transcribe/stt"
)

// EnvOpenAIAPIKey is the environment variable holding the OpenAI API key.
const EnvOpenAIAPIKey = "OPENAI_API_KEY"

// ConfigLoader loads persisted configuration.
type ConfigLoader interface {
	Load() (config.Config, error)
}

// MediaToolchain resolves ffmpeg and hands back its probing and
// extraction faces. Both are usually the same *media.FFmpeg.
type MediaToolchain interface {
	Tools() (media.Prober, media.Transcoder, error)
}

// ModelFactory builds speech-to-text model factories by backend name.
type ModelFactory interface {
	NewFactory(backend, apiKey string) (stt.Factory, error)
}

// Env holds all dependencies CLI commands need.
// This is the central injection point for testing commands in isolation.
type Env struct {
	// Stderr receives status and warning messages. Results go to stdout.
	Stderr io.Writer

	// Getenv reads environment variables.
	Getenv func(string) string

	ConfigLoader ConfigLoader
	Media        MediaToolchain
	Models       ModelFactory
	Telemetry    memory.Telemetry
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStderr overrides where status messages are written.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) { e.Stderr = w }
}

// WithGetenv overrides environment variable lookup.
func WithGetenv(fn func(string) string) EnvOption {
	return func(e *Env) { e.Getenv = fn }
}

// WithConfigLoader overrides configuration loading.
func WithConfigLoader(l ConfigLoader) EnvOption {
	return func(e *Env) { e.ConfigLoader = l }
}

// WithMediaToolchain overrides ffmpeg resolution.
func WithMediaToolchain(m MediaToolchain) EnvOption {
	return func(e *Env) { e.Media = m }
}

// WithModelFactory overrides speech-to-text model construction.
func WithModelFactory(f ModelFactory) EnvOption {
	return func(e *Env) { e.Models = f }
}

// WithTelemetry overrides system memory telemetry.
func WithTelemetry(t memory.Telemetry) EnvOption {
	return func(e *Env) { e.Telemetry = t }
}

// DefaultEnv returns an Env wired to the real world.
func DefaultEnv() *Env {
	return NewEnv()
}

// NewEnv builds an Env with production defaults, then applies options.
func NewEnv(opts ...EnvOption) *Env {
	env := &Env{
		Stderr:       os.Stderr,
		Getenv:       os.Getenv,
		ConfigLoader: defaultConfigLoader{},
		Media:        defaultMediaToolchain{},
		Models:       defaultModelFactory{},
		Telemetry:    memory.NewSystemTelemetry(),
	}

	for _, opt := range opts {
		opt(env)
	}

	return env
}

type defaultConfigLoader struct{}

func (defaultConfigLoader) Load() (config.Config, error) {
	return config.Load()
}

type defaultMediaToolchain struct{}

func (defaultMediaToolchain) Tools() (media.Prober, media.Transcoder, error) {
	bin, err := media.Resolve()
	if err != nil {
		return nil, nil, err
	}

	ff, err := media.NewFFmpeg(bin)
	if err != nil {
		return nil, nil, err
	}

	return ff, ff, nil
}

type defaultModelFactory struct{}

func (defaultModelFactory) NewFactory(backend, apiKey string) (stt.Factory, error) {
	return stt.NewFactory(backend, apiKey)
}

// Compile-time interface checks.
var (
	_ ConfigLoader   = (*defaultConfigLoader)(nil)
	_ MediaToolchain = (*defaultMediaToolchain)(nil)
	_ ModelFactory   = (*defaultModelFactory)(nil)
)
