// Package pipeline orchestrates a full transcription session: probe the
// media, plan and extract chunks, size the worker pool from live
// telemetry, transcribe, merge, and analyze. Progress is reported
// throughout and every temporary file is cleaned up on the way out.
//
// Stage layout and failure policy: extraction is a hard barrier before
// transcription; a failed chunk never aborts the session, but a session
// with nothing left to transcribe does. Sessions that fail end in a
// terminal error progress state and return no partial result.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scribeline/scribeline/internal/analyze"
	"github.com/scribeline/scribeline/internal/artifact"
	"github.com/scribeline/scribeline/internal/chunk"
	"github.com/scribeline/scribeline/internal/format"
	"github.com/scribeline/scribeline/internal/logging"
	"github.com/scribeline/scribeline/internal/media"
	"github.com/scribeline/scribeline/internal/memory"
	"github.com/scribeline/scribeline/internal/merge"
	"github.com/scribeline/scribeline/internal/metrics"
	"github.com/scribeline/scribeline/internal/progress"
	"github.com/scribeline/scribeline/internal/transcribe"
	"github.com/scribeline/scribeline/internal/transcribe/stt"
)

// Config carries the per-session knobs. The zero value is usable with an
// input path: everything else has a working default.
type Config struct {
	// Input is the media file to transcribe.
	Input string

	// WorkDir is where the per-session temp directory is created.
	// Empty means the system temp directory.
	WorkDir string

	// ChunkLength is the configured chunk size before adaptive clamping.
	ChunkLength time.Duration

	// ExtractWorkers caps the extraction pool. Zero means the extractor
	// default.
	ExtractWorkers int

	// Pool bounds the transcription worker sizing formula. The zero
	// value means memory.DefaultPoolConfig.
	Pool memory.PoolConfig

	// ChunkTimeout bounds one chunk's extraction plus transcription.
	// Zero disables the bound.
	ChunkTimeout time.Duration

	// Language is the expected speech language (tag or base code).
	Language string

	// Keywords are scanned for during analysis.
	Keywords []string

	// Backend labels the model backend in logs and metrics.
	Backend string
}

// Deps are the collaborators a Runner orchestrates.
type Deps struct {
	Prober     media.Prober
	Transcoder media.Transcoder
	Factory    stt.Factory
	Telemetry  memory.Telemetry
	Tracker    *progress.Tracker
	Registry   *artifact.Registry
}

func (d Deps) validate() error {
	switch {
	case d.Prober == nil:
		return ErrNilProber
	case d.Transcoder == nil:
		return ErrNilTranscoder
	case d.Factory == nil:
		return ErrNilFactory
	case d.Telemetry == nil:
		return ErrNilTelemetry
	case d.Tracker == nil:
		return ErrNilTracker
	case d.Registry == nil:
		return ErrNilRegistry
	}
	return nil
}

// Result is the outcome of a completed session.
type Result struct {
	SessionID     string
	MediaDuration time.Duration

	Transcript string
	Segments   []transcribe.Segment
	Analysis   analyze.Result

	ChunksPlanned     int
	ChunksTranscribed int
	ChunksDropped     int // lost during extraction
	ChunksFailed      int // lost during transcription

	// Warnings name the time ranges missing from the transcript.
	Warnings []string

	Workers int
	Elapsed time.Duration
}

// Runner runs transcription sessions.
type Runner struct {
	deps Deps

	log     zerolog.Logger
	metrics *metrics.Metrics
	newID   func() string
	tempDir tempDirCreator
	remover treeRemover
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger overrides the default logger.
func WithRunnerLogger(log zerolog.Logger) RunnerOption {
	return func(r *Runner) {
		r.log = log
	}
}

// WithIDFunc overrides session id generation.
func WithIDFunc(fn func() string) RunnerOption {
	return func(r *Runner) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// withTempDirCreator injects the work-dir creator in tests.
func withTempDirCreator(c tempDirCreator) RunnerOption {
	return func(r *Runner) {
		r.tempDir = c
	}
}

// withTreeRemover injects the work-dir remover in tests.
func withTreeRemover(rm treeRemover) RunnerOption {
	return func(r *Runner) {
		r.remover = rm
	}
}

// NewRunner validates the collaborators and builds a Runner.
func NewRunner(deps Deps, opts ...RunnerOption) (*Runner, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		deps:    deps,
		log:     logging.WithComponent("pipeline"),
		metrics: metrics.DefaultMetrics,
		newID:   uuid.NewString,
		tempDir: osTempDirCreator{},
		remover: osTreeRemover{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes one session end to end. Cancel ctx to stop the session:
// no new chunk work is submitted, in-flight work drains, and the session
// ends in the error state. A non-nil Result is returned only for
// sessions that reach the completed state.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.Pool == (memory.PoolConfig{}) {
		cfg.Pool = memory.DefaultPoolConfig()
	}

	id := r.newID()
	log := r.log.With().Str("session_id", id).Logger()
	started := time.Now()

	if err := r.deps.Tracker.StartSession(id, 0, 0); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	defer r.deps.Tracker.Forget(id)
	r.metrics.RecordSessionStart()

	fail := func(err error) (*Result, error) {
		log.Error().Err(err).Msg("session failed")
		if cerr := r.deps.Tracker.Complete(id, err, ""); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to seal session state")
		}
		r.metrics.RecordSessionEnd(false, time.Since(started).Seconds())
		return nil, err
	}

	r.advance(log, id, progress.StageAnalysis, 5, "probing media")
	total, err := r.deps.Prober.Probe(ctx, cfg.Input)
	if err != nil {
		return fail(fmt.Errorf("probe media: %w", err))
	}
	log.Info().Str("input", cfg.Input).Str("duration", format.Duration(total)).Msg("media probed")

	workDir, err := r.tempDir.MkdirTemp(cfg.WorkDir, "scribeline-*")
	if err != nil {
		return fail(fmt.Errorf("create work dir: %w", err))
	}
	defer r.cleanup(log, workDir)

	specs, err := chunk.Plan(total, cfg.ChunkLength, cfg.Input, workDir)
	if err != nil {
		return fail(fmt.Errorf("plan chunks: %w", err))
	}
	r.metrics.RecordChunksPlanned(len(specs))
	// Every extracted chunk must stay on disk until transcription has
	// read it, so the registry cap has to cover the whole plan.
	r.deps.Registry.EnsureCap(len(specs))
	r.setPlan(log, id, len(specs), total)
	log.Info().Int("chunks", len(specs)).Msg("chunk plan ready")

	// Stage 1: bounded I/O extraction. Hard barrier; failed chunks are
	// dropped here and reported as coverage warnings.
	prepStart := time.Now()
	r.advance(log, id, progress.StagePreparation, 10, "extracting chunks")
	survivors, err := r.extract(ctx, log, id, cfg, specs)
	if err != nil {
		return fail(fmt.Errorf("extract chunks: %w", err))
	}
	r.metrics.RecordStage(string(progress.StagePreparation), time.Since(prepStart).Seconds())

	warnings := coverageWarnings(specs, survivors)
	if len(survivors) == 0 {
		return fail(fmt.Errorf("%w: all %d extractions failed", ErrNoChunks, len(specs)))
	}

	// Stage 2: CPU transcription, sized from a fresh snapshot. Memory is
	// volatile between runs, so the snapshot is never reused.
	workers := r.sizeWorkers(ctx, log, cfg.Pool)
	// Each in-flight chunk tracks a temporary audio file alongside the
	// surviving clips.
	r.deps.Registry.EnsureCap(len(survivors) + workers)
	r.advance(log, id, progress.StageTranscription, 20,
		fmt.Sprintf("transcribing %d chunks with %d workers", len(survivors), workers))

	transcribeStart := time.Now()
	results, err := r.transcribe(ctx, log, id, cfg, survivors, workers)
	if err != nil {
		return fail(err)
	}
	r.metrics.RecordStage(string(progress.StageTranscription), time.Since(transcribeStart).Seconds())

	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("session canceled: %w", err))
	}

	failed := 0
	for _, res := range results {
		if res.OK() {
			continue
		}
		failed++
		warnings = append(warnings, omittedWarning(res.Index, survivors, res.Err))
	}
	if failed == len(results) {
		return fail(fmt.Errorf("%w: %d of %d", ErrAllChunksFailed, failed, len(results)))
	}

	finalStart := time.Now()
	r.advance(log, id, progress.StagePostProcessing, 92, "merging chunk results")
	merged, err := merge.Merge(results)
	if err != nil {
		return fail(fmt.Errorf("merge results: %w", err))
	}

	r.advance(log, id, progress.StageFinalization, 97, "analyzing transcript")
	analysis := analyze.Analyze(merged.Transcript, merged.Segments, cfg.Keywords)
	r.metrics.RecordStage(string(progress.StagePostProcessing), time.Since(finalStart).Seconds())

	if err := r.deps.Tracker.Complete(id, nil, "session completed"); err != nil {
		log.Warn().Err(err).Msg("failed to seal session state")
	}
	r.metrics.RecordSessionEnd(true, time.Since(started).Seconds())

	elapsed := time.Since(started)
	log.Info().
		Int("chunks_transcribed", merged.ChunksMerged).
		Int("chunks_failed", failed).
		Int("words", merged.TotalWords).
		Str("elapsed", format.DurationHuman(elapsed)).
		Msg("session completed")

	return &Result{
		SessionID:         id,
		MediaDuration:     total,
		Transcript:        merged.Transcript,
		Segments:          merged.Segments,
		Analysis:          analysis,
		ChunksPlanned:     len(specs),
		ChunksTranscribed: merged.ChunksMerged,
		ChunksDropped:     len(specs) - len(survivors),
		ChunksFailed:      failed,
		Warnings:          warnings,
		Workers:           workers,
		Elapsed:           elapsed,
	}, nil
}

// extract runs the bounded extraction pool, feeding per-resolution
// progress into the preparation band (10-20%).
func (r *Runner) extract(ctx context.Context, log zerolog.Logger, id string, cfg Config, specs []chunk.Spec) ([]chunk.Spec, error) {
	opts := []chunk.ExtractorOption{
		chunk.WithExtractorLogger(log),
		chunk.WithProgressFunc(func(resolved, total int) {
			percent := 10 + 10*float64(resolved)/float64(total)
			r.advance(log, id, progress.StagePreparation, percent,
				fmt.Sprintf("extracted %d/%d chunks", resolved, total))
		}),
	}
	if cfg.ExtractWorkers > 0 {
		opts = append(opts, chunk.WithConcurrency(cfg.ExtractWorkers))
	}

	extractor, err := chunk.NewExtractor(r.deps.Transcoder, r.deps.Registry, opts...)
	if err != nil {
		return nil, err
	}
	return extractor.Extract(ctx, cfg.Input, specs)
}

// sizeWorkers takes a fresh telemetry snapshot and applies the sizing
// formula. Unreadable telemetry degrades to the configured minimum
// instead of failing the session.
func (r *Runner) sizeWorkers(ctx context.Context, log zerolog.Logger, cfg memory.PoolConfig) int {
	snap, err := r.deps.Telemetry.Snapshot(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("telemetry unavailable, using minimum workers")
		snap = memory.Snapshot{}
	}

	workers := memory.Workers(snap, cfg)
	pressure := memory.Pressure(snap, memory.DefaultPressureThreshold)
	if pressure {
		log.Warn().
			Float64("used_percent", snap.UsedPercent).
			Msg("memory pressure high; consider a smaller worker pool")
	}
	r.metrics.RecordWorkerSizing(workers, pressure)

	log.Info().
		Int("workers", workers).
		Float64("available_gb", snap.AvailableGB).
		Int("cpus", snap.CPUCount).
		Msg("worker pool sized")
	return workers
}

func (r *Runner) transcribe(ctx context.Context, log zerolog.Logger, id string, cfg Config, survivors []chunk.Spec, workers int) ([]transcribe.ChunkResult, error) {
	pool, err := transcribe.NewPool(r.deps.Transcoder, r.deps.Factory, r.deps.Registry,
		transcribe.WithWorkers(workers),
		transcribe.WithChunkTimeout(cfg.ChunkTimeout),
		transcribe.WithBackend(cfg.Backend),
		transcribe.WithModelOptions(stt.Options{Language: cfg.Language}),
		transcribe.WithPoolLogger(log),
		transcribe.WithProgressFunc(func(done, total int) {
			r.updateChunks(log, id, done, total)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("build transcription pool: %w", err)
	}
	return pool.Run(ctx, survivors), nil
}

// cleanup deletes every tracked artifact and the session work dir.
// Failures are logged, never raised.
func (r *Runner) cleanup(log zerolog.Logger, workDir string) {
	reclaimed := r.deps.Registry.CleanupAll()
	if err := r.remover.RemoveAll(workDir); err != nil {
		log.Warn().Err(err).Str("dir", workDir).Msg("failed to remove work dir")
	}
	log.Debug().
		Str("dir", workDir).
		Str("reclaimed", format.Size(reclaimed)).
		Msg("session artifacts cleaned")
}

// Progress mutations are advisory; a tracker refusal must never stop
// the pipeline, so failures are only logged.
func (r *Runner) advance(log zerolog.Logger, id string, stage progress.Stage, percent float64, msg string) {
	if err := r.deps.Tracker.Advance(id, stage, percent, msg); err != nil {
		log.Warn().Err(err).Str("stage", string(stage)).Msg("progress update rejected")
	}
}

func (r *Runner) setPlan(log zerolog.Logger, id string, chunks int, total time.Duration) {
	if err := r.deps.Tracker.SetPlan(id, chunks, total); err != nil {
		log.Warn().Err(err).Msg("progress update rejected")
	}
}

func (r *Runner) updateChunks(log zerolog.Logger, id string, done, total int) {
	label := fmt.Sprintf("transcribed %d/%d chunks", done, total)
	if err := r.deps.Tracker.UpdateChunks(id, done, total, label); err != nil {
		log.Warn().Err(err).Msg("progress update rejected")
	}
}

// coverageWarnings names the planned ranges lost during extraction.
func coverageWarnings(specs, survivors []chunk.Spec) []string {
	if len(survivors) == len(specs) {
		return nil
	}
	kept := make(map[int]bool, len(survivors))
	for _, s := range survivors {
		kept[s.Index] = true
	}

	var warnings []string
	for _, spec := range specs {
		if !kept[spec.Index] {
			warnings = append(warnings, fmt.Sprintf("chunk %d (%s-%s) omitted from transcript: extraction failed",
				spec.Index, format.Duration(spec.Start), format.Duration(spec.End())))
		}
	}
	return warnings
}

// omittedWarning names a range lost during transcription.
func omittedWarning(index int, specs []chunk.Spec, err error) string {
	for _, spec := range specs {
		if spec.Index == index {
			return fmt.Sprintf("chunk %d (%s-%s) omitted from transcript: %v",
				index, format.Duration(spec.Start), format.Duration(spec.End()), err)
		}
	}
	return fmt.Sprintf("chunk %d omitted from transcript: %v", index, err)
}
