// Package transcribe runs the transcription stage: a fixed set of
// workers pulls extracted chunks from a queue, converts each to audio,
// runs it through a speech-to-text model, and reports per-chunk results
// as they complete. Chunk timestamps are rebased to absolute media time
// on the way out.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/scribeline/scribeline/internal/artifact"
	"github.com/scribeline/scribeline/internal/chunk"
	"github.com/scribeline/scribeline/internal/format"
	"github.com/scribeline/scribeline/internal/logging"
	"github.com/scribeline/scribeline/internal/media"
	"github.com/scribeline/scribeline/internal/metrics"
	"github.com/scribeline/scribeline/internal/transcribe/stt"
)

// DefaultWorkers is the pool size when none is configured. Real runs
// size the pool from a fresh memory snapshot instead.
const DefaultWorkers = 1

// ProgressFunc is called after each chunk resolves, successfully or
// not. done counts both outcomes; total is the submitted count.
type ProgressFunc func(done, total int)

// Pool transcribes extracted chunks on a fixed set of workers. Each
// worker builds its own speech-to-text model on its first job and
// reuses it for every chunk it is assigned, so model setup cost is paid
// per worker rather than per chunk.
type Pool struct {
	transcoder media.Transcoder
	factory    stt.Factory
	registry   *artifact.Registry

	workers      int
	chunkTimeout time.Duration
	modelOpts    stt.Options
	backend      string
	onProgress   ProgressFunc
	log          zerolog.Logger
	metrics      *metrics.Metrics
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithWorkers sets the worker count.
func WithWorkers(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithChunkTimeout bounds the processing time of a single chunk. Zero
// means no per-chunk bound; an expired timeout fails that chunk only.
func WithChunkTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.chunkTimeout = d
		}
	}
}

// WithModelOptions sets the language and prompt passed to the model.
func WithModelOptions(opts stt.Options) PoolOption {
	return func(p *Pool) {
		p.modelOpts = opts
	}
}

// WithBackend names the backend for logs and metrics labels.
func WithBackend(name string) PoolOption {
	return func(p *Pool) {
		if name != "" {
			p.backend = name
		}
	}
}

// WithProgressFunc sets a callback invoked as chunks resolve.
func WithProgressFunc(fn ProgressFunc) PoolOption {
	return func(p *Pool) {
		p.onProgress = fn
	}
}

// WithPoolLogger overrides the pool logger.
func WithPoolLogger(log zerolog.Logger) PoolOption {
	return func(p *Pool) {
		p.log = log
	}
}

// NewPool creates a Pool that extracts chunk audio through transcoder
// and transcribes it with models built by factory.
func NewPool(transcoder media.Transcoder, factory stt.Factory, registry *artifact.Registry, opts ...PoolOption) (*Pool, error) {
	if transcoder == nil {
		return nil, ErrNilTranscoder
	}
	if factory == nil {
		return nil, ErrNilFactory
	}
	if registry == nil {
		return nil, ErrNilRegistry
	}

	p := &Pool{
		transcoder: transcoder,
		factory:    factory,
		registry:   registry,
		workers:    DefaultWorkers,
		backend:    "unknown",
		log:        logging.WithComponent("transcribe"),
		metrics:    metrics.DefaultMetrics,
	}
	for _, opt := range opts {
		opt(p)
	}
	// Downstream merge and display need span timing, so word timestamps
	// are always requested regardless of the configured options.
	p.modelOpts.WordTimestamps = true
	return p, nil
}

// Run transcribes specs and returns one ChunkResult per spec, in
// completion order. Failures stay chunk-local: a failed chunk yields a
// result with Err set while the rest continue.
//
// A canceled ctx stops new pickups; chunks never started resolve as
// canceled results, and Run returns only after every in-flight chunk
// has resolved.
func (p *Pool) Run(ctx context.Context, specs []chunk.Spec) []ChunkResult {
	if len(specs) == 0 {
		return nil
	}

	workers := min(p.workers, len(specs))
	jobs := make(chan chunk.Spec)
	out := make(chan ChunkResult)

	var wg sync.WaitGroup
	for id := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.runWorker(ctx, id, jobs, out)
		}()
	}

	// Feeder. Every spec resolves exactly once: through a worker when
	// submitted, or as a canceled result here when ctx ends first.
	go func() {
		defer close(jobs)
		for _, spec := range specs {
			if ctx.Err() != nil {
				out <- p.unstartedResult(spec, ctx.Err())
				continue
			}
			select {
			case jobs <- spec:
			case <-ctx.Done():
				out <- p.unstartedResult(spec, ctx.Err())
			}
		}
	}()

	results := make([]ChunkResult, 0, len(specs))
	for range specs {
		results = append(results, <-out)
		if p.onProgress != nil {
			p.onProgress(len(results), len(specs))
		}
	}
	wg.Wait()

	return results
}

// runWorker processes jobs until the queue closes. The model is built
// lazily on the first job and reused; a failed build fails that chunk
// and is retried on the next one, so at most one live model exists per
// worker.
func (p *Pool) runWorker(ctx context.Context, id int, jobs <-chan chunk.Spec, out chan<- ChunkResult) {
	var model stt.Model
	defer func() {
		closer, ok := model.(io.Closer)
		if !ok {
			return
		}
		if err := closer.Close(); err != nil {
			p.log.Warn().Err(err).Int("worker", id).Msg("closing model")
		}
	}()

	for spec := range jobs {
		if model == nil {
			built, err := p.factory(ctx)
			if err != nil {
				out <- p.failedResult(spec, fmt.Errorf("model init for chunk %d: %w", spec.Index, err), "model_init", 0)
				continue
			}
			model = built
			p.log.Debug().Int("worker", id).Str("backend", p.backend).Msg("model ready")
		}
		out <- p.processChunk(ctx, model, spec)
	}
}

// processChunk extracts the chunk's audio, transcribes it, and rebases
// span timings to absolute media time. The intermediate audio file is
// deleted before returning regardless of the outcome.
func (p *Pool) processChunk(ctx context.Context, model stt.Model, spec chunk.Spec) ChunkResult {
	started := time.Now()

	if p.chunkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.chunkTimeout)
		defer cancel()
	}

	audioPath := audioPathFor(spec.OutputPath)

	// Tracked before ffmpeg writes it so a partial file from a failed
	// extraction still gets deleted.
	p.registry.Track(audioPath, artifact.KindAudio)
	defer p.registry.Remove(audioPath)

	if err := p.transcoder.ExtractAudio(ctx, spec.OutputPath, audioPath); err != nil {
		err = fmt.Errorf("extract audio for chunk %d: %w", spec.Index, err)
		return p.failedResult(spec, err, "audio_extract", time.Since(started))
	}

	modelStart := time.Now()
	res, err := model.Transcribe(ctx, audioPath, p.modelOpts)
	p.metrics.RecordModelCall(p.backend, err, failureReason(err), time.Since(modelStart).Seconds())
	if err != nil {
		err = fmt.Errorf("transcribe chunk %d: %w", spec.Index, err)
		return p.failedResult(spec, err, failureReason(err), time.Since(started))
	}

	result := ChunkResult{
		Index:    spec.Index,
		Start:    spec.Start,
		Text:     strings.TrimSpace(res.Text),
		Segments: make([]Segment, 0, len(res.Spans)),
	}
	for _, span := range res.Spans {
		abs := spec.Start + span.Start
		result.Segments = append(result.Segments, Segment{
			Start:     abs,
			End:       spec.Start + span.End,
			Text:      span.Text,
			Timestamp: format.Timestamp(abs),
		})
	}

	elapsed := time.Since(started)
	p.metrics.RecordChunkResult(nil, "", elapsed.Seconds())
	p.log.Debug().
		Int("chunk", spec.Index).
		Int("segments", len(result.Segments)).
		Dur("elapsed", elapsed).
		Msg("chunk transcribed")
	return result
}

// failedResult records and returns a chunk-local failure.
func (p *Pool) failedResult(spec chunk.Spec, err error, reason string, elapsed time.Duration) ChunkResult {
	p.metrics.RecordChunkResult(err, reason, elapsed.Seconds())
	p.log.Warn().
		Err(err).
		Int("chunk", spec.Index).
		Str("reason", reason).
		Msg("chunk transcription failed")
	return ChunkResult{Index: spec.Index, Start: spec.Start, Err: err}
}

// unstartedResult resolves a spec that was never submitted because the
// run was canceled.
func (p *Pool) unstartedResult(spec chunk.Spec, cause error) ChunkResult {
	err := fmt.Errorf("chunk %d not started: %w", spec.Index, cause)
	p.metrics.RecordChunkResult(err, "canceled", 0)
	p.log.Debug().Int("chunk", spec.Index).Msg("chunk not started, run canceled")
	return ChunkResult{Index: spec.Index, Start: spec.Start, Err: err}
}

// audioPathFor derives the temp WAV path for a chunk file, e.g.
// chunk_003.mp4 -> chunk_003.wav. A chunk that is already a .wav gets a
// distinct suffix so extraction never overwrites its own input.
func audioPathFor(chunkPath string) string {
	base := strings.TrimSuffix(chunkPath, filepath.Ext(chunkPath))
	audio := base + ".wav"
	if audio == chunkPath {
		return base + ".pcm.wav"
	}
	return audio
}

// failureReason classifies a chunk error for metrics labels.
func failureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, stt.ErrRateLimit), errors.Is(err, stt.ErrQuotaExceeded):
		return "rate_limit"
	case errors.Is(err, stt.ErrAuthFailed):
		return "auth"
	case errors.Is(err, media.ErrTranscodeFailed):
		return "audio_extract"
	default:
		return "model"
	}
}
