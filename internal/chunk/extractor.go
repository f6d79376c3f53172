package chunk

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/scribeline/scribeline/internal/artifact"
	"github.com/scribeline/scribeline/internal/logging"
	"github.com/scribeline/scribeline/internal/media"
	"github.com/scribeline/scribeline/internal/metrics"
)

// DefaultExtractConcurrency bounds the extraction pool. Extraction is
// I/O-bound, so this may exceed the CPU-bound transcription pool size.
const DefaultExtractConcurrency = 4

// ProgressFunc is called after each extraction resolves, successfully
// or not. resolved counts both outcomes; total is the planned count.
type ProgressFunc func(resolved, total int)

// Extractor materializes planned chunks as independent media files on a
// bounded worker set. A failing extraction drops its chunk from the
// plan; the survivors are returned in index order once every submitted
// extraction has resolved.
type Extractor struct {
	transcoder media.Transcoder
	registry   *artifact.Registry

	concurrency int
	onProgress  ProgressFunc
	log         zerolog.Logger
	metrics     *metrics.Metrics
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithConcurrency overrides the extraction pool bound.
func WithConcurrency(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithProgressFunc sets a callback invoked as extractions resolve.
func WithProgressFunc(fn ProgressFunc) ExtractorOption {
	return func(e *Extractor) {
		e.onProgress = fn
	}
}

// WithExtractorLogger overrides the extractor logger.
func WithExtractorLogger(log zerolog.Logger) ExtractorOption {
	return func(e *Extractor) {
		e.log = log
	}
}

// NewExtractor creates an Extractor writing chunk files through transcoder
// and registering them with registry.
func NewExtractor(transcoder media.Transcoder, registry *artifact.Registry, opts ...ExtractorOption) (*Extractor, error) {
	if transcoder == nil {
		return nil, ErrNilTranscoder
	}
	if registry == nil {
		return nil, ErrNilRegistry
	}

	e := &Extractor{
		transcoder:  transcoder,
		registry:    registry,
		concurrency: DefaultExtractConcurrency,
		log:         logging.WithComponent("chunk"),
		metrics:     metrics.DefaultMetrics,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Extract writes one file per spec for the [start, start+duration) slice
// of src, running at most min(concurrency, len(specs)) extractions at
// once. Extract returns only after every submitted extraction has
// resolved; a failed extraction is logged and its spec dropped, so the
// result may cover less of the source than the plan did. Survivors are
// returned in index order.
//
// A canceled context stops new submissions and interrupts in-flight
// extractions; Extract still waits for every started goroutine before
// returning the context error alongside whatever survived.
func (e *Extractor) Extract(ctx context.Context, src string, specs []Spec) ([]Spec, error) {
	if len(specs) == 0 {
		return nil, nil
	}

	// Semaphore channel for concurrency control.
	sem := make(chan struct{}, min(e.concurrency, len(specs)))

	var (
		mu        sync.Mutex
		survivors []Spec
		resolved  int
	)

	g, gctx := errgroup.WithContext(ctx)

	for _, spec := range specs {
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			err := e.transcoder.ExtractClip(gctx, src, spec.OutputPath, spec.Start, spec.Duration)

			mu.Lock()
			resolved++
			done := resolved
			if err != nil {
				e.metrics.RecordChunkDropped("extract_failed")
			} else {
				survivors = append(survivors, spec)
				e.metrics.RecordChunkExtracted()
			}
			mu.Unlock()

			if err != nil {
				// Dropped, not fatal: the transcript will silently omit
				// this time range and the caller surfaces the gap as a
				// partial-coverage warning.
				e.log.Warn().
					Err(err).
					Int("chunk", spec.Index).
					Str("range", spec.String()).
					Msg("extraction failed, dropping chunk")
			} else {
				e.registry.Track(spec.OutputPath, artifact.KindChunk)
				e.log.Debug().
					Int("chunk", spec.Index).
					Str("path", spec.OutputPath).
					Msg("chunk extracted")
			}

			if e.onProgress != nil {
				e.onProgress(done, len(specs))
			}
			return nil
		})
	}

	// Hard barrier: transcription must not start until every extraction
	// has resolved.
	err := g.Wait()

	sort.Slice(survivors, func(i, j int) bool {
		return survivors[i].Index < survivors[j].Index
	})

	if dropped := len(specs) - len(survivors); dropped > 0 {
		e.log.Warn().
			Int("dropped", dropped).
			Int("planned", len(specs)).
			Msg("plan lost chunks to failed extractions")
	}

	return survivors, err
}
