// Package artifact tracks temporary files created during a transcription
// session and bounds how many may exist at once. Chunk clips and extracted
// audio are registered as they are produced; when the registry exceeds its
// cap the oldest entries are evicted and their files deleted, and a final
// cleanup removes whatever remains when the session ends.
package artifact

import (
	"errors"
	"io/fs"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/scribeline/scribeline/internal/logging"
	"github.com/scribeline/scribeline/internal/metrics"
)

// ErrInvalidCap indicates a registry cap below 1.
var ErrInvalidCap = errors.New("registry cap must be at least 1")

// DefaultCap bounds how many tracked files may exist before the oldest
// are evicted.
const DefaultCap = 20

// Kind labels what a tracked file holds.
type Kind string

const (
	// KindChunk is a clipped slice of the source media.
	KindChunk Kind = "chunk"
	// KindAudio is mono fixed-rate audio extracted from a chunk.
	KindAudio Kind = "audio"
)

// Entry records one tracked file.
type Entry struct {
	Path      string
	Kind      Kind
	CreatedAt time.Time
	Size      int64
}

// Registry is a bounded, mutex-guarded set of temporary files.
// Entries are kept in insertion order, so the head of the slice is
// always the oldest tracked file.
type Registry struct {
	mu      sync.Mutex
	entries []Entry

	cap     int
	files   fileRemover
	statter fileStatter
	now     func() time.Time
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// Option configures a Registry.
type Option func(*Registry)

// WithCap overrides the default entry cap.
func WithCap(n int) Option {
	return func(r *Registry) {
		r.cap = n
	}
}

// WithFileRemover overrides the file remover used for eviction
// and cleanup.
func WithFileRemover(files fileRemover) Option {
	return func(r *Registry) {
		r.files = files
	}
}

// WithFileStatter overrides the statter used to size tracked files.
func WithFileStatter(statter fileStatter) Option {
	return func(r *Registry) {
		r.statter = statter
	}
}

// WithNowFunc overrides the clock.
func WithNowFunc(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithLogger overrides the registry logger.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Registry) {
		r.log = log
	}
}

// NewRegistry creates a Registry with the given options applied.
func NewRegistry(opts ...Option) (*Registry, error) {
	r := &Registry{
		cap:     DefaultCap,
		files:   osFileRemover{},
		statter: osFileStatter{},
		now:     time.Now,
		log:     logging.WithComponent("artifact"),
		metrics: metrics.DefaultMetrics,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cap < 1 {
		return nil, ErrInvalidCap
	}
	return r, nil
}

// EnsureCap raises the cap to at least n entries. It never lowers the
// cap, so a larger configured cap survives; n below the current cap is
// a no-op.
func (r *Registry) EnsureCap(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > r.cap {
		r.cap = n
	}
}

// Track registers a file. The file is stat-ed for its size; a stat
// failure records a zero size rather than rejecting the file, since the
// registry's job is to guarantee deletion, not to account perfectly.
// If tracking pushes the registry over its cap, the oldest entries are
// evicted and their files deleted.
func (r *Registry) Track(path string, kind Kind) {
	var size int64
	if info, err := r.statter.Stat(path); err == nil {
		size = info.Size()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, Entry{
		Path:      path,
		Kind:      kind,
		CreatedAt: r.now(),
		Size:      size,
	})
	r.metrics.RecordArtifactTracked(len(r.entries))

	for len(r.entries) > r.cap {
		oldest := r.entries[0]
		r.entries = r.entries[1:]
		r.metrics.RecordArtifactEvicted()
		r.metrics.RecordArtifactTracked(len(r.entries))
		if err := r.files.Remove(oldest.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			r.log.Warn().Err(err).Str("path", oldest.Path).Msg("failed to delete evicted file")
			continue
		}
		r.metrics.RecordBytesReclaimed(oldest.Size)
	}
}

// Remove deletes a tracked file and drops its entry. Files that are
// already gone are treated as removed. Deletion failures are logged and
// the entry is dropped anyway, leaving the final cleanup nothing to
// retry.
func (r *Registry) Remove(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.Path != path {
			continue
		}
		r.entries = append(r.entries[:i], r.entries[i+1:]...)
		r.metrics.RecordArtifactTracked(len(r.entries))
		if err := r.files.Remove(e.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			r.log.Warn().Err(err).Str("path", e.Path).Msg("failed to delete file")
			return
		}
		r.metrics.RecordBytesReclaimed(e.Size)
		return
	}
}

// Forget drops an entry without touching the file. Used when something
// else owns the file's lifetime from here on.
func (r *Registry) Forget(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.Path == path {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			r.metrics.RecordArtifactTracked(len(r.entries))
			return
		}
	}
}

// CleanupAll deletes every remaining tracked file and reports how many
// bytes were reclaimed. Files already gone reclaim nothing; deletion
// failures are logged as warnings and skipped.
func (r *Registry) CleanupAll() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var reclaimed int64
	for _, e := range r.entries {
		if err := r.files.Remove(e.Path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				r.log.Warn().Err(err).Str("path", e.Path).Msg("failed to delete file during cleanup")
			}
			continue
		}
		reclaimed += e.Size
		r.metrics.RecordBytesReclaimed(e.Size)
	}
	r.entries = nil
	r.metrics.RecordArtifactTracked(0)
	return reclaimed
}

// Len reports how many files are currently tracked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
