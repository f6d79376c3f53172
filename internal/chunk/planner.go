// Package chunk plans and extracts time-bounded slices of a media file so
// they can be transcribed independently. Planning is pure arithmetic over
// the source duration; extraction materializes each planned slice as its
// own file through the external transcoder.
package chunk

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/scribeline/scribeline/internal/format"
)

// Chunk length policy. Operator-configured lengths are clamped to
// [MinLength, MaxLength]; media at the duration extremes is further
// capped so short files still split into enough chunks to parallelize
// and very long files do not produce oversized model inputs.
const (
	// DefaultLength is the chunk length used when none is configured.
	DefaultLength = 5 * time.Minute

	// MinLength is the smallest accepted configured chunk length.
	MinLength = 1 * time.Minute

	// MaxLength is the largest accepted configured chunk length.
	MaxLength = 10 * time.Minute

	// shortThreshold marks media short enough to cap chunks at shortCap.
	shortThreshold = 10 * time.Minute
	shortCap       = 3 * time.Minute

	// longThreshold marks media long enough to cap chunks at longCap.
	longThreshold = 60 * time.Minute
	longCap       = 7 * time.Minute
)

// fallbackExt is used when the source path has no extension.
const fallbackExt = ".mp4"

// Spec describes one planned chunk of the source media.
type Spec struct {
	Index      int           // Zero-based index for ordering.
	Start      time.Duration // Start timestamp in the source media.
	Duration   time.Duration // Length of this chunk.
	OutputPath string        // Where the extracted chunk file is written.
}

// End returns the end timestamp of this chunk in the source media.
func (s Spec) End() time.Duration {
	return s.Start + s.Duration
}

// String returns a human-readable representation for logging.
func (s Spec) String() string {
	return fmt.Sprintf("chunk %d: %s-%s",
		s.Index,
		format.Duration(s.Start),
		format.Duration(s.End()))
}

// EffectiveLength resolves the chunk length for a source of the given
// total duration. A non-positive configured length falls back to
// DefaultLength; the result is always within [MinLength, MaxLength].
func EffectiveLength(total, configured time.Duration) time.Duration {
	if configured <= 0 {
		configured = DefaultLength
	}
	configured = min(max(configured, MinLength), MaxLength)

	switch {
	case total < shortThreshold:
		return min(configured, shortCap)
	case total > longThreshold:
		return min(configured, longCap)
	default:
		return configured
	}
}

// Plan computes the ordered chunk specs for a source of the given total
// duration. Chunks are contiguous, non-overlapping, and cover [0, total)
// exactly; the final chunk is truncated to the remainder. Chunk files
// are named chunk_NNN under dir with the source's extension.
//
// Plan performs no I/O. A non-positive total returns ErrDurationUnknown.
func Plan(total, configured time.Duration, src, dir string) ([]Spec, error) {
	if total <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrDurationUnknown, total)
	}

	ext := filepath.Ext(src)
	if ext == "" {
		ext = fallbackExt
	}

	effective := EffectiveLength(total, configured)
	count := int((total + effective - 1) / effective)

	specs := make([]Spec, 0, count)
	for i := range count {
		start := time.Duration(i) * effective
		specs = append(specs, Spec{
			Index:      i,
			Start:      start,
			Duration:   min(effective, total-start),
			OutputPath: filepath.Join(dir, fmt.Sprintf("chunk_%03d%s", i, ext)),
		})
	}

	return specs, nil
}
