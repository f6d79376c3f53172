// Package merge assembles per-chunk transcription results into a single
// chronological transcript. Chunks finish in arbitrary order; ordering is
// imposed here, by an explicit stable sort on chunk start time, never by
// arrival order.
package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scribeline/scribeline/internal/format"
	"github.com/scribeline/scribeline/internal/transcribe"
)

// Merged is the chronological union of the successful chunk results.
type Merged struct {
	// Transcript holds one text block per contributing chunk, each
	// prefixed with a [MM:SS] marker line, joined by blank lines.
	Transcript string

	// Segments is the flat, time-sorted union of all chunk segments.
	Segments []transcribe.Segment

	// TotalWords counts whitespace-separated tokens in Transcript.
	TotalWords int

	// ChunksMerged is the number of successful chunks that contributed.
	ChunksMerged int
}

// Merge combines the successful results into one time-ordered transcript.
// Failed results are skipped; any permutation of the input yields an
// identical Merged value. Segments with negative starts or an end before
// their start return ErrMalformedSegment.
func Merge(results []transcribe.ChunkResult) (Merged, error) {
	ok := make([]transcribe.ChunkResult, 0, len(results))
	for _, res := range results {
		if res.OK() {
			ok = append(ok, res)
		}
	}
	sort.SliceStable(ok, func(i, j int) bool { return ok[i].Start < ok[j].Start })

	blocks := make([]string, 0, len(ok))
	var segments []transcribe.Segment
	for _, res := range ok {
		for _, seg := range res.Segments {
			if err := validateSegment(res.Index, seg); err != nil {
				return Merged{}, err
			}
		}
		segments = append(segments, res.Segments...)

		if text := strings.TrimSpace(res.Text); text != "" {
			blocks = append(blocks, format.Timestamp(res.Start)+"\n"+text)
		}
	}

	// Chunk order already sorts segments between chunks; the stable sort
	// settles overlap at chunk boundaries without reordering ties.
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})

	transcript := strings.Join(blocks, "\n\n")
	return Merged{
		Transcript:   transcript,
		Segments:     segments,
		TotalWords:   len(strings.Fields(transcript)),
		ChunksMerged: len(ok),
	}, nil
}

func validateSegment(chunkIndex int, seg transcribe.Segment) error {
	if seg.Start < 0 {
		return fmt.Errorf("%w: chunk %d segment starts at %v", ErrMalformedSegment, chunkIndex, seg.Start)
	}
	if seg.End < seg.Start {
		return fmt.Errorf("%w: chunk %d segment ends at %v, before its start %v",
			ErrMalformedSegment, chunkIndex, seg.End, seg.Start)
	}
	return nil
}
