package transcribe

import "time"

// Segment is one transcribed utterance with absolute media timestamps.
// Start and End are offsets from the beginning of the source media, not
// from the chunk the segment came out of.
type Segment struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Text  string        `json:"text"`

	// Timestamp is the bracketed display form of Start, e.g. "[05:30]"
	// or "[01:05:30]" for media longer than an hour.
	Timestamp string `json:"timestamp"`
}

// ChunkResult is the outcome of transcribing one chunk. A failed chunk
// carries its error in Err and is otherwise empty; chunk failures never
// abort the run.
type ChunkResult struct {
	Index    int
	Start    time.Duration
	Segments []Segment
	Text     string
	Err      error
}

// OK reports whether the chunk transcribed successfully.
func (r ChunkResult) OK() bool {
	return r.Err == nil
}
