package progress

import (
	"github.com/rs/zerolog"
)

// Observer receives a snapshot after every session mutation. Emissions
// are best-effort: a returned error is logged and counted by the
// tracker, never propagated to the pipeline.
type Observer interface {
	// Name labels the observer in logs and metrics.
	Name() string
	Emit(snap Snapshot) error
}

// LogObserver writes every snapshot as a structured log line.
type LogObserver struct {
	log zerolog.Logger
}

var _ Observer = (*LogObserver)(nil)

func NewLogObserver(log zerolog.Logger) *LogObserver {
	return &LogObserver{log: log}
}

func (o *LogObserver) Name() string { return "log" }

func (o *LogObserver) Emit(snap Snapshot) error {
	o.log.Info().
		Str("session_id", snap.SessionID).
		Str("status", string(snap.Status)).
		Str("stage", string(snap.Stage)).
		Float64("progress", snap.Progress).
		Int("chunks_completed", snap.ChunksCompleted).
		Int("chunks_total", snap.ChunksTotal).
		Dur("eta", snap.EstimatedTimeRemaining).
		Str("detail", snap.Message).
		Msg("session progress")
	return nil
}
