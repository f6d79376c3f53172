// Package progress tracks per-session pipeline state and fans every
// mutation out to observers as immutable snapshots. Sessions are sharded:
// the tracker map and each session carry their own lock, and no lock is
// held across an observer emission, so a slow observer can delay only the
// caller that mutated, never sibling sessions.
package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/scribeline/scribeline/internal/logging"
	"github.com/scribeline/scribeline/internal/metrics"
)

// Status is the coarse lifecycle state of a session.
type Status string

const (
	StatusStarting   Status = "starting"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Stage names the pipeline phase a session is in. Stages only move
// forward; Complete is the sole path into the two terminal stages.
type Stage string

const (
	StageInitialization Stage = "initialization"
	StageAnalysis       Stage = "analysis"
	StagePreparation    Stage = "preparation"
	StageTranscription  Stage = "transcription"
	StagePostProcessing Stage = "post_processing"
	StageFinalization   Stage = "finalization"
	StageCompleted      Stage = "completed"
	StageError          Stage = "error"
)

var stageRank = map[Stage]int{
	StageInitialization: 0,
	StageAnalysis:       1,
	StagePreparation:    2,
	StageTranscription:  3,
	StagePostProcessing: 4,
	StageFinalization:   5,
	StageCompleted:      6,
	StageError:          7,
}

// Snapshot is an immutable copy of one session's state, shaped for event
// payloads.
type Snapshot struct {
	SessionID              string        `json:"session_id"`
	Status                 Status        `json:"status"`
	Stage                  Stage         `json:"stage"`
	Progress               float64       `json:"progress"`
	ChunksTotal            int           `json:"chunks_total"`
	ChunksCompleted        int           `json:"chunks_completed"`
	MediaDuration          time.Duration `json:"media_duration"`
	StartTime              time.Time     `json:"start_time"`
	EstimatedTimeRemaining time.Duration `json:"estimated_time_remaining"`
	Message                string        `json:"message,omitempty"`
}

// Terminal reports whether the session has been sealed.
func (s Snapshot) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusError
}

type session struct {
	mu   sync.Mutex
	snap Snapshot
}

// Tracker holds the live sessions.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]*session

	observers []Observer
	now       func() time.Time
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithObservers registers snapshot observers. Nil entries are skipped.
func WithObservers(obs ...Observer) TrackerOption {
	return func(t *Tracker) {
		for _, o := range obs {
			if o != nil {
				t.observers = append(t.observers, o)
			}
		}
	}
}

// WithNowFunc overrides the clock used for elapsed-time estimates.
func WithNowFunc(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithTrackerLogger overrides the default logger.
func WithTrackerLogger(log zerolog.Logger) TrackerOption {
	return func(t *Tracker) {
		t.log = log
	}
}

// NewTracker returns an empty tracker.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		sessions: make(map[string]*session),
		now:      time.Now,
		log:      logging.WithComponent("progress"),
		metrics:  metrics.DefaultMetrics,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StartSession registers a new session in the starting state and emits
// its first snapshot.
func (t *Tracker) StartSession(id string, totalChunks int, mediaDuration time.Duration) error {
	snap := Snapshot{
		SessionID:     id,
		Status:        StatusStarting,
		Stage:         StageInitialization,
		ChunksTotal:   max(totalChunks, 0),
		MediaDuration: mediaDuration,
		StartTime:     t.now(),
	}

	t.mu.Lock()
	if _, ok := t.sessions[id]; ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrSessionExists, id)
	}
	t.sessions[id] = &session{snap: snap}
	t.mu.Unlock()

	t.emit(snap)
	return nil
}

// SetPlan records the chunk total and media duration once planning has
// produced them. Stage and progress are left alone.
func (t *Tracker) SetPlan(id string, totalChunks int, mediaDuration time.Duration) error {
	return t.mutate(id, func(snap *Snapshot) {
		snap.ChunksTotal = max(totalChunks, 0)
		snap.MediaDuration = mediaDuration
	})
}

// Advance moves the session to stage with the given overall progress.
// Stages never move backward: a stale stage keeps the current one while
// progress and message still apply. The first advance promotes the
// status from starting to processing.
func (t *Tracker) Advance(id string, stage Stage, percent float64, message string) error {
	return t.mutate(id, func(snap *Snapshot) {
		if stageRank[stage] > stageRank[snap.Stage] {
			snap.Stage = stage
		}
		snap.Progress = clampPercent(percent)
		snap.Message = message
	})
}

// UpdateChunks records chunk completion during transcription. The first
// fifth of the bar is reserved for setup and the final tenth for
// analysis and finalization, so chunk completion sweeps 20 to 90.
func (t *Tracker) UpdateChunks(id string, done, total int, label string) error {
	return t.mutate(id, func(snap *Snapshot) {
		if total > 0 {
			snap.Progress = clampPercent(20 + 70*float64(done)/float64(total))
		}
		snap.ChunksCompleted = done
		snap.ChunksTotal = total
		if stageRank[StageTranscription] > stageRank[snap.Stage] {
			snap.Stage = StageTranscription
		}
		snap.Message = label
	})
}

// Complete seals the session. A nil err completes it at full progress;
// otherwise the session ends in the error state carrying message, or the
// error text when message is empty. This is the only path to a terminal
// state; later mutations return ErrSessionDone.
func (t *Tracker) Complete(id string, err error, message string) error {
	return t.mutate(id, func(snap *Snapshot) {
		if err != nil {
			if message == "" {
				message = err.Error()
			}
			snap.Status = StatusError
			snap.Stage = StageError
			snap.Message = message
			return
		}
		snap.Status = StatusCompleted
		snap.Stage = StageCompleted
		snap.Progress = 100
		snap.Message = message
	})
}

// Snapshot returns a copy of the session's current state.
func (t *Tracker) Snapshot(id string) (Snapshot, error) {
	t.mu.RLock()
	s, ok := t.sessions[id]
	t.mu.RUnlock()
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownSession, id)
	}

	s.mu.Lock()
	snap := s.snap
	s.mu.Unlock()
	return snap, nil
}

// Forget drops a session. Meant for callers that have consumed the
// terminal snapshot; forgetting keeps the map bounded across runs.
func (t *Tracker) Forget(id string) {
	t.mu.Lock()
	delete(t.sessions, id)
	t.mu.Unlock()
}

// mutate applies one state merge under the session lock, then emits the
// resulting snapshot with no locks held.
func (t *Tracker) mutate(id string, apply func(*Snapshot)) error {
	t.mu.RLock()
	s, ok := t.sessions[id]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSession, id)
	}

	s.mu.Lock()
	if s.snap.Terminal() {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrSessionDone, id)
	}
	apply(&s.snap)
	// Any mutation on a live session means work is underway.
	if s.snap.Status == StatusStarting {
		s.snap.Status = StatusProcessing
	}
	t.refreshETA(&s.snap)
	snap := s.snap
	s.mu.Unlock()

	t.emit(snap)
	return nil
}

// refreshETA recomputes the linear remaining-time estimate. Meaningful
// only while progress is strictly between the endpoints of a live run.
func (t *Tracker) refreshETA(snap *Snapshot) {
	if snap.Terminal() || snap.Progress <= 0 || snap.Progress >= 100 {
		snap.EstimatedTimeRemaining = 0
		return
	}
	elapsed := t.now().Sub(snap.StartTime)
	snap.EstimatedTimeRemaining = time.Duration(float64(elapsed) * (100 - snap.Progress) / snap.Progress)
}

// emit fans the snapshot out synchronously and best-effort: observer
// errors are counted and logged, never returned.
func (t *Tracker) emit(snap Snapshot) {
	for _, obs := range t.observers {
		err := obs.Emit(snap)
		t.metrics.RecordEventPublish(obs.Name(), err)
		if err != nil {
			t.log.Warn().
				Err(err).
				Str("observer", obs.Name()).
				Str("session_id", snap.SessionID).
				Msg("progress emission failed")
		}
	}
}

func clampPercent(p float64) float64 {
	return min(max(p, 0), 100)
}
