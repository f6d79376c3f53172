package progress

import "errors"

// ErrUnknownSession indicates the session id was never started or has
// been forgotten.
var ErrUnknownSession = errors.New("unknown session")

// ErrSessionExists indicates a session with the same id is already live.
var ErrSessionExists = errors.New("session already exists")

// ErrSessionDone indicates a mutation arrived after the session reached
// a terminal state.
var ErrSessionDone = errors.New("session already completed")
