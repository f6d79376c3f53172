package merge

import "errors"

// ErrMalformedSegment indicates a segment with impossible timing. Such
// data would corrupt the chronological ordering guarantee, so the whole
// merge is rejected.
var ErrMalformedSegment = errors.New("malformed segment")
