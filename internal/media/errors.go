package media

import "errors"

// ErrBinaryNotFound indicates the ffmpeg binary could not be located.
var ErrBinaryNotFound = errors.New("ffmpeg binary not found")

// ErrProbeFailed indicates the media duration could not be determined.
var ErrProbeFailed = errors.New("media probe failed")

// ErrTranscodeFailed indicates ffmpeg failed while extracting a clip or audio stream.
var ErrTranscodeFailed = errors.New("transcode failed")
