// Package media wraps ffmpeg for duration probing and chunk/audio extraction.
package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"time"
)

// Prober returns the total duration of a media file.
type Prober interface {
	// Probe returns the duration of the media at path.
	Probe(ctx context.Context, path string) (time.Duration, error)
}

// Transcoder extracts time-bounded clips and speech-ready audio streams.
type Transcoder interface {
	// ExtractClip writes the [start, start+length) slice of src to dst
	// using stream copy, preserving the source encoding.
	ExtractClip(ctx context.Context, src, dst string, start, length time.Duration) error

	// ExtractAudio writes a mono 16kHz WAV rendition of src to dst,
	// the input format expected by speech-to-text models.
	ExtractAudio(ctx context.Context, src, dst string) error
}

// Compile-time interface implementation checks.
var (
	_ Prober     = (*FFmpeg)(nil)
	_ Transcoder = (*FFmpeg)(nil)
)

// Environment variable for a custom ffmpeg path.
const envFFmpegPath = "FFMPEG_PATH"

// Resolve locates the ffmpeg binary.
// Checks FFMPEG_PATH first, then the system PATH.
func Resolve() (string, error) {
	if p := os.Getenv(envFFmpegPath); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("%w: %s=%s: %v", ErrBinaryNotFound, envFFmpegPath, p, err)
		}
		return p, nil
	}

	p, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", fmt.Errorf("%w: install ffmpeg or set %s", ErrBinaryNotFound, envFFmpegPath)
	}
	return p, nil
}

// FFmpeg probes and transcodes media by shelling out to an ffmpeg binary.
type FFmpeg struct {
	binPath string

	// Injectable dependency (defaults to the OS implementation).
	cmd commandRunner
}

// Option configures an FFmpeg.
type Option func(*FFmpeg)

// WithCommandRunner sets the command runner (for testing).
func WithCommandRunner(r commandRunner) Option {
	return func(f *FFmpeg) {
		f.cmd = r
	}
}

// NewFFmpeg creates an FFmpeg wrapper around the binary at binPath.
func NewFFmpeg(binPath string, opts ...Option) (*FFmpeg, error) {
	if binPath == "" {
		return nil, fmt.Errorf("binPath cannot be empty: %w", ErrBinaryNotFound)
	}

	f := &FFmpeg{
		binPath: binPath,
		cmd:     osCommandRunner{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Probe returns the duration of the media at path.
// Uses ffmpeg rather than ffprobe, which may not be installed alongside it.
func (f *FFmpeg) Probe(ctx context.Context, path string) (time.Duration, error) {
	args := []string{
		"-i", path,
		"-f", "null", "-",
	}
	output, err := f.cmd.CombinedOutput(ctx, f.binPath, args)
	if err != nil {
		// FFmpeg returns non-zero even when it successfully reads file info,
		// so try to parse the output anyway.
		if len(output) == 0 {
			return 0, fmt.Errorf("%w: %v", ErrProbeFailed, err)
		}
	}

	d, err := parseDurationFromOutput(string(output))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	return d, nil
}

// ExtractClip writes the [start, start+length) slice of src to dst using stream copy.
func (f *FFmpeg) ExtractClip(ctx context.Context, src, dst string, start, length time.Duration) error {
	args := []string{
		"-y",
		"-i", src,
		"-ss", formatTime(start),
		"-t", formatTime(length),
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		dst,
	}

	output, err := f.cmd.CombinedOutput(ctx, f.binPath, args)
	if err != nil {
		return fmt.Errorf("%w: clip %s: %v\nOutput: %s",
			ErrTranscodeFailed, dst, err, string(output))
	}
	return nil
}

// ExtractAudio writes a mono 16kHz WAV rendition of src to dst.
func (f *FFmpeg) ExtractAudio(ctx context.Context, src, dst string) error {
	args := []string{
		"-y",
		"-i", src,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		dst,
	}

	output, err := f.cmd.CombinedOutput(ctx, f.binPath, args)
	if err != nil {
		return fmt.Errorf("%w: audio %s: %v\nOutput: %s",
			ErrTranscodeFailed, dst, err, string(output))
	}
	return nil
}

// parseDurationFromOutput extracts duration from FFmpeg stderr.
// Looks for: "Duration: HH:MM:SS.ms" or "time=HH:MM:SS.ms"
func parseDurationFromOutput(output string) (time.Duration, error) {
	// Pattern: Duration: 00:05:23.45
	durationRe := regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)
	if matches := durationRe.FindStringSubmatch(output); matches != nil {
		return parseTimeComponents(matches[1], matches[2], matches[3], matches[4])
	}

	// Fallback pattern: time=00:05:23.45 (from progress output)
	timeRe := regexp.MustCompile(`time=(\d+):(\d+):(\d+)\.(\d+)`)
	// Find all matches and use the last one (final time).
	allMatches := timeRe.FindAllStringSubmatch(output, -1)
	if len(allMatches) > 0 {
		matches := allMatches[len(allMatches)-1]
		return parseTimeComponents(matches[1], matches[2], matches[3], matches[4])
	}

	return 0, fmt.Errorf("could not parse duration from ffmpeg output")
}

// parseTimeComponents converts HH:MM:SS.ms strings to a Duration.
func parseTimeComponents(hours, minutes, seconds, fractional string) (time.Duration, error) {
	h, _ := strconv.Atoi(hours)
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.Atoi(seconds)

	// Normalize fractional part to milliseconds.
	// Input may be 1-6+ digits (e.g., ".4", ".45", ".456", ".456789").
	frac, _ := strconv.Atoi(fractional)
	ms := frac
	switch n := len(fractional); {
	case n == 1:
		ms = frac * 100
	case n == 2:
		ms = frac * 10
	case n == 3:
		// Already milliseconds.
	case n > 3:
		// Truncate excess precision by dividing.
		for i := n; i > 3; i-- {
			ms /= 10
		}
	}

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}

// formatTime formats a duration for FFmpeg -ss/-t arguments.
func formatTime(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := d.Seconds() - float64(h*3600+m*60)
	return fmt.Sprintf("%02d:%02d:%06.3f", h, m, s)
}
