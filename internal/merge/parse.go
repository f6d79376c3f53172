package merge

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/scribeline/scribeline/internal/format"
	"github.com/scribeline/scribeline/internal/transcribe"
)

// markerLine matches a block marker like "[05:00]" or "[01:30:00]"
// standing alone on its line.
var markerLine = regexp.MustCompile(`^\[(\d{2,}):(\d{2})(?::(\d{2}))?\]$`)

// ParseTranscript reverses the Merge block format, recovering one
// segment per text line under each timestamp marker. Segment ends are
// unknown after the round trip and are set to the start. Text appearing
// before any marker is anchored at zero.
func ParseTranscript(s string) []transcribe.Segment {
	var (
		segments []transcribe.Segment
		start    time.Duration
	)

	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := markerLine.FindStringSubmatch(line); m != nil {
			start = markerDuration(m)
			continue
		}

		segments = append(segments, transcribe.Segment{
			Start:     start,
			End:       start,
			Text:      line,
			Timestamp: format.Timestamp(start),
		})
	}

	return segments
}

// markerDuration converts regexp groups to a duration. Two groups mean
// MM:SS, three mean HH:MM:SS.
func markerDuration(m []string) time.Duration {
	first, _ := strconv.Atoi(m[1])
	second, _ := strconv.Atoi(m[2])
	if m[3] == "" {
		return time.Duration(first)*time.Minute + time.Duration(second)*time.Second
	}
	third, _ := strconv.Atoi(m[3])
	return time.Duration(first)*time.Hour +
		time.Duration(second)*time.Minute +
		time.Duration(third)*time.Second
}
