// Package analyze runs a pattern-matching pass over a merged transcript:
// keyword excerpts with surrounding context, whole-word keyword frequency,
// and question/emphasis detection per segment. The pass is pure; identical
// inputs always produce identical results.
package analyze

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/scribeline/scribeline/internal/transcribe"
)

// contextWindow is how many characters of transcript each keyword excerpt
// keeps on either side of the match.
const contextWindow = 50

// KeywordMatch holds every excerpt found for one configured keyword.
type KeywordMatch struct {
	Keyword string   `json:"keyword"`
	Matches []string `json:"matches,omitempty"`
	Count   int      `json:"count"`
}

// Cue is one flagged segment with its absolute position in the media.
type Cue struct {
	Timestamp string        `json:"timestamp"`
	Text      string        `json:"text"`
	Start     time.Duration `json:"start"`
}

// Result is the full analysis of one transcript.
type Result struct {
	KeywordMatches   []KeywordMatch `json:"keyword_matches,omitempty"`
	KeywordFrequency map[string]int `json:"keyword_frequency"`
	Questions        []Cue          `json:"questions,omitempty"`
	EmphasisCues     []Cue          `json:"emphasis_cues,omitempty"`
	TotalWords       int            `json:"total_words"`
}

// Ordered; the first matching pattern decides, so definitive shapes come
// before loose ones.
var questionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\?\s*$`),
	regexp.MustCompile(`(?i)^(who|what|when|where|why|how|which)\b`),
	regexp.MustCompile(`(?i)^(is|are|was|were|do|does|did|can|could|will|would|should|shall|may|might)\b`),
	regexp.MustCompile(`(?i)\b(any questions|question for|wondering if)\b`),
}

var emphasisPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(important|critical|crucial|essential|key point|keep in mind)\b`),
	regexp.MustCompile(`(?i)\b(remember|don't forget|note that|take note|pay attention)\b`),
	regexp.MustCompile(`(?i)\b(action item|to-?do|follow[- ]up|deadline|due date)\b`),
	regexp.MustCompile(`(?i)\b(must|have to|need to|required)\b`),
}

// Analyze scans the transcript for the configured keywords and flags
// question and emphasis segments. Inputs are never mutated. Keyword order
// and segment order are preserved in the result.
func Analyze(text string, segments []transcribe.Segment, keywords []string) Result {
	res := Result{
		KeywordFrequency: make(map[string]int, len(keywords)),
		TotalWords:       len(strings.Fields(text)),
	}

	for _, keyword := range keywords {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			continue
		}
		res.KeywordMatches = append(res.KeywordMatches, scanKeyword(text, keyword))
		res.KeywordFrequency[keyword] = wordFrequency(text, keyword)
	}

	for _, seg := range segments {
		line := strings.TrimSpace(seg.Text)
		if line == "" {
			continue
		}
		// A segment can be both a question and an emphasis cue.
		if matchesAny(questionPatterns, line) {
			res.Questions = append(res.Questions, Cue{Timestamp: seg.Timestamp, Text: line, Start: seg.Start})
		}
		if matchesAny(emphasisPatterns, line) {
			res.EmphasisCues = append(res.EmphasisCues, Cue{Timestamp: seg.Timestamp, Text: line, Start: seg.Start})
		}
	}

	return res
}

func matchesAny(patterns []*regexp.Regexp, line string) bool {
	for _, p := range patterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// scanKeyword finds every case-insensitive occurrence, substring matches
// included, and keeps a context excerpt around each.
func scanKeyword(text, keyword string) KeywordMatch {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(keyword))
	locs := re.FindAllStringIndex(text, -1)

	match := KeywordMatch{Keyword: keyword, Count: len(locs)}
	for _, loc := range locs {
		match.Matches = append(match.Matches, excerpt(text, loc[0], loc[1]))
	}
	return match
}

// wordFrequency counts whole-word occurrences only, so "deadline" does
// not count "deadlines" the way the excerpt scan does.
func wordFrequency(text, keyword string) int {
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(keyword) + `\b`)
	return len(re.FindAllStringIndex(text, -1))
}

// excerpt widens [start,end) by up to contextWindow characters per side,
// stepping by runes so multi-byte text never splits mid-character.
func excerpt(text string, start, end int) string {
	lo := start
	for range contextWindow {
		if lo == 0 {
			break
		}
		_, size := utf8.DecodeLastRuneInString(text[:lo])
		lo -= size
	}

	hi := end
	for range contextWindow {
		if hi == len(text) {
			break
		}
		_, size := utf8.DecodeRuneInString(text[hi:])
		hi += size
	}

	return strings.TrimSpace(text[lo:hi])
}
