package stt

import (
	"context"
	"hash/fnv"
	"path/filepath"
	"strings"
	"time"
)

// mockUtterances are the canned span sets the mock backend cycles
// through. The phrasing deliberately includes questions and emphasis
// wording so downstream content analysis has something to find.
var mockUtterances = [][]string{
	{
		"Welcome everyone, let's get started with the quarterly review.",
		"The most important thing today is the migration deadline.",
		"Does anyone have questions about the rollout plan?",
	},
	{
		"Remember to update the runbook before the release.",
		"We need to follow up on the open incident from last week.",
		"What would it take to automate the deployment checks?",
	},
	{
		"The key point is that latency regressed after the cache change.",
		"Can you help me understand the new retention policy?",
		"Please keep in mind the budget review is due Friday.",
	},
}

// mockSpanLength is the synthetic duration assigned to each mock span.
const mockSpanLength = 4 * time.Second

// Compile-time interface compliance check.
var _ Model = (*MockModel)(nil)

// MockModel is an offline backend producing deterministic canned
// transcripts. The same audio path always yields the same result, which
// makes it suitable for demos, smoke tests, and CI runs without
// credentials.
type MockModel struct{}

// NewMockModel creates a MockModel.
func NewMockModel() *MockModel {
	return &MockModel{}
}

// Transcribe returns a canned transcript chosen by hashing the audio
// file name. It never fails and ignores ctx beyond cancellation.
func (m *MockModel) Transcribe(ctx context.Context, audioPath string, _ Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(filepath.Base(audioPath)))
	lines := mockUtterances[h.Sum32()%uint32(len(mockUtterances))]

	res := Result{Spans: make([]Span, 0, len(lines))}
	for i, line := range lines {
		start := time.Duration(i) * mockSpanLength
		res.Spans = append(res.Spans, Span{
			Start: start,
			End:   start + mockSpanLength,
			Text:  line,
		})
	}
	res.Text = strings.Join(lines, " ")
	return res, nil
}
