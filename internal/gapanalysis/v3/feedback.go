package v3

import "sync"

// FeedbackRecorder tracks, per analyzer, how often its findings are
// later confirmed (a gap reaching model.GapVerified) versus rejected.
// SPEC_FULL.md §7 is explicit that this is a learning hook, not a
// closed-loop trainer: precision only ever feeds questions.go's priority
// weighting for the NEXT run, it never rewrites an already-persisted
// gap or retrains anything.
type FeedbackRecorder struct {
	mu       sync.Mutex
	verified map[string]int
	total    map[string]int
}

// NewFeedbackRecorder creates an empty recorder. An analyzer with no
// recorded outcomes yet reports neutral Precision (0.5) so a new
// analyzer isn't penalized before it has history.
func NewFeedbackRecorder() *FeedbackRecorder {
	return &FeedbackRecorder{
		verified: map[string]int{},
		total:    map[string]int{},
	}
}

// RecordOutcome registers that a gap produced by analyzer was later
// verified (true) or left unverified/rejected (false).
func (f *FeedbackRecorder) RecordOutcome(analyzer string, verified bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.total[analyzer]++
	if verified {
		f.verified[analyzer]++
	}
}

// Precision returns analyzer's verified/total ratio, or 0.5 if it has
// no recorded outcomes yet.
func (f *FeedbackRecorder) Precision(analyzer string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := f.total[analyzer]
	if total == 0 {
		return 0.5
	}
	return float64(f.verified[analyzer]) / float64(total)
}
