package orchestrator

import "golang.org/x/sync/errgroup"

// llmGate is the global semaphore from SPEC_FULL.md §8: a single
// errgroup.Group shared across every tenant, with SetLimit bounding how
// many LLM calls run concurrently regardless of which tenant's job
// issued them. Wait is never called on it — it lives for the
// Orchestrator's whole process lifetime, used purely for its
// Go-blocks-until-a-slot-frees behavior.
type llmGate struct {
	g *errgroup.Group
}

func newLLMGate(limit int) *llmGate {
	if limit <= 0 {
		limit = 1
	}
	g := &errgroup.Group{}
	g.SetLimit(limit)
	return &llmGate{g: g}
}

// acquire blocks until a slot is free and returns a func that releases
// it. Callers must always invoke the returned func exactly once.
func (l *llmGate) acquire() func() {
	done := make(chan struct{})
	started := make(chan struct{})
	l.g.Go(func() error {
		close(started)
		<-done
		return nil
	})
	<-started
	return func() { close(done) }
}
