package rules

import "sync"

// Executor runs a single rule's Run method against its selected inputs.
// Simple runs inline; Threaded pools evaluations and de-duplicates
// concurrent requests for the same (rule.id, params).
type Executor interface {
	Execute(r Rule, inputs Params) (any, error)
}

// Simple runs rules on the caller's goroutine.
type Simple struct{}

func (Simple) Execute(r Rule, inputs Params) (any, error) {
	return r.Run(inputs)
}

// pendingFuture is one in-flight rule evaluation other callers with an
// identical (rule.id, params) can wait on instead of re-running it —
// grounded on the teacher's WorkerManager's key-indexed
// registry-of-live-work (BranchKey → *BranchWorker), generalized from one
// live worker per git branch to one live evaluation per (rule, params).
type pendingFuture struct {
	done  chan struct{}
	value any
	err   error
}

// Threaded submits rule evaluations to an unbounded worker-per-call pool
// (bounded in practice by the caller's own concurrency), de-duplicating
// concurrent evaluations of an identical (rule.id, params) via a pending-
// futures map so only one evaluation of a given key is ever in flight.
type Threaded struct {
	mu      sync.Mutex
	pending map[cacheKey]*pendingFuture
}

// NewThreaded creates a Threaded executor.
func NewThreaded() *Threaded {
	return &Threaded{pending: make(map[cacheKey]*pendingFuture)}
}

func (t *Threaded) Execute(r Rule, inputs Params) (any, error) {
	key := cacheKey{ruleID: r.ID(), hash: inputs.Hash()}

	t.mu.Lock()
	if existing, ok := t.pending[key]; ok {
		t.mu.Unlock()
		<-existing.done
		return existing.value, existing.err
	}

	future := &pendingFuture{done: make(chan struct{})}
	t.pending[key] = future
	t.mu.Unlock()

	go func() {
		future.value, future.err = r.Run(inputs)
		close(future.done)

		t.mu.Lock()
		delete(t.pending, key)
		t.mu.Unlock()
	}()

	<-future.done
	return future.value, future.err
}
