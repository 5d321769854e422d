// Package store defines the ResourceStore contract: a pluggable,
// process-local backing store with a coarse-grained, reentrant, timed
// exclusive lock, label-indexed search and namespace referential
// integrity. internal/jsonstore, internal/gitstore and internal/sqlstore
// each satisfy this contract.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NiklasRosenstein/equilibrium/internal/resource"
)

// LockID is the capability token returned by Enter. Go has no stable,
// introspectable goroutine identity (unlike the teacher's thread-bound
// Python lock, which keys reentrancy off threading.get_ident()), so
// Lock tracks reentrancy by LockID instead: a second Enter from a holder
// already carrying a valid LockID for this lock returns that same ID
// rather than blocking. This is recorded as an Open Question resolution
// in DESIGN.md.
type LockID string

// LockRequest scopes a lock acquisition. The filters are accepted for
// forward-compatibility with fine-grained per-kind locking (see §9 of the
// spec) but the reference Lock always grants its single process-wide
// exclusive lock regardless of filter values.
type LockRequest struct {
	APIVersion string
	Kind       string
	Namespace  string
	Name       string

	// Timeout bounds how long Enter blocks waiting for a contended lock.
	// Zero means unbounded.
	Timeout time.Duration

	// Block, when false, makes Enter fail immediately with
	// LockTimeoutError instead of waiting at all.
	Block bool
}

// SearchRequest filters Search results. Empty fields are wildcards, except
// Namespace, which has three states: "" matches all, NamespaceNone
// matches only cluster-scoped resources, and any other string matches
// that namespace exactly.
type SearchRequest struct {
	APIVersion string
	Kind       string
	Namespace  string
	Name       string
	Labels     map[string]string
}

// NamespaceNone selects cluster-scoped resources in a SearchRequest.
const NamespaceNone = "\x00none"

// Lock is a reentrant, timed, exclusive mutex with an optional maximum
// hold duration. One Lock instance backs a single ResourceStore.
type Lock struct {
	mu sync.Mutex // guards the fields below, not the critical section

	cond       *sync.Cond
	held       bool
	holder     LockID
	acquiredAt time.Time
	maxHold    time.Duration
}

// NewLock creates an unheld lock. maxHold of zero disables the
// maxLockDuration policy.
func NewLock(maxHold time.Duration) *Lock {
	l := &Lock{maxHold: maxHold}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Enter acquires the lock per LockRequest's Timeout/Block semantics and
// returns a LockID. Calling Enter again with the LockID already held by
// the caller (passed as holder) is a reentrant no-op returning the same
// ID.
func (l *Lock) Enter(req LockRequest, holder LockID) (LockID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held && l.holder == holder && holder != "" {
		return l.holder, nil
	}

	deadline, hasDeadline := time.Time{}, false
	if req.Timeout > 0 {
		deadline = time.Now().Add(req.Timeout)
		hasDeadline = true
	}

	for l.held && !l.expired() {
		if !req.Block {
			return "", &resource.LockTimeoutError{Request: "non-blocking request while lock is held"}
		}
		if !hasDeadline {
			l.cond.Wait()
			continue
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", &resource.LockTimeoutError{Request: "timed out waiting for lock"}
		}
		if !l.waitWithTimeout(remaining) {
			return "", &resource.LockTimeoutError{Request: "timed out waiting for lock"}
		}
	}

	id := LockID(uuid.NewString())
	l.held = true
	l.holder = id
	l.acquiredAt = time.Now()
	return id, nil
}

// expired reports whether the current holder has exceeded maxLockDuration.
// Callers must hold l.mu.
func (l *Lock) expired() bool {
	if !l.held || l.maxHold <= 0 {
		return false
	}
	return time.Since(l.acquiredAt) > l.maxHold
}

// waitWithTimeout waits on the condition variable for at most d, signaling
// via a timer goroutine. Returns false if it timed out.
func (l *Lock) waitWithTimeout(d time.Duration) bool {
	timedOut := false
	timer := time.AfterFunc(d, func() {
		l.mu.Lock()
		timedOut = true
		l.cond.Broadcast()
		l.mu.Unlock()
	})
	defer timer.Stop()
	for l.held && !timedOut && !l.expired() {
		l.cond.Wait()
	}
	return !timedOut
}

// Release releases the lock if held by the given LockID. Releasing an
// expired or foreign LockID is a no-op, matching "implementations should
// not silently extend past this bound" — an expired holder has already
// lost the lock as far as CheckLock is concerned.
func (l *Lock) Release(id LockID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held && l.holder == id {
		l.held = false
		l.holder = ""
		l.cond.Broadcast()
	}
}

// CheckLock reports whether id still validly holds the lock, i.e. it is
// the current holder and the hold has not exceeded maxLockDuration.
func (l *Lock) CheckLock(id LockID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held && l.holder == id && !l.expired()
}

// ScopedEnter acquires the lock and returns a release function for
// `defer`, implementing the "scoped acquisition" described in §4.1: the
// lock is released on scope exit.
func (l *Lock) ScopedEnter(req LockRequest, holder LockID) (LockID, func(), error) {
	id, err := l.Enter(req, holder)
	if err != nil {
		return "", func() {}, err
	}
	return id, func() { l.Release(id) }, nil
}
