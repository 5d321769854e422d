package store

import (
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/NiklasRosenstein/equilibrium/internal/resource"
)

// CircuitBreakerStore wraps a ResourceStore whose operations can hang or
// fail against an external backend (disk I/O in gitstore, network round
// trips in sqlstore) with a gobreaker.CircuitBreaker: once a backend
// trips past its failure threshold, further calls fail fast with a
// *resource.LockTimeoutError instead of blocking a reconcile sweep on a
// wedged dependency. The local-disk jsonstore path needs no breaker —
// there is nothing external to trip on — so this wrapper is opt-in.
type CircuitBreakerStore struct {
	inner   ResourceStore
	breaker *gobreaker.CircuitBreaker
}

// CircuitBreakerSettings configures the wrapped breaker's trip policy.
// MaxFailures defaults to 5 consecutive failures and OpenTimeout to 30s
// if left zero.
type CircuitBreakerSettings struct {
	Name        string
	MaxFailures uint32
	OpenTimeout time.Duration
}

// NewCircuitBreakerStore wraps inner with a circuit breaker configured by
// settings.
func NewCircuitBreakerStore(inner ResourceStore, settings CircuitBreakerSettings) *CircuitBreakerStore {
	if settings.MaxFailures == 0 {
		settings.MaxFailures = 5
	}
	if settings.OpenTimeout == 0 {
		settings.OpenTimeout = 30 * time.Second
	}
	if settings.Name == "" {
		settings.Name = "resourcestore"
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    settings.Name,
		Timeout: settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxFailures
		},
	})
	return &CircuitBreakerStore{inner: inner, breaker: breaker}
}

func guard[T any](b *CircuitBreakerStore, fn func() (T, error)) (T, error) {
	out, err := b.breaker.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return zero, &resource.LockTimeoutError{Request: fmt.Sprintf("backend circuit %s open: %v", b.breaker.Name(), err)}
		}
		return zero, err
	}
	return out.(T), nil
}

func (b *CircuitBreakerStore) Enter(req LockRequest, holder LockID) (LockID, func(), error) {
	type result struct {
		id      LockID
		release func()
	}
	r, err := guard(b, func() (result, error) {
		id, release, err := b.inner.Enter(req, holder)
		return result{id: id, release: release}, err
	})
	return r.id, r.release, err
}

func (b *CircuitBreakerStore) Put(lock LockID, r resource.Resource) error {
	_, err := guard(b, func() (struct{}, error) {
		return struct{}{}, b.inner.Put(lock, r)
	})
	return err
}

func (b *CircuitBreakerStore) Get(lock LockID, uri resource.URI) (resource.Resource, bool, error) {
	type result struct {
		r  resource.Resource
		ok bool
	}
	out, err := guard(b, func() (result, error) {
		r, ok, err := b.inner.Get(lock, uri)
		return result{r: r, ok: ok}, err
	})
	return out.r, out.ok, err
}

func (b *CircuitBreakerStore) Delete(lock LockID, uri resource.URI) (bool, error) {
	return guard(b, func() (bool, error) {
		return b.inner.Delete(lock, uri)
	})
}

func (b *CircuitBreakerStore) Search(lock LockID, req SearchRequest) ([]resource.URI, error) {
	return guard(b, func() ([]resource.URI, error) {
		return b.inner.Search(lock, req)
	})
}

func (b *CircuitBreakerStore) Namespaces(lock LockID) ([]resource.Resource, error) {
	return guard(b, func() ([]resource.Resource, error) {
		return b.inner.Namespaces(lock)
	})
}
