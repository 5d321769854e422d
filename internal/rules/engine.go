package rules

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/NiklasRosenstein/equilibrium/internal/obsv"
)

// Engine resolves and executes rule paths against a RulesGraph: Get
// builds the input bundle for each rule in a resolved path from subjects
// ∪ caller params ∪ earlier rules' outputs, executes it through the
// configured Executor (consulting Cache first), and returns the final
// typed output.
type Engine struct {
	graph    *RulesGraph
	executor Executor
	cache    Cache
	subjects Params
	metrics  *obsv.Metrics
}

// EngineOption configures an Engine at construction.
type EngineOption func(*Engine)

// WithExecutor overrides the default Simple executor.
func WithExecutor(e Executor) EngineOption {
	return func(eng *Engine) { eng.executor = e }
}

// WithCache overrides the default NoCache.
func WithCache(c Cache) EngineOption {
	return func(eng *Engine) { eng.cache = c }
}

// WithSubjects seeds the engine's ambient subjects — inputs available to
// every rule evaluation without being passed explicitly by the caller.
func WithSubjects(subjects Params) EngineOption {
	return func(eng *Engine) { eng.subjects = subjects }
}

// WithMetrics attaches a Metrics instance; every rule evaluation within
// Get then records its cache outcome and duration against it.
func WithMetrics(m *obsv.Metrics) EngineOption {
	return func(eng *Engine) { eng.metrics = m }
}

// NewEngine builds an Engine over graph, defaulting to a Simple executor
// and no caching.
func NewEngine(graph *RulesGraph, opts ...EngineOption) *Engine {
	e := &Engine{graph: graph, executor: Simple{}, cache: NoCache(), subjects: NewParams()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Get resolves and executes the rule path producing a value of
// outputType, given subjects ∪ params as the available input set.
// Returns *NoMatchingRulesError / *MultipleMatchingRulesError from
// resolution, or *OutputTypeMismatchError if a rule's result isn't
// assignable to its declared output.
func (e *Engine) Get(outputType reflect.Type, params Params) (any, error) {
	bundle := e.subjects.Merge(params)

	if v, ok := bundle.Get(outputType); ok {
		return v, nil
	}

	available := bundle.Types()
	path, err := e.graph.Resolve(outputType, available)
	if err != nil {
		return nil, err
	}

	for _, r := range path {
		sig := r.Signature()
		ruleInputs := bundle.Filter(sig.Inputs)

		start := time.Now()
		var out any
		cached, hit := e.cache.Get(r.ID(), ruleInputs)
		if hit {
			out = cached
		} else {
			out, err = e.executor.Execute(r, ruleInputs)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", r.ID(), err)
			}
			gotType := reflect.TypeOf(out)
			if gotType == nil || !gotType.AssignableTo(sig.Output) {
				return nil, &OutputTypeMismatchError{RuleID: r.ID(), Want: sig.Output, Got: gotType}
			}
			e.cache.Put(r.ID(), ruleInputs, out)
		}
		if e.metrics != nil {
			e.metrics.RecordRulesResolve(context.Background(), hit, time.Since(start).Seconds())
		}
		bundle = bundle.Put(out)
	}

	v, ok := bundle.Get(outputType)
	if !ok {
		return nil, &NoMatchingRulesError{OutputType: outputType, Candidates: e.graph.candidatesForOutput(outputType)}
	}
	return v, nil
}

// engineStack is the thread-local-equivalent current-engine stack: Go
// has no stable goroutine-local storage, so, as with store.Lock's
// reentrant LockID, this is process-wide rather than per-goroutine —
// acceptable because the reconcile/rules model is single-sweep
// synchronous by design (§5), not a concurrent multi-tenant server.
var engineStack = struct {
	mu    sync.Mutex
	stack []*Engine
}{}

// Push makes e the current engine for the duration of the returned pop
// function, enabling Get[T] to dispatch without an explicit engine
// argument. Callers should `defer Push(e)()`.
func Push(e *Engine) func() {
	engineStack.mu.Lock()
	engineStack.stack = append(engineStack.stack, e)
	engineStack.mu.Unlock()

	return func() {
		engineStack.mu.Lock()
		engineStack.stack = engineStack.stack[:len(engineStack.stack)-1]
		engineStack.mu.Unlock()
	}
}

// current returns the top-of-stack engine, or nil if none is pushed.
func current() *Engine {
	engineStack.mu.Lock()
	defer engineStack.mu.Unlock()
	if len(engineStack.stack) == 0 {
		return nil
	}
	return engineStack.stack[len(engineStack.stack)-1]
}

// Get dispatches to the current engine (see Push), the free-function
// convenience from §4.5 that lets rules recursively request other
// outputs without threading an *Engine explicitly.
func Get[T any](params Params) (T, error) {
	var zero T
	e := current()
	if e == nil {
		return zero, fmt.Errorf("rules.Get: no engine pushed on the current-engine stack")
	}
	v, err := e.Get(TypeOf[T](), params)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("rules.Get: resolved value is %T, not %T", v, zero)
	}
	return typed, nil
}
