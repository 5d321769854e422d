// Package rules implements the dependency-injection-by-type rules engine:
// pure functions (Rules) declare a signature of input types and an output
// type, a RulesGraph resolves a topologically ordered execution path for
// a requested output from a set of available input types, and an Engine
// executes that path with caching and pooled/threaded execution.
package rules

import "reflect"

// Signature is a rule's declared contract: which input types it consumes
// and which output type it produces.
type Signature struct {
	Inputs []reflect.Type
	Output reflect.Type
}

// Rule is a pure function with a declared signature. Implementations
// receive their inputs pre-selected into a Params bundle (engine-wide
// subjects ∪ caller params ∪ earlier rule outputs, filtered to exactly
// this rule's input types) and must return a value assignable to their
// declared Output type.
type Rule interface {
	// ID uniquely identifies this rule within a RulesGraph.
	ID() string

	// Signature declares this rule's inputs and output.
	Signature() Signature

	// Run executes the rule over its selected inputs.
	Run(inputs Params) (any, error)
}

// TypeOf is a small convenience for building a Signature: reflect.TypeOf
// a zero value of T. Callers typically write TypeOf[MyType]() rather than
// reflect.TypeOf((*MyType)(nil)).Elem().
func TypeOf[T any]() reflect.Type {
	var zero T
	return reflect.TypeOf(&zero).Elem()
}
