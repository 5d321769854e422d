package rules

import (
	"fmt"
	"reflect"
	"strings"
)

// DuplicateRuleIDError is returned by NewRulesGraph when two rules share
// an ID.
type DuplicateRuleIDError struct {
	ID string
}

func (e *DuplicateRuleIDError) Error() string {
	return fmt.Sprintf("duplicate rule id: %s", e.ID)
}

// CyclicGraphError is returned by NewRulesGraph when the rule set's
// input→output edges contain a cycle.
type CyclicGraphError struct {
	Cycle []reflect.Type
}

func (e *CyclicGraphError) Error() string {
	names := make([]string, len(e.Cycle))
	for i, t := range e.Cycle {
		names[i] = t.String()
	}
	return fmt.Sprintf("cyclic rules graph: %s", strings.Join(names, " -> "))
}

// NoMatchingRulesError is returned by Resolve when no rule produces
// outputType, or every rule that does has unsatisfiable inputs.
// Candidates lists every rule declaring outputType as its output, which
// may be empty.
type NoMatchingRulesError struct {
	OutputType reflect.Type
	Candidates []Rule
}

func (e *NoMatchingRulesError) Error() string {
	ids := make([]string, len(e.Candidates))
	for i, r := range e.Candidates {
		ids[i] = r.ID()
	}
	return fmt.Sprintf("no matching rule resolves %s (candidates: %s)", e.OutputType, strings.Join(ids, ", "))
}

// MultipleMatchingRulesError is returned by Resolve when more than one
// distinct resolution path exists for a signature. Candidates holds every
// distinct path found, each a topologically ordered rule sequence.
type MultipleMatchingRulesError struct {
	OutputType reflect.Type
	Candidates [][]Rule
}

func (e *MultipleMatchingRulesError) Error() string {
	paths := make([]string, len(e.Candidates))
	for i, path := range e.Candidates {
		ids := make([]string, len(path))
		for j, r := range path {
			ids[j] = r.ID()
		}
		paths[i] = "[" + strings.Join(ids, " -> ") + "]"
	}
	return fmt.Sprintf("multiple rules resolve %s: %s", e.OutputType, strings.Join(paths, ", "))
}

// OutputTypeMismatchError is returned by Engine execution when a rule's
// Run result is not assignable to its declared output type.
type OutputTypeMismatchError struct {
	RuleID string
	Want   reflect.Type
	Got    reflect.Type
}

func (e *OutputTypeMismatchError) Error() string {
	return fmt.Sprintf("rule %s: declared output %s but returned %s", e.RuleID, e.Want, e.Got)
}
