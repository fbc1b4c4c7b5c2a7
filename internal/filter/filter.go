// Package filter decides whether a classified event is worth a signal.
// Filters are pure: the same event and thresholds always produce the same
// decision and reason.
package filter

import (
	"pump-signals/internal/domain"
)

// Result is a single filter decision. Reason is empty on acceptance and a
// short machine-readable string on rejection.
type Result struct {
	Passed bool
	Reason string
}

func Accept() Result              { return Result{Passed: true} }
func Reject(reason string) Result { return Result{Reason: reason} }

// Filter is one predicate over an event. Implementations must not mutate
// the event or keep state between calls.
type Filter interface {
	Name() string
	Evaluate(ev domain.Event) Result
}

// Chain runs filters in order and short-circuits on the first rejection,
// prefixing the reason with the rejecting filter's name.
type Chain struct {
	filters []Filter
}

func NewChain(filters ...Filter) *Chain {
	return &Chain{filters: filters}
}

func (c *Chain) Evaluate(ev domain.Event) Result {
	for _, f := range c.filters {
		if res := f.Evaluate(ev); !res.Passed {
			return Reject(f.Name() + ": " + res.Reason)
		}
	}
	return Accept()
}
