// Package transform defines the record transformation chain applied between
// parsing and splitting.
package transform

import "github.com/spken/ict-skills-2025/pkg/records"

// Step rewrites a batch of records and returns the (possibly same) slice.
type Step interface {
	Apply([]records.Record) []records.Record
}

// Chain is an ordered list of steps.
type Chain []Step

// Apply runs every step in order.
func (c Chain) Apply(in []records.Record) []records.Record {
	out := in
	for _, s := range c {
		out = s.Apply(out)
	}
	return out
}
