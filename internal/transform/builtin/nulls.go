// Package builtin contains the reusable transform steps of the import
// pipeline: null scrubbing, text normalization, date normalization, and type
// coercion.
package builtin

import (
	"strings"

	"github.com/spken/ict-skills-2025/pkg/records"
)

// nullTokens is the case-sensitive set of placeholder strings that upstream
// tools emit for missing values. "NaT" is the not-a-time marker some exports
// carry over from their producing library.
var nullTokens = map[string]struct{}{
	"":    {},
	"nan": {},
	"NaN": {},
	"NaT": {},
}

// ScrubNulls is the first null pass: it collapses the enumerated placeholder
// tokens into the canonical null. It runs before any column is interpreted
// semantically.
type ScrubNulls struct{}

func (ScrubNulls) Apply(in []records.Record) []records.Record {
	for _, r := range in {
		for k, v := range r {
			if s, ok := v.Text(); ok {
				if _, hit := nullTokens[s]; hit {
					r[k] = records.Null()
				}
			}
		}
	}
	return in
}

// SweepNulls is the final defensive pass: it re-checks every text cell
// case-insensitively for a literal "nan" and collapses any remaining empty
// string. The tagged value model makes a typed-NaN leak impossible, so this
// only catches textual stragglers produced by earlier string rewriting.
type SweepNulls struct{}

func (SweepNulls) Apply(in []records.Record) []records.Record {
	for _, r := range in {
		for k, v := range r {
			s, ok := v.Text()
			if !ok {
				continue
			}
			if s == "" || strings.EqualFold(s, "nan") {
				r[k] = records.Null()
			}
		}
	}
	return in
}
