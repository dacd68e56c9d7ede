package builtin

import (
	"log"
	"math"
	"strconv"

	"github.com/spken/ict-skills-2025/pkg/records"
)

// Coerce converts text cells in the named columns to numbers. Cells that do
// not parse are left as text for the final sweep / storage layer to reject;
// coercion is best-effort, like the rest of the cleaning phase.
type Coerce struct {
	NumberColumns []string
}

func (c Coerce) Apply(in []records.Record) []records.Record {
	for _, r := range in {
		for _, col := range c.NumberColumns {
			v, ok := r[col]
			if !ok {
				continue
			}
			s, isText := v.Text()
			if !isText {
				continue
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				log.Printf("non-numeric value %q in column %s", s, col)
				continue
			}
			// ParseFloat accepts "NaN"/"Inf" spellings; those are null-like
			// placeholders, never measurements.
			if math.IsNaN(f) || math.IsInf(f, 0) {
				r[col] = records.Null()
				continue
			}
			r[col] = records.Number(f)
		}
	}
	return in
}
