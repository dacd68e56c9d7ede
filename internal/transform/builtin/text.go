package builtin

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/spken/ict-skills-2025/pkg/records"
)

// NormalizeText canonicalizes every text cell: NFC normalization, exotic
// spaces (NBSP and friends) to plain spaces, zero-width runes removed, and
// surrounding whitespace trimmed. Cells reduced to the empty string become
// null. Run this before SweepNulls so that e.g. a cell holding only an NBSP
// ends up null rather than a one-space string.
type NormalizeText struct{}

// textCleaner maps unicode space runes to ' ', drops zero-width runes, and
// applies NFC. Built once; transform.Chain is stateless across Strings calls
// as used here.
var textCleaner = transform.Chain(
	norm.NFC,
	runes.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}),
	runes.Remove(runes.In(zeroWidth)),
)

var zeroWidth = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x200b, Hi: 0x200d, Stride: 1}, // zero-width space/joiners
		{Lo: 0xfeff, Hi: 0xfeff, Stride: 1}, // stray BOM
	},
}

func (NormalizeText) Apply(in []records.Record) []records.Record {
	for _, r := range in {
		for k, v := range r {
			s, ok := v.Text()
			if !ok {
				continue
			}
			cleaned, _, err := transform.String(textCleaner, s)
			if err != nil {
				// Undecodable bytes: keep the original text rather than
				// corrupting it further.
				cleaned = s
			}
			cleaned = strings.TrimSpace(cleaned)
			if cleaned == "" {
				r[k] = records.Null()
			} else if cleaned != s {
				r[k] = records.Text(cleaned)
			}
		}
	}
	return in
}
