// Package csv parses the fleet telemetry export into records. It includes an
// optional, targeted on-the-fly repair for a known malformed-field pattern in
// real-world exports: bare month-name dates ("Jan 5, 2024") whose embedded
// comma splits the field unless the value is quoted. The repair runs as a
// streaming rewrite before the bytes reach encoding/csv and never buffers the
// whole file.
package csv

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"

	"github.com/spken/ict-skills-2025/pkg/records"
)

// Options configures the parser. All fields are optional; sensible defaults
// are applied when a field is zero.
type Options struct {
	// HasHeader indicates whether the first row contains column headers.
	HasHeader bool

	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing ASCII spaces from each field value.
	TrimSpace bool

	// HeaderMap maps source header names to canonical keys (e.g., the export's
	// PascalCase names to snake_case). Only applies when HasHeader is true.
	HeaderMap map[string]string

	// QuoteBareDates enables the streaming repair that wraps unquoted
	// month-name dates in quotes before structured parsing. Occurrences
	// already preceded by a quote are left alone; a date sitting inside a
	// larger quoted field would still be rewritten, which can corrupt that
	// field. The input shapes seen so far never do that, so the rewrite stays
	// silent rather than trying to tokenize quoting state.
	// When enabled, the CSV reader runs in a lenient mode (LazyQuotes,
	// variable field count) and row width is enforced after read instead.
	QuoteBareDates bool
}

// Parser parses CSV input according to Options. It is safe to reuse across
// inputs, but Parser itself is not concurrency-safe.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// bareDatePattern matches a month-name date with an embedded comma, e.g.
// "Jan 5, 2024", plus an optional time-of-day. The time must be inside the
// quoted span: quoting only the date would leave the time dangling after the
// closing quote, and encoding/csv (unlike more forgiving parsers) does not
// glue such fragments back onto the field. Candidates directly preceded by a
// double quote are filtered out by the rewriter rather than by the pattern.
var bareDatePattern = regexp.MustCompile(
	`\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+\d{1,2},\s+\d{4}` +
		`(?:\s+\d{1,2}:\d{2}:\d{2}(?:\s+(?:AM|PM))?)?`)

// dateQuoteRewriter is an io.Reader that quotes bare date matches line by
// line. It reads complete lines from the underlying reader so a match can
// never straddle a read boundary. The preceding-quote check sees only the
// current line, so a date at the start of a quoted field's continuation line
// would still be wrapped; that is the same open risk as a date inside any
// larger quoted field, accepted for the input shapes this repair targets.
type dateQuoteRewriter struct {
	br  *bufio.Reader
	buf bytes.Buffer // pending output to satisfy Read
	eof bool
}

func newDateQuoteRewriter(r io.Reader) *dateQuoteRewriter {
	return &dateQuoteRewriter{br: bufio.NewReaderSize(r, 64*1024)}
}

// Read implements io.Reader. It serves buffered output first; when empty, it
// pulls the next line, rewrites any unquoted date matches, and buffers the
// result.
func (dr *dateQuoteRewriter) Read(p []byte) (int, error) {
	for dr.buf.Len() == 0 {
		if dr.eof {
			return 0, io.EOF
		}
		line, err := dr.br.ReadString('\n')
		if len(line) > 0 {
			dr.buf.WriteString(quoteBareDates(line))
		}
		if err == io.EOF {
			dr.eof = true
		} else if err != nil {
			return 0, err
		}
	}
	return dr.buf.Read(p)
}

// quoteBareDates wraps every unquoted date match in line with double quotes.
// A match whose preceding byte is '"' is treated as already quoted.
func quoteBareDates(line string) string {
	idxs := bareDatePattern.FindAllStringIndex(line, -1)
	if len(idxs) == 0 {
		return line
	}
	var b strings.Builder
	b.Grow(len(line) + 2*len(idxs))
	prev := 0
	for _, loc := range idxs {
		start, end := loc[0], loc[1]
		b.WriteString(line[prev:start])
		if start > 0 && line[start-1] == '"' {
			b.WriteString(line[start:end])
		} else {
			b.WriteByte('"')
			b.WriteString(line[start:end])
			b.WriteByte('"')
		}
		prev = end
	}
	b.WriteString(line[prev:])
	return b.String()
}

// Parse consumes CSV records from r and returns the parsed rows along with the
// number of rows skipped due to parse errors or field-count mismatches. Cells
// arrive as records.Text values; empty cells are already records.Null.
func (p *Parser) Parse(r io.Reader) ([]records.Record, int, error) {
	if p.opt.QuoteBareDates {
		r = newDateQuoteRewriter(r)
	}

	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}

	// The rewrite can produce quoting oddities on inputs it was never meant
	// for; keep encoding/csv lenient and enforce row width ourselves.
	if p.opt.QuoteBareDates {
		cr.LazyQuotes = true
		cr.FieldsPerRecord = -1
	}

	var headers []string
	var out []records.Record
	var skipped int

	// line tracks the file line for skip logs; the header occupies line 1.
	line := 1
	if p.opt.HasHeader {
		h, err := cr.Read()
		if err != nil {
			return nil, 0, fmt.Errorf("read csv header: %w", err)
		}
		headers = normalizeHeaders(h, p.opt)
		line = 2
	}

	const logLimit = 400
	for ; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if skipped < logLimit {
				log.Printf("Skipping row %d: %v", line, err)
			}
			skipped++
			continue
		}

		if len(headers) > 0 && len(row) != len(headers) {
			if skipped < logLimit {
				log.Printf("Skipping row %d: incorrect number of fields (expected %d, got %d)", line, len(headers), len(row))
			}
			skipped++
			continue
		}

		rec := make(records.Record, len(row))
		for i, val := range row {
			if p.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			rec[keyFor(i, headers)] = emptyToNull(val)
		}
		out = append(out, rec)
	}

	return out, skipped, nil
}

// keyFor returns the column key for index idx, using headers when available,
// otherwise synthesizing a "col_N" name.
func keyFor(idx int, headers []string) string {
	if idx < len(headers) && headers[idx] != "" {
		return headers[idx]
	}
	return fmt.Sprintf("col_%d", idx)
}

// emptyToNull converts an empty cell to the canonical null.
func emptyToNull(s string) records.Value {
	if s == "" {
		return records.Null()
	}
	return records.Text(s)
}

// normalizeHeaders produces canonical header keys using HeaderMap (when
// provided) and simple normalization (lowercase, spaces to underscores). It
// also strips a UTF-8 BOM from the first cell if present.
func normalizeHeaders(h []string, opt Options) []string {
	res := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		if opt.HeaderMap != nil {
			if m, ok := opt.HeaderMap[c]; ok {
				res[i] = m
				continue
			}
		}
		res[i] = strings.ReplaceAll(strings.ToLower(c), " ", "_")
	}
	return res
}
