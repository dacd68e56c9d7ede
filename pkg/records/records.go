// Package records defines the cell value model shared by the parser, the
// transform chain, and the storage backends.
//
// Every cell is a total tagged union: it is exactly one of Null, Text, Number,
// or Time from the moment it leaves the parser. There is no notion of a
// floating-point NaN cell or an empty string that "means" null; normalization
// steps collapse those representations into KindNull explicitly, and nothing
// downstream has to re-check.
package records

import (
	"strconv"
	"time"
)

// Kind discriminates the value held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindText
	KindNumber
	KindTime
)

// String returns a short name for the kind, for error messages and logs.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindTime:
		return "time"
	}
	return "unknown"
}

// Value is one cell. The zero Value is Null.
type Value struct {
	kind Kind
	text string
	num  float64
	ts   time.Time
}

// Null returns the canonical null value.
func Null() Value { return Value{} }

// Text returns a text value. An empty string is still KindText; collapsing
// empty strings to null is a normalization policy, not a type rule.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Time returns a timestamp value. Callers are expected to pass UTC instants.
func Time(t time.Time) Value { return Value{kind: KindTime, ts: t} }

// Kind reports which variant the value holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is the canonical null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Text returns the text payload and whether the value is text.
func (v Value) Text() (string, bool) { return v.text, v.kind == KindText }

// Number returns the numeric payload and whether the value is a number.
func (v Value) Number() (float64, bool) { return v.num, v.kind == KindNumber }

// Time returns the timestamp payload and whether the value is a timestamp.
func (v Value) Time() (time.Time, bool) { return v.ts, v.kind == KindTime }

// TimestampLayout is the canonical wire format for timestamps handed to the
// database drivers.
const TimestampLayout = "2006-01-02 15:04:05"

// Arg converts the value into a driver-ready argument: nil, string, float64,
// or the canonical UTC timestamp string.
func (v Value) Arg() any {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return v.num
	case KindTime:
		return v.ts.UTC().Format(TimestampLayout)
	}
	return nil
}

// Display renders the value for human-readable output. Null renders as the
// empty string.
func (v Value) Display() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return trimFloat(v.num)
	case KindTime:
		return v.ts.UTC().Format(TimestampLayout)
	}
	return ""
}

// trimFloat formats a float without trailing zeros ("85", not "85.000000").
func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Record is one parsed row, keyed by canonical (snake_case) column name.
// Lookups of absent columns yield the zero Value, which is Null.
type Record map[string]Value

// Get returns the value for key; missing keys read as Null.
func (r Record) Get(key string) Value { return r[key] }
