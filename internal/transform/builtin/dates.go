package builtin

import (
	"log"
	"time"

	"github.com/spken/ict-skills-2025/pkg/records"
)

// dateLayouts are tried in order for each date cell. RFC3339 carries its own
// offset; every other layout is a naive wall-clock reading that gets localized
// to the configured zone before conversion to UTC.
var dateLayouts = []struct {
	layout string
	zoned  bool
}{
	{time.RFC3339, true},
	{"2006-01-02 15:04:05", false},
	{"2006-01-02", false},
	{"Jan 2, 2006 15:04:05", false},
	{"Jan 2, 2006 3:04:05 PM", false},
	{"Jan 2, 2006", false},
}

// NormalizeDates parses the designated date columns into UTC timestamps.
//
// Per-cell policy: null stays null; unparseable text becomes null and is
// logged with its column, never raised. Naive wall times are localized to Loc:
// a time inside a spring-forward gap is shifted to the first valid instant,
// and an ambiguous fall-back time is treated as unparseable (null) because
// there is no defensible way to pick an offset.
type NormalizeDates struct {
	Columns []string
	Loc     *time.Location
}

func (n NormalizeDates) Apply(in []records.Record) []records.Record {
	loc := n.Loc
	if loc == nil {
		loc = time.UTC
	}
	for _, col := range n.Columns {
		log.Printf("processing date column: %s", col)
		for _, r := range in {
			v, ok := r[col]
			if !ok || v.IsNull() {
				continue
			}
			s, isText := v.Text()
			if !isText {
				continue
			}
			t, ok := parseFlexible(s)
			if !ok {
				log.Printf("unparseable date %q in column %s; treating as null", s, col)
				r[col] = records.Null()
				continue
			}
			if t.Location() == naiveMarker {
				lt, ok := localize(t, loc)
				if !ok {
					log.Printf("ambiguous local time %q in column %s; treating as null", s, col)
					r[col] = records.Null()
					continue
				}
				t = lt
			}
			r[col] = records.Time(t.UTC())
		}
	}
	return in
}

// naiveMarker tags parsed wall-clock readings that carried no zone of their
// own. time.Parse uses UTC for zone-less layouts; parsing into a private
// fixed zone instead lets the caller tell "naive" apart from "explicit UTC".
var naiveMarker = time.FixedZone("naive", 0)

// parseFlexible tries each supported layout in order. The returned time is in
// naiveMarker when the matched layout has no zone information.
func parseFlexible(s string) (time.Time, bool) {
	for _, dl := range dateLayouts {
		if dl.zoned {
			if t, err := time.Parse(dl.layout, s); err == nil {
				return t, true
			}
			continue
		}
		if t, err := time.ParseInLocation(dl.layout, s, naiveMarker); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// localize interprets the wall-clock fields of t in loc. For a nonexistent
// wall time (spring-forward gap) it returns the first valid instant after the
// gap. For an ambiguous wall time (fall-back overlap) it returns ok=false.
func localize(t time.Time, loc *time.Location) (time.Time, bool) {
	d := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)

	if !sameWall(d, t) {
		// time.Date normalized a nonexistent wall time away; the first valid
		// instant is the transition itself.
		return firstInstantAfterGap(d), true
	}

	// Ambiguity check: another instant within the largest plausible offset
	// step maps back to the same wall clock.
	_, off := d.Zone()
	for _, probe := range []time.Time{d.Add(-time.Hour), d.Add(time.Hour)} {
		_, poff := probe.Zone()
		if poff == off {
			continue
		}
		alt := d.Add(time.Duration(off-poff) * time.Second)
		if sameWall(alt.In(loc), t) && !alt.Equal(d) {
			return time.Time{}, false
		}
	}
	return d, true
}

// sameWall reports whether two times show identical wall-clock fields,
// regardless of location.
func sameWall(a, b time.Time) bool {
	ah, am, as := a.Clock()
	bh, bm, bs := b.Clock()
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day() &&
		ah == bh && am == bm && as == bs && a.Nanosecond() == b.Nanosecond()
}

// firstInstantAfterGap locates the offset transition nearest to d by
// bisection and returns its first post-transition instant at second
// precision. d comes out of a failed wall-clock round trip, so a transition
// is known to sit within a few hours of it; DST transitions are months apart,
// which makes a ±14h window contain exactly one.
func firstInstantAfterGap(d time.Time) time.Time {
	lo := d.Add(-14 * time.Hour)
	hi := d.Add(14 * time.Hour)
	_, loOff := lo.Zone()
	if _, hiOff := hi.Zone(); hiOff == loOff {
		// No transition nearby after all; leave the normalized time as-is.
		return d
	}
	for hi.Sub(lo) > time.Second {
		mid := lo.Add(hi.Sub(lo) / 2).Round(time.Second)
		if !mid.After(lo) {
			mid = lo.Add(time.Second)
		}
		if _, off := mid.Zone(); off == loOff {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi
}
