package csv

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/spken/ict-skills-2025/pkg/records"
)

func TestQuoteBareDates(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "date only",
			in:   "SN1,Jan 5, 2024,85\n",
			want: "SN1,\"Jan 5, 2024\",85\n",
		},
		{
			name: "date with time",
			in:   "SN1,Jan 5, 2024 10:00:00,85\n",
			want: "SN1,\"Jan 5, 2024 10:00:00\",85\n",
		},
		{
			name: "date with 12h time",
			in:   "SN1,Dec 31, 2023 11:59:59 PM,85\n",
			want: "SN1,\"Dec 31, 2023 11:59:59 PM\",85\n",
		},
		{
			name: "already quoted is untouched",
			in:   "SN1,\"Jan 5, 2024\",85\n",
			want: "SN1,\"Jan 5, 2024\",85\n",
		},
		{
			name: "two dates in one row",
			in:   "Feb 2, 2022,Mar 3, 2023\n",
			want: "\"Feb 2, 2022\",\"Mar 3, 2023\"\n",
		},
		{
			name: "no date",
			in:   "SN1,mowing,85\n",
			want: "SN1,mowing,85\n",
		},
		{
			name: "iso dates are untouched",
			in:   "SN1,2024-01-05 10:00:00,85\n",
			want: "SN1,2024-01-05 10:00:00,85\n",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := quoteBareDates(tc.in); got != tc.want {
				t.Fatalf("quoteBareDates(%q) = %q; want %q", tc.in, got, tc.want)
			}
		})
	}
}

// TestDateQuoteRewriter_SmallReads drives the rewriter through a tiny output
// buffer so multiple Read calls are required, and verifies the stream is
// rewritten identically to the one-shot function.
func TestDateQuoteRewriter_SmallReads(t *testing.T) {
	t.Parallel()

	in := "a,Jan 5, 2024,b\nc,Oct 12, 2021 08:30:00,d\nplain,row,here\n"
	r := newDateQuoteRewriter(strings.NewReader(in))

	var out strings.Builder
	buf := make([]byte, 7)
	for {
		n, err := r.Read(buf)
		out.Write(buf[:n])
		if err != nil {
			break
		}
	}

	want := "a,\"Jan 5, 2024\",b\nc,\"Oct 12, 2021 08:30:00\",d\nplain,row,here\n"
	if out.String() != want {
		t.Fatalf("rewritten stream = %q; want %q", out.String(), want)
	}
}

func TestParse_RepairsBareDates(t *testing.T) {
	t.Parallel()

	in := "SerialNumber,PurchaseDate,BatteryLevel\n" +
		"SN1,Jan 5, 2024,85\n" +
		"SN2,2023-06-01,90\n"

	p := NewParser(Options{
		HasHeader:      true,
		TrimSpace:      true,
		QuoteBareDates: true,
		HeaderMap: map[string]string{
			"SerialNumber": "serial_number",
			"PurchaseDate": "purchase_date",
			"BatteryLevel": "battery_level",
		},
	})
	recs, skipped, err := p.Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if skipped != 0 {
		t.Fatalf("skipped = %d; want 0", skipped)
	}
	if len(recs) != 2 {
		t.Fatalf("len(recs) = %d; want 2", len(recs))
	}
	if got, _ := recs[0]["purchase_date"].Text(); got != "Jan 5, 2024" {
		t.Fatalf("purchase_date = %q; want %q", got, "Jan 5, 2024")
	}
	if got, _ := recs[1]["serial_number"].Text(); got != "SN2" {
		t.Fatalf("serial_number = %q; want SN2", got)
	}
}

// Without repair, the embedded comma widens the row and the parser soft-fails it.
func TestParse_WidthEnforcement(t *testing.T) {
	t.Parallel()

	in := "SerialNumber,PurchaseDate,BatteryLevel\n" +
		"SN1,Jan 5, 2024,85\n" +
		"SN2,2023-06-01,90\n"

	p := NewParser(Options{HasHeader: true, QuoteBareDates: false})
	// The unquoted comma makes row 1 four fields wide; encoding/csv reports a
	// field-count error, which counts as one skipped row.
	recs, skipped, err := p.Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if skipped != 1 {
		t.Fatalf("skipped = %d; want 1", skipped)
	}
	if len(recs) != 1 {
		t.Fatalf("len(recs) = %d; want 1", len(recs))
	}
}

func TestParse_HeaderNormalization(t *testing.T) {
	t.Parallel()

	in := "\uFEFFDevice State,Custom\nmowing,x\n"
	p := NewParser(Options{HasHeader: true})
	recs, _, err := p.Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("len(recs) = %d; want 1", len(recs))
	}
	if got, _ := recs[0]["device_state"].Text(); got != "mowing" {
		t.Fatalf("device_state = %q; want mowing (BOM-stripped, snake_cased header)", got)
	}
}

// Skip logs report file lines: the header occupies line 1, so the first data
// row must be logged as row 2. Not parallel; it swaps the global log output.
func TestParse_SkipLogReportsFileLine(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	in := "a,b\n1,2,3\n4,5\n"
	p := NewParser(Options{HasHeader: true, QuoteBareDates: true})
	recs, skipped, err := p.Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if skipped != 1 || len(recs) != 1 {
		t.Fatalf("skipped = %d, len(recs) = %d; want 1 and 1", skipped, len(recs))
	}
	if got := buf.String(); !strings.Contains(got, "Skipping row 2") {
		t.Fatalf("skip log = %q; want it to reference row 2", got)
	}
}

func TestParse_EmptyCellIsNull(t *testing.T) {
	t.Parallel()

	in := "a,b\n1,\n"
	p := NewParser(Options{HasHeader: true})
	recs, _, err := p.Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v := recs[0]["b"]; !v.IsNull() {
		t.Fatalf("empty cell = %v; want null", v.Kind())
	}
	if v := recs[0]["a"]; v.Kind() != records.KindText {
		t.Fatalf("cell a kind = %v; want text", v.Kind())
	}
}
