package builtin

import (
	"testing"

	"github.com/spken/ict-skills-2025/pkg/records"
)

func TestNormalizeText(t *testing.T) {
	t.Parallel()

	rec := records.Record{
		"nbsp":      records.Text("Z rich Str."),
		"padded":    records.Text("  Alpha  "),
		"zerowidth": records.Text("SN​1"),
		"onlyspace": records.Text(" "),
		"plain":     records.Text("mowing"),
		"number":    records.Number(85),
	}
	NormalizeText{}.Apply([]records.Record{rec})

	if s, _ := rec["nbsp"].Text(); s != "Z rich Str." {
		t.Fatalf("nbsp = %q", s)
	}
	if s, _ := rec["padded"].Text(); s != "Alpha" {
		t.Fatalf("padded = %q", s)
	}
	if s, _ := rec["zerowidth"].Text(); s != "SN1" {
		t.Fatalf("zerowidth = %q", s)
	}
	if !rec["onlyspace"].IsNull() {
		t.Fatal("cell reduced to nothing must become null")
	}
	if s, _ := rec["plain"].Text(); s != "mowing" {
		t.Fatalf("plain = %q", s)
	}
	if _, ok := rec["number"].Number(); !ok {
		t.Fatal("numeric cell must be untouched")
	}
}

func TestNormalizeText_NFC(t *testing.T) {
	t.Parallel()

	// "ü" as letter + combining diaeresis composes to the single rune.
	rec := records.Record{"c": records.Text("Zürich")}
	NormalizeText{}.Apply([]records.Record{rec})
	if s, _ := rec["c"].Text(); s != "Zürich" {
		t.Fatalf("NFC = %q; want %q", s, "Zürich")
	}
}
