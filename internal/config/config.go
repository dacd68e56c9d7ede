// Package config defines the JSON-serializable configuration model for the
// fleet import tool. A pipeline file fully describes one run: where the CSV
// lives, how it is parsed and cleaned, and which database receives the load.
//
// Decoding is performed by the standard library; parser options use a light
// Options helper for typed access so the parser can grow settings without
// schema churn.
//
// Example (trimmed):
//
//	{
//	  "job":    "lawnmower_import",
//	  "source": { "kind": "file", "file": { "path": "exports/fleet.csv" } },
//	  "parser": { "kind": "csv", "options": { "has_header": true, "quote_bare_dates": true } },
//	  "clean":  { "local_timezone": "Europe/Zurich" },
//	  "storage": { "kind": "mysql", "db": { "dsn": "root:...@tcp(localhost:3306)/lawnmower_management", "auto_create_tables": true } },
//	  "runtime": { "progress_every": 100 }
//	}
package config

import "encoding/json"

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job names the run for log lines and summaries.
	Job string `json:"job"`

	// Source describes where input data comes from (currently: local file).
	Source Source `json:"source"`

	// Parser configures how raw bytes are turned into records.
	Parser Parser `json:"parser"`

	// Clean configures the normalization chain, chiefly the local timezone
	// applied to naive timestamps.
	Clean Clean `json:"clean"`

	// Storage describes the database that receives the load.
	Storage Storage `json:"storage"`

	// Runtime holds knobs that affect reporting, not semantics.
	Runtime RuntimeConfig `json:"runtime"`
}

// Source identifies the data source.
type Source struct {
	// Kind selects the source implementation. Current value: "file".
	Kind string `json:"kind"`

	// File carries options for the "file" source kind.
	File SourceFile `json:"file"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	// Path is the local filesystem path to the input file.
	Path string `json:"path"`
}

// Parser selects how to parse the raw source into records.
type Parser struct {
	// Kind selects the parser implementation. Current value: "csv".
	Kind string `json:"kind"`

	// Options is a free-form map interpreted by the parser implementation.
	// For CSV, recognized keys:
	//   has_header (bool), comma (string), trim_space (bool),
	//   quote_bare_dates (bool)
	Options Options `json:"options"`
}

// UnmarshalJSON decodes the parser section and replaces a nil Options with an
// empty map. encoding/json never invokes an unmarshaler for an absent key, so
// the missing-"options" case has to be normalized here, on the enclosing
// struct, rather than in Options itself.
func (p *Parser) UnmarshalJSON(b []byte) error {
	type parser Parser // shed the method to avoid recursion
	var tmp parser
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	if tmp.Options == nil {
		tmp.Options = Options{}
	}
	*p = Parser(tmp)
	return nil
}

// Clean configures the record normalization chain.
type Clean struct {
	// LocalTimezone is the IANA zone applied to timestamps that carry no
	// offset of their own (e.g. "Europe/Zurich"). Empty means UTC.
	LocalTimezone string `json:"local_timezone"`
}

// Storage selects and configures the database sink.
type Storage struct {
	// Kind selects the storage backend: "mysql", "postgres", "sqlite",
	// or "mssql".
	Kind string `json:"kind"`

	// DB configures the selected backend.
	DB DBConfig `json:"db"`
}

// DBConfig configures the database sink.
type DBConfig struct {
	// DSN is the driver-specific connection string.
	DSN string `json:"dsn"`

	// AutoCreateTables creates the target schema when it does not exist yet.
	AutoCreateTables bool `json:"auto_create_tables"`
}

// RuntimeConfig controls progress reporting.
type RuntimeConfig struct {
	// ProgressEvery logs a progress line after this many tracking facts.
	// Zero selects the default of 100.
	ProgressEvery int `json:"progress_every"`
}

// Options is a small helper to fetch typed values from arbitrary JSON maps.
// It performs only minimal type coercion and returns the provided default
// when a key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers decode as float64,
// so this method accepts float64 and casts to int.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if key is
// missing or empty. Useful for single-character settings such as a CSV
// delimiter.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// UnmarshalJSON implements json.Unmarshaler so that an explicit null decodes
// to a non-nil, empty Options map. Together with Parser.UnmarshalJSON, which
// covers the absent-key case, this removes the need to nil-check Options at
// call sites.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
