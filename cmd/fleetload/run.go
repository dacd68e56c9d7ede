// This file wires the import end-to-end: parse -> clean -> split -> load.
// It depends only on the storage-agnostic interfaces and never imports
// database drivers or backend packages directly. Control flow is strictly
// linear: one file, one transaction, one exit.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/spken/ict-skills-2025/internal/config"
	"github.com/spken/ict-skills-2025/internal/fleet"
	csvparser "github.com/spken/ict-skills-2025/internal/parser/csv"
	"github.com/spken/ict-skills-2025/internal/storage"
	"github.com/spken/ict-skills-2025/internal/transform"
	"github.com/spken/ict-skills-2025/internal/transform/builtin"
)

// Function variables used as test seams. In production they point at the real
// implementations.
var (
	openSourceFn = openSource

	newStoreFn = func(ctx context.Context, cfg storage.Config) (storage.FleetStore, error) {
		return storage.New(ctx, cfg)
	}
)

// run executes one import described by p. Parsing and cleaning are
// row-tolerant (bad rows and bad values are dropped or nulled, with logs);
// everything from the first database write on is all-or-nothing.
func run(ctx context.Context, p config.Pipeline) error {
	loc := time.UTC
	if tz := p.Clean.LocalTimezone; tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("load timezone %q: %w", tz, err)
		}
		loc = l
	}

	src, err := openSourceFn(p.Source)
	if err != nil {
		return err
	}
	defer src.Close()

	parser := csvparser.NewParser(csvparser.Options{
		HasHeader:      p.Parser.Options.Bool("has_header", true),
		Comma:          p.Parser.Options.Rune("comma", ','),
		TrimSpace:      p.Parser.Options.Bool("trim_space", true),
		QuoteBareDates: p.Parser.Options.Bool("quote_bare_dates", true),
		HeaderMap:      fleet.HeaderMap,
	})
	recs, skipped, err := parser.Parse(src)
	if err != nil {
		return fmt.Errorf("parse %s: %w", p.Source.File.Path, err)
	}
	log.Printf("Successfully loaded %s rows from CSV (skipped %d)",
		humanize.Comma(int64(len(recs))), skipped)

	chain := transform.Chain{
		builtin.ScrubNulls{},
		builtin.NormalizeText{},
		builtin.NormalizeDates{Columns: fleet.DateColumns, Loc: loc},
		builtin.Coerce{NumberColumns: fleet.NumberColumns},
		builtin.SweepNulls{},
	}
	recs = chain.Apply(recs)
	log.Printf("Data processing complete")

	devices, facts, stats := fleet.Split(recs)
	log.Printf("Found %s unique lawnmowers", humanize.Comma(int64(stats.Devices)))
	log.Printf("Found %s tracking records", humanize.Comma(int64(stats.Facts)))

	store, err := newStoreFn(ctx, storage.Config{
		Kind:             p.Storage.Kind,
		DSN:              p.Storage.DB.DSN,
		AutoCreateTables: p.Storage.DB.AutoCreateTables,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	if p.Storage.DB.AutoCreateTables {
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	loaded, err := store.Load(ctx, devices, facts, storage.LoadOptions{
		ProgressEvery: p.Runtime.ProgressEvery,
	})
	if err != nil {
		log.Printf("Error during import: %v", err)
		log.Printf("Transaction rolled back")
		return err
	}

	log.Printf("SUCCESS! All data imported successfully!")
	log.Printf("Summary:")
	log.Printf("  - %s unique lawnmowers", humanize.Comma(loaded.DevicesUpserted))
	log.Printf("  - %s tracking records (%s GPS, %s battery, %s device state; %s skipped)",
		humanize.Comma(loaded.FactsInserted),
		humanize.Comma(loaded.Positions),
		humanize.Comma(loaded.Batteries),
		humanize.Comma(loaded.States),
		humanize.Comma(loaded.FactsSkipped))
	return nil
}

// openSource opens the configured input. Only the "file" kind exists today;
// the indirection keeps run free of filesystem specifics and gives tests a
// seam.
func openSource(s config.Source) (io.ReadCloser, error) {
	if s.Kind != "file" {
		return nil, fmt.Errorf("unsupported source kind %q", s.Kind)
	}
	f, err := os.Open(s.File.Path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	return f, nil
}
