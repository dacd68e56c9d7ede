// Command fleetload imports one lawnmower fleet telemetry CSV export into a
// relational database and exits. It repairs a known malformed date pattern,
// normalizes nulls and timestamps, splits the rows into unique devices and
// tracking facts, and loads both in a single all-or-nothing transaction.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"
	_ "time/tzdata" // Europe/Zurich must resolve on scratch images

	"github.com/spken/ict-skills-2025/internal/config"

	// register all backends with the storage factory.
	_ "github.com/spken/ict-skills-2025/internal/storage/all"
)

func main() {
	var (
		cfgPath  string
		validate bool
	)
	flag.StringVar(&cfgPath, "config", "configs/pipelines/lawnmowers.json", "pipeline config JSON path")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Parse()

	f, err := os.Open(cfgPath)
	if err != nil {
		fatalf("open config: %v", err)
	}
	defer f.Close()

	var p config.Pipeline
	if err := json.NewDecoder(f).Decode(&p); err != nil {
		fatalf("decode config: %v", err)
	}

	// 12-factor override: the DSN usually carries credentials and stays out
	// of the checked-in pipeline file.
	if dsn := os.Getenv("FLEETLOAD_DSN"); dsn != "" {
		p.Storage.DB.DSN = dsn
	}

	issues := config.ValidatePipeline(p)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	ctx := context.Background()
	start := time.Now()

	if *verbose {
		log.Printf("pipeline: job=%s source=%s storage=%s",
			p.Job, p.Source.File.Path, p.Storage.Kind)
	}

	if err := run(ctx, p); err != nil {
		log.Fatalf("%v", err)
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
