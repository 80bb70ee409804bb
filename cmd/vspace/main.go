// Package main implements the command-line interface specified in
// section 6.4 of the design specification. It parses flags and
// initializes one sweep execution.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/vspace/sweep/config"
	"github.com/vspace/sweep/notify"
	"github.com/vspace/sweep/orchestrator"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run implements the sweep command as specified in section 6.4. It
// parses flags, validates configuration, and executes the sweep.
func run() error {
	fs := flag.NewFlagSet("vspace", flag.ExitOnError)

	cores := fs.Int("c", 0, "number of worker goroutines (defaults to number of CPUs)")
	quiet := fs.Bool("q", false, "suppress per-run progress output")
	verbose := fs.Bool("v", false, "enable per-run diagnostic output")
	bigPlanet := fs.Bool("bp", false, "collect results into a single archive file")
	force := fs.Bool("force", false, "wipe and restart a sweep that is already complete")
	notifyAddr := fs.String("m", "", "address to notify on completion")
	binary := fs.String("binary", config.DefaultBinary, "simulator executable name or path")
	inputFile := fs.String("input", config.DefaultInputFile, "primary simulator input file basename")
	logFileName := fs.String("log", config.DefaultLogFileName, "per-run log file basename")
	describeArg := fs.String("describe-arg", config.DefaultDescribeArg, "argument used to query the simulator's description")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: vspace [flags] <manifest>")
	}

	cfg := &config.Config{
		ManifestPath: fs.Arg(0),
		Cores:        *cores,
		Quiet:        *quiet,
		Verbose:      *verbose,
		BigPlanet:    *bigPlanet,
		Force:        *force,
		NotifyAddr:   *notifyAddr,
		Binary:       *binary,
		InputFile:    *inputFile,
		LogFileName:  *logFileName,
		DescribeArg:  *describeArg,
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var notifier notify.Notifier = notify.NoopNotifier{}
	if cfg.NotifyAddr != "" {
		notifier = notify.StdoutNotifier{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !cfg.Quiet {
		fmt.Printf("running sweep %s\n", cfg.ManifestPath)
	}

	if _, err := orchestrator.RunParallel(ctx, cfg, notifier); err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	return nil
}
