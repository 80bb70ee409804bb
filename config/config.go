// Package config implements the configuration management specified in
// section 6.4 of the design specification. It holds and validates all
// sweep execution parameters supplied on the command line; the flags
// themselves are parsed in cmd/vspace.
package config

import (
	"fmt"
	"runtime"
)

// Config holds all configuration for one sweep execution, as defined in
// section 6.4 of the spec. All fields correspond to the CLI surface.
type Config struct {
	ManifestPath string // path to the sweep manifest, e.g. "vspace.in"
	Cores        int    // number of worker goroutines; defaults to NumCPU
	Quiet        bool   // suppress per-run progress output
	Verbose      bool   // enable per-run diagnostic output
	BigPlanet    bool   // enable archive-mode: collect results into a single archive file
	Force        bool   // wipe and restart a sweep that is already complete
	NotifyAddr   string // address to notify on completion, empty disables notification

	// Simulator invocation conventions. Not exposed as flags in the
	// original tool but factored out here so other simulators can be
	// swapped in without touching the scheduler.
	Binary      string // simulator executable name or path
	InputFile   string // primary input file basename passed to the simulator
	LogFileName string // per-run log file basename
	DescribeArg string // argument used for the one-shot tool-description call
}

// Default simulator invocation conventions.
const (
	DefaultBinary      = "vplanet"
	DefaultInputFile   = "vpl.in"
	DefaultLogFileName = "vplanet_log"
	DefaultDescribeArg = "-h"
)

// Validate implements the validation requirements from section 6.4 of the
// spec. It ensures all required fields are present and fills in defaults
// for anything left unset.
func (c *Config) Validate() error {
	if c.ManifestPath == "" {
		return fmt.Errorf("manifest path is required")
	}

	if c.Cores == 0 {
		c.Cores = runtime.NumCPU()
	}
	if c.Cores < 1 {
		return fmt.Errorf("cores must be at least 1")
	}

	if c.Quiet && c.Verbose {
		return fmt.Errorf("quiet and verbose are mutually exclusive")
	}

	if c.Binary == "" {
		c.Binary = DefaultBinary
	}
	if c.InputFile == "" {
		c.InputFile = DefaultInputFile
	}
	if c.LogFileName == "" {
		c.LogFileName = DefaultLogFileName
	}
	if c.DescribeArg == "" {
		c.DescribeArg = DefaultDescribeArg
	}

	return nil
}
