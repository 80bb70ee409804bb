// Package manifest implements the manifest and sweep-layout reading
// functionality as specified in section 4.1 of the design specification.
// It handles parsing the sweep manifest and deriving the set of run
// directories and their shared body/system naming from the files on disk.
package manifest

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vspace/sweep/errs"
)

// SweepLayout is the derived configuration for one sweep, as defined in
// section 3 of the spec. It is computed once at startup and is immutable
// for the duration of a sweep execution.
// Example:
//
//	layout, err := manifest.ReadLayout("vspace.in")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	runs, err := manifest.EnumerateRuns(layout.DestPath)
type SweepLayout struct {
	ManifestPath      string   // absolute or relative path to the sweep manifest
	DestFolderName    string   // relative destination folder name, from "destfolder"
	DestPath          string   // absolute path to the destination folder
	BodyFileBasenames []string // per-body input file basenames, from "file" directives
	SystemName        string   // primary input file's basename without extension
	BodyNames         []string // body names read from each body file's "sName" directive
}

// ReadLayout implements the manifest reading requirements from section 4.1.
// It reads the manifest line-by-line, recognizing "destfolder" and "file"
// directives and ignoring everything else. SystemName and BodyNames are
// left empty; callers fill them in via DeriveSystem once a sample run is
// available.
// Example:
//
//	layout, err := manifest.ReadLayout("vspace.in")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(layout.DestFolderName)
func ReadLayout(manifestPath string) (*SweepLayout, error) {
	f, err := os.Open(manifestPath)
	if err != nil {
		return nil, errs.NewConfigError(manifestPath, fmt.Errorf("failed to open manifest: %w", err))
	}
	defer f.Close()

	manifestDir := filepath.Dir(manifestPath)
	layout := &SweepLayout{ManifestPath: manifestPath}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "destfolder":
			if len(fields) < 2 {
				return nil, errs.NewConfigError(manifestPath, fmt.Errorf("destfolder directive missing a value"))
			}
			layout.DestFolderName = fields[1]
		case "file":
			if len(fields) < 2 {
				return nil, errs.NewConfigError(manifestPath, fmt.Errorf("file directive missing a value"))
			}
			layout.BodyFileBasenames = append(layout.BodyFileBasenames, fields[1])
		default:
			// unrecognized directives are not the core's concern
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.NewConfigError(manifestPath, fmt.Errorf("failed to read manifest: %w", err))
	}

	if layout.DestFolderName == "" {
		return nil, errs.NewConfigError(manifestPath, fmt.Errorf("manifest has no destfolder directive"))
	}

	layout.DestPath = filepath.Join(manifestDir, layout.DestFolderName)
	if !filepath.IsAbs(layout.DestPath) {
		abs, err := filepath.Abs(layout.DestPath)
		if err != nil {
			return nil, errs.NewConfigError(manifestPath, fmt.Errorf("failed to resolve destination folder: %w", err))
		}
		layout.DestPath = abs
	}
	if info, err := os.Stat(layout.DestPath); err != nil || !info.IsDir() {
		return nil, errs.NewConfigError(layout.DestPath, fmt.Errorf("destination folder does not exist"))
	}

	return layout, nil
}

// EnumerateRuns implements the run-enumeration requirements from section
// 4.1. It returns the absolute path of every immediate child directory of
// destFolderPath, ordered lexicographically by basename so dispatch order
// is deterministic for tests.
// Example:
//
//	runs, err := manifest.EnumerateRuns(layout.DestPath)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("found %d runs\n", len(runs))
func EnumerateRuns(destFolderPath string) ([]string, error) {
	entries, err := os.ReadDir(destFolderPath)
	if err != nil {
		return nil, errs.NewConfigError(destFolderPath, fmt.Errorf("failed to read destination folder: %w", err))
	}

	var runs []string
	for _, entry := range entries {
		if entry.IsDir() {
			runs = append(runs, filepath.Join(destFolderPath, entry.Name()))
		}
	}
	if len(runs) == 0 {
		return nil, errs.NewConfigError(destFolderPath, fmt.Errorf("destination folder contains no run directories"))
	}

	sort.Slice(runs, func(i, j int) bool {
		return filepath.Base(runs[i]) < filepath.Base(runs[j])
	})

	return runs, nil
}

// DeriveSystem implements the system/body derivation requirements from
// section 4.1. It locates the primary input file in the sample run (the
// one input file not named in bodyFileNames), reads each body file's
// first "sName <value>" directive for the body name, and returns the
// primary file's basename (without extension) as the system name.
// Example:
//
//	system, bodies, err := manifest.DeriveSystem(runs[0], layout.BodyFileBasenames)
//	if err != nil {
//	    log.Fatal(err)
//	}
func DeriveSystem(sampleRunDir string, bodyFileNames []string) (systemName string, bodyNames []string, err error) {
	entries, readErr := os.ReadDir(sampleRunDir)
	if readErr != nil {
		return "", nil, errs.NewConfigError(sampleRunDir, fmt.Errorf("failed to read sample run: %w", readErr))
	}

	isBodyFile := make(map[string]bool, len(bodyFileNames))
	for _, name := range bodyFileNames {
		isBodyFile[name] = true
	}

	var primaryFile string
	for _, entry := range entries {
		if entry.IsDir() || isBodyFile[entry.Name()] {
			continue
		}
		primaryFile = entry.Name()
		break
	}
	if primaryFile == "" {
		return "", nil, errs.NewConfigError(sampleRunDir, fmt.Errorf("no primary input file found"))
	}
	systemName = strings.TrimSuffix(primaryFile, filepath.Ext(primaryFile))

	bodyNames = make([]string, 0, len(bodyFileNames))
	for _, name := range bodyFileNames {
		bodyPath := filepath.Join(sampleRunDir, name)
		bodyName, err := readBodyName(bodyPath)
		if err != nil {
			return "", nil, err
		}
		bodyNames = append(bodyNames, bodyName)
	}

	return systemName, bodyNames, nil
}

// readBodyName reads the first "sName <value>" directive from a body
// input file.
func readBodyName(bodyPath string) (string, error) {
	f, err := os.Open(bodyPath)
	if err != nil {
		return "", errs.NewConfigError(bodyPath, fmt.Errorf("failed to open body file: %w", err))
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(fields) >= 2 && fields[0] == "sName" {
			return fields[1], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", errs.NewConfigError(bodyPath, fmt.Errorf("failed to read body file: %w", err))
	}

	return "", errs.NewConfigError(bodyPath, fmt.Errorf("no sName directive found"))
}
