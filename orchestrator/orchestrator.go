// Package orchestrator implements the top-level sweep execution flow
// specified in section 4.6 of the design specification: read the
// manifest, enumerate runs, restore or initialize the checkpoint, wire
// up the scheduler, and report the result.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vspace/sweep/archive"
	"github.com/vspace/sweep/checkpoint"
	"github.com/vspace/sweep/config"
	"github.com/vspace/sweep/errs"
	"github.com/vspace/sweep/manifest"
	"github.com/vspace/sweep/metrics"
	"github.com/vspace/sweep/notify"
	"github.com/vspace/sweep/runner"
	"github.com/vspace/sweep/scheduler"
)

// RunParallel implements the orchestration flow from section 4.6. It
// returns the final Report, or an error if the sweep could not be set up
// or executed.
func RunParallel(ctx context.Context, cfg *config.Config, notifier notify.Notifier) (metrics.Report, error) {
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}

	layout, err := manifest.ReadLayout(cfg.ManifestPath)
	if err != nil {
		return metrics.Report{}, err
	}

	runs, err := manifest.EnumerateRuns(layout.DestPath)
	if err != nil {
		return metrics.Report{}, err
	}

	layout.SystemName, layout.BodyNames, err = manifest.DeriveSystem(runs[0], layout.BodyFileBasenames)
	if err != nil {
		return metrics.Report{}, err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return metrics.Report{}, errs.NewIOError("get working directory", err)
	}

	ckptPath := checkpointPath(cwd, layout.DestFolderName)
	store := checkpoint.NewFileStore(ckptPath)

	outcome, err := store.InitOrRestore(cfg.ManifestPath, runs, cfg.Force)
	if err != nil {
		return metrics.Report{}, err
	}

	switch outcome {
	case checkpoint.AlreadyDone:
		return metrics.Report{}, nil
	case checkpoint.ForceReset:
		// Run directories and checkpoint were wiped; recurse once with
		// force disabled, per section 4.6 step 4. If the destination
		// folder was not regenerated by the upstream sweep generator in
		// the meantime, ReadLayout fails with a ConfigError, same as any
		// other sweep pointed at a missing destination folder.
		forced := *cfg
		forced.Force = false
		return RunParallel(ctx, &forced, notifier)
	}

	r := runner.NewProcessRunner(cfg.Binary, cfg.InputFile, cfg.LogFileName, cfg.DescribeArg)

	var toolMeta runner.ToolMetadata
	var arc *archive.Archive
	var gatherer archive.Gatherer

	if cfg.BigPlanet {
		toolMeta, err = r.DescribeSimulator(ctx)
		if err != nil {
			return metrics.Report{}, err
		}
		arcPath := archivePath(cwd, layout.DestFolderName)
		arc = archive.NewArchive(arcPath, archive.NewSQLiteWriter())
		if err := arc.EnsureCreated(); err != nil {
			return metrics.Report{}, err
		}
		gatherer = archive.NewDefaultGatherer()
	}

	m := metrics.NewMetrics()
	sched := scheduler.New(scheduler.Config{
		Cores:         cfg.Cores,
		Quiet:         cfg.Quiet,
		Verbose:       cfg.Verbose,
		Runner:        r,
		Store:         store,
		Metrics:       m,
		Archive:       arc,
		Gatherer:      gatherer,
		SystemName:    layout.SystemName,
		BodyNames:     layout.BodyNames,
		BodyFileNames: layout.BodyFileBasenames,
		LogFileName:   cfg.LogFileName,
		ToolMeta:      toolMeta,
	})

	if err := sched.Run(ctx); err != nil {
		return metrics.Report{}, err
	}

	// Post-join cleanup per section 4.4/4.6: if archive mode was not
	// requested but a stale archive file nonetheless exists, delete it.
	if !cfg.BigPlanet {
		stalePath := archivePath(cwd, layout.DestFolderName)
		if err := os.Remove(stalePath); err != nil && !os.IsNotExist(err) {
			return metrics.Report{}, errs.NewIOError("remove stale archive", err)
		}
	}

	report := m.GenerateReport()
	if !cfg.Quiet {
		fmt.Println(report.String())
	}

	if cfg.NotifyAddr != "" {
		if err := notifier.Notify(cfg.NotifyAddr, report); err != nil {
			return report, fmt.Errorf("failed to notify %s: %w", cfg.NotifyAddr, err)
		}
	}

	return report, nil
}

// checkpointPath implements the checkpoint naming convention from
// section 4.6/6.2: a dotfile in the invocation directory (the process's
// cwd), named after the destination folder. It is deliberately not
// derived from the manifest's own directory, which may differ from cwd.
func checkpointPath(cwd, destFolderName string) string {
	return filepath.Join(cwd, "."+destFolderName)
}

// archivePath implements the archive naming convention from section
// 4.6/6.2: the destination folder name with a ".bpa" suffix, in the
// invocation directory (the process's cwd).
func archivePath(cwd, destFolderName string) string {
	return filepath.Join(cwd, destFolderName+".bpa")
}
