// Package scheduler implements the worker pool pattern specified in
// section 4.5 of the design specification. It dispatches runs to a pool
// of goroutines, each driving the simulator to completion, updating the
// checkpoint store, and optionally appending to the shared archive.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/vspace/sweep/archive"
	"github.com/vspace/sweep/checkpoint"
	"github.com/vspace/sweep/metrics"
	"github.com/vspace/sweep/runner"
)

// WorkerStatus tracks one worker's progress and last error, as required
// by section 4.5 for progress reporting and diagnostics.
type WorkerStatus struct {
	LastErrorTime time.Time
	StartTime     time.Time
	LastActive    time.Time
	LastError     error
	CurrentRun    string
	RunsCompleted int64
	RunsFailed    int64
	ID            int
}

// Scheduler implements the worker pool from section 4.5. It owns no
// locks of its own beyond worker-status bookkeeping; the checkpoint
// store and the archive each own the locking their section requires.
type Scheduler struct {
	cores   int
	quiet   bool
	verbose bool

	runner  runner.Runner
	store   checkpoint.Store
	metrics *metrics.Metrics

	archive  *archive.Archive // nil when archive mode is disabled
	gatherer archive.Gatherer

	systemName    string
	bodyNames     []string
	bodyFileNames []string
	logFileName   string
	toolMeta      runner.ToolMetadata

	workerStatus map[int]*WorkerStatus
	statusMu     sync.RWMutex
}

// Config bundles the fixed, per-sweep inputs a Scheduler needs. It is
// assembled once by the orchestrator before Run is called.
type Config struct {
	Cores   int
	Quiet   bool
	Verbose bool

	Runner  runner.Runner
	Store   checkpoint.Store
	Metrics *metrics.Metrics

	Archive  *archive.Archive
	Gatherer archive.Gatherer

	SystemName    string
	BodyNames     []string
	BodyFileNames []string
	LogFileName   string
	ToolMeta      runner.ToolMetadata
}

// New creates a Scheduler from cfg.
func New(cfg Config) *Scheduler {
	return &Scheduler{
		cores:         cfg.Cores,
		quiet:         cfg.Quiet,
		verbose:       cfg.Verbose,
		runner:        cfg.Runner,
		store:         cfg.Store,
		metrics:       cfg.Metrics,
		archive:       cfg.Archive,
		gatherer:      cfg.Gatherer,
		systemName:    cfg.SystemName,
		bodyNames:     cfg.BodyNames,
		bodyFileNames: cfg.BodyFileNames,
		logFileName:   cfg.LogFileName,
		toolMeta:      cfg.ToolMeta,
		workerStatus:  make(map[int]*WorkerStatus),
	}
}

// Run implements the dispatch loop from section 4.5: it starts Cores
// workers, each of which repeatedly claims the next PENDING run from the
// store until none remain, and waits for them all to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	if !s.quiet {
		go s.reportProgress(ctx)
	}

	var wg sync.WaitGroup
	for i := 0; i < s.cores; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.initWorker(workerID)
			s.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()

	return nil
}

// initWorker initializes a worker's status tracking as required by
// section 4.5.
func (s *Scheduler) initWorker(id int) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.workerStatus[id] = &WorkerStatus{
		ID:        id,
		StartTime: time.Now(),
	}
}

// updateWorkerStatus applies fn to the status for id under the status
// lock.
func (s *Scheduler) updateWorkerStatus(id int, fn func(*WorkerStatus)) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	if status, ok := s.workerStatus[id]; ok {
		fn(status)
		status.LastActive = time.Now()
	}
}

// reportProgress implements the progress reporting requirement from
// section 4.5. It periodically prints claim counts to stdout.
func (s *Scheduler) reportProgress(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			done, inProgress, pending := s.store.Counts()
			fmt.Printf("progress: %d complete, %d in progress, %d pending\n", done, inProgress, pending)
		case <-ctx.Done():
			return
		}
	}
}

// worker implements the hot path from section 4.5: claim a run, execute
// the simulator, classify, optionally archive, update the checkpoint,
// repeat until no PENDING run remains.
//
// HOT PATH: claim -> execute simulator -> classify -> (optional)
// gather+archive -> checkpoint. The simulator invocation in s.runner.Execute
// dominates wall-clock time; checkpoint writes and archive appends are
// comparatively cheap, single-entry I/O.
func (s *Scheduler) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		runDir, ok, err := s.store.ClaimNext()
		if err != nil {
			s.recordError(id, err)
			return
		}
		if !ok {
			return
		}

		s.updateWorkerStatus(id, func(st *WorkerStatus) {
			st.CurrentRun = runDir
		})
		if s.verbose {
			fmt.Printf("worker %d: starting %s\n", id, runDir)
		}

		class := s.runner.Execute(ctx, runDir)

		switch class {
		case runner.Success:
			if err := s.archiveRun(runDir); err != nil {
				// ArchiveError: the run is marked FAILED and becomes
				// eligible for retry, per section 4.4/7. Other workers
				// continue.
				s.recordError(id, err)
				if markErr := s.store.MarkFailed(runDir); markErr != nil {
					s.recordError(id, markErr)
					return
				}
				s.metrics.RecordFailed()
				continue
			}
			if s.archive != nil {
				s.metrics.RecordArchived()
			}
			if err := s.store.MarkComplete(runDir); err != nil {
				s.recordError(id, err)
				return
			}
			s.metrics.RecordCompleted()
			s.updateWorkerStatus(id, func(st *WorkerStatus) {
				st.RunsCompleted++
			})
		case runner.Failure:
			if err := s.store.MarkFailed(runDir); err != nil {
				s.recordError(id, err)
				return
			}
			s.metrics.RecordFailed()
			s.updateWorkerStatus(id, func(st *WorkerStatus) {
				st.RunsFailed++
			})
			if s.verbose {
				fmt.Printf("worker %d: %s failed, returned to pending\n", id, runDir)
			}
		}
	}
}

// archiveRun gathers one run's outputs (lock-free) and appends them to
// the shared archive (under the archive's own lock), as specified in
// section 4.4/4.5's gather/write separation. It is a no-op when archive
// mode is disabled.
func (s *Scheduler) archiveRun(runDir string) error {
	if s.archive == nil {
		return nil
	}
	data, err := s.gatherer.Gather(runDir, s.systemName, s.bodyNames, s.logFileName, s.bodyFileNames, s.toolMeta)
	if err != nil {
		return err
	}
	return s.archive.AppendRun(runDir, data, s.toolMeta, s.systemName)
}

// recordError records a worker error for diagnostics.
func (s *Scheduler) recordError(id int, err error) {
	s.updateWorkerStatus(id, func(st *WorkerStatus) {
		st.LastError = err
		st.LastErrorTime = time.Now()
	})
}
