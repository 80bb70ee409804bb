// Package archive implements the archive-writer functionality specified
// in section 4.4 of the design specification. It wraps a single shared
// binary archive file whose underlying library is not concurrent-write
// safe, serializing every open/write/close behind one exclusive lock so
// the worker pool never needs to know that constraint exists.
package archive

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vspace/sweep/errs"
	"github.com/vspace/sweep/runner"
)

// RunData is the opaque, in-memory payload produced by Gather and
// consumed by Write, as defined in section 4.4. The core never inspects
// its contents.
type RunData struct {
	Payload any
}

// Gatherer reads one run directory's outputs into an opaque RunData
// value. Gather is pure and lock-free: it is always called outside the
// archive lock, per section 4.5.
type Gatherer interface {
	Gather(runDir, systemName string, bodyNames []string, logFileName string, bodyFileNames []string, meta runner.ToolMetadata) (RunData, error)
}

// Writer mutates the archive with one run's data. Write always runs
// inside the archive lock.
type Writer interface {
	Write(db *sql.DB, data RunData, meta runner.ToolMetadata, systemName, groupName string) error
}

// schema creates the single table this archive format uses: one row per
// completed run, keyed by the run directory's basename (the "group" of
// section 3), payload stored as a JSON BLOB.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	group_name TEXT PRIMARY KEY,
	system_name TEXT NOT NULL,
	tool_binary TEXT NOT NULL,
	tool_description TEXT NOT NULL,
	payload_json BLOB NOT NULL
);
`

// Archive wraps one binary archive file behind an exclusive writer lock,
// as specified in section 4.4. At most one worker holds the file open at
// a time; this is how the scheduler tolerates a non-concurrent-writer
// archive library.
type Archive struct {
	mu     sync.Mutex
	path   string
	writer Writer
}

// NewArchive creates an Archive at path using writer to populate each
// run's group. It does not create the file; call EnsureCreated first if
// the caller needs the archive to exist before the first run completes.
func NewArchive(path string, writer Writer) *Archive {
	return &Archive{path: path, writer: writer}
}

// Path returns the archive's backing file path.
func (a *Archive) Path() string { return a.path }

// EnsureCreated creates an empty archive file if one does not already
// exist, as specified in section 3's Archive lifecycle.
func (a *Archive) EnsureCreated() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := os.Stat(a.path); err == nil {
		return nil
	}
	db, err := sql.Open("sqlite3", a.path)
	if err != nil {
		return errs.NewIOError("create archive", err)
	}
	defer db.Close()
	if _, err := db.Exec(schema); err != nil {
		return errs.NewIOError("create archive", err)
	}
	return nil
}

// AppendRun implements the component operation from section 4.4: acquire
// the lock, open the archive (creating it if absent), delegate to the
// injected Writer, close the handle on every exit path, release the
// lock.
func (a *Archive) AppendRun(runDir string, data RunData, meta runner.ToolMetadata, systemName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	db, err := sql.Open("sqlite3", a.path)
	if err != nil {
		return errs.NewArchiveError(runDir, fmt.Errorf("failed to open archive: %w", err))
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return errs.NewArchiveError(runDir, fmt.Errorf("failed to prepare archive schema: %w", err))
	}

	groupName := filepath.Base(runDir)
	if err := a.writer.Write(db, data, meta, systemName, groupName); err != nil {
		return errs.NewArchiveError(runDir, err)
	}
	return nil
}

// SQLiteWriter is the default Writer: it stores each run's payload as a
// JSON BLOB in a single table, grounded on the SQLite archive backend
// pattern of storing job data as compressed/plain JSON BLOBs keyed by a
// unique identifier.
type SQLiteWriter struct{}

// NewSQLiteWriter creates a SQLiteWriter.
func NewSQLiteWriter() *SQLiteWriter { return &SQLiteWriter{} }

// Write implements Writer by upserting one row per group name.
func (w *SQLiteWriter) Write(db *sql.DB, data RunData, meta runner.ToolMetadata, systemName, groupName string) error {
	payload, err := json.Marshal(data.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode run payload: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO runs (group_name, system_name, tool_binary, tool_description, payload_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(group_name) DO UPDATE SET
			system_name = excluded.system_name,
			tool_binary = excluded.tool_binary,
			tool_description = excluded.tool_description,
			payload_json = excluded.payload_json
	`, groupName, systemName, meta.Binary, meta.Description, payload)
	if err != nil {
		return fmt.Errorf("failed to write run %s: %w", groupName, err)
	}
	return nil
}

// DefaultGatherer is a reasonable concrete Gatherer: it records the
// per-run log tail and the list of body input file names as the opaque
// payload. Real data extraction (flattening simulator-specific output
// files into typed datasets) is out of scope per section 1; callers that
// need that inject their own Gatherer.
type DefaultGatherer struct{}

// NewDefaultGatherer creates a DefaultGatherer.
func NewDefaultGatherer() *DefaultGatherer { return &DefaultGatherer{} }

// Gather implements Gatherer.
func (g *DefaultGatherer) Gather(runDir, systemName string, bodyNames []string, logFileName string, bodyFileNames []string, meta runner.ToolMetadata) (RunData, error) {
	logPath := filepath.Join(runDir, logFileName)
	logBytes, err := os.ReadFile(logPath)
	if err != nil {
		logBytes = nil // a missing log is not fatal to gathering
	}

	payload := map[string]any{
		"systemName":    systemName,
		"bodyNames":     bodyNames,
		"bodyFiles":     bodyFileNames,
		"logTail":       tail(logBytes, 4096),
		"toolBinary":    meta.Binary,
		"toolDescribed": meta.Description != "",
	}
	return RunData{Payload: payload}, nil
}

// tail returns the last n bytes of b, or all of b if shorter.
func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[len(b)-n:])
}
