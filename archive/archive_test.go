package archive

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/vspace/sweep/runner"
)

// fakeWriter records every call it receives instead of touching SQLite,
// so these tests exercise Archive's locking and group-naming behavior in
// isolation from the concrete backend.
type fakeWriter struct {
	calls []string
}

func (w *fakeWriter) Write(db *sql.DB, data RunData, meta runner.ToolMetadata, systemName, groupName string) error {
	w.calls = append(w.calls, groupName)
	return nil
}

func TestAppendRunUsesRunDirBasenameAsGroup(t *testing.T) {
	dir := t.TempDir()
	w := &fakeWriter{}
	a := NewArchive(filepath.Join(dir, "sweep.bpa"), w)

	runDir := filepath.Join(dir, "dest", "r0")
	if err := a.AppendRun(runDir, RunData{Payload: "x"}, runner.ToolMetadata{Binary: "vplanet"}, "sun"); err != nil {
		t.Fatalf("AppendRun: %v", err)
	}

	if len(w.calls) != 1 || w.calls[0] != "r0" {
		t.Fatalf("expected one write with group %q, got %v", "r0", w.calls)
	}
}

func TestAppendRunOneGroupPerRun(t *testing.T) {
	dir := t.TempDir()
	w := &fakeWriter{}
	a := NewArchive(filepath.Join(dir, "sweep.bpa"), w)

	runs := []string{"r0", "r1", "r2"}
	for _, r := range runs {
		runDir := filepath.Join(dir, "dest", r)
		if err := a.AppendRun(runDir, RunData{Payload: r}, runner.ToolMetadata{}, "sun"); err != nil {
			t.Fatalf("AppendRun(%s): %v", r, err)
		}
	}

	if len(w.calls) != len(runs) {
		t.Fatalf("expected %d writes, got %d", len(runs), len(w.calls))
	}
	seen := make(map[string]bool)
	for _, g := range w.calls {
		if seen[g] {
			t.Fatalf("group %q written more than once", g)
		}
		seen[g] = true
	}
}

func TestEnsureCreatedIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sweep.bpa")
	a := NewArchive(path, NewSQLiteWriter())

	if err := a.EnsureCreated(); err != nil {
		t.Fatalf("EnsureCreated: %v", err)
	}
	if err := a.EnsureCreated(); err != nil {
		t.Fatalf("EnsureCreated (second call): %v", err)
	}
}

func TestDefaultGathererHandlesMissingLog(t *testing.T) {
	dir := t.TempDir()
	g := NewDefaultGatherer()

	data, err := g.Gather(dir, "sun", []string{"earth"}, "vplanet_log", []string{"earth.in"}, runner.ToolMetadata{Binary: "vplanet"})
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	payload, ok := data.Payload.(map[string]any)
	if !ok {
		t.Fatalf("expected map payload, got %T", data.Payload)
	}
	if payload["systemName"] != "sun" {
		t.Fatalf("unexpected systemName: %v", payload["systemName"])
	}
}
