package checkpoint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitOrRestoreFresh(t *testing.T) {
	dir := t.TempDir()
	ckptPath := filepath.Join(dir, ".MySweep")
	store := NewFileStore(ckptPath)

	runs := []string{filepath.Join(dir, "r0"), filepath.Join(dir, "r1")}
	outcome, err := store.InitOrRestore("vspace.in", runs, false)
	if err != nil {
		t.Fatalf("InitOrRestore: %v", err)
	}
	if outcome != Fresh {
		t.Fatalf("expected Fresh outcome, got %v", outcome)
	}

	done, inProgress, pending := store.Counts()
	if done != 0 || inProgress != 0 || pending != 2 {
		t.Fatalf("expected 2 pending runs, got done=%d inProgress=%d pending=%d", done, inProgress, pending)
	}

	contents, err := os.ReadFile(ckptPath)
	if err != nil {
		t.Fatalf("expected checkpoint file to be written: %v", err)
	}
	if !strings.HasPrefix(string(contents), "Vspace File: vspace.in\n") {
		t.Errorf("unexpected checkpoint header: %q", contents)
	}
	if !strings.HasSuffix(string(contents), "THE END\n") {
		t.Errorf("expected checkpoint to end with sentinel, got %q", contents)
	}
}

func TestClaimNextAndMarkComplete(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, ".MySweep"))
	runs := []string{filepath.Join(dir, "r0"), filepath.Join(dir, "r1")}
	if _, err := store.InitOrRestore("vspace.in", runs, false); err != nil {
		t.Fatalf("InitOrRestore: %v", err)
	}

	run, ok, err := store.ClaimNext()
	if err != nil || !ok {
		t.Fatalf("ClaimNext: ok=%v err=%v", ok, err)
	}
	if run != runs[0] {
		t.Errorf("expected to claim %q first, got %q", runs[0], run)
	}

	if err := store.MarkComplete(run); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}

	done, inProgress, pending := store.Counts()
	if done != 1 || inProgress != 0 || pending != 1 {
		t.Fatalf("expected done=1 pending=1, got done=%d inProgress=%d pending=%d", done, inProgress, pending)
	}
}

func TestMarkFailedReturnsRunToPending(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, ".MySweep"))
	runs := []string{filepath.Join(dir, "r0")}
	if _, err := store.InitOrRestore("vspace.in", runs, false); err != nil {
		t.Fatalf("InitOrRestore: %v", err)
	}

	run, _, _ := store.ClaimNext()
	if err := store.MarkFailed(run); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	_, ok, err := store.ClaimNext()
	if err != nil || !ok {
		t.Fatalf("expected failed run to be re-claimable: ok=%v err=%v", ok, err)
	}
}

func TestClaimNextExhausted(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, ".MySweep"))
	runs := []string{filepath.Join(dir, "r0")}
	if _, err := store.InitOrRestore("vspace.in", runs, false); err != nil {
		t.Fatalf("InitOrRestore: %v", err)
	}

	run, ok, err := store.ClaimNext()
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	if err := store.MarkComplete(run); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}

	_, ok, err = store.ClaimNext()
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if ok {
		t.Error("expected no more runs to claim")
	}
}

func TestInitOrRestoreRepairsInProgress(t *testing.T) {
	dir := t.TempDir()
	ckptPath := filepath.Join(dir, ".MySweep")
	runA := filepath.Join(dir, "r0")
	runB := filepath.Join(dir, "r1")

	contents := "Vspace File: vspace.in\n" +
		"Total Number of Simulations: 2\n" +
		runA + " 0\n" +
		runB + " 1\n" +
		"THE END\n"
	if err := os.WriteFile(ckptPath, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewFileStore(ckptPath)
	outcome, err := store.InitOrRestore("vspace.in", []string{runA, runB}, false)
	if err != nil {
		t.Fatalf("InitOrRestore: %v", err)
	}
	if outcome != Restored {
		t.Fatalf("expected Restored outcome, got %v", outcome)
	}

	done, inProgress, pending := store.Counts()
	if done != 1 || inProgress != 0 || pending != 1 {
		t.Fatalf("expected the IN_PROGRESS run to be repaired to PENDING, got done=%d inProgress=%d pending=%d", done, inProgress, pending)
	}
}

func TestInitOrRestoreAlreadyDone(t *testing.T) {
	dir := t.TempDir()
	ckptPath := filepath.Join(dir, ".MySweep")
	run := filepath.Join(dir, "r0")

	contents := "Vspace File: vspace.in\n" +
		"Total Number of Simulations: 1\n" +
		run + " 1\n" +
		"THE END\n"
	if err := os.WriteFile(ckptPath, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewFileStore(ckptPath)
	outcome, err := store.InitOrRestore("vspace.in", []string{run}, false)
	if err != nil {
		t.Fatalf("InitOrRestore: %v", err)
	}
	if outcome != AlreadyDone {
		t.Fatalf("expected AlreadyDone outcome, got %v", outcome)
	}
	if _, err := os.Stat(ckptPath); err != nil {
		t.Errorf("expected checkpoint file to be left in place without --force: %v", err)
	}
}

func TestInitOrRestoreForceReset(t *testing.T) {
	dir := t.TempDir()
	ckptPath := filepath.Join(dir, ".MySweep")
	run := filepath.Join(dir, "r0")
	if err := os.MkdirAll(run, 0o755); err != nil {
		t.Fatal(err)
	}

	contents := "Vspace File: vspace.in\n" +
		"Total Number of Simulations: 1\n" +
		run + " 1\n" +
		"THE END\n"
	if err := os.WriteFile(ckptPath, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewFileStore(ckptPath)
	outcome, err := store.InitOrRestore("vspace.in", []string{run}, true)
	if err != nil {
		t.Fatalf("InitOrRestore: %v", err)
	}
	if outcome != ForceReset {
		t.Fatalf("expected ForceReset outcome, got %v", outcome)
	}
	if _, err := os.Stat(ckptPath); !os.IsNotExist(err) {
		t.Errorf("expected checkpoint file to be removed after force reset")
	}
	if _, err := os.Stat(run); !os.IsNotExist(err) {
		t.Errorf("expected run directory to be removed after force reset")
	}
}
