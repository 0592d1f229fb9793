package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testManager(t *testing.T) *Manager {
	t.Helper()

	manager, err := NewManager(filepath.Join(t.TempDir(), "workspace"))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return manager
}

func TestCreate(t *testing.T) {
	manager := testManager(t)

	info, err := manager.Create("run_ab12cd34")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Verify run directory exists
	if _, err := os.Stat(info.Path); os.IsNotExist(err) {
		t.Errorf("run directory was not created: %s", info.Path)
	}
	if info.RunID != "run_ab12cd34" {
		t.Errorf("run ID mismatch: got %s", info.RunID)
	}
	if !filepath.IsAbs(info.Path) {
		t.Errorf("expected absolute path, got %s", info.Path)
	}

	// Creating the same run again is not an error
	if _, err := manager.Create("run_ab12cd34"); err != nil {
		t.Errorf("second Create failed: %v", err)
	}
}

func TestCreateRejectsBadID(t *testing.T) {
	manager := testManager(t)

	for _, id := range []string{"", ".", "..", "a/b", `a\b`, "../escape"} {
		if _, err := manager.Create(id); err == nil {
			t.Errorf("expected Create(%q) to fail", id)
		}
	}
}

func TestCleanup(t *testing.T) {
	manager := testManager(t)

	info, err := manager.Create("run_cleanup1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Put a file inside so removal is non-trivial
	if err := os.WriteFile(filepath.Join(info.Path, "out.txt"), []byte("data"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if err := manager.Cleanup("run_cleanup1"); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	if _, err := os.Stat(info.Path); !os.IsNotExist(err) {
		t.Errorf("run directory still exists after cleanup")
	}

	// Cleaning a missing directory is fine
	if err := manager.Cleanup("run_cleanup1"); err != nil {
		t.Errorf("second Cleanup failed: %v", err)
	}

	// Escapes are refused
	if err := manager.Cleanup("../elsewhere"); err == nil {
		t.Error("expected Cleanup of escaping ID to fail")
	}
}

func TestList(t *testing.T) {
	manager := testManager(t)

	for _, id := range []string{"run_one", "run_two", "run_three"} {
		if _, err := manager.Create(id); err != nil {
			t.Fatalf("Create %s failed: %v", id, err)
		}
	}

	// A stray file in the root is not a run directory
	if err := os.WriteFile(filepath.Join(manager.Root(), "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write stray file: %v", err)
	}

	infos, err := manager.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if len(infos) != 3 {
		t.Fatalf("expected 3 run directories, got %d", len(infos))
	}
	seen := make(map[string]bool)
	for _, info := range infos {
		seen[info.RunID] = true
		if info.CreatedAt.IsZero() {
			t.Errorf("run %s has zero timestamp", info.RunID)
		}
	}
	for _, id := range []string{"run_one", "run_two", "run_three"} {
		if !seen[id] {
			t.Errorf("run %s missing from listing", id)
		}
	}
}

func TestPrune(t *testing.T) {
	manager := testManager(t)

	old, err := manager.Create("run_old")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := manager.Create("run_fresh"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Backdate the old directory past the cutoff
	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old.Path, stale, stale); err != nil {
		t.Fatalf("failed to backdate directory: %v", err)
	}

	removed, err := manager.Prune(24 * time.Hour)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 pruned directory, got %d", removed)
	}

	if _, err := os.Stat(old.Path); !os.IsNotExist(err) {
		t.Error("old run directory should be gone")
	}
	infos, err := manager.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 1 || infos[0].RunID != "run_fresh" {
		t.Errorf("expected only run_fresh to remain, got %+v", infos)
	}
}
