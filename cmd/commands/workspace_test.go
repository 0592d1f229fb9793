package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yaxingson/mini-agent/internal/workspace"
)

// writeWorkspaceConfig writes a config whose workspace root lives in dir.
func writeWorkspaceConfig(t *testing.T, dir string) (cfgPath, wsRoot string) {
	t.Helper()

	wsRoot = filepath.Join(dir, "ws")
	cfgPath = filepath.Join(dir, "config.json")
	config := fmt.Sprintf(`{"workspace": {"root": %q}, "history": {"enabled": false}}`, wsRoot)
	if err := os.WriteFile(cfgPath, []byte(config), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath, wsRoot
}

// TestWorkspaceListCommand_Empty verifies listing an empty root succeeds.
func TestWorkspaceListCommand_Empty(t *testing.T) {
	cfgPath, _ := writeWorkspaceConfig(t, t.TempDir())

	err := NewRootCommand().Run(context.Background(), []string{"miniagent", "--config", cfgPath, "workspace", "list"})
	if err != nil {
		t.Fatalf("workspace list failed: %v", err)
	}
}

// TestWorkspacePruneCommand verifies prune removes only workspaces older
// than the threshold.
func TestWorkspacePruneCommand(t *testing.T) {
	cfgPath, wsRoot := writeWorkspaceConfig(t, t.TempDir())

	manager, err := workspace.NewManager(wsRoot)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	for _, runID := range []string{"run_old", "run_new"} {
		if _, err := manager.Create(runID); err != nil {
			t.Fatalf("Create(%s) failed: %v", runID, err)
		}
	}

	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(filepath.Join(wsRoot, "run_old"), old, old); err != nil {
		t.Fatalf("backdate workspace: %v", err)
	}

	err = NewRootCommand().Run(context.Background(), []string{"miniagent", "--config", cfgPath, "workspace", "prune", "--max-age", "24h"})
	if err != nil {
		t.Fatalf("workspace prune failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(wsRoot, "run_old")); !os.IsNotExist(err) {
		t.Errorf("expected run_old to be pruned, stat returned: %v", err)
	}
	if _, err := os.Stat(filepath.Join(wsRoot, "run_new")); err != nil {
		t.Errorf("expected run_new to survive the prune: %v", err)
	}
}

// TestToolsCommand lists the registered operations without error.
func TestToolsCommand(t *testing.T) {
	cfgPath, _ := writeWorkspaceConfig(t, t.TempDir())

	err := NewRootCommand().Run(context.Background(), []string{"miniagent", "--config", cfgPath, "tools"})
	if err != nil {
		t.Fatalf("tools command failed: %v", err)
	}
}

// TestHistoryListCommand_Empty verifies listing a fresh history store
// succeeds.
func TestHistoryListCommand_Empty(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	config := fmt.Sprintf(`{"history": {"enabled": true, "path": %q}}`, filepath.Join(dir, "history.db"))
	if err := os.WriteFile(cfgPath, []byte(config), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	err := NewRootCommand().Run(context.Background(), []string{"miniagent", "--config", cfgPath, "history", "list"})
	if err != nil {
		t.Fatalf("history list failed: %v", err)
	}
}
