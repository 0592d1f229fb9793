package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Info holds information about a run's scratch directory.
type Info struct {
	RunID     string    // Run the directory belongs to
	Path      string    // Absolute path to the directory
	CreatedAt time.Time // Modification time of the directory entry
}

// Manager hands out per-run scratch directories under a single root. Each
// run's file handlers are rooted in its own directory, so concurrent runs
// never write over each other.
type Manager struct {
	root string
}

// NewManager creates a manager rooted at dir, creating the root if needed.
func NewManager(dir string) (*Manager, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace root: %w", err)
	}
	return &Manager{root: abs}, nil
}

// Root returns the absolute workspace root.
func (m *Manager) Root() string { return m.root }

// Create makes the scratch directory for a run.
func (m *Manager) Create(runID string) (*Info, error) {
	if err := m.checkRunID(runID); err != nil {
		return nil, err
	}

	path := filepath.Join(m.root, runID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	return &Info{RunID: runID, Path: path, CreatedAt: time.Now()}, nil
}

// Cleanup removes a run's scratch directory and everything in it. Removing
// a directory that does not exist is not an error.
func (m *Manager) Cleanup(runID string) error {
	if err := m.checkRunID(runID); err != nil {
		return err
	}

	if err := os.RemoveAll(filepath.Join(m.root, runID)); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}
	return nil
}

// List returns the run directories currently under the root, oldest first.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace root: %w", err)
	}

	var infos []Info
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}
		infos = append(infos, Info{
			RunID:     entry.Name(),
			Path:      filepath.Join(m.root, entry.Name()),
			CreatedAt: fi.ModTime(),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.Before(infos[j].CreatedAt) })
	return infos, nil
}

// Prune removes run directories older than maxAge and returns how many were
// removed.
func (m *Manager) Prune(maxAge time.Duration) (int, error) {
	infos, err := m.List()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, info := range infos {
		if info.CreatedAt.After(cutoff) {
			continue
		}
		if err := m.Cleanup(info.RunID); err != nil {
			return removed, err
		}
		removed++
	}

	return removed, nil
}

// checkRunID rejects IDs that would escape the root or name the root itself.
func (m *Manager) checkRunID(runID string) error {
	if runID == "" || runID == "." || runID == ".." ||
		strings.ContainsAny(runID, `/\`) {
		return fmt.Errorf("invalid run ID %q", runID)
	}
	return nil
}
