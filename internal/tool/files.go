package tool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileWriter writes "filename|content" payloads under a root directory.
// Relative names only; nothing may resolve outside the root. Writes to the
// same path serialize through a shared lock table.
type FileWriter struct {
	latency time.Duration
	root    string
	locks   *pathLocks
}

// FileReader reads files back from the same root.
type FileReader struct {
	latency time.Duration
	root    string
	locks   *pathLocks
}

// NewFileHandlers builds a writer/reader pair rooted at dir, sharing one
// lock table so reads never observe a half-written file.
func NewFileHandlers(dir string, latency time.Duration) (*FileWriter, *FileReader) {
	locks := newPathLocks()
	w := &FileWriter{latency: latency, root: dir, locks: locks}
	r := &FileReader{latency: latency, root: dir, locks: locks}
	return w, r
}

func (w *FileWriter) Name() string { return "write_file" }

func (w *FileWriter) Description() string {
	return `Writes content to a file, input format: "filename|content"`
}

func (w *FileWriter) Invoke(ctx context.Context, input string) (string, error) {
	if err := simulateLatency(ctx, w.latency); err != nil {
		return "", err
	}

	name, content, found := strings.Cut(input, "|")
	if !found {
		return "", errors.New(`input must be "filename|content"`)
	}
	name = strings.TrimSpace(name)
	content = strings.TrimSpace(content)

	path, err := resolveUnder(w.root, name)
	if err != nil {
		return "", err
	}

	w.locks.Lock(path)
	defer w.locks.Unlock(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for %q: %w", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %q: %w", name, err)
	}

	return "wrote file: " + name, nil
}

func (r *FileReader) Name() string { return "read_file" }

func (r *FileReader) Description() string {
	return "Reads a file and returns its content"
}

func (r *FileReader) Invoke(ctx context.Context, input string) (string, error) {
	if err := simulateLatency(ctx, r.latency); err != nil {
		return "", err
	}

	name := strings.TrimSpace(input)
	path, err := resolveUnder(r.root, name)
	if err != nil {
		return "", err
	}

	r.locks.Lock(path)
	defer r.locks.Unlock(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %q: %w", name, err)
	}
	return string(data), nil
}

// resolveUnder joins name onto root and rejects anything that would land
// outside it.
func resolveUnder(root, name string) (string, error) {
	if name == "" {
		return "", errors.New("empty file name")
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("absolute path %q not allowed", name)
	}

	path := filepath.Join(root, name)
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the workspace", name)
	}
	return path, nil
}
