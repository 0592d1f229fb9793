package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// TestFileHandlers_WriteThenRead verifies the writer/reader roundtrip under
// a shared root.
func TestFileHandlers_WriteThenRead(t *testing.T) {
	dir := t.TempDir()
	w, r := NewFileHandlers(dir, 0)

	out, err := w.Invoke(context.Background(), "notes/report.txt| hello world ")
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if out != "wrote file: notes/report.txt" {
		t.Errorf("unexpected write confirmation: %q", out)
	}

	// Content lands under the root, trimmed.
	data, err := os.ReadFile(filepath.Join(dir, "notes", "report.txt"))
	if err != nil {
		t.Fatalf("reading written file from disk: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("expected trimmed content %q on disk, got %q", "hello world", string(data))
	}

	got, err := r.Invoke(context.Background(), "notes/report.txt")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got != "hello world" {
		t.Errorf("expected %q from reader, got %q", "hello world", got)
	}
}

// TestFileWriter_MissingSeparator verifies the payload format is enforced.
func TestFileWriter_MissingSeparator(t *testing.T) {
	w, _ := NewFileHandlers(t.TempDir(), 0)

	_, err := w.Invoke(context.Background(), "no separator here")
	if err == nil {
		t.Fatal("expected error for payload without separator, got nil")
	}
	if !strings.Contains(err.Error(), "filename|content") {
		t.Errorf("expected error to describe the format, got: %v", err)
	}
}

// TestFileHandlers_RejectEscapes verifies paths cannot leave the root.
func TestFileHandlers_RejectEscapes(t *testing.T) {
	w, r := NewFileHandlers(t.TempDir(), 0)

	testCases := []struct {
		name  string
		input string
	}{
		{name: "parent traversal", input: "../escape.txt|data"},
		{name: "nested traversal", input: "a/../../b.txt|data"},
		{name: "absolute path", input: "/etc/passwd|data"},
		{name: "empty name", input: "|data"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := w.Invoke(context.Background(), tc.input); err == nil {
				t.Errorf("expected write %q to be rejected", tc.input)
			}
		})
	}

	if _, err := r.Invoke(context.Background(), "../outside.txt"); err == nil {
		t.Error("expected read escape to be rejected")
	}
}

// TestFileReader_MissingFile verifies reading an absent file fails.
func TestFileReader_MissingFile(t *testing.T) {
	_, r := NewFileHandlers(t.TempDir(), 0)

	_, err := r.Invoke(context.Background(), "does-not-exist.txt")
	if err == nil {
		t.Fatal("expected error reading missing file, got nil")
	}
	if !strings.Contains(err.Error(), "does-not-exist.txt") {
		t.Errorf("expected error to name the file, got: %v", err)
	}
}

// TestFileWriter_ConcurrentSamePath verifies writes to one path serialize:
// the final content is exactly one writer's payload, never interleaved.
func TestFileWriter_ConcurrentSamePath(t *testing.T) {
	dir := t.TempDir()
	w, r := NewFileHandlers(dir, 0)

	const writers = 20
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			payload := fmt.Sprintf("shared.txt|writer-%02d", n)
			if _, err := w.Invoke(context.Background(), payload); err != nil {
				t.Errorf("writer %d failed: %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := r.Invoke(context.Background(), "shared.txt")
	if err != nil {
		t.Fatalf("read after concurrent writes failed: %v", err)
	}
	if !strings.HasPrefix(got, "writer-") || len(got) != len("writer-00") {
		t.Errorf("expected exactly one writer's payload, got %q", got)
	}
}
