package doctor

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func writeLines(t *testing.T, path string, n int) {
	t.Helper()
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		fmt.Fprintf(&buf, `{"seq":%d,"pad":"%s"}`+"\n", i, string(bytes.Repeat([]byte("x"), 64)))
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return bytes.Count(data, []byte("\n"))
}

func TestTruncateTailKeepsBoundedTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	writeLines(t, path, 100)

	truncated, err := TruncateTail(path, 1024, 10)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if !truncated {
		t.Fatal("expected truncation of oversized file")
	}
	if got := countLines(t, path); got != 10 {
		t.Errorf("kept %d lines, want 10", got)
	}

	// the kept tail must be the most recent lines
	data, _ := os.ReadFile(path)
	if !bytes.Contains(data, []byte(`"seq":99`)) {
		t.Error("tail does not contain the newest line")
	}
	if bytes.Contains(data, []byte(`"seq":0,`)) {
		t.Error("tail still contains the oldest line")
	}
}

func TestTruncateTailIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	writeLines(t, path, 100)

	if _, err := TruncateTail(path, 1024, 10); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(path)

	truncated, err := TruncateTail(path, 1024, 10)
	if err != nil {
		t.Fatal(err)
	}
	if truncated {
		t.Error("second truncation of already-small file should be a no-op")
	}
	after, _ := os.ReadFile(path)
	if !bytes.Equal(before, after) {
		t.Error("no-op truncation modified the file")
	}
}

func TestTruncateTailSmallFileUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	writeLines(t, path, 5)

	truncated, err := TruncateTail(path, 1024*1024, 10)
	if err != nil {
		t.Fatal(err)
	}
	if truncated {
		t.Error("file under the size bound should not be touched")
	}
}

func TestTruncateTailMissingFile(t *testing.T) {
	truncated, err := TruncateTail(filepath.Join(t.TempDir(), "absent.jsonl"), 10, 5)
	if err != nil {
		t.Fatalf("missing file should be a no-op, got %v", err)
	}
	if truncated {
		t.Error("missing file reported as truncated")
	}
}
