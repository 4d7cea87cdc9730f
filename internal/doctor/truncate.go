package doctor

import (
	"fmt"
	"os"
)

// TruncateTail bounds an append-only log file: when the file exceeds
// maxBytes, it is atomically replaced by its last keepLines lines.
// Truncating an already-small file is a no-op, so repeated passes are
// idempotent. Missing files are a no-op too.
func TruncateTail(path string, maxBytes int64, keepLines int) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() <= maxBytes {
		return false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	tail := lastLines(data, keepLines)

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, tail, 0644); err != nil {
		return false, fmt.Errorf("write truncated %s: %w", path, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return false, fmt.Errorf("replace %s: %w", path, err)
	}
	return true, nil
}

// lastLines returns the final n newline-terminated lines of data.
func lastLines(data []byte, n int) []byte {
	if n <= 0 {
		return nil
	}
	// walk backwards counting newlines; the trailing newline (if any)
	// does not start a line
	end := len(data)
	if end > 0 && data[end-1] == '\n' {
		end--
	}
	seen := 0
	for i := end - 1; i >= 0; i-- {
		if data[i] == '\n' {
			seen++
			if seen == n {
				return data[i+1:]
			}
		}
	}
	return data
}
