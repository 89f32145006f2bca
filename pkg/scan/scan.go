// Package scan discovers upload candidates on the local filesystem and
// partitions them into bounded batches.
package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Files lists the regular files directly under dir, sorted by path so two
// scans of an unchanged directory always yield the same order. Directories,
// broken symlinks, and other non-regular entries are skipped; symlinks that
// resolve to regular files are included.
func Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	files := make([]string, 0, len(entries))

	for _, e := range entries {
		path := filepath.Join(dir, e.Name())

		info, err := os.Stat(path)
		if err != nil {
			// Dangling symlink or entry that vanished mid-scan.
			continue
		}

		if !info.Mode().IsRegular() {
			continue
		}

		files = append(files, path)
	}

	sort.Strings(files)

	return files, nil
}

// TotalSize sums the sizes of the given files. Best effort: files that
// cannot be statted contribute zero.
func TotalSize(paths []string) int64 {
	var total int64

	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			total += info.Size()
		}
	}

	return total
}

// Batches splits paths into consecutive non-overlapping chunks of at most
// size entries; the final chunk may be smaller. The chunks are subslices of
// paths, so the sorted order is preserved across batch boundaries.
func Batches(paths []string, size int) ([][]string, error) {
	if size < 1 {
		return nil, fmt.Errorf("batch size must be >= 1, got %d", size)
	}

	batches := make([][]string, 0, (len(paths)+size-1)/size)

	for start := 0; start < len(paths); start += size {
		end := start + size
		if end > len(paths) {
			end = len(paths)
		}

		batches = append(batches, paths[start:end])
	}

	return batches, nil
}
