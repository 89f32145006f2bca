package scan_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/uploadoor/pkg/scan"
)

func TestFiles_SortedAndFiltered(t *testing.T) {
	dir := t.TempDir()

	// Created out of order on purpose.
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		require.NoError(
			t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644),
		)
	}

	// A subdirectory must be filtered out.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))

	// A dangling symlink must be filtered out.
	require.NoError(
		t, os.Symlink(
			filepath.Join(dir, "does-not-exist"),
			filepath.Join(dir, "dangling"),
		),
	)

	// A symlink to a regular file resolves and is included.
	require.NoError(
		t, os.Symlink(
			filepath.Join(dir, "alpha"),
			filepath.Join(dir, "delta"),
		),
	)

	files, err := scan.Files(dir)
	require.NoError(t, err)

	want := []string{
		filepath.Join(dir, "alpha"),
		filepath.Join(dir, "bravo"),
		filepath.Join(dir, "charlie"),
		filepath.Join(dir, "delta"),
	}
	assert.Equal(t, want, files)
}

func TestFiles_Deterministic(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"b", "a", "c", "0", "z"} {
		require.NoError(
			t, os.WriteFile(filepath.Join(dir, name), nil, 0o644),
		)
	}

	first, err := scan.Files(dir)
	require.NoError(t, err)

	second, err := scan.Files(dir)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestFiles_MissingDirectory(t *testing.T) {
	_, err := scan.Files(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading directory")
}

func TestFiles_EmptyDirectory(t *testing.T) {
	files, err := scan.Files(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestTotalSize(t *testing.T) {
	dir := t.TempDir()

	require.NoError(
		t, os.WriteFile(filepath.Join(dir, "a"), make([]byte, 100), 0o644),
	)
	require.NoError(
		t, os.WriteFile(filepath.Join(dir, "b"), make([]byte, 28), 0o644),
	)

	files, err := scan.Files(dir)
	require.NoError(t, err)

	assert.Equal(t, int64(128), scan.TotalSize(files))

	// Vanished files contribute zero instead of failing.
	assert.Equal(
		t, int64(128),
		scan.TotalSize(append(files, filepath.Join(dir, "gone"))),
	)
}

func TestBatches(t *testing.T) {
	paths := []string{"a", "b", "c", "d", "e"}

	tests := []struct {
		name string
		size int
		want [][]string
	}{
		{
			name: "even split with remainder",
			size: 2,
			want: [][]string{{"a", "b"}, {"c", "d"}, {"e"}},
		},
		{
			name: "size one",
			size: 1,
			want: [][]string{{"a"}, {"b"}, {"c"}, {"d"}, {"e"}},
		},
		{
			name: "size larger than input",
			size: 10,
			want: [][]string{{"a", "b", "c", "d", "e"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scan.Batches(paths, tt.size)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			// The batches partition the input: no gaps, no duplicates.
			var flat []string
			for _, b := range got {
				flat = append(flat, b...)
			}
			assert.Equal(t, paths, flat)
		})
	}
}

func TestBatches_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := scan.Batches([]string{"a"}, size)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch size")
	}
}

func TestBatches_Empty(t *testing.T) {
	got, err := scan.Batches(nil, 4)
	require.NoError(t, err)
	assert.Empty(t, got)
}
