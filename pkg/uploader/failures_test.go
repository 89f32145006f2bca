package uploader_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/uploadoor/pkg/uploader"
)

func TestFailureSink_ConcurrentWritesDoNotInterleave(t *testing.T) {
	const writers = 32

	logPath := filepath.Join(t.TempDir(), "failures.log")

	sink, err := uploader.OpenFailureSink(logPath)
	require.NoError(t, err)

	var wg sync.WaitGroup

	for i := 0; i < writers; i++ {
		i := i

		wg.Add(1)

		go func() {
			defer wg.Done()

			path := fmt.Sprintf("/data/file-%03d.json", i)
			detail := fmt.Sprintf("HTTP 500 for %s", path)
			assert.NoError(t, sink.Record(path, detail))
		}()
	}

	wg.Wait()
	require.NoError(t, sink.Close())

	lines := failureLines(t, logPath)
	require.Len(t, lines, writers)

	// Every line is whole: "<path> | HTTP 500 for <path>".
	for _, line := range lines {
		parts := strings.SplitN(line, " | ", 2)
		require.Len(t, parts, 2, "malformed line: %q", line)
		assert.Equal(t, "HTTP 500 for "+parts[0], parts[1])
	}
}

func TestFailureSink_AppendsWithoutTruncating(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "failures.log")

	require.NoError(
		t, os.WriteFile(logPath, []byte("/old/run.json | HTTP 503 for /old/run.json\n"), 0o644),
	)

	sink, err := uploader.OpenFailureSink(logPath)
	require.NoError(t, err)

	require.NoError(t, sink.Record("/new/file.json", "READ_ERR gone for /new/file.json"))
	require.NoError(t, sink.Close())

	lines := failureLines(t, logPath)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "/old/run.json")
	assert.Contains(t, lines[1], "/new/file.json")
}

func TestFailureSink_UnopenablePath(t *testing.T) {
	_, err := uploader.OpenFailureSink(
		filepath.Join(t.TempDir(), "missing", "failures.log"),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening failure log")
}

func TestOutcome_Detail(t *testing.T) {
	tests := []struct {
		name    string
		outcome uploader.Outcome
		want    string
	}{
		{
			name:    "http status",
			outcome: uploader.Outcome{Class: uploader.ClassHTTP, Status: 500},
			want:    "HTTP 500 for /d/a.json",
		},
		{
			name:    "transport",
			outcome: uploader.Outcome{Class: uploader.ClassTransport, Err: fmt.Errorf("connection refused")},
			want:    "ERR connection refused for /d/a.json",
		},
		{
			name:    "read",
			outcome: uploader.Outcome{Class: uploader.ClassRead, Err: fmt.Errorf("no such file")},
			want:    "READ_ERR no such file for /d/a.json",
		},
		{
			name:    "success has no detail",
			outcome: uploader.Outcome{Class: uploader.ClassSuccess},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.outcome.Detail("/d/a.json"))
			assert.Equal(
				t, tt.outcome.Class == uploader.ClassSuccess, tt.outcome.OK(),
			)
		})
	}
}
