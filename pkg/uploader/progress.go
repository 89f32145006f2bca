package uploader

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

const progressRefreshRate = 120 * time.Millisecond

// tracker is the shared completion counter behind the live progress bar.
// The counter is authoritative; the bar is an optional view of it so that
// headless runs and tests count completions without rendering anything.
type tracker struct {
	total     int64
	completed atomic.Int64

	p   *mpb.Progress
	bar *mpb.Bar
}

// newTracker creates a tracker for total tasks. A nil out disables
// rendering entirely.
func newTracker(total int64, out io.Writer) *tracker {
	t := &tracker{total: total}

	if out == nil {
		return t
	}

	t.p = mpb.New(
		mpb.WithOutput(out),
		mpb.WithWidth(64),
		mpb.WithRefreshRate(progressRefreshRate),
	)

	t.bar = t.p.New(total,
		mpb.BarStyle(),
		mpb.PrependDecorators(
			decor.Elapsed(decor.ET_STYLE_HHMMSS),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("%d / %d"),
			decor.Percentage(decor.WCSyncSpace),
			decor.AverageETA(decor.ET_STYLE_GO, decor.WCSyncSpace),
		),
	)

	return t
}

// increment records one completed task, whatever its outcome.
func (t *tracker) increment() {
	t.completed.Add(1)

	if t.bar != nil {
		t.bar.Increment()
	}
}

// count returns the number of completed tasks.
func (t *tracker) count() int64 {
	return t.completed.Load()
}

// wait blocks until the bar has rendered its final state. No-op when
// rendering is disabled.
func (t *tracker) wait() {
	if t.p != nil {
		t.p.Wait()
	}
}
