// Package uploader implements the concurrent upload dispatch engine:
// admission-controlled tasks, batch-bounded fan-out/join, and shared
// progress and failure accounting.
//
// Concurrency and batching are governed independently. The semaphore bounds
// how many tasks are simultaneously past admission; batches bound how many
// task buffers exist in memory at once. Batch size is normally set well
// above concurrency, so batches are throughput-neutral.
package uploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethpandaops/uploadoor/pkg/scan"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config controls a single upload run.
type Config struct {
	// URL is the destination endpoint. File bytes are POSTed verbatim.
	URL string

	// Concurrency bounds the number of simultaneously executing tasks.
	Concurrency int

	// BatchSize bounds how many task objects and buffers exist at once.
	BatchSize int

	// Timeout applies to both the connection and the full request.
	Timeout time.Duration

	// RateLimit paces request dispatch in requests per second.
	// Zero disables pacing.
	RateLimit float64

	// FailureLogPath is the location of the append-only failure log.
	FailureLogPath string

	// Progress receives the live progress bar. Nil disables rendering;
	// completion counting is unaffected.
	Progress io.Writer
}

// Summary reports the terminal state of one run.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// Uploader runs admission-controlled concurrent uploads.
type Uploader interface {
	// Run uploads every file batch by batch, returning once all tasks
	// are terminal. Per-file failures are recorded in the failure log,
	// never returned; the error covers setup problems only.
	Run(ctx context.Context, files []string) (*Summary, error)
}

// Compile-time interface check.
var _ Uploader = (*uploader)(nil)

type uploader struct {
	log     logrus.FieldLogger
	cfg     *Config
	client  *http.Client
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// New creates an Uploader. The HTTP client is built once and shared by
// every task, with the connection pool sized to the concurrency ceiling.
func New(log logrus.FieldLogger, cfg *Config) (Uploader, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("destination url is required")
	}

	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be >= 1, got %d", cfg.Concurrency)
	}

	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("batch size must be >= 1, got %d", cfg.BatchSize)
	}

	u := &uploader{
		log: log.WithField("component", "uploader"),
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: cfg.Timeout,
				}).DialContext,
				MaxIdleConnsPerHost: cfg.Concurrency,
			},
		},
		sem: semaphore.NewWeighted(int64(cfg.Concurrency)),
	}

	if cfg.RateLimit > 0 {
		u.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Concurrency)
	}

	return u, nil
}

// Run fans out one task per file within each batch and joins the whole
// batch before advancing to the next. A panicking task is reported and
// counted; it never takes its siblings or the run down.
func (u *uploader) Run(ctx context.Context, files []string) (*Summary, error) {
	start := time.Now()

	if len(files) == 0 {
		u.log.Info("No files to upload")

		return &Summary{}, nil
	}

	batches, err := scan.Batches(files, u.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	sink, err := OpenFailureSink(u.cfg.FailureLogPath)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := sink.Close(); err != nil {
			u.log.WithError(err).Warn("Failed to close failure log")
		}
	}()

	progress := newTracker(int64(len(files)), u.cfg.Progress)

	var failed atomic.Int64

	for _, batch := range batches {
		var wg sync.WaitGroup

		for _, path := range batch {
			path := path

			wg.Add(1)

			go func() {
				defer wg.Done()

				// Runs after the recover below, so a faulted task
				// still counts toward completion.
				defer progress.increment()

				defer func() {
					if r := recover(); r != nil {
						u.log.WithField("path", path).
							Errorf("Task fault: %v\n%s", r, debug.Stack())
					}
				}()

				outcome := u.runTask(ctx, path)

				if !outcome.OK() {
					failed.Add(1)

					if err := sink.Record(path, outcome.Detail(path)); err != nil {
						u.log.WithError(err).WithField("path", path).
							Warn("Failed to record failure")
					}
				}
			}()
		}

		// Strict barrier: every task of this batch is terminal before
		// the next batch spawns.
		wg.Wait()
	}

	progress.wait()

	completed := int(progress.count())
	nFailed := int(failed.Load())

	return &Summary{
		Total:     len(files),
		Succeeded: completed - nFailed,
		Failed:    nFailed,
		Duration:  time.Since(start),
	}, nil
}

// runTask executes the per-file state machine: admit, read, send,
// classify. The admission permit is released on every exit path.
func (u *uploader) runTask(ctx context.Context, path string) Outcome {
	if err := u.sem.Acquire(ctx, 1); err != nil {
		// Only possible when the surrounding context is torn down;
		// classify so the task still terminates with an outcome.
		return transportOutcome(err)
	}
	defer u.sem.Release(1)

	data, err := os.ReadFile(path)
	if err != nil {
		return readOutcome(err)
	}

	if u.limiter != nil {
		if err := u.limiter.Wait(ctx); err != nil {
			return transportOutcome(err)
		}
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, u.cfg.URL, bytes.NewReader(data),
	)
	if err != nil {
		return transportOutcome(err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return transportOutcome(err)
	}

	defer func() { _ = resp.Body.Close() }()

	// Drain so the connection returns to the pool.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return successOutcome()
	}

	return httpOutcome(resp.StatusCode)
}
