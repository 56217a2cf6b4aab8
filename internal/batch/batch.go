// Package batch runs the retry controlled fetch of every work item, either
// sequentially or on a bounded worker pool, and aggregates the outcomes.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"ytbatch/internal/downloader"
	"ytbatch/internal/entity"
	"ytbatch/internal/observability"
	"ytbatch/internal/retry"
	"ytbatch/pkg/calc"
	"ytbatch/pkg/gen"

	"golang.org/x/sync/errgroup"
)

const dirPerm = 0o755

// Fetcher performs a single fetch attempt.
type Fetcher interface {
	Fetch(ctx context.Context, url string, req downloader.Request) entity.Outcome
}

// Options configures a Runner.
type Options struct {
	// Workers is the concurrency degree. 1 processes items strictly in order.
	Workers    int
	OutputDir  string
	Mode       entity.Mode
	Resolution entity.Resolution
	MaxRetries int
	RetryDelay time.Duration
	// Metrics is optional; a private registry is used when nil.
	Metrics *observability.Metrics
}

// Runner processes one batch. Counters are safe to read while it runs.
type Runner struct {
	log     *slog.Logger
	fetcher Fetcher
	opt     Options
	metrics *observability.Metrics
	runID   string

	startedAt atomic.Int64
	total     atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// New creates a new Runner.
func New(log *slog.Logger, fetcher Fetcher, opt Options) *Runner {
	if opt.Workers < 1 {
		opt.Workers = 1
	}

	if opt.MaxRetries < 1 {
		opt.MaxRetries = 1
	}

	if opt.Metrics == nil {
		opt.Metrics = observability.New()
	}

	runID := gen.RunID()

	return &Runner{
		log:     log.With(slog.String("package", "batch"), slog.String("run_id", runID)),
		fetcher: fetcher,
		opt:     opt,
		metrics: opt.Metrics,
		runID:   runID,
	}
}

// Run processes every item and returns the final summary. Per item failures
// are counted, never returned. Items are detached from ctx cancellation: once
// submitted an item runs all of its attempts. The only error is a failure to
// create the output directory.
func (r *Runner) Run(ctx context.Context, items []entity.WorkItem) (entity.Summary, error) {
	if err := os.MkdirAll(r.opt.OutputDir, dirPerm); err != nil {
		return entity.Summary{}, fmt.Errorf("create output directory: %w", err)
	}

	r.startedAt.Store(time.Now().UnixNano())
	r.total.Store(int64(len(items)))
	r.metrics.SetItemsTotal(len(items))

	r.log.InfoContext(ctx, "batch started",
		slog.Int("total", len(items)),
		slog.Int("workers", r.opt.Workers),
		slog.String("mode", string(r.opt.Mode)),
		slog.String("output_dir", r.opt.OutputDir))

	itemCtx := context.WithoutCancel(ctx)

	var group errgroup.Group

	group.SetLimit(r.opt.Workers)

	for i, item := range items {
		group.Go(func() error {
			r.process(itemCtx, i+1, item)

			return nil
		})
	}

	_ = group.Wait()

	summary := r.Snapshot()

	r.log.InfoContext(ctx, "batch finished", slog.Any("summary", summary))

	return summary, nil
}

// Snapshot returns the current counters. After Run returns it is final.
func (r *Runner) Snapshot() entity.Summary {
	var elapsed time.Duration
	if started := r.startedAt.Load(); started > 0 {
		elapsed = time.Since(time.Unix(0, started))
	}

	return entity.Summary{
		RunID:     r.runID,
		Total:     int(r.total.Load()),
		Completed: int(r.completed.Load()),
		Failed:    int(r.failed.Load()),
		Duration:  elapsed,
	}
}

func (r *Runner) process(ctx context.Context, n int, item entity.WorkItem) {
	log := r.log.With(slog.Any("item", item), slog.String("position", fmt.Sprintf("%d/%d", n, r.total.Load())))
	log.InfoContext(ctx, "processing item")

	done := r.metrics.ItemTimer()
	defer done()

	req := downloader.Request{
		OutputDir:  r.opt.OutputDir,
		Mode:       r.opt.Mode,
		Resolution: r.opt.Resolution,
	}

	op := func(ctx context.Context) entity.Outcome {
		out := r.fetcher.Fetch(ctx, item.URL, req)
		r.metrics.RecordAttempt(r.opt.Mode, out)

		return out
	}

	path, err := retry.Do(ctx, op, retry.Policy{
		MaxRetries: r.opt.MaxRetries,
		Delay:      r.opt.RetryDelay,
		Notify: func(attempt int, cause error, wait time.Duration) {
			r.metrics.RecordRetry()
			log.WarnContext(ctx, "attempt failed, retrying",
				slog.Int("attempt", attempt),
				slog.Int("max_retries", r.opt.MaxRetries),
				slog.Duration("wait", wait),
				slog.Any("error", cause))
		},
	})
	if err != nil {
		r.failed.Add(1)
		r.metrics.RecordItemFailed()
		log.ErrorContext(ctx, "item failed", slog.Any("error", err), slog.Int("remaining", r.remaining()))

		return
	}

	r.completed.Add(1)
	r.metrics.RecordItemCompleted()
	log.InfoContext(ctx, "item downloaded", slog.String("path", path), slog.Int("remaining", r.remaining()))
}

func (r *Runner) remaining() int {
	return calc.Remaining(int(r.total.Load()), int(r.completed.Load()), int(r.failed.Load()))
}
