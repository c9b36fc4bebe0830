// Package pass walks a candidate population one item at a time, or with a
// bounded worker pool, timing each item and logging progress with an ETA.
package pass

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"

	"github.com/okian/otv/pkg/logger"
	"github.com/okian/otv/pkg/metrics"
)

// Runner iterates items for one named pass (validity, scoring, classify).
type Runner struct {
	name        string
	parallelism int
	log         logger.Logger
	now         func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithParallelism bounds how many items run at once. Values below 2 keep the
// pass sequential.
func WithParallelism(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.parallelism = n
		}
	}
}

// WithLogger sets the progress logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithClock overrides the time source used for timing.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a Runner for the named pass.
func New(name string, opts ...Option) *Runner {
	r := &Runner{
		name:        name,
		parallelism: 1,
		log:         logger.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Parallelism reports the configured bound.
func (r *Runner) Parallelism() int { return r.parallelism }

// progress tracks completed items and derives the remaining-time estimate.
type progress struct {
	mu      sync.Mutex
	total   int
	workers int
	done    int
	elapsed time.Duration
}

func (p *progress) add(d time.Duration) (done int, pct float64, eta time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	p.elapsed += d
	pct = float64(p.done) / float64(p.total) * 100
	avg := p.elapsed / time.Duration(p.done)
	remaining := p.total - p.done
	// Up to workers items finish concurrently, so the tail drains in parallel.
	if w := min(max(p.workers, 1), remaining); w > 0 {
		eta = avg * time.Duration(remaining) / time.Duration(w)
	}
	return p.done, pct, eta
}

// Each calls fn for every item. label names an item in log lines. fn owns its
// own error handling; Each only stops early when ctx is cancelled.
func Each[T any](ctx context.Context, r *Runner, items []T, label func(T) string, fn func(context.Context, T)) error {
	runID := uuid.NewString()
	log := r.log.With(logger.String("pass", r.name), logger.String("run_id", runID))
	start := r.now()
	sequentialRun := r.parallelism <= 1 || len(items) < 2
	prog := &progress{total: len(items), workers: 1}
	if !sequentialRun {
		prog.workers = r.parallelism
	}

	log.Info(ctx, "pass started", logger.Int("candidates", len(items)), logger.Int("parallelism", r.parallelism))

	one := func(ctx context.Context, item T) {
		began := r.now()
		fn(ctx, item)
		took := r.now().Sub(began)
		metrics.RecordCandidateDuration(r.name, took)

		done, pct, eta := prog.add(took)
		log.Info(ctx, "candidate processed",
			logger.String("candidate", label(item)),
			logger.Duration("took", took),
			logger.Int("done", done),
			logger.Float64("percent", pct),
			logger.Duration("eta", eta))
	}

	var err error
	if sequentialRun {
		err = sequential(ctx, items, one)
	} else {
		err = pooled(ctx, r.parallelism, items, one)
	}

	total := r.now().Sub(start)
	metrics.RecordPassDuration(r.name, total)
	if err != nil {
		log.Warn(ctx, "pass interrupted", logger.Duration("took", total), logger.Error(err))
		return err
	}
	log.Info(ctx, "pass finished", logger.Duration("took", total))
	return nil
}

func sequential[T any](ctx context.Context, items []T, one func(context.Context, T)) error {
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		one(ctx, item)
	}
	return nil
}

func pooled[T any](ctx context.Context, n int, items []T, one func(context.Context, T)) error {
	pool := pond.NewPool(n)
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for _, item := range items {
		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}
			one(groupCtx, item)
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, pond.ErrGroupStopped) {
		return err
	}
	return ctx.Err()
}
