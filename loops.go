package taskdispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/taskdispatch/backoff"
	"github.com/xraph/taskdispatch/id"
	"github.com/xraph/taskdispatch/queue"
	"github.com/xraph/taskdispatch/task"
)

// ──────────────────────────────────────────────────
// Fetch
// ──────────────────────────────────────────────────

func (d *Dispatcher[W, R]) fetchLoop(ctx context.Context) {
	tracker := backoff.NewTracker(d.fetchBackoff)

	for !d.group.Stopped() {
		verdict, wait := d.admission.Check(d.work.Len())
		switch verdict {
		case queue.Full:
			d.logger.Debug("work queue full", slog.Int("queued", d.work.Len()))
			wait = d.config.Intervals.Full
		case queue.Throttled:
			d.logger.Debug("fetch throttled", slog.Duration("wait", wait))
		}
		if verdict != queue.Admitted {
			if !d.group.Sleep(wait) {
				return
			}
			continue
		}

		fetch := d.item(task.StageFetch, id.NewFetchID(), tracker.Failures()+1, nil, time.Now())

		var items []W
		err := d.invoke(ctx, fetch, func(ctx context.Context) error {
			var err error
			items, err = d.source.Fetch(ctx)
			return err
		})
		if err != nil {
			delay := tracker.Failure()
			d.logger.Error("fetch failed",
				slog.String("fetch_id", fetch.ID.String()),
				slog.Int("failures", tracker.Failures()),
				slog.Duration("backoff", delay),
				slog.String("error", err.Error()),
			)
			d.extensions.EmitFetchFailed(ctx, fetch, err)
			if !d.group.Sleep(delay) {
				return
			}
			continue
		}
		tracker.Success()

		if len(items) == 0 {
			if !d.group.Sleep(d.config.Intervals.Empty) {
				return
			}
			continue
		}

		d.work.PushAll(wrap(items)...)
		d.logger.Debug("items fetched",
			slog.String("fetch_id", fetch.ID.String()),
			slog.Int("count", len(items)),
		)
		d.extensions.EmitItemsFetched(ctx, fetch, len(items))
	}
}

// ──────────────────────────────────────────────────
// Execute
// ──────────────────────────────────────────────────

func (d *Dispatcher[W, R]) executeLoop(ctx context.Context) {
	for !d.group.Stopped() {
		env, ok := d.work.TryPop()
		if !ok {
			if !d.group.Idle(d.config.Intervals.ExecuteIdle, d.work.Ready()) {
				return
			}
			continue
		}
		d.execute(ctx, env)
	}
}

func (d *Dispatcher[W, R]) execute(ctx context.Context, env envelope[W]) {
	env.attempt++
	it := d.item(task.StageExecute, env.id, env.attempt, env.value, env.enqueuedAt)
	d.extensions.EmitItemStarted(ctx, it)

	start := time.Now()
	var result R
	err := d.invoke(ctx, it, func(ctx context.Context) error {
		var err error
		result, err = d.exec.Execute(ctx, env.value)
		return err
	})
	elapsed := time.Since(start)

	if err == nil {
		d.results.Push(envelope[R]{id: env.id, value: result, enqueuedAt: time.Now()})
		d.extensions.EmitItemCompleted(ctx, it, elapsed)
		return
	}

	if d.retry(it, err) {
		d.work.Push(env)
		d.logRetry(it, err)
		d.extensions.EmitItemRetrying(ctx, it, err)
		return
	}
	d.drop(ctx, it, err)
}

// ──────────────────────────────────────────────────
// Deliver
// ──────────────────────────────────────────────────

func (d *Dispatcher[W, R]) deliverLoop(ctx context.Context) {
	for !d.group.Stopped() {
		env, ok := d.results.TryPop()
		if !ok {
			if !d.group.Idle(d.config.Intervals.DeliverIdle, d.results.Ready()) {
				return
			}
			continue
		}
		if panicked := d.deliver(ctx, env); panicked {
			if !d.group.Sleep(d.config.Intervals.DeliverPanic) {
				return
			}
		}
	}
}

// deliver hands one result to the sink and reports whether the deliver
// callback panicked.
func (d *Dispatcher[W, R]) deliver(ctx context.Context, env envelope[R]) bool {
	env.attempt++
	it := d.item(task.StageDeliver, env.id, env.attempt, env.value, env.enqueuedAt)
	d.extensions.EmitItemStarted(ctx, it)

	start := time.Now()
	err := d.invoke(ctx, it, func(ctx context.Context) error {
		return d.sink.Deliver(ctx, env.value)
	})

	if err == nil {
		d.extensions.EmitResultDelivered(ctx, it, time.Since(start))
		return false
	}

	if d.retry(it, err) {
		d.results.Push(env)
		d.logRetry(it, err)
		d.extensions.EmitItemRetrying(ctx, it, err)
		return false
	}
	d.drop(ctx, it, err)
	return isPanic(err)
}

// ──────────────────────────────────────────────────
// Failure handling
// ──────────────────────────────────────────────────

// retry reports whether a failed item goes back on its queue. Panics are
// never retried, even when the panic value is a retryable error.
func (d *Dispatcher[W, R]) retry(it *task.Item, err error) bool {
	if isPanic(err) || !IsRetryable(err) {
		return false
	}
	return d.config.MaxAttempts == 0 || it.Attempt < d.config.MaxAttempts
}

func (d *Dispatcher[W, R]) logRetry(it *task.Item, err error) {
	d.logger.Warn("item retrying",
		slog.String("stage", string(it.Stage)),
		slog.String("item_id", it.ID.String()),
		slog.Int("attempt", it.Attempt),
		slog.String("error", err.Error()),
	)
}

func (d *Dispatcher[W, R]) drop(ctx context.Context, it *task.Item, err error) {
	if IsRetryable(err) && !isPanic(err) {
		err = fmt.Errorf("%w after %d: %w", ErrMaxAttempts, it.Attempt, err)
	}

	attrs := []any{
		slog.String("stage", string(it.Stage)),
		slog.String("item_id", it.ID.String()),
		slog.Int("attempt", it.Attempt),
		slog.String("error", err.Error()),
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		attrs = append(attrs, slog.String("stack", string(pe.Stack)))
		d.logger.Error("callback panicked, item dropped", attrs...)
	} else {
		d.logger.Error("item dropped", attrs...)
	}

	d.extensions.EmitItemDropped(ctx, it, err)
}
