package taskdispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/taskdispatch/backoff"
	"github.com/xraph/taskdispatch/ext"
	"github.com/xraph/taskdispatch/id"
	"github.com/xraph/taskdispatch/middleware"
	"github.com/xraph/taskdispatch/observability"
	"github.com/xraph/taskdispatch/queue"
	"github.com/xraph/taskdispatch/task"
	"github.com/xraph/taskdispatch/worker"
)

// instrumentationName is the OpenTelemetry scope for dispatcher
// tracers and meters.
const instrumentationName = "github.com/xraph/taskdispatch"

// envelope carries a queued value with its bookkeeping. attempt counts
// how many times the current stage's callback has run for the value.
type envelope[T any] struct {
	id         id.ID
	value      T
	attempt    int
	enqueuedAt time.Time
}

// Dispatcher moves work from a WorkSource through a WorkExecutor to a
// ResultSink. Create one with New; a Dispatcher runs once.
type Dispatcher[W, R any] struct {
	id     id.ID
	config Config
	logger *slog.Logger

	source WorkSource[W]
	exec   WorkExecutor[W, R]
	sink   ResultSink[R]

	work      *queue.FIFO[envelope[W]]
	results   *queue.FIFO[envelope[R]]
	admission *queue.Admission

	fetchBackoff backoff.Strategy
	chain        middleware.Middleware
	extensions   *ext.Registry
	group        *worker.Group
	shutdownOnce sync.Once
}

// New creates a Dispatcher over the given callbacks. It fails with
// ErrInvalidConfiguration if a callback is nil or an option is invalid.
func New[W, R any](source WorkSource[W], exec WorkExecutor[W, R], sink ResultSink[R], opts ...Option) (*Dispatcher[W, R], error) {
	switch {
	case nilSource(source):
		return nil, fmt.Errorf("%w: nil fetch callback", ErrInvalidConfiguration)
	case nilExecutor(exec):
		return nil, fmt.Errorf("%w: nil execute callback", ErrInvalidConfiguration)
	case nilSink(sink):
		return nil, fmt.Errorf("%w: nil deliver callback", ErrInvalidConfiguration)
	}

	s := defaultSettings()
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if err := s.config.Validate(); err != nil {
		return nil, err
	}

	did := id.NewDispatcherID()
	logger := s.logger.With(slog.String("dispatcher_id", did.String()))

	mws := make([]middleware.Middleware, 0, len(s.middleware)+2)
	if s.tracerProvider != nil {
		mws = append(mws, middleware.TracingWithTracer(s.tracerProvider.Tracer(instrumentationName)))
	}
	if s.meterProvider != nil {
		mws = append(mws, middleware.MetricsWithMeter(s.meterProvider.Meter(instrumentationName)))
	}
	mws = append(mws, s.middleware...)

	registry := ext.NewRegistry(logger)
	if s.meterProvider != nil {
		registry.Register(observability.NewMetricsExtensionWithProvider(s.meterProvider))
	}
	for _, e := range s.extensions {
		registry.Register(e)
	}

	return &Dispatcher[W, R]{
		id:      did,
		config:  s.config,
		logger:  logger,
		source:  source,
		exec:    exec,
		sink:    sink,
		work:    queue.NewFIFO[envelope[W]](),
		results: queue.NewFIFO[envelope[R]](),
		admission: queue.NewAdmission(queue.AdmissionConfig{
			HighWatermark: s.config.Concurrency,
			RateLimit:     s.config.FetchRateLimit,
			RateBurst:     s.config.FetchRateBurst,
		}),
		fetchBackoff: s.fetchBackoff,
		chain:        middleware.Chain(mws...),
		extensions:   registry,
		group:        worker.NewGroup(logger),
	}, nil
}

// ID returns the dispatcher's identifier.
func (d *Dispatcher[W, R]) ID() id.ID { return d.id }

// Concurrency returns the number of execute loops.
func (d *Dispatcher[W, R]) Concurrency() int { return d.config.Concurrency }

// Config returns a copy of the dispatcher's configuration, including the
// current fetch rate limit.
func (d *Dispatcher[W, R]) Config() Config {
	cfg := d.config
	ac := d.admission.Config()
	cfg.FetchRateLimit, cfg.FetchRateBurst = ac.RateLimit, ac.RateBurst
	return cfg
}

// SetFetchRateLimit changes the fetch rate limit of a running or idle
// dispatcher. Zero perSecond removes the limit. The token bucket starts
// full again after the change.
func (d *Dispatcher[W, R]) SetFetchRateLimit(perSecond float64, burst int) error {
	if perSecond < 0 {
		return fmt.Errorf("%w: fetch rate limit must not be negative", ErrInvalidConfiguration)
	}
	ac := d.admission.Config()
	ac.RateLimit, ac.RateBurst = perSecond, burst
	d.admission.Reconfigure(ac)
	d.logger.Info("fetch rate limit changed",
		slog.Float64("per_second", perSecond),
		slog.Int("burst", burst),
	)
	return nil
}

// Logger returns the dispatcher's logger.
func (d *Dispatcher[W, R]) Logger() *slog.Logger { return d.logger }

// WorkLen returns the number of items waiting to be executed.
func (d *Dispatcher[W, R]) WorkLen() int { return d.work.Len() }

// ResultLen returns the number of results waiting to be delivered.
func (d *Dispatcher[W, R]) ResultLen() int { return d.results.Len() }

// Stopped reports whether Stop has been called.
func (d *Dispatcher[W, R]) Stopped() bool { return d.group.Stopped() }

// Start launches one fetch loop, Concurrency execute loops and one
// deliver loop, then returns. Cancelling ctx stops the dispatcher the
// same way Stop does; callbacks get a context carrying ctx's values but
// not its cancellation.
func (d *Dispatcher[W, R]) Start(ctx context.Context) error {
	runCtx := context.WithoutCancel(ctx)

	loops := make([]worker.Loop, 0, d.config.Concurrency+2)
	loops = append(loops, worker.Loop{Name: "fetch", Run: func() { d.fetchLoop(runCtx) }})
	for i := range d.config.Concurrency {
		loops = append(loops, worker.Loop{
			Name: fmt.Sprintf("execute-%d", i),
			Run:  func() { d.executeLoop(runCtx) },
		})
	}
	loops = append(loops, worker.Loop{Name: "deliver", Run: func() { d.deliverLoop(runCtx) }})

	if err := d.group.Start(loops...); err != nil {
		switch err {
		case worker.ErrAlreadyStarted:
			return ErrAlreadyStarted
		case worker.ErrStopped:
			return ErrStopped
		}
		return err
	}

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				d.Stop()
			case <-d.group.Done():
			}
		}()
	}

	d.logger.Info("dispatcher started",
		slog.Int("concurrency", d.config.Concurrency),
		slog.Int("extensions", len(d.extensions.Extensions())),
	)
	return nil
}

// Stop asks every loop to exit at its next iteration boundary and wakes
// the ones that are waiting. It does not interrupt running callbacks and
// does not wait. Calling Stop more than once is harmless.
func (d *Dispatcher[W, R]) Stop() {
	if d.group.Stop() {
		d.logger.Info("dispatcher stopping",
			slog.Int("work_queued", d.work.Len()),
			slog.Int("results_queued", d.results.Len()),
		)
	}
}

// Wait blocks until every loop has exited or ctx is done. It returns nil
// for a dispatcher that was never started.
func (d *Dispatcher[W, R]) Wait(ctx context.Context) error {
	return d.group.Wait(ctx)
}

// Shutdown stops the dispatcher, waits for its loops, and notifies
// extensions. Extensions are notified on the first call only. Items
// still queued are discarded.
func (d *Dispatcher[W, R]) Shutdown(ctx context.Context) error {
	d.Stop()
	err := d.Wait(ctx)
	d.shutdownOnce.Do(func() { d.extensions.EmitShutdown(ctx) })
	if err != nil {
		d.logger.Error("dispatcher shutdown incomplete", slog.String("error", err.Error()))
		return err
	}
	d.logger.Info("dispatcher stopped")
	return nil
}

// Enqueue adds work items to the back of the work queue, bypassing the
// fetch callback and admission control.
func (d *Dispatcher[W, R]) Enqueue(items ...W) {
	d.work.PushAll(wrap(items)...)
}

// Redeliver adds results to the back of the result queue.
func (d *Dispatcher[W, R]) Redeliver(results ...R) {
	d.results.PushAll(wrap(results)...)
}

func wrap[T any](values []T) []envelope[T] {
	now := time.Now()
	envs := make([]envelope[T], len(values))
	for i, v := range values {
		envs[i] = envelope[T]{id: id.NewItemID(), value: v, enqueuedAt: now}
	}
	return envs
}

// invoke runs fn through the middleware chain. Panics anywhere in the
// chain come back as *PanicError.
func (d *Dispatcher[W, R]) invoke(ctx context.Context, it *task.Item, fn middleware.Handler) error {
	return middleware.Guard(ctx, it, func(ctx context.Context) error {
		return d.chain(ctx, it, fn)
	})
}

func (d *Dispatcher[W, R]) item(stage task.Stage, itemID id.ID, attempt int, value any, enqueuedAt time.Time) *task.Item {
	return &task.Item{
		ID:           itemID,
		DispatcherID: d.id,
		Stage:        stage,
		Attempt:      attempt,
		Value:        value,
		EnqueuedAt:   enqueuedAt,
	}
}
