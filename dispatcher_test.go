package taskdispatch_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xraph/taskdispatch"
	"github.com/xraph/taskdispatch/backoff"
	"github.com/xraph/taskdispatch/dlq"
	"github.com/xraph/taskdispatch/task"
)

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastOptions() []taskdispatch.Option {
	return []taskdispatch.Option{
		taskdispatch.WithLogger(quietLogger()),
		taskdispatch.WithIntervals(taskdispatch.Intervals{
			Full:         5 * time.Millisecond,
			Empty:        5 * time.Millisecond,
			ExecuteIdle:  5 * time.Millisecond,
			DeliverIdle:  5 * time.Millisecond,
			DeliverPanic: 5 * time.Millisecond,
		}),
		taskdispatch.WithFetchBackoff(backoff.NewConstant(5 * time.Millisecond)),
	}
}

// batchSource returns its batches in order, then no work.
type batchSource struct {
	mu      sync.Mutex
	batches [][]int
	calls   atomic.Int32
}

func newBatchSource(batches ...[]int) *batchSource {
	return &batchSource{batches: batches}
}

func (s *batchSource) Fetch(_ context.Context) ([]int, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.batches) == 0 {
		return nil, nil
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b, nil
}

// collector is a thread-safe ResultSink.
type collector struct {
	mu  sync.Mutex
	got []int
}

func (c *collector) Deliver(_ context.Context, r int) error {
	c.mu.Lock()
	c.got = append(c.got, r)
	c.mu.Unlock()
	return nil
}

// results returns the delivered values in ascending order. Execute loops
// finish in no fixed order, so delivery order is not asserted.
func (c *collector) results() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]int(nil), c.got...)
	sort.Ints(out)
	return out
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

// dropRecorder captures ItemDropped and FetchFailed events.
type dropRecorder struct {
	mu          sync.Mutex
	dropped     []task.Item
	errs        []error
	fetchFailed atomic.Int32
}

func (r *dropRecorder) Name() string { return "drop-recorder" }

func (r *dropRecorder) OnItemDropped(_ context.Context, it *task.Item, err error) error {
	r.mu.Lock()
	r.dropped = append(r.dropped, *it)
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	return nil
}

func (r *dropRecorder) OnFetchFailed(_ context.Context, _ *task.Item, _ error) error {
	r.fetchFailed.Add(1)
	return nil
}

func (r *dropRecorder) snapshot() ([]task.Item, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]task.Item(nil), r.dropped...), append([]error(nil), r.errs...)
}

func double(_ context.Context, n int) (int, error) { return n * 2, nil }

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.After(timeout)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for condition")
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func start[W, R any](t *testing.T, d *taskdispatch.Dispatcher[W, R]) {
	t.Helper()
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = d.Shutdown(ctx)
	})
}

// ──────────────────────────────────────────────────
// Construction
// ──────────────────────────────────────────────────

func TestNew_NilCallbacks(t *testing.T) {
	src := newBatchSource()
	exec := taskdispatch.ExecuteFunc[int, int](double)
	sink := &collector{}

	tests := []struct {
		name string
		fn   func() error
	}{
		{"nil source", func() error {
			_, err := taskdispatch.New[int, int](nil, exec, sink)
			return err
		}},
		{"nil fetch func", func() error {
			_, err := taskdispatch.New[int, int](taskdispatch.FetchFunc[int](nil), exec, sink)
			return err
		}},
		{"nil executor", func() error {
			_, err := taskdispatch.New[int, int](src, nil, sink)
			return err
		}},
		{"nil execute func", func() error {
			_, err := taskdispatch.New[int, int](src, taskdispatch.ExecuteFunc[int, int](nil), sink)
			return err
		}},
		{"nil sink", func() error {
			_, err := taskdispatch.New[int, int](src, exec, nil)
			return err
		}},
		{"nil deliver func", func() error {
			_, err := taskdispatch.New[int, int](src, exec, taskdispatch.DeliverFunc[int](nil))
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, taskdispatch.ErrInvalidConfiguration) {
				t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  taskdispatch.Option
	}{
		{"zero concurrency", taskdispatch.WithConcurrency(0)},
		{"negative concurrency", taskdispatch.WithConcurrency(-3)},
		{"negative max attempts", taskdispatch.WithMaxAttempts(-1)},
		{"negative rate", taskdispatch.WithFetchRateLimit(-1, 1)},
		{"nil logger", taskdispatch.WithLogger(nil)},
		{"nil backoff", taskdispatch.WithFetchBackoff(nil)},
		{"nil extension", taskdispatch.WithExtension(nil)},
		{"config with negative concurrency", taskdispatch.WithConfig(taskdispatch.Config{Concurrency: -1})},
		{"negative interval", taskdispatch.WithIntervals(taskdispatch.Intervals{Full: -time.Second})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := taskdispatch.New[int, int](newBatchSource(), taskdispatch.ExecuteFunc[int, int](double), &collector{}, tt.opt)
			if !errors.Is(err, taskdispatch.ErrInvalidConfiguration) {
				t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	d, err := taskdispatch.New[int, int](newBatchSource(), taskdispatch.ExecuteFunc[int, int](double), &collector{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got, want := d.Concurrency(), taskdispatch.DefaultConcurrency(); got != want {
		t.Errorf("Concurrency() = %d, want %d", got, want)
	}
	if d.Concurrency() > 16 || d.Concurrency() < 1 {
		t.Errorf("default concurrency out of range: %d", d.Concurrency())
	}
	if d.Config().Intervals != taskdispatch.DefaultIntervals() {
		t.Errorf("Intervals = %+v, want defaults", d.Config().Intervals)
	}
	if d.Config().MaxAttempts != 0 {
		t.Errorf("MaxAttempts = %d, want 0", d.Config().MaxAttempts)
	}
	if d.ID().IsNil() {
		t.Error("expected a dispatcher ID")
	}
	if d.WorkLen() != 0 || d.ResultLen() != 0 {
		t.Error("expected empty queues")
	}
}

func TestNew_WithIntervalsKeepsUnsetFields(t *testing.T) {
	d, err := taskdispatch.New[int, int](newBatchSource(), taskdispatch.ExecuteFunc[int, int](double), &collector{},
		taskdispatch.WithIntervals(taskdispatch.Intervals{Full: time.Minute}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	iv := d.Config().Intervals
	if iv.Full != time.Minute {
		t.Errorf("Full = %v, want 1m", iv.Full)
	}
	if iv.ExecuteIdle != taskdispatch.DefaultIntervals().ExecuteIdle {
		t.Errorf("ExecuteIdle = %v, want default", iv.ExecuteIdle)
	}
}

func TestNew_WithConfigFillsZeroFields(t *testing.T) {
	d, err := taskdispatch.New[int, int](newBatchSource(), taskdispatch.ExecuteFunc[int, int](double), &collector{},
		taskdispatch.WithConfig(taskdispatch.Config{}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got, want := d.Concurrency(), taskdispatch.DefaultConcurrency(); got != want {
		t.Errorf("Concurrency() = %d, want %d", got, want)
	}
	if d.Config().Intervals != taskdispatch.DefaultIntervals() {
		t.Errorf("Intervals = %+v, want defaults", d.Config().Intervals)
	}

	d, err = taskdispatch.New[int, int](newBatchSource(), taskdispatch.ExecuteFunc[int, int](double), &collector{},
		taskdispatch.WithConfig(taskdispatch.Config{
			Concurrency: 2,
			Intervals:   taskdispatch.Intervals{Empty: 50 * time.Millisecond},
		}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	iv := d.Config().Intervals
	if d.Concurrency() != 2 {
		t.Errorf("Concurrency() = %d, want 2", d.Concurrency())
	}
	if iv.Empty != 50*time.Millisecond {
		t.Errorf("Empty = %v, want 50ms", iv.Empty)
	}
	if iv.ExecuteIdle != taskdispatch.DefaultIntervals().ExecuteIdle {
		t.Errorf("ExecuteIdle = %v, want default", iv.ExecuteIdle)
	}
}

func TestWithConfig_IdleSourceIsNotPolledInATightLoop(t *testing.T) {
	var calls atomic.Int32
	source := taskdispatch.FetchFunc[int](func(_ context.Context) ([]int, error) {
		calls.Add(1)
		return nil, nil
	})

	d, err := taskdispatch.New[int, int](source, taskdispatch.ExecuteFunc[int, int](double), &collector{},
		taskdispatch.WithLogger(quietLogger()),
		taskdispatch.WithConfig(taskdispatch.Config{
			Concurrency: 2,
			Intervals:   taskdispatch.Intervals{Empty: 50 * time.Millisecond},
		}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	start(t, d)

	time.Sleep(200 * time.Millisecond)
	d.Stop()

	// One call per 50ms Empty wait is about 4; a busy loop would be thousands.
	if got := calls.Load(); got > 8 {
		t.Errorf("fetch calls = %d, expected the empty interval to pace them", got)
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

func TestStart_Twice(t *testing.T) {
	d, err := taskdispatch.New[int, int](newBatchSource(), taskdispatch.ExecuteFunc[int, int](double), &collector{}, fastOptions()...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	start(t, d)

	if err := d.Start(context.Background()); !errors.Is(err, taskdispatch.ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestStart_AfterStop(t *testing.T) {
	d, err := taskdispatch.New[int, int](newBatchSource(), taskdispatch.ExecuteFunc[int, int](double), &collector{}, fastOptions()...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d.Stop()

	if err := d.Start(context.Background()); !errors.Is(err, taskdispatch.ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if err := d.Wait(context.Background()); err != nil {
		t.Fatalf("Wait on never-started dispatcher: %v", err)
	}
}

func TestStop_DoesNotWaitForCallbacks(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	exec := taskdispatch.ExecuteFunc[int, int](func(_ context.Context, n int) (int, error) {
		entered <- struct{}{}
		<-release
		return n, nil
	})

	d, err := taskdispatch.New[int, int](newBatchSource([]int{1}), exec, &collector{},
		append(fastOptions(), taskdispatch.WithConcurrency(1))...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("execute callback never ran")
	}

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		d.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a running callback")
	}
	if !d.Stopped() {
		t.Error("expected Stopped() after Stop")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := d.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected Wait to time out while the callback runs, got %v", err)
	}

	close(release)
	if err := d.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

// shutdownCounter counts Shutdown hook calls.
type shutdownCounter struct{ calls atomic.Int32 }

func (c *shutdownCounter) Name() string { return "shutdown-counter" }

func (c *shutdownCounter) OnShutdown(_ context.Context) error {
	c.calls.Add(1)
	return nil
}

func TestShutdown_NotifiesExtensionsOnce(t *testing.T) {
	counter := &shutdownCounter{}
	d, err := taskdispatch.New[int, int](newBatchSource(), taskdispatch.ExecuteFunc[int, int](double), &collector{},
		append(fastOptions(), taskdispatch.WithExtension(counter))...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for range 3 {
		if err := d.Shutdown(ctx); err != nil {
			t.Fatalf("Shutdown: %v", err)
		}
	}

	if got := counter.calls.Load(); got != 1 {
		t.Errorf("OnShutdown calls = %d, want 1", got)
	}
}

func TestStart_ContextCancelStops(t *testing.T) {
	d, err := taskdispatch.New[int, int](newBatchSource(), taskdispatch.ExecuteFunc[int, int](double), &collector{}, fastOptions()...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	if err := d.Wait(waitCtx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !d.Stopped() {
		t.Error("expected dispatcher to be stopped after ctx cancel")
	}
}

// ──────────────────────────────────────────────────
// Pipeline scenarios
// ──────────────────────────────────────────────────

func TestScenario_AllSucceed(t *testing.T) {
	sink := &collector{}
	d, err := taskdispatch.New[int, int](newBatchSource([]int{1, 2, 3}), taskdispatch.ExecuteFunc[int, int](double), sink, fastOptions()...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	start(t, d)

	waitFor(t, 2*time.Second, func() bool { return sink.len() == 3 })
	time.Sleep(20 * time.Millisecond)

	got := sink.results()
	want := []int{2, 4, 6}
	if len(got) != len(want) {
		t.Fatalf("delivered %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delivered %v, want %v", got, want)
		}
	}
	if d.WorkLen() != 0 || d.ResultLen() != 0 {
		t.Errorf("expected empty queues, got work=%d results=%d", d.WorkLen(), d.ResultLen())
	}
}

func TestScenario_RetryableFailureThenSuccess(t *testing.T) {
	var executions atomic.Int32
	exec := taskdispatch.ExecuteFunc[int, int](func(_ context.Context, n int) (int, error) {
		if executions.Add(1) <= 2 {
			return 0, taskdispatch.Retry(errors.New("busy"))
		}
		return n, nil
	})
	sink := &collector{}

	d, err := taskdispatch.New[int, int](newBatchSource([]int{7}), exec, sink, fastOptions()...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	start(t, d)

	waitFor(t, 2*time.Second, func() bool { return sink.len() == 1 })
	time.Sleep(20 * time.Millisecond)

	if got := executions.Load(); got != 3 {
		t.Errorf("executions = %d, want 3", got)
	}
	if got := sink.len(); got != 1 {
		t.Errorf("deliveries = %d, want 1", got)
	}
}

func TestScenario_ConcurrencyBound(t *testing.T) {
	var running, peak atomic.Int32
	exec := taskdispatch.ExecuteFunc[int, int](func(_ context.Context, n int) (int, error) {
		cur := running.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return n, nil
	})
	sink := &collector{}

	items := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	d, err := taskdispatch.New[int, int](newBatchSource(items), exec, sink,
		append(fastOptions(), taskdispatch.WithConcurrency(4))...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	start(t, d)

	waitFor(t, 3*time.Second, func() bool { return sink.len() == 10 })

	if got := peak.Load(); got > 4 {
		t.Errorf("peak concurrent executions = %d, want <= 4", got)
	}
	if got := peak.Load(); got < 2 {
		t.Errorf("peak concurrent executions = %d, expected parallelism", got)
	}
}

func TestExecute_NonRetryableFailureDropped(t *testing.T) {
	var executions atomic.Int32
	exec := taskdispatch.ExecuteFunc[int, int](func(_ context.Context, n int) (int, error) {
		executions.Add(1)
		if n == 1 {
			return 0, errors.New("bad input")
		}
		return n, nil
	})
	sink := &collector{}
	rec := &dropRecorder{}

	d, err := taskdispatch.New[int, int](newBatchSource([]int{1, 2}), exec, sink,
		append(fastOptions(), taskdispatch.WithExtension(rec))...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	start(t, d)

	waitFor(t, 2*time.Second, func() bool { return sink.len() == 1 })
	time.Sleep(30 * time.Millisecond)

	if got := executions.Load(); got != 2 {
		t.Errorf("executions = %d, want 2", got)
	}
	dropped, errs := rec.snapshot()
	if len(dropped) != 1 {
		t.Fatalf("dropped %d items, want 1", len(dropped))
	}
	if dropped[0].Stage != task.StageExecute || dropped[0].Value != 1 || dropped[0].Attempt != 1 {
		t.Errorf("unexpected dropped item: %+v", dropped[0])
	}
	if errs[0].Error() != "bad input" {
		t.Errorf("drop error = %v", errs[0])
	}
}

func TestExecute_PanicContained(t *testing.T) {
	exec := taskdispatch.ExecuteFunc[int, int](func(_ context.Context, n int) (int, error) {
		if n == 1 {
			panic(taskdispatch.Retry(errors.New("kaboom")))
		}
		return n, nil
	})
	sink := &collector{}
	rec := &dropRecorder{}

	d, err := taskdispatch.New[int, int](newBatchSource([]int{1, 2, 3}), exec, sink,
		append(fastOptions(), taskdispatch.WithConcurrency(1), taskdispatch.WithExtension(rec))...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	start(t, d)

	waitFor(t, 2*time.Second, func() bool { return sink.len() == 2 })

	_, errs := rec.snapshot()
	if len(errs) != 1 {
		t.Fatalf("dropped %d items, want 1", len(errs))
	}
	var pe *taskdispatch.PanicError
	if !errors.As(errs[0], &pe) {
		t.Fatalf("expected *PanicError, got %T: %v", errs[0], errs[0])
	}
	if pe.Stage != task.StageExecute {
		t.Errorf("panic stage = %q, want execute", pe.Stage)
	}
}

func TestExecute_MaxAttempts(t *testing.T) {
	var executions atomic.Int32
	exec := taskdispatch.ExecuteFunc[int, int](func(_ context.Context, _ int) (int, error) {
		executions.Add(1)
		return 0, taskdispatch.Retry(errors.New("still busy"))
	})
	rec := &dropRecorder{}

	d, err := taskdispatch.New[int, int](newBatchSource([]int{1}), exec, &collector{},
		append(fastOptions(), taskdispatch.WithMaxAttempts(3), taskdispatch.WithExtension(rec))...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	start(t, d)

	waitFor(t, 2*time.Second, func() bool {
		dropped, _ := rec.snapshot()
		return len(dropped) == 1
	})
	time.Sleep(20 * time.Millisecond)

	if got := executions.Load(); got != 3 {
		t.Errorf("executions = %d, want 3", got)
	}
	dropped, errs := rec.snapshot()
	if dropped[0].Attempt != 3 {
		t.Errorf("dropped at attempt %d, want 3", dropped[0].Attempt)
	}
	if !errors.Is(errs[0], taskdispatch.ErrMaxAttempts) {
		t.Errorf("expected ErrMaxAttempts, got %v", errs[0])
	}
}

// ──────────────────────────────────────────────────
// Deliver
// ──────────────────────────────────────────────────

// Without MaxAttempts a retryable failure is retried with no cap and no
// per-item delay. This is a known limitation of the default policy.
func TestKnownLimitation_ExecuteRetryIsUnbounded(t *testing.T) {
	const failures = 25

	var executions atomic.Int32
	exec := taskdispatch.ExecuteFunc[int, int](func(_ context.Context, n int) (int, error) {
		if executions.Add(1) <= failures {
			return 0, taskdispatch.Retry(errors.New("still busy"))
		}
		return n, nil
	})
	sink := &collector{}
	rec := &dropRecorder{}

	d, err := taskdispatch.New[int, int](newBatchSource([]int{9}), exec, sink,
		append(fastOptions(), taskdispatch.WithConcurrency(1), taskdispatch.WithExtension(rec))...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.Config().MaxAttempts != 0 {
		t.Fatalf("MaxAttempts = %d, want unbounded default", d.Config().MaxAttempts)
	}
	start(t, d)

	waitFor(t, 5*time.Second, func() bool { return sink.len() == 1 })

	if got := executions.Load(); got != failures+1 {
		t.Errorf("executions = %d, want %d", got, failures+1)
	}
	if dropped, _ := rec.snapshot(); len(dropped) != 0 {
		t.Errorf("dropped %d items, want none", len(dropped))
	}
}

// The deliver stage shares the unbounded default.
func TestKnownLimitation_DeliverRetryIsUnbounded(t *testing.T) {
	const failures = 25

	var deliveries atomic.Int32
	sink := &collector{}
	flaky := taskdispatch.DeliverFunc[int](func(ctx context.Context, r int) error {
		if deliveries.Add(1) <= failures {
			return taskdispatch.Retry(errors.New("sink unavailable"))
		}
		return sink.Deliver(ctx, r)
	})
	rec := &dropRecorder{}

	d, err := taskdispatch.New[int, int](newBatchSource([]int{4}), taskdispatch.ExecuteFunc[int, int](double), flaky,
		append(fastOptions(), taskdispatch.WithExtension(rec))...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	start(t, d)

	waitFor(t, 5*time.Second, func() bool { return sink.len() == 1 })

	if got := deliveries.Load(); got != failures+1 {
		t.Errorf("deliveries = %d, want %d", got, failures+1)
	}
	if got := sink.results(); got[0] != 8 {
		t.Errorf("delivered %v, want [8]", got)
	}
	if dropped, _ := rec.snapshot(); len(dropped) != 0 {
		t.Errorf("dropped %d items, want none", len(dropped))
	}
}

func TestDeliver_RetryableFailureRedelivered(t *testing.T) {
	var attempts atomic.Int32
	var delivered atomic.Int32
	sink := taskdispatch.DeliverFunc[int](func(_ context.Context, _ int) error {
		if attempts.Add(1) == 1 {
			return taskdispatch.Retry(errors.New("sink unavailable"))
		}
		delivered.Add(1)
		return nil
	})

	d, err := taskdispatch.New[int, int](newBatchSource([]int{5}), taskdispatch.ExecuteFunc[int, int](double), sink, fastOptions()...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	start(t, d)

	waitFor(t, 2*time.Second, func() bool { return delivered.Load() == 1 })
	time.Sleep(20 * time.Millisecond)

	if got := attempts.Load(); got != 2 {
		t.Errorf("deliver attempts = %d, want 2", got)
	}
	if got := delivered.Load(); got != 1 {
		t.Errorf("successful deliveries = %d, want 1", got)
	}
}

func TestDeliver_NonRetryableFailureDropped(t *testing.T) {
	var attempts atomic.Int32
	sink := taskdispatch.DeliverFunc[int](func(_ context.Context, _ int) error {
		attempts.Add(1)
		return errors.New("rejected")
	})
	rec := &dropRecorder{}

	d, err := taskdispatch.New[int, int](newBatchSource([]int{5}), taskdispatch.ExecuteFunc[int, int](double), sink,
		append(fastOptions(), taskdispatch.WithExtension(rec))...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	start(t, d)

	waitFor(t, 2*time.Second, func() bool {
		dropped, _ := rec.snapshot()
		return len(dropped) == 1
	})
	time.Sleep(20 * time.Millisecond)

	if got := attempts.Load(); got != 1 {
		t.Errorf("deliver attempts = %d, want 1", got)
	}
	dropped, _ := rec.snapshot()
	if dropped[0].Stage != task.StageDeliver || dropped[0].Value != 10 {
		t.Errorf("unexpected dropped item: %+v", dropped[0])
	}
}

func TestDeliver_PanicContained(t *testing.T) {
	sink := &collector{}
	deliver := taskdispatch.DeliverFunc[int](func(ctx context.Context, r int) error {
		if r == 2 {
			panic("sink exploded")
		}
		return sink.Deliver(ctx, r)
	})

	d, err := taskdispatch.New[int, int](newBatchSource([]int{1, 2, 3}), taskdispatch.ExecuteFunc[int, int](double), deliver, fastOptions()...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	start(t, d)

	waitFor(t, 2*time.Second, func() bool { return sink.len() == 2 })

	got := sink.results()
	if got[0] != 4 || got[1] != 6 {
		t.Errorf("delivered %v, want [4 6]", got)
	}
}

// ──────────────────────────────────────────────────
// Fetch
// ──────────────────────────────────────────────────

func TestFetch_ErrorsBackOffAndRecover(t *testing.T) {
	var calls atomic.Int32
	source := taskdispatch.FetchFunc[int](func(_ context.Context) ([]int, error) {
		switch calls.Add(1) {
		case 1:
			return nil, errors.New("source down")
		case 2:
			panic("source exploded")
		case 3:
			return []int{1, 2}, nil
		default:
			return nil, nil
		}
	})
	sink := &collector{}
	rec := &dropRecorder{}

	d, err := taskdispatch.New[int, int](source, taskdispatch.ExecuteFunc[int, int](double), sink,
		append(fastOptions(), taskdispatch.WithExtension(rec))...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	start(t, d)

	waitFor(t, 2*time.Second, func() bool { return sink.len() == 2 })

	if got := rec.fetchFailed.Load(); got != 2 {
		t.Errorf("fetch failures = %d, want 2", got)
	}
}

func TestFetch_AdmissionCapsWorkQueue(t *testing.T) {
	release := make(chan struct{})
	exec := taskdispatch.ExecuteFunc[int, int](func(_ context.Context, n int) (int, error) {
		<-release
		return n, nil
	})

	var next atomic.Int32
	var calls atomic.Int32
	source := taskdispatch.FetchFunc[int](func(_ context.Context) ([]int, error) {
		calls.Add(1)
		return []int{int(next.Add(1))}, nil
	})

	d, err := taskdispatch.New[int, int](source, exec, &collector{},
		append(fastOptions(), taskdispatch.WithConcurrency(2))...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		close(release)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = d.Shutdown(ctx)
	}()

	// Two items are held by the blocked execute loops, two more fill the queue.
	waitFor(t, 2*time.Second, func() bool { return calls.Load() == 4 && d.WorkLen() == 2 })
	time.Sleep(50 * time.Millisecond)

	if got := calls.Load(); got != 4 {
		t.Errorf("fetch calls = %d, want 4", got)
	}
	if got := d.WorkLen(); got != 2 {
		t.Errorf("WorkLen() = %d, want 2", got)
	}
}

func TestFetch_RateLimit(t *testing.T) {
	var calls atomic.Int32
	source := taskdispatch.FetchFunc[int](func(_ context.Context) ([]int, error) {
		calls.Add(1)
		return nil, nil
	})

	opts := append(fastOptions(),
		taskdispatch.WithIntervals(taskdispatch.Intervals{Empty: time.Nanosecond}),
		taskdispatch.WithFetchRateLimit(20, 1),
	)
	d, err := taskdispatch.New[int, int](source, taskdispatch.ExecuteFunc[int, int](double), &collector{}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	start(t, d)

	time.Sleep(200 * time.Millisecond)
	d.Stop()

	// 20/s over 200ms is about 5 calls; unthrottled would be far more.
	if got := calls.Load(); got > 10 {
		t.Errorf("fetch calls = %d, expected the rate limit to hold it near 5", got)
	}
}

func TestSetFetchRateLimit_AppliesAtRuntime(t *testing.T) {
	var calls atomic.Int32
	source := taskdispatch.FetchFunc[int](func(_ context.Context) ([]int, error) {
		calls.Add(1)
		return nil, nil
	})

	opts := append(fastOptions(), taskdispatch.WithIntervals(taskdispatch.Intervals{Empty: time.Nanosecond}))
	d, err := taskdispatch.New[int, int](source, taskdispatch.ExecuteFunc[int, int](double), &collector{}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.SetFetchRateLimit(-1, 1); !errors.Is(err, taskdispatch.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
	if err := d.SetFetchRateLimit(20, 1); err != nil {
		t.Fatalf("SetFetchRateLimit: %v", err)
	}
	if cfg := d.Config(); cfg.FetchRateLimit != 20 || cfg.FetchRateBurst != 1 {
		t.Errorf("Config() rate = %v/%d, want 20/1", cfg.FetchRateLimit, cfg.FetchRateBurst)
	}
	start(t, d)

	time.Sleep(200 * time.Millisecond)
	if got := calls.Load(); got > 10 {
		t.Errorf("fetch calls = %d, expected the rate limit to hold it near 5", got)
	}

	if err := d.SetFetchRateLimit(0, 0); err != nil {
		t.Fatalf("SetFetchRateLimit: %v", err)
	}
	if d.Config().FetchRateLimit != 0 {
		t.Errorf("FetchRateLimit = %v, want 0 after removing the limit", d.Config().FetchRateLimit)
	}
	before := calls.Load()
	waitFor(t, 2*time.Second, func() bool { return calls.Load() > before+20 })
}

// ──────────────────────────────────────────────────
// Out-of-band submission and DLQ
// ──────────────────────────────────────────────────

func TestEnqueue_BypassesFetch(t *testing.T) {
	sink := &collector{}
	d, err := taskdispatch.New[int, int](newBatchSource(), taskdispatch.ExecuteFunc[int, int](double), sink, fastOptions()...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	d.Enqueue(10, 20)
	if d.WorkLen() != 2 {
		t.Fatalf("WorkLen() = %d, want 2 before start", d.WorkLen())
	}
	d.Redeliver(99)

	start(t, d)
	waitFor(t, 2*time.Second, func() bool { return sink.len() == 3 })

	got := sink.results()
	if got[0] != 20 || got[1] != 40 || got[2] != 99 {
		t.Errorf("delivered %v, want [20 40 99]", got)
	}
}

func TestDLQ_RecordsAndReplaysDrops(t *testing.T) {
	var healthy atomic.Bool
	exec := taskdispatch.ExecuteFunc[int, int](func(_ context.Context, n int) (int, error) {
		if !healthy.Load() {
			return 0, errors.New("downstream outage")
		}
		return n, nil
	})
	sink := &collector{}
	store := dlq.NewMemoryStore(time.Hour)

	d, err := taskdispatch.New[int, int](newBatchSource([]int{1, 2}), exec, sink,
		append(fastOptions(), taskdispatch.WithExtension(dlq.NewExtension(store, quietLogger())))...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	start(t, d)

	ctx := context.Background()
	waitFor(t, 2*time.Second, func() bool {
		n, _ := store.Count(ctx)
		return n == 2
	})

	healthy.Store(true)
	n, err := dlq.ReplayAll[int, int](ctx, store, dlq.ListOpts{Stage: task.StageExecute}, d)
	if err != nil {
		t.Fatalf("ReplayAll: %v", err)
	}
	if n != 2 {
		t.Fatalf("replayed %d, want 2", n)
	}

	waitFor(t, 2*time.Second, func() bool { return sink.len() == 2 })
	got := sink.results()
	if got[0] != 1 || got[1] != 2 {
		t.Errorf("delivered %v, want [1 2]", got)
	}
}

// ──────────────────────────────────────────────────
// Instrumentation
// ──────────────────────────────────────────────────

func TestWithMeterProvider_RecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	sink := &collector{}

	d, err := taskdispatch.New[int, int](newBatchSource([]int{1, 2, 3}), taskdispatch.ExecuteFunc[int, int](double), sink,
		append(fastOptions(), taskdispatch.WithMeterProvider(mp))...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	start(t, d)
	waitFor(t, 2*time.Second, func() bool { return sink.len() == 3 })

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	seen := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			seen[m.Name] = true
		}
	}
	for _, name := range []string{
		"taskdispatch.callback.duration",
		"taskdispatch.callback.calls",
		"taskdispatch.items.completed",
		"taskdispatch.results.delivered",
	} {
		if !seen[name] {
			t.Errorf("metric %s not recorded", name)
		}
	}
}
