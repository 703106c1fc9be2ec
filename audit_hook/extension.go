package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/taskdispatch/ext"
	"github.com/xraph/taskdispatch/task"
)

// Compile-time interface checks.
var (
	_ ext.Extension       = (*Extension)(nil)
	_ ext.ItemsFetched    = (*Extension)(nil)
	_ ext.FetchFailed     = (*Extension)(nil)
	_ ext.ItemStarted     = (*Extension)(nil)
	_ ext.ItemCompleted   = (*Extension)(nil)
	_ ext.ItemRetrying    = (*Extension)(nil)
	_ ext.ItemDropped     = (*Extension)(nil)
	_ ext.ResultDelivered = (*Extension)(nil)
	_ ext.Shutdown        = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a backend-neutral audit record. Callers provide a
// RecorderFunc adapter that bridges to their audit backend.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// LogRecorder returns a Recorder that writes each audit event as one
// structured log record. Critical events are logged at error level,
// warnings at warn level and everything else at info level.
func LogRecorder(logger *slog.Logger) Recorder {
	return RecorderFunc(func(ctx context.Context, evt *AuditEvent) error {
		level := slog.LevelInfo
		switch evt.Severity {
		case SeverityWarning:
			level = slog.LevelWarn
		case SeverityCritical:
			level = slog.LevelError
		}
		attrs := []slog.Attr{
			slog.String("action", evt.Action),
			slog.String("resource", evt.Resource),
			slog.String("resource_id", evt.ResourceID),
			slog.String("category", evt.Category),
			slog.String("outcome", evt.Outcome),
		}
		if evt.Reason != "" {
			attrs = append(attrs, slog.String("reason", evt.Reason))
		}
		for k, v := range evt.Metadata {
			attrs = append(attrs, slog.Any(k, v))
		}
		logger.LogAttrs(ctx, level, "audit", attrs...)
		return nil
	})
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges dispatcher lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the [Recorder].
type Extension struct {
	recorder   Recorder
	enabled    map[string]bool // nil = all enabled
	logger     *slog.Logger
	resourceID string
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Fetch hooks ─────────────────────────────────────

// OnItemsFetched implements ext.ItemsFetched.
func (e *Extension) OnItemsFetched(ctx context.Context, fetch *task.Item, n int) error {
	return e.record(ctx, ActionItemsFetched, SeverityInfo, OutcomeSuccess,
		ResourceFetch, fetch.ID.String(), CategoryFetch, nil,
		"dispatcher_id", fetch.DispatcherID.String(),
		"count", n,
	)
}

// OnFetchFailed implements ext.FetchFailed.
func (e *Extension) OnFetchFailed(ctx context.Context, fetch *task.Item, fetchErr error) error {
	return e.record(ctx, ActionFetchFailed, SeverityWarning, OutcomeFailure,
		ResourceFetch, fetch.ID.String(), CategoryFetch, fetchErr,
		"dispatcher_id", fetch.DispatcherID.String(),
	)
}

// ── Item lifecycle hooks ────────────────────────────

// OnItemStarted implements ext.ItemStarted.
func (e *Extension) OnItemStarted(ctx context.Context, it *task.Item) error {
	return e.record(ctx, ActionItemStarted, SeverityInfo, OutcomeSuccess,
		ResourceItem, it.ID.String(), CategoryItem, nil,
		"stage", string(it.Stage),
		"attempt", it.Attempt,
	)
}

// OnItemCompleted implements ext.ItemCompleted.
func (e *Extension) OnItemCompleted(ctx context.Context, it *task.Item, elapsed time.Duration) error {
	return e.record(ctx, ActionItemCompleted, SeverityInfo, OutcomeSuccess,
		ResourceItem, it.ID.String(), CategoryItem, nil,
		"stage", string(it.Stage),
		"attempt", it.Attempt,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnItemRetrying implements ext.ItemRetrying.
func (e *Extension) OnItemRetrying(ctx context.Context, it *task.Item, itemErr error) error {
	return e.record(ctx, ActionItemRetrying, SeverityWarning, OutcomeFailure,
		ResourceItem, it.ID.String(), CategoryItem, itemErr,
		"stage", string(it.Stage),
		"attempt", it.Attempt,
	)
}

// OnItemDropped implements ext.ItemDropped.
func (e *Extension) OnItemDropped(ctx context.Context, it *task.Item, itemErr error) error {
	return e.record(ctx, ActionItemDropped, SeverityCritical, OutcomeFailure,
		ResourceItem, it.ID.String(), CategoryItem, itemErr,
		"stage", string(it.Stage),
		"attempt", it.Attempt,
	)
}

// OnResultDelivered implements ext.ResultDelivered.
func (e *Extension) OnResultDelivered(ctx context.Context, it *task.Item, elapsed time.Duration) error {
	return e.record(ctx, ActionResultDelivered, SeverityInfo, OutcomeSuccess,
		ResourceItem, it.ID.String(), CategoryItem, nil,
		"stage", string(it.Stage),
		"attempt", it.Attempt,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ── Dispatcher hooks ────────────────────────────────

// OnShutdown implements ext.Shutdown.
func (e *Extension) OnShutdown(ctx context.Context) error {
	return e.record(ctx, ActionDispatcherShutdown, SeverityInfo, OutcomeSuccess,
		ResourceDispatcher, e.resourceID, CategoryDispatcher, nil,
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
