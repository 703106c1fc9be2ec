package relayhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/taskdispatch/ext"
	"github.com/xraph/taskdispatch/httpx"
	"github.com/xraph/taskdispatch/id"
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

// Event is the JSON envelope posted to the webhook URL.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Extension posts dispatcher lifecycle events to a webhook URL.
type Extension struct {
	url      string
	client   *httpx.Client
	source   string
	enabled  map[string]bool        // nil = all enabled
	payloads map[string]PayloadFunc // custom payload builders
}

// New creates an Extension that posts lifecycle events to url.
func New(url string, opts ...Option) *Extension {
	h := &Extension{url: url}
	for _, opt := range opts {
		opt(h)
	}
	if h.client == nil {
		h.client = httpx.NewClient()
	}
	return h
}

// Name implements ext.Extension.
func (h *Extension) Name() string { return "relay-hook" }

// ── Fetch hooks ─────────────────────────────────────

// OnItemsFetched implements ext.ItemsFetched.
func (h *Extension) OnItemsFetched(ctx context.Context, fetch *task.Item, n int) error {
	return h.send(ctx, EventItemsFetched, &fetchPayload{
		FetchID:      fetch.ID.String(),
		DispatcherID: fetch.DispatcherID.String(),
		Count:        n,
	})
}

// OnFetchFailed implements ext.FetchFailed.
func (h *Extension) OnFetchFailed(ctx context.Context, fetch *task.Item, fetchErr error) error {
	return h.send(ctx, EventFetchFailed, &fetchPayload{
		FetchID:      fetch.ID.String(),
		DispatcherID: fetch.DispatcherID.String(),
		Error:        fetchErr.Error(),
	})
}

// ── Item lifecycle hooks ────────────────────────────

// OnItemStarted implements ext.ItemStarted.
func (h *Extension) OnItemStarted(ctx context.Context, it *task.Item) error {
	return h.send(ctx, EventItemStarted, newItemPayload(it))
}

// OnItemCompleted implements ext.ItemCompleted.
func (h *Extension) OnItemCompleted(ctx context.Context, it *task.Item, elapsed time.Duration) error {
	return h.send(ctx, EventItemCompleted, &itemElapsedPayload{
		itemPayload: *newItemPayload(it),
		ElapsedMs:   elapsed.Milliseconds(),
	})
}

// OnItemRetrying implements ext.ItemRetrying.
func (h *Extension) OnItemRetrying(ctx context.Context, it *task.Item, itemErr error) error {
	return h.send(ctx, EventItemRetrying, &itemFailedPayload{
		itemPayload: *newItemPayload(it),
		Error:       itemErr.Error(),
	})
}

// OnItemDropped implements ext.ItemDropped.
func (h *Extension) OnItemDropped(ctx context.Context, it *task.Item, itemErr error) error {
	return h.send(ctx, EventItemDropped, &itemFailedPayload{
		itemPayload: *newItemPayload(it),
		Error:       itemErr.Error(),
	})
}

// OnResultDelivered implements ext.ResultDelivered.
func (h *Extension) OnResultDelivered(ctx context.Context, it *task.Item, elapsed time.Duration) error {
	return h.send(ctx, EventResultDelivered, &itemElapsedPayload{
		itemPayload: *newItemPayload(it),
		ElapsedMs:   elapsed.Milliseconds(),
	})
}

// ── Dispatcher hooks ────────────────────────────────

// OnShutdown implements ext.Shutdown.
func (h *Extension) OnShutdown(ctx context.Context) error {
	return h.send(ctx, EventDispatcherShutdown, nil)
}

// ── Internal helpers ────────────────────────────────

// send posts an event if the event type is enabled.
func (h *Extension) send(ctx context.Context, eventType string, defaultData any) error {
	if h.enabled != nil && !h.enabled[eventType] {
		return nil
	}

	data := defaultData
	if fn, ok := h.payloads[eventType]; ok {
		custom, err := fn(defaultData)
		if err != nil {
			return err
		}
		data = custom
	}

	body, err := json.Marshal(&Event{
		ID:        id.NewEventID().String(),
		Type:      eventType,
		Source:    h.source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("relay_hook: marshal %s: %w", eventType, err)
	}

	if err := h.client.PostJSON(ctx, h.url, body).Err(); err != nil {
		return fmt.Errorf("relay_hook: post %s: %w", eventType, err)
	}
	return nil
}

// ── Default payload types ───────────────────────────

type fetchPayload struct {
	FetchID      string `json:"fetch_id"`
	DispatcherID string `json:"dispatcher_id"`
	Count        int    `json:"count,omitempty"`
	Error        string `json:"error,omitempty"`
}

type itemPayload struct {
	ItemID       string `json:"item_id"`
	DispatcherID string `json:"dispatcher_id"`
	Stage        string `json:"stage"`
	Attempt      int    `json:"attempt"`
}

func newItemPayload(it *task.Item) *itemPayload {
	return &itemPayload{
		ItemID:       it.ID.String(),
		DispatcherID: it.DispatcherID.String(),
		Stage:        string(it.Stage),
		Attempt:      it.Attempt,
	}
}

type itemElapsedPayload struct {
	itemPayload
	ElapsedMs int64 `json:"elapsed_ms"`
}

type itemFailedPayload struct {
	itemPayload
	Error string `json:"error"`
}
