package relayhook

import "github.com/xraph/taskdispatch/httpx"

// Option configures an Extension.
type Option func(*Extension)

// PayloadFunc builds a custom event payload for a specific event type.
// The args parameter is the default payload and the returned value
// becomes Event.Data.
type PayloadFunc func(args any) (any, error)

// WithEvents restricts the extension to emit only the listed event types.
// By default every event type is enabled. Unknown types are silently
// ignored.
func WithEvents(events ...string) Option {
	return func(h *Extension) {
		h.enabled = make(map[string]bool, len(events))
		for _, e := range events {
			h.enabled[e] = true
		}
	}
}

// WithPayloadFunc registers a custom payload builder for the given event
// type. The function replaces the default JSON payload for that event.
func WithPayloadFunc(eventType string, fn PayloadFunc) Option {
	return func(h *Extension) {
		if h.payloads == nil {
			h.payloads = make(map[string]PayloadFunc)
		}
		h.payloads[eventType] = fn
	}
}

// WithClient sets the HTTP client used to post events.
func WithClient(c *httpx.Client) Option {
	return func(h *Extension) { h.client = c }
}

// WithSource sets Event.Source on every posted event. It is usually the
// dispatcher's ID.
func WithSource(source string) Option {
	return func(h *Extension) { h.source = source }
}
