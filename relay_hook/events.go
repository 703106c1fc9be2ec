package relayhook

// Dispatcher lifecycle event types. Each constant maps to one ext lifecycle
// hook and is used as Event.Type in the posted envelope.
const (
	EventItemsFetched       = "taskdispatch.items.fetched"
	EventFetchFailed        = "taskdispatch.fetch.failed"
	EventItemStarted        = "taskdispatch.item.started"
	EventItemCompleted      = "taskdispatch.item.completed"
	EventItemRetrying       = "taskdispatch.item.retrying"
	EventItemDropped        = "taskdispatch.item.dropped"
	EventResultDelivered    = "taskdispatch.result.delivered"
	EventDispatcherShutdown = "taskdispatch.dispatcher.shutdown"
)

// Definition documents one webhook event type for receivers.
type Definition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Group       string `json:"group"`
}

// AllDefinitions returns definitions for every event type this extension
// can emit.
func AllDefinitions() []Definition {
	return []Definition{
		// ── Fetch events ────────────────────────────────
		{
			Name:        EventItemsFetched,
			Description: "Fired when a fetch call returns new work items.",
			Group:       "fetch",
		},
		{
			Name:        EventFetchFailed,
			Description: "Fired when a fetch call fails or panics.",
			Group:       "fetch",
		},

		// ── Item events ─────────────────────────────────
		{
			Name:        EventItemStarted,
			Description: "Fired before an execute or deliver callback runs.",
			Group:       "items",
		},
		{
			Name:        EventItemCompleted,
			Description: "Fired when a work item produces a result.",
			Group:       "items",
		},
		{
			Name:        EventItemRetrying,
			Description: "Fired when an item is requeued after a retryable failure.",
			Group:       "items",
		},
		{
			Name:        EventItemDropped,
			Description: "Fired when an item is discarded after a permanent failure.",
			Group:       "items",
		},
		{
			Name:        EventResultDelivered,
			Description: "Fired when a result is handed to the sink.",
			Group:       "items",
		},

		// ── Dispatcher events ───────────────────────────
		{
			Name:        EventDispatcherShutdown,
			Description: "Fired once after the dispatcher has shut down.",
			Group:       "dispatcher",
		},
	}
}
