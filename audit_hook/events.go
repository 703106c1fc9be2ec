package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionItemsFetched       = "items.fetched"
	ActionFetchFailed        = "fetch.failed"
	ActionItemStarted        = "item.started"
	ActionItemCompleted      = "item.completed"
	ActionItemRetrying       = "item.retrying"
	ActionItemDropped        = "item.dropped"
	ActionResultDelivered    = "result.delivered"
	ActionDispatcherShutdown = "dispatcher.shutdown"
)

// Audit event categories group related actions.
const (
	CategoryFetch      = "taskdispatch.fetch"
	CategoryItem       = "taskdispatch.item"
	CategoryDispatcher = "taskdispatch.dispatcher"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceFetch      = "fetch"
	ResourceItem       = "item"
	ResourceDispatcher = "dispatcher"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionItemsFetched,
		ActionFetchFailed,
		ActionItemStarted,
		ActionItemCompleted,
		ActionItemRetrying,
		ActionItemDropped,
		ActionResultDelivered,
		ActionDispatcherShutdown,
	}
}
