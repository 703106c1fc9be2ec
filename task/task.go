// Package task describes the items that flow through a dispatcher as seen
// by observers: middleware, extensions and the dead letter queue. The
// values themselves stay opaque; Item only carries identity and
// bookkeeping around them.
package task

import (
	"time"

	"github.com/xraph/taskdispatch/id"
)

// Stage identifies which dispatcher loop is handling an item.
type Stage string

const (
	// StageFetch is the fetch loop pulling new work from the source.
	StageFetch Stage = "fetch"
	// StageExecute is an execute loop running the worker callback.
	StageExecute Stage = "execute"
	// StageDeliver is the deliver loop handing a result to the sink.
	StageDeliver Stage = "deliver"
)

// Item is a read-only view of a work or result item at one point in its
// life. Attempt counts invocations of the current stage's callback,
// starting at 1.
//
// For StageFetch the Item describes the fetch call itself: ID is a fresh
// fetch ID and Value is nil.
type Item struct {
	ID           id.ID     `json:"id"`
	DispatcherID id.ID     `json:"dispatcher_id"`
	Stage        Stage     `json:"stage"`
	Attempt      int       `json:"attempt"`
	Value        any       `json:"-"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}

// Retried reports whether the item has been through its stage before.
func (it *Item) Retried() bool { return it.Attempt > 1 }
