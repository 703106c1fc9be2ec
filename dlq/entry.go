package dlq

import (
	"time"

	"github.com/xraph/taskdispatch/id"
	"github.com/xraph/taskdispatch/task"
)

// Entry represents an item that a dispatcher dropped, kept for
// inspection or replay.
type Entry struct {
	ID           id.ID      `json:"id"`
	ItemID       id.ID      `json:"item_id"`
	DispatcherID id.ID      `json:"dispatcher_id"`
	Stage        task.Stage `json:"stage"`
	Attempt      int        `json:"attempt"`
	Value        any        `json:"-"`
	Error        string     `json:"error"`
	FailedAt     time.Time  `json:"failed_at"`
	ReplayedAt   *time.Time `json:"replayed_at,omitempty"`
}

// NewEntry builds an Entry from a dropped item and the error that
// dropped it.
func NewEntry(it *task.Item, itemErr error) *Entry {
	msg := ""
	if itemErr != nil {
		msg = itemErr.Error()
	}
	return &Entry{
		ID:           id.NewDLQID(),
		ItemID:       it.ID,
		DispatcherID: it.DispatcherID,
		Stage:        it.Stage,
		Attempt:      it.Attempt,
		Value:        it.Value,
		Error:        msg,
		FailedAt:     time.Now().UTC(),
	}
}

// Replayed reports whether the entry has been replayed.
func (e *Entry) Replayed() bool { return e.ReplayedAt != nil }
