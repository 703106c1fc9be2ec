package dlq

import (
	"context"
	"log/slog"

	"github.com/xraph/taskdispatch/ext"
	"github.com/xraph/taskdispatch/task"
)

// Compile-time interface checks.
var (
	_ ext.Extension   = (*Extension)(nil)
	_ ext.ItemDropped = (*Extension)(nil)
)

// Extension records every dropped item into a Store.
type Extension struct {
	store  Store
	logger *slog.Logger
}

// NewExtension creates an Extension writing to store.
func NewExtension(store Store, logger *slog.Logger) *Extension {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extension{store: store, logger: logger}
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "dlq" }

// Store returns the underlying store for List, Get, Purge and Count.
func (e *Extension) Store() Store { return e.store }

// OnItemDropped implements ext.ItemDropped.
func (e *Extension) OnItemDropped(ctx context.Context, it *task.Item, itemErr error) error {
	entry := NewEntry(it, itemErr)
	if err := e.store.Push(ctx, entry); err != nil {
		return err
	}
	e.logger.Debug("item moved to dlq",
		slog.String("entry_id", entry.ID.String()),
		slog.String("item_id", it.ID.String()),
		slog.String("stage", string(it.Stage)),
	)
	return nil
}
