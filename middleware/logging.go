package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/taskdispatch/task"
)

// Logging returns middleware that logs the start and outcome of every
// execute and deliver call. Fetch calls are logged at debug level since
// they run on every poll.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, it *task.Item, next Handler) error {
		level := slog.LevelInfo
		if it.Stage == task.StageFetch {
			level = slog.LevelDebug
		}

		logger.Log(ctx, level, "callback started",
			slog.String("stage", string(it.Stage)),
			slog.String("item_id", it.ID.String()),
			slog.Int("attempt", it.Attempt),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("callback failed",
				slog.String("stage", string(it.Stage)),
				slog.String("item_id", it.ID.String()),
				slog.Int("attempt", it.Attempt),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Log(ctx, level, "callback completed",
				slog.String("stage", string(it.Stage)),
				slog.String("item_id", it.ID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
