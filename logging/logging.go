// Package logging offers a four-level title and content logger on top of
// log/slog, for callbacks and example programs that report progress as
// short titled messages.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// Helper writes titled messages to a *slog.Logger. The title becomes the
// record message and the content is attached as the "content" attribute.
type Helper struct {
	logger *slog.Logger
}

// New wraps logger. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Helper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Helper{logger: logger}
}

// NewText builds a logger writing slog text records to w at level and
// above.
func NewText(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// ParseLevel maps "debug", "info", "warn" or "warning", and "error"
// (any case) to a slog level. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger returns the wrapped logger.
func (h *Helper) Logger() *slog.Logger { return h.logger }

// Debug logs at debug level.
func (h *Helper) Debug(title, content string) { h.log(slog.LevelDebug, title, content) }

// Info logs at info level.
func (h *Helper) Info(title, content string) { h.log(slog.LevelInfo, title, content) }

// Warn logs at warn level.
func (h *Helper) Warn(title, content string) { h.log(slog.LevelWarn, title, content) }

// Error logs at error level.
func (h *Helper) Error(title, content string) { h.log(slog.LevelError, title, content) }

func (h *Helper) log(level slog.Level, title, content string) {
	h.logger.Log(context.Background(), level, title, slog.String("content", content))
}
