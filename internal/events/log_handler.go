package events

import (
	"context"
	"log/slog"
)

// LogHandler writes every upload event to a structured logger. Progress is
// logged at debug level, everything else at info.
type LogHandler struct {
	logger *slog.Logger
}

// NewLogHandler creates a LogHandler
func NewLogHandler(logger *slog.Logger) *LogHandler {
	return &LogHandler{logger: logger.With("component", "upload_events")}
}

// HandleEvent implements EventHandler
func (h *LogHandler) HandleEvent(ctx context.Context, event *UploadEvent) error {
	level := slog.LevelInfo
	if event.Kind == KindProgress {
		level = slog.LevelDebug
	}

	attrs := []any{
		"event_id", event.ID,
		"task_id", event.TaskID,
		"path", event.Path,
	}
	switch event.Kind {
	case KindProgress:
		attrs = append(attrs, "progress", event.Progress)
	case KindSucceeded:
		attrs = append(attrs, "url", event.URL)
	case KindFailed:
		attrs = append(attrs, "message", event.Message)
	}

	h.logger.Log(ctx, level, string(event.Kind), attrs...)
	return nil
}
