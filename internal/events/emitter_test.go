package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryEventEmitter(t *testing.T) {
	// Create a minimal logger that discards output
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("emit event with no handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		event := NewUploadEvent(KindEnqueued, 1, "a.jpg")

		// Should not error even with no handlers
		err := emitter.EmitEvent(context.Background(), event)
		assert.NoError(t, err)
	})

	t.Run("emit event with successful handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		handler1 := &MockEventHandler{}
		handler2 := &MockEventHandler{}
		emitter.RegisterHandler(handler1)
		emitter.RegisterHandler(handler2)

		event := NewUploadEvent(KindSucceeded, 1, "a.jpg")
		err := emitter.EmitEvent(context.Background(), event)
		assert.NoError(t, err)

		// Verify both handlers received the event
		assert.Equal(t, 1, handler1.HandledCount)
		assert.Equal(t, 1, handler2.HandledCount)
		assert.Equal(t, event, handler1.LastEvent)
		assert.Equal(t, event, handler2.LastEvent)
	})

	t.Run("emit event with failing handler", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		successHandler := &MockEventHandler{}
		failingHandler := &MockEventHandler{
			HandlerError: errors.New("handler error"),
		}
		emitter.RegisterHandler(failingHandler)
		emitter.RegisterHandler(successHandler)

		err := emitter.EmitEvent(context.Background(), NewUploadEvent(KindFailed, 2, "b.jpg"))
		assert.EqualError(t, err, "handler error")

		// Both handlers should still have received the event
		assert.Equal(t, 1, successHandler.HandledCount)
		assert.Equal(t, 1, failingHandler.HandledCount)
	})

	t.Run("panicking handler does not stop delivery", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		after := &MockEventHandler{}
		emitter.RegisterHandler(EventHandlerFunc(func(ctx context.Context, event *UploadEvent) error {
			panic("boom")
		}))
		emitter.RegisterHandler(after)

		err := emitter.EmitEvent(context.Background(), NewUploadEvent(KindAborted, 3, "c.jpg"))
		assert.ErrorContains(t, err, "boom")
		assert.Equal(t, 1, after.HandledCount)
	})
}

func TestLogHandler(t *testing.T) {
	buf := &safeBuffer{}
	handler := NewLogHandler(slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	progress := NewUploadEvent(KindProgress, 1, "a.jpg")
	progress.Progress = 0.5
	assert.NoError(t, handler.HandleEvent(context.Background(), progress))
	assert.Empty(t, buf.String(), "progress is logged at debug level")

	success := NewUploadEvent(KindSucceeded, 1, "a.jpg")
	success.URL = "https://cdn.example.com/a.jpg"
	assert.NoError(t, handler.HandleEvent(context.Background(), success))

	out := buf.String()
	assert.Contains(t, out, `"msg":"upload.succeeded"`)
	assert.Contains(t, out, `"url":"https://cdn.example.com/a.jpg"`)
	assert.Contains(t, out, `"component":"upload_events"`)
}
