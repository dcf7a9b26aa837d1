package history

import (
	"context"

	"github.com/phrazzld/uploadq/internal/events"
)

// Recorder saves one Record per terminal upload event. It implements
// events.EventHandler.
type Recorder struct {
	store Store
}

var _ events.EventHandler = (*Recorder)(nil)

// NewRecorder creates a Recorder writing to store
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// HandleEvent implements events.EventHandler. Non-terminal events are ignored.
func (r *Recorder) HandleEvent(ctx context.Context, event *events.UploadEvent) error {
	var status Status
	switch event.Kind {
	case events.KindSucceeded:
		status = StatusSucceeded
	case events.KindFailed:
		status = StatusFailed
	case events.KindAborted:
		status = StatusAborted
	default:
		return nil
	}

	return r.store.Save(ctx, Record{
		ID:          event.ID,
		TaskID:      event.TaskID,
		Path:        event.Path,
		Status:      status,
		URL:         event.URL,
		Message:     event.Message,
		CompletedAt: event.CreatedAt,
	})
}
