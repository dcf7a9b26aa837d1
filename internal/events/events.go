package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind identifies what happened to an upload task
type Kind string

const (
	KindEnqueued  Kind = "upload.enqueued"
	KindProgress  Kind = "upload.progress"
	KindSucceeded Kind = "upload.succeeded"
	KindFailed    Kind = "upload.failed"
	KindAborted   Kind = "upload.aborted"
)

// Terminal reports whether no further events follow for the task
func (k Kind) Terminal() bool {
	return k == KindSucceeded || k == KindFailed || k == KindAborted
}

// UploadEvent describes one lifecycle step of an upload task.
type UploadEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Kind indicates what happened
	Kind Kind `json:"kind"`

	// TaskID is the queue-assigned task id
	TaskID int64 `json:"task_id"`

	// Path is the local file being uploaded
	Path string `json:"path,omitempty"`

	// URL is set on success
	URL string `json:"url,omitempty"`

	// Message is set on failure
	Message string `json:"message,omitempty"`

	// Progress is set on progress events, in [0, 1]
	Progress float64 `json:"progress,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewUploadEvent creates an UploadEvent of the given kind for a task.
func NewUploadEvent(kind Kind, taskID int64, path string) *UploadEvent {
	return &UploadEvent{
		ID:        uuid.New(),
		Kind:      kind,
		TaskID:    taskID,
		Path:      path,
		CreatedAt: time.Now().UTC(),
	}
}

// EventHandler defines an interface for components that can handle events.
// Handlers are responsible for processing events and taking appropriate actions.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *UploadEvent) error
}

// EventHandlerFunc adapts an ordinary function to EventHandler
type EventHandlerFunc func(ctx context.Context, event *UploadEvent) error

// HandleEvent calls f(ctx, event)
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *UploadEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows the bridge to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *UploadEvent) error
}
