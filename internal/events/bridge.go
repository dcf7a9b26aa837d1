package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/phrazzld/uploadq/internal/upload"
)

// Enqueuer is the part of the upload queue the bridge needs
type Enqueuer interface {
	Enqueue(paths []string, fn upload.UploadFunc, opts upload.Options) []*upload.Ticket
}

// Bridge enqueues files with callbacks that emit UploadEvents.
type Bridge struct {
	queue        Enqueuer
	emitter      EventEmitter
	upload       upload.UploadFunc
	beforeUpload func(ctx context.Context) (any, error)
	logger       *slog.Logger

	// paths maps live task ids to their files; callbacks only carry ids
	mu    sync.Mutex
	paths map[int64]string
}

// BridgeOption customizes a Bridge
type BridgeOption func(*Bridge)

// WithBeforeUpload sets the BeforeUpload hook used for every task, typically
// auth.TokenSource.BeforeUpload.
func WithBeforeUpload(fn func(ctx context.Context) (any, error)) BridgeOption {
	return func(b *Bridge) {
		b.beforeUpload = fn
	}
}

// NewBridge creates a Bridge that uploads with fn and reports to emitter.
func NewBridge(
	queue Enqueuer,
	emitter EventEmitter,
	fn upload.UploadFunc,
	logger *slog.Logger,
	opts ...BridgeOption,
) *Bridge {
	b := &Bridge{
		queue:   queue,
		emitter: emitter,
		upload:  fn,
		logger:  logger.With("component", "event_bridge"),
		paths:   make(map[int64]string),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Submit enqueues paths as one batch and returns their task ids. Events are
// emitted with a context that ignores ctx's cancellation. Handlers must not
// call Submit.
func (b *Bridge) Submit(ctx context.Context, paths []string) []int64 {
	ctx = context.WithoutCancel(ctx)

	// Callbacks block on mu until the batch is recorded and announced, so
	// KindEnqueued always comes first for a task
	b.mu.Lock()
	defer b.mu.Unlock()

	tickets := b.queue.Enqueue(paths, b.upload, b.options(ctx))
	ids := make([]int64, len(tickets))
	for i, ticket := range tickets {
		b.paths[ticket.ID] = ticket.Path
		ids[i] = ticket.ID
	}
	for _, ticket := range tickets {
		b.emit(ctx, NewUploadEvent(KindEnqueued, ticket.ID, ticket.Path))
	}
	return ids
}

// options builds the queue callbacks for one batch
func (b *Bridge) options(ctx context.Context) upload.Options {
	return upload.Options{
		BeforeUpload: b.beforeUpload,
		OnProgress: func(e upload.ProgressEvent) {
			event := b.event(KindProgress, e.TaskID)
			event.Progress = e.Progress
			b.emit(ctx, event)
		},
		OnSuccess: func(e upload.SuccessEvent) {
			event := b.event(KindSucceeded, e.TaskID)
			event.URL = e.URL
			b.emit(ctx, event)
		},
		OnFail: func(e upload.FailEvent) {
			event := b.event(KindFailed, e.TaskID)
			event.Message = e.Message
			b.emit(ctx, event)
		},
		OnAbort: func(e upload.AbortEvent) {
			b.emit(ctx, b.event(KindAborted, e.TaskID))
		},
	}
}

// event creates an event for a task, forgetting the task's path once the
// kind is terminal
func (b *Bridge) event(kind Kind, taskID int64) *UploadEvent {
	b.mu.Lock()
	path := b.paths[taskID]
	if kind.Terminal() {
		delete(b.paths, taskID)
	}
	b.mu.Unlock()

	return NewUploadEvent(kind, taskID, path)
}

func (b *Bridge) emit(ctx context.Context, event *UploadEvent) {
	if err := b.emitter.EmitEvent(ctx, event); err != nil {
		b.logger.Warn("upload event not fully handled",
			"event_id", event.ID,
			"event_kind", event.Kind,
			"task_id", event.TaskID,
			"error", err)
	}
}
