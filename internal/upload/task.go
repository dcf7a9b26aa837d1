package upload

import (
	"context"
	"time"
)

// UploadFunc starts the transfer of the file at path and returns a handle to
// it without waiting for completion. aux is whatever Options.BeforeUpload
// produced for this task, or nil. ctx is cancelled when the task is aborted.
type UploadFunc func(ctx context.Context, path string, aux any) (Transfer, error)

// Transfer is an in-flight upload owned by the transport.
type Transfer interface {
	// Progress delivers fractional progress updates until the transfer settles
	Progress() <-chan float64

	// Done is closed once the transfer has either succeeded or failed
	Done() <-chan struct{}

	// Result returns the uploaded resource URL or the failure.
	// Only meaningful after Done is closed.
	Result() (url string, err error)

	// Abort asks the transport to stop. The transfer is still expected to
	// settle afterwards.
	Abort()
}

// ProgressEvent reports progress of the active task
type ProgressEvent struct {
	Progress float64
	TaskID   int64
}

// SuccessEvent reports a completed upload
type SuccessEvent struct {
	URL    string
	TaskID int64
}

// FailEvent reports a failed upload. Message is Err.Error().
type FailEvent struct {
	Message string
	TaskID  int64
	Err     error
}

// AbortEvent reports a cancelled task
type AbortEvent struct {
	TaskID int64
}

// Options are the optional per-batch hooks shared by every task of an
// AddFiles call. Nil hooks are skipped.
type Options struct {
	// BeforeUpload runs once per task right before UploadFunc, typically to
	// fetch an access token. Its result is passed to UploadFunc as aux.
	BeforeUpload func(ctx context.Context) (any, error)

	OnProgress func(ProgressEvent)
	OnSuccess  func(SuccessEvent)
	OnFail     func(FailEvent)
	OnAbort    func(AbortEvent)
}

// Outcome is the terminal result of a task. Err is nil on success and
// ErrAborted for cancelled tasks.
type Outcome struct {
	TaskID int64
	URL    string
	Err    error
}

// Ticket identifies an enqueued task and yields its outcome
type Ticket struct {
	ID   int64
	Path string

	done <-chan Outcome
}

// Done receives the task's outcome exactly once
func (t *Ticket) Done() <-chan Outcome {
	return t.done
}

// TaskInfo is a read-only snapshot of a queued task
type TaskInfo struct {
	ID         int64     `json:"id"`
	Path       string    `json:"path"`
	Active     bool      `json:"active"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// task is one upload request living in the queue
type task struct {
	id     int64
	path   string
	upload UploadFunc
	opts   Options

	// ctx is the cancellation token handed to BeforeUpload and UploadFunc
	ctx    context.Context
	cancel context.CancelFunc

	// transfer is set once UploadFunc returns and cleared on completion.
	// Guarded by Queue.mu.
	transfer Transfer

	// cancelled is set by Abort. Guarded by Queue.mu.
	cancelled bool

	done       chan Outcome
	enqueuedAt time.Time
}

func newTask(id int64, path string, fn UploadFunc, opts Options) *task {
	ctx, cancel := context.WithCancel(context.Background())
	return &task{
		id:         id,
		path:       path,
		upload:     fn,
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan Outcome, 1),
		enqueuedAt: time.Now().UTC(),
	}
}

// finish publishes the outcome and releases the task context. Each task
// reaches exactly one terminal path, so this runs once per task.
func (t *task) finish(outcome Outcome) {
	outcome.TaskID = t.id
	t.done <- outcome
	t.cancel()
}
