package upload

import (
	"cmp"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
)

// AbortPolicy decides what happens to the execution slot when the active
// task is cancelled.
type AbortPolicy string

const (
	// AbortWaitSettle keeps the slot busy until the aborted transfer settles.
	// A transport that never settles after Abort stalls the queue.
	AbortWaitSettle AbortPolicy = "wait_settle"

	// AbortReleaseSlot frees the slot immediately and starts the next task.
	// The aborted transfer's eventual result is ignored.
	AbortReleaseSlot AbortPolicy = "release_slot"
)

// QueueConfig holds configuration options for the upload queue
type QueueConfig struct {
	// AbortPolicy controls cancellation of the active task.
	// Defaults to AbortWaitSettle.
	AbortPolicy AbortPolicy
}

// DefaultQueueConfig returns a QueueConfig with the default settings
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		AbortPolicy: AbortWaitSettle,
	}
}

// Queue uploads enqueued files one at a time in FIFO order.
//
// Tasks are kept in a slice sorted by ascending id: ids come from a strictly
// increasing counter, tasks are only appended at the tail or spliced out, and
// the active task stays at the head until it completes. Lookups by id rely on
// that order.
type Queue struct {
	mu     sync.Mutex
	tasks  []*task
	active *task
	nextID int64

	config QueueConfig
	logger *slog.Logger

	// schedule runs the deferred drain after an enqueue
	schedule func(func())
}

// NewQueue creates an empty upload queue
func NewQueue(config QueueConfig, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}

	switch config.AbortPolicy {
	case AbortWaitSettle, AbortReleaseSlot:
	case "":
		config.AbortPolicy = AbortWaitSettle
	default:
		logger.Warn("invalid abort policy specified, using default",
			"specified_policy", config.AbortPolicy,
			"default_policy", AbortWaitSettle)
		config.AbortPolicy = AbortWaitSettle
	}

	return &Queue{
		tasks:    make([]*task, 0),
		config:   config,
		logger:   logger.With("component", "upload_queue"),
		schedule: func(fn func()) { go fn() },
	}
}

// Enqueue creates one task per path, appends them to the queue in order and
// schedules a drain. Every task of the batch shares fn and opts.
func (q *Queue) Enqueue(paths []string, fn UploadFunc, opts Options) []*Ticket {
	tickets := make([]*Ticket, 0, len(paths))
	if len(paths) == 0 {
		return tickets
	}

	tasks := make([]*task, 0, len(paths))

	q.mu.Lock()
	for _, path := range paths {
		q.nextID++
		t := newTask(q.nextID, path, fn, opts)
		tasks = append(tasks, t)
		tickets = append(tickets, &Ticket{ID: t.id, Path: path, done: t.done})
	}
	q.add(tasks...)
	queueLen := len(q.tasks)
	q.mu.Unlock()

	q.logger.Debug("tasks enqueued",
		"task_count", len(tasks),
		"first_task_id", tasks[0].id,
		"last_task_id", tasks[len(tasks)-1].id,
		"queue_len", queueLen)

	q.schedule(q.executeNext)

	return tickets
}

// AddFiles enqueues paths and returns their task ids. Uploading happens later.
func (q *Queue) AddFiles(paths []string, fn UploadFunc, opts Options) []int64 {
	tickets := q.Enqueue(paths, fn, opts)
	ids := make([]int64, len(tickets))
	for i, ticket := range tickets {
		ids[i] = ticket.ID
	}
	return ids
}

// AddFile enqueues a single path and returns its task id
func (q *Queue) AddFile(path string, fn UploadFunc, opts Options) int64 {
	return q.AddFiles([]string{path}, fn, opts)[0]
}

// Abort cancels a task. A queued task is dropped before it starts; an active
// task has its transfer aborted. OnAbort fires in both cases. Unknown or
// already finished ids are ignored.
func (q *Queue) Abort(taskID int64) {
	q.remove(taskID, true)
}

// Len returns the number of queued tasks, including the active one
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Busy reports whether a task is currently executing
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active != nil
}

// Snapshot returns the queued tasks in execution order
func (q *Queue) Snapshot() []TaskInfo {
	q.mu.Lock()
	defer q.mu.Unlock()

	infos := make([]TaskInfo, len(q.tasks))
	for i, t := range q.tasks {
		infos[i] = TaskInfo{
			ID:         t.id,
			Path:       t.path,
			Active:     t == q.active,
			EnqueuedAt: t.enqueuedAt,
		}
	}
	return infos
}

// add appends tasks at the tail. Callers must hold q.mu.
func (q *Queue) add(tasks ...*task) {
	for _, t := range tasks {
		if n := len(q.tasks); n > 0 && q.tasks[n-1].id >= t.id {
			panic(fmt.Sprintf("upload: task %d appended after task %d", t.id, q.tasks[n-1].id))
		}
		q.tasks = append(q.tasks, t)
	}
}

// find returns the position of the task with the given id. Callers must hold q.mu.
func (q *Queue) find(taskID int64) (int, bool) {
	return slices.BinarySearchFunc(q.tasks, taskID, func(t *task, id int64) int {
		return cmp.Compare(t.id, id)
	})
}

// detach splices the task out of the queue. Callers must hold q.mu.
func (q *Queue) detach(taskID int64) *task {
	i, ok := q.find(taskID)
	if !ok {
		return nil
	}
	t := q.tasks[i]
	q.tasks = slices.Delete(q.tasks, i, i+1)
	return t
}

// remove takes a task out of the queue. With doAbort the task is cancelled:
// its context is cancelled, its live transfer (if any) is aborted and
// OnAbort is notified.
func (q *Queue) remove(taskID int64, doAbort bool) {
	q.mu.Lock()
	t := q.detach(taskID)
	if t == nil {
		q.mu.Unlock()
		if doAbort {
			q.logger.Debug("abort ignored, task not queued", "task_id", taskID)
		}
		return
	}
	if !doAbort {
		q.mu.Unlock()
		return
	}

	t.cancelled = true
	transfer := t.transfer
	wasActive := q.active == t
	release := wasActive && q.config.AbortPolicy == AbortReleaseSlot
	if release {
		q.active = nil
	}
	q.mu.Unlock()

	if transfer != nil {
		transfer.Abort()
	}
	t.finish(Outcome{Err: ErrAborted})

	q.logger.Info("upload aborted",
		"task_id", t.id,
		"was_active", wasActive,
		"transfer_started", transfer != nil)

	if t.opts.OnAbort != nil {
		q.invoke(t.id, "on_abort", func() {
			t.opts.OnAbort(AbortEvent{TaskID: t.id})
		})
	}

	switch {
	case release:
		q.executeNext()
	case wasActive && transfer != nil:
		q.logger.Warn("active upload aborted, queue resumes once its transfer settles",
			"task_id", t.id)
	}
}

// executeNext starts the head task unless one is already running or the
// queue is empty. Safe to call redundantly.
func (q *Queue) executeNext() {
	q.mu.Lock()
	if q.active != nil || len(q.tasks) == 0 {
		q.mu.Unlock()
		return
	}
	// The head stays queued while it runs so Abort can still find it
	t := q.tasks[0]
	q.active = t
	q.mu.Unlock()

	go q.run(t)
}

// run executes one task and hands its result to complete
func (q *Queue) run(t *task) {
	logger := q.logger.With("task_id", t.id)
	logger.Info("upload started", "path", t.path)

	url, err := q.execute(t)
	q.complete(t, url, err)
}

// execute drives a task through BeforeUpload, UploadFunc and the transfer's
// settlement. Panics from caller-supplied hooks become failures.
func (q *Queue) execute(t *task) (url string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("upload panicked: %v", r)
			q.logger.Error("upload panicked",
				"task_id", t.id,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	var aux any
	if t.opts.BeforeUpload != nil {
		aux, err = t.opts.BeforeUpload(t.ctx)
		if err != nil {
			return "", fmt.Errorf("before upload: %w", err)
		}
	}

	if t.upload == nil {
		return "", ErrNoUploadFunc
	}

	q.mu.Lock()
	cancelled := t.cancelled
	q.mu.Unlock()
	if cancelled {
		return "", ErrAborted
	}

	transfer, err := t.upload(t.ctx, t.path, aux)
	if err != nil {
		return "", fmt.Errorf("start upload: %w", err)
	}
	if transfer == nil {
		return "", ErrNilTransfer
	}

	q.mu.Lock()
	t.transfer = transfer
	cancelled = t.cancelled
	q.mu.Unlock()

	// Abort raced with UploadFunc and could not see the transfer
	if cancelled {
		transfer.Abort()
	}

	progress := transfer.Progress()
	for {
		select {
		case p, ok := <-progress:
			if !ok {
				progress = nil
				continue
			}
			q.forwardProgress(t, p)
		case <-transfer.Done():
			return transfer.Result()
		}
	}
}

// forwardProgress relays an update while the task is still the active one
func (q *Queue) forwardProgress(t *task, progress float64) {
	if t.opts.OnProgress == nil {
		return
	}

	q.mu.Lock()
	current := q.active == t && !t.cancelled
	q.mu.Unlock()
	if !current {
		return
	}

	q.invoke(t.id, "on_progress", func() {
		t.opts.OnProgress(ProgressEvent{Progress: progress, TaskID: t.id})
	})
}

// complete releases the slot, drops the task and dispatches its terminal
// callback. The next drain step runs even if the callback panics.
func (q *Queue) complete(t *task, url string, err error) {
	q.mu.Lock()
	owned := q.active == t
	if owned {
		q.active = nil
	}
	q.detach(t.id)
	t.transfer = nil
	cancelled := t.cancelled
	q.mu.Unlock()

	if owned {
		defer q.executeNext()
	}

	logger := q.logger.With("task_id", t.id)

	// Abort already delivered the outcome
	if cancelled {
		logger.Info("aborted upload settled", "error", err, "slot_owned", owned)
		return
	}

	if err != nil {
		logger.Error("upload failed", "error", err)
		t.finish(Outcome{Err: err})
		if t.opts.OnFail != nil {
			q.invoke(t.id, "on_fail", func() {
				t.opts.OnFail(FailEvent{Message: err.Error(), TaskID: t.id, Err: err})
			})
		}
		return
	}

	logger.Info("upload completed", "url", url)
	t.finish(Outcome{URL: url})
	if t.opts.OnSuccess != nil {
		q.invoke(t.id, "on_success", func() {
			t.opts.OnSuccess(SuccessEvent{URL: url, TaskID: t.id})
		})
	}
}

// invoke runs a caller callback and logs instead of propagating a panic
func (q *Queue) invoke(taskID int64, callback string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("upload callback panicked",
				"task_id", taskID,
				"callback", callback,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}
