package upload

import (
	"log/slog"
	"sync"
)

var (
	defaultOnce  sync.Once
	defaultQueue *Queue
)

// Default returns the process-wide queue shared by the package-level
// functions. It is created on first use with DefaultQueueConfig and the
// default slog logger.
func Default() *Queue {
	defaultOnce.Do(func() {
		defaultQueue = NewQueue(DefaultQueueConfig(), slog.Default())
	})
	return defaultQueue
}

// AddFiles enqueues paths on the default queue
func AddFiles(paths []string, fn UploadFunc, opts Options) []int64 {
	return Default().AddFiles(paths, fn, opts)
}

// AddFile enqueues a single path on the default queue
func AddFile(path string, fn UploadFunc, opts Options) int64 {
	return Default().AddFile(path, fn, opts)
}

// Abort cancels a task on the default queue
func Abort(taskID int64) {
	Default().Abort(taskID)
}
