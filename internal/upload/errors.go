package upload

import "errors"

// Common errors delivered through task outcomes and OnFail events
var (
	// ErrAborted is the outcome of a task that was cancelled with Abort.
	ErrAborted = errors.New("upload aborted")

	// ErrNoUploadFunc is reported when a batch was enqueued without an upload function.
	ErrNoUploadFunc = errors.New("no upload function")

	// ErrNilTransfer is reported when an upload function returns neither a transfer nor an error.
	ErrNilTransfer = errors.New("upload function returned no transfer")

	// ErrTransportFailed is used when a transfer is rejected without a cause.
	ErrTransportFailed = errors.New("transport failed")
)
