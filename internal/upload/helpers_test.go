package upload

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"
)

const (
	waitTimeout = time.Second
	idleWindow  = 50 * time.Millisecond
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// uploadCall is one invocation of the stub upload function
type uploadCall struct {
	path    string
	aux     any
	ctx     context.Context
	pending *Pending
	aborted chan struct{}
}

// stubUploader is a transport test double whose transfers settle only when
// the test says so
type stubUploader struct {
	calls chan *uploadCall
}

func newStubUploader() *stubUploader {
	return &stubUploader{calls: make(chan *uploadCall, 32)}
}

func (s *stubUploader) upload(ctx context.Context, path string, aux any) (Transfer, error) {
	call := &uploadCall{path: path, aux: aux, ctx: ctx, aborted: make(chan struct{})}
	call.pending = NewPending(func() { close(call.aborted) })
	s.calls <- call
	return call.pending, nil
}

// next waits for the queue to start the next upload
func (s *stubUploader) next(t *testing.T) *uploadCall {
	t.Helper()
	select {
	case call := <-s.calls:
		return call
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for an upload to start")
		return nil
	}
}

// expectIdle fails if an upload starts within the idle window
func (s *stubUploader) expectIdle(t *testing.T) {
	t.Helper()
	select {
	case call := <-s.calls:
		t.Fatalf("unexpected upload of %q", call.path)
	case <-time.After(idleWindow):
	}
}

// recorder collects lifecycle callbacks
type recorder struct {
	progress  chan ProgressEvent
	successes chan SuccessEvent
	fails     chan FailEvent
	aborts    chan AbortEvent
}

func newRecorder() *recorder {
	return &recorder{
		progress:  make(chan ProgressEvent, 32),
		successes: make(chan SuccessEvent, 32),
		fails:     make(chan FailEvent, 32),
		aborts:    make(chan AbortEvent, 32),
	}
}

func (r *recorder) options() Options {
	return Options{
		OnProgress: func(e ProgressEvent) { r.progress <- e },
		OnSuccess:  func(e SuccessEvent) { r.successes <- e },
		OnFail:     func(e FailEvent) { r.fails <- e },
		OnAbort:    func(e AbortEvent) { r.aborts <- e },
	}
}

func receive[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %s", what)
		var zero T
		return zero
	}
}

func expectNone[T any](t *testing.T, ch <-chan T, what string) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected %s: %+v", what, v)
	case <-time.After(idleWindow):
	}
}

// waitFor polls cond until it holds or the timeout expires
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}
