package upload

import "sync"

// Pending is a ready-made Transfer for transports and test doubles. The
// transport reports progress and settles it exactly once with Resolve or
// Reject; later calls are ignored.
type Pending struct {
	progress chan float64
	done     chan struct{}

	settleOnce sync.Once
	abortOnce  sync.Once
	onAbort    func()

	url string
	err error
}

var _ Transfer = (*Pending)(nil)

// NewPending creates an unsettled transfer. onAbort, if not nil, is called
// once on the first Abort.
func NewPending(onAbort func()) *Pending {
	return &Pending{
		progress: make(chan float64),
		done:     make(chan struct{}),
		onAbort:  onAbort,
	}
}

// Report hands a progress update to the consumer. It blocks until the update
// is received or the transfer settles, and reports whether it was delivered.
func (p *Pending) Report(progress float64) bool {
	select {
	case <-p.done:
		return false
	default:
	}

	select {
	case p.progress <- progress:
		return true
	case <-p.done:
		return false
	}
}

// Resolve settles the transfer successfully with the uploaded resource URL
func (p *Pending) Resolve(url string) {
	p.settleOnce.Do(func() {
		p.url = url
		close(p.done)
	})
}

// Reject settles the transfer with an error. A nil err becomes ErrTransportFailed.
func (p *Pending) Reject(err error) {
	if err == nil {
		err = ErrTransportFailed
	}
	p.settleOnce.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Progress implements Transfer
func (p *Pending) Progress() <-chan float64 {
	return p.progress
}

// Done implements Transfer
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Result implements Transfer
func (p *Pending) Result() (string, error) {
	select {
	case <-p.done:
		return p.url, p.err
	default:
		return "", nil
	}
}

// Abort implements Transfer. It does not settle the transfer by itself.
func (p *Pending) Abort() {
	p.abortOnce.Do(func() {
		if p.onAbort != nil {
			p.onAbort()
		}
	})
}
