package httpupload

import (
	"io"

	"golang.org/x/time/rate"
)

// progressReader counts bytes as they are read and reports the fraction
// read, at most as often as limiter allows. The final 1.0 is reported by
// the caller once the body is complete.
type progressReader struct {
	reader  io.Reader
	read    int64
	total   int64
	limiter *rate.Limiter
	report  func(float64) bool
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.reader.Read(b)
	p.read += int64(n)
	if n > 0 && p.total > 0 && p.read < p.total && p.limiter.Allow() {
		p.report(float64(p.read) / float64(p.total))
	}
	return n, err
}
