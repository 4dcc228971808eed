package testkit

import (
	"errors"
	"io"
)

var ErrInjectedFault = errors.New("injected fault")

// ErrorReader passes through the first limit bytes of r, then fails with err.
type ErrorReader struct {
	r    io.Reader
	left int64
	err  error
}

// NewErrorReader wraps r. A nil err means ErrInjectedFault.
func NewErrorReader(r io.Reader, limit int64, err error) *ErrorReader {
	if err == nil {
		err = ErrInjectedFault
	}
	return &ErrorReader{r: r, left: limit, err: err}
}

func (e *ErrorReader) Read(p []byte) (int, error) {
	if e.left <= 0 {
		return 0, e.err
	}
	if int64(len(p)) > e.left {
		p = p[:e.left]
	}
	n, err := e.r.Read(p)
	e.left -= int64(n)
	if err == nil && e.left <= 0 {
		err = e.err
	}
	return n, err
}

// GateReader holds its first Read until Open is called. Reached is closed
// once a reader is waiting at the gate.
type GateReader struct {
	r       io.Reader
	Reached chan struct{}
	gate    chan struct{}
	passed  bool
}

func NewGateReader(r io.Reader) *GateReader {
	return &GateReader{r: r, Reached: make(chan struct{}), gate: make(chan struct{})}
}

// Open releases the held Read. Call it once.
func (g *GateReader) Open() { close(g.gate) }

func (g *GateReader) Read(p []byte) (int, error) {
	if !g.passed {
		g.passed = true
		close(g.Reached)
		<-g.gate
	}
	return g.r.Read(p)
}
