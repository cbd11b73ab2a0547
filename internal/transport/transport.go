// Package transport sends raw request bytes over a fresh TCP or TLS
// connection and reads back a single response within a hard deadline.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// Request is one raw exchange with a target.
type Request struct {
	Host    string
	Port    int
	Raw     string
	Timeout time.Duration
	TLS     bool
}

// Response holds what came back and how long the whole exchange took,
// including dial and handshake.
type Response struct {
	Text    string
	Elapsed time.Duration
}

// Sender is implemented by anything that can deliver a Request.
type Sender interface {
	Send(ctx context.Context, req Request) (*Response, error)
}

// Kind classifies a transport failure.
type Kind int

const (
	KindTimeout Kind = iota + 1
	KindConnection
	KindTLS
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection error"
	case KindTLS:
		return "tls error"
	case KindIO:
		return "i/o error"
	default:
		return "unknown"
	}
}

// ErrTimeout matches any *Error of KindTimeout via errors.Is.
var ErrTimeout = errors.New("transport: timed out")

// Error is returned by Raw for every failed exchange.
type Error struct {
	Kind Kind
	Op   string // dial, handshake, write, read
	Addr string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Addr, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Timeout reports whether the failure was the deadline expiring.
func (e *Error) Timeout() bool { return e.Kind == KindTimeout }

// Is lets errors.Is(err, ErrTimeout) match timeout-kind errors.
func (e *Error) Is(target error) bool {
	return target == ErrTimeout && e.Kind == KindTimeout
}

// wrap tags err with kind, promoting it to KindTimeout when the underlying
// cause is a deadline.
func wrap(op, addr string, kind Kind, err error) error {
	if isDeadline(err) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Op: op, Addr: addr, Err: err}
}

func isDeadline(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
