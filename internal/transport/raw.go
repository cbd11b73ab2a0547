package transport

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// maxBody caps how much of a response body is drained before returning.
const maxBody = 1 << 20

// Raw sends hand-written requests over a new connection per call. Nothing
// is pooled, so a smuggled fragment can never bleed into the next probe.
type Raw struct {
	dialer      proxy.ContextDialer
	fingerprint string
	insecure    bool
}

// RawOption configures a Raw sender.
type RawOption func(*Raw)

// WithDialer routes connections through d, e.g. a SOCKS proxy. A nil d
// keeps the direct dialer.
func WithDialer(d proxy.ContextDialer) RawOption {
	return func(r *Raw) {
		if d != nil {
			r.dialer = d
		}
	}
}

// WithFingerprint selects a browser TLS client hello (see ClientHello).
func WithFingerprint(name string) RawOption {
	return func(r *Raw) { r.fingerprint = name }
}

// WithVerify enables certificate verification.
func WithVerify(verify bool) RawOption {
	return func(r *Raw) { r.insecure = !verify }
}

// NewRaw creates a sender. Certificates are not verified unless WithVerify
// is given.
func NewRaw(opts ...RawOption) (*Raw, error) {
	r := &Raw{
		dialer:   &net.Dialer{},
		insecure: true,
	}
	for _, o := range opts {
		o(r)
	}
	if _, err := ClientHello(r.fingerprint); err != nil {
		return nil, err
	}
	return r, nil
}

// Send implements Sender. req.Timeout bounds the whole exchange.
func (r *Raw) Send(ctx context.Context, req Request) (*Response, error) {
	addr := net.JoinHostPort(req.Host, strconv.Itoa(req.Port))
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	start := time.Now()
	conn, err := r.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, r.fail(ctx, "dial", addr, KindConnection, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// Unblock pending reads and writes when the caller cancels.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if req.TLS {
		conn, err = r.handshake(ctx, conn, req.Host)
		if err != nil {
			return nil, r.fail(ctx, "handshake", addr, KindTLS, err)
		}
	}

	if _, err := io.WriteString(conn, req.Raw); err != nil {
		return nil, r.fail(ctx, "write", addr, KindIO, err)
	}

	text, err := readResponse(conn, requestMethod(req.Raw))
	elapsed := time.Since(start)
	if err != nil && text == "" {
		return nil, r.fail(ctx, "read", addr, KindIO, err)
	}
	return &Response{Text: text, Elapsed: elapsed}, nil
}

// fail reports caller cancellation as-is so it is never mistaken for a
// target-side timeout.
func (r *Raw) fail(ctx context.Context, op, addr string, kind Kind, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%s %s: %w", op, addr, ctx.Err())
	}
	return wrap(op, addr, kind, err)
}

func (r *Raw) handshake(ctx context.Context, conn net.Conn, host string) (net.Conn, error) {
	if r.fingerprint != "" {
		return handshakeUTLS(ctx, conn, host, r.fingerprint, r.insecure)
	}
	tc := tls.Client(conn, &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: r.insecure,
		NextProtos:         []string{"http/1.1"},
	})
	if err := tc.HandshakeContext(ctx); err != nil {
		return nil, err
	}
	return tc, nil
}

// readResponse reads one response and returns its raw bytes. Bytes that do
// not parse as HTTP are still returned so the caller can inspect them.
func readResponse(conn net.Conn, method string) (string, error) {
	var raw bytes.Buffer
	br := bufio.NewReader(io.TeeReader(conn, &raw))

	resp, err := http.ReadResponse(br, &http.Request{Method: method})
	if err != nil {
		if raw.Len() > 0 && !isDeadline(err) {
			return raw.String(), nil
		}
		return raw.String(), err
	}
	defer resp.Body.Close()

	_, err = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !isDeadline(err) {
		return raw.String(), err
	}
	return raw.String(), nil
}

func requestMethod(raw string) string {
	if i := strings.IndexByte(raw, ' '); i > 0 {
		return raw[:i]
	}
	return http.MethodGet
}
