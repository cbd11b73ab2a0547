// Package detector runs smuggling checks: a timing baseline, then each
// attack payload in order until one is classified as vulnerable.
package detector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maxvaer/smugprobe/internal/report"
	"github.com/maxvaer/smugprobe/internal/transport"
)

// ErrBaseline wraps failures of the baseline request. No result is
// produced for a check whose baseline failed.
var ErrBaseline = errors.New("baseline request failed")

// Check describes one family scan against one target.
type Check struct {
	Name       string   // family identifier, e.g. "CL.TE"
	Payloads   []string // raw attack requests, tried in order
	Host       string   // dial host, without brackets
	HostHeader string   // Host header value; empty means Host
	Port       int
	Path       string // request target for the baseline
	Timeout    time.Duration
	TLS        bool
}

// Scanner executes checks over a transport and reports through a sink.
// A Scanner holds no per-check state and may run checks concurrently.
type Scanner struct {
	sender transport.Sender
	sink   report.Sink
	now    func() time.Time
}

// New creates a Scanner. A nil sink discards report text.
func New(sender transport.Sender, sink report.Sink) *Scanner {
	if sink == nil {
		sink = report.Discard
	}
	return &Scanner{sender: sender, sink: sink, now: time.Now}
}

// BaselineRequest is the control request used to measure normal latency.
func BaselineRequest(path, host string) string {
	return fmt.Sprintf("GET %s HTTP/1.1\r\nHost: %s\r\nConnection: close\r\n\r\n", path, host)
}

// outcome carries report-only details alongside the result.
type outcome struct {
	reason   Reason
	baseline time.Duration
	attack   time.Duration
	timeout  time.Duration
	payloads int
}

// Run scans one family. It returns an error wrapping ErrBaseline when the
// baseline cannot be obtained, or ctx.Err() when ctx ends mid-scan; in
// both cases no result is produced. Attack failures other than timeouts
// are reported as warnings and skipped.
func (s *Scanner) Run(ctx context.Context, c Check) (*CheckResult, error) {
	s.sink.Status(fmt.Sprintf("Checking for %s...", c.Name))

	base, err := s.sender.Send(ctx, s.request(c, BaselineRequest(c.Path, c.hostHeader())))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.skip(1 + len(c.Payloads))
		return nil, fmt.Errorf("%s: %w: %w", c.Name, ErrBaseline, err)
	}
	s.sink.Step()

	res := &CheckResult{
		CheckType:        c.Name,
		NormalStatus:     statusLine(base.Text),
		NormalDurationMS: millis(base.Elapsed),
	}
	out := outcome{baseline: base.Elapsed, timeout: c.Timeout, payloads: len(c.Payloads)}

	sent := 0
	for i, raw := range c.Payloads {
		resp, err := s.sender.Send(ctx, s.request(c, raw))
		s.sink.Step()
		sent++
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if err != nil {
			if IsTimeout(err) {
				d := millis(c.Timeout)
				res.AttackDurationMS = &d
				res.markVulnerable(i, TimeoutStatus)
				out.reason, out.attack = ReasonTimeout, c.Timeout
				break
			}
			res.PayloadErrors++
			s.sink.Warn(fmt.Sprintf("Error during %s attack request (payload %d): %v", c.Name, i, err))
			continue
		}

		d := millis(resp.Elapsed)
		res.AttackDurationMS = &d
		line := statusLine(resp.Text)
		code, ok := ParseStatusCode(line)
		if vuln, reason := Classify(code, ok, resp.Elapsed, base.Elapsed); vuln {
			res.markVulnerable(i, line)
			out.reason, out.attack = reason, resp.Elapsed
			break
		}
	}

	// Payloads after a match are never sent; count them as done.
	s.skip(len(c.Payloads) - sent)

	res.Timestamp = s.now().UTC()
	s.report(res, out)
	return res, nil
}

func (s *Scanner) request(c Check, raw string) transport.Request {
	return transport.Request{
		Host:    c.Host,
		Port:    c.Port,
		Raw:     raw,
		Timeout: c.Timeout,
		TLS:     c.TLS,
	}
}

func (s *Scanner) skip(n int) {
	for range n {
		s.sink.Step()
	}
}

func (c Check) hostHeader() string {
	if c.HostHeader != "" {
		return c.HostHeader
	}
	return c.Host
}

func (r *CheckResult) markVulnerable(index int, status string) {
	r.Vulnerable = true
	r.PayloadIndex = &index
	r.AttackStatus = &status
}

func millis(d time.Duration) uint64 {
	if d < 0 {
		return 0
	}
	return uint64(d.Milliseconds())
}
