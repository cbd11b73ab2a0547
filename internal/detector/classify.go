package detector

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/maxvaer/smugprobe/internal/transport"
)

// Detection thresholds.
const (
	TimingMultiplier = 3    // attack must take more than 3x the baseline
	MinDelayMS       = 1000 // and more than one second
)

// TimeoutStatus is reported as the attack status when a probe never answered.
const TimeoutStatus = "Connection Timeout"

// Classify decides whether one attack response indicates desync. The status
// path fires on 408/504 regardless of timing. The delay path needs elapsed
// to be strictly above both TimingMultiplier*baseline and MinDelayMS, with
// both compared in whole milliseconds.
func Classify(code int, hasCode bool, elapsed, baseline time.Duration) (bool, Reason) {
	if hasCode && (code == 408 || code == 504) {
		return true, ReasonStatus
	}
	ms := elapsed.Milliseconds()
	if ms > baseline.Milliseconds()*TimingMultiplier && ms > MinDelayMS {
		return true, ReasonDelay
	}
	return false, ReasonNone
}

// ParseStatusCode extracts the numeric code from an HTTP status line.
// Lines that don't look like HTTP/1.x or HTTP/2 yield ok=false, as does a
// non-numeric code.
func ParseStatusCode(line string) (code int, ok bool) {
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return 0, false
	}
	if !strings.HasPrefix(parts[0], "HTTP/1.") && !strings.HasPrefix(parts[0], "HTTP/2") {
		return 0, false
	}
	n, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return 0, false
	}
	return int(n), true
}

// statusLine returns the first line of a response without its line ending.
func statusLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimRight(text, "\r")
}

// IsTimeout reports whether a send failure means the target never answered
// in time. Checked in order: the transport's own deadline signal, any
// timeout-kind error in the cause chain, then the error text.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, transport.ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	if chainHasTimeout(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timed out") || strings.Contains(msg, "timeout")
}

type timeouter interface{ Timeout() bool }

func chainHasTimeout(err error) bool {
	if err == nil {
		return false
	}
	if t, ok := err.(timeouter); ok && t.Timeout() {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return chainHasTimeout(u.Unwrap())
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			if chainHasTimeout(e) {
				return true
			}
		}
	}
	return false
}
