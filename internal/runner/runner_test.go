package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxvaer/smugprobe/internal/config"
	"github.com/maxvaer/smugprobe/internal/output"
	"github.com/maxvaer/smugprobe/internal/payload"
	"github.com/maxvaer/smugprobe/internal/resume"
	"github.com/maxvaer/smugprobe/internal/transport"
)

// fakeSender answers from a function and records every raw request.
type fakeSender struct {
	mu      sync.Mutex
	sent    []string
	respond func(raw string) (*transport.Response, error)
}

func (f *fakeSender) Send(_ context.Context, req transport.Request) (*transport.Response, error) {
	f.mu.Lock()
	f.sent = append(f.sent, req.Raw)
	f.mu.Unlock()
	return f.respond(req.Raw)
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func ok200(string) (*transport.Response, error) {
	return &transport.Response{Text: "HTTP/1.1 200 OK\r\n\r\n", Elapsed: 10 * time.Millisecond}, nil
}

func isBaseline(raw string) bool { return strings.HasPrefix(raw, "GET ") }

// isTECL matches TE.CL payloads: four declared bytes plus keep-alive.
func isTECL(raw string) bool {
	return strings.Contains(raw, "Content-Length: 4\r\n") && strings.Contains(raw, "Connection: keep-alive")
}

func isTETE(raw string) bool {
	return strings.Contains(raw, "Content-Length: 4\r\n") && !strings.Contains(raw, "Connection: keep-alive")
}

func testOpts(t *testing.T, url string) *config.Options {
	t.Helper()
	opts := config.Defaults()
	opts.URL = url
	opts.Timeout = 2 * time.Second
	opts.Quiet = true
	opts.NoColor = true
	opts.OutputFormat = "jsonl"
	opts.OutputFile = filepath.Join(t.TempDir(), "results.jsonl")
	return &opts
}

func readRecords(t *testing.T, path string) []output.Record {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var recs []output.Record
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var rec output.Record
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		recs = append(recs, rec)
	}
	return recs
}

func TestRunAllFamilies(t *testing.T) {
	sender := &fakeSender{respond: ok200}
	opts := testOpts(t, "http://target.test/app?id=1")

	var stderr bytes.Buffer
	require.NoError(t, run(context.Background(), opts, sender, &stderr))

	recs := readRecords(t, opts.OutputFile)
	require.Len(t, recs, 3)
	for i, f := range payload.Families() {
		assert.Equal(t, f.String(), recs[i].CheckType)
		assert.False(t, recs[i].Vulnerable)
		assert.Equal(t, "http://target.test/app?id=1", recs[i].Target)
		assert.Equal(t, recs[0].ScanID, recs[i].ScanID)
		assert.Equal(t, "HTTP/1.1 200 OK", recs[i].NormalStatus)
	}
	assert.NotEmpty(t, recs[0].ScanID)

	// 3 baselines + 6 CL.TE + 6 TE.CL + 4 TE.TE
	assert.Equal(t, 19, sender.count())
	assert.True(t, strings.HasPrefix(sender.sent[0], "GET /app?id=1 HTTP/1.1\r\nHost: target.test\r\n"))
	assert.True(t, strings.HasPrefix(sender.sent[1], "POST /app?id=1 HTTP/1.1\r\n"))
}

func TestRunParallelKeepsFamilyOrder(t *testing.T) {
	sender := &fakeSender{respond: func(raw string) (*transport.Response, error) {
		if isTECL(raw) {
			return &transport.Response{Text: "HTTP/1.1 504 Gateway Timeout\r\n\r\n", Elapsed: 10 * time.Millisecond}, nil
		}
		return ok200(raw)
	}}
	opts := testOpts(t, "http://target.test")
	opts.Parallel = true

	require.NoError(t, run(context.Background(), opts, sender, &bytes.Buffer{}))

	recs := readRecords(t, opts.OutputFile)
	require.Len(t, recs, 3)
	assert.Equal(t, "CL.TE", recs[0].CheckType)
	assert.Equal(t, "TE.CL", recs[1].CheckType)
	assert.Equal(t, "TE.TE", recs[2].CheckType)

	assert.False(t, recs[0].Vulnerable)
	require.True(t, recs[1].Vulnerable)
	assert.Equal(t, 0, *recs[1].PayloadIndex)
	assert.Equal(t, "HTTP/1.1 504 Gateway Timeout", *recs[1].AttackStatus)
	assert.False(t, recs[2].Vulnerable)
}

func TestRunTimeoutIsVulnerable(t *testing.T) {
	sender := &fakeSender{respond: func(raw string) (*transport.Response, error) {
		if isTETE(raw) {
			return nil, &transport.Error{Kind: transport.KindTimeout, Op: "read", Err: os.ErrDeadlineExceeded}
		}
		return ok200(raw)
	}}
	opts := testOpts(t, "http://target.test")
	opts.Checks = "te-te"

	require.NoError(t, run(context.Background(), opts, sender, &bytes.Buffer{}))

	recs := readRecords(t, opts.OutputFile)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Vulnerable)
	assert.Equal(t, "Connection Timeout", *recs[0].AttackStatus)
	assert.Equal(t, uint64(2000), *recs[0].AttackDurationMS)
}

func TestRunBaselineFailureSkipsFamily(t *testing.T) {
	sender := &fakeSender{respond: func(raw string) (*transport.Response, error) {
		if isBaseline(raw) {
			return nil, &transport.Error{Kind: transport.KindConnection, Op: "dial", Err: errors.New("connection refused")}
		}
		return ok200(raw)
	}}
	opts := testOpts(t, "http://target.test")
	opts.OutputFormat = "json"
	opts.OutputFile = filepath.Join(t.TempDir(), "results.json")

	var stderr bytes.Buffer
	require.NoError(t, run(context.Background(), opts, sender, &stderr))

	data, err := os.ReadFile(opts.OutputFile)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))

	// Only baselines were attempted.
	assert.Equal(t, 3, sender.count())
	assert.Contains(t, stderr.String(), "baseline request failed")
	assert.Contains(t, stderr.String(), "connection refused")
}

func TestRunCancelSavesResume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := &fakeSender{respond: func(raw string) (*transport.Response, error) {
		if isTECL(raw) {
			cancel()
			return nil, context.Canceled
		}
		return ok200(raw)
	}}
	opts := testOpts(t, "http://target.test")
	opts.ResumeFile = filepath.Join(t.TempDir(), "scan.state")

	err := run(ctx, opts, sender, &bytes.Buffer{})
	require.ErrorIs(t, err, context.Canceled)

	state, err := resume.Load(opts.ResumeFile)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.True(t, state.IsCompleted("http://target.test", "CL.TE"))
	assert.False(t, state.IsCompleted("http://target.test", "TE.CL"))

	// Second run picks up with the remaining families and the same scan ID.
	second := &fakeSender{respond: ok200}
	require.NoError(t, run(context.Background(), opts, second, &bytes.Buffer{}))

	recs := readRecords(t, opts.OutputFile)
	require.Len(t, recs, 2)
	assert.Equal(t, "TE.CL", recs[0].CheckType)
	assert.Equal(t, "TE.TE", recs[1].CheckType)
	assert.Equal(t, state.ScanID, recs[0].ScanID)
	assert.Equal(t, 2+6+4, second.count())

	_, err = os.Stat(opts.ResumeFile)
	assert.True(t, os.IsNotExist(err), "resume file should be removed after a full run")
}

func TestRunCancelKeepsFinishedResults(t *testing.T) {
	for _, sortBy := range []string{"", "check"} {
		t.Run("sort="+sortBy, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sender := &fakeSender{respond: func(raw string) (*transport.Response, error) {
				if isTECL(raw) {
					cancel()
					return nil, context.Canceled
				}
				return ok200(raw)
			}}
			opts := testOpts(t, "http://target.test")
			opts.OutputFormat = "json"
			opts.OutputFile = filepath.Join(t.TempDir(), "results.json")
			opts.SortBy = sortBy

			err := run(ctx, opts, sender, &bytes.Buffer{})
			require.ErrorIs(t, err, context.Canceled)

			data, err := os.ReadFile(opts.OutputFile)
			require.NoError(t, err)
			var recs []output.Record
			require.NoError(t, json.Unmarshal(data, &recs))
			require.Len(t, recs, 1)
			assert.Equal(t, "CL.TE", recs[0].CheckType)
			assert.False(t, recs[0].Vulnerable)
		})
	}
}

func TestRunQuietStillWarnsOnPayloadErrors(t *testing.T) {
	sender := &fakeSender{respond: func(raw string) (*transport.Response, error) {
		if isTETE(raw) {
			return nil, &transport.Error{Kind: transport.KindConnection, Op: "write", Err: errors.New("connection reset by peer")}
		}
		return ok200(raw)
	}}
	opts := testOpts(t, "http://target.test")
	opts.Checks = "te-te"

	var stderr bytes.Buffer
	require.NoError(t, run(context.Background(), opts, sender, &stderr))

	assert.Equal(t, 4, strings.Count(stderr.String(), "Error during TE.TE attack request"))
	assert.Contains(t, stderr.String(), "connection reset by peer")
	assert.NotContains(t, stderr.String(), "Not Vulnerable", "report text stays hidden with -q")

	recs := readRecords(t, opts.OutputFile)
	require.Len(t, recs, 1)
	assert.Equal(t, 4, recs[0].PayloadErrors)
}

func TestRunHookForVulnerableOnly(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("hook test uses sh")
	}
	sender := &fakeSender{respond: func(raw string) (*transport.Response, error) {
		if isTECL(raw) {
			return &transport.Response{Text: "HTTP/1.1 408 Request Timeout\r\n\r\n", Elapsed: 5 * time.Millisecond}, nil
		}
		return ok200(raw)
	}}
	hookOut := filepath.Join(t.TempDir(), "hook.log")
	opts := testOpts(t, "http://target.test")
	opts.OnResultCmd = fmt.Sprintf("echo {check} >> %s", hookOut)

	require.NoError(t, run(context.Background(), opts, sender, &bytes.Buffer{}))

	data, err := os.ReadFile(hookOut)
	require.NoError(t, err)
	assert.Equal(t, "TE.CL\n", string(data))
}

func TestRunSortedOutput(t *testing.T) {
	sender := &fakeSender{respond: func(raw string) (*transport.Response, error) {
		if isTETE(raw) {
			return &transport.Response{Text: "HTTP/1.1 504 Gateway Timeout\r\n\r\n", Elapsed: 5 * time.Millisecond}, nil
		}
		return ok200(raw)
	}}
	opts := testOpts(t, "http://target.test")
	opts.SortBy = "vulnerable"

	require.NoError(t, run(context.Background(), opts, sender, &bytes.Buffer{}))

	recs := readRecords(t, opts.OutputFile)
	require.Len(t, recs, 3)
	assert.Equal(t, "TE.TE", recs[0].CheckType)
	assert.True(t, recs[0].Vulnerable)
}

func TestResolvePlanErrorsBeforeNetwork(t *testing.T) {
	opts := config.Defaults()
	_, err := resolvePlan(&opts)
	assert.ErrorIs(t, err, ErrNoTargets)

	opts.URL = "http://target.test"
	opts.Checks = "cl-te,h2-te"
	_, err = resolvePlan(&opts)
	assert.ErrorIs(t, err, payload.ErrUnknownFamily)

	opts.Checks = ""
	opts.URL = "gopher://target.test"
	_, err = resolvePlan(&opts)
	assert.Error(t, err)

	// Nothing may be sent when the plan is invalid.
	sender := &fakeSender{respond: ok200}
	opts.URL = "http://target.test"
	opts.Checks = "bogus"
	err = run(context.Background(), &opts, sender, &bytes.Buffer{})
	assert.ErrorIs(t, err, payload.ErrUnknownFamily)
	assert.Zero(t, sender.count())
}

func TestResolvePlanRequestFile(t *testing.T) {
	reqFile := filepath.Join(t.TempDir(), "burp.req")
	require.NoError(t, os.WriteFile(reqFile, []byte(
		"GET /account HTTP/1.1\r\nHost: shop.test\r\nCookie: sid=1\r\nContent-Length: 0\r\n\r\n"), 0644))

	opts := config.Defaults()
	opts.RequestFile = reqFile
	opts.Headers = []string{"X-Extra: 1"}

	p, err := resolvePlan(&opts)
	require.NoError(t, err)
	require.Len(t, p.targets, 1)
	assert.Equal(t, "shop.test", p.targets[0].Host)
	assert.True(t, p.targets[0].TLS)
	assert.Equal(t, "/account", p.targets[0].Path)
	assert.Equal(t, []string{"Cookie: sid=1", "X-Extra: 1"}, p.headers)
	assert.Equal(t, "POST", p.method)
}

func TestResolvePlanMultipleSources(t *testing.T) {
	list := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, os.WriteFile(list, []byte("http://a.test\nhttps://b.test:8443/x\n"), 0644))

	opts := config.Defaults()
	opts.URL = "http://main.test"
	opts.URLsFile = list
	opts.CIDRTargets = "10.0.0.0/30"
	opts.Ports = "80"
	opts.Checks = "te.te"

	p, err := resolvePlan(&opts)
	require.NoError(t, err)
	require.Len(t, p.targets, 5)
	assert.Equal(t, "main.test", p.targets[0].Host)
	assert.Equal(t, 8443, p.targets[2].Port)
	assert.Equal(t, "10.0.0.2", p.targets[4].Host)
	assert.Equal(t, []payload.Family{payload.TETE}, p.families)
}

func TestRunAgainstHTTPServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	raw, err := transport.NewRaw()
	require.NoError(t, err)

	opts := testOpts(t, srv.URL)
	opts.Checks = "cl-te"

	require.NoError(t, run(context.Background(), opts, raw, &bytes.Buffer{}))

	recs := readRecords(t, opts.OutputFile)
	require.Len(t, recs, 1)
	assert.Equal(t, "CL.TE", recs[0].CheckType)
	assert.Equal(t, "HTTP/1.1 200 OK", recs[0].NormalStatus)
	assert.False(t, recs[0].Vulnerable)
}
