// Package hook runs a user command for every vulnerable finding.
package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/maxvaer/smugprobe/internal/output"
	"github.com/maxvaer/smugprobe/internal/report"
)

// Timeout bounds each hook invocation.
const Timeout = 30 * time.Second

// Runner executes a shell command for each vulnerable check result.
type Runner struct {
	cmd  string
	sink report.Sink
}

// NewRunner creates a hook runner. cmd is the shell command to execute;
// its output and errors go to sink.
func NewRunner(cmd string, sink report.Sink) *Runner {
	if sink == nil {
		sink = report.Discard
	}
	return &Runner{cmd: cmd, sink: sink}
}

// Run executes the hook command with the record as JSON on stdin.
// Placeholders {target}, {check}, {payload} and {status} are expanded in
// the command line. Errors are reported but do not halt the scan.
func (r *Runner) Run(ctx context.Context, rec *output.Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		r.sink.Warn(fmt.Sprintf("[hook] marshal error: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	shell, args := shellCommand()
	cmd := exec.CommandContext(ctx, shell, append(args, r.expand(rec))...)
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		r.sink.Warn(fmt.Sprintf("[hook] error: %s", msg))
		return
	}
	if s := strings.TrimRight(string(out), "\n"); s != "" {
		r.sink.Println("[hook] " + s)
	}
}

func (r *Runner) expand(rec *output.Record) string {
	payload, status := "", ""
	if rec.PayloadIndex != nil {
		payload = strconv.Itoa(*rec.PayloadIndex)
	}
	if rec.AttackStatus != nil {
		status = *rec.AttackStatus
	}
	return strings.NewReplacer(
		"{target}", rec.Target,
		"{check}", rec.CheckType,
		"{payload}", payload,
		"{status}", status,
	).Replace(r.cmd)
}

func shellCommand() (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C"}
	}
	return "sh", []string{"-c"}
}
