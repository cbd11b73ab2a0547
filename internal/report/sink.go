// Package report carries user-facing scan text. Nothing here feeds back
// into scan results; a Discard sink produces identical results.
package report

import (
	"fmt"
	"io"
	"sync"
)

// Sink receives human-readable scan output.
type Sink interface {
	// Status announces what the scan is doing now.
	Status(msg string)
	// Println emits one line of report text.
	Println(msg string)
	// Warn emits a non-fatal problem, such as a failed probe.
	Warn(msg string)
	// Step records that one probe was sent.
	Step()
}

// Quiet keeps a progress line at the bottom of the terminal and prints
// messages above it.
type Quiet struct {
	progress *Progress
}

// NewQuiet creates a quiet sink writing to w with room for total probes.
// The progress line is drawn once Start is called.
func NewQuiet(w io.Writer, total int) *Quiet {
	return &Quiet{progress: NewProgress(w, total)}
}

// Start begins redrawing the progress line.
func (q *Quiet) Start() { q.progress.Start() }

// Stop removes the progress line.
func (q *Quiet) Stop() { q.progress.Stop() }

func (q *Quiet) Status(msg string)  { q.progress.SetMessage(msg) }
func (q *Quiet) Println(msg string) { q.progress.Println(msg) }
func (q *Quiet) Step()              { q.progress.Increment() }

func (q *Quiet) Warn(msg string) {
	q.progress.IncrementErrors()
	q.progress.Println(WarnStyle.Render("[!] ") + msg)
}

// Verbose prints everything as soon as it arrives.
type Verbose struct {
	mu sync.Mutex
	w  io.Writer
}

// NewVerbose creates a verbose sink writing to w.
func NewVerbose(w io.Writer) *Verbose {
	return &Verbose{w: w}
}

func (v *Verbose) Status(msg string) {
	v.print("\n" + BoldStyle.Render("[!] "+msg))
}

func (v *Verbose) Println(msg string) { v.print(msg) }

func (v *Verbose) Warn(msg string) {
	v.print(WarnStyle.Render("[!] ") + msg)
}

func (v *Verbose) Step() {}

func (v *Verbose) print(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.w, msg)
}

// Discard drops all output. It suits non-interactive embedding.
var Discard Sink = discard{}

type discard struct{}

func (discard) Status(string)  {}
func (discard) Println(string) {}
func (discard) Warn(string)    {}
func (discard) Step()          {}

// WarnOnly drops report text but still prints warnings to w.
func WarnOnly(w io.Writer) Sink {
	return &warnOnly{v: NewVerbose(w)}
}

type warnOnly struct {
	discard
	v *Verbose
}

func (s *warnOnly) Warn(msg string) { s.v.Warn(msg) }

// Buffer collects lines in memory. Tests use it to inspect reports.
type Buffer struct {
	mu       sync.Mutex
	Lines    []string
	Warnings []string
	Statuses []string
	Steps    int
}

func (b *Buffer) Status(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Statuses = append(b.Statuses, msg)
}

func (b *Buffer) Println(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Lines = append(b.Lines, msg)
}

func (b *Buffer) Warn(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Warnings = append(b.Warnings, msg)
}

func (b *Buffer) Step() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Steps++
}
