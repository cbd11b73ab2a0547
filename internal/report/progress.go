package report

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Progress tracks and displays probe progress on a single status line.
type Progress struct {
	w         io.Writer
	total     atomic.Int64
	completed atomic.Int64
	errors    atomic.Int64
	start     time.Time
	done      chan struct{}
	exited    chan struct{}
	running   atomic.Bool
	stopOnce  sync.Once

	mu      sync.Mutex // guards message and all writes to w
	message string
}

// NewProgress creates a progress tracker. Call Start() to begin display updates.
func NewProgress(w io.Writer, total int) *Progress {
	p := &Progress{
		w:      w,
		start:  time.Now(),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	p.total.Store(int64(total))
	return p
}

// Start begins periodically redrawing the status line.
func (p *Progress) Start() {
	p.running.Store(true)
	go func() {
		defer close(p.exited)
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.mu.Lock()
				p.draw()
				p.mu.Unlock()
			case <-p.done:
				p.mu.Lock()
				p.draw()
				fmt.Fprint(p.w, "\n")
				p.mu.Unlock()
				return
			}
		}
	}()
}

// SetMessage changes the label shown on the status line.
func (p *Progress) SetMessage(msg string) {
	p.mu.Lock()
	p.message = msg
	p.draw()
	p.mu.Unlock()
}

// Println prints msg above the status line and redraws it.
func (p *Progress) Println(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.w, "\r\033[K")
	fmt.Fprintln(p.w, msg)
	p.draw()
}

// Increment records a completed probe.
func (p *Progress) Increment() {
	p.completed.Add(1)
}

// IncrementErrors records a failed probe.
func (p *Progress) IncrementErrors() {
	p.errors.Add(1)
}

// Stop ends the progress display and returns once the final line is
// drawn. It is safe to call more than once.
func (p *Progress) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		if p.running.Load() {
			<-p.exited
		}
	})
}

// draw renders the status line; callers hold p.mu.
func (p *Progress) draw() {
	completed := p.completed.Load()
	total := p.total.Load()

	pct := float64(0)
	if total > 0 {
		pct = float64(completed) / float64(total) * 100
	}

	fmt.Fprintf(p.w, "\r\033[K[%3.0f%%] %d/%d probes | Errors: %d | %s | %s",
		pct, completed, total, p.errors.Load(),
		time.Since(p.start).Round(time.Second), p.message)
}
