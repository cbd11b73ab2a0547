package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/maxvaer/smugprobe/internal/report"
)

// TextWriter writes a one-line-per-check summary.
type TextWriter struct {
	w       io.Writer
	closer  io.Closer
	noColor bool
}

func (t *TextWriter) WriteHeader() error {
	_, err := fmt.Fprintln(t.w, t.style(report.MutedStyle.Render, "Verdict     Check  Target"))
	return err
}

func (t *TextWriter) WriteResult(rec *Record) error {
	verdict := t.style(report.SafeStyle.Render, "safe      ")
	detail := ""
	switch {
	case rec.Vulnerable:
		verdict = t.style(report.VulnerableStyle.Render, "VULNERABLE")
		detail = fmt.Sprintf("  payload %d: %s", *rec.PayloadIndex, *rec.AttackStatus)
	case rec.PayloadErrors > 0:
		verdict = t.style(report.WarnStyle.Render, "unsure    ")
		detail = fmt.Sprintf("  %d attack request(s) failed", rec.PayloadErrors)
	}
	_, err := fmt.Fprintf(t.w, "%s  %-5s  %s%s\n", verdict, rec.CheckType, rec.Target, detail)
	return err
}

func (t *TextWriter) WriteFooter(stats Stats) error {
	_, err := fmt.Fprintf(os.Stderr,
		"\nCompleted: %d targets | Checks: %d | Vulnerable: %d | Failed: %d | Duration: %s\n",
		stats.Targets,
		stats.Checks,
		stats.Vulnerable,
		stats.Failed,
		stats.Duration.Round(time.Millisecond),
	)
	return err
}

func (t *TextWriter) Close() error { return closeIfSet(t.closer) }

func (t *TextWriter) style(render func(...string) string, s string) string {
	if t.noColor {
		return s
	}
	return render(s)
}
