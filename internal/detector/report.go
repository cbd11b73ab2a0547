package detector

import (
	"fmt"
	"strings"
	"time"

	"github.com/maxvaer/smugprobe/internal/report"
)

var bullet = report.BulletStyle.Render("[+] ")

// report writes the human-readable verdict for one check as a single
// block so concurrent checks don't interleave.
func (s *Scanner) report(res *CheckResult, out outcome) {
	var b strings.Builder
	line := func(format string, args ...any) {
		b.WriteString("\n  ")
		fmt.Fprintf(&b, format, args...)
	}

	b.WriteString("\n" + report.BoldStyle.Render(fmt.Sprintf("[!] %s Result:", res.CheckType)))

	switch {
	case !res.Vulnerable:
		line("%s", report.SafeStyle.Render("[+] Not Vulnerable"))
		switch {
		case res.Inconclusive(out.payloads):
			line("%sAll %d attack requests failed; result is inconclusive", bullet, res.PayloadErrors)
		case res.PayloadErrors > 0:
			line("%s%d attack request(s) failed; result may be inconclusive", bullet, res.PayloadErrors)
		}
	default:
		line("%s", report.VulnerableStyle.Render("[!!!] VULNERABLE"))
		line("%sReason: %s", bullet, report.ReasonStyle.Render(out.reason.String()))
		line("%sPayload index: %d", bullet, *res.PayloadIndex)
		line("%sNormal response: %s (took %s)", bullet, res.NormalStatus, roundDur(out.baseline))
		if out.reason == ReasonTimeout {
			line("%sAttack request timed out after %s", bullet, out.timeout)
		} else {
			line("%sAttack response: %s (took %s)", bullet, *res.AttackStatus, roundDur(out.attack))
		}
	}
	s.sink.Println(b.String())
}

func roundDur(d time.Duration) time.Duration {
	return d.Round(10 * time.Microsecond)
}
