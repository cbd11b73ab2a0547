package detector

import "time"

// CheckResult is the outcome of one scan of one check family. It is built
// once per Run and never modified afterwards.
type CheckResult struct {
	CheckType        string    `json:"check_type"`
	Vulnerable       bool      `json:"vulnerable"`
	PayloadIndex     *int      `json:"payload_index"`
	NormalStatus     string    `json:"normal_status"`
	AttackStatus     *string   `json:"attack_status"`
	NormalDurationMS uint64    `json:"normal_duration_ms"`
	AttackDurationMS *uint64   `json:"attack_duration_ms"`
	Timestamp        time.Time `json:"timestamp"`

	// PayloadErrors counts attack requests that failed without timing out.
	// A not-vulnerable result where every payload errored is inconclusive.
	PayloadErrors int `json:"payload_errors,omitempty"`
}

// Inconclusive reports whether no attack request produced a usable answer.
func (r *CheckResult) Inconclusive(payloads int) bool {
	return !r.Vulnerable && payloads > 0 && r.PayloadErrors == payloads
}

// Reason names the signal that classified a probe as vulnerable.
type Reason int

const (
	ReasonNone    Reason = iota
	ReasonStatus         // 408 or 504 from the target
	ReasonDelay          // response well beyond the baseline
	ReasonTimeout        // no response before the deadline
)

func (r Reason) String() string {
	switch r {
	case ReasonStatus:
		return "Timeout status code detected (408/504)"
	case ReasonDelay:
		return "Excessive delay detected (possible desync)"
	case ReasonTimeout:
		return "Connection timeout (desync hang detected)"
	default:
		return "none"
	}
}
