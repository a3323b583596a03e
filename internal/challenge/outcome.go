// Package challenge drives the click-to-verify widget that gates renewal
// submission and classifies the popup that reports the result.
package challenge

// Outcome is the terminal classification of one renewal attempt's popup.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeSuccess
	OutcomeCooldown
	OutcomeTimeout
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeCooldown:
		return "cooldown"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Result is produced exactly once per renewal attempt.
type Result struct {
	Outcome    Outcome
	Reason     string
	Screenshot string
}
