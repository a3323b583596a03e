package renew

import (
	"time"

	"hostkeeper/internal/challenge"
	"hostkeeper/internal/expiry"
)

// reconcile resolves the verified status of a renewal attempt from the
// re-read expiry and the popup's self-reported outcome, in priority order:
//
//  1. both expiries parse and the new one is strictly later → Success with
//     the duration gained (this overrides an ambiguous popup status);
//  2. popup reported Cooldown → Cooldown;
//  3. popup reported Success → Success, duration not computable;
//  4. otherwise the popup outcome verbatim (Timeout/Error).
func reconcile(orig, fresh expiry.Snapshot, popup challenge.Result) (Status, time.Duration) {
	if fresh.After(orig) {
		return StatusSuccess, fresh.Time.Sub(orig.Time)
	}
	switch popup.Outcome {
	case challenge.OutcomeCooldown:
		return StatusCooldown, 0
	case challenge.OutcomeSuccess:
		return StatusSuccess, 0
	case challenge.OutcomeTimeout:
		return StatusTimeout, 0
	default:
		return StatusError, 0
	}
}
