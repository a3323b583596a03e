package renew

import (
	"time"

	"hostkeeper/internal/challenge"
	"hostkeeper/internal/config"
	"hostkeeper/internal/expiry"
)

type Decision string

const (
	DecisionSkip  Decision = "skip"
	DecisionRenew Decision = "renew"
)

type Status string

const (
	StatusSuccess  Status = "success"
	StatusSkipped  Status = "skipped"
	StatusCooldown Status = "cooldown"
	StatusTimeout  Status = "timeout"
	StatusError    Status = "error"
)

// Attempt is the record of one account's pass through the renewal flow.
// It is created when processing starts, finalized exactly once, and
// immutable afterwards. The runner's mutex guards the fields the TUI reads.
type Attempt struct {
	Account           config.Account
	Decision          Decision
	OriginalExpiry    expiry.Snapshot
	NewExpiry         expiry.Snapshot
	Popup             challenge.Result
	Status            Status
	Message           string
	Screenshot        string
	Gained            time.Duration
	CredentialRotated bool
	StartedAt         time.Time
	FinishedAt        time.Time

	// Phase is the live progress label shown while the attempt runs.
	Phase     string
	finalized bool
}

// Finalized reports whether the attempt has reached its terminal state.
func (a *Attempt) Finalized() bool {
	return a.finalized
}
