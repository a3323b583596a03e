// Package renew orchestrates the per-account renewal flow: authenticate,
// read expiry, decide, solve the challenge, verify, rotate credentials.
// Accounts are processed strictly sequentially — the browser session, the
// OS pointer and window focus are single shared resources.
package renew

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"
	"unicode/utf8"

	"hostkeeper/internal/challenge"
	"hostkeeper/internal/config"
	"hostkeeper/internal/report"
	"hostkeeper/internal/tui"
)

// SessionDriver is the browser surface the orchestrator drives. Implemented
// by browser.Driver; faked in tests.
type SessionDriver interface {
	Start(ctx context.Context) error
	Close() error
	ResetSession(ctx context.Context) error
	InjectCookie(ctx context.Context, name, value, domain string) error
	EnsureAuthenticated(ctx context.Context, name, value, domain, url string) error
	PageText(ctx context.Context) (string, error)
	OpenRenewal(ctx context.Context) error
	Reload(ctx context.Context) error
	Cookies(ctx context.Context) (map[string]string, error)
	Screenshot(ctx context.Context, label string) (string, error)
}

// SolveFunc runs one challenge-solve sequence against the current page.
type SolveFunc func(ctx context.Context) challenge.Result

// SecretRotator forwards a rotated credential to the external secret store.
type SecretRotator interface {
	Update(ctx context.Context, name, value string) (bool, error)
}

// Notifier is the best-effort notification channel.
type Notifier interface {
	SendMessage(ctx context.Context, html string) error
	SendPhoto(ctx context.Context, caption, path string) error
}

type Runner struct {
	cfg      *config.Config
	driver   SessionDriver
	solve    SolveFunc
	rotator  SecretRotator
	notifier Notifier
	logger   *slog.Logger
	rng      *rand.Rand

	mu        sync.Mutex
	attempts  []*Attempt
	done      bool
	startedAt time.Time
}

func NewRunner(cfg *config.Config, driver SessionDriver, solve SolveFunc, rotator SecretRotator, notifier Notifier, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		driver:   driver,
		solve:    solve,
		rotator:  rotator,
		notifier: notifier,
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run processes every configured account in order and dispatches the
// summary report. Per-account failures never abort the loop; even a
// browser-level failure still produces a terminal status for every account.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	r.startedAt = time.Now()
	r.mu.Unlock()
	defer r.markDone()

	r.logger.Info("run started", "accounts", len(r.cfg.Accounts), "threshold_days", r.cfg.ThresholdDays)

	if err := r.driver.Start(ctx); err != nil {
		r.logger.Error("browser start failed", "err", err)
		for _, acc := range r.cfg.Accounts {
			a := r.newAttempt(acc)
			r.finalizeAttempt(a, StatusError, truncate("browser unavailable: "+err.Error()))
		}
		r.dispatchReport(ctx)
		return fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		if err := r.driver.Close(); err != nil {
			r.logger.Warn("browser close", "err", err)
		}
	}()

	for i, acc := range r.cfg.Accounts {
		if ctx.Err() != nil {
			a := r.newAttempt(acc)
			r.finalizeAttempt(a, StatusError, "run cancelled")
			continue
		}

		a := r.processAccount(ctx, acc)
		r.logger.Info("account finished",
			"account", acc.Label(),
			"status", string(a.Status),
			"message", a.Message,
			"rotated", a.CredentialRotated)

		if i < len(r.cfg.Accounts)-1 {
			r.pace(ctx)
		}
	}

	r.dispatchReport(ctx)
	return nil
}

// pace inserts a small randomized delay between accounts. Anti-detection
// pacing, not correctness-bearing.
func (r *Runner) pace(ctx context.Context) {
	span := r.cfg.Pacing.Max - r.cfg.Pacing.Min
	d := r.cfg.Pacing.Min
	if span > 0 {
		d += time.Duration(r.rng.Int63n(int64(span)))
	}
	r.logger.Debug("pacing before next account", "delay", d)
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (r *Runner) dispatchReport(ctx context.Context) {
	// The report must go out even when the run context was cancelled.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()

	r.mu.Lock()
	entries := make([]report.Entry, 0, len(r.attempts))
	for _, a := range r.attempts {
		entries = append(entries, report.Entry{
			Label:      a.Account.Label(),
			Status:     string(a.Status),
			Message:    a.Message,
			Screenshot: a.Screenshot,
		})
	}
	r.mu.Unlock()

	sum := report.Build(entries)
	r.logger.Info("run summary", "success", sum.Success, "skipped", sum.Skipped, "failed", sum.Failed)

	if err := r.notifier.SendMessage(sendCtx, sum.HTML()); err != nil {
		r.logger.Warn("summary notification failed", "err", err)
	}
	if sum.Screenshot != "" {
		if err := r.notifier.SendPhoto(sendCtx, "latest renewal screenshot", sum.Screenshot); err != nil {
			r.logger.Warn("screenshot notification failed", "err", err)
		}
	}
}

// Attempts returns the finalized result list in processing order.
func (r *Runner) Attempts() []*Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Attempt, len(r.attempts))
	copy(out, r.attempts)
	return out
}

func (r *Runner) newAttempt(acc config.Account) *Attempt {
	a := &Attempt{Account: acc, Decision: DecisionSkip, StartedAt: time.Now(), Phase: "queued"}
	r.mu.Lock()
	r.attempts = append(r.attempts, a)
	r.mu.Unlock()
	return a
}

func (r *Runner) setPhase(a *Attempt, phase string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !a.finalized {
		a.Phase = phase
	}
}

func (r *Runner) setRotated(a *Attempt, rotated bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.CredentialRotated = rotated
}

// finalizeAttempt records the terminal state exactly once.
func (r *Runner) finalizeAttempt(a *Attempt, status Status, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.finalized {
		return
	}
	a.finalized = true
	a.Status = status
	a.Message = message
	a.Phase = "done"
	a.FinishedAt = time.Now()
}

func (r *Runner) markDone() {
	r.mu.Lock()
	r.done = true
	r.mu.Unlock()
}

// GetSnapshot implements the TUI's SnapshotProvider.
func (r *Runner) GetSnapshot() tui.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := tui.Snapshot{
		Timestamp: time.Now(),
		Total:     len(r.cfg.Accounts),
		Done:      r.done,
	}
	for _, a := range r.attempts {
		st := tui.AccountState{
			Label:   a.Account.Label(),
			Phase:   a.Phase,
			Message: a.Message,
		}
		if a.finalized {
			st.Status = string(a.Status)
			st.Elapsed = a.FinishedAt.Sub(a.StartedAt).Round(time.Second)
			switch a.Status {
			case StatusSuccess:
				snap.Totals.Success++
			case StatusSkipped:
				snap.Totals.Skipped++
			default:
				snap.Totals.Failed++
			}
		} else {
			st.Elapsed = time.Since(a.StartedAt).Round(time.Second)
		}
		snap.Accounts = append(snap.Accounts, st)
	}
	return snap
}

const maxMessageLen = 200

// truncate bounds fault messages so raw browser errors cannot flood the
// report or the secret-masked logs. The cut backs up to a rune boundary;
// popup text is routinely Chinese.
func truncate(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	cut := maxMessageLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
