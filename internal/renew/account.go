package renew

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"hostkeeper/internal/challenge"
	"hostkeeper/internal/config"
	"hostkeeper/internal/expiry"
	"hostkeeper/internal/rotate"
)

// processAccount runs one account end to end. Every fault is caught here
// and recorded on the attempt; nothing propagates to the account loop.
func (r *Runner) processAccount(ctx context.Context, acc config.Account) (a *Attempt) {
	a = r.newAttempt(acc)
	defer func() {
		if p := recover(); p != nil {
			r.finalizeAttempt(a, StatusError, truncate(fmt.Sprintf("unexpected fault: %v", p)))
		}
	}()

	log := r.logger.With("account", acc.Label())

	r.setPhase(a, "credentials")
	raw := os.Getenv(acc.CookieEnv)
	if strings.TrimSpace(raw) == "" {
		r.finalizeAttempt(a, StatusError, fmt.Sprintf("credential slot %s is empty", acc.CookieEnv))
		return a
	}
	cookieName, cookieValue, err := config.ParseCookie(raw)
	if err != nil {
		r.finalizeAttempt(a, StatusError, fmt.Sprintf("credential slot %s: %v", acc.CookieEnv, err))
		return a
	}
	// The "value" attribute is redacted by the logging handler.
	log.Debug("cookie parsed", "name", cookieName, "value", cookieValue)

	url := r.cfg.ServerURL(acc)

	r.setPhase(a, "authenticating")
	if err := r.driver.ResetSession(ctx); err != nil {
		r.finalizeAttempt(a, StatusError, truncate("session reset failed: "+err.Error()))
		return a
	}
	if err := r.driver.InjectCookie(ctx, cookieName, cookieValue, r.cfg.Domain); err != nil {
		r.finalizeAttempt(a, StatusError, truncate("cookie rejected: "+err.Error()))
		return a
	}
	if err := r.driver.EnsureAuthenticated(ctx, cookieName, cookieValue, r.cfg.Domain, url); err != nil {
		r.finalizeAttempt(a, StatusError, truncate("login failed: "+err.Error()))
		return a
	}
	log.Info("authenticated", "url", url)

	r.setPhase(a, "inspecting")
	text, err := r.driver.PageText(ctx)
	if err != nil {
		r.finalizeAttempt(a, StatusError, truncate("read page: "+err.Error()))
		return a
	}
	a.OriginalExpiry = expiry.Extract(text)

	now := time.Now()
	log.Info("expiry read",
		"expiry", a.OriginalExpiry.String(),
		"remaining", expiry.DescribeRemaining(a.OriginalExpiry, now))

	if !expiry.ShouldRenew(a.OriginalExpiry, r.cfg.ThresholdDays, now) {
		// Side-effect-free skip: no UI-mutating action has happened yet.
		a.Decision = DecisionSkip
		a.NewExpiry = a.OriginalExpiry
		r.rotateCredential(ctx, a, cookieName, cookieValue)
		r.finalizeAttempt(a, StatusSkipped, fmt.Sprintf("expires %s (%s left)",
			a.OriginalExpiry.String(), expiry.DescribeRemaining(a.OriginalExpiry, now)))
		return a
	}
	a.Decision = DecisionRenew

	r.setPhase(a, "solving")
	if err := r.driver.OpenRenewal(ctx); err != nil {
		log.Warn("renew control", "err", err)
		a.Popup = challenge.Result{Outcome: challenge.OutcomeError, Reason: truncate(err.Error())}
	} else {
		a.Popup = r.solve(ctx)
	}
	a.Screenshot = a.Popup.Screenshot

	r.setPhase(a, "verifying")
	if err := r.driver.Reload(ctx); err != nil {
		log.Warn("verification reload failed", "err", err)
	}
	freshText, err := r.driver.PageText(ctx)
	if err != nil {
		log.Warn("verification read failed", "err", err)
		freshText = ""
	}
	a.NewExpiry = expiry.Extract(freshText)

	status, gained := reconcile(a.OriginalExpiry, a.NewExpiry, a.Popup)
	a.Gained = gained

	r.rotateCredential(ctx, a, cookieName, cookieValue)
	r.finalizeAttempt(a, status, resultMessage(a, status, gained))
	return a
}

func resultMessage(a *Attempt, status Status, gained time.Duration) string {
	switch status {
	case StatusSuccess:
		if gained > 0 {
			return fmt.Sprintf("renewed +%s, now expires %s", gained.Round(time.Minute), a.NewExpiry.String())
		}
		return "renewed (confirmed by popup, duration unknown)"
	case StatusCooldown:
		return "not renewable yet (cooldown)"
	case StatusTimeout:
		return "no renewal outcome within the polling window"
	default:
		if a.Popup.Reason != "" {
			return truncate(a.Popup.Reason)
		}
		return "renewal failed"
	}
}

// rotateCredential checks the jar for a rotated session cookie and forwards
// it to the secret store. Failure here is never an account error; it is
// recorded only as the rotated flag staying false.
func (r *Runner) rotateCredential(ctx context.Context, a *Attempt, injectedName, injectedValue string) {
	jar, err := r.driver.Cookies(ctx)
	if err != nil {
		r.logger.Debug("cookie jar read failed", "err", err)
		return
	}
	name, value, ok := rotate.DetectRotated(injectedName, injectedValue, r.cfg.CookiePrefix, jar)
	if !ok {
		return
	}

	r.logger.Info("rotated session cookie detected",
		"account", a.Account.Label(), "cookie", name, "value", value)
	updated, err := r.rotator.Update(ctx, a.Account.CookieEnv, name+"="+value)
	if err != nil {
		r.logger.Warn("credential rotation failed", "account", a.Account.Label(), "err", err)
		return
	}
	r.setRotated(a, updated)
}
