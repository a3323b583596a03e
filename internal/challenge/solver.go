package challenge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"hostkeeper/internal/input"
)

// Page is what the solver needs from the browser session. The session
// driver implements it; tests use a fake.
type Page interface {
	// ResponseField reports the challenge widget's hidden response field:
	// its current value and whether the field exists in the DOM at all.
	ResponseField(ctx context.Context) (value string, present bool, err error)
	// Popup reports the renewal result popup: its visible text, whether a
	// next-style confirm button is shown, and whether the popup exists.
	Popup(ctx context.Context) (text string, hasNext bool, present bool, err error)
	// ExpandWidget undoes host-page styling that collapses the widget to
	// zero size or hides it behind ancestor overflow.
	ExpandWidget(ctx context.Context) error
	// WidgetClickPoint returns the pointer target inside the widget's
	// checkbox area, in the coordinate space of the configured pointer
	// backend. ok is false when the widget iframe cannot be located.
	WidgetClickPoint(ctx context.Context) (x, y int, ok bool, err error)
	// ClickNext advances past the result popup if a next-style control is
	// present. Missing control is not an error.
	ClickNext(ctx context.Context) error
	Screenshot(ctx context.Context, label string) (path string, err error)
}

type Config struct {
	SignalAttempts  int           // polls while waiting for widget or result
	SignalInterval  time.Duration
	ClickAttempts   int           // pointer click retries
	SolvePolls      int           // response-field polls after each click
	SolveInterval   time.Duration
	SolvedMinLen    int           // response value length that counts as solved
	OutcomeWindow   time.Duration // total popup polling budget
	OutcomeInterval time.Duration
	ScreenshotEvery time.Duration
	ReCheckDelay    time.Duration // wait before the single post-close re-check
}

func DefaultConfig() Config {
	return Config{
		SignalAttempts:  20,
		SignalInterval:  time.Second,
		ClickAttempts:   6,
		SolvePolls:      8,
		SolveInterval:   500 * time.Millisecond,
		SolvedMinLen:    20,
		OutcomeWindow:   45 * time.Second,
		OutcomeInterval: 1500 * time.Millisecond,
		ScreenshotEvery: 5 * time.Second,
		ReCheckDelay:    2 * time.Second,
	}
}

// Solver walks the widget through detection, expansion, trusted clicking
// and outcome classification. One Solver handles one renewal attempt.
type Solver struct {
	page    Page
	pointer input.Pointer
	cfg     Config
	logger  *slog.Logger

	lastShot string
}

func NewSolver(page Page, pointer input.Pointer, cfg Config, logger *slog.Logger) *Solver {
	return &Solver{page: page, pointer: pointer, cfg: cfg, logger: logger}
}

type signal int

const (
	signalNone signal = iota
	signalResult
	signalWidget
)

// Run executes the full state machine and always terminates within the
// configured bounds. The returned Result carries the most recent screenshot.
func (s *Solver) Run(ctx context.Context) Result {
	s.capture(ctx, "entry")

	switch s.awaitSignal(ctx) {
	case signalNone:
		return s.terminal(ctx, Result{Outcome: OutcomeError, Reason: "challenge not found"})
	case signalResult:
		// A result marker is already visible; nothing to click.
		s.logger.Info("result popup already present, skipping widget interaction")
	case signalWidget:
		if !s.attemptClicks(ctx) {
			// The page may still resolve on its own, e.g. a
			// non-interactive widget variant.
			s.logger.Warn("no solved signal after click attempts, polling for outcome anyway",
				"attempts", s.cfg.ClickAttempts)
		}
	}

	return s.terminal(ctx, s.pollOutcome(ctx))
}

// awaitSignal polls for either an already-visible result marker or the
// widget's hidden response field.
func (s *Solver) awaitSignal(ctx context.Context) signal {
	found := signalNone
	_, _ = pollUntil(ctx, s.cfg.SignalAttempts, s.cfg.SignalInterval, func(ctx context.Context) (bool, error) {
		if text, hasNext, present, err := s.page.Popup(ctx); err == nil && present {
			if Classify(text, hasNext) != OutcomeUnknown {
				found = signalResult
				return true, nil
			}
		}
		if _, present, err := s.page.ResponseField(ctx); err == nil && present {
			found = signalWidget
			return true, nil
		}
		return false, nil
	})
	return found
}

// attemptClicks issues up to ClickAttempts trusted pointer clicks at the
// widget checkbox, re-expanding the widget before each one because host
// page layout can re-collapse it.
func (s *Solver) attemptClicks(ctx context.Context) bool {
	for n := 1; n <= s.cfg.ClickAttempts; n++ {
		if ctx.Err() != nil {
			return false
		}
		if err := s.page.ExpandWidget(ctx); err != nil {
			s.logger.Debug("expand widget", "attempt", n, "err", err)
		}

		x, y, ok, err := s.page.WidgetClickPoint(ctx)
		if err != nil || !ok {
			s.logger.Debug("widget box not resolvable", "attempt", n, "err", err)
			s.capture(ctx, fmt.Sprintf("attempt-%d-no-box", n))
			_ = sleep(ctx, s.cfg.SolveInterval)
			continue
		}

		if err := s.pointer.MoveTo(ctx, x, y); err != nil {
			s.logger.Warn("pointer move failed", "attempt", n, "err", err)
		} else if err := s.pointer.Click(ctx); err != nil {
			s.logger.Warn("pointer click failed", "attempt", n, "err", err)
		}

		solved, _ := pollUntil(ctx, s.cfg.SolvePolls, s.cfg.SolveInterval, func(ctx context.Context) (bool, error) {
			v, present, err := s.page.ResponseField(ctx)
			if err != nil {
				return false, nil
			}
			return present && len(v) > s.cfg.SolvedMinLen, nil
		})
		if solved {
			s.logger.Info("challenge solved", "attempt", n)
			return true
		}
		s.capture(ctx, fmt.Sprintf("attempt-%d-failed", n))
	}
	return false
}

// pollOutcome scans the popup text within the outcome window. If the popup
// closes without a detectable outcome it re-checks once after a short delay
// before giving up.
func (s *Solver) pollOutcome(ctx context.Context) Result {
	deadline := time.Now().Add(s.cfg.OutcomeWindow)
	lastShot := time.Now()
	popupSeen := false
	rechecked := false

	for time.Now().Before(deadline) && ctx.Err() == nil {
		text, hasNext, present, err := s.page.Popup(ctx)
		if err == nil {
			switch {
			case present:
				popupSeen = true
				out := Classify(text, hasNext)
				if out == OutcomeSuccess || out == OutcomeCooldown {
					// Advance past the result so the popup state does not
					// leak into the verification reload.
					if err := s.page.ClickNext(ctx); err != nil {
						s.logger.Debug("advance past popup", "err", err)
					}
					return Result{Outcome: out, Reason: snippet(text)}
				}
			case popupSeen && !rechecked:
				rechecked = true
				_ = sleep(ctx, s.cfg.ReCheckDelay)
				continue
			case popupSeen && rechecked:
				return Result{Outcome: OutcomeTimeout, Reason: "popup closed without outcome"}
			}
		}

		if time.Since(lastShot) >= s.cfg.ScreenshotEvery {
			s.capture(ctx, "polling")
			lastShot = time.Now()
		}
		if err := sleep(ctx, s.cfg.OutcomeInterval); err != nil {
			break
		}
	}
	return Result{Outcome: OutcomeTimeout, Reason: "no outcome marker within window"}
}

func (s *Solver) terminal(ctx context.Context, res Result) Result {
	s.capture(ctx, "terminal-"+res.Outcome.String())
	res.Screenshot = s.lastShot
	s.logger.Info("challenge terminal", "outcome", res.Outcome.String(), "reason", res.Reason)
	return res
}

// capture takes a diagnostic screenshot and retains the most recent path.
func (s *Solver) capture(ctx context.Context, label string) {
	path, err := s.page.Screenshot(ctx, label)
	if err != nil {
		s.logger.Debug("screenshot failed", "label", label, "err", err)
		return
	}
	s.lastShot = path
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	const max = 120
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
