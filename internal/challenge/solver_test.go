package challenge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePage simulates the widget and popup lifecycle. State transitions are
// driven by the fake pointer's clicks.
type fakePage struct {
	mu sync.Mutex

	fieldPresent bool
	fieldValue   string

	popupPresent bool
	popupText    string
	popupNext    bool
	// popupFn overrides the static popup fields, keyed by call count.
	popupFn    func(call int) (text string, hasNext, present bool)
	popupCalls int

	expandCalls int
	nextClicks  int
	shots       int
	noClickBox  bool
}

func (p *fakePage) ResponseField(ctx context.Context) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fieldValue, p.fieldPresent, nil
}

func (p *fakePage) Popup(ctx context.Context) (string, bool, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.popupCalls++
	if p.popupFn != nil {
		text, hasNext, present := p.popupFn(p.popupCalls)
		return text, hasNext, present, nil
	}
	return p.popupText, p.popupNext, p.popupPresent, nil
}

func (p *fakePage) ExpandWidget(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expandCalls++
	return nil
}

func (p *fakePage) WidgetClickPoint(ctx context.Context) (int, int, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.noClickBox {
		return 0, 0, false, nil
	}
	return 120, 40, true, nil
}

func (p *fakePage) ClickNext(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextClicks++
	return nil
}

func (p *fakePage) Screenshot(ctx context.Context, label string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shots++
	return fmt.Sprintf("/tmp/shot-%03d.png", p.shots), nil
}

func (p *fakePage) showPopup(text string, hasNext bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.popupPresent = true
	p.popupText = text
	p.popupNext = hasNext
}

// fakePointer solves the widget after a configured number of clicks by
// filling the page's response field.
type fakePointer struct {
	page          *fakePage
	clicksToSolve int
	onSolve       func()

	mu     sync.Mutex
	moves  int
	clicks int
}

func (f *fakePointer) MoveTo(ctx context.Context, x, y int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves++
	return nil
}

func (f *fakePointer) Click(ctx context.Context) error {
	f.mu.Lock()
	f.clicks++
	solved := f.clicksToSolve > 0 && f.clicks >= f.clicksToSolve
	f.mu.Unlock()

	if solved {
		f.page.mu.Lock()
		f.page.fieldValue = strings.Repeat("x", 64)
		f.page.mu.Unlock()
		if f.onSolve != nil {
			f.onSolve()
		}
	}
	return nil
}

func (f *fakePointer) clickCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clicks
}

func testConfig() Config {
	return Config{
		SignalAttempts:  3,
		SignalInterval:  time.Millisecond,
		ClickAttempts:   4,
		SolvePolls:      2,
		SolveInterval:   time.Millisecond,
		SolvedMinLen:    20,
		OutcomeWindow:   150 * time.Millisecond,
		OutcomeInterval: 2 * time.Millisecond,
		ScreenshotEvery: 50 * time.Millisecond,
		ReCheckDelay:    time.Millisecond,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSolverNoChallengeFound(t *testing.T) {
	page := &fakePage{}
	pointer := &fakePointer{page: page}
	s := NewSolver(page, pointer, testConfig(), testLogger())

	res := s.Run(context.Background())

	assert.Equal(t, OutcomeError, res.Outcome)
	assert.Equal(t, "challenge not found", res.Reason)
	assert.Zero(t, pointer.clickCount())
	assert.NotEmpty(t, res.Screenshot)
}

func TestSolverSolvesAndReadsSuccess(t *testing.T) {
	page := &fakePage{fieldPresent: true}
	pointer := &fakePointer{page: page, clicksToSolve: 2}
	pointer.onSolve = func() { page.showPopup("续期成功", true) }
	s := NewSolver(page, pointer, testConfig(), testLogger())

	res := s.Run(context.Background())

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, 2, pointer.clickCount())
	// The solver must advance past the popup so verification sees a clean page.
	page.mu.Lock()
	assert.Equal(t, 1, page.nextClicks)
	page.mu.Unlock()
	assert.NotEmpty(t, res.Screenshot)
}

func TestSolverClickAttemptsAreBounded(t *testing.T) {
	page := &fakePage{fieldPresent: true}
	pointer := &fakePointer{page: page} // never solves
	cfg := testConfig()
	s := NewSolver(page, pointer, cfg, testLogger())

	res := s.Run(context.Background())

	assert.Equal(t, cfg.ClickAttempts, pointer.clickCount())
	assert.Equal(t, OutcomeTimeout, res.Outcome)
}

func TestSolverCooldownOutcome(t *testing.T) {
	page := &fakePage{fieldPresent: true}
	pointer := &fakePointer{page: page, clicksToSolve: 1}
	pointer.onSolve = func() { page.showPopup("还不能续期，请稍后再试", false) }
	s := NewSolver(page, pointer, testConfig(), testLogger())

	res := s.Run(context.Background())

	assert.Equal(t, OutcomeCooldown, res.Outcome)
	assert.Contains(t, res.Reason, "还不能续期")
}

func TestSolverSkipsWidgetWhenResultAlreadyShown(t *testing.T) {
	page := &fakePage{}
	page.showPopup("Server renewed successfully", true)
	pointer := &fakePointer{page: page}
	s := NewSolver(page, pointer, testConfig(), testLogger())

	res := s.Run(context.Background())

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Zero(t, pointer.clickCount())
}

func TestSolverReExpandsBeforeEveryClick(t *testing.T) {
	page := &fakePage{fieldPresent: true}
	pointer := &fakePointer{page: page, clicksToSolve: 3}
	pointer.onSolve = func() { page.showPopup("renewed", true) }
	s := NewSolver(page, pointer, testConfig(), testLogger())

	res := s.Run(context.Background())

	require.Equal(t, OutcomeSuccess, res.Outcome)
	page.mu.Lock()
	assert.Equal(t, 3, page.expandCalls)
	page.mu.Unlock()
}

func TestSolverNoClickBoxStillTerminates(t *testing.T) {
	page := &fakePage{fieldPresent: true, noClickBox: true}
	pointer := &fakePointer{page: page}
	s := NewSolver(page, pointer, testConfig(), testLogger())

	res := s.Run(context.Background())

	assert.Equal(t, OutcomeTimeout, res.Outcome)
	assert.Zero(t, pointer.clickCount())
}

func TestSolverRechecksOnceWhenPopupCloses(t *testing.T) {
	page := &fakePage{fieldPresent: true}
	// The popup is visible but unclassifiable for a few polls, then closes
	// without ever showing an outcome marker.
	page.popupFn = func(call int) (string, bool, bool) {
		if call <= 3 {
			return "处理中", false, true
		}
		return "", false, false
	}
	pointer := &fakePointer{page: page, clicksToSolve: 1}
	s := NewSolver(page, pointer, testConfig(), testLogger())

	res := s.Run(context.Background())

	assert.Equal(t, OutcomeTimeout, res.Outcome)
	assert.Equal(t, "popup closed without outcome", res.Reason)
	// One popup read in the signal wait, two while it was visible, one that
	// saw it gone, and exactly one re-check before giving up.
	page.mu.Lock()
	assert.Equal(t, 5, page.popupCalls)
	page.mu.Unlock()
}

func TestSnippetKeepsRunesIntact(t *testing.T) {
	long := strings.Repeat("还不能续期，请稍后再试。", 10)
	got := snippet(long)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), 120)

	assert.Equal(t, "short text", snippet("short \n text"))
}

func TestSolverHonorsCancellation(t *testing.T) {
	page := &fakePage{fieldPresent: true}
	pointer := &fakePointer{page: page}
	cfg := testConfig()
	cfg.OutcomeWindow = 10 * time.Second
	s := NewSolver(page, pointer, cfg, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan Result, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case res := <-done:
		assert.Equal(t, OutcomeTimeout, res.Outcome)
	case <-time.After(5 * time.Second):
		t.Fatal("solver did not terminate after context cancellation")
	}
}
