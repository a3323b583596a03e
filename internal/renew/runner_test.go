package renew

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostkeeper/internal/challenge"
	"hostkeeper/internal/config"
)

type fakeDriver struct {
	mu sync.Mutex

	startErr error
	openErr  error
	// authErr fails EnsureAuthenticated for a specific injected cookie value.
	authErr map[string]error
	// texts is the PageText queue; the last entry repeats once drained.
	texts []string
	jar   map[string]string

	started  bool
	resets   int
	opens    int
	reloads  int
	injected []string
}

func (d *fakeDriver) Start(ctx context.Context) error {
	d.started = d.startErr == nil
	return d.startErr
}

func (d *fakeDriver) Close() error { return nil }

func (d *fakeDriver) ResetSession(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets++
	return nil
}

func (d *fakeDriver) InjectCookie(ctx context.Context, name, value, domain string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.injected = append(d.injected, value)
	return nil
}

func (d *fakeDriver) EnsureAuthenticated(ctx context.Context, name, value, domain, url string) error {
	if err, ok := d.authErr[value]; ok {
		return err
	}
	return nil
}

func (d *fakeDriver) PageText(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.texts) == 0 {
		return "", nil
	}
	text := d.texts[0]
	if len(d.texts) > 1 {
		d.texts = d.texts[1:]
	}
	return text, nil
}

func (d *fakeDriver) OpenRenewal(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++
	return d.openErr
}

func (d *fakeDriver) Reload(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reloads++
	return nil
}

func (d *fakeDriver) Cookies(ctx context.Context) (map[string]string, error) {
	return d.jar, nil
}

func (d *fakeDriver) Screenshot(ctx context.Context, label string) (string, error) {
	return "/tmp/shot.png", nil
}

type fakeRotator struct {
	mu      sync.Mutex
	updates map[string]string
	result  bool
}

func (f *fakeRotator) Update(ctx context.Context, name, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updates == nil {
		f.updates = map[string]string{}
	}
	f.updates[name] = value
	return f.result, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	photos   []string
}

func (f *fakeNotifier) SendMessage(ctx context.Context, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, html)
	return nil
}

func (f *fakeNotifier) SendPhoto(ctx context.Context, caption, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, path)
	return nil
}

func testCfg(accounts ...config.Account) *config.Config {
	return &config.Config{
		BaseURL:       "https://panel.test/server/",
		Domain:        "panel.test",
		ThresholdDays: 2,
		CookiePrefix:  "remember_web",
		Accounts:      accounts,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noSolve(t *testing.T) SolveFunc {
	return func(ctx context.Context) challenge.Result {
		t.Error("solve must not run")
		return challenge.Result{}
	}
}

func expiryLine(t time.Time) string {
	return "到期时间: " + t.Format("2006-01-02 15:04:05")
}

func TestRunnerSkipsHealthyAccount(t *testing.T) {
	t.Setenv("COOKIE_A", "remember_web_x=abc")
	cfg := testCfg(config.Account{ID: "srv1", Name: "alpha", CookieEnv: "COOKIE_A"})
	driver := &fakeDriver{texts: []string{expiryLine(time.Now().Add(30 * 24 * time.Hour))}}
	notifier := &fakeNotifier{}

	r := NewRunner(cfg, driver, noSolve(t), &fakeRotator{}, notifier, discardLogger())
	require.NoError(t, r.Run(context.Background()))

	attempts := r.Attempts()
	require.Len(t, attempts, 1)
	a := attempts[0]
	assert.Equal(t, StatusSkipped, a.Status)
	assert.Equal(t, DecisionSkip, a.Decision)
	assert.Equal(t, a.OriginalExpiry, a.NewExpiry)
	// A skipped account must not touch the renewal UI at all.
	assert.Zero(t, driver.opens)
	assert.Zero(t, driver.reloads)
	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "alpha")
}

func TestRunnerRenewsExpiringAccount(t *testing.T) {
	t.Setenv("COOKIE_B", "remember_web_x=abc")
	cfg := testCfg(config.Account{ID: "srv2", CookieEnv: "COOKIE_B"})

	base := time.Now()
	driver := &fakeDriver{texts: []string{
		expiryLine(base.Add(24 * time.Hour)),     // inspection: due in 1 day
		expiryLine(base.Add(6 * 24 * time.Hour)), // verification: 5 days gained
	}}
	notifier := &fakeNotifier{}

	solves := 0
	solve := func(ctx context.Context) challenge.Result {
		solves++
		return challenge.Result{Outcome: challenge.OutcomeSuccess, Screenshot: "/tmp/renew.png"}
	}

	r := NewRunner(cfg, driver, solve, &fakeRotator{}, notifier, discardLogger())
	require.NoError(t, r.Run(context.Background()))

	attempts := r.Attempts()
	require.Len(t, attempts, 1)
	a := attempts[0]
	assert.Equal(t, StatusSuccess, a.Status)
	assert.Equal(t, DecisionRenew, a.Decision)
	assert.Equal(t, 5*24*time.Hour, a.Gained)
	assert.Equal(t, 1, solves)
	assert.Equal(t, 1, driver.opens)
	assert.Equal(t, 1, driver.reloads)
	assert.Contains(t, a.Message, "renewed")

	// The run summary carries the solve screenshot.
	require.Len(t, notifier.photos, 1)
	assert.Equal(t, "/tmp/renew.png", notifier.photos[0])
}

func TestRunnerEmptyCredentialSlot(t *testing.T) {
	t.Setenv("COOKIE_GOOD", "remember_web_x=abc")
	t.Setenv("COOKIE_MISSING", "")
	cfg := testCfg(
		config.Account{ID: "srv1", CookieEnv: "COOKIE_MISSING"},
		config.Account{ID: "srv2", CookieEnv: "COOKIE_GOOD"},
	)
	driver := &fakeDriver{texts: []string{expiryLine(time.Now().Add(30 * 24 * time.Hour))}}

	r := NewRunner(cfg, driver, noSolve(t), &fakeRotator{}, &fakeNotifier{}, discardLogger())
	require.NoError(t, r.Run(context.Background()))

	attempts := r.Attempts()
	require.Len(t, attempts, 2)
	assert.Equal(t, StatusError, attempts[0].Status)
	assert.Contains(t, attempts[0].Message, "COOKIE_MISSING")
	// The failed slot never reaches the browser.
	assert.Equal(t, 1, driver.resets)
	assert.Equal(t, StatusSkipped, attempts[1].Status)
}

func TestRunnerIsolatesAuthFailure(t *testing.T) {
	t.Setenv("COOKIE_BAD", "remember_web_x=stale")
	t.Setenv("COOKIE_OK", "remember_web_x=fresh")
	cfg := testCfg(
		config.Account{ID: "srv1", Name: "bad", CookieEnv: "COOKIE_BAD"},
		config.Account{ID: "srv2", Name: "good", CookieEnv: "COOKIE_OK"},
	)
	driver := &fakeDriver{
		authErr: map[string]error{"stale": errors.New("auth verification failed")},
		texts:   []string{expiryLine(time.Now().Add(30 * 24 * time.Hour))},
	}

	r := NewRunner(cfg, driver, noSolve(t), &fakeRotator{}, &fakeNotifier{}, discardLogger())
	require.NoError(t, r.Run(context.Background()))

	attempts := r.Attempts()
	require.Len(t, attempts, 2)
	assert.Equal(t, "bad", attempts[0].Account.Label())
	assert.Equal(t, StatusError, attempts[0].Status)
	assert.Contains(t, attempts[0].Message, "login failed")
	assert.Equal(t, StatusSkipped, attempts[1].Status)
}

func TestRunnerBrowserStartFailure(t *testing.T) {
	t.Setenv("COOKIE_A", "remember_web_x=a")
	t.Setenv("COOKIE_B", "remember_web_x=b")
	cfg := testCfg(
		config.Account{ID: "srv1", CookieEnv: "COOKIE_A"},
		config.Account{ID: "srv2", CookieEnv: "COOKIE_B"},
	)
	driver := &fakeDriver{startErr: errors.New("no chrome binary")}
	notifier := &fakeNotifier{}

	r := NewRunner(cfg, driver, noSolve(t), &fakeRotator{}, notifier, discardLogger())
	err := r.Run(context.Background())
	require.Error(t, err)

	// Every account still reaches a terminal state and the report goes out.
	attempts := r.Attempts()
	require.Len(t, attempts, 2)
	for _, a := range attempts {
		assert.Equal(t, StatusError, a.Status)
		assert.Contains(t, a.Message, "browser unavailable")
		assert.True(t, a.Finalized())
	}
	assert.Len(t, notifier.messages, 1)
}

func TestRunnerRotatesFreshCookie(t *testing.T) {
	t.Setenv("COOKIE_A", "remember_web_x=oldvalue")
	cfg := testCfg(config.Account{ID: "srv1", CookieEnv: "COOKIE_A"})
	driver := &fakeDriver{
		texts: []string{expiryLine(time.Now().Add(30 * 24 * time.Hour))},
		jar:   map[string]string{"remember_web_x": "freshvalue", "session": "other"},
	}
	rotator := &fakeRotator{result: true}

	r := NewRunner(cfg, driver, noSolve(t), rotator, &fakeNotifier{}, discardLogger())
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, "remember_web_x=freshvalue", rotator.updates["COOKIE_A"])
	assert.True(t, r.Attempts()[0].CredentialRotated)
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	long := strings.Repeat("续期失败，请稍后再试。", 40)
	got := truncate(long)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), maxMessageLen+len("…"))

	assert.Equal(t, "short", truncate("short"))
}

func TestRunnerSnapshotTotals(t *testing.T) {
	t.Setenv("COOKIE_A", "remember_web_x=abc")
	cfg := testCfg(
		config.Account{ID: "srv1", CookieEnv: "COOKIE_A"},
		config.Account{ID: "srv2", CookieEnv: "COOKIE_A"},
	)
	driver := &fakeDriver{texts: []string{expiryLine(time.Now().Add(30 * 24 * time.Hour))}}

	r := NewRunner(cfg, driver, noSolve(t), &fakeRotator{}, &fakeNotifier{}, discardLogger())
	require.NoError(t, r.Run(context.Background()))

	snap := r.GetSnapshot()
	assert.True(t, snap.Done)
	assert.Equal(t, 2, snap.Total)
	assert.Len(t, snap.Accounts, 2)
	assert.Equal(t, 2, snap.Totals.Skipped)
	assert.Zero(t, snap.Totals.Failed)
}
