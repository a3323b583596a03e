// Package browser owns the single Chrome session used for a run. All other
// components reach browser state exclusively through the Driver.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"hostkeeper/internal/expiry"
	"hostkeeper/internal/mask"
)

var (
	// ErrAuthFailed means login verification still failed after one
	// cookie re-injection retry. Fatal for the account, not the run.
	ErrAuthFailed = errors.New("auth verification failed")
	// ErrInjection means the browser rejected the cookie write.
	ErrInjection = errors.New("cookie injection rejected")
	// ErrRenewControlNotFound means no renew control was visible on the
	// resource page.
	ErrRenewControlNotFound = errors.New("renew control not found")
)

type Config struct {
	Headless      bool
	Bin           string
	Width         int
	Height        int
	NavTimeout    time.Duration
	ScreenshotDir string
	// ScreenInput selects absolute screen coordinates for widget click
	// points (OS pointer backend) instead of viewport coordinates (CDP).
	ScreenInput bool
}

// Driver wraps one rod page. It is not safe for concurrent use; account
// processing is sequential by design.
type Driver struct {
	cfg    Config
	logger *slog.Logger

	browser *rod.Browser
	lnchr   *launcher.Launcher
	page    *rod.Page
	shotSeq int
}

func New(cfg Config, logger *slog.Logger) *Driver {
	return &Driver{cfg: cfg, logger: logger}
}

// Start launches Chrome and opens the single page used for the whole run.
func (d *Driver) Start(ctx context.Context) error {
	l := launcher.New().Headless(d.cfg.Headless)
	if d.cfg.Bin != "" {
		l = l.Bin(d.cfg.Bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch chrome: %w", err)
	}
	d.lnchr = l

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}
	d.browser = b

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	d.page = page

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             d.cfg.Width,
		Height:            d.cfg.Height,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		d.logger.Warn("set viewport failed", "err", err)
	}
	return nil
}

func (d *Driver) Close() error {
	var err error
	if d.page != nil {
		_ = d.page.Close()
		d.page = nil
	}
	if d.browser != nil {
		err = d.browser.Close()
		d.browser = nil
	}
	if d.lnchr != nil {
		d.lnchr.Kill()
		d.lnchr = nil
	}
	return err
}

// Page exposes the underlying rod page for the CDP pointer backend.
func (d *Driver) Page() *rod.Page {
	return d.page
}

// ResetSession clears every cookie in the browser so accounts cannot bleed
// into each other. The page itself is reused across accounts.
func (d *Driver) ResetSession(ctx context.Context) error {
	if err := d.browser.SetCookies(nil); err != nil {
		return fmt.Errorf("clear cookies: %w", err)
	}
	return nil
}

// InjectCookie writes the account's session cookie into the target domain.
func (d *Driver) InjectCookie(ctx context.Context, name, value, domain string) error {
	err := d.page.Context(ctx).SetCookies([]*proto.NetworkCookieParam{{
		Name:   name,
		Value:  value,
		Domain: domain,
		Path:   "/",
		Secure: true,
	}})
	if err != nil {
		return fmt.Errorf("%w: %s on %s: %v", ErrInjection, mask.Sensitive(name), domain, err)
	}
	return nil
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	page := d.page.Context(ctx).Timeout(d.cfg.NavTimeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", mask.URL(url), err)
	}
	if err := page.WaitLoad(); err != nil {
		d.logger.Debug("wait load", "url", url, "err", err)
	}
	return nil
}

func (d *Driver) Reload(ctx context.Context) error {
	page := d.page.Context(ctx).Timeout(d.cfg.NavTimeout)
	if err := page.Reload(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		d.logger.Debug("wait load after reload", "err", err)
	}
	return nil
}

// EnsureAuthenticated opens the resource page and verifies the session is
// logged in: the URL must not be on an auth path and either the expiry must
// be extractable or the renew control present. On failure the cookie is
// re-injected once before giving up with ErrAuthFailed.
func (d *Driver) EnsureAuthenticated(ctx context.Context, name, value, domain, url string) error {
	if err := d.Navigate(ctx, url); err != nil {
		return err
	}
	if ok, err := d.loggedIn(ctx); err == nil && ok {
		return nil
	}

	d.logger.Warn("login check failed, re-injecting cookie", "url", url)
	if err := d.ResetSession(ctx); err != nil {
		return err
	}
	if err := d.InjectCookie(ctx, name, value, domain); err != nil {
		return err
	}
	if err := d.Navigate(ctx, url); err != nil {
		return err
	}
	ok, err := d.loggedIn(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if !ok {
		return ErrAuthFailed
	}
	return nil
}

func (d *Driver) loggedIn(ctx context.Context) (bool, error) {
	info, err := d.page.Context(ctx).Info()
	if err != nil {
		return false, fmt.Errorf("page info: %w", err)
	}
	if strings.Contains(info.URL, "/auth") || strings.Contains(info.URL, "/login") {
		return false, nil
	}

	text, err := d.PageText(ctx)
	if err != nil {
		return false, err
	}
	if expiry.Extract(text).Known {
		return true, nil
	}
	return d.renewControlPresent(ctx)
}

// PageText returns the rendered text of the current document body.
func (d *Driver) PageText(ctx context.Context) (string, error) {
	res, err := d.eval(ctx, `() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return "", fmt.Errorf("read page text: %w", err)
	}
	return res.Value.Str(), nil
}

// Cookies returns the current cookie jar as name → value.
func (d *Driver) Cookies(ctx context.Context) (map[string]string, error) {
	cookies, err := d.browser.GetCookies()
	if err != nil {
		return nil, fmt.Errorf("get cookies: %w", err)
	}
	jar := make(map[string]string, len(cookies))
	for _, c := range cookies {
		jar[c.Name] = c.Value
	}
	return jar, nil
}

func (d *Driver) eval(ctx context.Context, js string, args ...interface{}) (*proto.RuntimeRemoteObject, error) {
	return d.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: true,
	})
}
