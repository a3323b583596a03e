package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// This file implements challenge.Page on top of the driver's page handle.

// Button labels for the renew control and for next-style popup controls.
// The panel mixes Chinese and English depending on account locale.
const renewLabelsJS = `["续期", "续费", "延长", "renew", "add time"]`
const nextLabelsJS = `["下一步", "确定", "确认", "好的", "next", "ok", "continue"]`

// The widget provider iframe is matched by source; the hidden response
// field by the provider's well-known input names.
const widgetFrameJS = `
	(() => Array.from(document.querySelectorAll('iframe'))
		.find(f => /challenges\.cloudflare\.com|turnstile/i.test(f.src || '')))
`

// OpenRenewal clicks the renew control on the resource page with an
// in-page click. Only the challenge widget itself needs trusted input.
func (d *Driver) OpenRenewal(ctx context.Context) error {
	res, err := d.eval(ctx, `() => {
		const labels = `+renewLabelsJS+`;
		const nodes = Array.from(document.querySelectorAll('button, a, [role="button"]'));
		for (const el of nodes) {
			const t = (el.innerText || '').trim().toLowerCase();
			if (!t) continue;
			if (labels.some(l => t.includes(l))) { el.click(); return true; }
		}
		return false;
	}`)
	if err != nil {
		return fmt.Errorf("open renewal: %w", err)
	}
	if !res.Value.Bool() {
		return ErrRenewControlNotFound
	}
	return nil
}

func (d *Driver) renewControlPresent(ctx context.Context) (bool, error) {
	res, err := d.eval(ctx, `() => {
		const labels = `+renewLabelsJS+`;
		return Array.from(document.querySelectorAll('button, a, [role="button"]'))
			.some(el => labels.some(l => (el.innerText || '').trim().toLowerCase().includes(l)));
	}`)
	if err != nil {
		return false, fmt.Errorf("probe renew control: %w", err)
	}
	return res.Value.Bool(), nil
}

// ResponseField reads the widget's hidden response input.
func (d *Driver) ResponseField(ctx context.Context) (string, bool, error) {
	res, err := d.eval(ctx, `() => {
		const el = document.querySelector('input[name="cf-turnstile-response"]')
			|| document.querySelector('input[name="g-recaptcha-response"], textarea[name="g-recaptcha-response"]');
		if (!el) return { present: false, value: "" };
		return { present: true, value: el.value || "" };
	}`)
	if err != nil {
		return "", false, fmt.Errorf("read response field: %w", err)
	}
	return res.Value.Get("value").Str(), res.Value.Get("present").Bool(), nil
}

// Popup reports the renewal result popup's text and whether a next-style
// button is visible inside it.
func (d *Driver) Popup(ctx context.Context) (string, bool, bool, error) {
	res, err := d.eval(ctx, `() => {
		const popup = document.querySelector('.swal2-popup, [role="dialog"]');
		if (!popup) return { present: false, text: "", hasNext: false };
		const style = window.getComputedStyle(popup);
		const rect = popup.getBoundingClientRect();
		if (style.display === 'none' || style.visibility === 'hidden' || rect.width === 0 || rect.height === 0) {
			return { present: false, text: "", hasNext: false };
		}
		const labels = `+nextLabelsJS+`;
		const hasNext = Array.from(popup.querySelectorAll('button'))
			.some(b => labels.some(l => (b.innerText || '').trim().toLowerCase().includes(l)));
		return { present: true, text: popup.innerText || "", hasNext };
	}`)
	if err != nil {
		return "", false, false, fmt.Errorf("read popup: %w", err)
	}
	return res.Value.Get("text").Str(), res.Value.Get("hasNext").Bool(), res.Value.Get("present").Bool(), nil
}

// ExpandWidget undoes hiding styles on the widget iframe and its ancestors.
// Host page layout can re-collapse it, so this runs before every attempt.
func (d *Driver) ExpandWidget(ctx context.Context) error {
	_, err := d.eval(ctx, `() => {
		const frames = Array.from(document.querySelectorAll('iframe'))
			.filter(f => /challenges\.cloudflare\.com|turnstile/i.test(f.src || ''));
		for (const frame of frames) {
			frame.style.minWidth = '300px';
			frame.style.minHeight = '65px';
			frame.style.width = '300px';
			frame.style.height = '65px';
			frame.style.display = 'block';
			frame.style.visibility = 'visible';
			frame.style.opacity = '1';
			let el = frame.parentElement;
			while (el && el !== document.body) {
				const style = window.getComputedStyle(el);
				if (style.overflow === 'hidden' || style.overflowY === 'hidden') el.style.overflow = 'visible';
				if (style.display === 'none') el.style.display = 'block';
				if (el.clientHeight < 65) el.style.minHeight = '65px';
				if (el.clientWidth < 300) el.style.minWidth = '300px';
				el = el.parentElement;
			}
		}
		return frames.length > 0;
	}`)
	if err != nil {
		return fmt.Errorf("expand widget: %w", err)
	}
	return nil
}

// WidgetClickPoint locates the widget iframe's checkbox area: a fixed inset
// from the left edge, vertically centered. In screen-input mode the page
// coordinates are translated by the window's screen offset plus the
// window-chrome height so the OS pointer lands on the right pixel.
func (d *Driver) WidgetClickPoint(ctx context.Context) (int, int, bool, error) {
	const checkboxInset = 30

	res, err := d.eval(ctx, `(inset, screenSpace) => {
		const frame = `+widgetFrameJS+`();
		if (!frame) return { ok: false, x: 0, y: 0 };
		const rect = frame.getBoundingClientRect();
		if (rect.width === 0 || rect.height === 0) return { ok: false, x: 0, y: 0 };
		let x = rect.left + inset;
		let y = rect.top + rect.height / 2;
		if (screenSpace) {
			const chrome = window.outerHeight - window.innerHeight;
			x += window.screenX;
			y += window.screenY + chrome;
		}
		return { ok: true, x: Math.round(x), y: Math.round(y) };
	}`, checkboxInset, d.cfg.ScreenInput)
	if err != nil {
		return 0, 0, false, fmt.Errorf("widget click point: %w", err)
	}
	if !res.Value.Get("ok").Bool() {
		return 0, 0, false, nil
	}
	return res.Value.Get("x").Int(), res.Value.Get("y").Int(), true, nil
}

// ClickNext advances past the result popup. A missing control is fine.
func (d *Driver) ClickNext(ctx context.Context) error {
	_, err := d.eval(ctx, `() => {
		const popup = document.querySelector('.swal2-popup, [role="dialog"]') || document;
		const labels = `+nextLabelsJS+`;
		const btn = Array.from(popup.querySelectorAll('button'))
			.find(b => labels.some(l => (b.innerText || '').trim().toLowerCase().includes(l)));
		if (!btn) return false;
		btn.click();
		return true;
	}`)
	if err != nil {
		return fmt.Errorf("click next: %w", err)
	}
	return nil
}

var unsafeLabel = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Screenshot captures the viewport to the screenshot directory and returns
// the file path.
func (d *Driver) Screenshot(ctx context.Context, label string) (string, error) {
	data, err := d.page.Context(ctx).Screenshot(false, nil)
	if err != nil {
		return "", fmt.Errorf("screenshot: %w", err)
	}
	if err := os.MkdirAll(d.cfg.ScreenshotDir, 0755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	d.shotSeq++
	name := fmt.Sprintf("%s-%03d-%s.png",
		time.Now().Format("150405"), d.shotSeq, unsafeLabel.ReplaceAllString(label, "_"))
	path := filepath.Join(d.cfg.ScreenshotDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}
