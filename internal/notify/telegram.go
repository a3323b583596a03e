// Package notify delivers the run summary over Telegram. Delivery is
// best-effort: an unconfigured channel is a silent no-op and network
// failures are logged and swallowed by the caller.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

type Telegram struct {
	token   string
	chatID  string
	apiBase string
	httpc   *http.Client
	logger  *slog.Logger
}

func NewTelegram(token, chatID string, logger *slog.Logger) *Telegram {
	return &Telegram{
		token:   token,
		chatID:  chatID,
		apiBase: "https://api.telegram.org",
		httpc:   &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

func (t *Telegram) Configured() bool {
	return t.token != "" && t.chatID != ""
}

// SendMessage posts an HTML-formatted message to the configured chat.
func (t *Telegram) SendMessage(ctx context.Context, html string) error {
	if !t.Configured() {
		return nil
	}
	body, err := json.Marshal(map[string]string{
		"chat_id":    t.chatID,
		"text":       html,
		"parse_mode": "HTML",
	})
	if err != nil {
		return err
	}
	return t.post(ctx, "sendMessage", "application/json", bytes.NewReader(body))
}

// SendPhoto posts an image with a caption. Used for the representative
// screenshot of the run.
func (t *Telegram) SendPhoto(ctx context.Context, caption, path string) error {
	if !t.Configured() {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open photo: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("chat_id", t.chatID); err != nil {
		return err
	}
	if caption != "" {
		if err := mw.WriteField("caption", caption); err != nil {
			return err
		}
		if err := mw.WriteField("parse_mode", "HTML"); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("photo", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	return t.post(ctx, "sendPhoto", mw.FormDataContentType(), &buf)
}

func (t *Telegram) post(ctx context.Context, method, contentType string, body io.Reader) error {
	url := fmt.Sprintf("%s/bot%s/%s", t.apiBase, t.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := t.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram %s: status %d: %s", method, resp.StatusCode, msg)
	}
	return nil
}
