// Package rotate forwards rotated session cookies to the repository's
// Actions secrets so the next scheduled run authenticates with the fresh
// token. The whole feature degrades to a clean no-op when the repository
// or token is not configured.
package rotate

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/nacl/box"
)

// DetectRotated scans the cookie jar for a session-identifying cookie
// (matched by name prefix) whose name or value differs from the one that
// was injected. The injected cookie's own name wins when its value changed;
// otherwise candidates are taken in sorted name order so repeated runs
// always pick the same cookie.
func DetectRotated(injectedName, injectedValue, prefix string, jar map[string]string) (name, value string, ok bool) {
	if strings.HasPrefix(injectedName, prefix) {
		if v, found := jar[injectedName]; found && v != injectedValue {
			return injectedName, v, true
		}
	}

	var candidates []string
	for n := range jar {
		if n != injectedName && strings.HasPrefix(n, prefix) {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		return "", "", false
	}
	sort.Strings(candidates)
	return candidates[0], jar[candidates[0]], true
}

// Rotator updates GitHub Actions secrets through the REST API, sealing the
// plaintext against the repository's published public key.
type Rotator struct {
	repo    string // owner/name
	token   string
	apiBase string
	httpc   *http.Client
	logger  *slog.Logger
}

func New(repo, token string, logger *slog.Logger) *Rotator {
	return &Rotator{
		repo:    repo,
		token:   token,
		apiBase: "https://api.github.com",
		httpc:   &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// Update encrypts value and writes it to the named repository secret.
// Returns false with no error when rotation is unconfigured.
func (r *Rotator) Update(ctx context.Context, name, value string) (bool, error) {
	if r.repo == "" || r.token == "" {
		r.logger.Debug("secret rotation unconfigured, skipping", "secret", name)
		return false, nil
	}

	keyID, pubKey, err := r.publicKey(ctx)
	if err != nil {
		return false, fmt.Errorf("fetch public key: %w", err)
	}

	sealed, err := seal(value, pubKey)
	if err != nil {
		return false, fmt.Errorf("seal secret: %w", err)
	}

	body, err := json.Marshal(map[string]string{
		"encrypted_value": sealed,
		"key_id":          keyID,
	})
	if err != nil {
		return false, err
	}

	url := fmt.Sprintf("%s/repos/%s/actions/secrets/%s", r.apiBase, r.repo, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	r.decorate(req)

	resp, err := r.httpc.Do(req)
	if err != nil {
		return false, fmt.Errorf("update secret %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("update secret %s: status %d: %s", name, resp.StatusCode, msg)
	}

	r.logger.Info("repository secret rotated", "secret", name, "value", value)
	return true, nil
}

func (r *Rotator) publicKey(ctx context.Context) (string, *[32]byte, error) {
	url := fmt.Sprintf("%s/repos/%s/actions/secrets/public-key", r.apiBase, r.repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, err
	}
	r.decorate(req)

	resp, err := r.httpc.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var payload struct {
		KeyID string `json:"key_id"`
		Key   string `json:"key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(payload.Key)
	if err != nil {
		return "", nil, fmt.Errorf("decode public key: %w", err)
	}
	if len(raw) != 32 {
		return "", nil, fmt.Errorf("public key is %d bytes, want 32", len(raw))
	}
	var key [32]byte
	copy(key[:], raw)
	return payload.KeyID, &key, nil
}

func (r *Rotator) decorate(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
}

// seal performs libsodium-compatible anonymous sealed-box encryption.
func seal(plaintext string, pubKey *[32]byte) (string, error) {
	sealed, err := box.SealAnonymous(nil, []byte(plaintext), pubKey, rand.Reader)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}
