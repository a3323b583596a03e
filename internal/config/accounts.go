package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// ParseAccounts decodes the ACCOUNTS environment variable: a JSON array of
// {id, name, cookie_env} objects. Entries missing required fields are
// skipped with a warning; only a completely unusable value is reported as
// a warning that leaves the list empty.
func ParseAccounts(raw string) ([]Account, []string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, []string{"ACCOUNTS env var is not set"}
	}

	var entries []Account
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, []string{fmt.Sprintf("ACCOUNTS is not a JSON array: %v", err)}
	}

	var accounts []Account
	var warnings []string
	for i, e := range entries {
		var missing []string
		if strings.TrimSpace(e.ID) == "" {
			missing = append(missing, "id")
		}
		if strings.TrimSpace(e.CookieEnv) == "" {
			missing = append(missing, "cookie_env")
		}
		if len(missing) > 0 {
			warnings = append(warnings, fmt.Sprintf("account %d missing required fields: %s", i+1, strings.Join(missing, ", ")))
			continue
		}
		accounts = append(accounts, e)
	}
	return accounts, warnings
}

// ParseCookie splits a "name=value" credential string. The value is
// URL-unescaped, since panel cookies are typically exported in encoded form.
func ParseCookie(s string) (name, value string, err error) {
	s = strings.TrimSpace(s)
	name, rest, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return "", "", fmt.Errorf("cookie string not in name=value form")
	}
	value = strings.TrimSpace(rest)
	if decoded, decErr := url.QueryUnescape(value); decErr == nil {
		value = decoded
	}
	return strings.TrimSpace(name), value, nil
}
