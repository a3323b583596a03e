// Package mask redacts credentials and identifiers before they reach logs
// or notifications. Values shorter than twice the visible run are fully
// starred so nothing leaks through short secrets.
package mask

import "strings"

const show = 3

// Sensitive keeps the first and last few characters of a secret visible.
func Sensitive(s string) string {
	if s == "" {
		return "***"
	}
	if len(s) <= show*2 {
		return strings.Repeat("*", len(s))
	}
	return s[:show] + strings.Repeat("*", len(s)-show*2) + s[len(s)-show:]
}

// Email masks the local part, preserving the domain.
func Email(s string) string {
	local, domain, ok := strings.Cut(s, "@")
	if !ok {
		return Sensitive(s)
	}
	if len(local) <= 2 {
		return strings.Repeat("*", len(local)) + "@" + domain
	}
	return local[:1] + strings.Repeat("*", len(local)-2) + local[len(local)-1:] + "@" + domain
}

// ServerID masks a panel server identifier, keeping two characters each end.
func ServerID(s string) string {
	if s == "" {
		return "***"
	}
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// URL masks the server id segment of a panel resource URL.
func URL(s string) string {
	if s == "" {
		return "***"
	}
	prefix, id, ok := strings.Cut(s, "/server/")
	if !ok {
		return s
	}
	return prefix + "/server/" + ServerID(id)
}
