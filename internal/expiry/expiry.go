// Package expiry extracts session expiry timestamps from rendered page text
// and decides whether a renewal is due.
package expiry

import (
	"fmt"
	"regexp"
	"time"
)

// Unknown is the raw value reported when no timestamp could be parsed.
const Unknown = "Unknown"

// Snapshot is one reading of the expiry shown on the resource page. It is
// produced fresh on every page read and never cached across navigations.
type Snapshot struct {
	Raw   string
	Time  time.Time
	Known bool
}

func (s Snapshot) String() string {
	if !s.Known {
		return Unknown
	}
	return s.Raw
}

// After reports whether s is a strictly later known expiry than other.
func (s Snapshot) After(other Snapshot) bool {
	return s.Known && other.Known && s.Time.After(other.Time)
}

var (
	// A timestamp within a short distance of a known expiry label. The
	// panel renders the label in Chinese or English depending on locale.
	labelPattern = regexp.MustCompile(`(?i)(?:到期时间|到期|过期时间|expiry|expires?|expiration)\D{0,20}(\d{4}-\d{2}-\d{2}(?:[ T]\d{2}:\d{2}:\d{2})?)`)
	barePattern  = regexp.MustCompile(`\d{4}-\d{2}-\d{2}(?:[ T]\d{2}:\d{2}:\d{2})?`)
)

// Extract finds the expiry timestamp in page text. It prefers a timestamp
// anchored near a known label and falls back to the first bare timestamp
// anywhere in the text. No match is a normal state, not an error.
func Extract(text string) Snapshot {
	if m := labelPattern.FindStringSubmatch(text); m != nil {
		if snap, ok := parse(m[1]); ok {
			return snap
		}
	}
	if m := barePattern.FindString(text); m != "" {
		if snap, ok := parse(m); ok {
			return snap
		}
	}
	return Snapshot{Raw: Unknown}
}

// Parse converts a raw timestamp string into a Snapshot, accepting the two
// formats the panel renders. Anything else yields an unknown snapshot.
func Parse(raw string) Snapshot {
	if snap, ok := parse(raw); ok {
		return snap
	}
	return Snapshot{Raw: Unknown}
}

var formats = []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"}

func parse(raw string) (Snapshot, bool) {
	for _, layout := range formats {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return Snapshot{Raw: raw, Time: t, Known: true}, true
		}
	}
	return Snapshot{}, false
}

// RemainingDays returns the fractional days until expiry. Negative values
// mean the session has already lapsed. Unknown snapshots report zero;
// callers must consult Known before trusting the value.
func RemainingDays(s Snapshot, now time.Time) float64 {
	if !s.Known {
		return 0
	}
	return s.Time.Sub(now).Hours() / 24
}

// ShouldRenew is the renewal policy: renew when the remaining time is at or
// under the threshold, or when the expiry could not be parsed at all. An
// unparseable expiry is treated as due, since attempting a renewal is safer
// than silently letting a session lapse.
func ShouldRenew(s Snapshot, thresholdDays int, now time.Time) bool {
	if !s.Known {
		return true
	}
	return RemainingDays(s, now) <= float64(thresholdDays)
}

// DescribeRemaining renders the time left in compact human form for reports.
func DescribeRemaining(s Snapshot, now time.Time) string {
	if !s.Known {
		return Unknown
	}
	d := s.Time.Sub(now)
	if d < 0 {
		return "expired"
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
