package expiry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPrefersLabeledTimestamp(t *testing.T) {
	text := "created 2020-01-01\n到期时间: 2026-09-01 10:30:00\nsomething else"
	snap := Extract(text)
	require.True(t, snap.Known)
	assert.Equal(t, "2026-09-01 10:30:00", snap.Raw)
	assert.Equal(t, time.Date(2026, 9, 1, 10, 30, 0, 0, time.Local), snap.Time)
}

func TestExtractEnglishLabels(t *testing.T) {
	for _, text := range []string{
		"Expires: 2026-09-01 10:30:00",
		"expiry date 2026-09-01 10:30:00",
		"Expiration   2026-09-01T10:30:00",
	} {
		snap := Extract(text)
		assert.True(t, snap.Known, "text %q", text)
	}
}

func TestExtractFallsBackToBareTimestamp(t *testing.T) {
	snap := Extract("renewal window closes 2026-09-01")
	require.True(t, snap.Known)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.Local), snap.Time)
}

func TestExtractNoMatch(t *testing.T) {
	snap := Extract("no dates anywhere")
	assert.False(t, snap.Known)
	assert.Equal(t, Unknown, snap.String())
}

func TestParseRejectsGarbage(t *testing.T) {
	assert.False(t, Parse("soon").Known)
	assert.False(t, Parse("2026/09/01").Known)
	assert.True(t, Parse("2026-09-01").Known)
}

func TestShouldRenew(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.Local)

	near := Parse("2026-08-29 12:00:00") // 1 day out
	far := Parse("2099-12-31 23:59:59")
	lapsed := Parse("2026-08-27 12:00:00")

	assert.True(t, ShouldRenew(near, 2, now))
	assert.False(t, ShouldRenew(far, 2, now))
	assert.True(t, ShouldRenew(lapsed, 2, now))
	// Unparseable expiry is always due.
	assert.True(t, ShouldRenew(Snapshot{Raw: Unknown}, 2, now))
}

func TestAfterRequiresBothKnown(t *testing.T) {
	a := Parse("2026-09-01")
	b := Parse("2026-09-05")
	assert.True(t, b.After(a))
	assert.False(t, a.After(b))
	assert.False(t, a.After(a))
	assert.False(t, Snapshot{}.After(a))
	assert.False(t, b.After(Snapshot{}))
}

func TestRemainingDays(t *testing.T) {
	now := time.Date(2026, 8, 28, 0, 0, 0, 0, time.Local)
	snap := Parse("2026-08-31 12:00:00")
	assert.InDelta(t, 3.5, RemainingDays(snap, now), 0.001)
	assert.Zero(t, RemainingDays(Snapshot{}, now))
}

func TestDescribeRemaining(t *testing.T) {
	now := time.Date(2026, 8, 28, 0, 0, 0, 0, time.Local)

	assert.Equal(t, "2d 3h 5m", DescribeRemaining(Parse("2026-08-30 03:05:00"), now))
	assert.Equal(t, "3h 5m", DescribeRemaining(Parse("2026-08-28 03:05:30"), now))
	assert.Equal(t, "45m", DescribeRemaining(Parse("2026-08-28 00:45:10"), now))
	assert.Equal(t, "expired", DescribeRemaining(Parse("2026-08-27 00:00:00"), now))
	assert.Equal(t, Unknown, DescribeRemaining(Snapshot{}, now))
}
