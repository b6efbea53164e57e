package domain

import (
	"regexp"
	"time"
)

// DefaultLockoutDuration is applied when a locked response carries no
// parseable duration.
const DefaultLockoutDuration = 30 * time.Minute

// lockoutDurationPattern matches the human-readable duration the identity
// service embeds in its 403 responses, e.g. "Try again in 12 minutes.".
// The message is display text; only the number is extracted from it.
var lockoutDurationPattern = regexp.MustCompile(`(?i)try again in (\d+) minutes?`)

// Lockout is the client-side countdown started by a locked (403) response.
// It is deadline-based: reads compute the remaining time, so it clears
// itself at zero without a dedicated timer.
type Lockout struct {
	Until  time.Time
	Reason string
}

// Active reports whether the lockout is still in force at now.
func (l Lockout) Active(now time.Time) bool {
	return now.Before(l.Until)
}

// Remaining returns the whole seconds left before attempts are permitted
// again, floored at zero.
func (l Lockout) Remaining(now time.Time) int {
	return remainingSeconds(l.Until, now)
}

// NewLockout builds a Lockout starting at now for the given duration.
func NewLockout(now time.Time, d time.Duration, reason string) Lockout {
	return Lockout{Until: now.Add(d), Reason: reason}
}

// ParseLockoutDuration extracts the lockout duration from a locked-response
// message. Unparseable messages fall back to DefaultLockoutDuration.
func ParseLockoutDuration(message string) time.Duration {
	m := lockoutDurationPattern.FindStringSubmatch(message)
	if m == nil {
		return DefaultLockoutDuration
	}
	minutes := 0
	for _, r := range m[1] {
		minutes = minutes*10 + int(r-'0')
	}
	if minutes <= 0 {
		return DefaultLockoutDuration
	}
	return time.Duration(minutes) * time.Minute
}
