package utils

import (
	"fmt"
	"time"
)

// EarlyStartWindow is how long before the scheduled time a session may start
const EarlyStartWindow = 10 * time.Minute

// ValidateStartWindow reports whether a consultation scheduled at
// scheduledAt and lasting duration may be started at now.
// The message explains a refusal and is empty when allowed.
func ValidateStartWindow(scheduledAt time.Time, duration time.Duration, now time.Time) (bool, string) {
	opensAt := scheduledAt.Add(-EarlyStartWindow)
	closesAt := scheduledAt.Add(duration)

	if now.Before(opensAt) {
		wait := opensAt.Sub(now).Round(time.Minute)
		return false, fmt.Sprintf("session can be started %s before the scheduled time; try again in %s",
			EarlyStartWindow, wait)
	}
	if now.After(closesAt) {
		return false, "session window has already closed"
	}
	return true, ""
}
