package attempt

import "time"

// Leitner review intervals in days, indexed by new box level (1-based).
// Box 1 reviews immediately, box 7 after a month.
var leitnerIntervals = [...]int{0, 1, 2, 4, 7, 14, 30}

const (
	// MinBoxLevel and MaxBoxLevel bound the Leitner ladder.
	MinBoxLevel = 1
	MaxBoxLevel = 7
)

// IntervalFor returns the review interval for a box level. Out-of-range
// levels clamp to the ladder bounds.
func IntervalFor(boxLevel int) time.Duration {
	if boxLevel < MinBoxLevel {
		boxLevel = MinBoxLevel
	}
	if boxLevel > MaxBoxLevel {
		boxLevel = MaxBoxLevel
	}
	return time.Duration(leitnerIntervals[boxLevel-1]) * 24 * time.Hour
}

// NextBoxLevel applies the Leitner rule: success promotes, failure demotes,
// both saturating at the ladder bounds.
func NextBoxLevel(current int, success bool) int {
	if current < MinBoxLevel {
		current = MinBoxLevel
	}
	if current > MaxBoxLevel {
		current = MaxBoxLevel
	}
	if success {
		if current < MaxBoxLevel {
			return current + 1
		}
		return MaxBoxLevel
	}
	if current > MinBoxLevel {
		return current - 1
	}
	return MinBoxLevel
}

// RecentlyAttempted reports whether a problem's last attempt is fresh enough
// to defer review. The relaxed window is half the box interval; the strict
// window is the full interval. The scheduler uses relaxed.
func RecentlyAttempted(lastAttempt *time.Time, boxLevel int, relaxed bool, now time.Time) bool {
	if lastAttempt == nil {
		return false
	}
	window := IntervalFor(boxLevel)
	if relaxed {
		window /= 2
	}
	return now.Sub(*lastAttempt) < window
}
