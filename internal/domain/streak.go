package domain

import "time"

// ComputeStreak maps the previous workout date and today's date to the new
// streak count. Comparison is by UTC calendar date only; hours never matter.
//
// A second settlement on the same calendar day returns 1 rather than holding
// the current streak. That matches the original product behavior and is kept
// deliberately; a fix is a one-branch change here plus a flipped test.
func ComputeStreak(lastWorkoutDate *time.Time, today time.Time, currentStreak int) int {
	day := DateOf(today)

	if lastWorkoutDate == nil {
		return 1
	}

	switch last := DateOf(*lastWorkoutDate); {
	case last.Equal(day):
		// First workout of the day already ran the streak update.
		return 1
	case last.Equal(day.AddDate(0, 0, -1)):
		return currentStreak + 1
	default:
		// Gap of two or more days, or a future date from clock skew.
		return 1
	}
}

// DateOf truncates a timestamp to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
