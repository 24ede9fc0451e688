package core

import (
	"fmt"
	"time"
)

// MonthKey identifies a calendar month as YYYY-MM. The string form orders
// chronologically under plain comparison.
type MonthKey string

// MonthOf extracts the month key from an ISO calendar date (YYYY-MM-DD).
func MonthOf(date string) MonthKey {
	if len(date) < 7 {
		return MonthKey(date)
	}
	return MonthKey(date[:7])
}

// MonthOfTime returns the month key for a point in time.
func MonthOfTime(t time.Time) MonthKey {
	return MonthKey(t.Format("2006-01"))
}

// Valid reports whether m parses as YYYY-MM.
func (m MonthKey) Valid() bool {
	_, err := time.Parse("2006-01", string(m))
	return err == nil
}

// MinMonth returns the earlier of two month keys.
func MinMonth(a, b MonthKey) MonthKey {
	if b < a {
		return b
	}
	return a
}

// MonthsBetween enumerates month keys from start to end inclusive, ascending,
// wrapping month 12 into January of the next year. The result is empty when
// start > end; callers clamp start to the minimum of their candidates.
func MonthsBetween(start, end MonthKey) []MonthKey {
	var (
		ys, ms int
		ye, me int
	)
	if _, err := fmt.Sscanf(string(start), "%d-%d", &ys, &ms); err != nil {
		return nil
	}
	if _, err := fmt.Sscanf(string(end), "%d-%d", &ye, &me); err != nil {
		return nil
	}

	var out []MonthKey
	for ys < ye || (ys == ye && ms <= me) {
		out = append(out, MonthKey(fmt.Sprintf("%04d-%02d", ys, ms)))
		ms++
		if ms > 12 {
			ms = 1
			ys++
		}
	}
	return out
}
