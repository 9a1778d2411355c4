package models

import (
	"fmt"
	"strings"
	"time"
)

// TimePeriod is the lookback window of a trending query.
type TimePeriod int

const (
	Daily TimePeriod = iota
	Weekly
	Monthly
)

// String implements fmt.Stringer.
func (p TimePeriod) String() string {
	switch p {
	case Daily:
		return "daily"
	case Monthly:
		return "monthly"
	default:
		return "weekly"
	}
}

// Days returns the lookback length; unknown periods count as a week.
func (p TimePeriod) Days() int {
	switch p {
	case Daily:
		return 1
	case Monthly:
		return 30
	default:
		return 7
	}
}

// Cutoff returns the oldest instant still inside the window ending at now.
func (p TimePeriod) Cutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -p.Days())
}

// ParseTimePeriod accepts names ("weekly") and the numeric form the frontend sends ("1").
// An empty string yields Weekly.
func ParseTimePeriod(s string) (TimePeriod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "daily", "day":
		return Daily, nil
	case "", "1", "weekly", "week":
		return Weekly, nil
	case "2", "monthly", "month":
		return Monthly, nil
	default:
		return Weekly, fmt.Errorf("unknown time period %q", s)
	}
}
