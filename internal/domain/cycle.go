package domain

import "time"

// CycleStats holds statistics about one poll cycle.
type CycleStats struct {
	Fetched     int
	Skipped     int
	Forwarded   int
	Classified  int
	Significant int
	Notified    int
	Errors      int
	Duration    time.Duration
}
