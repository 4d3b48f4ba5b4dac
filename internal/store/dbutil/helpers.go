// Package dbutil holds small helpers shared by the Postgres and SQLite
// State Store drivers: nullable-time conversion and the UTC clock. Adapted from the teacher's internal/store/pg/helpers.go
// nilStr/nilTime pattern.
package dbutil

import "time"

// NilTime returns nil if t is the zero time, else a pointer to t — the
// nullable-column convention used throughout both store drivers (started_at/
// finished_at/error_message are all nullable per spec.md §3).
func NilTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// DerefTime dereferences t, returning the zero time if t is nil.
func DerefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// NowUTC returns the current time converted to UTC, the timestamp basis
// for every created_at/started_at/finished_at the store drivers write.
func NowUTC() time.Time {
	return time.Now().UTC()
}
