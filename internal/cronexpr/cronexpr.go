// Package cronexpr validates and evaluates the 6-field cron expressions
// (sec min hour day month weekday) the orchestrator accepts, plus the
// "@manual" sentinel. Adapted from the teacher's cron schedule handling in
// cron.Service.computeNextRun/validateSchedule, narrowed to the "cron"
// branch only: this package has no notion of "at"/"every" one-shot or
// interval schedules, since JobDefinition.schedule is always either
// @manual or a cron expression (spec.md §3).
package cronexpr

import (
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

// IsManual reports whether schedule is the @manual sentinel.
func IsManual(schedule string) bool {
	return schedule == "@manual"
}

// fieldCount returns the number of whitespace-separated fields in expr.
func fieldCount(expr string) int {
	return len(strings.Fields(expr))
}

// Validate checks that schedule is either "@manual" or a syntactically
// valid 6-field cron expression. A 5-field (no-seconds) expression is
// rejected explicitly, per the Open Question resolution in SPEC_FULL.md §9
// — gronx itself accepts both 5 and 6 field forms, so the field count is
// checked here rather than relying on gronx's own validity check alone.
func Validate(schedule string) error {
	if IsManual(schedule) {
		return nil
	}
	if n := fieldCount(schedule); n != 6 {
		return &invalidScheduleError{schedule: schedule, reason: "cron expression must have exactly 6 fields (sec min hour day month weekday), got " + strconv.Itoa(n)}
	}
	gx := gronx.New()
	if !gx.IsValid(schedule) {
		return &invalidScheduleError{schedule: schedule, reason: "not a valid cron expression"}
	}
	return nil
}

// NextAfter returns the next firing instant strictly after `after`, or
// the zero time and false if the expression never fires (schedule is
// @manual, or malformed — callers should Validate before relying on this).
func NextAfter(schedule string, after time.Time) (time.Time, bool) {
	if IsManual(schedule) {
		return time.Time{}, false
	}
	next, err := gronx.NextTickAfter(schedule, after, false)
	if err != nil {
		return time.Time{}, false
	}
	return next, true
}

// DueInWindow reports whether schedule has at least one firing instant in
// the half-open window (after, upTo]. This is the Scheduler's per-tick due
// check (spec.md §4.3): "the next scheduled firing after T_last_tick is
// <= T_now". Only the *existence* of a firing in the window matters —
// multiple firings within one tick still enqueue at most one run, per the
// explicit per-tick dedup the Scheduler applies above this function.
func DueInWindow(schedule string, after, upTo time.Time) bool {
	next, ok := NextAfter(schedule, after)
	if !ok {
		return false
	}
	return !next.After(upTo)
}

type invalidScheduleError struct {
	schedule string
	reason   string
}

func (e *invalidScheduleError) Error() string {
	return "invalid schedule " + quote(e.schedule) + ": " + e.reason
}

func quote(s string) string { return "\"" + s + "\"" }
