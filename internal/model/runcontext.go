package model

import (
	"time"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// Date returns the civil date y-m-d as UTC midnight.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf truncates t to its civil date (in t's own location) and returns it as UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

// FormatDate renders a civil date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// ParseDate parses YYYY-MM-DD into a civil date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(t), nil
}

// DaysBetween returns the number of whole days from a to b (negative when b is before a).
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}

// RunContext is the explicit per-run context handed to every component call.
type RunContext struct {
	RunID    uuid.UUID
	TenantID string
	JobName  string
	AsOfDate time.Time
}

// NewRunContext creates a RunContext with a fresh run ID and a normalized as-of date.
func NewRunContext(tenantID, jobName string, asOf time.Time) RunContext {
	return RunContext{
		RunID:    uuid.New(),
		TenantID: tenantID,
		JobName:  jobName,
		AsOfDate: DateOf(asOf),
	}
}

// PostingReference is the idempotency key of a job's posting for the run's as-of date.
func (rc RunContext) PostingReference() string {
	return rc.JobName + ":" + FormatDate(rc.AsOfDate)
}
