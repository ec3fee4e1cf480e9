package batch

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// State is a run's position in INIT -> PAGING -> PROCESSING_ITEM* -> DONE | FAILED.
type State string

const (
	StateInit           State = "INIT"
	StatePaging         State = "PAGING"
	StateProcessingItem State = "PROCESSING_ITEM"
	StateDone           State = "DONE"
	StateFailed         State = "FAILED"
)

// DefaultMaxReportedFailures bounds the entries listed in a JobAggregateFailure message.
const DefaultMaxReportedFailures = 100

// ItemFailure records why one account could not be processed.
type ItemFailure struct {
	AccountID int64
	Err       error
}

func (f *ItemFailure) Error() string {
	return fmt.Sprintf("account %d: %v", f.AccountID, f.Err)
}

func (f *ItemFailure) Unwrap() error { return f.Err }

// ItemResult is the tagged result of processing one account.
type ItemResult struct {
	AccountID int64
	Failure   *ItemFailure
}

// OK reports whether the item succeeded.
func (r ItemResult) OK() bool { return r.Failure == nil }

// Outcome accumulates the result of one run. Failures are sorted by account ID once the run ends.
type Outcome struct {
	RunID     uuid.UUID
	JobName   string
	State     State
	Pages     int
	Processed int
	Succeeded int
	Failures  []*ItemFailure

	maxReported int
}

func (o *Outcome) fold(results []ItemResult) {
	for _, r := range results {
		o.Processed++
		if r.OK() {
			o.Succeeded++
			continue
		}
		o.Failures = append(o.Failures, r.Failure)
	}
}

// Err returns a *JobAggregateFailure when any item failed, nil otherwise.
func (o *Outcome) Err() error {
	if len(o.Failures) == 0 {
		return nil
	}
	return &JobAggregateFailure{
		JobName:     o.JobName,
		RunID:       o.RunID,
		Failures:    o.Failures,
		MaxReported: o.maxReported,
	}
}

// JobAggregateFailure reports every item failure of a run as a single job-level error.
type JobAggregateFailure struct {
	JobName  string
	RunID    uuid.UUID
	Failures []*ItemFailure
	// MaxReported caps the listed entries; the rest are elided as "+N more". Zero lists all.
	MaxReported int
}

// Banner is the first line of the error message.
func (e *JobAggregateFailure) Banner() string {
	return fmt.Sprintf("Job %s failed (run %s): one or more steps in the job failed", e.JobName, e.RunID)
}

func (e *JobAggregateFailure) Error() string {
	var b strings.Builder
	b.WriteString(e.Banner())
	listed := e.Failures
	if e.MaxReported > 0 && len(listed) > e.MaxReported {
		listed = listed[:e.MaxReported]
	}
	for _, f := range listed {
		b.WriteByte('\n')
		b.WriteString(f.Error())
	}
	if n := len(e.Failures) - len(listed); n > 0 {
		fmt.Fprintf(&b, "\n+%d more", n)
	}
	return b.String()
}

func (e *JobAggregateFailure) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}
