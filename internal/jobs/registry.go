// Package jobs registers the batch jobs and runs them on behalf of the scheduler.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/corebank-dev/corebatch/internal/batch"
	"github.com/corebank-dev/corebatch/internal/joblog"
	"github.com/corebank-dev/corebatch/internal/lease"
	"github.com/corebank-dev/corebatch/internal/metrics"
	"github.com/corebank-dev/corebatch/internal/model"
	"github.com/corebank-dev/corebatch/internal/notify"
)

// DefaultLeaseTTL bounds how long a crashed runner can block a job. Live runs renew
// their lease, so a run may last longer than this.
const DefaultLeaseTTL = 2 * time.Hour

// JobResult is the single result a trigger receives for a run.
type JobResult struct {
	Success bool
	Message string
}

// Options configures a Registry. Zero values select in-process defaults.
type Options struct {
	TenantID  string
	Location  *time.Location
	Lease     lease.Locker
	LeaseTTL  time.Duration
	JobLog    *joblog.Log
	Publisher notify.Publisher
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// Registry runs registered jobs, recording each run in the job log, metrics and
// outcome stream.
type Registry struct {
	runner *batch.Runner
	jobs   map[string]batch.Job
	opts   Options
	now    func() time.Time
}

// NewRegistry creates a Registry running jobs on runner.
func NewRegistry(runner *batch.Runner, opts Options) *Registry {
	if opts.TenantID == "" {
		opts.TenantID = "default"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Lease == nil {
		opts.Lease = lease.NewLocal()
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = DefaultLeaseTTL
	}
	if opts.Publisher == nil {
		opts.Publisher = notify.Nop{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Registry{runner: runner, jobs: make(map[string]batch.Job), opts: opts, now: time.Now}
}

// Register adds jobs, replacing any with the same name.
func (r *Registry) Register(jobs ...batch.Job) {
	for _, j := range jobs {
		r.jobs[j.Name()] = j
	}
}

// Names returns the registered job names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// AsOfDate returns today's date in the tenant's time zone.
func (r *Registry) AsOfDate() time.Time {
	return model.DateOf(r.now().In(r.opts.Location))
}

// RunJob runs the named job as of the tenant's current date.
func (r *Registry) RunJob(ctx context.Context, name string) JobResult {
	return r.RunJobAt(ctx, name, r.AsOfDate())
}

// RunJobAt runs the named job as of asOf. Any item failure fails the run, and the message
// carries every failure.
func (r *Registry) RunJobAt(ctx context.Context, name string, asOf time.Time) JobResult {
	job, ok := r.jobs[name]
	if !ok {
		return JobResult{Message: fmt.Sprintf("unknown job %q", name)}
	}
	rc := model.NewRunContext(r.opts.TenantID, name, asOf)
	log := r.opts.Logger.With(zap.String("job", name), zap.Stringer("run_id", rc.RunID))

	if e, ok := job.(interface{ Enabled() bool }); ok && !e.Enabled() {
		msg := fmt.Sprintf("Job %s skipped: disabled by configuration", name)
		r.opts.Metrics.RecordSkipped(name)
		r.record(ctx, rc, joblog.OutcomeSkipped, nil, msg, log)
		return JobResult{Success: true, Message: msg}
	}

	held, err := r.opts.Lease.Acquire(ctx, r.opts.TenantID+":"+name, r.opts.LeaseTTL)
	if errors.Is(err, lease.ErrHeld) {
		msg := fmt.Sprintf("Job %s skipped: already running on another instance", name)
		log.Info("job skipped, lease held")
		r.opts.Metrics.RecordSkipped(name)
		r.record(ctx, rc, joblog.OutcomeSkipped, nil, msg, log)
		return JobResult{Success: true, Message: msg}
	}
	if err != nil {
		msg := fmt.Sprintf("Job %s failed (run %s): %v", name, rc.RunID, err)
		r.record(ctx, rc, joblog.OutcomeFailed, nil, msg, log)
		return JobResult{Message: msg}
	}
	stop := r.keepAlive(ctx, held, log)
	defer func() {
		stop()
		if err := held.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("releasing job lease", zap.Error(err))
		}
	}()

	start := r.now()
	out, err := r.runner.Run(ctx, rc, job)
	elapsed := r.now().Sub(start)

	var res JobResult
	switch {
	case err != nil:
		res.Message = fmt.Sprintf("Job %s failed (run %s): %v", name, rc.RunID, err)
		if out != nil && out.Err() != nil {
			res.Message += "\n" + out.Err().Error()
		}
	case out.Err() != nil:
		res.Message = out.Err().Error()
	default:
		res.Success = true
		res.Message = fmt.Sprintf("Job %s completed (run %s): %d accounts processed", name, rc.RunID, out.Processed)
	}

	r.opts.Metrics.RecordRun(name, res.Success, elapsed)
	outcome := joblog.OutcomeSuccess
	if !res.Success {
		outcome = joblog.OutcomeFailed
	}
	r.record(ctx, rc, outcome, out, res.Message, log)
	return res
}

// keepAlive renews the lease every third of its ttl until the returned func is called.
// A failed renewal is logged and the run carries on; ErrLost means another runner may
// already be starting the same job.
func (r *Registry) keepAlive(ctx context.Context, held lease.Lease, log *zap.Logger) func() {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		every := r.opts.LeaseTTL / 3
		if every <= 0 {
			every = r.opts.LeaseTTL
		}
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := held.Renew(ctx, r.opts.LeaseTTL); err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Warn("renewing job lease", zap.Error(err))
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// record writes the run to the job log and the outcome stream. Their failures are logged
// and never change the run's result.
func (r *Registry) record(ctx context.Context, rc model.RunContext, outcome string, out *batch.Outcome, msg string, log *zap.Logger) {
	entry := joblog.Entry{
		Timestamp: r.now().UTC(),
		Job:       rc.JobName,
		RunID:     rc.RunID.String(),
		TenantID:  rc.TenantID,
		AsOfDate:  model.FormatDate(rc.AsOfDate),
		Outcome:   outcome,
		Message:   msg,
	}
	if out != nil {
		entry.Processed = out.Processed
		entry.Failures = len(out.Failures)
	}

	if r.opts.JobLog != nil {
		if err := r.opts.JobLog.Append(entry); err != nil {
			log.Error("writing job log", zap.Error(err))
		}
	}

	ev := notify.JobOutcome{
		RunID:      entry.RunID,
		Job:        entry.Job,
		TenantID:   entry.TenantID,
		AsOfDate:   entry.AsOfDate,
		Success:    outcome != joblog.OutcomeFailed,
		Processed:  entry.Processed,
		Failures:   entry.Failures,
		Message:    msg,
		FinishedAt: entry.Timestamp,
	}
	if err := r.opts.Publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		log.Error("publishing job outcome", zap.Error(err))
	}
}
