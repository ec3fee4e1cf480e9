// Package batch pages through account populations and applies a job to every account,
// isolating per-account failures and reporting them as one aggregate.
package batch

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/corebank-dev/corebatch/internal/metrics"
	"github.com/corebank-dev/corebatch/internal/model"
)

const (
	DefaultPageSize = 500
	DefaultWorkers  = 8
)

const tracerName = "github.com/corebank-dev/corebatch/internal/batch"

// AccountSource yields keyset pages of accounts matching a filter.
type AccountSource interface {
	Page(ctx context.Context, req model.PageRequest) (model.Page, error)
}

// Job is the per-account work of one batch job.
type Job interface {
	Name() string
	Filter(rc model.RunContext) model.Filter
	Process(ctx context.Context, rc model.RunContext, a model.Account) error
}

// Runner runs jobs over an AccountSource.
type Runner struct {
	source  AccountSource
	logger  *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	PageSize            int
	Workers             int
	MaxReportedFailures int
}

// NewRunner creates a Runner with default sizing. A nil logger or metrics disables them.
func NewRunner(source AccountSource, logger *zap.Logger, m *metrics.Metrics) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &Runner{
		source:              source,
		logger:              logger,
		metrics:             m,
		tracer:              otel.Tracer(tracerName),
		PageSize:            DefaultPageSize,
		Workers:             DefaultWorkers,
		MaxReportedFailures: DefaultMaxReportedFailures,
	}
}

// SetTracerProvider makes the runner start its spans on tp instead of the global provider.
func (r *Runner) SetTracerProvider(tp trace.TracerProvider) {
	r.tracer = tp.Tracer(tracerName)
}

// Run pages through the job's population and processes every account.
//
// Item failures never stop the run; they end it in StateFailed with Outcome.Err describing
// them. The returned error is non-nil only for fatal failures: a page that could not be read
// or a context cancelled between pages.
func (r *Runner) Run(ctx context.Context, rc model.RunContext, job Job) (*Outcome, error) {
	out := &Outcome{
		RunID:       rc.RunID,
		JobName:     job.Name(),
		State:       StateInit,
		maxReported: r.MaxReportedFailures,
	}
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "batch.run", trace.WithAttributes(
		attribute.String("job", out.JobName),
		attribute.String("run_id", rc.RunID.String()),
		attribute.String("tenant", rc.TenantID),
		attribute.String("as_of", model.FormatDate(rc.AsOfDate)),
	))
	defer span.End()

	log := r.logger.With(
		zap.String("job", out.JobName),
		zap.Stringer("run_id", rc.RunID),
		zap.String("tenant", rc.TenantID),
		zap.String("as_of", model.FormatDate(rc.AsOfDate)),
	)
	log.Info("job started")

	err := r.run(ctx, rc, job, out, log)
	slices.SortFunc(out.Failures, func(a, b *ItemFailure) int {
		switch {
		case a.AccountID < b.AccountID:
			return -1
		case a.AccountID > b.AccountID:
			return 1
		}
		return 0
	})

	span.SetAttributes(
		attribute.Int("pages", out.Pages),
		attribute.Int("processed", out.Processed),
		attribute.Int("failures", len(out.Failures)),
	)
	fields := []zap.Field{
		zap.Int("pages", out.Pages),
		zap.Int("processed", out.Processed),
		zap.Int("failures", len(out.Failures)),
		zap.Duration("elapsed", time.Since(start)),
	}
	switch {
	case err != nil:
		out.State = StateFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, "job aborted")
		log.Error("job aborted", append(fields, zap.Error(err))...)
		return out, err
	case len(out.Failures) > 0:
		out.State = StateFailed
		span.SetStatus(codes.Error, "one or more items failed")
		log.Warn("job finished with failures", fields...)
	default:
		out.State = StateDone
		log.Info("job finished", fields...)
	}
	return out, nil
}

func (r *Runner) run(ctx context.Context, rc model.RunContext, job Job, out *Outcome, log *zap.Logger) error {
	req := model.PageRequest{Filter: job.Filter(rc), Limit: r.pageSize()}
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("job %s stopped after %d pages: %w", out.JobName, out.Pages, err)
		}

		out.State = StatePaging
		page, err := r.fetch(ctx, out.JobName, req)
		if err != nil {
			return fmt.Errorf("job %s reading page after account %d: %w", out.JobName, req.AfterID, err)
		}
		out.Pages++
		log.Debug("page fetched",
			zap.Int64("after_id", req.AfterID),
			zap.Int("items", len(page.Items)),
			zap.Int("total_filtered", page.TotalFilteredRecords),
			zap.Bool("has_more", page.HasMore))

		if len(page.Items) > 0 {
			out.State = StateProcessingItem
			out.fold(r.processPage(ctx, rc, job, page.Items, log))
		}
		if !page.HasMore {
			return nil
		}
		req.AfterID = page.LastID(req.AfterID)
	}
}

func (r *Runner) fetch(ctx context.Context, jobName string, req model.PageRequest) (model.Page, error) {
	ctx, span := r.tracer.Start(ctx, "batch.page", trace.WithAttributes(attribute.Int64("after_id", req.AfterID)))
	defer span.End()

	page, err := r.source.Page(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "page fetch failed")
		return model.Page{}, model.StoreError("reading account page", err)
	}
	r.metrics.RecordPage(jobName)
	return page, nil
}

// processPage runs the job over one page on at most Workers goroutines. In-flight items
// are not cancelled with the run's context.
func (r *Runner) processPage(ctx context.Context, rc model.RunContext, job Job, items []model.Account, log *zap.Logger) []ItemResult {
	itemCtx := context.WithoutCancel(ctx)
	results := make([]ItemResult, len(items))

	var g errgroup.Group
	g.SetLimit(r.workers())
	for i, a := range items {
		g.Go(func() error {
			results[i] = r.processItem(itemCtx, rc, job, a, log)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Runner) processItem(ctx context.Context, rc model.RunContext, job Job, a model.Account, log *zap.Logger) (res ItemResult) {
	res.AccountID = a.ID
	defer func() {
		if p := recover(); p != nil {
			log.Error("panic processing account",
				zap.Int64("account_id", a.ID),
				zap.Any("panic", p),
				zap.ByteString("stack", debug.Stack()))
			res.Failure = &ItemFailure{AccountID: a.ID, Err: fmt.Errorf("panic: %v", p)}
			r.metrics.RecordItem(job.Name(), metrics.OutcomeFailed)
		}
	}()

	if err := job.Process(ctx, rc, a); err != nil {
		log.Warn("account failed", zap.Int64("account_id", a.ID), zap.Error(err))
		res.Failure = &ItemFailure{AccountID: a.ID, Err: err}
		r.metrics.RecordItem(job.Name(), metrics.OutcomeFailed)
		return res
	}
	r.metrics.RecordItem(job.Name(), metrics.OutcomeSuccess)
	return res
}

func (r *Runner) pageSize() int {
	if r.PageSize <= 0 {
		return DefaultPageSize
	}
	return r.PageSize
}

func (r *Runner) workers() int {
	if r.Workers <= 0 {
		return 1
	}
	return r.Workers
}
