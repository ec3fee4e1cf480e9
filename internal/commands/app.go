package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/corebank-dev/corebatch/internal/accounts"
	"github.com/corebank-dev/corebatch/internal/batch"
	"github.com/corebank-dev/corebatch/internal/buildinfo"
	"github.com/corebank-dev/corebatch/internal/closure"
	"github.com/corebank-dev/corebatch/internal/config"
	"github.com/corebank-dev/corebatch/internal/joblog"
	"github.com/corebank-dev/corebatch/internal/jobs"
	"github.com/corebank-dev/corebatch/internal/lease"
	"github.com/corebank-dev/corebatch/internal/lifecycle"
	"github.com/corebank-dev/corebatch/internal/logging"
	"github.com/corebank-dev/corebatch/internal/metrics"
	"github.com/corebank-dev/corebatch/internal/notify"
	"github.com/corebank-dev/corebatch/internal/posting"
	"github.com/corebank-dev/corebatch/internal/store"
	"github.com/corebank-dev/corebatch/internal/store/memory"
	"github.com/corebank-dev/corebatch/internal/store/postgres"
	"github.com/corebank-dev/corebatch/internal/tracing"
)

// app holds everything a command needs, built from one corebatch.yaml.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    store.Store
	registry *jobs.Registry
	closures *closure.Service
	joblog   *joblog.Log
	closers  []func() error
}

// loadConfig reads and validates the config at path.
func loadConfig(path string) (*config.Config, string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("resolving path: %w", err)
	}
	cfg, err := config.Load(absPath)
	if err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config %s: %w", absPath, err)
	}
	return cfg, filepath.Dir(absPath), nil
}

// newApp wires tracing, the store, lease, publisher and job registry. Metrics register on reg.
func newApp(ctx context.Context, cfgPath string, reg prometheus.Registerer) (_ *app, err error) {
	cfg, dir, err := loadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() error {
		_ = logger.Sync()
		return nil
	})
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	tp, err := tracing.New(ctx, cfg.Tracing, buildinfo.Version)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	a.closers = append(a.closers, func() error {
		return tp.Shutdown(context.Background())
	})

	a.store, err = openStore(ctx, cfg, dir)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.store.Close)
	a.closures = closure.NewService(a.store)

	opts := jobs.Options{
		TenantID: cfg.Tenant.ID,
		LeaseTTL: cfg.Redis.LeaseTTL,
		Metrics:  metrics.New(reg),
		Logger:   logger,
	}
	if opts.Location, err = cfg.Location(); err != nil {
		return nil, err
	}
	if cfg.JobLog.Dir != "" {
		a.joblog = joblog.New(resolvePath(dir, cfg.JobLog.Dir))
		opts.JobLog = a.joblog
	}
	if cfg.Redis.Enabled() {
		r, err := lease.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, r.Close)
		opts.Lease = r
	}
	if cfg.Kafka.Enabled() {
		k := notify.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		a.closers = append(a.closers, k.Close)
		opts.Publisher = k
	}

	runner := batch.NewRunner(a.store, logger, opts.Metrics)
	runner.SetTracerProvider(tp)
	runner.PageSize = cfg.Batch.PageSize
	runner.Workers = cfg.Batch.Workers
	runner.MaxReportedFailures = cfg.Batch.MaxReportedFailures

	rate, err := cfg.InterestRate()
	if err != nil {
		return nil, err
	}
	policy := cfg.Policy()
	a.registry = jobs.NewRegistry(runner, opts)
	a.registry.Register(
		jobs.NewPostInterestJob(posting.NewPoster(a.store), rate),
		jobs.NewDormancyJob(lifecycle.NewService(lifecycle.NewMachine(policy), a.store), policy),
	)
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config, dir string) (store.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.Database.DSN, postgres.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		})
	default:
		s := memory.New()
		if cfg.Database.SeedFile != "" {
			seed, err := accounts.Load(resolvePath(dir, cfg.Database.SeedFile))
			if err != nil {
				return nil, err
			}
			s.Put(seed...)
		}
		return s, nil
	}
}

// resolvePath makes paths in the config relative to the config file's directory.
func resolvePath(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
