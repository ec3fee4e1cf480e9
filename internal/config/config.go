package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/corebank-dev/corebatch/internal/lifecycle"
	"github.com/corebank-dev/corebatch/internal/logging"
	"github.com/corebank-dev/corebatch/internal/tracing"
)

// FileName is the default config file name.
const FileName = "corebatch.yaml"

// EnvDatabaseDSN overrides database.dsn when set.
const EnvDatabaseDSN = "COREBATCH_DATABASE_DSN"

// Database drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config represents the top-level corebatch.yaml configuration.
type Config struct {
	Tenant   TenantConfig   `yaml:"tenant"`
	Database DatabaseConfig `yaml:"database"`
	Batch    BatchConfig    `yaml:"batch"`
	Interest InterestConfig `yaml:"interest"`
	Dormancy DormancyConfig `yaml:"dormancy"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  logging.Config `yaml:"logging"`
	Tracing  tracing.Config `yaml:"tracing"`
	JobLog   JobLogConfig   `yaml:"job_log"`
}

// TenantConfig identifies the tenant the runner serves.
type TenantConfig struct {
	ID       string `yaml:"id"`
	Timezone string `yaml:"timezone"` // IANA name; the as-of date is today in this zone
}

// DatabaseConfig selects and sizes the account store.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn,omitempty"`
	SeedFile        string        `yaml:"seed_file,omitempty"` // memory driver only
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// BatchConfig sizes the batch runner.
type BatchConfig struct {
	PageSize            int `yaml:"page_size"`
	Workers             int `yaml:"workers"`
	MaxReportedFailures int `yaml:"max_reported_failures"`
}

// InterestConfig configures the interest posting job.
type InterestConfig struct {
	AnnualRate string        `yaml:"annual_rate"`
	Interval   time.Duration `yaml:"interval"`
}

// ThresholdsConfig holds dormancy thresholds in days.
type ThresholdsConfig struct {
	Enabled           bool `yaml:"enabled"`
	InactiveAfterDays int  `yaml:"inactive_after_days"`
	DormantAfterDays  int  `yaml:"dormant_after_days"`
	EscheatAfterDays  int  `yaml:"escheat_after_days"`
}

// ProductThresholds overrides the default thresholds for one savings product.
type ProductThresholds struct {
	ProductID        int64 `yaml:"product_id"`
	ThresholdsConfig `yaml:",inline"`
}

// DormancyConfig configures the dormancy job.
type DormancyConfig struct {
	Default  ThresholdsConfig    `yaml:"default"`
	Products []ProductThresholds `yaml:"products,omitempty"`
	Interval time.Duration       `yaml:"interval"`
}

// RedisConfig enables the cross-instance job lease when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr,omitempty"`
	Password string        `yaml:"password,omitempty"`
	DB       int           `yaml:"db"`
	LeaseTTL time.Duration `yaml:"lease_ttl"`
}

// KafkaConfig enables job outcome events when Brokers is set.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic"`
}

// MetricsConfig sets where serve exposes /metrics.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// JobLogConfig sets where the operator job log is kept.
type JobLogConfig struct {
	Dir string `yaml:"dir"`
}

// Load reads a corebatch.yaml file from disk and applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if dsn := strings.TrimSpace(os.Getenv(EnvDatabaseDSN)); dsn != "" {
		cfg.Database.DSN = dsn
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new deployment.
func Default() *Config {
	return &Config{
		Tenant: TenantConfig{
			ID:       "default",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Driver:          DriverMemory,
			MaxOpenConns:    30,
			MaxIdleConns:    20,
			ConnMaxLifetime: 15 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Batch: BatchConfig{
			PageSize:            500,
			Workers:             8,
			MaxReportedFailures: 100,
		},
		Interest: InterestConfig{
			AnnualRate: "0.02",
			Interval:   24 * time.Hour,
		},
		Dormancy: DormancyConfig{
			Default: ThresholdsConfig{
				Enabled:           true,
				InactiveAfterDays: 365,
				DormantAfterDays:  730,
				EscheatAfterDays:  1825,
			},
			Interval: 24 * time.Hour,
		},
		Redis: RedisConfig{
			LeaseTTL: 2 * time.Hour,
		},
		Kafka: KafkaConfig{
			Topic: "corebatch.job-outcomes",
		},
		Metrics: MetricsConfig{
			Addr: ":9102",
		},
		Logging: logging.Config{
			Level: "info",
		},
		Tracing: tracing.Config{
			ServiceName: "corebatch",
			SampleRatio: 1,
		},
		JobLog: JobLogConfig{
			Dir: "logs",
		},
	}
}

// Validate checks the whole config and reports every problem found.
func (c *Config) Validate() error {
	var errs []error
	if c.Tenant.ID == "" {
		errs = append(errs, errors.New("tenant.id is required"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("database.dsn is required for the postgres driver (or set %s)", EnvDatabaseDSN))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver must be %q or %q, got %q", DriverMemory, DriverPostgres, c.Database.Driver))
	}
	if c.Batch.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("batch.page_size must be positive, got %d", c.Batch.PageSize))
	}
	if c.Batch.Workers <= 0 {
		errs = append(errs, fmt.Errorf("batch.workers must be positive, got %d", c.Batch.Workers))
	}
	if c.Batch.MaxReportedFailures < 0 {
		errs = append(errs, fmt.Errorf("batch.max_reported_failures must not be negative, got %d", c.Batch.MaxReportedFailures))
	}
	if rate, err := c.InterestRate(); err != nil {
		errs = append(errs, err)
	} else if rate.IsNegative() {
		errs = append(errs, fmt.Errorf("interest.annual_rate must not be negative, got %s", rate))
	}
	if err := c.Policy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("dormancy: %w", err))
	}
	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}
	return errors.Join(errs...)
}

// Location loads the tenant time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Tenant.Timezone)
	if err != nil {
		return nil, fmt.Errorf("tenant.timezone %q: %w", c.Tenant.Timezone, err)
	}
	return loc, nil
}

// InterestRate parses interest.annual_rate.
func (c *Config) InterestRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.Interest.AnnualRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("interest.annual_rate %q: %w", c.Interest.AnnualRate, err)
	}
	return rate, nil
}

// Policy converts the dormancy thresholds to a lifecycle policy.
func (c *Config) Policy() lifecycle.Policy {
	p := lifecycle.Policy{Default: c.Dormancy.Default.thresholds()}
	if len(c.Dormancy.Products) > 0 {
		p.Products = make(map[int64]lifecycle.Thresholds, len(c.Dormancy.Products))
		for _, pt := range c.Dormancy.Products {
			p.Products[pt.ProductID] = pt.thresholds()
		}
	}
	return p
}

func (t ThresholdsConfig) thresholds() lifecycle.Thresholds {
	return lifecycle.Thresholds{
		Enabled:           t.Enabled,
		InactiveAfterDays: t.InactiveAfterDays,
		DormantAfterDays:  t.DormantAfterDays,
		EscheatAfterDays:  t.EscheatAfterDays,
	}
}

// Enabled reports whether a Redis lease server is configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// Enabled reports whether outcome events are published.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }
