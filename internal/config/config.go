package config

import (
	"time"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
)

// Config is the complete runtime configuration.
type Config struct {
	Log       LogConfig       `koanf:"log"`
	Database  DatabaseConfig  `koanf:"database"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Sync      SyncConfig      `koanf:"sync"`
	Source    ProviderConfig  `koanf:"source"`
	Sink      ProviderConfig  `koanf:"sink"`
	Breaker   BreakerConfig   `koanf:"breaker"`
	Queue     QueueConfig     `koanf:"queue"`
	HTTP      HTTPConfig      `koanf:"http"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=console json"`
}

// DatabaseConfig selects the credential store.
// URL is "memory", a postgres:// DSN, or a SQLite file path. An empty URL
// uses the default SQLite file.
type DatabaseConfig struct {
	URL string `koanf:"url"`
	// SchedulerPath is the SQLite file holding scheduler state when the
	// credential store is not SQLite. Empty uses the default file and
	// "memory" keeps scheduler state in process.
	SchedulerPath string `koanf:"scheduler_path"`
}

// SchedulerConfig configures recurring cycles.
type SchedulerConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Schedule string `koanf:"schedule" validate:"required"`
	// Timezone is an IANA zone name used for cron activations and for
	// computing calendar dates.
	Timezone string `koanf:"timezone" validate:"required"`
}

// SyncConfig tunes the sync engine.
type SyncConfig struct {
	Concurrency  int           `koanf:"concurrency" validate:"min=1,max=64"`
	ImportMonths int           `koanf:"import_months" validate:"min=1,max=120"`
	Pace         time.Duration `koanf:"pace" validate:"min=0"`
}

// ProviderConfig is one OAuth provider's client registration.
type ProviderConfig struct {
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	RedirectURI  string        `koanf:"redirect_uri" validate:"omitempty,url"`
	APIURL       string        `koanf:"api_url" validate:"omitempty,url"`
	Timeout      time.Duration `koanf:"timeout" validate:"min=0"`
}

// BreakerConfig configures the provider circuit breakers.
type BreakerConfig struct {
	MaxRequests  uint32        `koanf:"max_requests" validate:"min=1"`
	Interval     time.Duration `koanf:"interval"`
	Timeout      time.Duration `koanf:"timeout"`
	MinRequests  uint32        `koanf:"min_requests"`
	FailureRatio float64       `koanf:"failure_ratio" validate:"gt=0,lte=1"`
}

// QueueConfig configures the optional job queue.
type QueueConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Backend     string `koanf:"backend" validate:"oneof=memory nats"`
	URL         string `koanf:"url" validate:"required_if=Backend nats"`
	Topic       string `koanf:"topic" validate:"required"`
	Concurrency int    `koanf:"concurrency" validate:"min=1"`
	MaxAttempts int    `koanf:"max_attempts" validate:"min=1"`
}

// HTTPConfig configures the health and metrics listener.
type HTTPConfig struct {
	Listen string `koanf:"listen" validate:"required"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Schedule: domain.DefaultSchedule,
			Timezone: "UTC",
		},
		Sync: SyncConfig{
			Concurrency:  1,
			ImportMonths: domain.DefaultImportMonths,
			Pace:         time.Second,
		},
		Source: ProviderConfig{
			APIURL:  "https://api.fitbit.com",
			Timeout: 30 * time.Second,
		},
		Sink: ProviderConfig{
			Timeout: 30 * time.Second,
		},
		Breaker: BreakerConfig{
			MaxRequests:  1,
			Interval:     time.Minute,
			Timeout:      2 * time.Minute,
			MinRequests:  5,
			FailureRatio: 0.6,
		},
		Queue: QueueConfig{
			Enabled:     false,
			Backend:     "memory",
			Topic:       "sleepsync.jobs",
			Concurrency: 5,
			MaxAttempts: 3,
		},
		HTTP: HTTPConfig{
			Listen: ":9464",
		},
	}
}

// Location returns the configured time zone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SchedulerDomainConfig converts the scheduler section for the scheduler service.
func (c *Config) SchedulerDomainConfig() domain.SchedulerConfig {
	return domain.SchedulerConfig{
		Enabled: c.Scheduler.Enabled,
		TaskConfigs: map[string]domain.TaskConfig{
			domain.TaskIDSleepSync: {
				Enabled:  c.Scheduler.Enabled,
				Schedule: c.Scheduler.Schedule,
			},
		},
		Location: c.Location(),
	}
}
