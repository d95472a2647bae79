package scheduler

import (
	"time"

	"github.com/smallbiznis/petroprice/internal/config"
)

// Config controls the scheduler tick, job cadences and batch sizes.
type Config struct {
	RunInterval       time.Duration
	JobTimeout        time.Duration
	JournalRetryBatch int
	EnabledJobs       []string
	// Every overrides the cadence of a named job.
	Every map[string]time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval:       time.Minute,
		JobTimeout:        2 * time.Minute,
		JournalRetryBatch: 100,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval: cfg.Scheduler.RunInterval,
		EnabledJobs: cfg.Scheduler.EnabledJobs,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.JournalRetryBatch <= 0 {
		c.JournalRetryBatch = defaults.JournalRetryBatch
	}
	return c
}

// every returns the cadence for job, falling back to def.
func (c Config) every(job string, def time.Duration) time.Duration {
	if d, ok := c.Every[job]; ok && d > 0 {
		return d
	}
	return def
}
