package scheduler

import (
	"strings"
	"time"

	"github.com/smallbiznis/collabhub/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval time.Duration
	BatchSize   int
	JobTimeout  time.Duration
	LockTTL     time.Duration
	// EnabledJobs restricts which jobs run; empty means all.
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		BatchSize:   50,
		JobTimeout:  30 * time.Second,
		LockTTL:     2 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	var jobs []string
	for _, name := range strings.Split(cfg.SchedulerJobs, ",") {
		if name = strings.TrimSpace(name); name != "" {
			jobs = append(jobs, name)
		}
	}
	return Config{
		RunInterval: cfg.SchedulerInterval,
		EnabledJobs: jobs,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}
