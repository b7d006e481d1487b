package cron

import (
	"time"

	"menlo.ai/analytics-gateway/config/environment_variables"
)

type Config struct {
	// Schedule is the crontab expression of the staleness check.
	Schedule string
	// LockTTL bounds the scheduler lock; it only has to outlive one scan.
	LockTTL time.Duration
	// GlobalWarmLockTTL bounds the warming-in-progress lock and the
	// background warm it guards.
	GlobalWarmLockTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		Schedule:          "*/5 * * * *",
		LockTTL:           time.Minute,
		GlobalWarmLockTTL: 45 * time.Minute,
	}
}

func ConfigFromEnvironment() Config {
	cfg := DefaultConfig()
	env := environment_variables.EnvironmentVariables
	if env.CACHE_SCHEDULER_CRON != "" {
		cfg.Schedule = env.CACHE_SCHEDULER_CRON
	}
	if env.CACHE_SCHEDULER_LOCK_TTL > 0 {
		cfg.LockTTL = env.CACHE_SCHEDULER_LOCK_TTL
	}
	if env.CACHE_GLOBAL_WARM_LOCK_TTL > 0 {
		cfg.GlobalWarmLockTTL = env.CACHE_GLOBAL_WARM_LOCK_TTL
	}
	return cfg
}
