package warming

import (
	"time"

	"menlo.ai/analytics-gateway/config/environment_variables"
)

type Config struct {
	// DataTTL is the lifetime of entries, indexes and warm metadata.
	DataTTL time.Duration
	// StalenessThreshold is the age after which a warm cache is still served
	// but refreshed in the background.
	StalenessThreshold time.Duration
	LockTTL            time.Duration
	WarmTimeout        time.Duration
	Concurrency        int
	AutoWarmCooldown   time.Duration
	MaxTableRows       int
	AutoWarmDisabled   bool
}

func DefaultConfig() Config {
	return Config{
		DataTTL:            48 * time.Hour,
		StalenessThreshold: 4 * time.Hour,
		LockTTL:            30 * time.Minute,
		WarmTimeout:        25 * time.Minute,
		Concurrency:        2,
		AutoWarmCooldown:   5 * time.Minute,
		MaxTableRows:       100_000,
	}
}

func ConfigFromEnvironment() Config {
	cfg := DefaultConfig()
	env := environment_variables.EnvironmentVariables
	if env.CACHE_DATA_TTL > 0 {
		cfg.DataTTL = env.CACHE_DATA_TTL
	}
	if env.CACHE_STALENESS_THRESHOLD > 0 {
		cfg.StalenessThreshold = env.CACHE_STALENESS_THRESHOLD
	}
	if env.CACHE_WARM_LOCK_TTL > 0 {
		cfg.LockTTL = env.CACHE_WARM_LOCK_TTL
	}
	if env.CACHE_WARM_TIMEOUT > 0 {
		cfg.WarmTimeout = env.CACHE_WARM_TIMEOUT
	}
	if env.CACHE_WARM_CONCURRENCY > 0 {
		cfg.Concurrency = env.CACHE_WARM_CONCURRENCY
	}
	if env.CACHE_AUTO_WARM_COOLDOWN > 0 {
		cfg.AutoWarmCooldown = env.CACHE_AUTO_WARM_COOLDOWN
	}
	if env.CACHE_MAX_TABLE_ROWS > 0 {
		cfg.MaxTableRows = env.CACHE_MAX_TABLE_ROWS
	}
	cfg.AutoWarmDisabled = env.CACHE_AUTO_WARM_DISABLED
	return cfg
}
