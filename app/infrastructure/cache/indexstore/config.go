package indexstore

import (
	"time"

	"menlo.ai/analytics-gateway/config/environment_variables"
)

type Config struct {
	// MaxEntryBytes is the serialized size ceiling of one cache entry.
	MaxEntryBytes int
	// PipelineBatchSize is how many entries go into one pipelined write.
	PipelineBatchSize int
	// MaxKeysPerFetch bounds the keys of a single MGET.
	MaxKeysPerFetch int
	// TempKeyTTL is the absolute expiry of union/intersection scratch sets.
	TempKeyTTL time.Duration
	// InvalidateBatchSize bounds the keys of a single UNLINK during invalidation.
	InvalidateBatchSize int
}

func DefaultConfig() Config {
	return Config{
		MaxEntryBytes:       8 << 20,
		PipelineBatchSize:   500,
		MaxKeysPerFetch:     1000,
		TempKeyTTL:          30 * time.Second,
		InvalidateBatchSize: 1000,
	}
}

func ConfigFromEnvironment() Config {
	cfg := DefaultConfig()
	env := environment_variables.EnvironmentVariables
	if env.CACHE_MAX_ENTRY_BYTES > 0 {
		cfg.MaxEntryBytes = env.CACHE_MAX_ENTRY_BYTES
	}
	if env.CACHE_PIPELINE_BATCH_SIZE > 0 {
		cfg.PipelineBatchSize = env.CACHE_PIPELINE_BATCH_SIZE
	}
	if env.CACHE_MGET_BATCH_SIZE > 0 {
		cfg.MaxKeysPerFetch = env.CACHE_MGET_BATCH_SIZE
	}
	if env.CACHE_TEMP_KEY_TTL > 0 {
		cfg.TempKeyTTL = env.CACHE_TEMP_KEY_TTL
	}
	return cfg
}
