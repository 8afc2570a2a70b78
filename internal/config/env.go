package config

import (
	"os"
	"strconv"
)

// FromEnv overlays DRIFTQ_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("DRIFTQ_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("DRIFTQ_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("DRIFTQ_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("DRIFTQ_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("DRIFTQ_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
	if v := os.Getenv("DRIFTQ_REDIS_KEY_PREFIX"); v != "" {
		cfg.Redis.KeyPrefix = v
	}
	if v := os.Getenv("DRIFTQ_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("DRIFTQ_POLL_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Poll.IntervalMs = n
		}
	}
	if v := os.Getenv("DRIFTQ_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Poll.MaxAttempts = n
		}
	}
	if v := os.Getenv("DRIFTQ_BACKOFF"); v != "" {
		cfg.Poll.Backoff = v
	}
	if v := os.Getenv("DRIFTQ_BACKOFF_BASE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Poll.BackoffBaseMs = n
		}
	}
	if v := os.Getenv("DRIFTQ_BACKOFF_CAP_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Poll.BackoffCapMs = n
		}
	}
	if v := os.Getenv("DRIFTQ_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("DRIFTQ_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}
