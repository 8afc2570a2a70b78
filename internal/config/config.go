// Package config loads DriftQ configuration from defaults, an optional
// JSON file, and DRIFTQ_* environment overrides, in that order.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rzbill/driftq/internal/retry"
)

// Backend names accepted in Config.Backend.
const (
	BackendRedis  = "redis"
	BackendPebble = "pebble"
)

// Config is the top-level configuration.
type Config struct {
	// Backend selects the ordered-set store: "redis" or "pebble".
	Backend string `json:"backend"`
	// DataDir is the Pebble database directory (pebble backend only).
	DataDir string `json:"dataDir"`
	Redis   Redis  `json:"redis"`
	HTTP    HTTP   `json:"http"`
	Poll    Poll   `json:"poll"`
	Log     Log    `json:"log"`
}

// Redis holds connection settings for the redis backend.
type Redis struct {
	Addr      string `json:"addr"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	KeyPrefix string `json:"keyPrefix"`
}

// HTTP holds the serving surface settings.
type HTTP struct {
	Addr string `json:"addr"`
}

// Poll holds the poll-loop and retry settings.
type Poll struct {
	IntervalMs  int `json:"intervalMs"`
	MaxAttempts int `json:"maxAttempts"`
	// Backoff is "fixed", "linear" or "exponential".
	Backoff       string `json:"backoff"`
	BackoffBaseMs int    `json:"backoffBaseMs"`
	BackoffCapMs  int    `json:"backoffCapMs"`
}

// Log holds logging settings.
type Log struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Default returns built-in defaults: the embedded pebble backend, a 500ms
// poll, 3 attempts with exponential backoff from 1s capped at 1m.
func Default() Config {
	return Config{
		Backend: BackendPebble,
		DataDir: DefaultDataDir(),
		Redis: Redis{
			Addr:      "127.0.0.1:6379",
			KeyPrefix: "driftq",
		},
		HTTP: HTTP{Addr: ":8080"},
		Poll: Poll{
			IntervalMs:    500,
			MaxAttempts:   3,
			Backoff:       "exponential",
			BackoffBaseMs: 1000,
			BackoffCapMs:  60_000,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON file over the defaults. An empty
// path returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the rest of the system cannot honor.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendRedis, BackendPebble:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	switch c.Poll.Backoff {
	case "fixed", "linear", "exponential", "":
	default:
		return fmt.Errorf("config: unknown backoff %q", c.Poll.Backoff)
	}
	return nil
}

// Interval returns the poll interval as a duration.
func (p Poll) Interval() time.Duration {
	if p.IntervalMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(p.IntervalMs) * time.Millisecond
}

// Policy builds the retry policy described by the poll settings.
func (p Poll) Policy() retry.Policy {
	base := time.Duration(p.BackoffBaseMs) * time.Millisecond
	cap := time.Duration(p.BackoffCapMs) * time.Millisecond
	var f retry.BackoffFunc
	switch p.Backoff {
	case "linear":
		f = retry.Linear(base, cap)
	case "fixed":
		f = retry.Fixed(base)
	default:
		f = retry.Exponential(base, cap)
	}
	return retry.Policy{MaxAttempts: p.MaxAttempts, Backoff: f}
}
