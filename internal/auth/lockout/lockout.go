// Package lockout throttles second-factor verification per principal.
package lockout

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultMaxFailures = 5
	DefaultWindow      = 15 * time.Minute
)

var (
	// ErrLocked means the key has reached its failure budget for the
	// current window.
	ErrLocked = errors.New("lockout: too many failed attempts")

	// ErrUnavailable wraps backend failures. Callers treat it as locked.
	ErrUnavailable = errors.New("lockout: limiter unavailable")
)

// Limiter counts consecutive failures per key inside a fixed window that
// starts at the first failure.
type Limiter interface {
	// Check returns ErrLocked while the key is locked out.
	Check(ctx context.Context, key string) error
	// RecordFailure counts one failure and returns ErrLocked when it
	// exhausts the budget.
	RecordFailure(ctx context.Context, key string) error
	// Reset clears the counter after a success.
	Reset(ctx context.Context, key string) error
}

// Config bounds a limiter. Zero fields fall back to the defaults.
type Config struct {
	MaxFailures int           `env:"MAX_FAILURES" envDefault:"5"`
	Window      time.Duration `env:"LOCKOUT_WINDOW" envDefault:"15m"`
}

func (c Config) withDefaults() Config {
	if c.MaxFailures <= 0 {
		c.MaxFailures = DefaultMaxFailures
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	return c
}
