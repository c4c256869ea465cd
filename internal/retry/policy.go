// Package retry computes backoff delays for reconnecting event sources.
package retry

import (
	"context"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/diffwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/diffwatch/internal/foundation/normalization"
)

// Mode is a backoff growth strategy.
type Mode string

const (
	Fixed       Mode = "fixed"
	Linear      Mode = "linear"
	Exponential Mode = "exponential"
)

var modes = normalization.NewNormalizer(map[string]Mode{
	"fixed":       Fixed,
	"constant":    Fixed,
	"linear":      Linear,
	"exponential": Exponential,
	"exp":         Exponential,
}, "")

// ParseMode maps user input onto a Mode; unknown input returns "".
func ParseMode(raw string) Mode {
	return modes.Normalize(raw)
}

// Policy encapsulates backoff settings. It is immutable after construction.
type Policy struct {
	Mode    Mode
	Initial time.Duration
	Max     time.Duration
	// MaxRetries bounds retries after the first failure. Negative means
	// retry until the context ends.
	MaxRetries int
}

// DefaultPolicy is exponential from 1s capped at 30s, retrying until canceled.
func DefaultPolicy() Policy {
	return Policy{Mode: Exponential, Initial: time.Second, Max: 30 * time.Second, MaxRetries: -1}
}

// NewPolicy builds a policy from raw settings; zero or unknown values fall
// back to DefaultPolicy.
func NewPolicy(mode Mode, initial, maxDelay time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	p.MaxRetries = maxRetries
	if initial > 0 {
		p.Initial = initial
	}
	if maxDelay > 0 {
		p.Max = maxDelay
	}
	switch mode {
	case Fixed, Linear, Exponential:
		p.Mode = mode
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// Delay returns the wait before retry n (1-based).
func (p Policy) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case Fixed:
		return p.Initial
	case Exponential:
		if n > 32 {
			return p.Max
		}
		d = p.Initial << (n - 1)
	default:
		d = time.Duration(n) * p.Initial
	}
	if d <= 0 || d > p.Max {
		return p.Max
	}
	return d
}

// Exhausted reports whether retry n exceeds the budget.
func (p Policy) Exhausted(n int) bool {
	return p.MaxRetries >= 0 && n > p.MaxRetries
}

// Validate reports a policy that cannot be applied.
func (p Policy) Validate() error {
	var problems []string
	if p.Initial <= 0 {
		problems = append(problems, "initial must be > 0")
	}
	if p.Max <= 0 {
		problems = append(problems, "max must be > 0")
	}
	if len(problems) > 0 {
		return ferrors.ConfigError("invalid retry policy").
			WithContext("problems", strings.Join(problems, "; ")).
			Build()
	}
	return nil
}

// Wait sleeps for Delay(n) or until ctx is done.
func (p Policy) Wait(ctx context.Context, n int) error {
	t := time.NewTimer(p.Delay(n))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
