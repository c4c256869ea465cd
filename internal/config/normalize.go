package config

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/diffwatch/internal/reconcile"
	"git.home.luguber.info/inful/diffwatch/internal/retry"
)

// NormalizationResult records coercions made while normalizing.
type NormalizationResult struct {
	Warnings []string
}

// Normalize canonicalizes enumerations in place. Unknown values that have a
// safe fallback are reset and reported; unknown source types and policies are
// left for Validate to reject.
func Normalize(c *Config) *NormalizationResult {
	res := &NormalizationResult{}

	if raw := strings.TrimSpace(string(c.Source.Type)); raw != "" {
		if st := NormalizeSourceType(raw); st != "" {
			res.changed("source.type", c.Source.Type, st)
			c.Source.Type = st
		}
	}

	if raw := strings.TrimSpace(c.Source.Retry.Backoff); raw != "" {
		if m := retry.ParseMode(raw); m != "" {
			res.changed("source.retry.backoff", c.Source.Retry.Backoff, m)
			c.Source.Retry.Backoff = string(m)
		} else {
			res.unknown("source.retry.backoff", raw, string(retry.DefaultPolicy().Mode))
			c.Source.Retry.Backoff = string(retry.DefaultPolicy().Mode)
		}
	}

	if raw := strings.TrimSpace(c.Reconcile.DuplicateWrites); raw != "" {
		if p, err := reconcile.ParsePolicy(raw); err == nil {
			res.changed("reconcile.duplicate_writes", c.Reconcile.DuplicateWrites, p)
			c.Reconcile.DuplicateWrites = string(p)
		}
	}

	logging := &c.Monitoring.Logging
	if raw := strings.TrimSpace(string(logging.Level)); raw != "" {
		if lvl := NormalizeLogLevel(raw); lvl != "" {
			res.changed("monitoring.logging.level", logging.Level, lvl)
			logging.Level = lvl
		} else {
			res.unknown("monitoring.logging.level", raw, string(LogLevelInfo))
			logging.Level = LogLevelInfo
		}
	}
	if raw := strings.TrimSpace(string(logging.Format)); raw != "" {
		if f := NormalizeLogFormat(raw); f != "" {
			res.changed("monitoring.logging.format", logging.Format, f)
			logging.Format = f
		} else {
			res.unknown("monitoring.logging.format", raw, string(LogFormatText))
			logging.Format = LogFormatText
		}
	}

	for i, p := range c.Identity.NoisePrefixes {
		c.Identity.NoisePrefixes[i] = strings.TrimSpace(p)
	}
	if c.Session.InboxSize < 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("negative session.inbox_size %d reset to default", c.Session.InboxSize))
		c.Session.InboxSize = 0
	}
	return res
}

func (r *NormalizationResult) changed(field string, from, to any) {
	if fmt.Sprint(from) != fmt.Sprint(to) {
		r.Warnings = append(r.Warnings, fmt.Sprintf("normalized %s from '%v' to '%v'", field, from, to))
	}
}

func (r *NormalizationResult) unknown(field, value, def string) {
	r.Warnings = append(r.Warnings, fmt.Sprintf("unknown %s '%s', defaulting to %s", field, value, def))
}
