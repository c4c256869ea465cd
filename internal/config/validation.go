package config

import (
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/diffwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/diffwatch/internal/reconcile"
)

// Validate checks a normalized, defaulted configuration and reports every
// problem at once.
func Validate(c *Config) error {
	v := &validator{}
	v.source(&c.Source)

	if c.Session.InboxSize < 1 {
		v.add("session.inbox_size must be >= 1")
	}
	v.duration("session.publish_timeout", c.Session.PublishTimeout)
	v.duration("monitoring.report_interval", c.Monitoring.ReportInterval)

	if _, err := reconcile.ParsePolicy(c.Reconcile.DuplicateWrites); err != nil {
		v.add("reconcile.duplicate_writes must be one of " + strings.Join(reconcile.PolicyNames(), ", "))
	}
	if c.Monitoring.Metrics.Enabled && !strings.HasPrefix(c.Monitoring.Metrics.Path, "/") {
		v.add("monitoring.metrics.path must start with /")
	}

	if len(v.problems) == 0 {
		return nil
	}
	return ferrors.ConfigError("configuration validation failed").
		WithContext("problems", strings.Join(v.problems, "; ")).
		UserAction().
		Build()
}

type validator struct {
	problems []string
}

func (v *validator) add(p string) { v.problems = append(v.problems, p) }

func (v *validator) duration(field, raw string) {
	if raw == "" {
		return
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		v.add(field + " is not a valid duration")
		return
	}
	if d < 0 {
		v.add(field + " must not be negative")
	}
}

func (v *validator) source(s *SourceConfig) {
	switch s.Type {
	case SourcePostgres:
		if strings.TrimSpace(s.Postgres.DSN) == "" {
			v.add("source.postgres.dsn is required")
		}
		if !validIdentifier(s.Postgres.Channel) {
			v.add("source.postgres.channel must be a plain identifier")
		}
		if s.Postgres.Lookback < 0 {
			v.add("source.postgres.lookback must not be negative")
		}
	case SourceNATS:
		if strings.TrimSpace(s.NATS.URL) == "" {
			v.add("source.nats.url is required")
		}
	case SourceSQLite:
		if strings.TrimSpace(s.SQLite.Path) == "" {
			v.add("source.sqlite.path is required")
		}
		v.duration("source.sqlite.poll_interval", s.SQLite.PollInterval)
	case SourceStatic:
	default:
		v.add("source.type must be one of postgres, nats, sqlite, static")
	}
	v.duration("source.retry.initial_delay", s.Retry.InitialDelay)
	v.duration("source.retry.max_delay", s.Retry.MaxDelay)
}

// validIdentifier accepts names usable unquoted in LISTEN.
func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
