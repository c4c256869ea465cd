package config

import (
	"git.home.luguber.info/inful/diffwatch/internal/identity"
	"git.home.luguber.info/inful/diffwatch/internal/reconcile"
	"git.home.luguber.info/inful/diffwatch/internal/retry"
)

const (
	// DefaultTable is the backend's update table.
	DefaultTable = "repo-updates"
	// DefaultChannel is the LISTEN channel fed by the insert trigger.
	DefaultChannel = "repo_updates"

	DefaultNATSStream  = "REPO_UPDATES"
	DefaultNATSSubject = "repo.updates.>"

	DefaultInboxSize      = 256
	DefaultPublishTimeout = "250ms"
	DefaultPollInterval   = "2s"
	DefaultReportInterval = "30s"
	DefaultMetricsPath    = "/metrics"
)

// ApplyDefaults fills every unset field. It runs after Normalize.
func ApplyDefaults(c *Config) {
	if c.Version == "" {
		c.Version = Version
	}
	applySourceDefaults(&c.Source)

	if c.Session.InboxSize == 0 {
		c.Session.InboxSize = DefaultInboxSize
	}
	if c.Session.PublishTimeout == "" {
		c.Session.PublishTimeout = DefaultPublishTimeout
	}

	if c.Identity.NoisePrefixes == nil {
		c.Identity.NoisePrefixes = []string{identity.DefaultNoisePrefix}
	}
	if c.Identity.PreferStructured == nil {
		on := true
		c.Identity.PreferStructured = &on
	}

	if c.Reconcile.DuplicateWrites == "" {
		c.Reconcile.DuplicateWrites = string(reconcile.DefaultPolicy)
	}

	m := &c.Monitoring
	if m.Metrics.Path == "" {
		m.Metrics.Path = DefaultMetricsPath
	}
	if m.Logging.Level == "" {
		m.Logging.Level = LogLevelInfo
	}
	if m.Logging.Format == "" {
		m.Logging.Format = LogFormatText
	}
	if m.ReportInterval == "" {
		m.ReportInterval = DefaultReportInterval
	}
}

func applySourceDefaults(s *SourceConfig) {
	if s.Type == "" {
		s.Type = SourceStatic
	}
	if s.Postgres.Table == "" {
		s.Postgres.Table = DefaultTable
	}
	if s.Postgres.Channel == "" {
		s.Postgres.Channel = DefaultChannel
	}
	if s.NATS.Stream == "" {
		s.NATS.Stream = DefaultNATSStream
	}
	if s.NATS.Subject == "" {
		s.NATS.Subject = DefaultNATSSubject
	}
	if s.SQLite.Table == "" {
		s.SQLite.Table = DefaultTable
	}
	if s.SQLite.PollInterval == "" {
		s.SQLite.PollInterval = DefaultPollInterval
	}
	if s.SQLite.Follow == nil {
		on := true
		s.SQLite.Follow = &on
	}

	def := retry.DefaultPolicy()
	if s.Retry.Backoff == "" {
		s.Retry.Backoff = string(def.Mode)
	}
	if s.Retry.InitialDelay == "" {
		s.Retry.InitialDelay = def.Initial.String()
	}
	if s.Retry.MaxDelay == "" {
		s.Retry.MaxDelay = def.Max.String()
	}
	if s.Retry.MaxRetries == 0 {
		s.Retry.MaxRetries = def.MaxRetries
	}
}

// RetryPolicy builds the reconnect policy from the source settings.
func (s SourceConfig) RetryPolicy() retry.Policy {
	def := retry.DefaultPolicy()
	return retry.NewPolicy(
		retry.ParseMode(s.Retry.Backoff),
		Duration(s.Retry.InitialDelay, def.Initial),
		Duration(s.Retry.MaxDelay, def.Max),
		s.Retry.MaxRetries,
	)
}

// IdentityOptions converts the identity section.
func (c IdentityConfig) Options() identity.Options {
	opts := identity.DefaultOptions()
	if c.NoisePrefixes != nil {
		opts.NoisePrefixes = c.NoisePrefixes
	}
	opts.KeepDirectories = c.KeepDirectories
	if c.PreferStructured != nil {
		opts.PreferStructured = *c.PreferStructured
	}
	return opts
}
