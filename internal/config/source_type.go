package config

import "git.home.luguber.info/inful/diffwatch/internal/foundation/normalization"

// SourceType names an event source adapter.
type SourceType string

const (
	SourcePostgres SourceType = "postgres"
	SourceNATS     SourceType = "nats"
	SourceSQLite   SourceType = "sqlite"
	// SourceStatic reads nothing; it is used for tests and dry runs.
	SourceStatic SourceType = "static"
)

var sourceTypes = normalization.NewNormalizer(map[string]SourceType{
	"postgres":   SourcePostgres,
	"postgresql": SourcePostgres,
	"supabase":   SourcePostgres,
	"nats":       SourceNATS,
	"jetstream":  SourceNATS,
	"sqlite":     SourceSQLite,
	"static":     SourceStatic,
}, "")

// NormalizeSourceType returns "" for unknown input.
func NormalizeSourceType(raw string) SourceType { return sourceTypes.Normalize(raw) }
