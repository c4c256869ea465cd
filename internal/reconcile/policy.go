package reconcile

import (
	"strings"

	"git.home.luguber.info/inful/diffwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/diffwatch/internal/foundation/normalization"
)

// Policy decides what happens when several writes resolve to the same file.
type Policy string

const (
	// FirstWrite keeps only the first write per file (log order).
	FirstWrite Policy = "first"
	// LatestWrite keeps the last write per file, listed where the file was
	// first written.
	LatestWrite Policy = "latest"
	// Sequence emits one comparison per write. Each write is compared with
	// the previous write of the same file, or the earliest scan for the first.
	Sequence Policy = "sequence"
)

// DefaultPolicy is FirstWrite.
const DefaultPolicy = FirstWrite

var ErrUnknownPolicy = errors.ConfigError("unknown duplicate write policy").Build()

var policies = normalization.NewNormalizer(map[string]Policy{
	"first":        FirstWrite,
	"first-write":  FirstWrite,
	"latest":       LatestWrite,
	"last":         LatestWrite,
	"latest-write": LatestWrite,
	"sequence":     Sequence,
	"all":          Sequence,
}, DefaultPolicy)

// ParsePolicy maps a configured name to a Policy. Empty means DefaultPolicy.
func ParsePolicy(s string) (Policy, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultPolicy, nil
	}
	p, ok := policies.Lookup(s)
	if !ok {
		return "", ErrUnknownPolicy.WithContext("policy", s).
			WithContext("valid", strings.Join(PolicyNames(), ", "))
	}
	return p, nil
}

// PolicyNames lists the canonical policy names.
func PolicyNames() []string {
	return []string{string(FirstWrite), string(LatestWrite), string(Sequence)}
}
