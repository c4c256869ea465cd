// Package identity derives the canonical file identity used to join the
// before and after snapshots of a file.
//
// The backend embeds file references in free-text messages such as
// "Reading src/pages/index.tsx..." and "Writing updates to src/pages/index.tsx...".
// The text template sometimes truncates with an ellipsis and sometimes does not,
// so extraction tries the ellipsis-terminated form first and then the bare form.
package identity

import (
	"path"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"git.home.luguber.info/inful/diffwatch/internal/update"
)

// DefaultNoisePrefix is the literal segment the backend's write messages put
// in front of the file reference.
const DefaultNoisePrefix = "updates to pages/"

var (
	strictPattern   = regexp.MustCompile(`\s([^.]+\.\S+)\.\.\.`)
	fallbackPattern = regexp.MustCompile(`\s([^.]+\.\S+)`)
)

const ellipsis = "..."

// Options tune canonicalization.
type Options struct {
	// NoisePrefixes are stripped from the front of an extracted token.
	NoisePrefixes []string
	// KeepDirectories keeps the directory part of a path instead of reducing
	// it to its base name.
	KeepDirectories bool
	// PreferStructured uses file_path/file_name when the event carries them.
	PreferStructured bool
}

// DefaultOptions strips the backend's noise prefix, reduces to base names and
// prefers structured fields.
func DefaultOptions() Options {
	return Options{
		NoisePrefixes:    []string{DefaultNoisePrefix},
		PreferStructured: true,
	}
}

// Extractor turns messages and structured fields into canonical identities.
// It is immutable and safe for concurrent use.
type Extractor struct {
	opts Options
	// dirNoise holds the path segment of each noise prefix ("pages/"), which
	// read messages carry without the leading words.
	dirNoise []string
}

// New creates an extractor. A nil prefix list means DefaultNoisePrefix.
func New(opts Options) *Extractor {
	if opts.NoisePrefixes == nil {
		opts.NoisePrefixes = []string{DefaultNoisePrefix}
	}
	prefixes := make([]string, 0, len(opts.NoisePrefixes))
	for _, p := range opts.NoisePrefixes {
		if p != "" {
			prefixes = append(prefixes, p)
		}
	}
	opts.NoisePrefixes = prefixes

	var dirNoise []string
	for _, p := range prefixes {
		seg := p[strings.LastIndexFunc(p, isSpace)+1:]
		if strings.Contains(seg, "/") {
			dirNoise = append(dirNoise, seg)
		}
	}
	return &Extractor{opts: opts, dirNoise: dirNoise}
}

// Options returns the extractor's settings.
func (x *Extractor) Options() Options {
	o := x.opts
	o.NoisePrefixes = append([]string(nil), x.opts.NoisePrefixes...)
	return o
}

// Token returns the raw filename-like token in message, preferring one
// terminated by an ellipsis. It returns "" when message names no file.
func Token(message string) string {
	if m := strictPattern.FindStringSubmatch(message); m != nil {
		return m[1]
	}
	if m := fallbackPattern.FindStringSubmatch(message); m != nil {
		return m[1]
	}
	return ""
}

// StripPrefix removes every leading occurrence of the noise prefixes.
// Repeating until nothing matches makes it idempotent.
func (x *Extractor) StripPrefix(s string) string {
	for {
		stripped := s
		for _, p := range x.opts.NoisePrefixes {
			stripped = strings.TrimPrefix(stripped, p)
		}
		if stripped == s {
			return s
		}
		s = stripped
	}
}

// ExtractIdentity parses message and returns the canonical identity of the
// file it references, or "" if it references none.
func (x *Extractor) ExtractIdentity(message string) string {
	tok := Token(message)
	if tok == "" {
		return ""
	}
	return x.Canonicalize(tok)
}

// Canonicalize normalizes a file reference into the join key.
func (x *Extractor) Canonicalize(ref string) string {
	s := x.StripPrefix(strings.TrimSpace(ref))

	// The non-dot run of the pattern may have swallowed leading words.
	if i := strings.LastIndexFunc(s, isSpace); i >= 0 {
		s = s[i+1:]
	}
	for strings.HasSuffix(s, ellipsis) {
		s = strings.TrimSuffix(s, ellipsis)
	}
	s = strings.TrimRight(s, ".,;:)\"'")
	if x.opts.KeepDirectories {
		s = x.stripDirNoise(s)
	} else {
		s = path.Base(s)
	}
	s = norm.NFC.String(s)

	if !looksLikeFile(s) {
		return ""
	}
	return s
}

// stripDirNoise removes the directory part of the noise prefixes so read
// and write messages for the same file keep the same relative path.
func (x *Extractor) stripDirNoise(s string) string {
	for {
		stripped := s
		for _, p := range x.dirNoise {
			stripped = strings.TrimPrefix(stripped, p)
		}
		if stripped == s {
			return s
		}
		s = stripped
	}
}

// Of returns the canonical identity of the file e refers to. Structured
// file_path and file_name win over the message when enabled and usable.
func (x *Extractor) Of(e update.Event) string {
	if x.opts.PreferStructured {
		for _, ref := range []string{e.FilePath, e.FileName} {
			if strings.TrimSpace(ref) == "" {
				continue
			}
			if id := x.Canonicalize(ref); id != "" {
				return id
			}
		}
	}
	return x.ExtractIdentity(e.Message)
}

// looksLikeFile requires a name and an extension that are not just punctuation.
func looksLikeFile(s string) bool {
	if s == "" || s == "." || s == "/" {
		return false
	}
	dot := strings.LastIndexByte(s, '.')
	if dot <= 0 || dot == len(s)-1 {
		return false
	}
	base := path.Base(s)
	return strings.Trim(base, ".") != ""
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}
