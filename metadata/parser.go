// Package metadata extracts and interprets the YAML front-matter block
// markdown documents carry: the raw key/value map, and the typed
// codex_sync_include/codex_sync_exclude views the routing engine consumes.
//
// Front-matter is parsed with a structured YAML decode into a raw map
// plus a typed overlay, rather than a hand-rolled key:value scanner.
package metadata

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fractary/codex/internal/telemetry"
)

// Delimiter is the front-matter fence markdown documents use.
const Delimiter = "---"

// SyncDirectives is the typed view routing cares about: which sync
// targets a document includes or excludes, by glob.
type SyncDirectives struct {
	Include []string `yaml:"codex_sync_include"`
	Exclude []string `yaml:"codex_sync_exclude"`
}

// Metadata is a parsed document: the raw front-matter fields (for callers
// that need more than sync directives) plus the typed sync view and the
// document body with the front-matter block stripped.
type Metadata struct {
	Raw   map[string]any
	Sync  SyncDirectives
	Body  string
}

// Parse splits content into front-matter and body and decodes the
// front-matter block. A missing front-matter block is not an error: Raw
// and Sync are both zero-valued and Body is the entire input.
// A malformed block degrades the same way, logging a warning instead of
// failing the caller — front matter is metadata, never a hard requirement
// to read a document.
func Parse(content []byte) Metadata {
	text := string(content)
	block, body, found, unclosed := splitFrontMatter(text)
	if !found {
		if unclosed {
			telemetry.WithComponent("metadata-parser").Warn("front-matter block opened but never closed, treating document as having none")
		}
		return Metadata{Body: text}
	}

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(block), &raw); err != nil {
		telemetry.WithComponent("metadata-parser").WithError(err).Warn("malformed front-matter block, treating document as having none")
		return Metadata{Body: text}
	}

	var sync SyncDirectives
	// Decoding errors here mean a directive field has the wrong shape
	// (e.g. codex_sync_include as a string instead of a list); fall back
	// to empty directives rather than failing the whole parse.
	if err := yaml.Unmarshal([]byte(block), &sync); err != nil {
		telemetry.WithComponent("metadata-parser").WithError(err).Warn("malformed sync directives in front matter")
		sync = SyncDirectives{}
	}

	return Metadata{Raw: raw, Sync: sync, Body: body}
}

// splitFrontMatter extracts the YAML block between the opening and
// closing "---" fences at the top of the document. The opening fence
// must be the first non-empty line. unclosed is true only when an
// opening fence was found but no matching closing fence follows it —
// distinct from the ordinary "no front matter at all" case, so the
// caller can warn on the former and stay silent on the latter.
func splitFrontMatter(text string) (block, body string, found, unclosed bool) {
	trimmed := strings.TrimLeft(text, "\r\n")
	if !strings.HasPrefix(trimmed, Delimiter) {
		return "", text, false, false
	}

	rest := trimmed[len(Delimiter):]
	rest = strings.TrimPrefix(rest, "\r\n")
	rest = strings.TrimPrefix(rest, "\n")

	closeIdx := strings.Index(rest, "\n"+Delimiter)
	if closeIdx < 0 {
		return "", text, false, true
	}

	block = rest[:closeIdx]
	afterFence := rest[closeIdx+1+len(Delimiter):]
	afterFence = strings.TrimPrefix(afterFence, "\r\n")
	afterFence = strings.TrimPrefix(afterFence, "\n")
	return block, afterFence, true, false
}
