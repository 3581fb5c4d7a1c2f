// Package globmatch implements the single glob dialect shared across the
// codex core: '*' matches any run of non-separator characters, '**'
// matches any run of characters including separators (so "**/x" still
// needs at least one '/' before "x"), and '?' matches exactly one
// non-separator character. Everything else is literal.
//
// The standard library's path.Match/filepath.Match has no '**' concept,
// so this is a small hand-rolled compiler from glob syntax to a regexp,
// which the type registry, routing, archive provider and sync planner
// share (see DESIGN.md).
package globmatch

import (
	"regexp"
	"strings"
	"sync"
)

// Pattern is a compiled glob pattern, safe for concurrent use by multiple
// goroutines (it wraps a single *regexp.Regexp, itself concurrency-safe).
type Pattern struct {
	raw string
	re  *regexp.Regexp
}

// compileCache memoizes compiled patterns; type registries and routing
// metadata reuse the same small set of patterns across many files during a
// scan, so recompiling per call would be wasteful.
var compileCache sync.Map // map[string]*Pattern

// Compile translates a glob pattern into a Pattern. The result is cached;
// repeated calls with the same raw pattern return the same *Pattern.
func Compile(pattern string) *Pattern {
	if v, ok := compileCache.Load(pattern); ok {
		return v.(*Pattern)
	}
	p := &Pattern{raw: pattern, re: regexp.MustCompile(toRegexp(pattern))}
	actual, _ := compileCache.LoadOrStore(pattern, p)
	return actual.(*Pattern)
}

// Match reports whether name satisfies the pattern.
func (p *Pattern) Match(name string) bool {
	return p.re.MatchString(name)
}

// String returns the original glob source.
func (p *Pattern) String() string { return p.raw }

// Match is a convenience one-shot form of Compile(pattern).Match(name) for
// call sites that do not need to hold on to the compiled pattern.
func Match(pattern, name string) bool {
	return Compile(pattern).Match(name)
}

// toRegexp translates glob syntax into an anchored regexp source. It walks
// the pattern rune-by-rune so that "**" is recognized atomically before the
// single-star rule ever sees it — applying the single-star substitution
// first and then special-casing doubled stars would be indistinguishable
// from two independent single stars glued together, which this dialect
// must not allow.
func toRegexp(pattern string) string {
	var b strings.Builder
	b.WriteString("^")

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				b.WriteString("(?:.*)")
				i++ // consume both stars as one token
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(runes[i])))
		}
	}

	b.WriteString("$")
	return b.String()
}
