// Package routing decides which documents in a project's repository sync
// to which targets, driven by each document's front-matter sync
// directives, and scans a repository for sync-eligible files.
package routing

import (
	"github.com/fractary/codex/internal/globmatch"
	"github.com/fractary/codex/metadata"
)

// ShouldSyncTo reports whether a document carrying the given sync
// directives should sync to target. A file routes to a
// target iff its include list is non-empty AND at least one include glob
// matches the target, AND no exclude glob matches the target. An absent
// or empty include list is the safe default: the file routes nowhere.
func ShouldSyncTo(directives metadata.SyncDirectives, target string) bool {
	if len(directives.Include) == 0 {
		return false
	}

	included := false
	for _, pattern := range directives.Include {
		if globmatch.Match(pattern, target) {
			included = true
			break
		}
	}
	if !included {
		return false
	}

	for _, pattern := range directives.Exclude {
		if globmatch.Match(pattern, target) {
			return false
		}
	}
	return true
}
