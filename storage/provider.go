// Package storage implements the polymorphic provider fabric: a uniform
// fetch/exists contract over local filesystem, git-hosted remotes (Gitea
// and GitLab flavors), plain HTTP endpoints and an S3-compatible archive
// tier, plus the ordered-failover Manager that picks among them.
//
// Providers are registered into a Manager as a priority-ordered list, not
// dispatched through an interface hierarchy: selection is a scan, ties
// broken by registration order.
package storage

import (
	"context"
	"time"

	"github.com/fractary/codex/reference"
)

// FetchOptions are the common, per-call knobs every provider contract
// understands, even if a given provider ignores some of them.
type FetchOptions struct {
	BypassCache     bool
	Timeout         time.Duration
	MaxSize         int64
	FollowRedirects bool
	Branch          string
	Token           string
}

// DefaultFetchOptions returns the documented defaults: 30s timeout, 100MiB
// max size, redirects followed.
func DefaultFetchOptions() FetchOptions {
	return FetchOptions{
		Timeout:         30 * time.Second,
		MaxSize:         100 << 20,
		FollowRedirects: true,
	}
}

// Result is the immutable outcome of a successful fetch.
type Result struct {
	Content          []byte
	ContentType      string
	Size             int
	Source           string
	ProviderMetadata map[string]string
}

// Provider is the uniform contract every storage backend implements.
type Provider interface {
	// Name identifies the provider for telemetry; Manager records it as the
	// Source of a result this provider wins.
	Name() string
	// Priority is the provider's selection weight; lower wins.
	Priority() int
	// CanHandle reports whether this provider claims ref.
	CanHandle(ref reference.Resolved) bool
	// Fetch retrieves ref's bytes. Errors are codexerr-classified.
	Fetch(ctx context.Context, ref reference.Resolved, opts FetchOptions) (Result, error)
	// Exists reports whether ref is present, without necessarily fetching
	// its full content.
	Exists(ctx context.Context, ref reference.Resolved) (bool, error)
}

// Default provider priorities; lower wins, ties broken by registration
// order.
const (
	PriorityLocal      = 10
	PriorityArchive    = 20
	PriorityRemoteVCS  = 50
	PriorityHTTP       = 100
)
