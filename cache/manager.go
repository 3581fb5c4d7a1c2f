package cache

import (
	"context"
	"regexp"
	"time"

	"github.com/fractary/codex/internal/codexerr"
	"github.com/fractary/codex/internal/telemetry"
	"github.com/fractary/codex/reference"
	"github.com/fractary/codex/storage"
	"github.com/fractary/codex/typeregistry"
)

// Fetcher is the subset of storage.Manager the cache needs: resolving a
// reference to bytes on a miss or refresh. Scoped to an interface so tests
// can substitute a fake without standing up real providers.
type Fetcher interface {
	Fetch(ctx context.Context, ref reference.Resolved, opts storage.FetchOptions) (storage.Result, error)
}

// RefreshLockTTL bounds how long a distributed refresh lock is held before
// it self-expires, so a crashed holder never wedges other instances out of
// ever refreshing a URI.
const RefreshLockTTL = 30 * time.Second

// Manager is the two-tier cache engine: L1 in-memory LRU in front of an
// L2 on-disk Persistence, backed by a Fetcher on miss, with
// stale-while-revalidate and an optional bbolt index and distributed
// refresh coordinator.
type Manager struct {
	mem    *memTier
	disk   *Persistence
	index  *Index // nil if no secondary index configured
	types  *typeregistry.Registry
	fetch  Fetcher
	coord  RefreshCoordinator
	nowFn  func() time.Time
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithIndex attaches a bbolt secondary index, kept in sync on every write
// and invalidation.
func WithIndex(idx *Index) ManagerOption {
	return func(m *Manager) { m.index = idx }
}

// WithRefreshCoordinator swaps the default single-process coordinator for
// a distributed one (e.g. RedisCoordinator).
func WithRefreshCoordinator(c RefreshCoordinator) ManagerOption {
	return func(m *Manager) { m.coord = c }
}

// withClock overrides the time source; test-only.
func withClock(fn func() time.Time) ManagerOption {
	return func(m *Manager) { m.nowFn = fn }
}

// NewManager builds a cache Manager. diskRoot is the on-disk cache root;
// maxEntries/maxBytes bound L1 (0 selects the documented defaults).
func NewManager(diskRoot string, maxEntries int, maxBytes int64, types *typeregistry.Registry, fetch Fetcher, opts ...ManagerOption) *Manager {
	m := &Manager{
		mem:   newMemTier(maxEntries, maxBytes),
		disk:  NewPersistence(diskRoot),
		types: types,
		fetch: fetch,
		coord: newLocalCoordinator(),
		nowFn: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) now() time.Time { return m.nowFn() }

// Get returns ref's content, consulting L1 then L2 then the Fetcher, and
// triggering a non-blocking background refresh when the cached copy is
// stale: stale entries are still returned immediately, and a background
// refresh updates the cache for next time.
func (m *Manager) Get(ctx context.Context, ref reference.Resolved, opts storage.FetchOptions) (storage.Result, error) {
	uri := ref.Parsed.String()
	now := m.now()

	if entry, ok := m.mem.get(uri); ok {
		return m.serve(ctx, ref, opts, entry, now)
	}

	if entry, ok, err := m.disk.Read(uri); err == nil && ok {
		m.mem.put(entry)
		return m.serve(ctx, ref, opts, entry, now)
	}

	return m.fetchAndStore(ctx, ref, opts, uri)
}

// serve implements the status-dependent branch of Get once an entry (from
// either tier) has been found.
func (m *Manager) serve(ctx context.Context, ref reference.Resolved, opts storage.FetchOptions, entry Entry, now time.Time) (storage.Result, error) {
	switch entry.Metadata.Status(now) {
	case StatusFresh:
		m.touch(entry, now)
		return entry.AsResult(), nil
	case StatusStale:
		m.touch(entry, now)
		m.triggerBackgroundRefresh(ref, opts, entry.Metadata.URI)
		return entry.AsResult(), nil
	default: // expired
		return m.fetchAndStore(ctx, ref, opts, entry.Metadata.URI)
	}
}

func (m *Manager) touch(entry Entry, now time.Time) {
	touched := entry.Touch(now)
	m.mem.put(touched)
	// Access-count bookkeeping is best-effort on disk; failures here must
	// never surface to the caller of Get.
	_ = m.disk.Write(touched)
}

// fetchAndStore performs a synchronous fetch via the Fetcher and persists
// the result to both tiers before returning it.
func (m *Manager) fetchAndStore(ctx context.Context, ref reference.Resolved, opts storage.FetchOptions, uri string) (storage.Result, error) {
	result, err := m.fetch.Fetch(ctx, ref, opts)
	if err != nil {
		return storage.Result{}, err
	}

	ttl := m.types.LookupTTL(ref.Parsed.Path)
	entry := NewEntry(uri, result, ttl, m.now())
	m.store(entry)
	return entry.AsResult(), nil
}

// Set unconditionally inserts result into both cache tiers under uri,
// skipping the Fetcher entirely. ttl of 0 selects the type registry's
// default TTL for uri's path, the same lookup fetchAndStore uses on a
// miss. Callers that already hold a freshly fetched storage.Result (e.g.
// a sync operation that just wrote the file) use this to seed or
// overwrite the cache without forcing a redundant re-fetch.
func (m *Manager) Set(uri string, result storage.Result, ttl time.Duration) error {
	if ttl <= 0 {
		ref, err := reference.Parse(uri)
		if err != nil {
			return codexerr.Wrap(codexerr.CodeInvalidURI, "parsing uri for set", err)
		}
		ttl = m.types.LookupTTL(ref.Path)
	}
	m.store(NewEntry(uri, result, ttl, m.now()))
	return nil
}

func (m *Manager) store(entry Entry) {
	m.mem.put(entry)
	if err := m.disk.Write(entry); err != nil {
		telemetry.WithComponent("cache-manager").WithField("uri", entry.Metadata.URI).WithError(err).Warn("failed to persist cache entry to disk")
	}
	if m.index != nil {
		if err := m.index.Put(entry.Metadata); err != nil {
			telemetry.WithComponent("cache-manager").WithField("uri", entry.Metadata.URI).WithError(err).Warn("failed to update cache index")
		}
	}
}

// triggerBackgroundRefresh fires off an async re-fetch guarded by the
// refresh coordinator so at most one goroutine (process-wide, or
// cluster-wide with RedisCoordinator) refreshes a given URI at a time.
func (m *Manager) triggerBackgroundRefresh(ref reference.Resolved, opts storage.FetchOptions, uri string) {
	release, ok, err := m.coord.TryAcquire(context.Background(), uri, RefreshLockTTL)
	if err != nil {
		telemetry.WithComponent("cache-manager").WithField("uri", uri).WithError(err).Warn("refresh lock acquisition failed")
		return
	}
	if !ok {
		return
	}

	go func() {
		defer release()
		ctx, cancel := context.WithTimeout(context.Background(), RefreshLockTTL)
		defer cancel()

		result, err := m.fetch.Fetch(ctx, ref, opts)
		if err != nil {
			telemetry.WithComponent("cache-manager").WithField("uri", uri).WithError(err).Warn("background refresh failed")
			return
		}
		ttl := m.types.LookupTTL(ref.Parsed.Path)
		m.store(NewEntry(uri, result, ttl, m.now()))
	}()
}

// Invalidate removes a single URI from both tiers and the index.
func (m *Manager) Invalidate(uri string) error {
	m.mem.remove(uri)
	if m.index != nil {
		_ = m.index.Delete(uri)
	}
	return m.disk.Delete(uri)
}

// InvalidatePattern removes every URI matching the given regular
// expression, iterating both the L1 key set and the L2 listing. This is
// a regex match, unlike the glob dialect the type registry, archive
// provider and routing engine share.
func (m *Manager) InvalidatePattern(pattern string) (int, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, codexerr.Wrap(codexerr.CodeConfigInvalid, "compiling invalidation pattern", err)
	}

	seen := make(map[string]struct{})
	removed := 0

	for _, uri := range m.mem.keys() {
		seen[uri] = struct{}{}
		if re.MatchString(uri) {
			if err := m.Invalidate(uri); err == nil {
				removed++
			}
		}
	}

	uris, err := m.disk.List()
	if err != nil {
		return removed, err
	}
	for _, uri := range uris {
		if _, already := seen[uri]; already {
			continue
		}
		if re.MatchString(uri) {
			if err := m.Invalidate(uri); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// ClearExpired sweeps expired entries from L2 (and the index, if present)
// in one pass.
func (m *Manager) ClearExpired() (int, error) {
	uris, err := m.disk.List()
	if err != nil {
		return 0, err
	}
	now := m.now()
	removed := 0
	for _, uri := range uris {
		entry, ok, err := m.disk.Read(uri)
		if err != nil || !ok {
			continue
		}
		if entry.Metadata.Status(now) == StatusExpired {
			m.mem.remove(uri)
			if m.index != nil {
				_ = m.index.Delete(uri)
			}
			if err := m.disk.Delete(uri); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// Stats reports aggregate cache statistics across the on-disk tier.
func (m *Manager) Stats() (Stats, error) {
	return m.disk.GetStats(m.now())
}
