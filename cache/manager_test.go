package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractary/codex/reference"
	"github.com/fractary/codex/storage"
	"github.com/fractary/codex/typeregistry"
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   int32
	content string
}

func (f *fakeFetcher) Fetch(context.Context, reference.Resolved, storage.FetchOptions) (storage.Result, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return storage.Result{Content: []byte(f.content), Source: "local"}, nil
}

func (f *fakeFetcher) callCount() int {
	return int(atomic.LoadInt32(&f.calls))
}

func mustResolved(t *testing.T, uri string) reference.Resolved {
	t.Helper()
	p, err := reference.Parse(uri)
	require.NoError(t, err)
	return reference.Resolve(p, reference.Context{CurrentOrg: "acme", CurrentProject: "widgets"})
}

func TestManagerGetFetchesOnMiss(t *testing.T) {
	fetcher := &fakeFetcher{content: "hello"}
	m := NewManager(t.TempDir(), 0, 0, typeregistry.New(), fetcher)

	ref := mustResolved(t, "codex://acme/widgets/docs/guide.md")
	result, err := m.Get(context.Background(), ref, storage.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(result.Content))
	assert.Equal(t, 1, fetcher.callCount())
}

func TestManagerGetServesFreshFromMemoryWithoutRefetch(t *testing.T) {
	fetcher := &fakeFetcher{content: "hello"}
	m := NewManager(t.TempDir(), 0, 0, typeregistry.New(), fetcher)
	ref := mustResolved(t, "codex://acme/widgets/docs/guide.md")

	_, err := m.Get(context.Background(), ref, storage.FetchOptions{})
	require.NoError(t, err)
	_, err = m.Get(context.Background(), ref, storage.FetchOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.callCount())
}

func TestManagerGetTriggersBackgroundRefreshWhenStale(t *testing.T) {
	fetcher := &fakeFetcher{content: "hello"}
	fixedNow := time.Now()
	m := NewManager(t.TempDir(), 0, 0, typeregistry.New(), fetcher, withClock(func() time.Time { return fixedNow }))
	ref := mustResolved(t, "codex://acme/widgets/docs/guide.md")

	_, err := m.Get(context.Background(), ref, storage.FetchOptions{})
	require.NoError(t, err)

	// Advance past the type's TTL into the stale window.
	entry, ok := m.mem.get(ref.Parsed.String())
	require.True(t, ok)
	staleNow := entry.Metadata.ExpiresAt.Add(time.Minute)
	m.nowFn = func() time.Time { return staleNow }

	result, err := m.Get(context.Background(), ref, storage.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(result.Content)) // stale content served immediately

	require.Eventually(t, func() bool {
		return fetcher.callCount() >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestManagerSetSeedsCacheWithoutCallingFetcher(t *testing.T) {
	fetcher := &fakeFetcher{content: "hello"}
	m := NewManager(t.TempDir(), 0, 0, typeregistry.New(), fetcher)
	ref := mustResolved(t, "codex://acme/widgets/docs/guide.md")

	err := m.Set(ref.Parsed.String(), storage.Result{Content: []byte("seeded"), Source: "sync"}, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, fetcher.callCount())

	result, err := m.Get(context.Background(), ref, storage.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "seeded", string(result.Content))
	assert.Equal(t, 0, fetcher.callCount())
}

func TestManagerSetOverwritesExistingEntry(t *testing.T) {
	fetcher := &fakeFetcher{content: "hello"}
	m := NewManager(t.TempDir(), 0, 0, typeregistry.New(), fetcher)
	ref := mustResolved(t, "codex://acme/widgets/docs/guide.md")

	_, err := m.Get(context.Background(), ref, storage.FetchOptions{})
	require.NoError(t, err)

	require.NoError(t, m.Set(ref.Parsed.String(), storage.Result{Content: []byte("overwritten"), Source: "sync"}, time.Hour))

	result, err := m.Get(context.Background(), ref, storage.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "overwritten", string(result.Content))
	assert.Equal(t, 1, fetcher.callCount())
}

func TestManagerInvalidateRemovesFromBothTiers(t *testing.T) {
	fetcher := &fakeFetcher{content: "hello"}
	m := NewManager(t.TempDir(), 0, 0, typeregistry.New(), fetcher)
	ref := mustResolved(t, "codex://acme/widgets/docs/guide.md")

	_, err := m.Get(context.Background(), ref, storage.FetchOptions{})
	require.NoError(t, err)

	require.NoError(t, m.Invalidate(ref.Parsed.String()))

	_, ok := m.mem.get(ref.Parsed.String())
	assert.False(t, ok)
	assert.False(t, m.disk.Exists(ref.Parsed.String()))
}

func TestManagerInvalidatePatternMatchesRegex(t *testing.T) {
	fetcher := &fakeFetcher{content: "hello"}
	m := NewManager(t.TempDir(), 0, 0, typeregistry.New(), fetcher)

	for _, path := range []string{"docs/a.md", "docs/b.md", "specs/c.md"} {
		ref := mustResolved(t, "codex://acme/widgets/"+path)
		_, err := m.Get(context.Background(), ref, storage.FetchOptions{})
		require.NoError(t, err)
	}

	removed, err := m.InvalidatePattern(`codex://acme/widgets/docs/.*`)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
}

func TestManagerStatsAggregates(t *testing.T) {
	fetcher := &fakeFetcher{content: "hello"}
	m := NewManager(t.TempDir(), 0, 0, typeregistry.New(), fetcher)
	ref := mustResolved(t, "codex://acme/widgets/docs/guide.md")

	_, err := m.Get(context.Background(), ref, storage.FetchOptions{})
	require.NoError(t, err)

	stats, err := m.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EntryCount)
}
