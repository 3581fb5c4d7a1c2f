package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultL1MaxEntries and DefaultL1MaxBytes bound the in-memory tier when a
// caller doesn't specify its own limits.
const (
	DefaultL1MaxEntries = 512
	DefaultL1MaxBytes   = 64 * 1024 * 1024 // 64 MiB
)

// memTier is the L1 (in-memory) cache: a count-bounded LRU
// (hashicorp/golang-lru/v2) with an additional byte-size budget the
// library itself doesn't enforce. Eviction happens on whichever limit is
// hit first: both entry count and total bytes are bounded.
type memTier struct {
	mu        sync.Mutex
	entries   *lru.Cache[string, Entry]
	maxBytes  int64
	curBytes  int64
}

func newMemTier(maxEntries int, maxBytes int64) *memTier {
	if maxEntries <= 0 {
		maxEntries = DefaultL1MaxEntries
	}
	if maxBytes <= 0 {
		maxBytes = DefaultL1MaxBytes
	}
	t := &memTier{maxBytes: maxBytes}
	// OnEvict keeps curBytes in sync whenever the LRU evicts by count,
	// including the entries our own byte-budget eviction removes below.
	cache, _ := lru.NewWithEvict[string, Entry](maxEntries, func(_ string, e Entry) {
		t.curBytes -= int64(e.Metadata.Size)
	})
	t.entries = cache
	return t
}

func (t *memTier) get(uri string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries.Get(uri)
}

func (t *memTier) put(e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.entries.Peek(e.Metadata.URI); ok {
		t.curBytes -= int64(old.Metadata.Size)
	}
	t.entries.Add(e.Metadata.URI, e)
	t.curBytes += int64(e.Metadata.Size)

	for t.curBytes > t.maxBytes {
		_, _, ok := t.entries.RemoveOldest()
		if !ok {
			break
		}
	}
}

func (t *memTier) remove(uri string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries.Remove(uri)
}

func (t *memTier) keys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries.Keys()
}

func (t *memTier) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries.Len()
}
