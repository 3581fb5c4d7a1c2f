package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fractary/codex/storage"
)

func entryOfSize(uri string, size int) Entry {
	return NewEntry(uri, storage.Result{Content: make([]byte, size)}, time.Hour, time.Now())
}

func TestMemTierEvictsByCount(t *testing.T) {
	t.Cleanup(func() {})
	tier := newMemTier(2, DefaultL1MaxBytes)

	tier.put(entryOfSize("codex://a/b/1.md", 10))
	tier.put(entryOfSize("codex://a/b/2.md", 10))
	tier.put(entryOfSize("codex://a/b/3.md", 10))

	assert.LessOrEqual(t, tier.len(), 2)
	_, ok := tier.get("codex://a/b/1.md")
	assert.False(t, ok)
}

func TestMemTierEvictsByByteBudget(t *testing.T) {
	tier := newMemTier(100, 25)

	tier.put(entryOfSize("codex://a/b/1.md", 10))
	tier.put(entryOfSize("codex://a/b/2.md", 10))
	tier.put(entryOfSize("codex://a/b/3.md", 10))

	assert.LessOrEqual(t, tier.curBytes, int64(25))
}

func TestMemTierRemove(t *testing.T) {
	tier := newMemTier(10, DefaultL1MaxBytes)
	tier.put(entryOfSize("codex://a/b/1.md", 10))
	tier.remove("codex://a/b/1.md")

	_, ok := tier.get("codex://a/b/1.md")
	assert.False(t, ok)
}
