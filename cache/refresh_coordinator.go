package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fractary/codex/internal/codexerr"
)

// RefreshCoordinator decides which instance, among potentially many,
// performs a background refresh for a stale URI. TryAcquire returns
// ok=false when another holder already owns the lock; the caller skips
// its own refresh in that case.
type RefreshCoordinator interface {
	TryAcquire(ctx context.Context, uri string, lockTTL time.Duration) (release func(), ok bool, err error)
}

// localCoordinator is the single-process default: an in-memory mutex set,
// sufficient whenever codex runs as one instance, the common case for
// stale-while-revalidate refreshes that don't need cross-instance
// coordination.
type localCoordinator struct {
	inflight *inflightSet
}

func newLocalCoordinator() *localCoordinator {
	return &localCoordinator{inflight: newInflightSet()}
}

func (l *localCoordinator) TryAcquire(_ context.Context, uri string, _ time.Duration) (func(), bool, error) {
	if !l.inflight.tryStart(uri) {
		return nil, false, nil
	}
	return func() { l.inflight.finish(uri) }, true, nil
}

// RedisCoordinator arbitrates background refreshes across multiple codex
// instances sharing a cache root (e.g. several replicas behind a shared
// NFS or object-backed mount), using Redis SET NX as a distributed lock.
type RedisCoordinator struct {
	client *redis.Client
	prefix string
}

// NewRedisCoordinator wraps an existing *redis.Client. Callers own the
// client's lifecycle (Close, connection pool sizing).
func NewRedisCoordinator(client *redis.Client) *RedisCoordinator {
	return &RedisCoordinator{client: client, prefix: "codex:refresh:"}
}

func (r *RedisCoordinator) TryAcquire(ctx context.Context, uri string, lockTTL time.Duration) (func(), bool, error) {
	key := r.prefix + uri
	ok, err := r.client.SetNX(ctx, key, "1", lockTTL).Result()
	if err != nil {
		return nil, false, codexerr.Wrap(codexerr.CodeTransport, "acquiring refresh lock", err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		// Best-effort: if release fails the lock simply expires after
		// lockTTL, it never dangles forever.
		r.client.Del(context.Background(), key)
	}
	return release, true, nil
}

// inflightSet tracks URIs currently being refreshed in this process, the
// single-instance equivalent of the Redis lock above.
type inflightSet struct {
	mu sync.Mutex
	m  map[string]struct{}
}

func newInflightSet() *inflightSet {
	return &inflightSet{m: make(map[string]struct{})}
}

func (s *inflightSet) tryStart(uri string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[uri]; ok {
		return false
	}
	s.m[uri] = struct{}{}
	return true
}

func (s *inflightSet) finish(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, uri)
}
