// Package cache implements the two-tier (memory + disk) cache engine:
// entry/metadata modeling and atomic persistence, the L1 LRU +
// stale-while-revalidate Manager, and an optional bbolt-backed secondary
// index plus Redis-backed distributed refresh coordination for
// multi-instance deployments.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"time"

	"github.com/fractary/codex/storage"
)

// StaleWindow is the grace period after expiry during which an entry is
// "stale" rather than "expired".
const StaleWindow = 5 * time.Minute

// Status is the derived (never-stored) freshness of an entry at a given
// instant.
type Status string

const (
	StatusFresh   Status = "fresh"
	StatusStale   Status = "stale"
	StatusExpired Status = "expired"
)

// Metadata is everything about a cached entry except its bytes. ContentHash
// is an 8-hex-digit digest, matching the on-disk layout's human-readable
// metadata file.
type Metadata struct {
	URI              string            `json:"uri"`
	CachedAt         time.Time         `json:"cachedAt"`
	ExpiresAt        time.Time         `json:"expiresAt"`
	TTL              time.Duration     `json:"ttl"`
	ContentHash      string            `json:"contentHash"`
	Size             int               `json:"size"`
	ContentType      string            `json:"contentType"`
	Source           string            `json:"source"`
	AccessCount      int               `json:"accessCount"`
	LastAccessedAt   time.Time         `json:"lastAccessedAt"`
	ProviderMetadata map[string]string `json:"providerMetadata,omitempty"`
}

// Status computes the entry's freshness relative to now.
func (m Metadata) Status(now time.Time) Status {
	if now.Before(m.ExpiresAt) {
		return StatusFresh
	}
	if now.Before(m.ExpiresAt.Add(StaleWindow)) {
		return StatusStale
	}
	return StatusExpired
}

// Entry is a (metadata, content) pair, the unit the Cache Manager owns in
// memory and the Persistence layer owns on disk.
type Entry struct {
	Metadata Metadata
	Content  []byte
}

// digest computes the 8-hex-digit content hash. MD5 is used purely as a
// fast, stable fingerprint, not for any security purpose; only the first
// 4 bytes are kept to match the documented 8-hex-digit width.
func digest(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:4])
}

// NewEntry builds a fresh Entry from a storage.Result, computing hash and
// size and setting expiresAt = cachedAt + ttl.
func NewEntry(uri string, result storage.Result, ttl time.Duration, now time.Time) Entry {
	return Entry{
		Metadata: Metadata{
			URI:              uri,
			CachedAt:         now,
			ExpiresAt:        now.Add(ttl),
			TTL:              ttl,
			ContentHash:      digest(result.Content),
			Size:             len(result.Content),
			ContentType:      result.ContentType,
			Source:           result.Source,
			AccessCount:      0,
			LastAccessedAt:   now,
			ProviderMetadata: result.ProviderMetadata,
		},
		Content: result.Content,
	}
}

// AsResult views the entry's content as a storage.Result, the shape
// get() returns to callers.
func (e Entry) AsResult() storage.Result {
	return storage.Result{
		Content:          e.Content,
		ContentType:      e.Metadata.ContentType,
		Size:             e.Metadata.Size,
		Source:           e.Metadata.Source,
		ProviderMetadata: e.Metadata.ProviderMetadata,
	}
}

// Touch records an access, incrementing AccessCount and refreshing
// LastAccessedAt. Returns an updated copy; Entry itself stays a value type
// so callers don't accidentally share mutable state — the Cache Manager
// returns copies, never mutable references.
func (e Entry) Touch(now time.Time) Entry {
	e.Metadata.AccessCount++
	e.Metadata.LastAccessedAt = now
	return e
}
