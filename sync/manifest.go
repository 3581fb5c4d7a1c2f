// Package sync implements the routing-aware sync engine's planning and
// execution half: diffing candidate files against a durable manifest to
// produce a minimal operation set, then applying that set and persisting
// the manifest atomically.
package sync

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fractary/codex/internal/codexerr"
)

// Direction is the sync direction a plan or manifest entry was produced
// under.
type Direction string

const (
	DirectionToShared     Direction = "to-shared"
	DirectionFromShared   Direction = "from-shared"
	DirectionBidirectional Direction = "bidirectional"
)

// Entry is a manifest record: the last-known synced state of one file,
// keyed by (org, project, path).
type Entry struct {
	Org          string    `json:"org"`
	Project      string    `json:"project"`
	Path         string    `json:"path"`
	Hash         string    `json:"hash"`
	Size         int64     `json:"size"`
	LastSyncedAt time.Time `json:"lastSyncedAt"`
	Direction    Direction `json:"direction"`
}

func entryKey(org, project, path string) string {
	return org + "/" + project + "/" + path
}

// Manifest is the durable record of last-known content state between a
// working tree and the shared repository. It is exclusively owned by the
// Executor for the duration of a sync; concurrent syncs on
// the same working tree are forbidden (enforced by the per-working-directory
// mutex in executor.go, not by Manifest itself).
type Manifest struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{entries: make(map[string]Entry)}
}

// Get returns the recorded entry for (org, project, path), if any.
func (m *Manifest) Get(org, project, path string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[entryKey(org, project, path)]
	return e, ok
}

// Put upserts an entry.
func (m *Manifest) Put(e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entryKey(e.Org, e.Project, e.Path)] = e
}

// Delete removes an entry, if present.
func (m *Manifest) Delete(org, project, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, entryKey(org, project, path))
}

// Entries returns a snapshot of every recorded entry.
func (m *Manifest) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out
}

// manifestFile is the on-disk shape: a bare array of entries.
type manifestFile = []Entry

// Load reads a manifest from path. A missing file is not an error: it
// yields an empty manifest, matching the "created on first sync"
// lifecycle.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewManifest(), nil
		}
		return nil, codexerr.Wrap(codexerr.CodeCacheCorruption, "reading sync manifest", err)
	}

	var file manifestFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, codexerr.Wrap(codexerr.CodeCacheCorruption, "parsing sync manifest", err)
	}

	m := NewManifest()
	for _, e := range file {
		m.Put(e)
	}
	return m, nil
}

// Save atomically rewrites the manifest at path: a temp file written then
// renamed into place, so a crash never leaves a partially-written
// manifest.
func (m *Manifest) Save(path string) error {
	m.mu.RLock()
	file := make(manifestFile, 0, len(m.entries))
	for _, e := range m.entries {
		file = append(file, e)
	}
	m.mu.RUnlock()

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return codexerr.Wrap(codexerr.CodeCacheCorruption, "marshaling sync manifest", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return codexerr.Wrap(codexerr.CodeCacheCorruption, "creating manifest directory", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return codexerr.Wrap(codexerr.CodeCacheCorruption, "writing manifest temp file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return codexerr.Wrap(codexerr.CodeCacheCorruption, "renaming manifest into place", err)
	}
	return nil
}
