package cache

import (
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"

	"github.com/fractary/codex/internal/codexerr"
)

// indexBucket is the single bbolt bucket holding one JSON-encoded Metadata
// record per URI. The index is a secondary, rebuildable structure: it
// exists purely to answer List/Stats-style queries without walking the
// filesystem, and Persistence remains the source of truth.
var indexBucket = []byte("cache_entries")

// Index is an optional bbolt-backed secondary index over cache metadata,
// kept in sync by Manager as entries are written or invalidated. It is
// never required for correctness: Rebuild regenerates it from Persistence
// at any time.
type Index struct {
	db *bbolt.DB
}

// OpenIndex opens (creating if absent) a bbolt database at path.
func OpenIndex(path string) (*Index, error) {
	db, err := bbolt.Open(path, 0o644, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, codexerr.Wrap(codexerr.CodeCacheCorruption, "opening index database", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(indexBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, codexerr.Wrap(codexerr.CodeCacheCorruption, "initializing index bucket", err)
	}
	return &Index{db: db}, nil
}

// Close releases the underlying bbolt file lock.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Put upserts a metadata record keyed by URI.
func (idx *Index) Put(m Metadata) error {
	encoded, err := json.Marshal(m)
	if err != nil {
		return codexerr.Wrap(codexerr.CodeCacheCorruption, "marshaling index record", err)
	}
	err = idx.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(indexBucket).Put([]byte(m.URI), encoded)
	})
	if err != nil {
		return codexerr.Wrap(codexerr.CodeCacheCorruption, "writing index record", err)
	}
	return nil
}

// Delete removes a URI's record, if present.
func (idx *Index) Delete(uri string) error {
	err := idx.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(indexBucket).Delete([]byte(uri))
	})
	if err != nil {
		return codexerr.Wrap(codexerr.CodeCacheCorruption, "deleting index record", err)
	}
	return nil
}

// Get returns a URI's indexed metadata, if present.
func (idx *Index) Get(uri string) (Metadata, bool, error) {
	var m Metadata
	found := false
	err := idx.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(indexBucket).Get([]byte(uri))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &m)
	})
	if err != nil {
		return Metadata{}, false, codexerr.Wrap(codexerr.CodeCacheCorruption, "reading index record", err)
	}
	return m, found, nil
}

// List returns every indexed record, in bbolt's byte-ordered key order.
func (idx *Index) List() ([]Metadata, error) {
	var all []Metadata
	err := idx.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(indexBucket).ForEach(func(_, raw []byte) error {
			var m Metadata
			if err := json.Unmarshal(raw, &m); err != nil {
				return nil
			}
			all = append(all, m)
			return nil
		})
	})
	if err != nil {
		return nil, codexerr.Wrap(codexerr.CodeCacheCorruption, "listing index records", err)
	}
	return all, nil
}

// Rebuild replaces the index contents wholesale with the metadata of every
// entry found by Persistence.List, the recovery path documented for an
// index that has drifted from or lost sync with the on-disk source of
// truth.
func (idx *Index) Rebuild(p *Persistence) error {
	uris, err := p.List()
	if err != nil {
		return err
	}

	return idx.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(indexBucket); err != nil {
			return err
		}
		bucket, err := tx.CreateBucket(indexBucket)
		if err != nil {
			return err
		}
		for _, uri := range uris {
			entry, ok, err := p.Read(uri)
			if err != nil || !ok {
				continue
			}
			encoded, err := json.Marshal(entry.Metadata)
			if err != nil {
				continue
			}
			if err := bucket.Put([]byte(uri), encoded); err != nil {
				return err
			}
		}
		return nil
	})
}
