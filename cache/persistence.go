package cache

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fractary/codex/internal/codexerr"
	"github.com/fractary/codex/internal/telemetry"
)

// metaSuffix and contentSuffix match the on-disk layout contract:
// "<root>/<org>/<project>/<path>.cache" for content and
// "<root>/<org>/<project>/<path>.meta.json" for metadata.
const (
	contentSuffix = ".cache"
	metaSuffix    = ".meta.json"
)

// Persistence is the L2 (disk) tier: atomic metadata+content file pairs
// under a cache root.
type Persistence struct {
	Root string
}

// NewPersistence builds a Persistence rooted at root.
func NewPersistence(root string) *Persistence {
	return &Persistence{Root: root}
}

func (p *Persistence) pathsFor(uri string) (contentPath, metaPath string) {
	rel := relPathForURI(uri)
	return filepath.Join(p.Root, rel+contentSuffix), filepath.Join(p.Root, rel+metaSuffix)
}

// relPathForURI maps "codex://org/project/a/b.md" to "org/project/a/b.md",
// the same layout reference.Resolved.CachePath computes (kept independent
// here so Persistence can operate from a bare URI without a full Resolve).
func relPathForURI(uri string) string {
	rest := strings.TrimPrefix(uri, "codex://")
	return rest
}

// Write atomically persists an entry: both files are written to sibling
// temp files and renamed into place; on any failure both temp files are
// removed, so a reader never observes a partial pair.
func (p *Persistence) Write(e Entry) error {
	contentPath, metaPath := p.pathsFor(e.Metadata.URI)

	if err := os.MkdirAll(filepath.Dir(contentPath), 0o755); err != nil {
		return codexerr.Wrap(codexerr.CodeCacheCorruption, "creating cache directory", err)
	}

	metaBytes, err := json.MarshalIndent(e.Metadata, "", "  ")
	if err != nil {
		return codexerr.Wrap(codexerr.CodeCacheCorruption, "marshaling metadata", err)
	}

	contentTmp := contentPath + ".tmp"
	metaTmp := metaPath + ".tmp"

	cleanup := func() {
		os.Remove(contentTmp)
		os.Remove(metaTmp)
	}

	if err := os.WriteFile(contentTmp, e.Content, 0o644); err != nil {
		cleanup()
		return codexerr.Wrap(codexerr.CodeCacheCorruption, "writing content temp file", err)
	}
	if err := os.WriteFile(metaTmp, metaBytes, 0o644); err != nil {
		cleanup()
		return codexerr.Wrap(codexerr.CodeCacheCorruption, "writing metadata temp file", err)
	}

	if err := os.Rename(contentTmp, contentPath); err != nil {
		cleanup()
		return codexerr.Wrap(codexerr.CodeCacheCorruption, "renaming content file", err)
	}
	if err := os.Rename(metaTmp, metaPath); err != nil {
		os.Remove(contentPath)
		cleanup()
		return codexerr.Wrap(codexerr.CodeCacheCorruption, "renaming metadata file", err)
	}

	return nil
}

// Read loads metadata and content together. If either file is missing, the
// entry is absent: (Entry{}, false, nil), never a partial result. A
// malformed metadata file is treated the same way — absent, never a
// corrupt entry.
func (p *Persistence) Read(uri string) (Entry, bool, error) {
	contentPath, metaPath := p.pathsFor(uri)

	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, false, nil
		}
		return Entry{}, false, codexerr.Wrap(codexerr.CodeCacheCorruption, "reading metadata file", err)
	}

	var meta Metadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		telemetry.WithComponent("cache-persistence").WithField("uri", uri).WithError(err).Warn("discarding corrupt metadata file")
		return Entry{}, false, nil
	}

	content, err := os.ReadFile(contentPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, false, nil
		}
		return Entry{}, false, codexerr.Wrap(codexerr.CodeCacheCorruption, "reading content file", err)
	}

	return Entry{Metadata: meta, Content: content}, true, nil
}

// Exists stats the content file only; it never needs to parse metadata.
func (p *Persistence) Exists(uri string) bool {
	contentPath, _ := p.pathsFor(uri)
	_, err := os.Stat(contentPath)
	return err == nil
}

// Delete removes both files of a pair, ignoring a missing file.
func (p *Persistence) Delete(uri string) error {
	contentPath, metaPath := p.pathsFor(uri)
	if err := removeIfExists(contentPath); err != nil {
		return codexerr.Wrap(codexerr.CodeCacheCorruption, "deleting content file", err)
	}
	if err := removeIfExists(metaPath); err != nil {
		return codexerr.Wrap(codexerr.CodeCacheCorruption, "deleting metadata file", err)
	}
	return nil
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// List walks <root>/<org>/<project>/ subtrees and yields each content
// file's URI.
func (p *Persistence) List() ([]string, error) {
	var uris []string
	err := filepath.WalkDir(p.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, contentSuffix) {
			return nil
		}
		rel, err := filepath.Rel(p.Root, path)
		if err != nil {
			return err
		}
		rel = strings.TrimSuffix(filepath.ToSlash(rel), contentSuffix)
		uris = append(uris, "codex://"+rel)
		return nil
	})
	if err != nil {
		return nil, codexerr.Wrap(codexerr.CodeCacheCorruption, "walking cache root", err)
	}
	return uris, nil
}

// ClearExpired iterates the listing, loads each metadata file, and deletes
// the pair whose ExpiresAt has passed. It returns the number of entries
// removed.
func (p *Persistence) ClearExpired(now time.Time) (int, error) {
	uris, err := p.List()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, uri := range uris {
		entry, ok, err := p.Read(uri)
		if err != nil || !ok {
			continue
		}
		if entry.Metadata.Status(now) == StatusExpired {
			if err := p.Delete(uri); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// Stats aggregates entry count, total bytes and per-status counts using
// the stale window.
type Stats struct {
	EntryCount  int
	TotalBytes  int64
	FreshCount  int
	StaleCount  int
	ExpiredCount int
}

// GetStats computes aggregate statistics over every on-disk entry.
func (p *Persistence) GetStats(now time.Time) (Stats, error) {
	uris, err := p.List()
	if err != nil {
		return Stats{}, err
	}

	var s Stats
	for _, uri := range uris {
		entry, ok, err := p.Read(uri)
		if err != nil || !ok {
			continue
		}
		s.EntryCount++
		s.TotalBytes += int64(entry.Metadata.Size)
		switch entry.Metadata.Status(now) {
		case StatusFresh:
			s.FreshCount++
		case StatusStale:
			s.StaleCount++
		default:
			s.ExpiredCount++
		}
	}
	return s, nil
}
