package routing

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fractary/codex/internal/codexerr"
	"github.com/fractary/codex/metadata"
)

// DefaultMaxFileSize is the scanner's default per-file size cap.
const DefaultMaxFileSize = 10 << 20 // 10 MiB

// RoutedFileInfo is a transient scanner output record: enough about a
// matched file for the sync planner to compare it against a manifest,
// without re-reading the file.
type RoutedFileInfo struct {
	Path          string
	SourceProject string
	Size          int64
	Hash          string
	ModTime       time.Time
	Metadata      metadata.Metadata
}

// Options configures a scan.
type Options struct {
	MaxFileSize int64 // 0 selects DefaultMaxFileSize
}

// Stats are the scan's output statistics.
type Stats struct {
	FilesScanned   int
	FilesMatched   int
	SourceProjects map[string]struct{}
	Duration       time.Duration
}

// Scan walks the repository rooted at root (expected to contain
// organizations as top-level directories, each holding project
// directories) and returns every file that routes to targetProject, plus
// aggregate statistics. It is O(N) in the number of files under root: a
// single pass, no random access, no cross-file coordination.
func Scan(ctx context.Context, root, targetProject string, opts Options) ([]RoutedFileInfo, Stats, error) {
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	stats := Stats{SourceProjects: make(map[string]struct{})}
	var matched []RoutedFileInfo
	start := time.Now()

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		segments := strings.Split(filepath.ToSlash(rel), "/")
		if hasSkippedDir(segments[:len(segments)-1]) {
			return nil
		}
		if len(segments) < 3 {
			// Not nested under <org>/<project>/...; nothing to route.
			return nil
		}
		sourceProject := segments[1]

		if filepath.Ext(path) != ".md" {
			return nil
		}

		stats.FilesScanned++

		if sourceProject == targetProject {
			// A project never syncs content back to itself.
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > maxSize {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}

		meta := metadata.Parse(content)
		if !ShouldSyncTo(meta.Sync, targetProject) {
			return nil
		}

		matched = append(matched, RoutedFileInfo{
			Path:          rel,
			SourceProject: sourceProject,
			Size:          info.Size(),
			Hash:          contentHash(content),
			ModTime:       info.ModTime(),
			Metadata:      meta,
		})
		stats.FilesMatched++
		stats.SourceProjects[sourceProject] = struct{}{}
		return nil
	})
	stats.Duration = time.Since(start)
	if err != nil {
		return nil, stats, codexerr.Wrap(codexerr.CodeTransport, "scanning repository", err)
	}

	return matched, stats, nil
}

// hasSkippedDir reports whether any path segment is a dot-directory
// (".git", ".fractary", ...) or "node_modules".
func hasSkippedDir(dirSegments []string) bool {
	for _, seg := range dirSegments {
		if strings.HasPrefix(seg, ".") || seg == "node_modules" {
			return true
		}
	}
	return false
}

// contentHash computes the same 8-hex-digit fingerprint the cache layer
// uses, kept independent here so the scanner has no dependency on the
// cache package.
func contentHash(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:4])
}
