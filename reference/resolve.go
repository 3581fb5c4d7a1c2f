package reference

import (
	"path/filepath"
	"strings"
)

// SourceType tags where a Resolved reference's bytes ultimately come from.
type SourceType string

const (
	SourceUnset      SourceType = ""
	SourceLocal      SourceType = "local"
	SourceFilePlugin SourceType = "file-plugin"
	SourceRemoteVCS  SourceType = "remote-vcs"
	SourceHTTP       SourceType = "http"
	SourceArchive    SourceType = "archive"
)

// Context carries the information Resolve needs that is not encoded in the
// URI itself: where the on-disk cache lives, which org/project the caller is
// currently operating in, the caller's working directory, and any
// file-source base-path overrides.
type Context struct {
	CacheRoot      string
	CurrentOrg     string
	CurrentProject string
	WorkingDir     string
	// FileSources maps a base path (relative to the project root) to a local
	// filesystem directory that should serve that subtree directly, bypassing
	// the normal working-dir mapping. Longest-prefix match wins.
	FileSources map[string]string
}

// Resolved augments a Parsed reference with everything the cache and
// storage layers need to act on it.
type Resolved struct {
	Parsed
	CachePath        string
	IsCurrentProject bool
	LocalPath        string
	Source           SourceType
}

// Resolve computes the cache path, the is-current-project flag, and (when
// applicable) the local filesystem path and file-plugin source type for a
// parsed reference.
func Resolve(p Parsed, ctx Context) Resolved {
	r := Resolved{
		Parsed:    p,
		CachePath: cachePath(ctx.CacheRoot, p),
	}

	r.IsCurrentProject = ctx.CurrentOrg != "" &&
		ctx.CurrentProject != "" &&
		p.Org == ctx.CurrentOrg &&
		p.Project == ctx.CurrentProject

	if !r.IsCurrentProject {
		// Source type is left unset until a storage provider claims the
		// reference.
		return r
	}

	if base, rel, ok := matchFileSource(ctx.FileSources, p.Path); ok {
		r.Source = SourceFilePlugin
		r.LocalPath = filepath.Join(base, rel)
		return r
	}

	r.Source = SourceLocal
	r.LocalPath = filepath.Join(ctx.WorkingDir, filepath.FromSlash(p.Path))
	return r
}

// cachePath computes "<cache-root>/<org>/<project>/<path>.cache".
func cachePath(root string, p Parsed) string {
	return filepath.Join(root, p.Org, p.Project, filepath.FromSlash(p.Path)+".cache")
}

// matchFileSource finds the longest configured base path that is a prefix
// of reqPath (segment-wise), returning the matched base's local directory
// and the remainder of reqPath beneath it.
func matchFileSource(sources map[string]string, reqPath string) (base, rel string, ok bool) {
	bestLen := -1
	var bestBase, bestDir string
	for basePath, dir := range sources {
		basePath = strings.Trim(basePath, "/")
		if basePath == "" {
			continue
		}
		if reqPath == basePath || strings.HasPrefix(reqPath, basePath+"/") {
			if len(basePath) > bestLen {
				bestLen = len(basePath)
				bestBase = basePath
				bestDir = dir
			}
		}
	}
	if bestLen < 0 {
		return "", "", false
	}
	remainder := strings.TrimPrefix(reqPath, bestBase)
	remainder = strings.TrimPrefix(remainder, "/")
	return bestDir, remainder, true
}

// CurrentProjectFor is a small helper callers can use to build a Context
// when they only know the working directory's project identity as a single
// "org/project" string, mirroring how thin CLI callers typically store it.
func CurrentProjectFor(orgSlashProject, workingDir, cacheRoot string) Context {
	parts := strings.SplitN(orgSlashProject, "/", 2)
	ctx := Context{CacheRoot: cacheRoot, WorkingDir: workingDir}
	if len(parts) == 2 {
		ctx.CurrentOrg, ctx.CurrentProject = parts[0], parts[1]
	}
	return ctx
}

// DefaultCacheRoot returns the default cache root relative to a working
// directory: ".fractary/codex/cache".
func DefaultCacheRoot(workingDir string) string {
	return filepath.Join(workingDir, ".fractary", "codex", "cache")
}

// DefaultManifestPath returns the default sync manifest path relative to a
// working directory.
func DefaultManifestPath(workingDir string) string {
	return filepath.Join(workingDir, ".fractary", ".codex-sync-manifest.json")
}
