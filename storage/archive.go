package storage

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/fractary/codex/internal/codexerr"
	"github.com/fractary/codex/internal/globmatch"
	"github.com/fractary/codex/reference"
)

// ArchiveProvider claims current-project references whose path matches one
// of its configured globs, and delegates the actual fetch to an external
// helper subprocess. It is read-only: Exists is documented as an
// expensive fetch-and-discard until the helper contract grows a head/stat
// verb.
type ArchiveProvider struct {
	// Helper is the path to the archive-helper executable (see
	// cmd/codex-archive-helper), invoked as:
	//   <Helper> file read --remote-path <key> --handler <Handler> [--bucket <Bucket>]
	Helper  string
	Handler string // "s3" | "r2" | "gcs" | "local"
	Bucket  string
	// Prefix roots every archive key; must be non-empty/non-whitespace,
	// defaults to "archive/".
	Prefix      string
	Globs       []string
	priority    int
	runCommand  func(ctx context.Context, name string, args ...string) ([]byte, []byte, error)
}

// NewArchiveProvider builds an ArchiveProvider. Prefix defaults to
// "archive/" when empty or all-whitespace.
func NewArchiveProvider(helper, handler, bucket string, globs []string) *ArchiveProvider {
	return &ArchiveProvider{
		Helper:     helper,
		Handler:    handler,
		Bucket:     bucket,
		Prefix:     "archive/",
		Globs:      globs,
		priority:   PriorityArchive,
		runCommand: runSubprocess,
	}
}

func (p *ArchiveProvider) WithPriority(priority int) *ArchiveProvider {
	p.priority = priority
	return p
}

// WithPrefix overrides the archive key prefix; a blank/whitespace-only
// value is rejected in favor of the "archive/" default.
func (p *ArchiveProvider) WithPrefix(prefix string) *ArchiveProvider {
	if strings.TrimSpace(prefix) == "" {
		return p
	}
	p.Prefix = prefix
	return p
}

func (p *ArchiveProvider) Name() string  { return "archive" }
func (p *ArchiveProvider) Priority() int { return p.priority }

func (p *ArchiveProvider) CanHandle(ref reference.Resolved) bool {
	if !ref.IsCurrentProject || p.Helper == "" {
		return false
	}
	for _, g := range p.Globs {
		if globmatch.Match(g, ref.Path) {
			return true
		}
	}
	return false
}

// archiveType classifies a path by its first segment into the three
// buckets the archive tier recognizes explicitly (specs, docs, logs);
// anything else is "misc".
func archiveType(path string) string {
	first := path
	if idx := strings.IndexByte(path, '/'); idx >= 0 {
		first = path[:idx]
	}
	switch first {
	case "specs", "docs", "logs":
		return first
	default:
		return "misc"
	}
}

// archiveKey builds "<prefix>/<type>/<org>/<project>/<path>".
func (p *ArchiveProvider) archiveKey(ref reference.Resolved) string {
	prefix := strings.TrimSuffix(p.Prefix, "/")
	return prefix + "/" + archiveType(ref.Path) + "/" + ref.Org + "/" + ref.Project + "/" + ref.Path
}

func (p *ArchiveProvider) Fetch(ctx context.Context, ref reference.Resolved, _ FetchOptions) (Result, error) {
	key := p.archiveKey(ref)
	args := []string{"file", "read", "--remote-path", key, "--handler", p.Handler}
	if p.Bucket != "" {
		args = append(args, "--bucket", p.Bucket)
	}

	stdout, stderr, err := p.runCommand(ctx, p.Helper, args...)
	if err != nil {
		msg := "archive helper failed"
		if len(stderr) > 0 {
			msg += ": " + strings.TrimSpace(string(stderr))
		}
		return Result{}, codexerr.Wrap(codexerr.CodeTransport, msg, err)
	}

	return Result{
		Content:     stdout,
		ContentType: contentTypeFor(ref.Path),
		Size:        len(stdout),
		Source:      "archive",
		ProviderMetadata: map[string]string{
			"key":     key,
			"handler": p.Handler,
		},
	}, nil
}

// Exists is an expensive fetch-and-discard: the helper contract has no
// head/stat verb yet, so callers should avoid it on hot paths.
func (p *ArchiveProvider) Exists(ctx context.Context, ref reference.Resolved) (bool, error) {
	_, err := p.Fetch(ctx, ref, FetchOptions{})
	if err == nil {
		return true, nil
	}
	if codexerr.CodeOf(err) == codexerr.CodeNotFound {
		return false, nil
	}
	return false, err
}

// runSubprocess invokes the helper as an argv array, never through a shell,
// so no argument is ever subject to shell interpretation.
func runSubprocess(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
