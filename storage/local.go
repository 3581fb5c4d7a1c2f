package storage

import (
	"context"
	"mime"
	"os"
	"path/filepath"

	"github.com/fractary/codex/internal/codexerr"
	"github.com/fractary/codex/reference"
)

// LocalProvider claims references whose resolved source type is local or
// file-plugin and reads them straight off disk.
type LocalProvider struct {
	priority int
}

// NewLocalProvider builds a LocalProvider at the default priority. Pass a
// custom priority via WithPriority if the caller's Manager config overrides
// the default ordering.
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{priority: PriorityLocal}
}

// WithPriority overrides the provider's selection priority.
func (p *LocalProvider) WithPriority(priority int) *LocalProvider {
	p.priority = priority
	return p
}

func (p *LocalProvider) Name() string  { return "local" }
func (p *LocalProvider) Priority() int { return p.priority }

func (p *LocalProvider) CanHandle(ref reference.Resolved) bool {
	return ref.Source == reference.SourceLocal || ref.Source == reference.SourceFilePlugin
}

func (p *LocalProvider) Fetch(_ context.Context, ref reference.Resolved, opts FetchOptions) (Result, error) {
	info, err := os.Stat(ref.LocalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, codexerr.Wrap(codexerr.CodeNotFound, "local file not found: "+ref.LocalPath, err)
		}
		return Result{}, codexerr.Wrap(codexerr.CodeTransport, "stat failed for "+ref.LocalPath, err)
	}

	if opts.MaxSize > 0 && info.Size() > opts.MaxSize {
		return Result{}, codexerr.New(codexerr.CodeContentTooLarge, "local file exceeds max-size")
	}

	data, err := os.ReadFile(ref.LocalPath)
	if err != nil {
		return Result{}, codexerr.Wrap(codexerr.CodeTransport, "read failed for "+ref.LocalPath, err)
	}

	return Result{
		Content:     data,
		ContentType: contentTypeFor(ref.LocalPath),
		Size:        len(data),
		Source:      "local",
	}, nil
}

func (p *LocalProvider) Exists(_ context.Context, ref reference.Resolved) (bool, error) {
	_, err := os.Stat(ref.LocalPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, codexerr.Wrap(codexerr.CodeTransport, "stat failed for "+ref.LocalPath, err)
}

// contentTypeFor infers a MIME type from file extension, falling back to a
// generic octet-stream type when the extension is unknown.
func contentTypeFor(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
