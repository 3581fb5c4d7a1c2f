package storage

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/fractary/codex/internal/codexerr"
	"github.com/fractary/codex/internal/telemetry"
	"github.com/fractary/codex/reference"
)

// vcsBackend is the per-forge-flavor half of RemoteVCSProvider: it knows how
// to build a raw-content URL and how to fall back to a metadata API that
// returns base64 content plus a commit id. Gitea and GitLab each implement
// one (vcs_gitea.go, vcs_gitlab.go).
type vcsBackend interface {
	// rawURL builds the raw-content endpoint for ref on the given branch.
	rawURL(ref reference.Resolved, branch string) string
	// fetchViaAPI is the credentialed metadata-API fallback. It returns the
	// decoded content, the commit id (if known), and any error.
	fetchViaAPI(ctx context.Context, ref reference.Resolved, branch, token string) (content []byte, commit string, err error)
}

// RemoteVCSProvider implements the version-control remote
// provider contract on top of a forge-specific backend (Gitea or GitLab).
// It claims any reference that is not for the current project, tries the
// raw content endpoint first, and falls back to the backend's credentialed
// metadata API on HTTP failure when a token is available.
type RemoteVCSProvider struct {
	backend       vcsBackend
	name          string
	DefaultBranch string
	Token         string
	priority      int
	httpClient    *http.Client
}

func newRemoteVCSProvider(name string, backend vcsBackend) *RemoteVCSProvider {
	return &RemoteVCSProvider{
		backend:       backend,
		name:          name,
		DefaultBranch: "main",
		priority:      PriorityRemoteVCS,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *RemoteVCSProvider) WithPriority(priority int) *RemoteVCSProvider {
	p.priority = priority
	return p
}

func (p *RemoteVCSProvider) Name() string  { return p.name }
func (p *RemoteVCSProvider) Priority() int { return p.priority }

// CanHandle claims any reference that is not local to the caller's current
// project: the remote-vcs provider is the generic fallback for every other
// org/project.
func (p *RemoteVCSProvider) CanHandle(ref reference.Resolved) bool {
	return !ref.IsCurrentProject
}

func (p *RemoteVCSProvider) branch(opts FetchOptions) string {
	if opts.Branch != "" {
		return opts.Branch
	}
	return p.DefaultBranch
}

func (p *RemoteVCSProvider) Fetch(ctx context.Context, ref reference.Resolved, opts FetchOptions) (Result, error) {
	log := telemetry.WithComponent(p.name).WithField("uri", ref.String())
	branch := p.branch(opts)
	token := opts.Token
	if token == "" {
		token = p.Token
	}

	rawURL := p.backend.rawURL(ref, branch)
	content, err := p.fetchRaw(ctx, rawURL, opts)
	if err == nil {
		return Result{
			Content:     content,
			ContentType: contentTypeFor(ref.Path),
			Size:        len(content),
			Source:      p.name,
			ProviderMetadata: map[string]string{
				"branch": branch,
				"url":    rawURL,
			},
		}, nil
	}

	// A credentialed metadata-API fallback is available on any recoverable
	// raw-endpoint failure, and also on Unauthorized when a token is
	// configured: the raw endpoint may be unauthenticated-only, so a 401/403
	// there doesn't mean the metadata API (which does carry the token) would
	// fail too.
	fallbackEligible := codexerr.IsRecoverable(err) || codexerr.CodeOf(err) == codexerr.CodeUnauthorized
	if !fallbackEligible {
		return Result{}, err
	}
	if token == "" {
		log.WithError(err).Debug("raw endpoint failed and no credential is available for the metadata-API fallback")
		return Result{}, err
	}

	log.WithError(err).Debug("raw endpoint failed, falling back to metadata API")
	decoded, commit, apiErr := p.backend.fetchViaAPI(ctx, ref, branch, token)
	if apiErr != nil {
		return Result{}, apiErr
	}

	meta := map[string]string{"branch": branch, "url": rawURL}
	if commit != "" {
		meta["commit"] = commit
	}
	return Result{
		Content:          decoded,
		ContentType:      contentTypeFor(ref.Path),
		Size:             len(decoded),
		Source:           p.name,
		ProviderMetadata: meta,
	}, nil
}

func (p *RemoteVCSProvider) fetchRaw(ctx context.Context, url string, opts FetchOptions) ([]byte, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, codexerr.Wrap(codexerr.CodeTransport, "building raw request", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, codexerr.Wrap(codexerr.CodeTransport, "raw request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, codexerr.New(codexerr.CodeNotFound, "raw content not found at "+url)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, codexerr.New(codexerr.CodeUnauthorized, "raw content unauthorized at "+url)
	case resp.StatusCode >= 400:
		return nil, codexerr.New(codexerr.CodeTransport, "raw content error status "+resp.Status)
	}

	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultFetchOptions().MaxSize
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSize+1))
	if err != nil {
		return nil, codexerr.Wrap(codexerr.CodeTransport, "reading raw content", err)
	}
	if int64(len(data)) > maxSize {
		return nil, codexerr.New(codexerr.CodeContentTooLarge, "raw content exceeds max-size")
	}
	return data, nil
}

func (p *RemoteVCSProvider) Exists(ctx context.Context, ref reference.Resolved) (bool, error) {
	rawURL := p.backend.rawURL(ref, p.DefaultBranch)
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false, codexerr.Wrap(codexerr.CodeTransport, "building HEAD request", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false, codexerr.Wrap(codexerr.CodeTransport, "HEAD request failed", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}
