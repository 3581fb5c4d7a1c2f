package storage

import (
	"context"
	"fmt"

	gitea "code.gitea.io/sdk/gitea"

	"github.com/fractary/codex/internal/codexerr"
	"github.com/fractary/codex/reference"
)

// giteaBackend implements vcsBackend against a single Gitea instance,
// grounded on forge/gitea.go's GiteaGetRepo: a gitea.NewClient configured
// with a personal access token, here used for the base64 content-API
// fallback instead of archive downloads.
type giteaBackend struct {
	baseURL string // e.g. "https://gitea.example.com"
}

// NewGiteaProvider builds a RemoteVCSProvider backed by a Gitea instance at
// baseURL.
func NewGiteaProvider(baseURL string) *RemoteVCSProvider {
	return newRemoteVCSProvider("remote-vcs-gitea", &giteaBackend{baseURL: baseURL})
}

func (g *giteaBackend) rawURL(ref reference.Resolved, branch string) string {
	return fmt.Sprintf("%s/%s/%s/raw/branch/%s/%s", g.baseURL, ref.Org, ref.Project, branch, ref.Path)
}

func (g *giteaBackend) fetchViaAPI(ctx context.Context, ref reference.Resolved, branch, token string) ([]byte, string, error) {
	client, err := gitea.NewClient(g.baseURL, gitea.SetToken(token), gitea.SetContext(ctx))
	if err != nil {
		return nil, "", codexerr.Wrap(codexerr.CodeTransport, "creating gitea client", err)
	}

	contents, _, err := client.GetContents(ref.Org, ref.Project, branch, ref.Path)
	if err != nil {
		if isGiteaNotFound(err) {
			return nil, "", codexerr.Wrap(codexerr.CodeNotFound, "gitea contents API: not found", err)
		}
		if isGiteaUnauthorized(err) {
			return nil, "", codexerr.Wrap(codexerr.CodeUnauthorized, "gitea contents API: unauthorized", err)
		}
		return nil, "", codexerr.Wrap(codexerr.CodeTransport, "gitea contents API failed", err)
	}
	if contents == nil || contents.Content == nil {
		return nil, "", codexerr.New(codexerr.CodeNotFound, "gitea contents API returned no content (directory?)")
	}

	decoded, err := decodeBase64Content(*contents.Content)
	if err != nil {
		return nil, "", codexerr.Wrap(codexerr.CodeTransport, "decoding gitea base64 content", err)
	}

	commit := ""
	if contents.SHA != "" {
		commit = contents.SHA
	}
	return decoded, commit, nil
}

func isGiteaNotFound(err error) bool {
	return containsStatus(err, 404)
}

func isGiteaUnauthorized(err error) bool {
	return containsStatus(err, 401) || containsStatus(err, 403)
}
