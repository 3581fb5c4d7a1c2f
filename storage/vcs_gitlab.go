package storage

import (
	"context"
	"fmt"
	"net/url"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/fractary/codex/internal/codexerr"
	"github.com/fractary/codex/reference"
)

// gitlabBackend implements vcsBackend against a single GitLab instance,
// grounded on forge/gitlab.go's gitlab.NewClient(token, gitlab.WithBaseURL(...))
// construction, here used for the repository-files API fallback instead of
// archive/runner/job inspection.
type gitlabBackend struct {
	baseURL string // e.g. "https://gitlab.example.com"
}

// NewGitLabProvider builds a RemoteVCSProvider backed by a GitLab instance
// at baseURL.
func NewGitLabProvider(baseURL string) *RemoteVCSProvider {
	return newRemoteVCSProvider("remote-vcs-gitlab", &gitlabBackend{baseURL: baseURL})
}

func (g *gitlabBackend) rawURL(ref reference.Resolved, branch string) string {
	projectPath := url.PathEscape(ref.Org + "/" + ref.Project)
	filePath := url.PathEscape(ref.Path)
	return fmt.Sprintf("%s/api/v4/projects/%s/repository/files/%s/raw?ref=%s",
		g.baseURL, projectPath, filePath, url.QueryEscape(branch))
}

func (g *gitlabBackend) fetchViaAPI(_ context.Context, ref reference.Resolved, branch, token string) ([]byte, string, error) {
	client, err := gitlab.NewClient(token, gitlab.WithBaseURL(g.baseURL+"/api/v4"))
	if err != nil {
		return nil, "", codexerr.Wrap(codexerr.CodeTransport, "creating gitlab client", err)
	}

	projectID := ref.Org + "/" + ref.Project
	file, _, err := client.RepositoryFiles.GetFile(projectID, ref.Path, &gitlab.GetFileOptions{Ref: gitlab.Ptr(branch)})
	if err != nil {
		if containsStatus(err, 404) {
			return nil, "", codexerr.Wrap(codexerr.CodeNotFound, "gitlab files API: not found", err)
		}
		if containsStatus(err, 401) || containsStatus(err, 403) {
			return nil, "", codexerr.Wrap(codexerr.CodeUnauthorized, "gitlab files API: unauthorized", err)
		}
		return nil, "", codexerr.Wrap(codexerr.CodeTransport, "gitlab files API failed", err)
	}

	decoded, err := decodeBase64Content(file.Content)
	if err != nil {
		return nil, "", codexerr.Wrap(codexerr.CodeTransport, "decoding gitlab base64 content", err)
	}

	return decoded, file.CommitID, nil
}
