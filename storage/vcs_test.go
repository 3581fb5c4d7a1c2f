package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractary/codex/internal/codexerr"
	"github.com/fractary/codex/reference"
)

// fakeVCSBackend is a minimal hand-rolled test double for vcsBackend: the
// raw URL always points at a test server, and fetchViaAPI is a closure the
// test controls directly.
type fakeVCSBackend struct {
	rawBase    string
	apiContent []byte
	apiCommit  string
	apiErr     error
	apiCalls   int
	apiLastTok string
}

func (f *fakeVCSBackend) rawURL(ref reference.Resolved, branch string) string {
	return f.rawBase + "/" + ref.Org + "/" + ref.Project + "/" + branch + "/" + ref.Path
}

func (f *fakeVCSBackend) fetchViaAPI(_ context.Context, _ reference.Resolved, _ string, token string) ([]byte, string, error) {
	f.apiCalls++
	f.apiLastTok = token
	if f.apiErr != nil {
		return nil, "", f.apiErr
	}
	return f.apiContent, f.apiCommit, nil
}

func testRef(t *testing.T) reference.Resolved {
	t.Helper()
	p, err := reference.Parse("codex://acme/widgets/docs/a.md")
	require.NoError(t, err)
	return reference.Resolve(p, reference.Context{})
}

func TestRemoteVCSProviderFetchesRawOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("raw content"))
	}))
	defer srv.Close()

	backend := &fakeVCSBackend{rawBase: srv.URL}
	p := newRemoteVCSProvider("remote-vcs-fake", backend)

	result, err := p.Fetch(context.Background(), testRef(t), FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "raw content", string(result.Content))
	assert.Equal(t, 0, backend.apiCalls)
}

func TestRemoteVCSProviderFallsBackToAPIOnNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	backend := &fakeVCSBackend{rawBase: srv.URL, apiContent: []byte("from api"), apiCommit: "abc123"}
	p := newRemoteVCSProvider("remote-vcs-fake", backend)
	p.Token = "a-token"

	result, err := p.Fetch(context.Background(), testRef(t), FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "from api", string(result.Content))
	assert.Equal(t, 1, backend.apiCalls)
	assert.Equal(t, "a-token", backend.apiLastTok)
	assert.Equal(t, "abc123", result.ProviderMetadata["commit"])
}

func TestRemoteVCSProviderNoFallbackWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	backend := &fakeVCSBackend{rawBase: srv.URL, apiContent: []byte("from api")}
	p := newRemoteVCSProvider("remote-vcs-fake", backend)

	_, err := p.Fetch(context.Background(), testRef(t), FetchOptions{})
	require.Error(t, err)
	assert.Equal(t, codexerr.CodeNotFound, codexerr.CodeOf(err))
	assert.Equal(t, 0, backend.apiCalls)
}

// TestRemoteVCSProviderFallsBackToAPIOnUnauthorized covers the case where
// the raw endpoint is unauthenticated-only and rejects the request with
// 401/403, while the credentialed metadata API (which does carry the
// token) can still serve the content.
func TestRemoteVCSProviderFallsBackToAPIOnUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	backend := &fakeVCSBackend{rawBase: srv.URL, apiContent: []byte("from api via token")}
	p := newRemoteVCSProvider("remote-vcs-fake", backend)
	p.Token = "a-token"

	result, err := p.Fetch(context.Background(), testRef(t), FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "from api via token", string(result.Content))
	assert.Equal(t, 1, backend.apiCalls)
	assert.Equal(t, "a-token", backend.apiLastTok)
}

func TestRemoteVCSProviderUnauthorizedFailsFastWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	backend := &fakeVCSBackend{rawBase: srv.URL, apiContent: []byte("from api")}
	p := newRemoteVCSProvider("remote-vcs-fake", backend)

	_, err := p.Fetch(context.Background(), testRef(t), FetchOptions{})
	require.Error(t, err)
	assert.Equal(t, codexerr.CodeUnauthorized, codexerr.CodeOf(err))
	assert.Equal(t, 0, backend.apiCalls)
}

func TestRemoteVCSProviderCanHandle(t *testing.T) {
	backend := &fakeVCSBackend{rawBase: "http://example.invalid"}
	p := newRemoteVCSProvider("remote-vcs-fake", backend)

	ref := testRef(t)
	ref.IsCurrentProject = false
	assert.True(t, p.CanHandle(ref))

	ref.IsCurrentProject = true
	assert.False(t, p.CanHandle(ref))
}
