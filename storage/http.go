package storage

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fractary/codex/internal/codexerr"
	"github.com/fractary/codex/reference"
)

// HTTPProvider claims references whose built URI matches a configured base
// URL prefix and performs a single GET, with no auth retry logic.
type HTTPProvider struct {
	BaseURL  string // e.g. "https://content.example.com/"
	Headers  map[string]string
	Token    string
	client   *http.Client
	priority int
}

// NewHTTPProvider builds an HTTPProvider rooted at baseURL.
func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		BaseURL:  strings.TrimSuffix(baseURL, "/"),
		Headers:  map[string]string{},
		priority: PriorityHTTP,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *HTTPProvider) WithPriority(priority int) *HTTPProvider {
	p.priority = priority
	return p
}

func (p *HTTPProvider) Name() string  { return "http" }
func (p *HTTPProvider) Priority() int { return p.priority }

func (p *HTTPProvider) CanHandle(ref reference.Resolved) bool {
	return strings.HasPrefix(p.url(ref), p.BaseURL) && p.BaseURL != ""
}

func (p *HTTPProvider) url(ref reference.Resolved) string {
	return p.BaseURL + "/" + ref.Org + "/" + ref.Project + "/" + ref.Path
}

func (p *HTTPProvider) Fetch(ctx context.Context, ref reference.Resolved, opts FetchOptions) (Result, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url(ref), nil)
	if err != nil {
		return Result{}, codexerr.Wrap(codexerr.CodeTransport, "building http request", err)
	}
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}
	token := opts.Token
	if token == "" {
		token = p.Token
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := p.client
	if !opts.FollowRedirects {
		client = &http.Client{
			Timeout: client.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{}, codexerr.Wrap(codexerr.CodeTransport, "http request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Result{}, codexerr.New(codexerr.CodeNotFound, "http 404 for "+p.url(ref))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Result{}, codexerr.New(codexerr.CodeUnauthorized, "http auth failure for "+p.url(ref))
	case resp.StatusCode >= 400:
		return Result{}, codexerr.New(codexerr.CodeTransport, "http error status "+resp.Status)
	}

	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultFetchOptions().MaxSize
	}
	limited := io.LimitReader(resp.Body, maxSize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return Result{}, codexerr.Wrap(codexerr.CodeTransport, "reading http body", err)
	}
	if int64(len(data)) > maxSize {
		return Result{}, codexerr.New(codexerr.CodeContentTooLarge, "http response exceeds max-size")
	}

	return Result{
		Content:     data,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        len(data),
		Source:      "http",
		ProviderMetadata: map[string]string{
			"url": p.url(ref),
		},
	}, nil
}

func (p *HTTPProvider) Exists(ctx context.Context, ref reference.Resolved) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url(ref), nil)
	if err != nil {
		return false, codexerr.Wrap(codexerr.CodeTransport, "building http HEAD request", err)
	}
	if p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false, codexerr.Wrap(codexerr.CodeTransport, "http HEAD failed", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}
