package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractary/codex/internal/codexerr"
	"github.com/fractary/codex/reference"
)

// fakeProvider is a minimal hand-rolled test double: plain struct fields
// instead of a generated mock, with call tracking where a test needs it.
type fakeProvider struct {
	name       string
	priority   int
	claims     bool
	fetchErr   error
	fetchCalls int
	existsOK   bool
	existsErr  error
}

func (f *fakeProvider) Name() string  { return f.name }
func (f *fakeProvider) Priority() int { return f.priority }
func (f *fakeProvider) CanHandle(reference.Resolved) bool { return f.claims }

func (f *fakeProvider) Fetch(context.Context, reference.Resolved, FetchOptions) (Result, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return Result{}, f.fetchErr
	}
	return Result{Content: []byte("ok-from-" + f.name)}, nil
}

func (f *fakeProvider) Exists(context.Context, reference.Resolved) (bool, error) {
	return f.existsOK, f.existsErr
}

func mustRef(t *testing.T, uri string) reference.Resolved {
	t.Helper()
	p, err := reference.Parse(uri)
	require.NoError(t, err)
	return reference.Resolve(p, reference.Context{})
}

func TestManagerFallsThroughOnNotFound(t *testing.T) {
	ref := mustRef(t, "codex://acme/widgets/x.md")

	first := &fakeProvider{name: "p1", priority: 10, claims: true, fetchErr: codexerr.New(codexerr.CodeNotFound, "nope")}
	second := &fakeProvider{name: "p2", priority: 20, claims: true}

	m := NewManager()
	m.Register(first)
	m.Register(second)

	result, err := m.Fetch(context.Background(), ref, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "p2", result.Source)
	assert.Equal(t, 1, first.fetchCalls)
	assert.Equal(t, 1, second.fetchCalls)
}

func TestManagerFailsFastOnUnauthorized(t *testing.T) {
	ref := mustRef(t, "codex://acme/widgets/x.md")

	first := &fakeProvider{name: "p1", priority: 10, claims: true, fetchErr: codexerr.New(codexerr.CodeUnauthorized, "nope")}
	second := &fakeProvider{name: "p2", priority: 20, claims: true}

	m := NewManager()
	m.Register(first)
	m.Register(second)

	_, err := m.Fetch(context.Background(), ref, FetchOptions{})
	require.Error(t, err)
	assert.Equal(t, codexerr.CodeUnauthorized, codexerr.CodeOf(err))
	assert.Equal(t, 0, second.fetchCalls)
}

func TestManagerNoProviderClaims(t *testing.T) {
	ref := mustRef(t, "codex://acme/widgets/x.md")
	m := NewManager()
	m.Register(&fakeProvider{name: "p1", priority: 10, claims: false})

	_, err := m.Fetch(context.Background(), ref, FetchOptions{})
	require.Error(t, err)
	assert.Equal(t, codexerr.CodeNoProvider, codexerr.CodeOf(err))
}

func TestManagerPrioritySelectsLowestNumberFirst(t *testing.T) {
	ref := mustRef(t, "codex://acme/widgets/x.md")

	low := &fakeProvider{name: "low", priority: 5, claims: true}
	high := &fakeProvider{name: "high", priority: 50, claims: true}

	m := NewManager()
	m.Register(high)
	m.Register(low)

	result, err := m.Fetch(context.Background(), ref, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "low", result.Source)
}

func TestManagerExistsReturnsFalseOnFirstClaimingNegative(t *testing.T) {
	ref := mustRef(t, "codex://acme/widgets/x.md")

	m := NewManager()
	m.Register(&fakeProvider{name: "p1", priority: 10, claims: true, existsOK: false})
	m.Register(&fakeProvider{name: "p2", priority: 20, claims: true, existsOK: true})

	ok, err := m.Exists(context.Background(), ref)
	require.NoError(t, err)
	assert.False(t, ok)
}
