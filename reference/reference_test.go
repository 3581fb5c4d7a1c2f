package reference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractary/codex/internal/codexerr"
)

func TestParseRoundTrip(t *testing.T) {
	const uri = "codex://acme/widgets/docs/guide.md"

	p, err := Parse(uri)
	require.NoError(t, err)
	assert.Equal(t, Parsed{Org: "acme", Project: "widgets", Path: "docs/guide.md"}, p)
	assert.Equal(t, uri, p.String())

	rebuilt, err := Build(p.Org, p.Project, p.Path)
	require.NoError(t, err)
	assert.Equal(t, uri, rebuilt)

	p2, err := Parse(rebuilt)
	require.NoError(t, err)
	assert.Equal(t, p, p2)
}

func TestParseEmptyPathIsProjectRoot(t *testing.T) {
	p, err := Parse("codex://acme/widgets")
	require.NoError(t, err)
	assert.Equal(t, "", p.Path)
	assert.Equal(t, "codex://acme/widgets", p.String())
}

func TestParseRejectsTraversal(t *testing.T) {
	_, err := Parse("codex://acme/widgets/../secrets")
	require.Error(t, err)
	assert.Equal(t, codexerr.CodeInvalidPath, codexerr.CodeOf(err))
}

func TestParseRejectsPercentEncodedSeparator(t *testing.T) {
	_, err := Parse("codex://acme/widgets/a%2Fb")
	require.Error(t, err)
	assert.Equal(t, codexerr.CodeInvalidPath, codexerr.CodeOf(err))
}

func TestParseRejectsMissingComponents(t *testing.T) {
	cases := []string{
		"codex://",
		"codex://acme",
		"codex:///widgets/x",
		"http://acme/widgets/x",
	}
	for _, raw := range cases {
		_, err := Parse(raw)
		require.Errorf(t, err, "expected parse error for %q", raw)
		assert.Equal(t, codexerr.CodeInvalidURI, codexerr.CodeOf(err))
	}
}

func TestValidate(t *testing.T) {
	assert.True(t, Validate("codex://acme/widgets/a/b.md"))
	assert.False(t, Validate("not-a-uri"))
}

func TestBuildRejectsEmptyComponents(t *testing.T) {
	_, err := Build("", "widgets", "x")
	require.Error(t, err)
	_, err = Build("acme", "", "x")
	require.Error(t, err)
}

func TestBuildStripsLeadingSlash(t *testing.T) {
	uri, err := Build("acme", "widgets", "/docs/guide.md")
	require.NoError(t, err)
	assert.Equal(t, "codex://acme/widgets/docs/guide.md", uri)
}
