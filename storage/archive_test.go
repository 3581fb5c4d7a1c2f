package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractary/codex/reference"
)

func TestArchiveKeyClassification(t *testing.T) {
	p := NewArchiveProvider("helper", "s3", "bucket", []string{"**"})

	cases := map[string]string{
		"specs/api/v1.md": "specs",
		"docs/readme.md":  "docs",
		"logs/app.log":    "logs",
		"random/file.bin": "misc",
	}
	for path, want := range cases {
		ref := reference.Resolved{Parsed: reference.Parsed{Org: "acme", Project: "widgets", Path: path}, IsCurrentProject: true}
		key := p.archiveKey(ref)
		assert.Contains(t, key, "/"+want+"/acme/widgets/"+path)
	}
}

func TestArchiveCanHandleRequiresCurrentProjectAndGlobMatch(t *testing.T) {
	p := NewArchiveProvider("helper", "s3", "bucket", []string{"specs/**"})

	current := reference.Resolved{Parsed: reference.Parsed{Org: "a", Project: "b", Path: "specs/x.md"}, IsCurrentProject: true}
	assert.True(t, p.CanHandle(current))

	nonCurrent := current
	nonCurrent.IsCurrentProject = false
	assert.False(t, p.CanHandle(nonCurrent))

	noMatch := reference.Resolved{Parsed: reference.Parsed{Org: "a", Project: "b", Path: "docs/x.md"}, IsCurrentProject: true}
	assert.False(t, p.CanHandle(noMatch))
}

func TestArchiveFetchInvokesHelperAsArgv(t *testing.T) {
	p := NewArchiveProvider("codex-archive-helper", "s3", "my-bucket", []string{"**"})

	var gotArgs []string
	p.runCommand = func(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
		assert.Equal(t, "codex-archive-helper", name)
		gotArgs = args
		return []byte("archived-bytes"), nil, nil
	}

	ref := reference.Resolved{Parsed: reference.Parsed{Org: "acme", Project: "widgets", Path: "specs/x.md"}, IsCurrentProject: true}
	result, err := p.Fetch(context.Background(), ref, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("archived-bytes"), result.Content)
	assert.Equal(t, []string{"file", "read", "--remote-path", "archive/specs/acme/widgets/specs/x.md", "--handler", "s3", "--bucket", "my-bucket"}, gotArgs)
}

func TestArchivePrefixRejectsBlank(t *testing.T) {
	p := NewArchiveProvider("helper", "s3", "", nil)
	p.WithPrefix("   ")
	assert.Equal(t, "archive/", p.Prefix)
}
