package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReadsFromLocalHandler(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "a.md"), []byte("hello world"), 0o644))

	var stdout, stderr bytes.Buffer
	code := run([]string{"file", "read", "--remote-path", "docs/a.md", "--handler", "local", "--bucket", root}, &stdout, &stderr)

	assert.Equal(t, 0, code)
	assert.Equal(t, "hello world", stdout.String())
}

func TestRunReturnsNotFoundExitCodeForMissingObject(t *testing.T) {
	root := t.TempDir()

	var stdout, stderr bytes.Buffer
	code := run([]string{"file", "read", "--remote-path", "docs/missing.md", "--handler", "local", "--bucket", root}, &stdout, &stderr)

	assert.Equal(t, 3, code)
	assert.Empty(t, stdout.String())
	assert.NotEmpty(t, stderr.String())
}

func TestRunRejectsUnknownVerb(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"file", "write"}, &stdout, &stderr)
	assert.Equal(t, 2, code)
}

func TestRunRejectsMissingRemotePath(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"file", "read", "--handler", "local", "--bucket", t.TempDir()}, &stdout, &stderr)
	assert.Equal(t, 2, code)
}

func TestRunRejectsUnknownHandler(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"file", "read", "--remote-path", "a.md", "--handler", "nope"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
}

func TestRunRejectsNonS3HandlerWithoutEndpoint(t *testing.T) {
	os.Unsetenv("CODEX_ARCHIVE_ENDPOINT")
	var stdout, stderr bytes.Buffer
	code := run([]string{"file", "read", "--remote-path", "a.md", "--handler", "minio", "--bucket", "b"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
}
