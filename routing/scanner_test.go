package routing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScanMatchesIncludedFilesAndTracksSourceProjects(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "org/project-a/standard.md", "---\ncodex_sync_include: [\"*\"]\n---\nbody")
	writeDoc(t, root, "org/project-b/api.md", "---\ncodex_sync_include: [\"target-*\"]\n---\nbody")
	writeDoc(t, root, "org/project-c/secret.md", "---\ncodex_sync_include: [\"other-*\"]\n---\nbody")
	writeDoc(t, root, "org/target-project/self.md", "---\ncodex_sync_include: [\"*\"]\n---\nbody")

	matched, stats, err := Scan(context.Background(), root, "target-project", Options{})
	require.NoError(t, err)

	var paths []string
	for _, m := range matched {
		paths = append(paths, m.SourceProject)
	}
	assert.ElementsMatch(t, []string{"project-a", "project-b"}, paths)
	assert.Contains(t, stats.SourceProjects, "project-a")
	assert.Contains(t, stats.SourceProjects, "project-b")
	assert.NotContains(t, stats.SourceProjects, "target-project")
}

func TestScanSkipsDotDirectoriesAndNodeModules(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "org/project-a/.git/hidden.md", "---\ncodex_sync_include: [\"*\"]\n---\nbody")
	writeDoc(t, root, "org/project-a/node_modules/pkg/readme.md", "---\ncodex_sync_include: [\"*\"]\n---\nbody")
	writeDoc(t, root, "org/project-a/visible.md", "---\ncodex_sync_include: [\"*\"]\n---\nbody")

	matched, _, err := Scan(context.Background(), root, "target-project", Options{})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "org/project-a/visible.md", filepath.ToSlash(matched[0].Path))
}

func TestScanSkipsNonMarkdownAndOversizedFiles(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "org/project-a/notes.txt", "codex_sync_include: [\"*\"]")
	writeDoc(t, root, "org/project-a/big.md", "---\ncodex_sync_include: [\"*\"]\n---\n"+string(make([]byte, 100)))

	matched, _, err := Scan(context.Background(), root, "target-project", Options{MaxFileSize: 10})
	require.NoError(t, err)
	assert.Empty(t, matched)
}

func TestScanPreventsSelfSync(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "org/target-project/self.md", "---\ncodex_sync_include: [\"*\"]\n---\nbody")

	matched, _, err := Scan(context.Background(), root, "target-project", Options{})
	require.NoError(t, err)
	assert.Empty(t, matched)
}

func TestScanExcludeOverridesInclude(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "org/project-a/doc.md", "---\ncodex_sync_include: [\"*\"]\ncodex_sync_exclude: [\"target-*\"]\n---\nbody")

	matched, _, err := Scan(context.Background(), root, "target-project", Options{})
	require.NoError(t, err)
	assert.Empty(t, matched)
}
