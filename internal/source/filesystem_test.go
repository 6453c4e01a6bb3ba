package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFilesystem_ListSortedMarkdownOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "chapter-2.md", "two")
	writeFile(t, dir, "chapter-1.md", "one")
	writeFile(t, dir, "notes.txt", "not markdown")
	writeFile(t, dir, "appendix/extra.md", "nested")

	fs, err := NewFilesystem(dir)
	require.NoError(t, err)

	paths, err := fs.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"appendix/extra.md", "chapter-1.md", "chapter-2.md"}, paths)
}

func TestFilesystem_Fetch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "chapter-1.md", "# Chapter One\n")

	fs, err := NewFilesystem(dir)
	require.NoError(t, err)

	doc, err := fs.Fetch(context.Background(), "chapter-1.md")
	require.NoError(t, err)
	assert.Equal(t, "chapter-1.md", doc.Path)
	assert.Equal(t, "# Chapter One\n", doc.Content)
}

func TestFilesystem_FetchMissing(t *testing.T) {
	fs, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)

	_, err = fs.Fetch(context.Background(), "nope.md")
	require.Error(t, err)
}

func TestNewFilesystem_MissingDir(t *testing.T) {
	_, err := NewFilesystem(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
}

func TestNewFilesystem_NotADirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "file.md", "x")

	_, err := NewFilesystem(filepath.Join(dir, "file.md"))
	require.Error(t, err)
}

func TestFilesystem_ListEmpty(t *testing.T) {
	fs, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)

	paths, err := fs.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, paths)
}
